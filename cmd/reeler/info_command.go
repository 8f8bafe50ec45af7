package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info URL",
		Short: "Probe source metadata without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fetcher, err := ctx.buildFetcher(cfg)
			if err != nil {
				return err
			}

			info, err := fetcher.FetchInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Title", info.Title},
				{"ID", info.ID},
				{"Uploader", info.Uploader},
				{"Duration", formatDuration(info.Duration)},
				{"Formats", fmt.Sprintf("%d", len(info.Formats))},
			}
			if langs := info.SubtitleLanguages(); len(langs) > 0 {
				rows = append(rows, []string{"Subtitles", strings.Join(langs, ", ")})
			}
			if info.Thumbnail != "" {
				rows = append(rows, []string{"Thumbnail", info.Thumbnail})
			}
			fmt.Fprintln(out, renderTable([]column{
				{title: "Field"},
				{title: "Value", widthMax: 72},
			}, rows))
			return nil
		},
	}
}

func newFormatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "formats URL",
		Short: "List the selectable formats for a source URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fetcher, err := ctx.buildFetcher(cfg)
			if err != nil {
				return err
			}

			lines, err := fetcher.ListFormats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "unknown"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return d.String()
}
