package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show reeler and tool versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "reeler %s\n", version)

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fetcher, err := ctx.buildFetcher(cfg)
			if err != nil {
				return err
			}
			if toolVersion, err := fetcher.Version(cmd.Context()); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "yt-dlp %s\n", toolVersion)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "yt-dlp unavailable: %v\n", err)
			}
			return nil
		},
	}
}
