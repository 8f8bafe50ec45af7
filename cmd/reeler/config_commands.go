package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reeler/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage the reeler configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigValidateCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		pathFlag  string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveTargetPath(pathFlag)
			if err != nil {
				return err
			}

			if overwrite {
				if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("remove existing config: %w", err)
				}
			}

			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Destination path for the config file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing config file")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			pathFlag, _ := cmd.Flags().GetString("config")
			cfg, resolved, exists, err := config.Load(pathFlag)
			if err != nil {
				return err
			}

			source := resolved
			if !exists {
				source = fmt.Sprintf("%s (not found, using defaults)", resolved)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n\n", source)

			rows := [][]string{
				{"paths.download_dir", cfg.Paths.DownloadDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"fetch.binary", cfg.Fetch.Binary},
				{"fetch.threads", fmt.Sprintf("%d", cfg.Fetch.Threads)},
				{"fetch.timeout_seconds", fmt.Sprintf("%d", cfg.Fetch.TimeoutSeconds)},
				{"fetch.default_video_format", cfg.Fetch.DefaultVideoFormat},
				{"fetch.default_audio_format", cfg.Fetch.DefaultAudioFormat},
				{"fetch.download_thumbnail", yesNo(cfg.Fetch.DownloadThumbnail)},
				{"cookies.enabled", yesNo(cfg.Cookies.Enabled)},
				{"cookies.browser", cfg.Cookies.Browser},
				{"transcode.ffmpeg_binary", cfg.Transcode.FFmpegBinary},
				{"transcode.ffprobe_binary", cfg.Transcode.FFprobeBinary},
				{"transcode.target_format", cfg.Transcode.TargetFormat},
				{"transcode.quality", fmt.Sprintf("%d", cfg.Transcode.Quality)},
				{"transcode.software_crf", fmt.Sprintf("%d", cfg.Transcode.SoftwareCRF)},
				{"transcode.audio_bitrate", cfg.Transcode.AudioBitrate},
				{"transcode.gpu_index", fmt.Sprintf("%d", cfg.Transcode.GPUIndex)},
				{"transcode.remove_source", yesNo(cfg.Transcode.RemoveSource)},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{
					{title: "Setting"},
					{title: "Value", widthMax: 60},
				},
				rows,
			))
			return nil
		},
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			pathFlag, _ := cmd.Flags().GetString("config")
			_, resolved, exists, err := config.Load(pathFlag)
			if err != nil {
				return err
			}
			if !exists {
				fmt.Fprintf(cmd.OutOrStdout(), "No config file at %s; defaults are valid\n", resolved)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration at %s is valid\n", resolved)
			return nil
		},
	}
}

func resolveTargetPath(pathFlag string) (string, error) {
	if strings.TrimSpace(pathFlag) != "" {
		return config.ExpandPath(pathFlag)
	}
	return config.DefaultConfigPath()
}
