package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reeler/internal/workflow"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		videoFormat string
		audioFormat string
		subLangs    []string
		thumbnail   bool
		outputDir   string
		noConvert   bool
		threads     int
		resume      bool
		target      string
		cookiesFrom string
	)

	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Download media and record the job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// Flag overrides apply for this invocation only; re-validate
			// since they bypass the load-time checks.
			if threads > 0 {
				cfg.Fetch.Threads = threads
			}
			if target != "" {
				cfg.Transcode.TargetFormat = target
			}
			if cookiesFrom != "" {
				cfg.Cookies.Enabled = true
				cfg.Cookies.Browser = cookiesFrom
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return ctx.withManager(cmd.Context(), func(runCtx context.Context, manager *workflow.Manager) error {
				printer := newProgressPrinter(os.Stderr)
				job, err := manager.StartJob(runCtx, workflow.JobRequest{
					URL:            args[0],
					OutputDir:      outputDir,
					VideoFormat:    videoFormat,
					AudioFormat:    audioFormat,
					SubtitleLangs:  subLangs,
					Thumbnail:      thumbnail,
					SkipConversion: noConvert,
					Resume:         resume,
					OnProgress:     printer.Update,
				})
				if err != nil {
					return err
				}

				<-job.Done()
				printer.Finish()

				rec, jobErr := job.Result()
				if jobErr != nil {
					if rec != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "Job %d ended with status %s\n", rec.ID, statusLabel(rec.Status))
					}
					return jobErr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d %s: %s\n", rec.ID, statusLabel(rec.Status), rec.OutputPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&videoFormat, "video-format", "", "Video format selector passed to the fetch tool")
	cmd.Flags().StringVar(&audioFormat, "audio-format", "", "Audio format selector passed to the fetch tool")
	cmd.Flags().StringSliceVar(&subLangs, "subs", nil, "Subtitle language codes to fetch as sidecar files")
	cmd.Flags().BoolVar(&thumbnail, "thumbnail", false, "Also fetch the thumbnail sidecar")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Download directory (defaults to the configured one)")
	cmd.Flags().BoolVar(&noConvert, "no-convert", false, "Skip container conversion regardless of target format")
	cmd.Flags().IntVar(&threads, "threads", 0, "Connection count hint for the fetch tool (defaults to the configured one)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue a partial file from an earlier attempt")
	cmd.Flags().StringVar(&target, "target", "", "Target container for conversion (defaults to the configured one)")
	cmd.Flags().StringVar(&cookiesFrom, "cookies-browser", "", "Browser to read cookies from for this download")

	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Re-run a finished or failed job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(cmd.Context(), func(runCtx context.Context, manager *workflow.Manager) error {
				printer := newProgressPrinter(os.Stderr)
				job, err := manager.ResumeJob(runCtx, id, printer.Update)
				if err != nil {
					return err
				}

				<-job.Done()
				printer.Finish()

				rec, jobErr := job.Result()
				if jobErr != nil {
					return jobErr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d %s: %s\n", rec.ID, statusLabel(rec.Status), rec.OutputPath)
				return nil
			})
		},
	}
}

func parseRecordID(arg string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job record id %q", arg)
	}
	return id, nil
}
