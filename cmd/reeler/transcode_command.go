package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reeler/internal/history"
	"reeler/internal/workflow"
)

func newTranscodeCommand(ctx *commandContext) *cobra.Command {
	var recordID int64

	cmd := &cobra.Command{
		Use:   "transcode [FILE]",
		Short: "Convert an existing local file to the target container",
		Long: "Convert an existing local file to the target container.\n\n" +
			"With --record, the conversion runs against the named job record's\n" +
			"downloaded file and its conversion statuses land on that record\n" +
			"instead of a new one.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if recordID > 0 && len(args) > 0 {
				return fmt.Errorf("pass either FILE or --record, not both")
			}
			if recordID <= 0 && len(args) == 0 {
				return fmt.Errorf("a FILE argument or --record is required")
			}
			return ctx.withManager(cmd.Context(), func(runCtx context.Context, manager *workflow.Manager) error {
				printer := newProgressPrinter(os.Stderr)
				var (
					rec *history.Record
					err error
				)
				if recordID > 0 {
					rec, err = manager.TranscodeRecord(runCtx, recordID, printer.Update)
				} else {
					rec, err = manager.TranscodeFile(runCtx, args[0], printer.Update)
				}
				printer.Finish()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d %s: %s\n", rec.ID, statusLabel(rec.Status), rec.OutputPath)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&recordID, "record", 0, "Job record ID whose downloaded file should be converted")
	return cmd
}
