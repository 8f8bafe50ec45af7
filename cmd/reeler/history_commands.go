package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reeler/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage job records",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistorySearchCommand(ctx))
	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	historyCmd.AddCommand(newHistoryDeleteCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var (
		statusFlag string
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List job records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *history.Store) error {
				filter := history.ListFilter{Limit: limit, Offset: offset}
				if statusFlag != "" {
					status, ok := history.ParseStatus(statusFlag)
					if !ok {
						return fmt.Errorf("unknown status %q", statusFlag)
					}
					filter.Status = status
				}

				records, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRecords(records))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status")
	cmd.Flags().IntVar(&limit, "limit", 25, "Maximum records to show (0 shows all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Records to skip")
	return cmd
}

func newHistorySearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Search job records by title or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *history.Store) error {
				records, err := store.Search(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRecords(records))
				return nil
			})
		},
	}
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Aggregate counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *history.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(stats.ByStatus)+2)
				for _, status := range history.AllStatuses() {
					if count, ok := stats.ByStatus[status]; ok {
						rows = append(rows, []string{statusLabel(status), fmt.Sprintf("%d", count)})
					}
				}
				rows = append(rows, []string{"Total", fmt.Sprintf("%d", stats.Total)})
				rows = append(rows, []string{"Disk usage", humanSize(stats.TotalSizeBytes)})
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{
						{title: "Status"},
						{title: "Count", align: alignRight},
					},
					rows,
				))
				return nil
			})
		},
	}
}

func newHistoryDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a single job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *history.Store) error {
				removed, err := store.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no job record with id %d", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted job record %d\n", id)
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every job record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to clear history without --yes")
			}
			return ctx.withStore(func(store *history.Store) error {
				removed, err := store.DeleteAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d job records\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm deletion of all records")
	return cmd
}

func renderRecords(records []*history.Record) string {
	if len(records) == 0 {
		return "No job records."
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			fmt.Sprintf("%d", rec.ID),
			rec.Title,
			statusLabel(rec.Status),
			humanSize(rec.FileSizeBytes),
			rec.StartedAt.Local().Format("2006-01-02 15:04"),
			durationLabel(rec.DurationSeconds),
		})
	}
	return renderTable(
		[]column{
			{title: "ID", align: alignRight},
			{title: "Title", widthMax: 42},
			{title: "Status"},
			{title: "Size", align: alignRight},
			{title: "Started"},
			{title: "Duration", align: alignRight},
		},
		rows,
	)
}

// statusLabel maps stored statuses to display names. The stored value is the
// wire format; the label is the only place the wording differs.
func statusLabel(status history.Status) string {
	switch status {
	case history.StatusInProgress:
		return "in progress"
	case history.StatusCompleted:
		return "completed"
	case history.StatusFailed:
		return "failed"
	case history.StatusCancelled:
		return "cancelled"
	case history.StatusConversionInterrupted:
		return "conversion interrupted"
	case history.StatusConversionCompleted:
		return "conversion completed"
	default:
		return string(status)
	}
}

func durationLabel(seconds *int64) string {
	if seconds == nil {
		return "-"
	}
	return (time.Duration(*seconds) * time.Second).String()
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
