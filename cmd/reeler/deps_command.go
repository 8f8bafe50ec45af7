package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reeler/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check that required external tools are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))

			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = status.Detail
				}
				required := "required"
				if status.Optional {
					required = "optional"
				}
				rows = append(rows, []string{status.Name, status.Command, required, state})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{
					{title: "Tool"},
					{title: "Command"},
					{title: "Kind"},
					{title: "Status"},
				},
				rows,
			))

			pathStatuses := deps.CheckPaths(cfg)
			pathRows := make([][]string, 0, len(pathStatuses))
			for _, status := range pathStatuses {
				state := "ok"
				if !status.Available {
					state = status.Detail
				}
				pathRows = append(pathRows, []string{status.Name, status.Path, state})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{
					{title: "Directory"},
					{title: "Path", widthMax: 60},
					{title: "Status"},
				},
				pathRows,
			))

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required tool(s) missing", len(missing))
			}
			if missing := deps.MissingPaths(pathStatuses); len(missing) > 0 {
				return fmt.Errorf("%d pipeline director(ies) unusable", len(missing))
			}
			return nil
		},
	}
}
