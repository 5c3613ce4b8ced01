package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/simkernel/datarecording"
	"github.com/sarchlab/simkernel/tracing"
)

func newInspectCmd() *cobra.Command {
	inspect := &cobra.Command{
		Use:   "inspect <trace.sqlite3>",
		Short: "Summarize a recorded trace or print the rows of one table.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := datarecording.NewReader(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			if task, _ := cmd.Flags().GetString("task"); task != "" {
				milestones, err := tracing.ReadMilestones(cmd.Context(), reader, task)
				if err != nil {
					return err
				}

				return printRows(cmd, tracing.MilestoneTableName,
					milestones, len(milestones))
			}

			table, _ := cmd.Flags().GetString("table")
			if table == "" {
				return summarize(cmd, reader)
			}

			limit, _ := cmd.Flags().GetInt("limit")

			return printTable(cmd, reader, table,
				datarecording.QueryParams{Limit: limit, OrderBy: "rowid"})
		},
	}

	inspect.Flags().String("table", "", "Table to print the rows of.")
	inspect.Flags().Int("limit", 20, "Maximum number of rows to print.")
	inspect.Flags().String("task", "", "Task to print the milestones of.")

	return inspect
}

func summarize(cmd *cobra.Command, reader *datarecording.Reader) error {
	tables, err := reader.Tables(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	for _, table := range tables {
		count, err := reader.Count(cmd.Context(), table, datarecording.QueryParams{})
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s\t%d\n", table, count)
	}

	return w.Flush()
}

func printTable(
	cmd *cobra.Command,
	reader *datarecording.Reader,
	table string,
	params datarecording.QueryParams,
) error {
	ctx := cmd.Context()

	switch table {
	case tracing.TaskTableName:
		rows, total, err := tracing.ReadTasks(ctx, reader, params)
		if err != nil {
			return err
		}

		return printRows(cmd, table, rows, total)
	case tracing.MilestoneTableName:
		rows, total, err := datarecording.Query[tracing.Milestone](
			ctx, reader, table, params)
		if err != nil {
			return err
		}

		return printRows(cmd, table, rows, total)
	case tracing.EventTableName:
		rows, total, err := tracing.ReadEvents(ctx, reader, params)
		if err != nil {
			return err
		}

		return printRows(cmd, table, rows, total)
	case datarecording.ExecTableName:
		rows, total, err := datarecording.Query[datarecording.ExecInfo](
			ctx, reader, table, params)
		if err != nil {
			return err
		}

		return printRows(cmd, table, rows, total)
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

func printRows[T any](cmd *cobra.Command, table string, rows []T, total int) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()

	return enc.Encode(map[string]any{
		"table": table,
		"total": total,
		"rows":  rows,
	})
}
