package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/simkernel/scenarios"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available scenarios.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			for _, sc := range scenarios.All() {
				fmt.Fprintf(w, "%s\t%g\t%s\n",
					sc.Name, float64(sc.Horizon), sc.Description)
			}

			return w.Flush()
		},
	}
}
