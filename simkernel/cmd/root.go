// Package cmd provides the command-line interface for simkernel.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "simkernel",
		Short: "simkernel runs discrete-event simulations.",
		Long: `simkernel runs the bundled discrete-event simulation scenarios ` +
			`and inspects the traces they record.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			levelName, _ := cmd.Flags().GetString("log-level")

			level, err := logrus.ParseLevel(levelName)
			if err != nil {
				return err
			}

			logrus.SetLevel(level)

			return nil
		},
	}

	root.PersistentFlags().String("log-level", "info",
		"Log level (trace, debug, info, warn, error).")

	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
