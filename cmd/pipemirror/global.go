package main

import (
	"github.com/aretw0/pipemirror/internal/cli"
	"github.com/spf13/cobra"
)

var globalCmd = &cobra.Command{
	Use:   "global",
	Short: "Manage global variables",
}

var globalSetCmd = &cobra.Command{
	Use:   "set <name> <typename> <value>",
	Short: "Create or update a global variable",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		return cli.RunSetGlobal(cmd.Context(), opts, args[0], args[1], args[2], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(globalCmd)
	globalCmd.AddCommand(globalSetCmd)
}
