package main

import (
	"github.com/aretw0/pipemirror/internal/cli"
	"github.com/spf13/cobra"
)

var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Edit running instances",
}

var instanceSetCmd = &cobra.Command{
	Use:   "set <uuid> name=value...",
	Short: "Change variables of an instance",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		return cli.RunSetInstanceVars(cmd.Context(), opts, args[0], args[1:], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(instanceCmd)
	instanceCmd.AddCommand(instanceSetCmd)
}
