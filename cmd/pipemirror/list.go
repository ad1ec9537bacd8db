package main

import (
	"github.com/aretw0/pipemirror/internal/cli"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:       "list {workflows|instances|globals|orphans}",
	Short:     "Print one collection",
	Args:      cobra.ExactArgs(1),
	ValidArgs: cli.ListTargets,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return cli.RunList(cmd.Context(), opts, args[0], asJSON, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Bool("json", false, "Print JSON keyed by identity")
}
