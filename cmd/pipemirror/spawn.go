package main

import (
	"github.com/aretw0/pipemirror/internal/cli"
	"github.com/spf13/cobra"
)

var spawnCmd = &cobra.Command{
	Use:   "spawn <workflow-uuid>",
	Short: "Start a new instance of a workflow",
	Long: `Starts a new instance seeded with the workflow's setup variables. Use --set
to override individual values; the variable type is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		sets, _ := cmd.Flags().GetStringArray("set")
		return cli.RunSpawn(cmd.Context(), opts, args[0], sets, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(spawnCmd)
	spawnCmd.Flags().StringArray("set", nil, "Override a setup variable (name=value), repeatable")
}
