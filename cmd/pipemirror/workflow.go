package main

import (
	"github.com/aretw0/pipemirror/internal/cli"
	"github.com/spf13/cobra"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Create and edit workflows",
}

var workflowNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an empty workflow and print its UUID",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		notes, _ := cmd.Flags().GetString("notes")
		return cli.RunNewWorkflow(cmd.Context(), opts, name, notes, cmd.OutOrStdout())
	},
}

var workflowEditCmd = &cobra.Command{
	Use:   "edit <uuid>",
	Short: "Rename a workflow or replace its notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		var name, notes *string
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			name = &v
		}
		if cmd.Flags().Changed("notes") {
			v, _ := cmd.Flags().GetString("notes")
			notes = &v
		}
		return cli.RunEditWorkflow(cmd.Context(), opts, args[0], name, notes, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(workflowNewCmd, workflowEditCmd)

	workflowNewCmd.Flags().String("name", "", "Display name (defaults to the UUID)")
	workflowNewCmd.Flags().String("notes", "", "User notes")
	workflowEditCmd.Flags().String("name", "", "New display name")
	workflowEditCmd.Flags().String("notes", "", "New user notes")
}
