package main

import (
	"github.com/aretw0/pipemirror/internal/cli"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete {workflow|instance|global} <key>",
	Short: "Delete an entity after confirming on the terminal",
	Long: `Deletes a workflow, instance or global variable. The command asks for
confirmation on the terminal; without one the delete is declined unless --yes
is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseKind(args[0])
		if err != nil {
			return err
		}
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		opts.Confirmer = cli.NewConfirmer(yes, cmd.OutOrStdout())
		return cli.RunDelete(cmd.Context(), opts, kind, args[1], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}
