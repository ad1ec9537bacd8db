package main

import (
	"github.com/aretw0/pipemirror/internal/cli"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle {workflow|instance} <uuid>",
	Short: "Pause a running workflow or instance, or resume a paused one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseKind(args[0])
		if err != nil {
			return err
		}
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		return cli.RunToggle(cmd.Context(), opts, kind, args[1], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(toggleCmd)
}
