package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/pipemirror"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of pipemirror",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pipemirror version %s\n", strings.TrimSpace(pipemirror.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
