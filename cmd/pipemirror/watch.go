package main

import (
	"context"

	"github.com/aretw0/pipemirror/internal/cli"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Mirror the server and print every change",
	Long: `Loads every collection, follows the event stream and prints each change until
interrupted or until the server announces it is shutting down.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("metrics-addr") {
			opts.Config.Metrics.Addr, _ = cmd.Flags().GetString("metrics-addr")
		}
		if cmd.Flags().Changed("snapshot") {
			opts.Config.Snapshot.Backend, _ = cmd.Flags().GetString("snapshot")
			if err := opts.Config.Validate(); err != nil {
				return err
			}
		}
		quiet, _ := cmd.Flags().GetBool("quiet")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.RunWatch(sigCtx, cli.WatchOptions{Options: opts, Quiet: quiet}, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	watchCmd.Flags().String("snapshot", "", "Snapshot backend for warm starts: none, file or redis")
	watchCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
