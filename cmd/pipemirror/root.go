package main

import (
	"fmt"
	"os"

	"github.com/aretw0/pipemirror/internal/cli"
	"github.com/aretw0/pipemirror/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pipemirror",
	Short: "pipemirror keeps a live mirror of a workflow pipeline server",
	Long: `pipemirror loads the workflows, instances and global variables of a pipeline
server, follows its event stream, and exposes the common actions from the shell.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "pipemirror.yaml", "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().StringP("server", "s", "", "API root of the pipeline server (overrides server.url)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error or off")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
}

// loadOptions reads the config file and environment, then applies flags.
func loadOptions(cmd *cobra.Command) (cli.Options, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, os.Environ())
	if err != nil {
		return cli.Options{}, err
	}

	if cmd.Flags().Changed("server") {
		cfg.Server.URL, _ = cmd.Flags().GetString("server")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}
	if err := cfg.Validate(); err != nil {
		return cli.Options{}, err
	}
	return cli.Options{Config: cfg}, nil
}
