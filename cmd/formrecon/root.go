package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

// newRoot returns the root command and the context its subcommands share, so
// main can reach the configured logger after Execute returns.
func newRoot() (*cobra.Command, *commandContext) {
	var configFlag string
	var envFiles []string
	var logLevel string

	ctx := newCommandContext(&configFlag, &envFiles, &logLevel)

	rootCmd := &cobra.Command{
		Use:           "formrecon",
		Short:         "Reconcile Form D offerings against Form ADV registrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Env files to load before reading FORMRECON_* variables (default .env,.env.local)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newScoreCommand())

	return rootCmd, ctx
}
