package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "trackmatch",
		Short:         "Find the audio link that best matches a song",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "TOML configuration file")

	rootCmd.AddCommand(newResolveCommand(ctx))
	rootCmd.AddCommand(newProvidersCommand(ctx))

	return rootCmd
}
