package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the configured audio providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.newService(cmd)
			if err != nil {
				return err
			}
			providers := service.Providers()
			if wantsJSON(cmd.OutOrStdout(), jsonOutput) {
				return writeJSON(cmd, providers)
			}

			rows := make([][]string, 0, len(providers))
			for _, provider := range providers {
				enabled := "yes"
				if !provider.Enabled {
					enabled = "no"
				}
				rows = append(rows, []string{provider.Name, provider.Label, strings.Join(provider.Aliases, ", "), enabled})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Name", "Label", "Aliases", "Enabled"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}
