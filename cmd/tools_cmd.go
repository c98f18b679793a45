package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func toolsCmd(c *cli) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the model can call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			defs := svc.Registry().Definitions()
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), defs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "NAME\tDESCRIPTION\n")
			for _, def := range defs {
				fmt.Fprintf(tw, "%s\t%s\n", def.Name, oneLine(def.Description, 100))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output definitions with their argument schemas as JSON")
	return cmd
}
