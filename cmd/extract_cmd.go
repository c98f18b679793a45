package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/philby/internal/decision"
	"github.com/MimeLyc/philby/internal/service"
)

func extractCmd(c *cli) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract the decision from model output and print its canonical JSON",
		Long: `Run the decision extractor on a file (or stdin) and print the canonical
decision JSON. With --write the decision is also stored in the workspace
decision slot. Exit status is 2 when no valid decision can be extracted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 && args[0] != "-" {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return service.WrapError(err, service.ErrValidation, "read input")
			}

			dec, err := decision.Extract(string(data))
			if err != nil {
				if decision.IsSchemaError(err) {
					return service.WrapError(err, service.ErrSchema, "invalid decision")
				}
				return service.WrapError(err, service.ErrExtraction, "no decision found")
			}
			canonical, err := dec.JSON()
			if err != nil {
				return service.WrapError(err, service.ErrSchema, "encode decision")
			}

			if write {
				svc, err := c.openService(cmd)
				if err != nil {
					return err
				}
				defer svc.Close()
				if err := svc.Workspace().WriteDecision(canonical); err != nil {
					return service.WrapError(err, service.ErrPersistence, "write decision")
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(canonical))
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "also store the decision in the workspace decision slot")
	return cmd
}
