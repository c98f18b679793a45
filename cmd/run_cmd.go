package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/philby/internal/cycle"
	"github.com/MimeLyc/philby/internal/service"
)

func runCmd(c *cli) *cobra.Command {
	var (
		confirm   bool
		auto      bool
		maxCycles int
		dryRun    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run decision cycles until the task completes or the loop halts",
		Long: `Run decision cycles until a STOP marker appears, the operator declines to
continue, the cycle limit is reached or a cycle fails.

Exit status is 0 for a normal halt, 2 when the model output could not be
turned into a decision, and 1 for any other failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if confirm && auto {
				return service.NewError(service.ErrValidation, "--confirm and --auto are mutually exclusive")
			}
			opts := service.RunOptions{Script: dryRun}
			switch {
			case confirm:
				opts.Mode = cycle.ContinueConfirm
			case auto:
				opts.Mode = cycle.ContinueAuto
			}
			if cmd.Flags().Changed("max-cycles") {
				opts.MaxCycles = &maxCycles
			}

			svc, err := c.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Run(cmd.Context(), opts)
			if res.Cycles > 0 || err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s\n", res)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "ask before every further cycle")
	cmd.Flags().BoolVar(&auto, "auto", false, "continue without asking")
	cmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "stop after N cycles, 0 is unlimited")
	cmd.Flags().StringVar(&dryRun, "dry-run", "", "replay model replies from a script file instead of calling the LLM")
	return cmd
}
