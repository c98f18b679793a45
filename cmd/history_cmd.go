package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/philby/internal/persistence"
	"github.com/MimeLyc/philby/internal/prompt"
)

func historyCmd(c *cli) *cobra.Command {
	var (
		limit      int
		showRuns   bool
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded cycles (or runs) from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			out := cmd.OutOrStdout()
			if showRuns {
				runs, err := svc.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(out, runs)
				}
				printRuns(out, runs)
				return nil
			}

			entries, err := svc.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(out, entries)
			}
			fmt.Fprintln(out, svc.Describe())
			printCycles(out, entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries to show")
	cmd.Flags().BoolVar(&showRuns, "runs", false, "list runs instead of cycles")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printCycles(out io.Writer, entries []persistence.CycleEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No cycles recorded.")
		return
	}
	for _, entry := range entries {
		status := "ok"
		if entry.IsError {
			status = "error"
		}
		fmt.Fprintf(out, "\n%s  [%s]\n", entry.CreatedAt.Local().Format(time.DateTime), status)
		fmt.Fprintln(out, prompt.StepSummary(entry))
		fmt.Fprintf(out, "  Outcome: %s\n", oneLine(entry.Outcome, 160))
	}
}

func printRuns(out io.Writer, runs []persistence.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "STARTED\tMODE\tCYCLES\tHALT\tTASK\n")
	for _, run := range runs {
		halt := run.HaltReason
		if run.EndedAt == nil {
			halt = "(running or aborted)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.ContinueMode,
			run.Cycles,
			halt,
			oneLine(run.Task, 60),
		)
	}
	_ = tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
