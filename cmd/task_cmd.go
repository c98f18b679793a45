package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/philby/internal/service"
)

func taskCmd(c *cli) *cobra.Command {
	var fromFile string
	cmd := &cobra.Command{
		Use:   "task [text]",
		Short: "Start a fresh task (keeps the purpose and the audit log)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := readTextArg(cmd, args, fromFile)
			if err != nil {
				return err
			}
			svc, err := c.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.StartTask(task); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task set in %s\n", svc.Workspace().Root())
			return nil
		},
	}
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "read the task from a file (- for stdin)")
	return cmd
}

func purposeCmd(c *cli) *cobra.Command {
	var clearPurpose bool
	var fromFile string
	cmd := &cobra.Command{
		Use:   "purpose [text]",
		Short: "Set the standing purpose included in every cycle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			purpose := ""
			if !clearPurpose {
				var err error
				if purpose, err = readTextArg(cmd, args, fromFile); err != nil {
					return err
				}
			}
			svc, err := c.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.SetPurpose(purpose); err != nil {
				return err
			}
			if purpose == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Purpose cleared")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Purpose set")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearPurpose, "clear", false, "remove the purpose")
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "read the purpose from a file (- for stdin)")
	return cmd
}

func stopCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask a running loop to halt after its current cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.RequestStop(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stop requested")
			return nil
		},
	}
}

// readTextArg takes text from the single positional argument or from a file
func readTextArg(cmd *cobra.Command, args []string, fromFile string) (string, error) {
	switch {
	case fromFile != "" && len(args) > 0:
		return "", service.NewError(service.ErrValidation, "give either text or --file, not both")
	case fromFile == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", service.WrapError(err, service.ErrValidation, "read stdin")
		}
		return strings.TrimSpace(string(data)), nil
	case fromFile != "":
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return "", service.WrapError(err, service.ErrValidation, "read "+fromFile)
		}
		return strings.TrimSpace(string(data)), nil
	case len(args) == 1:
		return strings.TrimSpace(args[0]), nil
	default:
		return "", service.NewError(service.ErrValidation, "text is required")
	}
}
