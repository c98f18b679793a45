package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/philby/internal/config"
	"github.com/MimeLyc/philby/internal/service"
)

func settingsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the JSON settings file that overrides the environment",
	}
	cmd.AddCommand(settingsShowCmd(c))
	cmd.AddCommand(settingsSetCmd(c))
	return cmd
}

func settingsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			if path := config.RuntimeSettingsFilePath(); path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "settings file: %s\n", path)
			}
			return nil
		},
	}
}

func settingsSetCmd(c *cli) *cobra.Command {
	var (
		path     string
		next     config.RuntimeSettings
		cycles   int
		history  int
		snapshot bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Merge the given values into the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = config.RuntimeSettingsFilePath()
			}
			if path == "" {
				return service.NewError(service.ErrValidation, "no settings file: pass --file or set SETTINGS_FILE")
			}

			current, err := config.LoadRuntimeSettingsFile(path)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return service.WrapError(err, service.ErrConfig, "read settings file")
			}
			if cmd.Flags().Changed("max-cycles") {
				next.MaxCycles = &cycles
			}
			if cmd.Flags().Changed("history-turns") {
				next.HistoryTurns = &history
			}
			if cmd.Flags().Changed("snapshot") {
				next.Snapshot = &snapshot
			}
			merged := mergeSettings(current, next)

			if err := config.WriteRuntimeSettingsFile(path, merged); err != nil {
				return service.WrapError(err, service.ErrValidation, "write settings file")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "settings file (default: $SETTINGS_FILE)")
	cmd.Flags().StringVar(&next.LLMAPIURL, "api-url", "", "LLM API URL")
	cmd.Flags().StringVar(&next.LLMModel, "model", "", "LLM model name")
	cmd.Flags().StringVar(&next.ContinueMode, "continue-mode", "", "auto or confirm")
	cmd.Flags().StringVar(&next.SystemPromptFile, "system-prompt-file", "", "file replacing the built-in instructions")
	cmd.Flags().IntVar(&cycles, "max-cycles", 0, "stop after N cycles, 0 is unlimited")
	cmd.Flags().IntVar(&history, "history-turns", 0, "past cycles replayed into the context")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "commit the workspace to git after each cycle")
	return cmd
}

// mergeSettings overlays the set fields of next onto current
func mergeSettings(current, next config.RuntimeSettings) config.RuntimeSettings {
	if next.LLMAPIURL != "" {
		current.LLMAPIURL = next.LLMAPIURL
	}
	if next.LLMAPIKey != "" {
		current.LLMAPIKey = next.LLMAPIKey
	}
	if next.LLMModel != "" {
		current.LLMModel = next.LLMModel
	}
	if next.ContinueMode != "" {
		current.ContinueMode = next.ContinueMode
	}
	if next.SystemPromptFile != "" {
		current.SystemPromptFile = next.SystemPromptFile
	}
	if next.MaxCycles != nil {
		current.MaxCycles = next.MaxCycles
	}
	if next.HistoryTurns != nil {
		current.HistoryTurns = next.HistoryTurns
	}
	if next.Snapshot != nil {
		current.Snapshot = next.Snapshot
	}
	return current
}
