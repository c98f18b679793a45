package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/MimeLyc/philby/pkg/file"
)

// RuntimeSettings is the JSON settings file. Set fields override the
// environment; zero values leave it alone.
type RuntimeSettings struct {
	LLMAPIURL        string `json:"llm_api_url,omitempty"`
	LLMAPIKey        string `json:"llm_api_key,omitempty"`
	LLMModel         string `json:"llm_model,omitempty"`
	ContinueMode     string `json:"continue_mode,omitempty"`
	MaxCycles        *int   `json:"max_cycles,omitempty"`
	HistoryTurns     *int   `json:"history_turns,omitempty"`
	Snapshot         *bool  `json:"snapshot,omitempty"`
	SystemPromptFile string `json:"system_prompt_file,omitempty"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", "")
}

func (s RuntimeSettings) Validate() error {
	if mode := strings.TrimSpace(s.ContinueMode); mode != "" && mode != "auto" && mode != "confirm" {
		return fmt.Errorf("continue_mode must be auto or confirm, got %q", s.ContinueMode)
	}
	if s.MaxCycles != nil && *s.MaxCycles < 0 {
		return fmt.Errorf("max_cycles must not be negative")
	}
	if s.HistoryTurns != nil && *s.HistoryTurns < 0 {
		return fmt.Errorf("history_turns must not be negative")
	}
	return nil
}

// RuntimeSettings captures the overridable part of the current config
func (c *Config) RuntimeSettings() RuntimeSettings {
	maxCycles := c.Agent.MaxCycles
	historyTurns := c.Agent.HistoryTurns
	snapshot := c.Agent.Snapshot
	return RuntimeSettings{
		LLMAPIURL:        c.LLM.APIURL,
		LLMAPIKey:        c.LLM.APIKey,
		LLMModel:         c.LLM.Model,
		ContinueMode:     c.Agent.ContinueMode,
		MaxCycles:        &maxCycles,
		HistoryTurns:     &historyTurns,
		Snapshot:         &snapshot,
		SystemPromptFile: c.Agent.SystemPromptFile,
	}
}

func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.LLMAPIURL) != "" {
			c.LLM.APIURL = settings.LLMAPIURL
		}
		if strings.TrimSpace(settings.LLMAPIKey) != "" {
			c.LLM.APIKey = settings.LLMAPIKey
		}
		if strings.TrimSpace(settings.LLMModel) != "" {
			c.LLM.Model = settings.LLMModel
		}
		if strings.TrimSpace(settings.ContinueMode) != "" {
			c.Agent.ContinueMode = settings.ContinueMode
		}
		if settings.MaxCycles != nil {
			c.Agent.MaxCycles = *settings.MaxCycles
		}
		if settings.HistoryTurns != nil {
			c.Agent.HistoryTurns = *settings.HistoryTurns
		}
		if settings.Snapshot != nil {
			c.Agent.Snapshot = *settings.Snapshot
		}
		if strings.TrimSpace(settings.SystemPromptFile) != "" {
			c.Agent.SystemPromptFile = settings.SystemPromptFile
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("settings file path is required")
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')
	return file.WriteAtomic(path, content, 0o600)
}
