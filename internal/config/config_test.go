package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the config reads so the host environment
// does not leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLM_API_KEY", "LLM_API_URL", "LLM_MODEL", "LLM_MAX_TOKENS", "LLM_TEMPERATURE",
		"LLM_TIMEOUT", "LLM_SITE_URL", "LLM_APP_NAME",
		"PHILBY_WORKSPACE", "PHILBY_CONTINUE_MODE", "PHILBY_MAX_CYCLES", "PHILBY_HISTORY_TURNS",
		"PHILBY_SNAPSHOT", "PHILBY_SYSTEM_PROMPT_FILE", "PHILBY_MAX_OUTCOME_BYTES", "PHILBY_COMMAND_TIMEOUT",
		"SEARCH_API_KEY", "SEARCH_API_URL", "LOG_LEVEL", "SETTINGS_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestNewFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.APIURL)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 120, cfg.LLM.Timeout)
	assert.Equal(t, ".", cfg.Agent.Workspace)
	assert.Equal(t, "auto", cfg.Agent.ContinueMode)
	assert.Equal(t, 0, cfg.Agent.MaxCycles)
	assert.Equal(t, 5, cfg.Agent.HistoryTurns)
	assert.False(t, cfg.Agent.Snapshot)
	assert.Equal(t, 16*1024, cfg.Agent.MaxOutcomeBytes)
	assert.Equal(t, 60, cfg.Agent.CommandTimeout)
	assert.Equal(t, "https://api.tavily.com/search", cfg.Search.APIURL)
	assert.Equal(t, "info", cfg.System.LogLevel)

	assert.Error(t, cfg.RequireLLM())
}

func TestNewFromEnv_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_API_KEY", "sk-test-key")
	t.Setenv("LLM_MODEL", "local/model")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("PHILBY_CONTINUE_MODE", "confirm")
	t.Setenv("PHILBY_MAX_CYCLES", "12")
	t.Setenv("PHILBY_SNAPSHOT", "true")
	t.Setenv("PHILBY_HISTORY_TURNS", "not-a-number")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.NoError(t, cfg.RequireLLM())
	assert.Equal(t, "local/model", cfg.LLM.Model)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, "confirm", cfg.Agent.ContinueMode)
	assert.Equal(t, 12, cfg.Agent.MaxCycles)
	assert.True(t, cfg.Agent.Snapshot)
	// unparsable values fall back to the default
	assert.Equal(t, 5, cfg.Agent.HistoryTurns)
}

func TestNewFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "continue mode", key: "PHILBY_CONTINUE_MODE", val: "sometimes"},
		{name: "negative max cycles", key: "PHILBY_MAX_CYCLES", val: "-1"},
		{name: "negative history", key: "PHILBY_HISTORY_TURNS", val: "-3"},
		{name: "zero command timeout", key: "PHILBY_COMMAND_TIMEOUT", val: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := NewFromEnv()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestWithWorkspace(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHILBY_WORKSPACE", "/from/env")

	cfg, err := NewFromEnv(WithWorkspace("/from/flag"))
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.Agent.Workspace)

	cfg, err = NewFromEnv(WithWorkspace(""))
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Agent.Workspace)
}

func TestLoad_DotEnvAndSettingsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LLM_MODEL=dotenv/model\nPHILBY_MAX_CYCLES=3\n"), 0o644))
	// godotenv sets variables for the whole process; restore them afterwards
	t.Setenv("LLM_MODEL", "")
	t.Setenv("PHILBY_MAX_CYCLES", "")
	require.NoError(t, os.Unsetenv("LLM_MODEL"))
	require.NoError(t, os.Unsetenv("PHILBY_MAX_CYCLES"))

	settingsFile := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(settingsFile, []byte(`{"continue_mode":"confirm","history_turns":0}`), 0o644))
	t.Setenv("SETTINGS_FILE", settingsFile)

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "dotenv/model", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Agent.MaxCycles)
	assert.Equal(t, "confirm", cfg.Agent.ContinueMode)
	assert.Equal(t, 0, cfg.Agent.HistoryTurns)
}

func TestLoad_MissingFilesAreFine(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("SETTINGS_FILE", filepath.Join(dir, "absent.json"))

	cfg, err := Load(filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.Agent.ContinueMode)
}

func TestLoad_InvalidSettingsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_cycles":-2}`), 0o644))
	t.Setenv("SETTINGS_FILE", path)

	_, err := Load("")
	assert.ErrorContains(t, err, "max_cycles")
}

func TestConfigString_MasksSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_API_KEY", "sk-verysecretvalue")
	t.Setenv("SEARCH_API_KEY", "short")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	s := cfg.String()
	assert.NotContains(t, s, "verysecretvalue")
	assert.Contains(t, s, "key=sk-v****")
	assert.Contains(t, s, "search{key=****}")
}
