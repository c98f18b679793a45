package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/MimeLyc/philby/pkg/log"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required for `philby run` without --dry-run)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-4o-mini)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 2000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.2)
// - LLM_TIMEOUT: Request timeout in seconds (default: 120)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Agent Configuration:
// - PHILBY_WORKSPACE: Workspace directory (default: current directory)
// - PHILBY_CONTINUE_MODE: auto or confirm (default: auto)
// - PHILBY_MAX_CYCLES: Stop after this many cycles, 0 is unlimited (default: 0)
// - PHILBY_HISTORY_TURNS: Past cycles replayed into the context (default: 5)
// - PHILBY_SNAPSHOT: Commit the workspace to git after each cycle (default: false)
// - PHILBY_SYSTEM_PROMPT_FILE: File replacing the built-in instructions (optional)
// - PHILBY_MAX_OUTCOME_BYTES: Tool output kept per outcome (default: 16384)
// - PHILBY_COMMAND_TIMEOUT: run_command timeout in seconds (default: 60)
//
// Search Configuration:
// - SEARCH_API_KEY: Tavily API key, enables the web_search tool (optional)
// - SEARCH_API_URL: Tavily API URL (default: https://api.tavily.com/search)
//
// System Configuration:
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - SETTINGS_FILE: JSON settings file overriding the environment (optional)

type Config struct {
	// LLM Configuration
	LLM LLMConfig `json:"llm"`

	// Agent Configuration
	Agent AgentConfig `json:"agent"`

	// Search Configuration (for web search tool)
	Search SearchConfig `json:"search"`

	// System Configuration
	System SystemConfig `json:"system"`
}

// LLMConfig holds the configuration for LLM client
// Supports any OpenAI-compatible provider (OpenRouter, OpenAI, local servers, etc.)
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

// AgentConfig holds the configuration of the decision loop
type AgentConfig struct {
	Workspace        string `json:"workspace"`
	ContinueMode     string `json:"continue_mode"`
	MaxCycles        int    `json:"max_cycles"`
	HistoryTurns     int    `json:"history_turns"`
	Snapshot         bool   `json:"snapshot"`
	SystemPromptFile string `json:"system_prompt_file"`
	MaxOutcomeBytes  int    `json:"max_outcome_bytes"`
	CommandTimeout   int    `json:"command_timeout"` // seconds
}

// SearchConfig holds the configuration for web search tool
type SearchConfig struct {
	APIKey string `json:"api_key"` // Tavily API key
	APIURL string `json:"api_url"` // Tavily API URL
}

// SystemConfig holds process level settings
type SystemConfig struct {
	LogLevel     string `json:"log_level"`
	SettingsFile string `json:"settings_file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// WithWorkspace overrides the workspace directory
func WithWorkspace(dir string) Option {
	return func(c *Config) {
		if strings.TrimSpace(dir) != "" {
			c.Agent.Workspace = dir
		}
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.2),
			Timeout:     getEnvInt("LLM_TIMEOUT", 120),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", "philby"),
		},
		Agent: AgentConfig{
			Workspace:        getEnvString("PHILBY_WORKSPACE", "."),
			ContinueMode:     getEnvString("PHILBY_CONTINUE_MODE", "auto"),
			MaxCycles:        getEnvInt("PHILBY_MAX_CYCLES", 0),
			HistoryTurns:     getEnvInt("PHILBY_HISTORY_TURNS", 5),
			Snapshot:         getEnvBool("PHILBY_SNAPSHOT", false),
			SystemPromptFile: getEnvString("PHILBY_SYSTEM_PROMPT_FILE", ""),
			MaxOutcomeBytes:  getEnvInt("PHILBY_MAX_OUTCOME_BYTES", 16*1024),
			CommandTimeout:   getEnvInt("PHILBY_COMMAND_TIMEOUT", 60),
		},
		Search: SearchConfig{
			APIKey: getEnvString("SEARCH_API_KEY", ""),
			APIURL: getEnvString("SEARCH_API_URL", "https://api.tavily.com/search"),
		},
		System: SystemConfig{
			LogLevel:     getEnvString("LOG_LEVEL", "info"),
			SettingsFile: getEnvString("SETTINGS_FILE", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %s", config)
	return config, nil
}

// Load reads envFile (missing is fine), then the environment, then the
// settings file named by SETTINGS_FILE when it exists. Later sources win.
func Load(envFile string, opts ...Option) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if path := RuntimeSettingsFilePath(); path != "" {
		settings, err := LoadRuntimeSettingsFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Debug("Settings file %s not found, using environment only", path)
		case err != nil:
			return nil, err
		default:
			opts = append([]Option{WithRuntimeSettings(settings)}, opts...)
		}
	}
	return NewFromEnv(opts...)
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Agent.ContinueMode)) {
	case "auto", "confirm":
	default:
		return fmt.Errorf("PHILBY_CONTINUE_MODE must be auto or confirm, got %q", c.Agent.ContinueMode)
	}
	if c.Agent.MaxCycles < 0 {
		return fmt.Errorf("PHILBY_MAX_CYCLES must not be negative")
	}
	if c.Agent.HistoryTurns < 0 {
		return fmt.Errorf("PHILBY_HISTORY_TURNS must not be negative")
	}
	if c.Agent.CommandTimeout <= 0 {
		return fmt.Errorf("PHILBY_COMMAND_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.Agent.Workspace) == "" {
		return fmt.Errorf("PHILBY_WORKSPACE is required")
	}
	return nil
}

// RequireLLM reports whether a live model can be called with this config
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	return nil
}

// String renders the config with secrets masked
func (c *Config) String() string {
	return fmt.Sprintf(
		"llm{url=%s model=%s key=%s timeout=%ds} agent{workspace=%s mode=%s max_cycles=%d history=%d snapshot=%t} search{key=%s}",
		c.LLM.APIURL, c.LLM.Model, mask(c.LLM.APIKey), c.LLM.Timeout,
		c.Agent.Workspace, c.Agent.ContinueMode, c.Agent.MaxCycles, c.Agent.HistoryTurns, c.Agent.Snapshot,
		mask(c.Search.APIKey),
	)
}

func mask(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
