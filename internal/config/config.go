// Package config handles configuration loading for clerk.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for clerk.
type Config struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Office    OfficeConfig    `mapstructure:"office"`
	Docs      DocsConfig      `mapstructure:"docs"`
	Execution ExecutionConfig `mapstructure:"execution"`
}

// OpenAIConfig holds model endpoint settings. BaseURL may point at any
// server that speaks the chat completion protocol.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// OfficeConfig holds office server settings.
type OfficeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DocsConfig holds the reference library settings.
type DocsConfig struct {
	Dir         string   `mapstructure:"dir"`
	Sources     []string `mapstructure:"sources"`
	Concurrency int      `mapstructure:"concurrency"`
}

// ExecutionConfig holds loop and retry limits.
type ExecutionConfig struct {
	MaxTurns    int  `mapstructure:"max_turns"`
	MaxAttempts int  `mapstructure:"max_attempts"`
	Supervised  bool `mapstructure:"supervised"`
}

// Load loads configuration with the usual precedence:
// 1. Environment variables (OPENAI_API_KEY, CLERK_*)
// 2. Project config (.clerk.yaml in the current directory or a parent)
// 3. User config (~/.config/clerk/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CLERK")
	v.AutomaticEnv()
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("openai.model", "CLERK_MODEL")
	v.BindEnv("office.base_url", "CLERK_OFFICE_URL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.OpenAI.APIKey = os.ExpandEnv(cfg.OpenAI.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.OpenAI.APIKey = os.ExpandEnv(cfg.OpenAI.APIKey)
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("openai.api_key", cfg.OpenAI.APIKey)
	v.Set("openai.base_url", cfg.OpenAI.BaseURL)
	v.Set("openai.model", cfg.OpenAI.Model)
	v.Set("openai.temperature", cfg.OpenAI.Temperature)
	v.Set("openai.max_tokens", cfg.OpenAI.MaxTokens)
	v.Set("openai.timeout", cfg.OpenAI.Timeout.String())
	v.Set("office.base_url", cfg.Office.BaseURL)
	v.Set("office.timeout", cfg.Office.Timeout.String())
	v.Set("docs.dir", cfg.Docs.Dir)
	v.Set("docs.sources", cfg.Docs.Sources)
	v.Set("docs.concurrency", cfg.Docs.Concurrency)
	v.Set("execution.max_turns", cfg.Execution.MaxTurns)
	v.Set("execution.max_attempts", cfg.Execution.MaxAttempts)
	v.Set("execution.supervised", cfg.Execution.Supervised)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path of the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("openai.max_tokens", 4096)
	v.SetDefault("openai.timeout", "10m")

	v.SetDefault("office.base_url", "http://localhost:8765")
	v.SetDefault("office.timeout", "60s")

	v.SetDefault("docs.dir", defaultDocsDir())
	v.SetDefault("docs.sources", []string{})
	v.SetDefault("docs.concurrency", 20)

	v.SetDefault("execution.max_turns", 15)
	v.SetDefault("execution.max_attempts", 3)
	v.SetDefault("execution.supervised", false)
}

func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "clerk")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "clerk")
	}
	return filepath.Join(home, ".config", "clerk")
}

func defaultDocsDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "clerk", "docs")
}

// findProjectConfig searches for .clerk.yaml in the current directory and
// its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".clerk.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o",
			Temperature: 0.2,
			MaxTokens:   4096,
			Timeout:     10 * time.Minute,
		},
		Office: OfficeConfig{
			BaseURL: "http://localhost:8765",
			Timeout: 60 * time.Second,
		},
		Docs: DocsConfig{
			Dir:         defaultDocsDir(),
			Concurrency: 20,
		},
		Execution: ExecutionConfig{
			MaxTurns:    15,
			MaxAttempts: 3,
		},
	}
}
