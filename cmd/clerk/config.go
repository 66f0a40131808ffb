package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkrall/clerk/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify clerk configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/clerk/config.yaml
Project-specific overrides can be placed in .clerk.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

func displayAllConfig(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.OpenAI.APIKey != "" {
		apiKeyDisplay = "****"
	}
	baseURL := cfg.OpenAI.BaseURL
	if baseURL == "" {
		baseURL = "(default)"
	}

	fmt.Printf("openai.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("openai.base_url: %s\n", baseURL)
	fmt.Printf("openai.model: %s\n", cfg.OpenAI.Model)
	fmt.Printf("openai.temperature: %g\n", cfg.OpenAI.Temperature)
	fmt.Printf("openai.max_tokens: %d\n", cfg.OpenAI.MaxTokens)
	fmt.Printf("openai.timeout: %s\n", cfg.OpenAI.Timeout)
	fmt.Printf("office.base_url: %s\n", cfg.Office.BaseURL)
	fmt.Printf("office.timeout: %s\n", cfg.Office.Timeout)
	fmt.Printf("docs.dir: %s\n", cfg.Docs.Dir)
	fmt.Printf("docs.concurrency: %d\n", cfg.Docs.Concurrency)
	fmt.Printf("execution.max_turns: %d\n", cfg.Execution.MaxTurns)
	fmt.Printf("execution.max_attempts: %d\n", cfg.Execution.MaxAttempts)
	fmt.Printf("execution.supervised: %t\n", cfg.Execution.Supervised)
}

func displayConfigKey(cfg *config.Config, key string) {
	switch key {
	case "openai.api_key":
		if cfg.OpenAI.APIKey != "" {
			fmt.Println("****")
		} else {
			fmt.Println("(not set)")
		}
	case "openai.base_url":
		fmt.Println(cfg.OpenAI.BaseURL)
	case "openai.model":
		fmt.Println(cfg.OpenAI.Model)
	case "openai.temperature":
		fmt.Printf("%g\n", cfg.OpenAI.Temperature)
	case "openai.max_tokens":
		fmt.Println(cfg.OpenAI.MaxTokens)
	case "openai.timeout":
		fmt.Println(cfg.OpenAI.Timeout)
	case "office.base_url":
		fmt.Println(cfg.Office.BaseURL)
	case "office.timeout":
		fmt.Println(cfg.Office.Timeout)
	case "docs.dir":
		fmt.Println(cfg.Docs.Dir)
	case "docs.concurrency":
		fmt.Println(cfg.Docs.Concurrency)
	case "execution.max_turns":
		fmt.Println(cfg.Execution.MaxTurns)
	case "execution.max_attempts":
		fmt.Println(cfg.Execution.MaxAttempts)
	case "execution.supervised":
		fmt.Println(cfg.Execution.Supervised)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}
}

func setConfigKey(cfg *config.Config, key, value string) {
	var err error
	switch key {
	case "openai.api_key":
		cfg.OpenAI.APIKey = value
	case "openai.base_url":
		cfg.OpenAI.BaseURL = value
	case "openai.model":
		cfg.OpenAI.Model = value
	case "openai.temperature":
		cfg.OpenAI.Temperature, err = strconv.ParseFloat(value, 64)
	case "openai.max_tokens":
		cfg.OpenAI.MaxTokens, err = strconv.Atoi(value)
	case "openai.timeout":
		cfg.OpenAI.Timeout, err = time.ParseDuration(value)
	case "office.base_url":
		cfg.Office.BaseURL = value
	case "office.timeout":
		cfg.Office.Timeout, err = time.ParseDuration(value)
	case "docs.dir":
		cfg.Docs.Dir = value
	case "docs.concurrency":
		cfg.Docs.Concurrency, err = strconv.Atoi(value)
	case "execution.max_turns":
		cfg.Execution.MaxTurns, err = strconv.Atoi(value)
	case "execution.max_attempts":
		cfg.Execution.MaxAttempts, err = strconv.Atoi(value)
	case "execution.supervised":
		cfg.Execution.Supervised, err = strconv.ParseBool(value)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid value for %s: %v\n", key, err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s = %s\n", key, value)
}
