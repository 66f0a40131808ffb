package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mkrall/clerk/internal/config"
	"github.com/mkrall/clerk/internal/llm"
	"github.com/mkrall/clerk/internal/planner"
)

var (
	planAsJSON bool
	planAsYAML bool
)

var planCmd = &cobra.Command{
	Use:   "plan [request]",
	Short: "Decompose a request without executing it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client, err := llm.NewClient(llm.ClientConfig{
			Model:       cfg.OpenAI.Model,
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   int64(cfg.OpenAI.MaxTokens),
			Timeout:     cfg.OpenAI.Timeout,
		})
		if err != nil {
			return err
		}

		plan, err := planner.New(client).Plan(context.Background(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		if planAsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(plan)
		}
		if planAsYAML {
			return yaml.NewEncoder(os.Stdout).Encode(plan)
		}

		printPlan(plan)
		for _, todo := range plan.Todos {
			fmt.Printf("%s: %s\n", todo.Title, todo.Description)
		}
		return nil
	},
}

func init() {
	planCmd.Flags().BoolVar(&planAsJSON, "json", false, "Print the plan as JSON")
	planCmd.Flags().BoolVar(&planAsYAML, "yaml", false, "Print the plan as YAML")
}
