package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkrall/clerk/internal/config"
	"github.com/mkrall/clerk/internal/llm"
	"github.com/mkrall/clerk/pkg/models"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question, streaming the answer",
	Long:  `Sends a single question to the model with no tools and streams the answer to stdout. Useful for checking that the endpoint is reachable and the model responds.`,
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

		history := []models.Message{models.UserMessage(strings.Join(args, " "))}
		stream := client.StreamText(context.Background(), history)
		defer stream.Close()

		for stream.Next() {
			fmt.Print(stream.Text())
		}
		fmt.Println()
		return stream.Err()
	},
}
