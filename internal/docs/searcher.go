package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mkrall/clerk/internal/interrupt"
	"github.com/mkrall/clerk/internal/loop"
	"github.com/mkrall/clerk/internal/tools"
	"github.com/mkrall/clerk/pkg/models"
)

const searcherPrompt = `You are a research assistant with a search tool over a local documentation library. Find material relevant to the topic, then reply with a concise digest of the useful parts. If nothing relevant turns up, say so plainly.`

// Searcher is a bounded sub-agent that digs through the library and
// distills what it finds into reference text for the main agent.
type Searcher struct {
	loop *loop.Loop
}

// NewSearcher wires a search tool over lib into its own conversation
// loop.
func NewSearcher(client loop.Chatter, lib *Library, interrupts *interrupt.Controller) (*Searcher, error) {
	reg := tools.NewRegistry()
	err := reg.Register(tools.Definition{
		Name:        "docs_search",
		Description: "Search the local documentation library. Returns excerpts from the best-matching documents.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search terms",
				},
			},
			"required": []string{"query"},
		},
		Handler: searchHandler(lib),
	})
	if err != nil {
		return nil, err
	}

	return &Searcher{loop: loop.New(client, reg, nil, interrupts)}, nil
}

// Lookup runs the sub-agent for one topic and returns its digest.
func (s *Searcher) Lookup(ctx context.Context, topic string) (string, error) {
	history := []models.Message{
		models.SystemMessage(searcherPrompt),
		models.UserMessage("Topic: " + topic),
	}
	_, digest, err := s.loop.Run(ctx, history)
	if err != nil {
		return "", fmt.Errorf("docs: lookup failed: %w", err)
	}
	return digest, nil
}

func searchHandler(lib *Library) tools.Handler {
	return func(ctx context.Context, args json.RawMessage) models.ToolResult {
		var params struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return models.ToolResult{Success: false, Error: fmt.Sprintf("invalid arguments: %v", err)}
		}

		snippets, err := lib.Search(params.Query, 3)
		if err != nil {
			return models.ToolResult{Success: false, Error: err.Error()}
		}
		if len(snippets) == 0 {
			return models.ToolResult{Success: true, Output: "no matching documents"}
		}

		var b strings.Builder
		for _, s := range snippets {
			fmt.Fprintf(&b, "== %s ==\n%s\n\n", s.File, s.Excerpt)
		}
		return models.ToolResult{Success: true, Output: strings.TrimSpace(b.String())}
	}
}
