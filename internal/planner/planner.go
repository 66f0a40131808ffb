// Package planner turns a user request into a structured plan of TODO
// items with dependencies.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/mkrall/clerk/internal/llm"
	"github.com/mkrall/clerk/pkg/models"
)

// Chatter is the model surface the planner needs.
type Chatter interface {
	ChatWithRetry(ctx context.Context, history []models.Message, defs []llm.ToolDefinition, maxRetries int) (*llm.Response, error)
}

// Planner decomposes requests into plans.
type Planner struct {
	client Chatter
}

// New creates a planner backed by the given model client.
func New(client Chatter) *Planner {
	return &Planner{client: client}
}

type wirePlan struct {
	Todos         []wireTodo `json:"todos"`
	EstimatedTime string     `json:"estimatedTime"`
	Complexity    string     `json:"complexity"`
}

type wireTodo struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
	NeedsDocs    bool     `json:"needsDocs"`
}

// Plan asks the model to decompose the request. A response that is not
// valid plan JSON is a hard failure; the caller decides whether to re-run
// the whole decomposition.
func (p *Planner) Plan(ctx context.Context, request string) (*models.Plan, error) {
	history := []models.Message{
		models.SystemMessage(systemPrompt),
		models.UserMessage(request),
	}

	resp, err := p.client.ChatWithRetry(ctx, history, nil, llm.DefaultMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("planner: decomposition call failed: %w", err)
	}

	raw, ok := extractJSON(resp.Message.Content)
	if !ok {
		return nil, fmt.Errorf("planner: response contains no JSON object")
	}

	var wire wirePlan
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("planner: plan is not valid JSON: %w", err)
	}

	plan := &models.Plan{
		EstimatedTime: wire.EstimatedTime,
		Complexity:    wire.Complexity,
	}
	for _, t := range wire.Todos {
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		plan.Todos = append(plan.Todos, &models.TodoItem{
			ID:           id,
			Title:        t.Title,
			Description:  t.Description,
			Status:       models.TodoStatusPending,
			Dependencies: t.Dependencies,
			NeedsDocs:    t.NeedsDocs,
		})
	}

	if err := validate(plan); err != nil {
		return nil, err
	}

	log.Printf("[planner] decomposed request into %d todos (complexity %s)", len(plan.Todos), plan.Complexity)
	return plan, nil
}

// extractJSON returns the substring from the first '{' to the last '}'.
// Models often wrap the object in prose or a code fence despite the
// instructions.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
