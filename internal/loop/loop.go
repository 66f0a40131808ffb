// Package loop implements the tool-calling conversation loop: call the
// model, execute the single tool call it requests, feed the result back,
// repeat until the model answers in plain text.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mkrall/clerk/internal/interrupt"
	"github.com/mkrall/clerk/internal/llm"
	"github.com/mkrall/clerk/internal/tools"
	"github.com/mkrall/clerk/pkg/models"
)

// MaxToolOutputBytes caps how much of a tool's output is fed back to the
// model in a single turn.
const MaxToolOutputBytes = 50000

// DefaultMaxTurns bounds task-execution loops. Interactive loops run
// unbounded (MaxTurns = 0).
const DefaultMaxTurns = 15

const truncationNotice = "\n[output truncated]"

const summarizePrompt = "Turn limit reached. Stop using tools and summarize what you accomplished and what, if anything, remains unfinished."

// Chatter is the model surface the loop needs.
type Chatter interface {
	ChatWithRetry(ctx context.Context, history []models.Message, defs []llm.ToolDefinition, maxRetries int) (*llm.Response, error)
}

// Loop drives one conversation against a fixed tool registry.
type Loop struct {
	client     Chatter
	registry   *tools.Registry
	approver   tools.Approver
	interrupts *interrupt.Controller

	// MaxTurns caps the number of model calls; 0 means unbounded. When
	// the cap is hit the loop makes one final call without tools asking
	// the model to summarize.
	MaxTurns int
}

// New creates a loop. A nil approver means every tool call proceeds.
func New(client Chatter, registry *tools.Registry, approver tools.Approver, interrupts *interrupt.Controller) *Loop {
	if approver == nil {
		approver = tools.AutoApprover{}
	}
	return &Loop{
		client:     client,
		registry:   registry,
		approver:   approver,
		interrupts: interrupts,
		MaxTurns:   DefaultMaxTurns,
	}
}

// Run executes the conversation until the model produces a plain text
// answer. It returns the extended history and the final assistant text.
// History is append-only: the input slice is never modified in place
// beyond appending.
func (l *Loop) Run(ctx context.Context, history []models.Message) ([]models.Message, string, error) {
	if err := l.interrupts.Check(); err != nil {
		return history, "", err
	}
	ctx, release := l.interrupts.Bind(ctx)
	defer release()

	defs := l.registry.Definitions()
	// Keyed by tool name plus raw arguments; only successful calls are
	// recorded, so a failed call may legitimately be retried verbatim.
	completed := make(map[string]bool)

	for turn := 1; ; turn++ {
		if l.MaxTurns > 0 && turn > l.MaxTurns {
			return l.summarize(ctx, history)
		}

		resp, err := l.client.ChatWithRetry(ctx, history, defs, llm.DefaultMaxRetries)
		if err != nil {
			return history, "", err
		}
		if err := l.interrupts.Check(); err != nil {
			return history, "", err
		}

		history = append(history, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			return history, resp.Message.Content, nil
		}

		// One call per turn. The request disables parallel calls, so
		// anything past the first is ignored.
		call := resp.Message.ToolCalls[0]
		log.Printf("[loop] turn %d: tool call %s", turn, call.Name)

		result := l.handleCall(ctx, call, completed)
		history = append(history, models.ToolMessage(call.ID, formatResult(result)))
	}
}

// handleCall runs one tool call through argument validation, duplicate
// suppression, the approval gate, and finally the registry.
func (l *Loop) handleCall(ctx context.Context, call models.ToolCall, completed map[string]bool) models.ToolResult {
	if !json.Valid([]byte(call.Arguments)) {
		return models.ToolResult{
			Success: false,
			Error:   fmt.Sprintf("arguments for %s are not valid JSON; re-issue the call with a well-formed JSON object", call.Name),
		}
	}

	key := call.Name + "\x00" + call.Arguments
	if completed[key] {
		return models.ToolResult{
			Success: true,
			Output:  fmt.Sprintf("%s was already executed with these exact arguments and succeeded; not repeating it. Use the earlier result.", call.Name),
		}
	}

	if def, ok := l.registry.Lookup(call.Name); ok && def.Mutating {
		decision, err := l.approver.RequestApproval(call.Name, json.RawMessage(call.Arguments))
		if err != nil {
			return models.ToolResult{Success: false, Error: fmt.Sprintf("approval check failed: %v", err)}
		}
		if !decision.Approved {
			msg := "call rejected by the operator"
			if decision.Comment != "" {
				msg = fmt.Sprintf("%s: %s", msg, decision.Comment)
			}
			return models.ToolResult{Success: false, Error: msg}
		}
	}

	result := l.registry.Execute(ctx, call.Name, json.RawMessage(call.Arguments))
	if result.Success {
		completed[key] = true
	}
	return result
}

// summarize makes one final model call without tools so a capped run still
// ends with a coherent answer.
func (l *Loop) summarize(ctx context.Context, history []models.Message) ([]models.Message, string, error) {
	log.Printf("[loop] turn limit reached, requesting summary")
	history = append(history, models.UserMessage(summarizePrompt))

	resp, err := l.client.ChatWithRetry(ctx, history, nil, llm.DefaultMaxRetries)
	if err != nil {
		return history, "", err
	}
	history = append(history, resp.Message)
	return history, resp.Message.Content, nil
}

// formatResult renders a tool outcome as the tool message content,
// truncating oversized output.
func formatResult(result models.ToolResult) string {
	if !result.Success {
		return "error: " + truncate(result.Error)
	}
	if result.Output == "" {
		return "ok"
	}
	return truncate(result.Output)
}

func truncate(s string) string {
	if len(s) <= MaxToolOutputBytes {
		return s
	}
	return s[:MaxToolOutputBytes] + truncationNotice
}
