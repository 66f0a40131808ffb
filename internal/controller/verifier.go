package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkrall/clerk/internal/llm"
	"github.com/mkrall/clerk/pkg/models"
)

const verifierPrompt = `You are a strict reviewer. You will be given a task and the agent's report of what it did. Decide whether the task is actually complete.

Reply with exactly one line:
COMPLETE
or
INCOMPLETE: <what is missing or wrong>`

// Verifier judges whether a TODO's outcome actually satisfies the TODO.
type Verifier struct {
	client Chatter
}

// NewVerifier creates a verifier backed by the given model client.
func NewVerifier(client Chatter) *Verifier {
	return &Verifier{client: client}
}

// Verify returns whether the work is complete and, when it is not, the
// feedback to fold into the next attempt. An answer that fits neither
// verdict is treated as incomplete.
func (v *Verifier) Verify(ctx context.Context, todo *models.TodoItem, result string) (bool, string, error) {
	history := []models.Message{
		models.SystemMessage(verifierPrompt),
		models.UserMessage(fmt.Sprintf("Task: %s\n%s\n\nAgent report:\n%s", todo.Title, todo.Description, result)),
	}

	resp, err := v.client.ChatWithRetry(ctx, history, nil, llm.DefaultMaxRetries)
	if err != nil {
		return false, "", fmt.Errorf("verification call failed: %w", err)
	}

	verdict := strings.TrimSpace(resp.Message.Content)
	upper := strings.ToUpper(verdict)
	switch {
	case strings.HasPrefix(upper, "COMPLETE"):
		return true, "", nil
	case strings.HasPrefix(upper, "INCOMPLETE"):
		feedback := strings.TrimSpace(strings.TrimPrefix(verdict[len("INCOMPLETE"):], ":"))
		if feedback == "" {
			feedback = "the reviewer marked the work incomplete without detail"
		}
		return false, feedback, nil
	default:
		return false, verdict, nil
	}
}
