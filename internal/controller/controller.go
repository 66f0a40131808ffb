// Package controller runs a plan: it orders TODOs by their dependencies
// and drives each one through a gather, act, verify cycle with bounded
// retries. One TODO failing never aborts the run; its dependents are
// skipped and everything else continues.
package controller

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mkrall/clerk/internal/graph"
	"github.com/mkrall/clerk/internal/interrupt"
	"github.com/mkrall/clerk/internal/llm"
	"github.com/mkrall/clerk/pkg/models"
)

// DefaultMaxAttempts bounds the act/verify cycle per TODO.
const DefaultMaxAttempts = 3

const executorPrompt = `You are an office automation agent. Complete the task you are given using the available tools, then report in plain text what you did and the outcome. Work only on the task at hand.`

// Chatter is the model surface the verifier needs.
type Chatter interface {
	ChatWithRetry(ctx context.Context, history []models.Message, defs []llm.ToolDefinition, maxRetries int) (*llm.Response, error)
}

// TaskRunner executes one tool-calling conversation to completion.
type TaskRunner interface {
	Run(ctx context.Context, history []models.Message) ([]models.Message, string, error)
}

// DocsLookup fetches reference material for a TODO before work starts.
type DocsLookup interface {
	Lookup(ctx context.Context, topic string) (string, error)
}

// Recorder persists run progress. Implementations must tolerate being
// called for every status transition.
type Recorder interface {
	RecordTodo(todo *models.TodoItem) error
}

// Summary aggregates the outcome of a run.
type Summary struct {
	Completed int
	Failed    int
	Skipped   int
	// Failures holds one line per failed TODO.
	Failures []string
}

// Report renders the summary as a short human-readable block.
func (s *Summary) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d completed, %d failed, %d skipped", s.Completed, s.Failed, s.Skipped)
	for _, f := range s.Failures {
		b.WriteString("\n  ")
		b.WriteString(f)
	}
	return b.String()
}

// Controller executes plans sequentially.
type Controller struct {
	runner     TaskRunner
	verifier   *Verifier
	docs       DocsLookup
	recorder   Recorder
	interrupts *interrupt.Controller

	// MaxAttempts is the per-TODO act/verify budget.
	MaxAttempts int
}

// New creates a controller. docs and recorder may be nil.
func New(runner TaskRunner, verifier *Verifier, docs DocsLookup, recorder Recorder, interrupts *interrupt.Controller) *Controller {
	return &Controller{
		runner:      runner,
		verifier:    verifier,
		docs:        docs,
		recorder:    recorder,
		interrupts:  interrupts,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// SetRecorder attaches run persistence. Call before ExecuteAll.
func (c *Controller) SetRecorder(r Recorder) {
	c.recorder = r
}

// ExecuteAll runs every TODO in dependency order. It returns the summary
// together with an error only when the run was interrupted; individual
// TODO failures are reported through the summary.
func (c *Controller) ExecuteAll(ctx context.Context, plan *models.Plan) (*Summary, error) {
	order := c.executionOrder(plan)
	summary := &Summary{}
	byID := make(map[string]*models.TodoItem, len(plan.Todos))
	for _, todo := range plan.Todos {
		byID[todo.ID] = todo
	}

	// Results of completed TODOs, shared forward so later TODOs see what
	// already happened. Grows only.
	var runContext []string

	for _, id := range order {
		todo := byID[id]

		if err := c.interrupts.Check(); err != nil {
			return summary, err
		}

		if blocked, reason := c.blockedByFailure(todo, byID); blocked {
			todo.Status = models.TodoStatusSkipped
			todo.Error = reason
			c.record(todo)
			summary.Skipped++
			log.Printf("[controller] skipping %s: %s", todo.ID, reason)
			continue
		}

		result, err := c.executeTodo(ctx, todo, runContext)
		if err != nil {
			if interrupt.IsInterrupted(err) || llm.IsInterrupted(err) {
				return summary, err
			}
			todo.Status = models.TodoStatusFailed
			todo.Error = err.Error()
			c.record(todo)
			summary.Failed++
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %v", todo.Title, err))
			continue
		}

		todo.Status = models.TodoStatusCompleted
		todo.Result = result
		c.record(todo)
		summary.Completed++
		runContext = append(runContext, fmt.Sprintf("%s: %s", todo.Title, result))
	}

	return summary, nil
}

// executionOrder resolves dependency order, falling back to the plan's
// own ordering when the dependency graph is cyclic.
func (c *Controller) executionOrder(plan *models.Plan) []string {
	g := graph.New()
	if err := g.Build(plan.Todos); err != nil {
		log.Printf("[controller] dependency graph unusable (%v), using plan order", err)
		order := make([]string, 0, len(plan.Todos))
		for _, todo := range plan.Todos {
			order = append(order, todo.ID)
		}
		return order
	}
	order, err := g.TopologicalSort()
	if err != nil {
		// Build already checked for cycles, so this cannot happen.
		order = order[:0]
		for _, todo := range plan.Todos {
			order = append(order, todo.ID)
		}
	}
	return order
}

func (c *Controller) blockedByFailure(todo *models.TodoItem, byID map[string]*models.TodoItem) (bool, string) {
	for _, depID := range todo.Dependencies {
		dep, ok := byID[depID]
		if !ok {
			continue
		}
		switch dep.Status {
		case models.TodoStatusFailed:
			return true, fmt.Sprintf("dependency %s failed", dep.Title)
		case models.TodoStatusSkipped:
			return true, fmt.Sprintf("dependency %s was skipped", dep.Title)
		}
	}
	return false, ""
}

// executeTodo drives one TODO through gather, act, verify with a bounded
// retry budget. Verifier feedback from a rejected attempt is folded into
// the next one.
func (c *Controller) executeTodo(ctx context.Context, todo *models.TodoItem, runContext []string) (string, error) {
	now := time.Now()
	todo.Status = models.TodoStatusInProgress
	todo.StartedAt = &now
	c.record(todo)
	defer func() {
		done := time.Now()
		todo.CompletedAt = &done
	}()

	log.Printf("[controller] starting %s: %s", todo.ID, todo.Title)

	reference := c.gatherDocs(ctx, todo)

	var feedback string
	var lastErr error
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		if err := c.interrupts.Check(); err != nil {
			return "", err
		}

		history := c.buildHistory(todo, runContext, reference, feedback)
		_, answer, err := c.runner.Run(ctx, history)
		if err != nil {
			if interrupt.IsInterrupted(err) || llm.IsInterrupted(err) {
				return "", err
			}
			lastErr = err
			log.Printf("[controller] %s attempt %d/%d failed: %v", todo.ID, attempt, c.MaxAttempts, err)
			continue
		}

		if c.verifier == nil {
			return answer, nil
		}
		complete, verifierFeedback, err := c.verifier.Verify(ctx, todo, answer)
		if err != nil {
			if interrupt.IsInterrupted(err) || llm.IsInterrupted(err) {
				return "", err
			}
			// Verification being unavailable should not discard real
			// work; accept the attempt.
			log.Printf("[controller] %s: verifier unavailable, accepting result: %v", todo.ID, err)
			return answer, nil
		}
		if complete {
			return answer, nil
		}

		feedback = verifierFeedback
		lastErr = fmt.Errorf("verification rejected the work: %s", verifierFeedback)
		log.Printf("[controller] %s attempt %d/%d incomplete: %s", todo.ID, attempt, c.MaxAttempts, verifierFeedback)
	}

	return "", fmt.Errorf("exhausted %d attempts: %w", c.MaxAttempts, lastErr)
}

// gatherDocs runs the reference lookup for TODOs that asked for it.
// Lookup failures are logged and ignored; the agent works from what it
// knows.
func (c *Controller) gatherDocs(ctx context.Context, todo *models.TodoItem) string {
	if !todo.NeedsDocs || c.docs == nil {
		return ""
	}
	reference, err := c.docs.Lookup(ctx, todo.Title+": "+todo.Description)
	if err != nil {
		log.Printf("[controller] %s: docs lookup failed: %v", todo.ID, err)
		return ""
	}
	return reference
}

func (c *Controller) buildHistory(todo *models.TodoItem, runContext []string, reference, feedback string) []models.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n%s", todo.Title, todo.Description)
	if len(runContext) > 0 {
		b.WriteString("\n\nAlready done earlier in this run:\n")
		for _, line := range runContext {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	if reference != "" {
		b.WriteString("\n\nReference material:\n")
		b.WriteString(reference)
	}
	if feedback != "" {
		b.WriteString("\n\nA previous attempt was rejected by review: ")
		b.WriteString(feedback)
		b.WriteString("\nAddress this before reporting completion.")
	}

	return []models.Message{
		models.SystemMessage(executorPrompt),
		models.UserMessage(b.String()),
	}
}

func (c *Controller) record(todo *models.TodoItem) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordTodo(todo); err != nil {
		log.Printf("[controller] recording %s failed: %v", todo.ID, err)
	}
}
