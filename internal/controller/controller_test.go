package controller

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mkrall/clerk/internal/interrupt"
	"github.com/mkrall/clerk/internal/llm"
	"github.com/mkrall/clerk/pkg/models"
)

// fakeRunner answers each conversation from a per-task script keyed by
// the task title found in the user message.
type fakeRunner struct {
	answers   map[string]string
	failures  map[string]error
	histories [][]models.Message
}

func (f *fakeRunner) Run(ctx context.Context, history []models.Message) ([]models.Message, string, error) {
	f.histories = append(f.histories, history)
	prompt := history[len(history)-1].Content
	for title, err := range f.failures {
		if strings.Contains(prompt, "Task: "+title) {
			return history, "", err
		}
	}
	for title, answer := range f.answers {
		if strings.Contains(prompt, "Task: "+title) {
			return history, answer, nil
		}
	}
	return history, "done", nil
}

// scriptedVerdicts replays verifier verdicts in order.
type scriptedVerdicts struct {
	verdicts []string
	calls    int
}

func (s *scriptedVerdicts) ChatWithRetry(ctx context.Context, history []models.Message, defs []llm.ToolDefinition, maxRetries int) (*llm.Response, error) {
	verdict := "COMPLETE"
	if s.calls < len(s.verdicts) {
		verdict = s.verdicts[s.calls]
	}
	s.calls++
	return &llm.Response{Message: models.AssistantMessage(verdict)}, nil
}

func todo(id, title string, deps ...string) *models.TodoItem {
	return &models.TodoItem{
		ID:           id,
		Title:        title,
		Description:  "details for " + title,
		Status:       models.TodoStatusPending,
		Dependencies: deps,
	}
}

func plan(todos ...*models.TodoItem) *models.Plan {
	return &models.Plan{Todos: todos, Complexity: models.ComplexityModerate}
}

func newController(runner TaskRunner, chatter Chatter) *Controller {
	var v *Verifier
	if chatter != nil {
		v = NewVerifier(chatter)
	}
	return New(runner, v, nil, nil, interrupt.New())
}

func TestExecuteAllHappyPath(t *testing.T) {
	runner := &fakeRunner{answers: map[string]string{
		"draft": "Wrote the draft.",
		"table": "Built the table.",
	}}
	c := newController(runner, &scriptedVerdicts{})

	p := plan(todo("t1", "draft"), todo("t2", "table", "t1"))
	summary, err := c.ExecuteAll(context.Background(), p)
	if err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if summary.Completed != 2 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if p.Todos[0].Status != models.TodoStatusCompleted || p.Todos[0].Result != "Wrote the draft." {
		t.Errorf("unexpected first todo %+v", p.Todos[0])
	}
	if p.Todos[0].StartedAt == nil || p.Todos[0].CompletedAt == nil {
		t.Error("expected timestamps to be set")
	}
}

func TestExecuteAllSkipsDependentsOfFailure(t *testing.T) {
	runner := &fakeRunner{
		answers:  map[string]string{"other": "Fine."},
		failures: map[string]error{"broken": errors.New("office server down")},
	}
	c := newController(runner, &scriptedVerdicts{})
	c.MaxAttempts = 1

	p := plan(
		todo("t1", "broken"),
		todo("t2", "dependent", "t1"),
		todo("t3", "other"),
	)
	summary, err := c.ExecuteAll(context.Background(), p)
	if err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if summary.Failed != 1 || summary.Skipped != 1 || summary.Completed != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if p.Todos[1].Status != models.TodoStatusSkipped {
		t.Errorf("dependent status = %s, want skipped", p.Todos[1].Status)
	}
	if !strings.Contains(p.Todos[1].Error, "dependency broken failed") {
		t.Errorf("unexpected skip reason %q", p.Todos[1].Error)
	}
	if p.Todos[2].Status != models.TodoStatusCompleted {
		t.Errorf("independent todo status = %s, want completed", p.Todos[2].Status)
	}
	if len(summary.Failures) != 1 || !strings.Contains(summary.Failures[0], "broken") {
		t.Errorf("unexpected failures %v", summary.Failures)
	}
}

func TestExecuteAllSkipsTransitively(t *testing.T) {
	runner := &fakeRunner{failures: map[string]error{"root": errors.New("boom")}}
	c := newController(runner, &scriptedVerdicts{})
	c.MaxAttempts = 1

	p := plan(
		todo("t1", "root"),
		todo("t2", "child", "t1"),
		todo("t3", "grandchild", "t2"),
	)
	summary, err := c.ExecuteAll(context.Background(), p)
	if err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if summary.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", summary.Skipped)
	}
	if !strings.Contains(p.Todos[2].Error, "was skipped") {
		t.Errorf("unexpected grandchild reason %q", p.Todos[2].Error)
	}
}

func TestExecuteTodoRetriesOnIncompleteVerdict(t *testing.T) {
	runner := &fakeRunner{answers: map[string]string{"report": "Done."}}
	verdicts := &scriptedVerdicts{verdicts: []string{"INCOMPLETE: totals missing", "COMPLETE"}}
	c := newController(runner, verdicts)

	p := plan(todo("t1", "report"))
	summary, err := c.ExecuteAll(context.Background(), p)
	if err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if summary.Completed != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(runner.histories) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(runner.histories))
	}
	retryPrompt := runner.histories[1][1].Content
	if !strings.Contains(retryPrompt, "totals missing") {
		t.Errorf("retry prompt lacks verifier feedback: %q", retryPrompt)
	}
}

func TestExecuteTodoFailsAfterExhaustedAttempts(t *testing.T) {
	runner := &fakeRunner{answers: map[string]string{"report": "Done."}}
	verdicts := &scriptedVerdicts{verdicts: []string{"INCOMPLETE: a", "INCOMPLETE: b"}}
	c := newController(runner, verdicts)
	c.MaxAttempts = 2

	p := plan(todo("t1", "report"))
	summary, err := c.ExecuteAll(context.Background(), p)
	if err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if !strings.Contains(p.Todos[0].Error, "exhausted 2 attempts") {
		t.Errorf("unexpected error %q", p.Todos[0].Error)
	}
}

func TestExecuteAllSharesEarlierResults(t *testing.T) {
	runner := &fakeRunner{answers: map[string]string{
		"first":  "Created budget.xlsx",
		"second": "Linked the doc.",
	}}
	c := newController(runner, &scriptedVerdicts{})

	p := plan(todo("t1", "first"), todo("t2", "second", "t1"))
	if _, err := c.ExecuteAll(context.Background(), p); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	secondPrompt := runner.histories[1][1].Content
	if !strings.Contains(secondPrompt, "Created budget.xlsx") {
		t.Errorf("second prompt lacks earlier result: %q", secondPrompt)
	}
}

func TestExecuteAllCycleFallsBackToPlanOrder(t *testing.T) {
	runner := &fakeRunner{}
	c := newController(runner, &scriptedVerdicts{})

	p := plan(todo("t1", "a", "t2"), todo("t2", "b", "t1"))
	summary, err := c.ExecuteAll(context.Background(), p)
	if err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if summary.Completed != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
	firstPrompt := runner.histories[0][1].Content
	if !strings.Contains(firstPrompt, "Task: a") {
		t.Errorf("cycle fallback should keep plan order, first prompt %q", firstPrompt)
	}
}

func TestExecuteAllStopsOnInterrupt(t *testing.T) {
	ic := interrupt.New()
	runner := &fakeRunner{answers: map[string]string{"first": "ok"}}
	c := New(runner, NewVerifier(&scriptedVerdicts{}), nil, nil, ic)

	ic.Abort()
	p := plan(todo("t1", "first"), todo("t2", "second"))
	_, err := c.ExecuteAll(context.Background(), p)
	if !interrupt.IsInterrupted(err) {
		t.Fatalf("expected interrupt error, got %v", err)
	}
	if len(runner.histories) != 0 {
		t.Errorf("no todo should run after abort, ran %d", len(runner.histories))
	}
}

func TestExecuteAllNoVerifierAcceptsAnswer(t *testing.T) {
	runner := &fakeRunner{answers: map[string]string{"solo": "All set."}}
	c := New(runner, nil, nil, nil, interrupt.New())

	p := plan(todo("t1", "solo"))
	summary, err := c.ExecuteAll(context.Background(), p)
	if err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if summary.Completed != 1 || p.Todos[0].Result != "All set." {
		t.Errorf("unexpected outcome %+v %+v", summary, p.Todos[0])
	}
}

type staticDocs struct {
	content string
	topics  []string
}

func (d *staticDocs) Lookup(ctx context.Context, topic string) (string, error) {
	d.topics = append(d.topics, topic)
	return d.content, nil
}

func TestExecuteTodoGathersDocsWhenRequested(t *testing.T) {
	runner := &fakeRunner{answers: map[string]string{"lookup": "Done."}}
	docs := &staticDocs{content: "VLOOKUP syntax reference"}
	c := New(runner, NewVerifier(&scriptedVerdicts{}), docs, nil, interrupt.New())

	item := todo("t1", "lookup")
	item.NeedsDocs = true
	p := plan(item)
	if _, err := c.ExecuteAll(context.Background(), p); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if len(docs.topics) != 1 {
		t.Fatalf("expected one docs lookup, got %d", len(docs.topics))
	}
	prompt := runner.histories[0][1].Content
	if !strings.Contains(prompt, "VLOOKUP syntax reference") {
		t.Errorf("prompt lacks reference material: %q", prompt)
	}
}

func TestVerifierParsesVerdicts(t *testing.T) {
	cases := []struct {
		verdict      string
		wantComplete bool
		wantFeedback string
	}{
		{"COMPLETE", true, ""},
		{"complete", true, ""},
		{"INCOMPLETE: missing chart", false, "missing chart"},
		{"INCOMPLETE", false, "the reviewer marked the work incomplete without detail"},
		{"I think it looks fine", false, "I think it looks fine"},
	}
	for _, tc := range cases {
		v := NewVerifier(&scriptedVerdicts{verdicts: []string{tc.verdict}})
		complete, feedback, err := v.Verify(context.Background(), todo("t1", "x"), "report")
		if err != nil {
			t.Fatalf("Verify(%q): %v", tc.verdict, err)
		}
		if complete != tc.wantComplete || feedback != tc.wantFeedback {
			t.Errorf("Verify(%q) = (%v, %q), want (%v, %q)", tc.verdict, complete, feedback, tc.wantComplete, tc.wantFeedback)
		}
	}
}
