package loop

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mkrall/clerk/internal/interrupt"
	"github.com/mkrall/clerk/internal/llm"
	"github.com/mkrall/clerk/internal/tools"
	"github.com/mkrall/clerk/pkg/models"
)

// scriptedChatter replays a fixed sequence of model responses and records
// what it was called with.
type scriptedChatter struct {
	t         *testing.T
	responses []*llm.Response
	errs      []error
	calls     int
	defsSeen  [][]llm.ToolDefinition
	histories [][]models.Message
}

func (s *scriptedChatter) ChatWithRetry(ctx context.Context, history []models.Message, defs []llm.ToolDefinition, maxRetries int) (*llm.Response, error) {
	if s.calls >= len(s.responses) {
		s.t.Fatalf("unexpected model call %d", s.calls+1)
	}
	i := s.calls
	s.calls++
	s.defsSeen = append(s.defsSeen, defs)
	s.histories = append(s.histories, append([]models.Message(nil), history...))
	if s.errs != nil && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.responses[i], nil
}

func textResp(content string) *llm.Response {
	return &llm.Response{Message: models.AssistantMessage(content), FinishReason: "stop"}
}

func toolResp(id, name, args string) *llm.Response {
	return &llm.Response{
		Message:      models.AssistantMessage("", models.ToolCall{ID: id, Name: name, Arguments: args}),
		FinishReason: "tool_calls",
	}
}

type countingTool struct {
	calls  int
	args   []string
	result models.ToolResult
}

func (c *countingTool) def(name string, mutating bool) tools.Definition {
	return tools.Definition{
		Name:        name,
		Description: "test tool",
		Parameters:  map[string]interface{}{"type": "object"},
		Mutating:    mutating,
		Handler: func(ctx context.Context, args json.RawMessage) models.ToolResult {
			c.calls++
			c.args = append(c.args, string(args))
			return c.result
		},
	}
}

func newLoop(t *testing.T, chatter Chatter, defs ...tools.Definition) *Loop {
	t.Helper()
	reg := tools.NewRegistry()
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return New(chatter, reg, nil, interrupt.New())
}

func TestRunPlainAnswer(t *testing.T) {
	chatter := &scriptedChatter{t: t, responses: []*llm.Response{textResp("All done.")}}
	l := newLoop(t, chatter)

	history := []models.Message{models.UserMessage("hi")}
	out, answer, err := l.Run(context.Background(), history)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "All done." {
		t.Errorf("answer = %q", answer)
	}
	if len(out) != 2 || out[1].Role != models.RoleAssistant {
		t.Errorf("unexpected history %+v", out)
	}
}

func TestRunExecutesToolThenAnswers(t *testing.T) {
	tool := &countingTool{result: models.ToolResult{Success: true, Output: "written"}}
	chatter := &scriptedChatter{t: t, responses: []*llm.Response{
		toolResp("call_1", "word_write", `{"text":"hi"}`),
		textResp("Document updated."),
	}}
	l := newLoop(t, chatter, tool.def("word_write", false))

	out, answer, err := l.Run(context.Background(), []models.Message{models.UserMessage("write hi")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "Document updated." {
		t.Errorf("answer = %q", answer)
	}
	if tool.calls != 1 || tool.args[0] != `{"text":"hi"}` {
		t.Errorf("tool calls = %d, args = %v", tool.calls, tool.args)
	}
	// user, assistant tool call, tool result, assistant answer
	if len(out) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(out))
	}
	if out[2].Role != models.RoleTool || out[2].ToolCallID != "call_1" || out[2].Content != "written" {
		t.Errorf("unexpected tool message %+v", out[2])
	}
}

func TestRunInvalidToolArguments(t *testing.T) {
	tool := &countingTool{result: models.ToolResult{Success: true}}
	chatter := &scriptedChatter{t: t, responses: []*llm.Response{
		toolResp("call_1", "word_write", `{broken`),
		textResp("Giving up."),
	}}
	l := newLoop(t, chatter, tool.def("word_write", false))

	out, _, err := l.Run(context.Background(), []models.Message{models.UserMessage("go")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tool.calls != 0 {
		t.Errorf("tool should not run on malformed arguments, ran %d times", tool.calls)
	}
	toolMsg := out[2]
	if toolMsg.Role != models.RoleTool || !strings.Contains(toolMsg.Content, "not valid JSON") {
		t.Errorf("unexpected tool message %+v", toolMsg)
	}
}

func TestRunSuppressesDuplicateSuccessfulCalls(t *testing.T) {
	tool := &countingTool{result: models.ToolResult{Success: true, Output: "saved"}}
	chatter := &scriptedChatter{t: t, responses: []*llm.Response{
		toolResp("call_1", "excel_save", `{"path":"a.xlsx"}`),
		toolResp("call_2", "excel_save", `{"path":"a.xlsx"}`),
		textResp("Done."),
	}}
	l := newLoop(t, chatter, tool.def("excel_save", false))

	out, _, err := l.Run(context.Background(), []models.Message{models.UserMessage("save")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tool.calls != 1 {
		t.Errorf("duplicate call executed, tool ran %d times", tool.calls)
	}
	if !strings.Contains(out[4].Content, "already executed") {
		t.Errorf("expected duplicate notice, got %q", out[4].Content)
	}
}

func TestRunFailedCallsMayBeRetried(t *testing.T) {
	tool := &countingTool{result: models.ToolResult{Success: false, Error: "transient"}}
	chatter := &scriptedChatter{t: t, responses: []*llm.Response{
		toolResp("call_1", "excel_save", `{"path":"a.xlsx"}`),
		toolResp("call_2", "excel_save", `{"path":"a.xlsx"}`),
		textResp("Gave up."),
	}}
	l := newLoop(t, chatter, tool.def("excel_save", false))

	if _, _, err := l.Run(context.Background(), []models.Message{models.UserMessage("save")}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tool.calls != 2 {
		t.Errorf("failed calls should not be suppressed, tool ran %d times", tool.calls)
	}
}

type rejectingApprover struct {
	comment string
}

func (r rejectingApprover) RequestApproval(string, json.RawMessage) (tools.Decision, error) {
	return tools.Decision{Approved: false, Comment: r.comment}, nil
}

func TestRunApprovalRejection(t *testing.T) {
	tool := &countingTool{result: models.ToolResult{Success: true}}
	chatter := &scriptedChatter{t: t, responses: []*llm.Response{
		toolResp("call_1", "word_save", `{"path":"a.docx"}`),
		textResp("Understood, not saving."),
	}}
	reg := tools.NewRegistry()
	if err := reg.Register(tool.def("word_save", true)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	l := New(chatter, reg, rejectingApprover{comment: "wrong folder"}, interrupt.New())

	out, _, err := l.Run(context.Background(), []models.Message{models.UserMessage("save")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tool.calls != 0 {
		t.Errorf("rejected call was executed %d times", tool.calls)
	}
	if !strings.Contains(out[2].Content, "rejected") || !strings.Contains(out[2].Content, "wrong folder") {
		t.Errorf("unexpected rejection message %q", out[2].Content)
	}
}

func TestRunTurnCapTriggersSummary(t *testing.T) {
	tool := &countingTool{result: models.ToolResult{Success: true, Output: "ok"}}
	chatter := &scriptedChatter{t: t, responses: []*llm.Response{
		toolResp("call_1", "step", `{"n":1}`),
		toolResp("call_2", "step", `{"n":2}`),
		textResp("Ran out of turns after two steps."),
	}}
	l := newLoop(t, chatter, tool.def("step", false))
	l.MaxTurns = 2

	out, answer, err := l.Run(context.Background(), []models.Message{models.UserMessage("go")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "Ran out of turns after two steps." {
		t.Errorf("answer = %q", answer)
	}
	// The summary call carries no tool definitions.
	if got := chatter.defsSeen[2]; got != nil {
		t.Errorf("summary call should have no tools, got %v", got)
	}
	// A user message asking for the summary precedes the final answer.
	summaryReq := out[len(out)-2]
	if summaryReq.Role != models.RoleUser || !strings.Contains(summaryReq.Content, "Turn limit") {
		t.Errorf("unexpected summary request %+v", summaryReq)
	}
}

func TestRunTruncatesLongToolOutput(t *testing.T) {
	tool := &countingTool{result: models.ToolResult{
		Success: true,
		Output:  strings.Repeat("x", MaxToolOutputBytes+500),
	}}
	chatter := &scriptedChatter{t: t, responses: []*llm.Response{
		toolResp("call_1", "word_read", `{}`),
		textResp("Read it."),
	}}
	l := newLoop(t, chatter, tool.def("word_read", false))

	out, _, err := l.Run(context.Background(), []models.Message{models.UserMessage("read")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	content := out[2].Content
	if len(content) != MaxToolOutputBytes+len(truncationNotice) {
		t.Errorf("unexpected truncated length %d", len(content))
	}
	if !strings.HasSuffix(content, truncationNotice) {
		t.Error("expected truncation notice suffix")
	}
}

func TestRunChecksInterruptAtEntry(t *testing.T) {
	chatter := &scriptedChatter{t: t}
	ic := interrupt.New()
	reg := tools.NewRegistry()
	l := New(chatter, reg, nil, ic)

	ic.Abort()
	_, _, err := l.Run(context.Background(), []models.Message{models.UserMessage("go")})
	if !interrupt.IsInterrupted(err) {
		t.Fatalf("expected interrupt error, got %v", err)
	}
	if chatter.calls != 0 {
		t.Errorf("model called %d times after abort", chatter.calls)
	}
}
