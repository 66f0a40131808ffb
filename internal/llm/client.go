package llm

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mkrall/clerk/pkg/models"
)

// defaultTimeout bounds each chat completion round-trip.
const defaultTimeout = 600 * time.Second

// ToolDefinition describes one callable tool in the form the endpoint
// expects: a function name, description, and JSON-schema parameters.
type ToolDefinition struct {
	// Name is the function name the model uses to call the tool.
	Name string
	// Description tells the model what the tool does.
	Description string
	// Parameters is the JSON schema for the argument object.
	Parameters map[string]interface{}
}

// Response is the outcome of one chat completion call.
type Response struct {
	// Message is the assistant message, possibly carrying tool calls.
	Message models.Message
	// FinishReason is the provider's stop reason ("stop", "tool_calls", ...).
	FinishReason string
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// Model is the chat model to request.
	Model string
	// APIKey is the API key. If empty, uses the OPENAI_API_KEY env var.
	APIKey string
	// BaseURL overrides the endpoint, e.g. for a local gateway.
	BaseURL string
	// Temperature is the sampling temperature for every request.
	Temperature float64
	// MaxTokens caps completion length per request.
	MaxTokens int64
	// Timeout bounds each round-trip. Defaults to 600s.
	Timeout time.Duration
}

// Client wraps the OpenAI-compatible endpoint with token tracking.
// Retries are handled by ChatWithRetry, never by the underlying SDK.
type Client struct {
	inner       openai.Client
	model       string
	temperature float64
	maxTokens   int64
	tracker     *TokenTracker
}

// NewClient creates a chat completion client.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is not set (OPENAI_API_KEY)")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		// The retry policy in this package is the only retry layer.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		return nil, fmt.Errorf("model is not set")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	return &Client{
		inner:       openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		tracker:     NewTokenTracker(),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Tracker returns the token tracker for this client.
func (c *Client) Tracker() *TokenTracker {
	return c.tracker
}

// Chat sends the full message history plus tool definitions and returns the
// assistant response. Parallel tool calls are disabled at the request level
// so a response carries at most one tool call to act on.
func (c *Client) Chat(ctx context.Context, history []models.Message, tools []ToolDefinition) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    toMessageParams(history),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	}
	if len(tools) > 0 {
		params.Tools = toToolParams(tools)
		params.ParallelToolCalls = openai.Bool(false)
	}

	resp, err := c.inner.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, Classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Kind: KindUnknown, Message: "endpoint returned no choices"}
	}

	c.tracker.Add(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	choice := resp.Choices[0]
	msg := models.AssistantMessage(choice.Message.Content)
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &Response{Message: msg, FinishReason: string(choice.FinishReason)}, nil
}

// StreamText starts a streaming completion with no tools and returns the
// fragment sequence. Used for live final-answer output only.
func (c *Client) StreamText(ctx context.Context, history []models.Message) *TextStream {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    toMessageParams(history),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	}
	stream := c.inner.Chat.Completions.NewStreaming(ctx, params)
	return newTextStream(stream, c.tracker)
}

// toMessageParams converts conversation messages to the wire format.
func toMessageParams(history []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case models.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case models.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case models.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}

// toToolParams converts tool definitions to the wire format.
func toToolParams(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			},
		})
	}
	return out
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset clears all tracked token usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
}
