package models

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem is the instruction message that opens a conversation.
	RoleSystem Role = "system"
	// RoleUser is a message from the requesting user.
	RoleUser Role = "user"
	// RoleAssistant is a model response, possibly carrying a tool call.
	RoleAssistant Role = "assistant"
	// RoleTool is the result of a tool execution, paired to a tool call.
	RoleTool Role = "tool"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Message is one entry in a conversation history. Histories are append-only:
// a message is never mutated once a later message has been appended after it.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role"`
	// Content is the message text. May be empty for assistant messages
	// that only carry tool calls.
	Content string `json:"content"`
	// ToolCalls holds tool invocations requested by an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID references the assistant tool call this message answers.
	// Set only on tool messages.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	// ID is the provider-assigned call identifier.
	ID string `json:"id"`
	// Name is the registered tool name.
	Name string `json:"name"`
	// Arguments is the raw JSON-encoded argument object. It must parse as
	// JSON before dispatch; callers append a synthetic error tool message
	// instead of executing when it does not.
	Arguments string `json:"arguments"`
}

// ToolResult is the outcome of one tool execution. It is produced by the
// tool executor and consumed exactly once to build the next tool message.
type ToolResult struct {
	// Success indicates the tool ran without error.
	Success bool `json:"success"`
	// Output is the tool's textual output on success.
	Output string `json:"output,omitempty"`
	// Error is the failure description when Success is false.
	Error string `json:"error,omitempty"`
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message with optional tool calls.
func AssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage builds a tool message answering the given tool call.
func ToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// LastRole returns the role of the final message, or "" for an empty history.
func LastRole(history []Message) Role {
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1].Role
}
