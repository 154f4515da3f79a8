package provider

import (
	"context"
	"encoding/json"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the provider conversation. Content is a string,
// the original content blocks of a turn, or tool_result blocks.
type Message struct {
	Role       Role           `json:"role"`
	Content    interface{}    `json:"content"`
	ToolCalls  []WireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// WireToolCall is the flat-calls form of a tool call in an assistant message.
type WireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function WireFunction `json:"function"`
}

type WireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResultBlock answers a tool_use block in the content-block form.
type ToolResultBlock struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// Tool is the wire schema of a tool offered to the model.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// TurnRequest is the body of one chat-turn call to the web app's provider route.
type TurnRequest struct {
	UserID          string    `json:"userId"`
	Messages        []Message `json:"messages"`
	Model           string    `json:"model"`
	SystemPrompt    string    `json:"systemPrompt"`
	Temperature     *float64  `json:"temperature,omitempty"`
	MaxTokens       int       `json:"maxTokens,omitempty"`
	EnableWebSearch bool      `json:"enableWebSearch"`
	Tools           []Tool    `json:"tools,omitempty"`
}

// Provider completes one chat turn.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req *TurnRequest) (Turn, error)
}
