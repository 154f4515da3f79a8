package integration

import "context"

// ExecuteRequest is one family's share of a turn's tool calls.
type ExecuteRequest struct {
	Calls       []ToolCallRequest `json:"toolCalls"`
	UserID      string            `json:"userId"`
	NodeID      string            `json:"nodeId"`
	Permissions Permissions       `json:"permissions"`
	Attachments []Attachment      `json:"attachments,omitempty"`
}

// Executor runs a family's tool calls server-side. It should return one
// result per call; an error fails the whole batch.
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) ([]ToolCallResult, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req ExecuteRequest) ([]ToolCallResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, req ExecuteRequest) ([]ToolCallResult, error) {
	return f(ctx, req)
}
