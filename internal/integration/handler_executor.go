package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Operation performs one tool call. The returned value is JSON-encoded as the result.
type Operation func(ctx context.Context, call ToolCallRequest, req ExecuteRequest) (interface{}, error)

// HandlerExecutor runs tool calls in-process from a name → operation table.
// Calls in a batch run concurrently and each is checked against the
// batch's permissions before it runs.
type HandlerExecutor struct {
	family Family
	ops    map[string]Operation
}

func NewHandlerExecutor(f Family, ops map[string]Operation) *HandlerExecutor {
	return &HandlerExecutor{family: f, ops: ops}
}

func (h *HandlerExecutor) Execute(ctx context.Context, req ExecuteRequest) ([]ToolCallResult, error) {
	results := make([]ToolCallResult, len(req.Calls))
	var wg sync.WaitGroup
	for i, call := range req.Calls {
		wg.Add(1)
		go func(i int, call ToolCallRequest) {
			defer wg.Done()
			results[i] = h.run(ctx, call, req)
		}(i, call)
	}
	wg.Wait()
	return results, nil
}

func (h *HandlerExecutor) run(ctx context.Context, call ToolCallRequest, req ExecuteRequest) (result ToolCallResult) {
	def, ok := h.tool(call.Name)
	if !ok {
		return ErrorResult(call.ID, fmt.Sprintf("unknown %s tool %q", h.family.Name(), call.Name))
	}
	if !req.Permissions.Has(def.RequiredCapability) {
		return ErrorResult(call.ID, fmt.Sprintf("permission %s is not granted for %s", def.RequiredCapability, call.Name))
	}
	op, ok := h.ops[call.Name]
	if !ok {
		return ErrorResult(call.ID, fmt.Sprintf("tool %q is not available", call.Name))
	}

	defer func() {
		if r := recover(); r != nil {
			result = ErrorResult(call.ID, fmt.Sprintf("tool %q panicked: %v", call.Name, r))
		}
	}()

	out, err := op(ctx, call, req)
	if err != nil {
		return ErrorResult(call.ID, err.Error())
	}
	data, err := json.Marshal(out)
	if err != nil {
		return ErrorResult(call.ID, fmt.Sprintf("encode result: %v", err))
	}
	return ToolCallResult{ToolCallID: call.ID, Result: string(data)}
}

func (h *HandlerExecutor) tool(name string) (ToolDefinition, bool) {
	for _, t := range h.family.Tools() {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDefinition{}, false
}
