package integration

import "context"

// DryRunOperations returns an operation for every tool of f that performs
// nothing and echoes the call back. Used for local development when the web
// app's executor routes are not reachable.
func DryRunOperations(f Family) map[string]Operation {
	ops := make(map[string]Operation, len(f.Tools()))
	for _, t := range f.Tools() {
		ops[t.Name] = func(_ context.Context, call ToolCallRequest, req ExecuteRequest) (interface{}, error) {
			return map[string]interface{}{
				"dryRun": true,
				"tool":   call.Name,
				"input":  call.Input,
				"nodeId": req.NodeID,
			}, nil
		}
	}
	return ops
}
