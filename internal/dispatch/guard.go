package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nodecanvas/askgate/internal/integration"
)

const DefaultMaxResultBytes = 64 * 1024 // 64KB

const truncationMarker = "\n[truncated: result exceeded size limit]"

var defaultForbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[tool_call\]`),
	regexp.MustCompile(`\[tool_use\]`),
	regexp.MustCompile(`<tool_call>`),
	regexp.MustCompile(`<function_call>`),
	regexp.MustCompile(`"type"\s*:\s*"tool_use"`),
	regexp.MustCompile(`"tool_calls"\s*:\s*\[`),
}

// Guard bounds executor time and cleans tool output before it is handed
// back to the model.
type Guard struct {
	MaxResultBytes    int
	Timeout           time.Duration // 0 waits for the executor indefinitely
	ForbiddenPatterns []*regexp.Regexp
}

func NewGuard() *Guard {
	return &Guard{
		MaxResultBytes:    DefaultMaxResultBytes,
		ForbiddenPatterns: defaultForbiddenPatterns,
	}
}

func (g *Guard) Sanitize(result integration.ToolCallResult) integration.ToolCallResult {
	result.Result = g.sanitizeContent(result.Result)
	return result
}

func (g *Guard) SanitizeAll(results []integration.ToolCallResult) []integration.ToolCallResult {
	out := make([]integration.ToolCallResult, len(results))
	for i, r := range results {
		out[i] = g.Sanitize(r)
	}
	return out
}

func (g *Guard) sanitizeContent(s string) string {
	if s == "" {
		return s
	}

	if g.MaxResultBytes > 0 && len(s) > g.MaxResultBytes {
		cut := g.MaxResultBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + truncationMarker
	}

	for _, pat := range g.ForbiddenPatterns {
		s = pat.ReplaceAllStringFunc(s, func(match string) string {
			return strings.Repeat("*", len(match))
		})
	}

	return s
}

// Execute runs one family batch, giving up after Timeout. The executor
// keeps running in the background if it ignores cancellation.
func (g *Guard) Execute(ctx context.Context, family string, exec integration.Executor, req integration.ExecuteRequest) ([]integration.ToolCallResult, error) {
	if g.Timeout <= 0 {
		return exec.Execute(ctx, req)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	type outcome struct {
		results []integration.ToolCallResult
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := exec.Execute(callCtx, req)
		done <- outcome{results, err}
	}()

	select {
	case o := <-done:
		return o.results, o.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s executor: %w", family, err)
		}
		return nil, fmt.Errorf("%s executor timed out after %s", family, g.Timeout)
	}
}
