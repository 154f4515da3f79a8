// Package dispatch routes a turn's tool calls to their family executors.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nodecanvas/askgate/internal/capability"
	"github.com/nodecanvas/askgate/internal/integration"
	"github.com/nodecanvas/askgate/internal/logging"
	"github.com/nodecanvas/askgate/internal/metrics"
)

// AttachmentPolicy controls injection of includeUploadedAttachments into
// gmail_send and gmail_draft when the query carries uploads.
type AttachmentPolicy string

const (
	// AttachWhenUnset injects only when the model left the field out, so
	// an explicit false is kept.
	AttachWhenUnset AttachmentPolicy = "when_unset"
	// AttachAlways overrides whatever the model sent.
	AttachAlways AttachmentPolicy = "always"
)

func (p AttachmentPolicy) Valid() bool {
	return p == AttachWhenUnset || p == AttachAlways
}

// Request is one turn's worth of tool calls plus the request context the
// executors need.
type Request struct {
	Calls        []integration.ToolCallRequest
	Capabilities capability.Capabilities
	UserID       string
	NodeID       string
	Attachments  []integration.Attachment
}

// Outcome holds the results of the routed calls in request order. Dropped
// calls have no result.
type Outcome struct {
	Results []integration.ToolCallResult
	Dropped int
}

// Routed reports how many calls reached an executor.
func (o Outcome) Routed() int { return len(o.Results) }

type Dispatcher struct {
	registry    *integration.Registry
	executors   map[string]integration.Executor
	guard       *Guard
	attachments AttachmentPolicy
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

type Option func(*Dispatcher)

func WithGuard(g *Guard) Option {
	return func(d *Dispatcher) { d.guard = g }
}

func WithAttachmentPolicy(p AttachmentPolicy) Option {
	return func(d *Dispatcher) { d.attachments = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l.With().Str("component", "dispatch").Logger() }
}

// New builds a dispatcher. executors is keyed by family name; a family
// without an executor is treated as unusable.
func New(registry *integration.Registry, executors map[string]integration.Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:    registry,
		executors:   executors,
		guard:       NewGuard(),
		attachments: AttachWhenUnset,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Guard returns the guard used to bound executors and clean their output.
func (d *Dispatcher) Guard() *Guard { return d.guard }

// Routes reports whether calls for the family have an executor to run on.
func (d *Dispatcher) Routes(family string) bool {
	return d.executors[family] != nil
}

type partition struct {
	family  integration.Family
	cap     capability.EffectiveCapability
	exec    integration.Executor
	calls   []integration.ToolCallRequest
	indices []int // position of each call in the turn
}

// partitionCalls groups calls by family prefix, keeping only those whose family
// is usable and has an executor. It returns the groups in family order and
// the number of dropped calls.
func (d *Dispatcher) partitionCalls(logger zerolog.Logger, req Request) ([]*partition, int) {
	byFamily := make(map[string]*partition)
	dropped := 0
	for i, call := range req.Calls {
		f, ok := d.registry.Lookup(call.Name)
		if !ok {
			dropped++
			logger.Warn().Str("tool", call.Name).Msg("dropping tool call with no matching family")
			continue
		}
		ec, ok := req.Capabilities.Get(f.Name())
		if !ok || !ec.Usable() {
			dropped++
			logger.Warn().Str("tool", call.Name).Str("family", f.Name()).Msg("dropping tool call for unusable family")
			continue
		}
		if !d.Routes(f.Name()) {
			dropped++
			logger.Warn().Str("tool", call.Name).Str("family", f.Name()).Msg("dropping tool call, no executor configured")
			continue
		}
		p, ok := byFamily[f.Name()]
		if !ok {
			p = &partition{family: f, cap: ec, exec: d.executors[f.Name()]}
			byFamily[f.Name()] = p
		}
		p.calls = append(p.calls, d.prepareCall(call, req.Attachments))
		p.indices = append(p.indices, i)
	}

	var parts []*partition
	for _, f := range d.registry.Families() {
		if p, ok := byFamily[f.Name()]; ok {
			parts = append(parts, p)
		}
	}
	return parts, dropped
}

// prepareCall applies the attachment policy. The model's input map is
// copied, never modified.
func (d *Dispatcher) prepareCall(call integration.ToolCallRequest, attachments []integration.Attachment) integration.ToolCallRequest {
	if len(attachments) == 0 || (call.Name != integration.ToolGmailSend && call.Name != integration.ToolGmailDraft) {
		return call
	}
	// A null flag counts as unset.
	if d.attachments != AttachAlways && call.Input[integration.FieldIncludeUploadedAttachments] != nil {
		return call
	}
	input := make(map[string]interface{}, len(call.Input)+1)
	for k, v := range call.Input {
		input[k] = v
	}
	input[integration.FieldIncludeUploadedAttachments] = true
	call.Input = input
	return call
}

// Dispatch runs every routable call of a turn. Families run concurrently
// and one family failing leaves the others untouched. Results are raw;
// pass them through Guard().SanitizeAll before giving them to the model.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Outcome {
	logger := logging.Ctx(ctx, d.logger, "dispatch")
	parts, dropped := d.partitionCalls(logger, req)
	d.metrics.DroppedToolCalls(dropped)
	if len(parts) == 0 {
		return Outcome{Dropped: dropped}
	}

	slots := make([]*integration.ToolCallResult, len(req.Calls))
	var wg sync.WaitGroup
	for _, p := range parts {
		wg.Add(1)
		go func(p *partition) {
			defer wg.Done()
			results := d.runPartition(ctx, logger, p, req)
			for j, idx := range p.indices {
				r := results[j]
				slots[idx] = &r
			}
		}(p)
	}
	wg.Wait()

	out := Outcome{Dropped: dropped}
	for _, r := range slots {
		if r != nil {
			out.Results = append(out.Results, *r)
		}
	}
	return out
}

// runPartition returns exactly one result per call of the partition, in
// the partition's order.
func (d *Dispatcher) runPartition(ctx context.Context, logger zerolog.Logger, p *partition, req Request) []integration.ToolCallResult {
	name := p.family.Name()
	logger = logger.With().Str("family", name).Int("calls", len(p.calls)).Logger()

	results, err := d.guard.Execute(ctx, name, p.exec, integration.ExecuteRequest{
		Calls:       p.calls,
		UserID:      req.UserID,
		NodeID:      req.NodeID,
		Permissions: p.cap.Permissions.Clone(),
		Attachments: req.Attachments,
	})

	out := make([]integration.ToolCallResult, len(p.calls))
	if err != nil {
		logger.Error().Err(err).Msg("executor failed")
		for i, call := range p.calls {
			out[i] = integration.ErrorResult(call.ID, fmt.Sprintf("%s tool execution failed: %v", name, err))
			d.metrics.ToolCall(name, true)
		}
		return out
	}

	matched := matchResults(p.calls, results)
	for i, call := range p.calls {
		r := integration.ErrorResult(call.ID, fmt.Sprintf("no result returned for %s", call.Name))
		if j := matched[i]; j >= 0 {
			r = results[j]
		} else {
			logger.Warn().Str("tool_call_id", call.ID).Str("tool", call.Name).Msg("executor returned no result for call")
		}
		r.ToolCallID = call.ID
		out[i] = r
		d.metrics.ToolCall(name, r.IsError)
	}
	logger.Debug().Msg("executor finished")
	return out
}

// matchResults pairs each call with the index of its result, or -1. Each
// result is used once: ids are matched first-come in call order, so calls
// sharing an id (or having none) take their results in turn. Calls still
// unmatched take the unused result at their own position.
func matchResults(calls []integration.ToolCallRequest, results []integration.ToolCallResult) []int {
	used := make([]bool, len(results))
	byID := make(map[string][]int, len(results))
	for j, r := range results {
		byID[r.ToolCallID] = append(byID[r.ToolCallID], j)
	}

	matched := make([]int, len(calls))
	for i, call := range calls {
		matched[i] = -1
		if queue := byID[call.ID]; len(queue) > 0 {
			matched[i] = queue[0]
			used[queue[0]] = true
			byID[call.ID] = queue[1:]
		}
	}
	for i := range calls {
		if matched[i] < 0 && i < len(results) && !used[i] {
			matched[i] = i
			used[i] = true
		}
	}
	return matched
}
