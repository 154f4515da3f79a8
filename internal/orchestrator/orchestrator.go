// Package orchestrator runs the provider conversation for one Ask: it offers
// the answering node's tools, dispatches the calls the model makes and feeds
// the results back until the model answers in text.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nodecanvas/askgate/internal/capability"
	"github.com/nodecanvas/askgate/internal/catalog"
	"github.com/nodecanvas/askgate/internal/dispatch"
	"github.com/nodecanvas/askgate/internal/logging"
	"github.com/nodecanvas/askgate/internal/lua"
	"github.com/nodecanvas/askgate/internal/metrics"
	"github.com/nodecanvas/askgate/internal/provider"
)

const DefaultMaxIterations = 5

const defaultSystemPrompt = "You are a helpful assistant working inside a canvas of cooperating AI agents."

// ErrUnsupportedProvider is returned when the answering node names a model
// provider that is not registered.
var ErrUnsupportedProvider = errors.New("unsupported model provider")

// QueryPreparer may rewrite a query, or answer it, before any provider call.
type QueryPreparer interface {
	Prepare(ctx context.Context, text string, req lua.Request) (*lua.PrepareResult, error)
}

type Orchestrator struct {
	providers     *provider.Registry
	resolver      *capability.Resolver
	dispatcher    *dispatch.Dispatcher
	rules         *SafetyRules
	preparer      QueryPreparer
	shortcut      dispatch.ShortcutPolicy
	maxIterations int
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

type Option func(*Orchestrator)

func WithRules(customRules []string) Option {
	return func(o *Orchestrator) { o.rules = NewSafetyRules(customRules) }
}

func WithPreparer(p QueryPreparer) Option {
	return func(o *Orchestrator) { o.preparer = p }
}

func WithShortcutPolicy(p dispatch.ShortcutPolicy) Option {
	return func(o *Orchestrator) { o.shortcut = p }
}

// WithMaxIterations caps tool dispatch rounds; values below 1 keep the default.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l.With().Str("component", "orchestrator").Logger() }
}

func New(
	providers *provider.Registry,
	resolver *capability.Resolver,
	dispatcher *dispatch.Dispatcher,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		providers:     providers,
		resolver:      resolver,
		dispatcher:    dispatcher,
		rules:         NewSafetyRules(nil),
		shortcut:      dispatch.ShortcutAll,
		maxIterations: DefaultMaxIterations,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run answers q. Provider failures are fatal and returned wrapped; tool
// failures are handed back to the model as error results.
func (o *Orchestrator) Run(ctx context.Context, q Query) (*Result, error) {
	p, err := o.providers.Get(q.To.ModelProvider)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, q.To.ModelProvider)
	}
	fallback := o.logger.With().Str("query_id", q.ID).Logger()
	logger := logging.Ctx(ctx, fallback, "orchestrator").With().
		Str("provider", p.ID()).
		Str("to_node", q.To.ID).
		Logger()

	text := q.Text
	if o.preparer != nil {
		prepared, err := o.preparer.Prepare(ctx, text, lua.Request{
			QueryID:  q.ID,
			UserID:   q.UserID,
			FromNode: q.From.DisplayName(),
			ToNode:   q.To.DisplayName(),
			Provider: p.ID(),
		})
		if err != nil {
			return nil, fmt.Errorf("query preparer: %w", err)
		}
		if !prepared.SendToLLM {
			logger.Info().Msg("query answered by preparer")
			return &Result{Answer: prepared.Query, Prepared: true}, nil
		}
		text = prepared.Query
	}

	caps := o.resolver.Resolve(ctx, q.UserID, q.To.Integrations())
	// Families without an executor would have every call dropped.
	cat := catalog.Build(caps.Only(o.dispatcher.Routes))

	req := &provider.TurnRequest{
		UserID:          q.UserID,
		Model:           q.To.ModelName,
		SystemPrompt:    o.buildSystemPrompt(q, cat),
		Temperature:     q.To.Temperature,
		MaxTokens:       q.To.MaxTokens,
		EnableWebSearch: q.To.WebSearchEnabled,
		Tools:           cat.Tools,
	}
	messages := buildMessages(q.History, text)
	logger.Debug().Int("tools", len(cat.Tools)).Int("history", len(q.History)).Msg("starting provider loop")

	result := &Result{}
	for {
		req.Messages = messages
		turn, err := p.Complete(ctx, req)
		result.ProviderCalls++
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.ID(), err)
		}
		o.metrics.ProviderTurn(p.ID(), string(turn.Shape()))

		calls := turn.ToolCalls()
		if len(calls) == 0 {
			result.Answer = turn.Text()
			return result, nil
		}
		if result.Iterations >= o.maxIterations {
			logger.Warn().Int("iterations", result.Iterations).Int("pending_calls", len(calls)).
				Msg("iteration cap reached, answering with last text")
			result.Answer = turn.Text()
			return result, nil
		}

		outcome := o.dispatcher.Dispatch(ctx, dispatch.Request{
			Calls:        calls,
			Capabilities: caps,
			UserID:       q.UserID,
			NodeID:       q.To.ID,
			Attachments:  q.Attachments,
		})
		result.DroppedCalls += outcome.Dropped
		if outcome.Routed() == 0 {
			logger.Info().Int("dropped", outcome.Dropped).Msg("no routable tool calls, answering with turn text")
			result.Answer = turn.Text()
			return result, nil
		}
		result.Iterations++
		result.ToolCalls += outcome.Routed()

		if turn.Shape() == provider.ShapeFlatCalls {
			if confirmations, ok := dispatch.Shortcut(o.shortcut, outcome.Results); ok {
				for _, c := range confirmations {
					o.metrics.Shortcut(c.Kind)
				}
				logger.Info().Int("confirmations", len(confirmations)).Msg("answering with tool confirmation")
				result.Answer = dispatch.Answer(confirmations)
				result.Shortcut = true
				return result, nil
			}
		}

		messages = append(messages, turn.Reserialize(o.dispatcher.Guard().SanitizeAll(outcome.Results))...)
	}
}

func (o *Orchestrator) buildSystemPrompt(q Query, cat catalog.Catalog) string {
	var sb strings.Builder
	base := strings.TrimSpace(q.To.SystemPrompt)
	if base == "" {
		base = defaultSystemPrompt
	}
	sb.WriteString(base)
	sb.WriteString("\n\n")

	sb.WriteString("## Cross-agent context\n")
	fmt.Fprintf(&sb, "You are %q. The question below comes from another agent, %q, not from a human. ",
		q.To.DisplayName(), q.From.DisplayName())
	sb.WriteString("Answer it directly and completely; your reply is relayed back to that agent as-is.\n")

	if !cat.Empty() {
		sb.WriteString("\n")
		sb.WriteString(o.rules.Section(cat.Families))
		sb.WriteString("\n## Connected integrations\n")
		sb.WriteString("You can act on the user's connected accounts with the tools below. Use them only when the question needs them.\n\n")
		sb.WriteString(cat.SystemPromptAddendum)
		sb.WriteString("\n")
	}

	if len(q.Attachments) > 0 {
		names := make([]string, len(q.Attachments))
		for i, a := range q.Attachments {
			names[i] = a.Name
		}
		sb.WriteString("\n## Uploaded files\n")
		fmt.Fprintf(&sb, "The user uploaded %d file(s): %s. ", len(names), strings.Join(names, ", "))
		sb.WriteString("They are attached automatically when you send or draft an email; mention them in the message body if relevant.\n")
	}
	return sb.String()
}

// buildMessages lays out earlier exchanges as user/assistant pairs followed
// by the current query.
func buildMessages(history []Exchange, text string) []provider.Message {
	messages := make([]provider.Message, 0, 2*len(history)+1)
	for _, h := range history {
		if h.Query != "" {
			messages = append(messages, provider.Message{Role: provider.RoleUser, Content: h.Query})
		}
		if h.Answer != "" {
			messages = append(messages, provider.Message{Role: provider.RoleAssistant, Content: h.Answer})
		}
	}
	return append(messages, provider.Message{Role: provider.RoleUser, Content: text})
}
