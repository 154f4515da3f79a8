package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecanvas/askgate/internal/capability"
	"github.com/nodecanvas/askgate/internal/integration"
	"github.com/nodecanvas/askgate/internal/metrics"
)

type recordingExecutor struct {
	mu       sync.Mutex
	requests []integration.ExecuteRequest
	respond  func(req integration.ExecuteRequest) ([]integration.ToolCallResult, error)
}

func (r *recordingExecutor) Execute(_ context.Context, req integration.ExecuteRequest) ([]integration.ToolCallResult, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.respond != nil {
		return r.respond(req)
	}
	out := make([]integration.ToolCallResult, len(req.Calls))
	for i, c := range req.Calls {
		out[i] = integration.ToolCallResult{ToolCallID: c.ID, Result: `{"ok":"` + c.Name + `"}`}
	}
	return out, nil
}

func usable(f integration.Family, perms integration.Permissions) capability.EffectiveCapability {
	return capability.EffectiveCapability{Family: f, Enabled: true, ConnectionID: "conn", Permissions: perms}
}

func allUsable() capability.Capabilities {
	var caps capability.Capabilities
	for _, f := range integration.DefaultRegistry().Families() {
		caps = append(caps, usable(f, f.FullPermissions()))
	}
	return caps
}

func TestDispatchRoutesByPrefixAndKeepsOrder(t *testing.T) {
	gmail := &recordingExecutor{}
	calendar := &recordingExecutor{}
	d := New(integration.DefaultRegistry(), map[string]integration.Executor{
		"gmail":    gmail,
		"calendar": calendar,
	})

	out := d.Dispatch(context.Background(), Request{
		Calls: []integration.ToolCallRequest{
			{ID: "c1", Name: "calendar_list_events"},
			{ID: "c2", Name: "gmail_search"},
			{ID: "c3", Name: "calendar_create_event"},
		},
		Capabilities: allUsable(),
		UserID:       "u1",
		NodeID:       "n1",
	})

	require.Len(t, out.Results, 3)
	assert.Equal(t, "c1", out.Results[0].ToolCallID)
	assert.Equal(t, "c2", out.Results[1].ToolCallID)
	assert.Equal(t, "c3", out.Results[2].ToolCallID)
	assert.Zero(t, out.Dropped)

	require.Len(t, calendar.requests, 1)
	assert.Len(t, calendar.requests[0].Calls, 2)
	assert.Equal(t, "u1", calendar.requests[0].UserID)
	assert.Equal(t, "n1", calendar.requests[0].NodeID)
	assert.True(t, calendar.requests[0].Permissions.Has(integration.CanCreate))
	require.Len(t, gmail.requests, 1)
}

func TestDispatchDropsUnroutableCalls(t *testing.T) {
	docs := &recordingExecutor{}
	m := metrics.New()
	d := New(integration.DefaultRegistry(), map[string]integration.Executor{"docs": docs}, WithMetrics(m))

	caps := capability.Capabilities{
		usable(integration.Docs(), integration.Permissions{integration.CanRead: true}),
		{Family: integration.Slack(), Enabled: true, Permissions: integration.Permissions{integration.CanRead: true}},
	}
	out := d.Dispatch(context.Background(), Request{
		Calls: []integration.ToolCallRequest{
			{ID: "c1", Name: "weather_lookup"},
			{ID: "c2", Name: "slack_read_messages"},
			{ID: "c3", Name: "sheets_read"},
			{ID: "c4", Name: "docs_read"},
		},
		Capabilities: caps,
	})

	assert.Equal(t, 3, out.Dropped)
	require.Equal(t, 1, out.Routed())
	assert.Equal(t, "c4", out.Results[0].ToolCallID)
}

func TestDispatchNothingRoutable(t *testing.T) {
	d := New(integration.DefaultRegistry(), map[string]integration.Executor{})
	out := d.Dispatch(context.Background(), Request{
		Calls:        []integration.ToolCallRequest{{ID: "c1", Name: "gmail_send"}},
		Capabilities: allUsable(),
	})
	assert.Zero(t, out.Routed())
	assert.Equal(t, 1, out.Dropped)
}

func TestDispatchExecutorErrorFailsWholePartitionOnly(t *testing.T) {
	sheets := &recordingExecutor{respond: func(integration.ExecuteRequest) ([]integration.ToolCallResult, error) {
		return nil, errors.New("token expired")
	}}
	slack := &recordingExecutor{}
	d := New(integration.DefaultRegistry(), map[string]integration.Executor{"sheets": sheets, "slack": slack})

	out := d.Dispatch(context.Background(), Request{
		Calls: []integration.ToolCallRequest{
			{ID: "s1", Name: "sheets_read"},
			{ID: "k1", Name: "slack_list_channels"},
			{ID: "s2", Name: "sheets_list"},
		},
		Capabilities: allUsable(),
	})

	require.Len(t, out.Results, 3)
	assert.True(t, out.Results[0].IsError)
	assert.Contains(t, out.Results[0].Result, "token expired")
	assert.False(t, out.Results[1].IsError)
	assert.True(t, out.Results[2].IsError)
	assert.Equal(t, "s2", out.Results[2].ToolCallID)
}

func TestDispatchMissingResultBecomesError(t *testing.T) {
	docs := &recordingExecutor{respond: func(req integration.ExecuteRequest) ([]integration.ToolCallResult, error) {
		return []integration.ToolCallResult{{ToolCallID: req.Calls[1].ID, Result: "{}"}}, nil
	}}
	d := New(integration.DefaultRegistry(), map[string]integration.Executor{"docs": docs})

	out := d.Dispatch(context.Background(), Request{
		Calls: []integration.ToolCallRequest{
			{ID: "d1", Name: "docs_search"},
			{ID: "d2", Name: "docs_read"},
		},
		Capabilities: allUsable(),
	})
	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].IsError)
	assert.Equal(t, "d1", out.Results[0].ToolCallID)
	assert.False(t, out.Results[1].IsError)
}

func TestDispatchRepeatedIDsKeepRequestOrder(t *testing.T) {
	echo := &recordingExecutor{respond: func(req integration.ExecuteRequest) ([]integration.ToolCallResult, error) {
		out := make([]integration.ToolCallResult, len(req.Calls))
		for i, c := range req.Calls {
			out[i] = integration.ToolCallResult{ToolCallID: c.ID, Result: `{"n":"` + c.Input["n"].(string) + `"}`}
		}
		return out, nil
	}}
	d := New(integration.DefaultRegistry(), map[string]integration.Executor{"calendar": echo})

	for _, id := range []string{"", "dup"} {
		out := d.Dispatch(context.Background(), Request{
			Calls: []integration.ToolCallRequest{
				{ID: id, Name: "calendar_list_events", Input: map[string]interface{}{"n": "first"}},
				{ID: id, Name: "calendar_list_events", Input: map[string]interface{}{"n": "second"}},
			},
			Capabilities: allUsable(),
		})
		require.Len(t, out.Results, 2)
		assert.Equal(t, `{"n":"first"}`, out.Results[0].Result, "id %q", id)
		assert.Equal(t, `{"n":"second"}`, out.Results[1].Result, "id %q", id)
	}
}

func TestDispatchUnlabelledResultsMatchByPosition(t *testing.T) {
	sheets := &recordingExecutor{respond: func(req integration.ExecuteRequest) ([]integration.ToolCallResult, error) {
		return []integration.ToolCallResult{{Result: "a"}, {Result: "b"}}, nil
	}}
	d := New(integration.DefaultRegistry(), map[string]integration.Executor{"sheets": sheets})

	out := d.Dispatch(context.Background(), Request{
		Calls: []integration.ToolCallRequest{
			{ID: "s1", Name: "sheets_list"},
			{ID: "s2", Name: "sheets_read"},
		},
		Capabilities: allUsable(),
	})
	require.Len(t, out.Results, 2)
	assert.Equal(t, "s1", out.Results[0].ToolCallID)
	assert.Equal(t, "a", out.Results[0].Result)
	assert.Equal(t, "s2", out.Results[1].ToolCallID)
	assert.Equal(t, "b", out.Results[1].Result)
}

func TestRoutes(t *testing.T) {
	d := New(integration.DefaultRegistry(), map[string]integration.Executor{"docs": &recordingExecutor{}, "slack": nil})
	assert.True(t, d.Routes("docs"))
	assert.False(t, d.Routes("slack"))
	assert.False(t, d.Routes("gmail"))
}

func TestDispatchFamiliesRunConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})
	blocking := func(req integration.ExecuteRequest) ([]integration.ToolCallResult, error) {
		started.Done()
		<-release
		return []integration.ToolCallResult{{ToolCallID: req.Calls[0].ID, Result: "{}"}}, nil
	}
	d := New(integration.DefaultRegistry(), map[string]integration.Executor{
		"docs":   &recordingExecutor{respond: blocking},
		"sheets": &recordingExecutor{respond: blocking},
	})

	done := make(chan Outcome, 1)
	go func() {
		done <- d.Dispatch(context.Background(), Request{
			Calls: []integration.ToolCallRequest{
				{ID: "d1", Name: "docs_read"},
				{ID: "s1", Name: "sheets_read"},
			},
			Capabilities: allUsable(),
		})
	}()

	waited := make(chan struct{})
	go func() { started.Wait(); close(waited) }()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("families did not run concurrently")
	}
	close(release)
	out := <-done
	assert.Len(t, out.Results, 2)
}

func gmailSendInput(t *testing.T, d *Dispatcher, input map[string]interface{}, attachments []integration.Attachment) map[string]interface{} {
	t.Helper()
	gmail := &recordingExecutor{}
	d.executors = map[string]integration.Executor{"gmail": gmail}
	d.Dispatch(context.Background(), Request{
		Calls:        []integration.ToolCallRequest{{ID: "g1", Name: "gmail_send", Input: input}},
		Capabilities: allUsable(),
		Attachments:  attachments,
	})
	require.Len(t, gmail.requests, 1)
	return gmail.requests[0].Calls[0].Input
}

func TestAttachmentInjection(t *testing.T) {
	uploads := []integration.Attachment{{ID: "a1", Name: "report.pdf"}}

	t.Run("injected when absent", func(t *testing.T) {
		d := New(integration.DefaultRegistry(), nil)
		input := map[string]interface{}{"to": "x@example.com"}
		got := gmailSendInput(t, d, input, uploads)
		assert.Equal(t, true, got["includeUploadedAttachments"])
		_, mutated := input["includeUploadedAttachments"]
		assert.False(t, mutated, "model input must not be modified")
	})

	t.Run("explicit false kept by default", func(t *testing.T) {
		d := New(integration.DefaultRegistry(), nil)
		got := gmailSendInput(t, d, map[string]interface{}{"includeUploadedAttachments": false}, uploads)
		assert.Equal(t, false, got["includeUploadedAttachments"])
	})

	t.Run("null flag treated as unset", func(t *testing.T) {
		d := New(integration.DefaultRegistry(), nil)
		got := gmailSendInput(t, d, map[string]interface{}{"includeUploadedAttachments": nil}, uploads)
		assert.Equal(t, true, got["includeUploadedAttachments"])
	})

	t.Run("explicit false overridden with always", func(t *testing.T) {
		d := New(integration.DefaultRegistry(), nil, WithAttachmentPolicy(AttachAlways))
		got := gmailSendInput(t, d, map[string]interface{}{"includeUploadedAttachments": false}, uploads)
		assert.Equal(t, true, got["includeUploadedAttachments"])
	})

	t.Run("no uploads no injection", func(t *testing.T) {
		d := New(integration.DefaultRegistry(), nil)
		got := gmailSendInput(t, d, map[string]interface{}{"to": "x@example.com"}, nil)
		_, set := got["includeUploadedAttachments"]
		assert.False(t, set)
	})

	t.Run("nil input", func(t *testing.T) {
		d := New(integration.DefaultRegistry(), nil)
		got := gmailSendInput(t, d, nil, uploads)
		assert.Equal(t, true, got["includeUploadedAttachments"])
	})
}

func TestAttachmentInjectionOnlyForComposeTools(t *testing.T) {
	d := New(integration.DefaultRegistry(), nil)
	call := d.prepareCall(integration.ToolCallRequest{Name: "gmail_search", Input: map[string]interface{}{}}, []integration.Attachment{{ID: "a"}})
	_, set := call.Input["includeUploadedAttachments"]
	assert.False(t, set)

	call = d.prepareCall(integration.ToolCallRequest{Name: "gmail_draft"}, []integration.Attachment{{ID: "a"}})
	assert.Equal(t, true, call.Input["includeUploadedAttachments"])
}
