package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nodecanvas/askgate/internal/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProviderComplete(t *testing.T) {
	temp := 0.3
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/claude/chat", r.URL.Path)
		assert.Equal(t, "Bearer svc", r.Header.Get("Authorization"))
		assert.Equal(t, "q-1", r.Header.Get("X-Query-ID"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-1", body["userId"])
		assert.Equal(t, "claude-sonnet-4-5", body["model"])
		assert.Equal(t, "Be brief.", body["systemPrompt"])
		assert.Equal(t, 0.3, body["temperature"])
		assert.Equal(t, float64(1024), body["maxTokens"])
		assert.Equal(t, true, body["enableWebSearch"])
		tools, ok := body["tools"].([]interface{})
		require.True(t, ok)
		require.Len(t, tools, 1)
		tool := tools[0].(map[string]interface{})
		assert.Equal(t, "docs_read", tool["name"])
		assert.Contains(t, tool, "input_schema")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content": "hello"}`))
	}))
	defer server.Close()

	p := NewHTTPProvider(IDClaude, server.URL+"/", "/api/claude/chat", "svc")
	ctx := actor.WithRequest(context.Background(), actor.Request{QueryID: "q-1"})
	turn, err := p.Complete(ctx, &TurnRequest{
		UserID:          "user-1",
		Messages:        []Message{{Role: RoleUser, Content: "hi"}},
		Model:           "claude-sonnet-4-5",
		SystemPrompt:    "Be brief.",
		Temperature:     &temp,
		MaxTokens:       1024,
		EnableWebSearch: true,
		Tools:           []Tool{{Name: "docs_read", Description: "Read", InputSchema: json.RawMessage(`{"type":"object"}`)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", turn.Text())
}

func TestHTTPProviderOmitsEmptyTools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "tools")
		_, _ = w.Write([]byte(`{"content": "ok"}`))
	}))
	defer server.Close()

	_, err := NewHTTPProvider(IDOpenAI, server.URL, "/", "").Complete(context.Background(), &TurnRequest{})
	require.NoError(t, err)
}

func TestHTTPProviderNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	_, err := NewHTTPProvider(IDGrok, server.URL, "/api/grok/chat", "").Complete(context.Background(), &TurnRequest{})
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Equal(t, "rate limited", perr.Message)
	assert.Equal(t, "grok api error (status 429): rate limited", perr.Error())
}

func TestHTTPProviderMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer server.Close()

	_, err := NewHTTPProvider(IDOpenAI, server.URL, "/api/openai/chat", "").Complete(context.Background(), &TurnRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal turn")
}
