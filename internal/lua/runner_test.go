package lua

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prep.lua")
	require.NoError(t, os.WriteFile(path, []byte(script), 0600))
	return path
}

func TestPrepareReturnsString(t *testing.T) {
	p, err := Load(writeScript(t, `function prepare(text) return "rewritten: " .. text end`))
	require.NoError(t, err)

	result, err := p.Prepare(context.Background(), "hello", Request{})
	require.NoError(t, err)
	assert.True(t, result.SendToLLM)
	assert.Equal(t, "rewritten: hello", result.Query)
}

func TestPrepareBlocksWithMessage(t *testing.T) {
	p, err := Load(writeScript(t, `
function prepare(text, req)
  if string.find(text, "password") then
    return { send_to_llm = false, message = "I can't help with credentials, " .. req.from_node .. "." }
  end
  return text
end
`))
	require.NoError(t, err)

	result, err := p.Prepare(context.Background(), "what is the admin password?", Request{FromNode: "Planner"})
	require.NoError(t, err)
	assert.False(t, result.SendToLLM)
	assert.Equal(t, "I can't help with credentials, Planner.", result.Query)

	result, err = p.Prepare(context.Background(), "list my events", Request{FromNode: "Planner"})
	require.NoError(t, err)
	assert.True(t, result.SendToLLM)
	assert.Equal(t, "list my events", result.Query)
}

func TestPrepareTableWithoutMessageKeepsQuery(t *testing.T) {
	p, err := Load(writeScript(t, `function prepare(text) return { send_to_llm = true } end`))
	require.NoError(t, err)

	result, err := p.Prepare(context.Background(), "original", Request{})
	require.NoError(t, err)
	assert.True(t, result.SendToLLM)
	assert.Equal(t, "original", result.Query)
}

func TestPrepareSeesRequestFields(t *testing.T) {
	p, err := Load(writeScript(t, `
function prepare(text, req)
  return req.query_id .. "|" .. req.user_id .. "|" .. req.to_node .. "|" .. req.provider
end
`))
	require.NoError(t, err)

	result, err := p.Prepare(context.Background(), "", Request{QueryID: "q1", UserID: "u1", ToNode: "Mailer", Provider: "claude"})
	require.NoError(t, err)
	assert.Equal(t, "q1|u1|Mailer|claude", result.Query)
}

func TestPrepareGetenv(t *testing.T) {
	t.Setenv("ASKGATE_PREFIX", "ctx:")
	p, err := Load(writeScript(t, `
local os = require("os")
function prepare(text) return os.getenv("ASKGATE_PREFIX") .. text end
`))
	require.NoError(t, err)

	result, err := p.Prepare(context.Background(), "x", Request{})
	require.NoError(t, err)
	assert.Equal(t, "ctx:x", result.Query)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.lua"))
	require.Error(t, err)

	_, err = Load(writeScript(t, `function prepare(text`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse script")
}

func TestPrepareErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"no prepare", `x = 1`, "must define global function prepare"},
		{"not a function", `prepare = 42`, "prepare must be a function"},
		{"runtime error", `function prepare(text) error("boom") end`, "boom"},
		{"bad return", `function prepare(text) return 7 end`, "must return string or table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Load(writeScript(t, tt.script))
			require.NoError(t, err)
			_, err = p.Prepare(context.Background(), "q", Request{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
