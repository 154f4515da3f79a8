package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromConfigDefaultPaths(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{IDOpenAI, "https://app.example.com/api/openai/chat"},
		{IDClaude, "https://app.example.com/api/claude/chat"},
		{IDGrok, "https://app.example.com/api/grok/chat"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, err := FromConfig(ProviderConfig{ID: tt.id, BaseURL: "https://app.example.com/"})
			require.NoError(t, err)
			hp, ok := p.(*HTTPProvider)
			require.True(t, ok, "expected *HTTPProvider, got %T", p)
			assert.Equal(t, tt.want, hp.Endpoint())
		})
	}
}

func TestFromConfigCustomPathAndTimeout(t *testing.T) {
	p, err := FromConfig(ProviderConfig{
		ID:      "claude-eu",
		BaseURL: "https://eu.example.com",
		Path:    "/v2/claude",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	hp := p.(*HTTPProvider)
	assert.Equal(t, "https://eu.example.com/v2/claude", hp.Endpoint())
	assert.Equal(t, 5*time.Second, hp.client.Timeout)
}

func TestFromConfigUnknown(t *testing.T) {
	_, err := FromConfig(ProviderConfig{ID: "gemini", BaseURL: "https://app.example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestFromConfigRequiresBaseURL(t *testing.T) {
	_, err := FromConfig(ProviderConfig{ID: IDOpenAI})
	assert.Error(t, err)
}

func TestKnown(t *testing.T) {
	for _, id := range []string{IDOpenAI, IDClaude, IDGrok} {
		assert.True(t, Known(id), id)
	}
	assert.False(t, Known("gemini"))
}
