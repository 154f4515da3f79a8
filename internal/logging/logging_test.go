package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: FormatJSON}, &buf)
	require.NoError(t, err)

	cl := l.With().Str("component", "dispatch").Logger()
	cl.Info().Str("family", "gmail").Msg("dispatched")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "dispatch", entry["component"])
	assert.Equal(t, "gmail", entry["family"])
	assert.Equal(t, "dispatched", entry["message"])
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Format: FormatJSON}, &buf)
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())

	l.Info().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestNewDefaults(t *testing.T) {
	l, err := New(Config{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(Config{Level: "loud"}, nil)
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"}, nil)
	assert.Error(t, err)
}

func TestCtxPrefersRequestLogger(t *testing.T) {
	var reqBuf, fallbackBuf bytes.Buffer
	reqLogger := zerolog.New(&reqBuf).With().Str("query_id", "q-1").Logger()
	fallback := zerolog.New(&fallbackBuf).With().Str("component", "dispatch").Logger()

	ctx := reqLogger.WithContext(context.Background())
	cl := Ctx(ctx, fallback, "dispatch")
	cl.Info().Msg("routed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(reqBuf.Bytes(), &entry))
	assert.Equal(t, "q-1", entry["query_id"])
	assert.Equal(t, "dispatch", entry["component"])
	assert.Empty(t, fallbackBuf.String())
}

func TestCtxFallsBack(t *testing.T) {
	var buf bytes.Buffer
	fallback := zerolog.New(&buf)

	cl := Ctx(context.Background(), fallback, "dispatch")
	cl.Info().Msg("routed")
	assert.Contains(t, buf.String(), "routed")
}
