package provider

import (
	"fmt"
	"net/http"
	"time"
)

// Provider ids a target node may select with model_provider.
const (
	IDOpenAI = "openai"
	IDClaude = "claude"
	IDGrok   = "grok"
)

var defaultPaths = map[string]string{
	IDOpenAI: "/api/openai/chat",
	IDClaude: "/api/claude/chat",
	IDGrok:   "/api/grok/chat",
}

// Known reports whether id has a default chat route.
func Known(id string) bool {
	_, ok := defaultPaths[id]
	return ok
}

// ProviderConfig mirrors config.ProviderConfig to avoid circular imports.
type ProviderConfig struct {
	ID      string
	BaseURL string
	Path    string
	APIKey  string
	Timeout time.Duration
}

// FromConfig creates a provider for one of the supported chat routes.
// Path defaults to the web app's route for the id.
func FromConfig(cfg ProviderConfig) (Provider, error) {
	path := cfg.Path
	if path == "" {
		def, ok := defaultPaths[cfg.ID]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q (supported: %s, %s, %s)", cfg.ID, IDOpenAI, IDClaude, IDGrok)
		}
		path = def
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %q: base_url is required", cfg.ID)
	}
	var opts []HTTPOption
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return NewHTTPProvider(cfg.ID, cfg.BaseURL, path, cfg.APIKey, opts...), nil
}
