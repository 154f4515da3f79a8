package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nodecanvas/askgate/internal/actor"
)

// Error is a non-2xx answer from a provider route. It is fatal to the query.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// HTTPProvider posts each turn to one chat route of the web app
// (e.g. /api/claude/chat). Responses may be in either tool-call shape.
type HTTPProvider struct {
	id      string
	baseURL string
	path    string
	apiKey  string
	client  *http.Client
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.client = c }
}

// NewHTTPProvider creates a provider for the route at baseURL+path.
func NewHTTPProvider(id, baseURL, path, apiKey string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		id:      id,
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    path,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *HTTPProvider) ID() string { return p.id }

// Endpoint is the full URL turns are posted to.
func (p *HTTPProvider) Endpoint() string { return p.baseURL + p.path }

// Complete sends one turn. There is no retry.
func (p *HTTPProvider) Complete(ctx context.Context, req *TurnRequest) (Turn, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(ctx, httpReq)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &Error{Provider: p.id, StatusCode: httpResp.StatusCode, Message: errorMessage(respBody)}
	}

	turn, err := DecodeTurn(respBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.id, err)
	}
	return turn, nil
}

func (p *HTTPProvider) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	if id := actor.QueryID(ctx); id != "" {
		req.Header.Set("X-Query-ID", id)
	}
}

// errorMessage prefers the route's {"error": "..."} field over the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
