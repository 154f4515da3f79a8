package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nodecanvas/askgate/internal/actor"
)

// HTTPExecutor posts a family's batch to the web app's server-side tool route.
type HTTPExecutor struct {
	family string
	url    string
	token  string
	client *http.Client
}

// HTTPExecutorOption configures an HTTPExecutor.
type HTTPExecutorOption func(*HTTPExecutor)

// WithExecutorHTTPClient sets a custom HTTP client.
func WithExecutorHTTPClient(c *http.Client) HTTPExecutorOption {
	return func(e *HTTPExecutor) { e.client = c }
}

// WithExecutorToken sets the service token sent as a bearer credential.
func WithExecutorToken(token string) HTTPExecutorOption {
	return func(e *HTTPExecutor) { e.token = token }
}

func NewHTTPExecutor(family, url string, opts ...HTTPExecutorOption) *HTTPExecutor {
	e := &HTTPExecutor{
		family: family,
		url:    url,
		client: &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type executeResponse struct {
	Results []ToolCallResult `json:"results"`
	Error   string           `json:"error,omitempty"`
}

func (e *HTTPExecutor) Execute(ctx context.Context, req ExecuteRequest) ([]ToolCallResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.token)
	}
	if id := actor.QueryID(ctx); id != "" {
		httpReq.Header.Set("X-Query-ID", id)
	}

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s executor: http request: %w", e.family, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s executor: read response: %w", e.family, err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("%s executor error (status %d): %s", e.family, httpResp.StatusCode, string(respBody))
	}

	var resp executeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%s executor: unmarshal response: %w", e.family, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s executor: %s", e.family, resp.Error)
	}
	return resp.Results, nil
}
