package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nodecanvas/askgate/internal/actor"
	"github.com/nodecanvas/askgate/internal/integration"
	"github.com/nodecanvas/askgate/internal/orchestrator"
	"github.com/nodecanvas/askgate/internal/state/store"
)

const maxAskBody = 4 << 20

// unsupportedProviderLabel keeps caller-chosen provider names out of metric labels.
const unsupportedProviderLabel = "unsupported"

// AskRequest is the inbound body of POST /api/ask.
type AskRequest struct {
	Query               string                   `json:"query"`
	QueryID             string                   `json:"queryId"`
	UserID              string                   `json:"userId"`
	FromNodeConfig      *orchestrator.NodeConfig `json:"fromNodeConfig"`
	ToNodeConfig        *orchestrator.NodeConfig `json:"toNodeConfig"`
	ConversationHistory []orchestrator.Exchange  `json:"conversationHistory"`
	UploadedAttachments []integration.Attachment `json:"uploadedAttachments"`
}

// AskResponse is the envelope returned for every ask, successful or not.
type AskResponse struct {
	Success    bool   `json:"success"`
	QueryID    string `json:"queryId"`
	Answer     string `json:"answer,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
	DurationMS int64  `json:"duration_ms"`
}

// ValidationError is a request problem the caller can fix.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the fields every ask needs.
func (r *AskRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Query) == "":
		return &ValidationError{Field: "query", Message: "is required"}
	case strings.TrimSpace(r.UserID) == "":
		return &ValidationError{Field: "userId", Message: "is required"}
	case r.FromNodeConfig == nil:
		return &ValidationError{Field: "fromNodeConfig", Message: "is required"}
	case r.ToNodeConfig == nil:
		return &ValidationError{Field: "toNodeConfig", Message: "is required"}
	case strings.TrimSpace(r.ToNodeConfig.ModelProvider) == "":
		return &ValidationError{Field: "toNodeConfig.model_provider", Message: "is required"}
	}
	return nil
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	start := s.now()

	var req AskRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBody))
	if err := dec.Decode(&req); err != nil {
		s.writeAsk(w, start, "", nil, &ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}
	if req.QueryID == "" {
		req.QueryID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		s.writeAsk(w, start, req.QueryID, nil, err)
		return
	}

	reqLogger := s.base.With().
		Str("query_id", req.QueryID).
		Str("user_id", req.UserID).
		Str("request_id", middleware.GetReqID(r.Context())).
		Logger()
	logger := reqLogger.With().Str("component", "server").Logger()
	ctx := actor.WithRequest(r.Context(), actor.Request{QueryID: req.QueryID, UserID: req.UserID})
	ctx = reqLogger.WithContext(ctx)

	res, err := s.answerer.Run(ctx, orchestrator.Query{
		ID:          req.QueryID,
		UserID:      req.UserID,
		Text:        req.Query,
		From:        *req.FromNodeConfig,
		To:          *req.ToNodeConfig,
		History:     req.ConversationHistory,
		Attachments: req.UploadedAttachments,
	})
	elapsed := s.now().Sub(start)

	iterations := 0
	if res != nil {
		iterations = res.Iterations
	}
	providerLabel := req.ToNodeConfig.ModelProvider
	if errors.Is(err, orchestrator.ErrUnsupportedProvider) {
		providerLabel = unsupportedProviderLabel
	}
	s.metrics.ObserveQuery(providerLabel, err == nil, iterations, elapsed)

	if err != nil {
		logger.Error().Err(err).Dur("took", elapsed).Msg("ask failed")
	} else {
		logger.Info().
			Int("iterations", res.Iterations).
			Int("tool_calls", res.ToolCalls).
			Bool("shortcut", res.Shortcut).
			Dur("took", elapsed).
			Msg("ask answered")
	}
	s.record(r, req, res, err, elapsed)
	s.writeAsk(w, start, req.QueryID, res, err)
}

func (s *Server) record(r *http.Request, req AskRequest, res *orchestrator.Result, runErr error, elapsed time.Duration) {
	if s.queryLog == nil {
		return
	}
	rec := store.QueryRecord{
		QueryID:    req.QueryID,
		UserID:     req.UserID,
		FromNode:   req.FromNodeConfig.ID,
		ToNode:     req.ToNodeConfig.ID,
		Provider:   req.ToNodeConfig.ModelProvider,
		Model:      req.ToNodeConfig.ModelName,
		Success:    runErr == nil,
		DurationMS: elapsed.Milliseconds(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if res != nil {
		rec.Answer = res.Answer
		rec.Iterations = res.Iterations
		rec.ProviderCalls = res.ProviderCalls
		rec.ToolCalls = res.ToolCalls
		rec.Shortcut = res.Shortcut
	}
	if err := s.queryLog.Record(r.Context(), rec); err != nil {
		s.logger.Warn().Err(err).Str("query_id", req.QueryID).Msg("failed to record query")
	}
}

func (s *Server) writeAsk(w http.ResponseWriter, start time.Time, queryID string, res *orchestrator.Result, err error) {
	now := s.now()
	out := AskResponse{
		QueryID:    queryID,
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
		DurationMS: now.Sub(start).Milliseconds(),
	}
	if err != nil {
		out.Error = err.Error()
		writeJSON(w, statusFor(err), out)
		return
	}
	out.Success = true
	out.Answer = res.Answer
	writeJSON(w, http.StatusOK, out)
}

func statusFor(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) || errors.Is(err, orchestrator.ErrUnsupportedProvider) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	if s.queryLog == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "query log disabled"})
		return
	}
	id := chi.URLParam(r, "queryID")
	rec, err := s.queryLog.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("query_id", id).Msg("query lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "query lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
