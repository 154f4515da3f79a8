package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// QueryRecord is one answered (or failed) ask query.
type QueryRecord struct {
	QueryID       string    `json:"queryId"`
	UserID        string    `json:"userId"`
	FromNode      string    `json:"fromNode"`
	ToNode        string    `json:"toNode"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	Success       bool      `json:"success"`
	Answer        string    `json:"answer,omitempty"`
	Error         string    `json:"error,omitempty"`
	Iterations    int       `json:"iterations"`
	ProviderCalls int       `json:"providerCalls"`
	ToolCalls     int       `json:"toolCalls"`
	Shortcut      bool      `json:"shortcut"`
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ErrNotFound is returned by Get for an unknown query id.
var ErrNotFound = errors.New("not found")

type QueryLogStore struct {
	db *DB
}

func NewQueryLogStore(db *DB) *QueryLogStore {
	return &QueryLogStore{db: db}
}

// Record stores r. A repeated query id replaces the earlier row.
func (s *QueryLogStore) Record(ctx context.Context, r QueryRecord) error {
	if r.QueryID == "" {
		return fmt.Errorf("query log: query id is required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.SQLDB().ExecContext(ctx, s.db.rebind(`
		INSERT INTO query_log (query_id, user_id, from_node, to_node, provider, model, success, answer, error,
			iterations, provider_calls, tool_calls, shortcut, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (query_id) DO UPDATE SET
			user_id = excluded.user_id,
			from_node = excluded.from_node,
			to_node = excluded.to_node,
			provider = excluded.provider,
			model = excluded.model,
			success = excluded.success,
			answer = excluded.answer,
			error = excluded.error,
			iterations = excluded.iterations,
			provider_calls = excluded.provider_calls,
			tool_calls = excluded.tool_calls,
			shortcut = excluded.shortcut,
			duration_ms = excluded.duration_ms,
			created_at = excluded.created_at`),
		r.QueryID, r.UserID, r.FromNode, r.ToNode, r.Provider, r.Model, boolInt(r.Success), r.Answer, r.Error,
		r.Iterations, r.ProviderCalls, r.ToolCalls, boolInt(r.Shortcut), r.DurationMS, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("query log %s: record: %w", r.QueryID, err)
	}
	return nil
}

func (s *QueryLogStore) Get(ctx context.Context, queryID string) (*QueryRecord, error) {
	var (
		r                 QueryRecord
		success, shortcut int
		createdAt         string
	)
	err := s.db.SQLDB().QueryRowContext(ctx, s.db.rebind(`
		SELECT query_id, user_id, from_node, to_node, provider, model, success, answer, error,
			iterations, provider_calls, tool_calls, shortcut, duration_ms, created_at
		FROM query_log WHERE query_id = ?`), queryID).Scan(
		&r.QueryID, &r.UserID, &r.FromNode, &r.ToNode, &r.Provider, &r.Model, &success, &r.Answer, &r.Error,
		&r.Iterations, &r.ProviderCalls, &r.ToolCalls, &shortcut, &r.DurationMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query %q: %w", queryID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", queryID, err)
	}
	r.Success = success != 0
	r.Shortcut = shortcut != 0
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

// PruneBefore deletes records created before cutoff and reports how many
// were removed.
func (s *QueryLogStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.SQLDB().ExecContext(ctx, s.db.rebind(`DELETE FROM query_log WHERE created_at < ?`), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("query log: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("query log: prune: %w", err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
