package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/nodecanvas/askgate/internal/connection"
)

// ConnectionStore keeps users' OAuth connections. It is the backing
// connection.Lookup for capability resolution.
type ConnectionStore struct {
	db *DB
}

func NewConnectionStore(db *DB) *ConnectionStore {
	return &ConnectionStore{db: db}
}

// Upsert inserts or replaces a connection by id.
func (s *ConnectionStore) Upsert(ctx context.Context, c *connection.Connection) error {
	if c.ID == "" || c.UserID == "" || c.Provider == "" {
		return fmt.Errorf("connection: id, user_id and provider are required")
	}
	token := ""
	if c.Token != nil {
		data, err := json.Marshal(c.Token)
		if err != nil {
			return fmt.Errorf("connection %s: encode token: %w", c.ID, err)
		}
		token = string(data)
	}
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	now := formatTime(time.Now())
	_, err := s.db.SQLDB().ExecContext(ctx, s.db.rebind(`
		INSERT INTO connections (id, user_id, provider, account_email, token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			provider = excluded.provider,
			account_email = excluded.account_email,
			token = excluded.token,
			updated_at = excluded.updated_at`),
		c.ID, c.UserID, c.Provider, c.AccountEmail, token, formatTime(created), now)
	if err != nil {
		return fmt.Errorf("connection %s: upsert: %w", c.ID, err)
	}
	return nil
}

// Delete removes a connection. Deleting an unknown id is not an error.
func (s *ConnectionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.SQLDB().ExecContext(ctx, s.db.rebind(`DELETE FROM connections WHERE id = ?`), id); err != nil {
		return fmt.Errorf("connection %s: delete: %w", id, err)
	}
	return nil
}

// GetConnection returns the user's most recently updated active connection
// for provider, or nil when there is none.
func (s *ConnectionStore) GetConnection(ctx context.Context, userID, provider string) (*connection.Connection, error) {
	rows, err := s.db.SQLDB().QueryContext(ctx, s.db.rebind(`
		SELECT id, account_email, token, created_at FROM connections
		WHERE user_id = ? AND provider = ?
		ORDER BY updated_at DESC`), userID, provider)
	if err != nil {
		return nil, fmt.Errorf("connection lookup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, email, token, createdAt string
		if err := rows.Scan(&id, &email, &token, &createdAt); err != nil {
			return nil, fmt.Errorf("connection lookup: scan: %w", err)
		}
		c := &connection.Connection{
			ID:           id,
			UserID:       userID,
			Provider:     provider,
			AccountEmail: email,
			CreatedAt:    parseTime(createdAt),
		}
		if token != "" {
			var tok oauth2.Token
			if err := json.Unmarshal([]byte(token), &tok); err != nil {
				return nil, fmt.Errorf("connection %s: decode token: %w", id, err)
			}
			c.Token = &tok
		}
		if c.Active() {
			return c, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("connection lookup: %w", err)
	}
	return nil, nil
}
