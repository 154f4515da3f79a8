package connection

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// Connection is a user's stored OAuth link to an external provider.
type Connection struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Provider     string        `json:"provider"`
	AccountEmail string        `json:"account_email,omitempty"`
	Token        *oauth2.Token `json:"token,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Active reports whether the connection can still act for the user: its
// access token is valid or it holds a refresh token.
func (c *Connection) Active() bool {
	if c == nil || c.ID == "" {
		return false
	}
	if c.Token == nil {
		return true
	}
	return c.Token.Valid() || c.Token.RefreshToken != ""
}

// Lookup finds the active connection a user holds for a provider
// ("google" or "slack"). A nil connection with a nil error means none.
type Lookup interface {
	GetConnection(ctx context.Context, userID, provider string) (*Connection, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, userID, provider string) (*Connection, error)

func (f LookupFunc) GetConnection(ctx context.Context, userID, provider string) (*Connection, error) {
	return f(ctx, userID, provider)
}
