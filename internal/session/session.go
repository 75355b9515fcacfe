// Package session manages storefront sessions: opaque bearer tokens that tie
// a browser to its commerce-API session and active order. This is the only
// state the storefront persists itself.
package session

import (
	"context"
	"time"
)

// Session links a storefront token to the commerce platform.
type Session struct {
	ID            string
	Token         string
	CommerceToken string
	ActiveOrderID *string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Repository persists sessions.
type Repository interface {
	Create(ctx context.Context, session Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Update(ctx context.Context, session Session) error
	Delete(ctx context.Context, token string) error
}
