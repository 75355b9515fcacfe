package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

// Manager issues and resolves storefront sessions.
type Manager struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

// NewManager builds a Manager with the given session lifetime.
func NewManager(repo Repository, ttl time.Duration) *Manager {
	return &Manager{repo: repo, ttl: ttl, now: time.Now}
}

// Issue creates and persists a fresh anonymous session.
func (m *Manager) Issue(ctx context.Context) (*Session, error) {
	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	session := Session{
		ID:        uuid.NewString(),
		Token:     token,
		ExpiresAt: m.now().Add(m.ttl),
	}
	if err := m.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return &session, nil
}

// Resolve looks a session up by token. Expired sessions are deleted and
// reported as domain.ErrSessionExpired; unknown tokens as domain.ErrNotFound.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	session, err := m.repo.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Expired(m.now()) {
		if derr := m.repo.Delete(ctx, token); derr != nil && !errors.Is(derr, domain.ErrNotFound) {
			return nil, derr
		}
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

// Bind records the commerce token and active order id assigned by the
// commerce API during a call made on this session. An empty commerceToken or
// orderID leaves the respective field unchanged.
func (m *Manager) Bind(ctx context.Context, session *Session, commerceToken, orderID string) error {
	changed := false
	if commerceToken != "" && commerceToken != session.CommerceToken {
		session.CommerceToken = commerceToken
		changed = true
	}
	if orderID != "" && (session.ActiveOrderID == nil || *session.ActiveOrderID != orderID) {
		session.ActiveOrderID = &orderID
		changed = true
	}
	if !changed {
		return nil
	}
	return m.repo.Update(ctx, *session)
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
