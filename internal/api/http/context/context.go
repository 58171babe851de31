// Package context carries the authenticated session through request contexts.
package context

import (
	"context"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

type contextKey int

const sessionKey contextKey = iota

// Manager implements model.ContextManager on plain request contexts.
type Manager struct{}

// NewManager creates a new context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetSessionToContext returns a context carrying the session.
func (m *Manager) SetSessionToContext(ctx context.Context, session model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// GetSessionFromContext retrieves the session set by the authentication
// middleware. The boolean is false on unauthenticated contexts.
func (m *Manager) GetSessionFromContext(ctx context.Context) (model.Session, bool) {
	session, ok := ctx.Value(sessionKey).(model.Session)
	return session, ok
}
