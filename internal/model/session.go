package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PendingHandshakeDuration is a TTL for pending SRP handshakes.
const PendingHandshakeDuration = time.Minute * 2

// SessionStore persists authenticated sessions.
type SessionStore interface {
	Create(ctx context.Context, session Session) error
	GetByID(ctx context.Context, id uuid.UUID) (Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error
}

// Session binds an account to an authenticated channel. Key is the AEAD
// session key derived from the SRP shared secret; it lives for the life
// of the session.
type Session struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Key       []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// HandshakeStore persists pending SRP handshakes between initAuth and
// createSession.
type HandshakeStore interface {
	Create(ctx context.Context, h PendingHandshake) error
	GetByID(ctx context.Context, id uuid.UUID) (PendingHandshake, error)
	Consume(ctx context.Context, id uuid.UUID) error
}

// PendingHandshake holds the server's SRP ephemeral state for one login
// attempt. Simulated marks handshakes issued for unknown accounts; they
// carry well-formed state and always fail verification.
type PendingHandshake struct {
	ID        uuid.UUID
	Email     string
	B         []byte
	SecretB   []byte
	Verifier  []byte
	Salt      []byte
	Simulated bool
	ExpiresAt time.Time
	Consumed  bool
}
