package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenManager issues and validates the bearer tokens that reference
// server-side sessions. The token proves nothing by itself; the session
// it points at must still exist and be unexpired.
type TokenManager interface {
	GenerateSessionToken(sessionID, accountID uuid.UUID, ttl time.Duration) (string, error)
	ParseSessionToken(token string) (sessionID, accountID uuid.UUID, err error)
}
