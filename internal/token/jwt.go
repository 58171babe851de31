package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

// Claims represents JWT claims carrying the session and account IDs.
type Claims struct {
	jwt.RegisteredClaims
	SessionID uuid.UUID `json:"session_id"`
	AccountID uuid.UUID `json:"account_id"`
	TokenType string    `json:"typ"`
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey string
}

// NewJWT creates a new JWT token manager with the provided secret key.
func NewJWT(secretKey string) model.TokenManager {
	return &JWT{secretKey: secretKey}
}

const typeSession = "session"

// GenerateSessionToken creates a bearer token for an established session.
func (j *JWT) GenerateSessionToken(sessionID, accountID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionID: sessionID,
		AccountID: accountID,
		TokenType: typeSession,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// ParseSessionToken validates a bearer token and extracts the session and
// account IDs.
func (j *JWT) ParseSessionToken(tokenString string) (uuid.UUID, uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("failed to parse session token: %w", err)
	}
	if !token.Valid {
		return uuid.Nil, uuid.Nil, fmt.Errorf("session token is invalid")
	}
	if claims.TokenType != typeSession {
		return uuid.Nil, uuid.Nil, fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	return claims.SessionID, claims.AccountID, nil
}
