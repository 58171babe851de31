// Package middleware contains the HTTP request pipeline.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/model"
)

// Authenticate validates bearer tokens and injects the session into the
// request context. Tokens are checked against the session store, so a
// revoked session is rejected even while its token is still valid.
type Authenticate struct {
	tokenManager   model.TokenManager
	sessionStore   model.SessionStore
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates the authentication middleware.
func NewAuthenticate(tokenManager model.TokenManager, sessionStore model.SessionStore, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{
		tokenManager:   tokenManager,
		sessionStore:   sessionStore,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Handle wraps next with bearer token authentication.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || tokenString == "" {
			writeAuthError(w, "missing authorization token")
			return
		}

		sessionID, accountID, err := m.tokenManager.ParseSessionToken(tokenString)
		if err != nil {
			writeAuthError(w, "invalid authorization token")
			return
		}

		session, err := m.sessionStore.GetByID(r.Context(), sessionID)
		if err != nil {
			writeAuthError(w, "invalid authorization token")
			return
		}
		if session.AccountID != accountID || session.Expired(time.Now()) {
			writeAuthError(w, "invalid authorization token")
			return
		}

		ctx := m.contextManager.SetSessionToContext(r.Context(), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    model.CodeAuthenticationFailed,
		"message": message,
	})
}
