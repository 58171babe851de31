// Package handler exposes the service layer over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/model"
	"github.com/keysmith-dev/keysmith-server/internal/service"
)

const maxBodyBytes = 10 << 20

// AuthService defines the handshake and session operations.
type AuthService interface {
	InitAuth(ctx context.Context, email string) (service.AuthChallenge, error)
	CreateSession(ctx context.Context, params service.ProofParams) (service.SessionResult, error)
	RevokeSession(ctx context.Context, sessionID uuid.UUID) error
	UpdateAuth(ctx context.Context, accountID uuid.UUID, verifier, kdf []byte, groupName string) error
}

// Auth handles login handshakes and session lifecycle.
type Auth struct {
	service        AuthService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuth creates the auth handler.
func NewAuth(service AuthService, contextManager model.ContextManager, logger *logger.Logger) *Auth {
	return &Auth{service: service, contextManager: contextManager, logger: logger}
}

type initAuthRequest struct {
	Email string `json:"email"`
}

type initAuthResponse struct {
	HandshakeID uuid.UUID `json:"handshakeId"`
	Group       string    `json:"group"`
	Salt        []byte    `json:"salt"`
	B           []byte    `json:"b"`
	KDF         []byte    `json:"kdf"`
}

// InitAuth handles POST /api/v1/auth/init.
func (h *Auth) InitAuth(w http.ResponseWriter, r *http.Request) {
	var req initAuthRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	if req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	challenge, err := h.service.InitAuth(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, initAuthResponse{
		HandshakeID: challenge.HandshakeID,
		Group:       challenge.Group,
		Salt:        challenge.Salt,
		B:           challenge.B,
		KDF:         challenge.KDF,
	})
}

type createSessionRequest struct {
	HandshakeID uuid.UUID `json:"handshakeId"`
	A           []byte    `json:"a"`
	Proof       []byte    `json:"proof"`
}

type createSessionResponse struct {
	SessionID   uuid.UUID `json:"sessionId"`
	AccountID   uuid.UUID `json:"accountId"`
	Token       string    `json:"token"`
	ServerProof []byte    `json:"serverProof"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// CreateSession handles POST /api/v1/auth/session.
func (h *Auth) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	if req.HandshakeID == uuid.Nil || len(req.A) == 0 || len(req.Proof) == 0 {
		writeBadRequest(w, "handshakeId, a and proof are required")
		return
	}

	result, err := h.service.CreateSession(r.Context(), service.ProofParams{
		HandshakeID: req.HandshakeID,
		A:           req.A,
		Proof:       req.Proof,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:   result.SessionID,
		AccountID:   result.AccountID,
		Token:       result.Token,
		ServerProof: result.ServerProof,
		ExpiresAt:   result.ExpiresAt,
	})
}

// RevokeSession handles DELETE /api/v1/auth/session for the current session.
func (h *Auth) RevokeSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	if err := h.service.RevokeSession(r.Context(), session.ID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type updateAuthRequest struct {
	Verifier []byte `json:"verifier"`
	KDF      []byte `json:"kdf"`
	Group    string `json:"group"`
}

// UpdateAuth handles PUT /api/v1/auth, replacing the caller's verifier.
func (h *Auth) UpdateAuth(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req updateAuthRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}

	if err := h.service.UpdateAuth(r.Context(), session.AccountID, req.Verifier, req.KDF, req.Group); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeBody decodes a bounded JSON body, writing the error response
// itself so callers can just return on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid request body")
		return err
	}
	return nil
}
