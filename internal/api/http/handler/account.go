package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/model"
	"github.com/keysmith-dev/keysmith-server/internal/service"
)

// AccountService defines signup, recovery and account maintenance
// operations.
type AccountService interface {
	StartVerification(ctx context.Context, email string, purpose model.VerificationPurpose) error
	CreateAccount(ctx context.Context, params service.CreateAccountParams) (model.Account, error)
	RecoverAccount(ctx context.Context, params service.RecoverAccountParams) (model.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (model.Account, error)
	LookupAccount(ctx context.Context, email string) (service.PublicAccount, error)
	UpdateAccount(ctx context.Context, accountID uuid.UUID, params service.UpdateAccountParams) (model.Account, error)
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error
}

// Account handles signup, recovery and account maintenance.
type Account struct {
	service        AccountService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAccount creates the account handler.
func NewAccount(service AccountService, contextManager model.ContextManager, logger *logger.Logger) *Account {
	return &Account{service: service, contextManager: contextManager, logger: logger}
}

type accountResponse struct {
	ID                  uuid.UUID `json:"id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	PublicKey           []byte    `json:"publicKey"`
	KeyParams           []byte    `json:"keyParams"`
	EncryptedPrivateKey []byte    `json:"encryptedPrivateKey"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func toAccountResponse(a model.Account) accountResponse {
	return accountResponse{
		ID:                  a.ID,
		Email:               a.Email,
		Name:                a.Name,
		PublicKey:           a.PublicKey,
		KeyParams:           a.KeyParams,
		EncryptedPrivateKey: a.EncryptedPrivateKey,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

type startVerificationRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

// StartVerification handles POST /api/v1/accounts/verify.
func (h *Account) StartVerification(w http.ResponseWriter, r *http.Request) {
	var req startVerificationRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	if req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	purpose := model.VerificationPurpose(req.Purpose)
	if purpose != model.PurposeSignup && purpose != model.PurposeRecover {
		writeBadRequest(w, "purpose must be signup or recover")
		return
	}

	if err := h.service.StartVerification(r.Context(), req.Email, purpose); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type createAccountRequest struct {
	Email               string `json:"email"`
	Name                string `json:"name"`
	VerifyToken         string `json:"verifyToken"`
	PublicKey           []byte `json:"publicKey"`
	KeyParams           []byte `json:"keyParams"`
	EncryptedPrivateKey []byte `json:"encryptedPrivateKey"`
	Verifier            []byte `json:"verifier"`
	KDF                 []byte `json:"kdf"`
	Group               string `json:"group"`
}

// CreateAccount handles POST /api/v1/accounts.
func (h *Account) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}

	account, err := h.service.CreateAccount(r.Context(), service.CreateAccountParams{
		Email:               req.Email,
		Name:                req.Name,
		VerifyToken:         req.VerifyToken,
		PublicKey:           req.PublicKey,
		KeyParams:           req.KeyParams,
		EncryptedPrivateKey: req.EncryptedPrivateKey,
		Verifier:            req.Verifier,
		KDF:                 req.KDF,
		Group:               req.Group,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

type recoverAccountRequest struct {
	Email               string `json:"email"`
	VerifyToken         string `json:"verifyToken"`
	PublicKey           []byte `json:"publicKey"`
	KeyParams           []byte `json:"keyParams"`
	EncryptedPrivateKey []byte `json:"encryptedPrivateKey"`
	Verifier            []byte `json:"verifier"`
	KDF                 []byte `json:"kdf"`
	Group               string `json:"group"`
}

// RecoverAccount handles POST /api/v1/accounts/recover.
func (h *Account) RecoverAccount(w http.ResponseWriter, r *http.Request) {
	var req recoverAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}

	account, err := h.service.RecoverAccount(r.Context(), service.RecoverAccountParams{
		Email:               req.Email,
		VerifyToken:         req.VerifyToken,
		PublicKey:           req.PublicKey,
		KeyParams:           req.KeyParams,
		EncryptedPrivateKey: req.EncryptedPrivateKey,
		Verifier:            req.Verifier,
		KDF:                 req.KDF,
		Group:               req.Group,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// GetAccount handles GET /api/v1/accounts/me.
func (h *Account) GetAccount(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	account, err := h.service.GetAccount(r.Context(), session.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

type publicAccountResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	PublicKey []byte    `json:"publicKey"`
}

// LookupAccount handles GET /api/v1/accounts/lookup?email=. It returns
// the directory view used to wrap keys to another principal.
func (h *Account) LookupAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.contextManager.GetSessionFromContext(r.Context()); !ok {
		writeUnauthorized(w)
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		writeBadRequest(w, "email query parameter is required")
		return
	}

	account, err := h.service.LookupAccount(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, publicAccountResponse{
		ID:        account.ID,
		Email:     account.Email,
		Name:      account.Name,
		PublicKey: account.PublicKey,
	})
}

type updateAccountRequest struct {
	Name                *string `json:"name"`
	EncryptedPrivateKey []byte  `json:"encryptedPrivateKey"`
	KeyParams           []byte  `json:"keyParams"`
}

// UpdateAccount handles PATCH /api/v1/accounts/me.
func (h *Account) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req updateAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), session.AccountID, service.UpdateAccountParams{
		Name:                req.Name,
		EncryptedPrivateKey: req.EncryptedPrivateKey,
		KeyParams:           req.KeyParams,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// DeleteAccount handles DELETE /api/v1/accounts/me.
func (h *Account) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), session.AccountID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
