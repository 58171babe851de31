package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/model"
)

// VaultService defines vault and attachment operations.
type VaultService interface {
	CreateVault(ctx context.Context, accountID uuid.UUID, data []byte) (model.StoredVault, error)
	GetVault(ctx context.Context, accountID, vaultID uuid.UUID) (model.StoredVault, error)
	UpdateVault(ctx context.Context, accountID, vaultID uuid.UUID, version int16, data []byte) (model.StoredVault, error)
	DeleteVault(ctx context.Context, accountID, vaultID uuid.UUID) error
	ListOrgVaults(ctx context.Context, accountID, orgID uuid.UUID) ([]model.StoredVault, error)
	UploadAttachment(ctx context.Context, accountID, vaultID uuid.UUID, attachmentID string, reader io.Reader) error
	DownloadAttachment(ctx context.Context, accountID, vaultID uuid.UUID, attachmentID string) (io.ReadCloser, error)
	DeleteAttachment(ctx context.Context, accountID, vaultID uuid.UUID, attachmentID string) error
}

// Vault handles vault CRUD and attachment transfer.
type Vault struct {
	service        VaultService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewVault creates the vault handler.
func NewVault(service VaultService, contextManager model.ContextManager, logger *logger.Logger) *Vault {
	return &Vault{service: service, contextManager: contextManager, logger: logger}
}

type vaultResponse struct {
	ID        uuid.UUID  `json:"id"`
	OrgID     *uuid.UUID `json:"orgId,omitempty"`
	Name      string     `json:"name"`
	Version   int16      `json:"version"`
	Data      []byte     `json:"data"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func toVaultResponse(v model.StoredVault) vaultResponse {
	return vaultResponse{
		ID:        v.ID,
		OrgID:     v.OrgID,
		Name:      v.Name,
		Version:   v.Version,
		Data:      v.Data,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

type createVaultRequest struct {
	Data []byte `json:"data"`
}

// CreateVault handles POST /api/v1/vaults.
func (h *Vault) CreateVault(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req createVaultRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	if len(req.Data) == 0 {
		writeBadRequest(w, "data is required")
		return
	}

	vault, err := h.service.CreateVault(r.Context(), session.AccountID, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toVaultResponse(vault))
}

// GetVault handles GET /api/v1/vaults/{vault_id}.
func (h *Vault) GetVault(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	vaultID, ok := parseIDParam(w, r, "vault_id")
	if !ok {
		return
	}

	vault, err := h.service.GetVault(r.Context(), session.AccountID, vaultID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toVaultResponse(vault))
}

type updateVaultRequest struct {
	Version int16  `json:"version"`
	Data    []byte `json:"data"`
}

// UpdateVault handles PUT /api/v1/vaults/{vault_id}.
func (h *Vault) UpdateVault(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	vaultID, ok := parseIDParam(w, r, "vault_id")
	if !ok {
		return
	}

	var req updateVaultRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	if len(req.Data) == 0 {
		writeBadRequest(w, "data is required")
		return
	}

	vault, err := h.service.UpdateVault(r.Context(), session.AccountID, vaultID, req.Version, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toVaultResponse(vault))
}

// DeleteVault handles DELETE /api/v1/vaults/{vault_id}.
func (h *Vault) DeleteVault(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	vaultID, ok := parseIDParam(w, r, "vault_id")
	if !ok {
		return
	}

	if err := h.service.DeleteVault(r.Context(), session.AccountID, vaultID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListOrgVaults handles GET /api/v1/orgs/{org_id}/vaults.
func (h *Vault) ListOrgVaults(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	orgID, ok := parseIDParam(w, r, "org_id")
	if !ok {
		return
	}

	vaults, err := h.service.ListOrgVaults(r.Context(), session.AccountID, orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]vaultResponse, 0, len(vaults))
	for _, v := range vaults {
		resp = append(resp, toVaultResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UploadAttachment handles PUT /api/v1/vaults/{vault_id}/attachments/{attachment_id}.
// The body is the attachment ciphertext, streamed as-is.
func (h *Vault) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	vaultID, ok := parseIDParam(w, r, "vault_id")
	if !ok {
		return
	}
	attachmentID := chi.URLParam(r, "attachment_id")
	if attachmentID == "" || len(attachmentID) > 64 {
		writeBadRequest(w, "invalid attachment id")
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := h.service.UploadAttachment(r.Context(), session.AccountID, vaultID, attachmentID, body); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DownloadAttachment handles GET /api/v1/vaults/{vault_id}/attachments/{attachment_id}.
func (h *Vault) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	vaultID, ok := parseIDParam(w, r, "vault_id")
	if !ok {
		return
	}
	attachmentID := chi.URLParam(r, "attachment_id")
	if attachmentID == "" {
		writeBadRequest(w, "invalid attachment id")
		return
	}

	rc, err := h.service.DownloadAttachment(r.Context(), session.AccountID, vaultID, attachmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("vault handler: attachment stream interrupted", "vault_id", vaultID, "error", err)
	}
}

// DeleteAttachment handles DELETE /api/v1/vaults/{vault_id}/attachments/{attachment_id}.
func (h *Vault) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	vaultID, ok := parseIDParam(w, r, "vault_id")
	if !ok {
		return
	}
	attachmentID := chi.URLParam(r, "attachment_id")
	if attachmentID == "" {
		writeBadRequest(w, "invalid attachment id")
		return
	}

	if err := h.service.DeleteAttachment(r.Context(), session.AccountID, vaultID, attachmentID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseIDParam parses a UUID route parameter, writing the error response
// itself on failure.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
