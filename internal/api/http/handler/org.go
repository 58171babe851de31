package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/model"
)

// OrgService defines organization, group and invite operations.
type OrgService interface {
	CreateOrg(ctx context.Context, accountID uuid.UUID, data []byte) (model.StoredOrg, error)
	GetOrg(ctx context.Context, accountID, orgID uuid.UUID) (model.StoredOrg, error)
	UpdateOrg(ctx context.Context, accountID, orgID uuid.UUID, version int16, data []byte) (model.StoredOrg, error)
	DeleteOrg(ctx context.Context, accountID, orgID uuid.UUID) error
	CreateGroup(ctx context.Context, accountID, orgID uuid.UUID, data []byte) (model.StoredGroup, error)
	GetGroup(ctx context.Context, accountID, groupID uuid.UUID) (model.StoredGroup, error)
	ListGroups(ctx context.Context, accountID, orgID uuid.UUID) ([]model.StoredGroup, error)
	UpdateGroup(ctx context.Context, accountID, groupID uuid.UUID, version int16, data []byte) (model.StoredGroup, error)
	DeleteGroup(ctx context.Context, accountID, groupID uuid.UUID) error
	CreateInvite(ctx context.Context, accountID, orgID uuid.UUID, data []byte) (model.StoredInvite, error)
	GetInvite(ctx context.Context, email string, inviteID uuid.UUID) (model.StoredInvite, error)
	AcceptInvite(ctx context.Context, email string, inviteID uuid.UUID) (model.StoredInvite, error)
}

// AccountDirectory resolves the caller's account record.
type AccountDirectory interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (model.Account, error)
}

// Org handles organization, group and invite endpoints.
type Org struct {
	service        OrgService
	accountService AccountDirectory
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewOrg creates the org handler. Invite endpoints are addressed by the
// caller's email, so the handler resolves accounts too.
func NewOrg(service OrgService, accountService AccountDirectory, contextManager model.ContextManager, logger *logger.Logger) *Org {
	return &Org{
		service:        service,
		accountService: accountService,
		contextManager: contextManager,
		logger:         logger,
	}
}

type orgResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Version   int16     `json:"version"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toOrgResponse(o model.StoredOrg) orgResponse {
	return orgResponse{
		ID:        o.ID,
		Name:      o.Name,
		Version:   o.Version,
		Data:      o.Data,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

type createOrgRequest struct {
	Data []byte `json:"data"`
}

// CreateOrg handles POST /api/v1/orgs.
func (h *Org) CreateOrg(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req createOrgRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	if len(req.Data) == 0 {
		writeBadRequest(w, "data is required")
		return
	}

	org, err := h.service.CreateOrg(r.Context(), session.AccountID, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrgResponse(org))
}

// GetOrg handles GET /api/v1/orgs/{org_id}.
func (h *Org) GetOrg(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	orgID, ok := parseIDParam(w, r, "org_id")
	if !ok {
		return
	}

	org, err := h.service.GetOrg(r.Context(), session.AccountID, orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrgResponse(org))
}

type updateOrgRequest struct {
	Version int16  `json:"version"`
	Data    []byte `json:"data"`
}

// UpdateOrg handles PUT /api/v1/orgs/{org_id}.
func (h *Org) UpdateOrg(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	orgID, ok := parseIDParam(w, r, "org_id")
	if !ok {
		return
	}

	var req updateOrgRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	if len(req.Data) == 0 {
		writeBadRequest(w, "data is required")
		return
	}

	org, err := h.service.UpdateOrg(r.Context(), session.AccountID, orgID, req.Version, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrgResponse(org))
}

// DeleteOrg handles DELETE /api/v1/orgs/{org_id}.
func (h *Org) DeleteOrg(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	orgID, ok := parseIDParam(w, r, "org_id")
	if !ok {
		return
	}

	if err := h.service.DeleteOrg(r.Context(), session.AccountID, orgID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type groupResponse struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"orgId"`
	Name      string    `json:"name"`
	Version   int16     `json:"version"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toGroupResponse(g model.StoredGroup) groupResponse {
	return groupResponse{
		ID:        g.ID,
		OrgID:     g.OrgID,
		Name:      g.Name,
		Version:   g.Version,
		Data:      g.Data,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

type createGroupRequest struct {
	Data []byte `json:"data"`
}

// CreateGroup handles POST /api/v1/orgs/{org_id}/groups.
func (h *Org) CreateGroup(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	orgID, ok := parseIDParam(w, r, "org_id")
	if !ok {
		return
	}

	var req createGroupRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	if len(req.Data) == 0 {
		writeBadRequest(w, "data is required")
		return
	}

	group, err := h.service.CreateGroup(r.Context(), session.AccountID, orgID, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGroupResponse(group))
}

// GetGroup handles GET /api/v1/groups/{group_id}.
func (h *Org) GetGroup(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	groupID, ok := parseIDParam(w, r, "group_id")
	if !ok {
		return
	}

	group, err := h.service.GetGroup(r.Context(), session.AccountID, groupID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGroupResponse(group))
}

// ListGroups handles GET /api/v1/orgs/{org_id}/groups.
func (h *Org) ListGroups(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	orgID, ok := parseIDParam(w, r, "org_id")
	if !ok {
		return
	}

	groups, err := h.service.ListGroups(r.Context(), session.AccountID, orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, toGroupResponse(g))
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateGroupRequest struct {
	Version int16  `json:"version"`
	Data    []byte `json:"data"`
}

// UpdateGroup handles PUT /api/v1/groups/{group_id}.
func (h *Org) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	groupID, ok := parseIDParam(w, r, "group_id")
	if !ok {
		return
	}

	var req updateGroupRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	if len(req.Data) == 0 {
		writeBadRequest(w, "data is required")
		return
	}

	group, err := h.service.UpdateGroup(r.Context(), session.AccountID, groupID, req.Version, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGroupResponse(group))
}

// DeleteGroup handles DELETE /api/v1/groups/{group_id}.
func (h *Org) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	groupID, ok := parseIDParam(w, r, "group_id")
	if !ok {
		return
	}

	if err := h.service.DeleteGroup(r.Context(), session.AccountID, groupID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type inviteResponse struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"orgId"`
	Email     string    `json:"email"`
	Version   int16     `json:"version"`
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"createdAt"`
}

func toInviteResponse(i model.StoredInvite) inviteResponse {
	return inviteResponse{
		ID:        i.ID,
		OrgID:     i.OrgID,
		Email:     i.Email,
		Version:   i.Version,
		Data:      i.Data,
		ExpiresAt: i.ExpiresAt,
		Used:      i.Used,
		CreatedAt: i.CreatedAt,
	}
}

type createInviteRequest struct {
	Data []byte `json:"data"`
}

// CreateInvite handles POST /api/v1/orgs/{org_id}/invites.
func (h *Org) CreateInvite(w http.ResponseWriter, r *http.Request) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	orgID, ok := parseIDParam(w, r, "org_id")
	if !ok {
		return
	}

	var req createInviteRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	if len(req.Data) == 0 {
		writeBadRequest(w, "data is required")
		return
	}

	invite, err := h.service.CreateInvite(r.Context(), session.AccountID, orgID, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInviteResponse(invite))
}

// GetInvite handles GET /api/v1/invites/{invite_id}. Invites are looked
// up by the caller's own email; other people's invites read as absent.
func (h *Org) GetInvite(w http.ResponseWriter, r *http.Request) {
	email, ok := h.callerEmail(w, r)
	if !ok {
		return
	}

	inviteID, ok := parseIDParam(w, r, "invite_id")
	if !ok {
		return
	}

	invite, err := h.service.GetInvite(r.Context(), email, inviteID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInviteResponse(invite))
}

// AcceptInvite handles POST /api/v1/invites/{invite_id}/accept.
func (h *Org) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	email, ok := h.callerEmail(w, r)
	if !ok {
		return
	}

	inviteID, ok := parseIDParam(w, r, "invite_id")
	if !ok {
		return
	}

	invite, err := h.service.AcceptInvite(r.Context(), email, inviteID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInviteResponse(invite))
}

func (h *Org) callerEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	session, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return "", false
	}

	account, err := h.accountService.GetAccount(r.Context(), session.AccountID)
	if err != nil {
		writeError(w, err)
		return "", false
	}

	return account.Email, true
}
