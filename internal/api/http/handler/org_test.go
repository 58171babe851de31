package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keysmith-dev/keysmith-server/internal/model"
	"github.com/keysmith-dev/keysmith-server/internal/testutil"
)

func newOrgHandler(svc *orgServiceMock, accounts *accountServiceMock) *Org {
	return NewOrg(svc, accounts, ctxMgr, testutil.MakeNoopLogger())
}

func TestOrg_CreateOrg(t *testing.T) {
	svc := &orgServiceMock{}
	h := newOrgHandler(svc, &accountServiceMock{})

	session := testSession()
	stored := model.StoredOrg{ID: uuid.New(), Name: "Acme", Version: 1, Data: []byte("{}")}
	svc.On("CreateOrg", mock.Anything, session.AccountID, stored.Data).Return(stored, nil)

	rec := httptest.NewRecorder()
	req := withSession(jsonRequest(t, http.MethodPost, "/api/v1/orgs", map[string]any{"data": stored.Data}), session)
	h.CreateOrg(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp orgResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, stored.ID, resp.ID)
}

func TestOrg_CreateOrg_NotAMember(t *testing.T) {
	svc := &orgServiceMock{}
	h := newOrgHandler(svc, &accountServiceMock{})

	svc.On("CreateOrg", mock.Anything, mock.Anything, mock.Anything).
		Return(model.StoredOrg{}, model.ErrInsufficientPermissions)

	rec := httptest.NewRecorder()
	req := withSession(jsonRequest(t, http.MethodPost, "/api/v1/orgs", map[string]any{"data": []byte("{}")}), testSession())
	h.CreateOrg(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrg_UpdateOrg(t *testing.T) {
	svc := &orgServiceMock{}
	h := newOrgHandler(svc, &accountServiceMock{})

	session := testSession()
	orgID := uuid.New()
	updated := model.StoredOrg{ID: orgID, Name: "Acme", Version: 3, Data: []byte("{}")}
	svc.On("UpdateOrg", mock.Anything, session.AccountID, orgID, int16(2), []byte("{}")).Return(updated, nil)

	rec := httptest.NewRecorder()
	req := withSession(jsonRequest(t, http.MethodPut, "/api/v1/orgs/"+orgID.String(), map[string]any{
		"version": 2,
		"data":    []byte("{}"),
	}), session)
	req = withURLParam(req, "org_id", orgID.String())
	h.UpdateOrg(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp orgResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 3, resp.Version)
}

func TestOrg_DeleteOrg(t *testing.T) {
	svc := &orgServiceMock{}
	h := newOrgHandler(svc, &accountServiceMock{})

	session := testSession()
	orgID := uuid.New()
	svc.On("DeleteOrg", mock.Anything, session.AccountID, orgID).Return(nil)

	rec := httptest.NewRecorder()
	req := withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/orgs/"+orgID.String(), nil), session)
	req = withURLParam(req, "org_id", orgID.String())
	h.DeleteOrg(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOrg_Groups(t *testing.T) {
	svc := &orgServiceMock{}
	h := newOrgHandler(svc, &accountServiceMock{})

	session := testSession()
	orgID := uuid.New()

	t.Run("create", func(t *testing.T) {
		stored := model.StoredGroup{ID: uuid.New(), OrgID: orgID, Name: "Engineering", Version: 1, Data: []byte("{}")}
		svc.On("CreateGroup", mock.Anything, session.AccountID, orgID, stored.Data).Return(stored, nil)

		rec := httptest.NewRecorder()
		req := withSession(jsonRequest(t, http.MethodPost, "/api/v1/orgs/"+orgID.String()+"/groups", map[string]any{"data": stored.Data}), session)
		req = withURLParam(req, "org_id", orgID.String())
		h.CreateGroup(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp groupResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, orgID, resp.OrgID)
	})

	t.Run("list", func(t *testing.T) {
		groups := []model.StoredGroup{
			{ID: uuid.New(), OrgID: orgID, Version: 1, Data: []byte("{}")},
		}
		svc.On("ListGroups", mock.Anything, session.AccountID, orgID).Return(groups, nil)

		rec := httptest.NewRecorder()
		req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/orgs/"+orgID.String()+"/groups", nil), session)
		req = withURLParam(req, "org_id", orgID.String())
		h.ListGroups(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp []groupResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 1)
	})

	t.Run("non-member denied", func(t *testing.T) {
		deniedID := uuid.New()
		svc.On("GetGroup", mock.Anything, session.AccountID, deniedID).
			Return(model.StoredGroup{}, model.ErrInsufficientPermissions)

		rec := httptest.NewRecorder()
		req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/groups/"+deniedID.String(), nil), session)
		req = withURLParam(req, "group_id", deniedID.String())
		h.GetGroup(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestOrg_CreateInvite(t *testing.T) {
	svc := &orgServiceMock{}
	h := newOrgHandler(svc, &accountServiceMock{})

	session := testSession()
	orgID := uuid.New()
	stored := model.StoredInvite{
		ID:        uuid.New(),
		OrgID:     orgID,
		Email:     "carol@example.com",
		Version:   1,
		Data:      []byte("{}"),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	svc.On("CreateInvite", mock.Anything, session.AccountID, orgID, stored.Data).Return(stored, nil)

	rec := httptest.NewRecorder()
	req := withSession(jsonRequest(t, http.MethodPost, "/api/v1/orgs/"+orgID.String()+"/invites", map[string]any{"data": stored.Data}), session)
	req = withURLParam(req, "org_id", orgID.String())
	h.CreateInvite(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp inviteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, stored.Email, resp.Email)
	assert.False(t, resp.Used)
}

func TestOrg_GetInvite_ResolvesCallerEmail(t *testing.T) {
	svc := &orgServiceMock{}
	accounts := &accountServiceMock{}
	h := newOrgHandler(svc, accounts)

	session := testSession()
	account := testAccount()
	account.ID = session.AccountID
	accounts.On("GetAccount", mock.Anything, session.AccountID).Return(account, nil)

	inviteID := uuid.New()
	stored := model.StoredInvite{ID: inviteID, Email: account.Email, Version: 1, Data: []byte("{}")}
	svc.On("GetInvite", mock.Anything, account.Email, inviteID).Return(stored, nil)

	rec := httptest.NewRecorder()
	req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/invites/"+inviteID.String(), nil), session)
	req = withURLParam(req, "invite_id", inviteID.String())
	h.GetInvite(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
	accounts.AssertExpectations(t)
}

func TestOrg_AcceptInvite_Expired(t *testing.T) {
	svc := &orgServiceMock{}
	accounts := &accountServiceMock{}
	h := newOrgHandler(svc, accounts)

	session := testSession()
	account := testAccount()
	account.ID = session.AccountID
	accounts.On("GetAccount", mock.Anything, session.AccountID).Return(account, nil)

	inviteID := uuid.New()
	svc.On("AcceptInvite", mock.Anything, account.Email, inviteID).
		Return(model.StoredInvite{}, model.ErrInviteExpired)

	rec := httptest.NewRecorder()
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/invites/"+inviteID.String()+"/accept", nil), session)
	req = withURLParam(req, "invite_id", inviteID.String())
	h.AcceptInvite(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestOrg_AcceptInvite(t *testing.T) {
	svc := &orgServiceMock{}
	accounts := &accountServiceMock{}
	h := newOrgHandler(svc, accounts)

	session := testSession()
	account := testAccount()
	account.ID = session.AccountID
	accounts.On("GetAccount", mock.Anything, session.AccountID).Return(account, nil)

	inviteID := uuid.New()
	stored := model.StoredInvite{ID: inviteID, Email: account.Email, Version: 1, Data: []byte("{}"), Used: true}
	svc.On("AcceptInvite", mock.Anything, account.Email, inviteID).Return(stored, nil)

	rec := httptest.NewRecorder()
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/invites/"+inviteID.String()+"/accept", nil), session)
	req = withURLParam(req, "invite_id", inviteID.String())
	h.AcceptInvite(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp inviteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Used)
}
