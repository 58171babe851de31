package handler

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/keysmith-dev/keysmith-server/internal/model"
	"github.com/keysmith-dev/keysmith-server/internal/service"
)

type authServiceMock struct {
	mock.Mock
}

func (m *authServiceMock) InitAuth(ctx context.Context, email string) (service.AuthChallenge, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(service.AuthChallenge), args.Error(1)
}

func (m *authServiceMock) CreateSession(ctx context.Context, params service.ProofParams) (service.SessionResult, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(service.SessionResult), args.Error(1)
}

func (m *authServiceMock) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *authServiceMock) UpdateAuth(ctx context.Context, accountID uuid.UUID, verifier, kdf []byte, groupName string) error {
	args := m.Called(ctx, accountID, verifier, kdf, groupName)
	return args.Error(0)
}

type accountServiceMock struct {
	mock.Mock
}

func (m *accountServiceMock) StartVerification(ctx context.Context, email string, purpose model.VerificationPurpose) error {
	args := m.Called(ctx, email, purpose)
	return args.Error(0)
}

func (m *accountServiceMock) CreateAccount(ctx context.Context, params service.CreateAccountParams) (model.Account, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *accountServiceMock) RecoverAccount(ctx context.Context, params service.RecoverAccountParams) (model.Account, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *accountServiceMock) GetAccount(ctx context.Context, accountID uuid.UUID) (model.Account, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *accountServiceMock) LookupAccount(ctx context.Context, email string) (service.PublicAccount, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(service.PublicAccount), args.Error(1)
}

func (m *accountServiceMock) UpdateAccount(ctx context.Context, accountID uuid.UUID, params service.UpdateAccountParams) (model.Account, error) {
	args := m.Called(ctx, accountID, params)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *accountServiceMock) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

type vaultServiceMock struct {
	mock.Mock
}

func (m *vaultServiceMock) CreateVault(ctx context.Context, accountID uuid.UUID, data []byte) (model.StoredVault, error) {
	args := m.Called(ctx, accountID, data)
	return args.Get(0).(model.StoredVault), args.Error(1)
}

func (m *vaultServiceMock) GetVault(ctx context.Context, accountID, vaultID uuid.UUID) (model.StoredVault, error) {
	args := m.Called(ctx, accountID, vaultID)
	return args.Get(0).(model.StoredVault), args.Error(1)
}

func (m *vaultServiceMock) UpdateVault(ctx context.Context, accountID, vaultID uuid.UUID, version int16, data []byte) (model.StoredVault, error) {
	args := m.Called(ctx, accountID, vaultID, version, data)
	return args.Get(0).(model.StoredVault), args.Error(1)
}

func (m *vaultServiceMock) DeleteVault(ctx context.Context, accountID, vaultID uuid.UUID) error {
	args := m.Called(ctx, accountID, vaultID)
	return args.Error(0)
}

func (m *vaultServiceMock) ListOrgVaults(ctx context.Context, accountID, orgID uuid.UUID) ([]model.StoredVault, error) {
	args := m.Called(ctx, accountID, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StoredVault), args.Error(1)
}

func (m *vaultServiceMock) UploadAttachment(ctx context.Context, accountID, vaultID uuid.UUID, attachmentID string, reader io.Reader) error {
	args := m.Called(ctx, accountID, vaultID, attachmentID, reader)
	return args.Error(0)
}

func (m *vaultServiceMock) DownloadAttachment(ctx context.Context, accountID, vaultID uuid.UUID, attachmentID string) (io.ReadCloser, error) {
	args := m.Called(ctx, accountID, vaultID, attachmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *vaultServiceMock) DeleteAttachment(ctx context.Context, accountID, vaultID uuid.UUID, attachmentID string) error {
	args := m.Called(ctx, accountID, vaultID, attachmentID)
	return args.Error(0)
}

type orgServiceMock struct {
	mock.Mock
}

func (m *orgServiceMock) CreateOrg(ctx context.Context, accountID uuid.UUID, data []byte) (model.StoredOrg, error) {
	args := m.Called(ctx, accountID, data)
	return args.Get(0).(model.StoredOrg), args.Error(1)
}

func (m *orgServiceMock) GetOrg(ctx context.Context, accountID, orgID uuid.UUID) (model.StoredOrg, error) {
	args := m.Called(ctx, accountID, orgID)
	return args.Get(0).(model.StoredOrg), args.Error(1)
}

func (m *orgServiceMock) UpdateOrg(ctx context.Context, accountID, orgID uuid.UUID, version int16, data []byte) (model.StoredOrg, error) {
	args := m.Called(ctx, accountID, orgID, version, data)
	return args.Get(0).(model.StoredOrg), args.Error(1)
}

func (m *orgServiceMock) DeleteOrg(ctx context.Context, accountID, orgID uuid.UUID) error {
	args := m.Called(ctx, accountID, orgID)
	return args.Error(0)
}

func (m *orgServiceMock) CreateGroup(ctx context.Context, accountID, orgID uuid.UUID, data []byte) (model.StoredGroup, error) {
	args := m.Called(ctx, accountID, orgID, data)
	return args.Get(0).(model.StoredGroup), args.Error(1)
}

func (m *orgServiceMock) GetGroup(ctx context.Context, accountID, groupID uuid.UUID) (model.StoredGroup, error) {
	args := m.Called(ctx, accountID, groupID)
	return args.Get(0).(model.StoredGroup), args.Error(1)
}

func (m *orgServiceMock) ListGroups(ctx context.Context, accountID, orgID uuid.UUID) ([]model.StoredGroup, error) {
	args := m.Called(ctx, accountID, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StoredGroup), args.Error(1)
}

func (m *orgServiceMock) UpdateGroup(ctx context.Context, accountID, groupID uuid.UUID, version int16, data []byte) (model.StoredGroup, error) {
	args := m.Called(ctx, accountID, groupID, version, data)
	return args.Get(0).(model.StoredGroup), args.Error(1)
}

func (m *orgServiceMock) DeleteGroup(ctx context.Context, accountID, groupID uuid.UUID) error {
	args := m.Called(ctx, accountID, groupID)
	return args.Error(0)
}

func (m *orgServiceMock) CreateInvite(ctx context.Context, accountID, orgID uuid.UUID, data []byte) (model.StoredInvite, error) {
	args := m.Called(ctx, accountID, orgID, data)
	return args.Get(0).(model.StoredInvite), args.Error(1)
}

func (m *orgServiceMock) GetInvite(ctx context.Context, email string, inviteID uuid.UUID) (model.StoredInvite, error) {
	args := m.Called(ctx, email, inviteID)
	return args.Get(0).(model.StoredInvite), args.Error(1)
}

func (m *orgServiceMock) AcceptInvite(ctx context.Context, email string, inviteID uuid.UUID) (model.StoredInvite, error) {
	args := m.Called(ctx, email, inviteID)
	return args.Get(0).(model.StoredInvite), args.Error(1)
}
