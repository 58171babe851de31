// Package mocks provides testify mocks for the model interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

// AccountStore is a mock of model.AccountStore.
type AccountStore struct {
	mock.Mock
}

func (m *AccountStore) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *AccountStore) Create(ctx context.Context, account model.Account) (model.Account, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *AccountStore) Update(ctx context.Context, account model.Account) (model.Account, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *AccountStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// AuthStore is a mock of model.AuthStore.
type AuthStore struct {
	mock.Mock
}

func (m *AuthStore) GetByAccountID(ctx context.Context, accountID uuid.UUID) (model.AuthRecord, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(model.AuthRecord), args.Error(1)
}

func (m *AuthStore) GetByEmail(ctx context.Context, email string) (model.AuthRecord, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.AuthRecord), args.Error(1)
}

func (m *AuthStore) Create(ctx context.Context, auth model.AuthRecord) error {
	args := m.Called(ctx, auth)
	return args.Error(0)
}

func (m *AuthStore) Update(ctx context.Context, auth model.AuthRecord) error {
	args := m.Called(ctx, auth)
	return args.Error(0)
}

// SessionStore is a mock of model.SessionStore.
type SessionStore struct {
	mock.Mock
}

func (m *SessionStore) Create(ctx context.Context, session model.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *SessionStore) GetByID(ctx context.Context, id uuid.UUID) (model.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Session), args.Error(1)
}

func (m *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *SessionStore) DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

// HandshakeStore is a mock of model.HandshakeStore.
type HandshakeStore struct {
	mock.Mock
}

func (m *HandshakeStore) Create(ctx context.Context, h model.PendingHandshake) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *HandshakeStore) GetByID(ctx context.Context, id uuid.UUID) (model.PendingHandshake, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.PendingHandshake), args.Error(1)
}

func (m *HandshakeStore) Consume(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// VerificationStore is a mock of model.VerificationStore.
type VerificationStore struct {
	mock.Mock
}

func (m *VerificationStore) Create(ctx context.Context, v model.EmailVerification) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *VerificationStore) GetByEmail(ctx context.Context, email string, purpose model.VerificationPurpose) (model.EmailVerification, error) {
	args := m.Called(ctx, email, purpose)
	return args.Get(0).(model.EmailVerification), args.Error(1)
}

func (m *VerificationStore) Consume(ctx context.Context, email string, purpose model.VerificationPurpose) error {
	args := m.Called(ctx, email, purpose)
	return args.Error(0)
}

// VaultStore is a mock of model.VaultStore.
type VaultStore struct {
	mock.Mock
}

func (m *VaultStore) Create(ctx context.Context, vault model.StoredVault) (model.StoredVault, error) {
	args := m.Called(ctx, vault)
	return args.Get(0).(model.StoredVault), args.Error(1)
}

func (m *VaultStore) GetByID(ctx context.Context, id uuid.UUID) (model.StoredVault, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.StoredVault), args.Error(1)
}

func (m *VaultStore) GetByOrgID(ctx context.Context, orgID uuid.UUID) ([]model.StoredVault, error) {
	args := m.Called(ctx, orgID)
	var vaults []model.StoredVault
	if args.Get(0) != nil {
		vaults = args.Get(0).([]model.StoredVault)
	}
	return vaults, args.Error(1)
}

func (m *VaultStore) Update(ctx context.Context, vault model.StoredVault) (model.StoredVault, error) {
	args := m.Called(ctx, vault)
	return args.Get(0).(model.StoredVault), args.Error(1)
}

func (m *VaultStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// OrgStore is a mock of model.OrgStore.
type OrgStore struct {
	mock.Mock
}

func (m *OrgStore) Create(ctx context.Context, org model.StoredOrg) (model.StoredOrg, error) {
	args := m.Called(ctx, org)
	return args.Get(0).(model.StoredOrg), args.Error(1)
}

func (m *OrgStore) GetByID(ctx context.Context, id uuid.UUID) (model.StoredOrg, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.StoredOrg), args.Error(1)
}

func (m *OrgStore) Update(ctx context.Context, org model.StoredOrg) (model.StoredOrg, error) {
	args := m.Called(ctx, org)
	return args.Get(0).(model.StoredOrg), args.Error(1)
}

func (m *OrgStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// GroupStore is a mock of model.GroupStore.
type GroupStore struct {
	mock.Mock
}

func (m *GroupStore) Create(ctx context.Context, group model.StoredGroup) (model.StoredGroup, error) {
	args := m.Called(ctx, group)
	return args.Get(0).(model.StoredGroup), args.Error(1)
}

func (m *GroupStore) GetByID(ctx context.Context, id uuid.UUID) (model.StoredGroup, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.StoredGroup), args.Error(1)
}

func (m *GroupStore) GetByOrgID(ctx context.Context, orgID uuid.UUID) ([]model.StoredGroup, error) {
	args := m.Called(ctx, orgID)
	var groups []model.StoredGroup
	if args.Get(0) != nil {
		groups = args.Get(0).([]model.StoredGroup)
	}
	return groups, args.Error(1)
}

func (m *GroupStore) Update(ctx context.Context, group model.StoredGroup) (model.StoredGroup, error) {
	args := m.Called(ctx, group)
	return args.Get(0).(model.StoredGroup), args.Error(1)
}

func (m *GroupStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// InviteStore is a mock of model.InviteStore.
type InviteStore struct {
	mock.Mock
}

func (m *InviteStore) Create(ctx context.Context, invite model.StoredInvite) (model.StoredInvite, error) {
	args := m.Called(ctx, invite)
	return args.Get(0).(model.StoredInvite), args.Error(1)
}

func (m *InviteStore) GetByID(ctx context.Context, id uuid.UUID) (model.StoredInvite, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.StoredInvite), args.Error(1)
}

func (m *InviteStore) MarkUsed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *InviteStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
