package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/keysmith-dev/keysmith-server/internal/codec"
	"github.com/keysmith-dev/keysmith-server/internal/container"
	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/model"
)

// Vault implements vault persistence and attachment storage. Vault
// payloads are opaque to the server: authorization here is coarse
// (accessor table membership, org membership), the real boundary is that
// the server holds no key that opens anything.
type Vault struct {
	vaultStore model.VaultStore
	orgStore   model.OrgStore
	storage    model.Storage
	logger     *logger.Logger
}

// NewVault creates the vault service.
func NewVault(vaultStore model.VaultStore, orgStore model.OrgStore, storage model.Storage, logger *logger.Logger) *Vault {
	return &Vault{
		vaultStore: vaultStore,
		orgStore:   orgStore,
		storage:    storage,
		logger:     logger,
	}
}

// CreateVault persists a client-serialized vault. The caller must appear
// in the vault's accessor table, or be a member of the owning org.
func (v *Vault) CreateVault(ctx context.Context, accountID uuid.UUID, data []byte) (model.StoredVault, error) {
	state, err := decodeVaultState(data)
	if err != nil {
		return model.StoredVault{}, err
	}

	id, err := uuid.Parse(state.Container.ID)
	if err != nil {
		return model.StoredVault{}, model.NewError(model.CodeInvalidRequest, "vault id is not a uuid")
	}

	var orgID *uuid.UUID
	if state.OrgID != "" {
		parsed, err := uuid.Parse(state.OrgID)
		if err != nil {
			return model.StoredVault{}, model.NewError(model.CodeInvalidRequest, "org id is not a uuid")
		}
		orgID = &parsed
	}

	if err := v.authorize(ctx, accountID, state, orgID); err != nil {
		return model.StoredVault{}, err
	}

	wrapped, err := wrapRecord(id.String(), recordKindVault, data)
	if err != nil {
		return model.StoredVault{}, err
	}

	stored, err := v.vaultStore.Create(ctx, model.StoredVault{
		ID:      id,
		OrgID:   orgID,
		Name:    state.Name,
		Version: 1,
		Data:    wrapped,
	})
	if err != nil {
		v.logger.Error("vault service: failed to create vault",
			"vault_id", id,
			"error", err.Error())
		return model.StoredVault{}, fmt.Errorf("failed to create vault: %w", err)
	}
	stored.Data = data

	v.logger.Info("vault service: vault created",
		"vault_id", stored.ID,
		"account_id", accountID)
	return stored, nil
}

// GetVault returns a stored vault the caller is entitled to fetch.
func (v *Vault) GetVault(ctx context.Context, accountID, vaultID uuid.UUID) (model.StoredVault, error) {
	stored, err := v.getAuthorized(ctx, accountID, vaultID)
	if err != nil {
		return model.StoredVault{}, err
	}
	return stored, nil
}

// UpdateVault replaces a vault's payload. Version is optimistic: the
// caller submits the version it read, and a concurrent writer who got
// there first makes this call fail rather than be silently overwritten.
func (v *Vault) UpdateVault(ctx context.Context, accountID, vaultID uuid.UUID, version int16, data []byte) (model.StoredVault, error) {
	stored, err := v.getAuthorized(ctx, accountID, vaultID)
	if err != nil {
		return model.StoredVault{}, err
	}

	if stored.Version != version {
		return model.StoredVault{}, model.NewError(model.CodeInvalidRequest, "vault version conflict")
	}

	state, err := decodeVaultState(data)
	if err != nil {
		return model.StoredVault{}, err
	}
	if state.Container.ID != vaultID.String() {
		return model.StoredVault{}, model.NewError(model.CodeInvalidRequest, "vault id mismatch")
	}

	wrapped, err := wrapRecord(vaultID.String(), recordKindVault, data)
	if err != nil {
		return model.StoredVault{}, err
	}

	stored.Name = state.Name
	stored.Data = wrapped
	stored.Version = version + 1
	stored, err = v.vaultStore.Update(ctx, stored)
	if err != nil {
		return model.StoredVault{}, fmt.Errorf("failed to update vault: %w", err)
	}
	stored.Data = data

	v.logger.Info("vault service: vault updated",
		"vault_id", vaultID,
		"version", stored.Version)
	return stored, nil
}

// DeleteVault removes a vault and its attachments.
func (v *Vault) DeleteVault(ctx context.Context, accountID, vaultID uuid.UUID) error {
	if _, err := v.getAuthorized(ctx, accountID, vaultID); err != nil {
		return err
	}

	if err := v.vaultStore.Delete(ctx, vaultID); err != nil {
		return fmt.Errorf("failed to delete vault: %w", err)
	}

	v.logger.Info("vault service: vault deleted", "vault_id", vaultID)
	return nil
}

// ListOrgVaults returns the vaults owned by an org the caller belongs to.
func (v *Vault) ListOrgVaults(ctx context.Context, accountID, orgID uuid.UUID) ([]model.StoredVault, error) {
	member, err := v.isOrgMember(ctx, accountID, orgID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, model.ErrInsufficientPermissions
	}

	vaults, err := v.vaultStore.GetByOrgID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list org vaults: %w", err)
	}
	for i := range vaults {
		payload, err := unwrapRecord(vaults[i].Data, recordKindVault)
		if err != nil {
			return nil, fmt.Errorf("vault %s: %w", vaults[i].ID, err)
		}
		vaults[i].Data = payload
	}
	return vaults, nil
}

// UploadAttachment stores an attachment blob for a vault. The blob is
// client-encrypted; the server sees only ciphertext.
func (v *Vault) UploadAttachment(ctx context.Context, accountID, vaultID uuid.UUID, attachmentID string, reader io.Reader) error {
	if _, err := v.getAuthorized(ctx, accountID, vaultID); err != nil {
		return err
	}
	if attachmentID == "" {
		return model.NewError(model.CodeInvalidRequest, "attachment id is required")
	}

	key := attachmentKey(vaultID, attachmentID)
	if err := v.storage.Upload(ctx, key, reader); err != nil {
		v.logger.Error("vault service: failed to upload attachment",
			"vault_id", vaultID,
			"attachment_id", attachmentID,
			"error", err.Error())
		return fmt.Errorf("failed to upload attachment: %w", err)
	}

	v.logger.Info("vault service: attachment uploaded",
		"vault_id", vaultID,
		"attachment_id", attachmentID)
	return nil
}

// DownloadAttachment streams an attachment blob.
func (v *Vault) DownloadAttachment(ctx context.Context, accountID, vaultID uuid.UUID, attachmentID string) (io.ReadCloser, error) {
	if _, err := v.getAuthorized(ctx, accountID, vaultID); err != nil {
		return nil, err
	}

	key := attachmentKey(vaultID, attachmentID)
	exists, err := v.storage.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check attachment: %w", err)
	}
	if !exists {
		return nil, model.NewError(model.CodeNotFound, "attachment not found")
	}

	reader, err := v.storage.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	return reader, nil
}

// DeleteAttachment removes an attachment blob.
func (v *Vault) DeleteAttachment(ctx context.Context, accountID, vaultID uuid.UUID, attachmentID string) error {
	if _, err := v.getAuthorized(ctx, accountID, vaultID); err != nil {
		return err
	}

	key := attachmentKey(vaultID, attachmentID)
	if err := v.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	v.logger.Info("vault service: attachment deleted",
		"vault_id", vaultID,
		"attachment_id", attachmentID)
	return nil
}

func (v *Vault) getAuthorized(ctx context.Context, accountID, vaultID uuid.UUID) (model.StoredVault, error) {
	stored, err := v.vaultStore.GetByID(ctx, vaultID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.StoredVault{}, model.NewError(model.CodeNotFound, "vault not found")
		}
		return model.StoredVault{}, fmt.Errorf("failed to get vault: %w", err)
	}

	payload, err := unwrapRecord(stored.Data, recordKindVault)
	if err != nil {
		return model.StoredVault{}, fmt.Errorf("vault %s: %w", vaultID, err)
	}
	stored.Data = payload

	state, err := decodeVaultState(stored.Data)
	if err != nil {
		return model.StoredVault{}, err
	}
	if err := v.authorize(ctx, accountID, state, stored.OrgID); err != nil {
		return model.StoredVault{}, err
	}
	return stored, nil
}

// authorize admits direct accessors and, for org vaults, org members.
// Group accessors cannot be resolved to accounts server side; membership
// of the owning org is the containing check.
func (v *Vault) authorize(ctx context.Context, accountID uuid.UUID, state container.VaultState, orgID *uuid.UUID) error {
	for _, entry := range state.Container.Accessors {
		if entry.ID == accountID.String() {
			return nil
		}
	}

	if orgID != nil {
		member, err := v.isOrgMember(ctx, accountID, *orgID)
		if err != nil {
			return err
		}
		if member {
			return nil
		}
	}

	return model.ErrInsufficientPermissions
}

func (v *Vault) isOrgMember(ctx context.Context, accountID, orgID uuid.UUID) (bool, error) {
	org, err := v.orgStore.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, model.NewError(model.CodeNotFound, "org not found")
		}
		return false, fmt.Errorf("failed to get org: %w", err)
	}

	payload, err := unwrapRecord(org.Data, recordKindOrg)
	if err != nil {
		return false, fmt.Errorf("org %s: %w", orgID, err)
	}
	var state container.OrgState
	if err := codec.Unmarshal(payload, &state); err != nil {
		return false, fmt.Errorf("failed to decode org state: %w", err)
	}
	for _, m := range state.Members {
		if m.ID == accountID.String() {
			return true, nil
		}
	}
	return false, nil
}

func decodeVaultState(data []byte) (container.VaultState, error) {
	var state container.VaultState
	if err := codec.Unmarshal(data, &state); err != nil {
		return container.VaultState{}, model.NewError(model.CodeInvalidRequest, "vault payload is not valid")
	}
	if state.Container.ID == "" {
		return container.VaultState{}, model.NewError(model.CodeInvalidRequest, "vault payload has no id")
	}
	return state, nil
}

func attachmentKey(vaultID uuid.UUID, attachmentID string) string {
	return vaultID.String() + "/" + attachmentID
}
