package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Stored entity rows carry the codec-serialized form of a container
// entity plus the columns needed for lookups. Back-references between
// entities are id-only.

// VaultStore defines persistence operations for vaults.
type VaultStore interface {
	Create(ctx context.Context, vault StoredVault) (StoredVault, error)
	GetByID(ctx context.Context, id uuid.UUID) (StoredVault, error)
	GetByOrgID(ctx context.Context, orgID uuid.UUID) ([]StoredVault, error)
	Update(ctx context.Context, vault StoredVault) (StoredVault, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// StoredVault is the persisted form of a vault.
type StoredVault struct {
	ID        uuid.UUID
	OrgID     *uuid.UUID
	Name      string
	Version   int16
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrgStore defines persistence operations for orgs.
type OrgStore interface {
	Create(ctx context.Context, org StoredOrg) (StoredOrg, error)
	GetByID(ctx context.Context, id uuid.UUID) (StoredOrg, error)
	Update(ctx context.Context, org StoredOrg) (StoredOrg, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// StoredOrg is the persisted form of an org. An org is persisted only
// once initialization has fully completed; a partially initialized org
// never reaches the store.
type StoredOrg struct {
	ID        uuid.UUID
	Name      string
	Version   int16
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GroupStore defines persistence operations for groups.
type GroupStore interface {
	Create(ctx context.Context, group StoredGroup) (StoredGroup, error)
	GetByID(ctx context.Context, id uuid.UUID) (StoredGroup, error)
	GetByOrgID(ctx context.Context, orgID uuid.UUID) ([]StoredGroup, error)
	Update(ctx context.Context, group StoredGroup) (StoredGroup, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// StoredGroup is the persisted form of a group.
type StoredGroup struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	Name      string
	Version   int16
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InviteStore defines persistence operations for invites.
type InviteStore interface {
	Create(ctx context.Context, invite StoredInvite) (StoredInvite, error)
	GetByID(ctx context.Context, id uuid.UUID) (StoredInvite, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// StoredInvite is the persisted form of an invite. Invites are one-shot:
// MarkUsed flips Used exactly once.
type StoredInvite struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	Email     string
	Version   int16
	Data      []byte
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
