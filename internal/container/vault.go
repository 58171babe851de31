package container

import (
	"github.com/google/uuid"

	"github.com/keysmith-dev/keysmith-server/internal/codec"
	"github.com/keysmith-dev/keysmith-server/internal/crypto"
	"github.com/keysmith-dev/keysmith-server/internal/model"
)

// Vault is a shared container carrying a list of encrypted records. The
// record encoding is opaque here; the vault only guarantees that the
// serialized list round-trips. OrgID is an id-only back-reference, never
// an owning pointer.
type Vault struct {
	*Container

	Name  string
	OrgID string
}

type vaultPayload struct {
	Records [][]byte `json:"records"`
}

// NewVault creates an empty vault with a fresh id.
func NewVault(provider *crypto.Provider, name string) *Vault {
	return &Vault{Container: NewContainer(provider, uuid.NewString()), Name: name}
}

// SetRecords seals the record list as the vault payload.
func (v *Vault) SetRecords(records [][]byte) error {
	payload, err := codec.Marshal(vaultPayload{Records: records})
	if err != nil {
		return err
	}
	return v.SetData(payload)
}

// Records returns the decrypted record list. The vault must have been
// accessed first.
func (v *Vault) Records() ([][]byte, error) {
	payload, err := v.Data()
	if err != nil {
		return nil, err
	}
	var p vaultPayload
	if err := codec.Unmarshal(payload, &p); err != nil {
		return nil, model.ErrDecryptionFailed
	}
	return p.Records, nil
}

// VaultState is the serializable form of a vault.
type VaultState struct {
	Name      string `json:"name"`
	OrgID     string `json:"org,omitempty"`
	Container State  `json:"container"`
}

// State snapshots the vault for persistence.
func (v *Vault) State() VaultState {
	return VaultState{Name: v.Name, OrgID: v.OrgID, Container: v.Container.State()}
}

// RestoreVault rebuilds a vault from persisted state. The vault starts
// locked.
func RestoreVault(provider *crypto.Provider, s VaultState) *Vault {
	return &Vault{Container: RestoreState(provider, s.Container), Name: s.Name, OrgID: s.OrgID}
}
