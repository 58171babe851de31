package container

import (
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/keysmith-dev/keysmith-server/internal/codec"
	"github.com/keysmith-dev/keysmith-server/internal/crypto"
	"github.com/keysmith-dev/keysmith-server/internal/model"
)

const (
	adminGroupName    = "Admins"
	everyoneGroupName = "Everyone"
)

// OrgMember is a member record: identity plus the member's public key
// signed by the org. Consumers must verify the signature before trusting
// the key for wrap or verify.
type OrgMember struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	PublicKey       []byte `json:"publicKey"`
	SignedPublicKey []byte `json:"signedPublicKey"`
}

// Summary is an id+name reference to a group or vault owned by an org.
// The entities themselves are stored independently.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Org is the top-level shared container: its payload holds the org
// signing private key and the invite HMAC key. The admin group is the
// container's sole accessor, so org secrets require admin membership.
type Org struct {
	*Container

	Name          string
	SigningParams crypto.SigningParams
	Members       []OrgMember
	Groups        []Summary
	Vaults        []Summary

	AdminGroup    *Group
	EveryoneGroup *Group

	provider *crypto.Provider

	mu               sync.Mutex
	signingPublicKey *rsa.PublicKey
	// held only while the org is unlocked
	signingPrivateKey *rsa.PrivateKey
	invitesKey        []byte
}

type orgSecrets struct {
	PrivateKey []byte `json:"privateKey"`
	InvitesKey []byte `json:"invitesKey"`
}

// NewOrg creates an uninitialized org with a fresh id.
func NewOrg(provider *crypto.Provider, name string) *Org {
	return &Org{
		Container:     NewContainer(provider, uuid.NewString()),
		Name:          name,
		SigningParams: crypto.DefaultSigningParams(),
		AdminGroup:    NewGroup(provider, adminGroupName),
		EveryoneGroup: NewGroup(provider, everyoneGroupName),
		provider:      provider,
	}
}

// Initialize runs the org bootstrap as one transaction: admin group keyed
// to the founding account, org secrets sealed under the admin group, the
// founder enrolled as first member, and both distinguished groups signed.
// A partially initialized org must never be persisted; callers persist
// only on nil error.
func (o *Org) Initialize(account *AccountAccessor) error {
	if account.PrivateKey == nil {
		return model.ErrInsufficientPermissions
	}

	if err := o.AdminGroup.UpdateAccessors([]Accessor{account}); err != nil {
		return fmt.Errorf("failed to set admin group accessors: %w", err)
	}
	if err := o.AdminGroup.GenerateKeys(); err != nil {
		return err
	}

	if err := o.Container.UpdateAccessors([]Accessor{o.AdminGroup}); err != nil {
		return fmt.Errorf("failed to set org accessors: %w", err)
	}

	if err := o.generateKeys(); err != nil {
		return err
	}

	if err := o.AddMember(account); err != nil {
		return err
	}

	if err := o.signGroupLocked(o.AdminGroup); err != nil {
		return err
	}
	if err := o.signGroupLocked(o.EveryoneGroup); err != nil {
		return err
	}

	return nil
}

// generateKeys creates the org signing keypair and invite HMAC key and
// seals them as the container payload.
func (o *Org) generateKeys() error {
	priv, err := o.provider.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("failed to generate org signing keypair: %w", err)
	}

	invitesKey, err := o.provider.RandomBytes(32)
	if err != nil {
		return fmt.Errorf("failed to generate invites key: %w", err)
	}

	der, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("failed to encode org signing key: %w", err)
	}

	payload, err := codec.Marshal(orgSecrets{PrivateKey: der, InvitesKey: invitesKey})
	crypto.Zero(der)
	if err != nil {
		return err
	}

	if err := o.SetData(payload); err != nil {
		return err
	}

	o.mu.Lock()
	o.signingPublicKey = &priv.PublicKey
	o.signingPrivateKey = priv
	o.invitesKey = invitesKey
	o.mu.Unlock()
	return nil
}

// Access unlocks the org for an admin account: the account unlocks the
// admin group, the admin group unlocks the org container, and the org
// secrets are loaded. The everyone group is unlocked too when the
// account is a member, so accessor syncs can re-wrap its key.
func (o *Org) Access(account *AccountAccessor) error {
	if err := o.AdminGroup.Access(account); err != nil {
		return err
	}

	if err := o.Container.Access(o.AdminGroup); err != nil {
		return err
	}

	payload, err := o.Data()
	if err != nil {
		return err
	}

	var secrets orgSecrets
	if err := codec.Unmarshal(payload, &secrets); err != nil {
		return model.ErrDecryptionFailed
	}

	priv, err := crypto.ParsePrivateKey(secrets.PrivateKey)
	crypto.Zero(secrets.PrivateKey)
	if err != nil {
		return model.ErrDecryptionFailed
	}

	o.mu.Lock()
	o.signingPrivateKey = priv
	o.signingPublicKey = &priv.PublicKey
	o.invitesKey = secrets.InvitesKey
	o.mu.Unlock()

	if o.EveryoneGroup.HasAccessor(account.ID) {
		if err := o.EveryoneGroup.Access(account); err != nil {
			return err
		}
	}

	return nil
}

// Lock zeroizes org secrets and locks the org and its groups.
func (o *Org) Lock() {
	o.mu.Lock()
	o.signingPrivateKey = nil
	if o.invitesKey != nil {
		crypto.Zero(o.invitesKey)
		o.invitesKey = nil
	}
	o.mu.Unlock()

	o.AdminGroup.Lock()
	o.EveryoneGroup.Lock()
	o.Container.Lock()
}

// AddMember signs the account's public key, appends the member record,
// and syncs the everyone group's accessors with the member list. Fails
// with InsufficientPermissions unless the org has been accessed.
func (o *Org) AddMember(account *AccountAccessor) error {
	o.mu.Lock()
	priv := o.signingPrivateKey
	o.mu.Unlock()
	if priv == nil {
		return model.ErrInsufficientPermissions
	}

	if account.PublicKey == nil {
		return model.NewError(model.CodeInvalidRequest, "account has no public key")
	}
	for _, m := range o.Members {
		if m.ID == account.ID {
			return model.NewError(model.CodeAlreadyExists, "account is already a member")
		}
	}

	der, err := crypto.MarshalPublicKey(account.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to encode member key: %w", err)
	}

	sig, err := o.provider.Sign(priv, der, o.SigningParams)
	if err != nil {
		return fmt.Errorf("failed to sign member key: %w", err)
	}

	o.Members = append(o.Members, OrgMember{
		ID:              account.ID,
		Name:            account.Name,
		Email:           account.Email,
		PublicKey:       der,
		SignedPublicKey: sig,
	})

	return o.syncEveryoneGroup()
}

// RemoveMember drops a member and syncs the everyone group. The vault
// and group data keys the member could unwrap are not rotated here;
// rotation is an explicit separate step.
func (o *Org) RemoveMember(accountID string) error {
	o.mu.Lock()
	priv := o.signingPrivateKey
	o.mu.Unlock()
	if priv == nil {
		return model.ErrInsufficientPermissions
	}

	idx := -1
	for i, m := range o.Members {
		if m.ID == accountID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.NewError(model.CodeNotFound, "no such member")
	}

	o.Members = append(o.Members[:idx], o.Members[idx+1:]...)
	return o.syncEveryoneGroup()
}

// syncEveryoneGroup makes the everyone group's accessor set equal the
// member set, generating the group keypair on first sync.
func (o *Org) syncEveryoneGroup() error {
	accessors := make([]Accessor, 0, len(o.Members))
	for _, m := range o.Members {
		pub, err := crypto.ParsePublicKey(m.PublicKey)
		if err != nil {
			return fmt.Errorf("failed to parse member key for %s: %w", m.ID, err)
		}
		accessors = append(accessors, &memberAccessor{id: m.ID, pub: pub})
	}

	if err := o.EveryoneGroup.UpdateAccessors(accessors); err != nil {
		return err
	}
	if o.EveryoneGroup.AccessorPublicKey() == nil {
		if err := o.EveryoneGroup.GenerateKeys(); err != nil {
			return err
		}
	}
	return nil
}

// SignGroup signs a group's public key with the org signing key.
func (o *Org) SignGroup(g *Group) error {
	o.mu.Lock()
	priv := o.signingPrivateKey
	o.mu.Unlock()
	if priv == nil {
		return model.ErrInsufficientPermissions
	}
	return o.signWith(priv, g)
}

func (o *Org) signGroupLocked(g *Group) error {
	o.mu.Lock()
	priv := o.signingPrivateKey
	o.mu.Unlock()
	if priv == nil {
		return model.ErrInsufficientPermissions
	}
	return o.signWith(priv, g)
}

func (o *Org) signWith(priv *rsa.PrivateKey, g *Group) error {
	pub := g.AccessorPublicKey()
	if pub == nil {
		return model.NewError(model.CodeInvalidRequest, "group has no public key")
	}
	der, err := crypto.MarshalPublicKey(pub)
	if err != nil {
		return fmt.Errorf("failed to encode group key: %w", err)
	}
	sig, err := o.provider.Sign(priv, der, o.SigningParams)
	if err != nil {
		return fmt.Errorf("failed to sign group key: %w", err)
	}
	g.SignedPublicKey = sig
	return nil
}

// VerifyMember checks a member's signed public key against the org
// signing public key.
func (o *Org) VerifyMember(m OrgMember) bool {
	o.mu.Lock()
	pub := o.signingPublicKey
	o.mu.Unlock()
	if pub == nil {
		return false
	}
	return o.provider.Verify(pub, m.SignedPublicKey, m.PublicKey, o.SigningParams)
}

// VerifyGroup checks a group's signed public key against the org signing
// public key.
func (o *Org) VerifyGroup(g *Group) bool {
	o.mu.Lock()
	pub := o.signingPublicKey
	o.mu.Unlock()
	if pub == nil || g.AccessorPublicKey() == nil {
		return false
	}
	der, err := crypto.MarshalPublicKey(g.AccessorPublicKey())
	if err != nil {
		return false
	}
	return o.provider.Verify(pub, g.SignedPublicKey, der, o.SigningParams)
}

// CreateVault constructs an org vault with the admin group as its sole
// accessor. Further groups are granted by subsequent UpdateAccessors.
func (o *Org) CreateVault(name string) (*Vault, error) {
	o.mu.Lock()
	priv := o.signingPrivateKey
	o.mu.Unlock()
	if priv == nil {
		return nil, model.ErrInsufficientPermissions
	}

	v := NewVault(o.provider, name)
	v.OrgID = o.Container.ID()
	if err := v.UpdateAccessors([]Accessor{o.AdminGroup}); err != nil {
		return nil, err
	}

	o.Vaults = append(o.Vaults, Summary{ID: v.Container.ID(), Name: name})
	return v, nil
}

// memberAccessor presents a member record as an accessor.
type memberAccessor struct {
	id  string
	pub *rsa.PublicKey
}

func (m *memberAccessor) AccessorID() string                { return m.id }
func (m *memberAccessor) AccessorPublicKey() *rsa.PublicKey { return m.pub }

// OrgState is the serializable form of an org.
type OrgState struct {
	Name             string               `json:"name"`
	SigningPublicKey []byte               `json:"signingPublicKey"`
	SigningParams    crypto.SigningParams `json:"signingParams"`
	Members          []OrgMember          `json:"members"`
	Groups           []Summary            `json:"groups"`
	Vaults           []Summary            `json:"vaults"`
	AdminGroup       GroupState           `json:"adminGroup"`
	EveryoneGroup    GroupState           `json:"everyoneGroup"`
	Container        State                `json:"container"`
}

// State snapshots the org for persistence.
func (o *Org) State() (OrgState, error) {
	o.mu.Lock()
	pub := o.signingPublicKey
	o.mu.Unlock()

	var der []byte
	if pub != nil {
		var err error
		der, err = crypto.MarshalPublicKey(pub)
		if err != nil {
			return OrgState{}, fmt.Errorf("failed to encode org signing key: %w", err)
		}
	}

	admin, err := o.AdminGroup.State()
	if err != nil {
		return OrgState{}, err
	}
	everyone, err := o.EveryoneGroup.State()
	if err != nil {
		return OrgState{}, err
	}

	return OrgState{
		Name:             o.Name,
		SigningPublicKey: der,
		SigningParams:    o.SigningParams,
		Members:          o.Members,
		Groups:           o.Groups,
		Vaults:           o.Vaults,
		AdminGroup:       admin,
		EveryoneGroup:    everyone,
		Container:        o.Container.State(),
	}, nil
}

// RestoreOrg rebuilds an org from persisted state. The org starts locked.
func RestoreOrg(provider *crypto.Provider, s OrgState) (*Org, error) {
	admin, err := RestoreGroup(provider, s.AdminGroup)
	if err != nil {
		return nil, err
	}
	everyone, err := RestoreGroup(provider, s.EveryoneGroup)
	if err != nil {
		return nil, err
	}

	o := &Org{
		Container:     RestoreState(provider, s.Container),
		Name:          s.Name,
		SigningParams: s.SigningParams,
		Members:       s.Members,
		Groups:        s.Groups,
		Vaults:        s.Vaults,
		AdminGroup:    admin,
		EveryoneGroup: everyone,
		provider:      provider,
	}
	if len(s.SigningPublicKey) > 0 {
		pub, err := crypto.ParsePublicKey(s.SigningPublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse org signing key: %w", err)
		}
		o.signingPublicKey = pub
	}
	return o, nil
}
