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

// Group is a shared container whose payload is a private key. Possessing
// group membership, possessing the group private key, and being able to
// act as the group elsewhere are the same capability.
type Group struct {
	*Container

	Name            string
	SignedPublicKey []byte

	provider *crypto.Provider

	mu        sync.Mutex
	publicKey *rsa.PublicKey
	// privateKey is cached between Access and Lock.
	privateKey *rsa.PrivateKey
}

type groupSecrets struct {
	PrivateKey []byte `json:"privateKey"`
}

// NewGroup creates an empty group with a fresh id.
func NewGroup(provider *crypto.Provider, name string) *Group {
	return &Group{
		Container: NewContainer(provider, uuid.NewString()),
		Name:      name,
		provider:  provider,
	}
}

// GenerateKeys creates the group keypair and seals the private key as the
// container payload. Accessors must already be set, or be set right
// after, for anyone to ever recover the private key.
func (g *Group) GenerateKeys() error {
	priv, err := g.provider.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("failed to generate group keypair: %w", err)
	}

	der, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("failed to encode group private key: %w", err)
	}

	payload, err := codec.Marshal(groupSecrets{PrivateKey: der})
	crypto.Zero(der)
	if err != nil {
		return err
	}

	if err := g.SetData(payload); err != nil {
		return err
	}

	g.mu.Lock()
	g.publicKey = &priv.PublicKey
	g.privateKey = priv
	g.mu.Unlock()
	return nil
}

// Access unlocks the group container and caches the group private key so
// the group can act as an accessor elsewhere.
func (g *Group) Access(u Unlocker) error {
	if err := g.Container.Access(u); err != nil {
		return err
	}

	payload, err := g.Data()
	if err != nil {
		return err
	}

	var secrets groupSecrets
	if err := codec.Unmarshal(payload, &secrets); err != nil {
		return model.ErrDecryptionFailed
	}

	priv, err := crypto.ParsePrivateKey(secrets.PrivateKey)
	crypto.Zero(secrets.PrivateKey)
	if err != nil {
		return model.ErrDecryptionFailed
	}

	g.mu.Lock()
	g.privateKey = priv
	g.publicKey = &priv.PublicKey
	g.mu.Unlock()
	return nil
}

// Lock drops the cached private key and the container data key.
func (g *Group) Lock() {
	g.mu.Lock()
	g.privateKey = nil
	g.mu.Unlock()
	g.Container.Lock()
}

// AccessorID implements Accessor.
func (g *Group) AccessorID() string { return g.Container.ID() }

// AccessorPublicKey implements Accessor.
func (g *Group) AccessorPublicKey() *rsa.PublicKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.publicKey
}

// AccessorPrivateKey implements Unlocker; nil while the group is locked.
func (g *Group) AccessorPrivateKey() *rsa.PrivateKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.privateKey
}

var _ Unlocker = (*Group)(nil)

// GroupState is the serializable form of a group.
type GroupState struct {
	Name            string `json:"name"`
	PublicKey       []byte `json:"publicKey,omitempty"`
	SignedPublicKey []byte `json:"signedPublicKey,omitempty"`
	Container       State  `json:"container"`
}

// State snapshots the group for persistence.
func (g *Group) State() (GroupState, error) {
	g.mu.Lock()
	pub := g.publicKey
	g.mu.Unlock()

	var der []byte
	if pub != nil {
		var err error
		der, err = crypto.MarshalPublicKey(pub)
		if err != nil {
			return GroupState{}, fmt.Errorf("failed to encode group public key: %w", err)
		}
	}

	return GroupState{
		Name:            g.Name,
		PublicKey:       der,
		SignedPublicKey: g.SignedPublicKey,
		Container:       g.Container.State(),
	}, nil
}

// RestoreGroup rebuilds a group from persisted state. The group starts
// locked.
func RestoreGroup(provider *crypto.Provider, s GroupState) (*Group, error) {
	g := &Group{
		Container:       RestoreState(provider, s.Container),
		Name:            s.Name,
		SignedPublicKey: s.SignedPublicKey,
		provider:        provider,
	}
	if len(s.PublicKey) > 0 {
		pub, err := crypto.ParsePublicKey(s.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse group public key: %w", err)
		}
		g.publicKey = pub
	}
	return g, nil
}
