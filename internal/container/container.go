// Package container implements the shared-container primitive and the
// principals built on it: groups, vaults, orgs, and invites. A container
// encrypts its payload under a symmetric data key that is wrapped
// separately for every accessor; decryption capability is exactly
// membership of the accessor table.
package container

import (
	"bytes"
	"crypto/hmac"
	"fmt"
	"sync"

	"github.com/keysmith-dev/keysmith-server/internal/crypto"
	"github.com/keysmith-dev/keysmith-server/internal/model"
)

const dataKeyLen = 32

// Container holds an AEAD-encrypted payload and the accessor table for
// its data key. The data key lives only in memory and is never part of
// the serialized state.
//
// Mutations take the write lock so concurrent readers always observe an
// accessor table consistent with the current payload.
type Container struct {
	mu sync.RWMutex

	id         string
	provider   *crypto.Provider
	accessors  []AccessorEntry
	ciphertext []byte

	// key is the in-memory data key K; nil while locked.
	key []byte
}

// NewContainer creates an empty container with the given id.
func NewContainer(provider *crypto.Provider, id string) *Container {
	return &Container{id: id, provider: provider}
}

// ID returns the container id.
func (c *Container) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Unlocked reports whether the data key is present in memory.
func (c *Container) Unlocked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key != nil
}

// SetData encrypts plaintext as the container payload. The data key is
// generated on first use; the container id is bound into the AEAD tag.
func (c *Container) SetData(plaintext []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setDataLocked(plaintext)
}

func (c *Container) setDataLocked(plaintext []byte) error {
	if c.key == nil {
		if len(c.ciphertext) > 0 {
			return model.ErrMissingAccess
		}
		key, err := c.provider.RandomBytes(dataKeyLen)
		if err != nil {
			return fmt.Errorf("failed to generate data key: %w", err)
		}
		c.key = key
	}

	ct, err := c.provider.Seal(c.key, plaintext, []byte(c.id))
	if err != nil {
		return fmt.Errorf("failed to seal payload: %w", err)
	}
	c.ciphertext = ct
	return nil
}

// Data returns the decrypted payload. The container must have been
// accessed first.
func (c *Container) Data() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.key == nil {
		return nil, model.ErrMissingAccess
	}
	if len(c.ciphertext) == 0 {
		return nil, model.NewError(model.CodeInvalidRequest, "container has no payload")
	}

	pt, err := c.provider.Open(c.key, c.ciphertext, []byte(c.id))
	if err != nil {
		return nil, model.ErrDecryptionFailed
	}
	return pt, nil
}

// UpdateAccessors replaces the accessor table, wrapping the data key to
// every accessor's public key. Removing an accessor does not rotate the
// key; call RotateKey for that. The new table is built completely before
// it becomes visible.
func (c *Container) UpdateAccessors(accessors []Accessor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key == nil {
		if len(c.ciphertext) > 0 {
			return model.ErrMissingAccess
		}
		key, err := c.provider.RandomBytes(dataKeyLen)
		if err != nil {
			return fmt.Errorf("failed to generate data key: %w", err)
		}
		c.key = key
	}

	entries, err := c.wrapFor(accessors, c.key)
	if err != nil {
		return err
	}
	c.accessors = entries
	return nil
}

// RotateKey generates a fresh data key, re-seals the payload, and
// re-wraps the key for every current accessor. The swap is atomic:
// readers see either the old key set with the old payload or the new set
// with the new payload.
func (c *Container) RotateKey() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key == nil {
		return model.ErrMissingAccess
	}

	var plaintext []byte
	if len(c.ciphertext) > 0 {
		pt, err := c.provider.Open(c.key, c.ciphertext, []byte(c.id))
		if err != nil {
			return model.ErrDecryptionFailed
		}
		plaintext = pt
	}

	newKey, err := c.provider.RandomBytes(dataKeyLen)
	if err != nil {
		return fmt.Errorf("failed to generate data key: %w", err)
	}

	var newCiphertext []byte
	if plaintext != nil {
		newCiphertext, err = c.provider.Seal(newKey, plaintext, []byte(c.id))
		crypto.Zero(plaintext)
		if err != nil {
			return fmt.Errorf("failed to seal payload: %w", err)
		}
	}

	current := c.currentAccessors()
	entries, err := c.rewrapEntries(current, newKey)
	if err != nil {
		return err
	}

	crypto.Zero(c.key)
	c.key = newKey
	if plaintext != nil {
		c.ciphertext = newCiphertext
	}
	c.accessors = entries
	return nil
}

// Access locates the caller's accessor entry, verifies the stored
// fingerprint against the accessor's current public key, and unwraps the
// data key. Fails with MissingAccess when there is no entry and
// KeyMismatch when the public key changed since the key was wrapped.
func (c *Container) Access(u Unlocker) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.findEntry(u.AccessorID())
	if !ok {
		return model.ErrMissingAccess
	}

	fp, err := fingerprintOf(u)
	if err != nil {
		return fmt.Errorf("failed to fingerprint accessor key: %w", err)
	}
	if !hmac.Equal(entry.Fingerprint, fp) {
		return model.ErrKeyMismatch
	}

	priv := u.AccessorPrivateKey()
	if priv == nil {
		return model.ErrMissingAccess
	}

	key, err := c.provider.Unwrap(priv, entry.WrappedKey)
	if err != nil {
		return model.ErrDecryptionFailed
	}
	if c.key != nil {
		crypto.Zero(c.key)
	}
	c.key = key
	return nil
}

// Lock zeroizes and drops the in-memory data key.
func (c *Container) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key != nil {
		crypto.Zero(c.key)
		c.key = nil
	}
}

// Accessors returns a copy of the accessor table.
func (c *Container) Accessors() []AccessorEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]AccessorEntry, len(c.accessors))
	copy(out, c.accessors)
	return out
}

// HasAccessor reports whether an entry exists for the given id.
func (c *Container) HasAccessor(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.findEntry(id)
	return ok
}

// State is the serializable part of a container. The data key is
// deliberately absent.
type State struct {
	ID         string          `json:"id"`
	Accessors  []AccessorEntry `json:"accessors"`
	Ciphertext []byte          `json:"ciphertext,omitempty"`
}

// State snapshots the container for persistence.
func (c *Container) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	accessors := make([]AccessorEntry, len(c.accessors))
	copy(accessors, c.accessors)
	return State{ID: c.id, Accessors: accessors, Ciphertext: bytes.Clone(c.ciphertext)}
}

// RestoreState rebuilds a container from persisted state. The container
// starts locked.
func RestoreState(provider *crypto.Provider, s State) *Container {
	return &Container{
		id:         s.ID,
		provider:   provider,
		accessors:  s.Accessors,
		ciphertext: s.Ciphertext,
	}
}

func (c *Container) findEntry(id string) (AccessorEntry, bool) {
	for _, e := range c.accessors {
		if e.ID == id {
			return e, true
		}
	}
	return AccessorEntry{}, false
}

func (c *Container) currentAccessors() []AccessorEntry {
	out := make([]AccessorEntry, len(c.accessors))
	copy(out, c.accessors)
	return out
}

func (c *Container) wrapFor(accessors []Accessor, key []byte) ([]AccessorEntry, error) {
	entries := make([]AccessorEntry, 0, len(accessors))
	for _, a := range accessors {
		pub := a.AccessorPublicKey()
		if pub == nil {
			return nil, model.NewError(model.CodeInvalidRequest, "accessor has no public key")
		}

		fp, err := fingerprintOf(a)
		if err != nil {
			return nil, fmt.Errorf("failed to fingerprint accessor key: %w", err)
		}

		der, err := crypto.MarshalPublicKey(pub)
		if err != nil {
			return nil, fmt.Errorf("failed to encode accessor key: %w", err)
		}

		wrapped, err := c.provider.Wrap(pub, key)
		if err != nil {
			return nil, fmt.Errorf("failed to wrap data key for %s: %w", a.AccessorID(), err)
		}

		entries = append(entries, AccessorEntry{ID: a.AccessorID(), PublicKey: der, Fingerprint: fp, WrappedKey: wrapped})
	}
	return entries, nil
}

// rewrapEntries wraps key for the principals already in the table, using
// the public keys recorded at update time.
func (c *Container) rewrapEntries(entries []AccessorEntry, key []byte) ([]AccessorEntry, error) {
	out := make([]AccessorEntry, 0, len(entries))
	for _, e := range entries {
		pub, err := crypto.ParsePublicKey(e.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored accessor key for %s: %w", e.ID, err)
		}
		wrapped, err := c.provider.Wrap(pub, key)
		if err != nil {
			return nil, fmt.Errorf("failed to wrap data key for %s: %w", e.ID, err)
		}
		out = append(out, AccessorEntry{ID: e.ID, PublicKey: e.PublicKey, Fingerprint: e.Fingerprint, WrappedKey: wrapped})
	}
	return out, nil
}
