package container

import (
	"crypto/rsa"

	"github.com/keysmith-dev/keysmith-server/internal/crypto"
)

// Accessor is a principal entitled to hold a wrapped copy of a
// container's data key. Containers reference accessors by id and public
// key only; they never own them.
type Accessor interface {
	AccessorID() string
	AccessorPublicKey() *rsa.PublicKey
}

// Unlocker is an Accessor currently able to use its private key. A Group
// becomes an Unlocker only after it has itself been accessed by one of
// its own accessors.
type Unlocker interface {
	Accessor
	AccessorPrivateKey() *rsa.PrivateKey
}

// AccessorEntry is one row of a container's accessor table: the wrapped
// data key for a principal, the DER encoding of the public key it was
// wrapped to, and that key's fingerprint. The fingerprint is compared
// against the accessor's current key on every access to detect key
// substitution.
type AccessorEntry struct {
	ID          string `json:"id"`
	PublicKey   []byte `json:"publicKey"`
	Fingerprint []byte `json:"fingerprint"`
	WrappedKey  []byte `json:"wrappedKey"`
}

// AccountAccessor adapts an account to the Accessor interfaces. The
// private key is populated only while the account's envelope is open;
// a nil private key means the account cannot unlock anything.
type AccountAccessor struct {
	ID         string
	Name       string
	Email      string
	PublicKey  *rsa.PublicKey
	PrivateKey *rsa.PrivateKey
}

func (a *AccountAccessor) AccessorID() string { return a.ID }

func (a *AccountAccessor) AccessorPublicKey() *rsa.PublicKey { return a.PublicKey }

func (a *AccountAccessor) AccessorPrivateKey() *rsa.PrivateKey { return a.PrivateKey }

var _ Unlocker = (*AccountAccessor)(nil)

// fingerprintOf is a convenience wrapper used by the container when
// building accessor entries.
func fingerprintOf(a Accessor) ([]byte, error) {
	return crypto.Fingerprint(a.AccessorPublicKey())
}
