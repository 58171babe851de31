package crypto

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	gcmNonceSize = 12
	rsaKeyBits   = 2048
)

var (
	// ErrDecrypt is returned when AEAD authentication fails. Callers must
	// treat it as fatal; the ciphertext has been tampered with or the key
	// is wrong.
	ErrDecrypt = errors.New("crypto: message authentication failed")

	// ErrUnwrap is the distinguished result of a failed key unwrap.
	ErrUnwrap = errors.New("crypto: key unwrap failed")

	// ErrCiphertextTooShort reports a ciphertext shorter than its framing.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
)

// KDFAlgoPBKDF2SHA256 is the only KDF algorithm currently recognized.
const KDFAlgoPBKDF2SHA256 = "PBKDF2-SHA256"

// KDFParams identifies a concrete key-derivation scheme. Params travel
// with the derived material so the client can re-derive the same key.
type KDFParams struct {
	Algo       string `json:"algo"`
	Iterations int    `json:"iterations"`
	Salt       []byte `json:"salt"`
	KeyLen     int    `json:"keyLen"`
}

// SigningParams identify a concrete signature scheme. They travel with
// the signed object so verification is reproducible.
type SigningParams struct {
	Scheme     string `json:"scheme"`
	Hash       string `json:"hash"`
	SaltLength int    `json:"saltLength"`
}

// DefaultSigningParams returns RSA-PSS with SHA-256 and a salt the size
// of the digest.
func DefaultSigningParams() SigningParams {
	return SigningParams{Scheme: "RSA-PSS", Hash: "SHA-256", SaltLength: sha256.Size}
}

// Provider exposes the raw cryptographic primitives consumed by the rest
// of the system. It is stateless except for entropy and safe for
// concurrent use.
type Provider struct{}

// NewProvider creates a Provider.
func NewProvider() *Provider {
	return &Provider{}
}

// RandomBytes returns n bytes from the system CSPRNG.
func (p *Provider) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// DeriveKey stretches password according to params.
func (p *Provider) DeriveKey(password []byte, params KDFParams) ([]byte, error) {
	if params.Algo != KDFAlgoPBKDF2SHA256 {
		return nil, fmt.Errorf("crypto: unrecognized KDF algorithm %q", params.Algo)
	}
	if params.Iterations < 1 || params.KeyLen < 16 || len(params.Salt) == 0 {
		return nil, errors.New("crypto: invalid KDF parameters")
	}
	return pbkdf2.Key(password, params.Salt, params.Iterations, params.KeyLen, sha256.New), nil
}

// Seal encrypts plaintext with AES-256-GCM under key. A fresh nonce is
// generated per call and prepended to the ciphertext; aad is bound into
// the authentication tag.
func (p *Provider) Seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := p.RandomBytes(gcmNonceSize)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, aad)
	return out, nil
}

// Open decrypts data previously produced by Seal. Returns ErrDecrypt when
// authentication fails.
func (p *Provider) Open(key, ciphertext, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcmNonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce := ciphertext[:gcmNonceSize]
	pt, err := aead.Open(nil, nonce, ciphertext[gcmNonceSize:], aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return pt, nil
}

// GenerateKeyPair creates a long-term RSA keypair.
func (p *Provider) GenerateKeyPair() (*rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA keypair: %w", err)
	}
	return priv, nil
}

// Wrap encrypts a symmetric key to pub with RSA-OAEP-SHA256.
func (p *Provider) Wrap(pub *rsa.PublicKey, key []byte) ([]byte, error) {
	blob, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key: %w", err)
	}
	return blob, nil
}

// Unwrap decrypts a wrapped key blob. Returns ErrUnwrap on any failure so
// callers can tell a bad wrap apart from other errors.
func (p *Provider) Unwrap(priv *rsa.PrivateKey, blob []byte) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, blob, nil)
	if err != nil {
		return nil, ErrUnwrap
	}
	return key, nil
}

// Sign signs msg with RSA-PSS according to params.
func (p *Provider) Sign(priv *rsa.PrivateKey, msg []byte, params SigningParams) ([]byte, error) {
	hash, digest, err := digestFor(params, msg)
	if err != nil {
		return nil, err
	}

	sig, err := rsa.SignPSS(rand.Reader, priv, hash, digest, &rsa.PSSOptions{SaltLength: params.SaltLength})
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// Verify reports whether sig is a valid signature of msg under pub.
func (p *Provider) Verify(pub *rsa.PublicKey, sig, msg []byte, params SigningParams) bool {
	hash, digest, err := digestFor(params, msg)
	if err != nil {
		return false
	}
	return rsa.VerifyPSS(pub, hash, digest, sig, &rsa.PSSOptions{SaltLength: params.SaltLength}) == nil
}

// HMAC computes HMAC-SHA256 of msg under key.
func (p *Provider) HMAC(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// Fingerprint hashes the DER encoding of a public key. Accessor tables
// store fingerprints to detect key substitution (trust on first use).
func Fingerprint(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return sum[:], nil
}

// MarshalPublicKey encodes pub as PKIX DER.
func MarshalPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(pub)
}

// ParsePublicKey decodes a PKIX DER RSA public key.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("crypto: not an RSA public key")
	}
	return pub, nil
}

// MarshalPrivateKey encodes priv as PKCS#8 DER.
func MarshalPrivateKey(priv *rsa.PrivateKey) ([]byte, error) {
	return x509.MarshalPKCS8PrivateKey(priv)
}

// ParsePrivateKey decodes a PKCS#8 DER RSA private key.
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("crypto: not an RSA private key")
	}
	return priv, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, errors.New("crypto: AEAD key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func digestFor(params SigningParams, msg []byte) (crypto.Hash, []byte, error) {
	switch params.Hash {
	case "SHA-256":
		sum := sha256.Sum256(msg)
		return crypto.SHA256, sum[:], nil
	case "SHA-512":
		sum := sha512.Sum512(msg)
		return crypto.SHA512, sum[:], nil
	default:
		return 0, nil, fmt.Errorf("crypto: unrecognized hash %q", params.Hash)
	}
}
