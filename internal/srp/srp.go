// Package srp implements the server and client sides of SRP-6a over the
// RFC 5054 2048-bit group with SHA-256. The private value x is derived
// from the password outside this package (PBKDF2 per the account's KDF
// parameters) and passed in as opaque secret bytes.
package srp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
)

// Group holds the SRP group parameters.
type Group struct {
	Name string
	N    *big.Int
	G    *big.Int
}

// Group2048Name identifies the RFC 3526 2048-bit MODP group.
const Group2048Name = "srp-modp-2048"

// RFC 3526 group 14 modulus, a safe prime with generator 2.
const hexN2048 = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
	"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
	"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
	"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB" +
	"9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718" +
	"3995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF"

var group2048 = mustGroup(Group2048Name, hexN2048, 2)

// Group2048 returns the RFC 3526 2048-bit MODP group.
func Group2048() *Group {
	return group2048
}

// GroupByName resolves a group identifier persisted with an auth record.
func GroupByName(name string) (*Group, error) {
	if name == Group2048Name {
		return group2048, nil
	}
	return nil, fmt.Errorf("srp: unknown group %q", name)
}

func mustGroup(name, hexN string, g int64) *Group {
	n, ok := new(big.Int).SetString(hexN, 16)
	if !ok {
		panic("srp: bad group modulus")
	}
	return &Group{Name: name, N: n, G: big.NewInt(g)}
}

// ErrInvalidPublicValue is returned when a peer's ephemeral public value
// is zero modulo N. Accepting such a value would fix the shared secret.
var ErrInvalidPublicValue = errors.New("srp: invalid ephemeral public value")

// ComputeVerifier derives the verifier v = g^x mod N from the private
// secret bytes.
func ComputeVerifier(group *Group, secret []byte) []byte {
	x := new(big.Int).SetBytes(secret)
	v := new(big.Int).Exp(group.G, x, group.N)
	return pad(v, group)
}

// ServerSession holds the server's ephemeral state for one handshake.
type ServerSession struct {
	group *Group
	v     *big.Int
	b     *big.Int
	bPub  *big.Int
}

// NewServerSession creates server ephemeral state for the given verifier:
// B = (k*v + g^b) mod N.
func NewServerSession(group *Group, verifier []byte) (*ServerSession, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("srp: failed to generate ephemeral secret: %w", err)
	}
	return RestoreServerSession(group, verifier, raw)
}

// RestoreServerSession rebuilds server state from a persisted ephemeral
// secret, as happens between initAuth and createSession.
func RestoreServerSession(group *Group, verifier, secret []byte) (*ServerSession, error) {
	if len(secret) == 0 {
		return nil, errors.New("srp: empty ephemeral secret")
	}
	v := new(big.Int).SetBytes(verifier)
	b := new(big.Int).SetBytes(secret)

	k := multiplierParam(group)
	gb := new(big.Int).Exp(group.G, b, group.N)
	kv := new(big.Int).Mul(k, v)
	bPub := kv.Add(kv, gb)
	bPub.Mod(bPub, group.N)

	return &ServerSession{group: group, v: v, b: b, bPub: bPub}, nil
}

// B returns the server's ephemeral public value.
func (s *ServerSession) B() []byte {
	return pad(s.bPub, s.group)
}

// Secret returns the server's ephemeral private value for persistence.
func (s *ServerSession) Secret() []byte {
	return s.b.Bytes()
}

// ComputeKey derives the session key from the client's public value A:
// S = (A * v^u)^b mod N, K = H(S). Rejects A congruent to zero mod N.
func (s *ServerSession) ComputeKey(clientA []byte) ([]byte, error) {
	a := new(big.Int).SetBytes(clientA)
	if new(big.Int).Mod(a, s.group.N).Sign() == 0 {
		return nil, ErrInvalidPublicValue
	}

	u := scramblingParam(s.group, clientA, s.B())
	if u.Sign() == 0 {
		return nil, ErrInvalidPublicValue
	}

	vu := new(big.Int).Exp(s.v, u, s.group.N)
	base := vu.Mul(vu, a)
	base.Mod(base, s.group.N)
	secret := base.Exp(base, s.b, s.group.N)

	key := sha256.Sum256(pad(secret, s.group))
	return key[:], nil
}

// ClientSession holds the client's ephemeral state for one handshake.
type ClientSession struct {
	group *Group
	x     *big.Int
	a     *big.Int
	aPub  *big.Int
}

// NewClientSession creates client ephemeral state from the private secret
// bytes: A = g^a mod N.
func NewClientSession(group *Group, secret []byte) (*ClientSession, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("srp: failed to generate ephemeral secret: %w", err)
	}
	a := new(big.Int).SetBytes(raw)
	return &ClientSession{
		group: group,
		x:     new(big.Int).SetBytes(secret),
		a:     a,
		aPub:  new(big.Int).Exp(group.G, a, group.N),
	}, nil
}

// A returns the client's ephemeral public value.
func (c *ClientSession) A() []byte {
	return pad(c.aPub, c.group)
}

// ComputeKey derives the session key from the server's public value B:
// S = (B - k*g^x)^(a + u*x) mod N, K = H(S).
func (c *ClientSession) ComputeKey(serverB []byte) ([]byte, error) {
	b := new(big.Int).SetBytes(serverB)
	if new(big.Int).Mod(b, c.group.N).Sign() == 0 {
		return nil, ErrInvalidPublicValue
	}

	u := scramblingParam(c.group, c.A(), serverB)
	if u.Sign() == 0 {
		return nil, ErrInvalidPublicValue
	}

	k := multiplierParam(c.group)
	gx := new(big.Int).Exp(c.group.G, c.x, c.group.N)
	kgx := gx.Mul(gx, k)

	base := new(big.Int).Sub(b, kgx)
	base.Mod(base, c.group.N)

	exp := new(big.Int).Mul(u, c.x)
	exp.Add(exp, c.a)

	secret := base.Exp(base, exp, c.group.N)

	key := sha256.Sum256(pad(secret, c.group))
	return key[:], nil
}

// ClientProof computes M1 = H(H(N) xor H(g) || H(I) || s || A || B || K).
func ClientProof(group *Group, identity string, salt, clientA, serverB, key []byte) []byte {
	hn := sha256.Sum256(pad(group.N, group))
	hg := sha256.Sum256(pad(group.G, group))
	for i := range hn {
		hn[i] ^= hg[i]
	}
	hi := sha256.Sum256([]byte(identity))

	h := sha256.New()
	h.Write(hn[:])
	h.Write(hi[:])
	h.Write(salt)
	h.Write(clientA)
	h.Write(serverB)
	h.Write(key)
	return h.Sum(nil)
}

// ServerProof computes M2 = H(A || M1 || K), the server's evidence that it
// derived the same key.
func ServerProof(clientA, clientProof, key []byte) []byte {
	h := sha256.New()
	h.Write(clientA)
	h.Write(clientProof)
	h.Write(key)
	return h.Sum(nil)
}

// VerifyProof compares two proofs in constant time.
func VerifyProof(expected, presented []byte) bool {
	return len(expected) > 0 && subtle.ConstantTimeCompare(expected, presented) == 1
}

// u = H(pad(A) || pad(B))
func scramblingParam(group *Group, clientA, serverB []byte) *big.Int {
	h := sha256.New()
	h.Write(leftPad(clientA, group))
	h.Write(leftPad(serverB, group))
	return new(big.Int).SetBytes(h.Sum(nil))
}

// k = H(N || pad(g))
func multiplierParam(group *Group) *big.Int {
	h := sha256.New()
	h.Write(pad(group.N, group))
	h.Write(pad(group.G, group))
	return new(big.Int).SetBytes(h.Sum(nil))
}

func pad(i *big.Int, group *Group) []byte {
	return leftPad(i.Bytes(), group)
}

func leftPad(b []byte, group *Group) []byte {
	size := (group.N.BitLen() + 7) / 8
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}
