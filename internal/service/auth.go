package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/keysmith-dev/keysmith-server/internal/crypto"
	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/model"
	"github.com/keysmith-dev/keysmith-server/internal/srp"
)

// AuthConfig carries the tunables of the authentication protocol.
type AuthConfig struct {
	// Secret seeds simulated handshakes for unknown emails. It must stay
	// stable across restarts or repeated probes become distinguishable.
	Secret         string
	ProofRPS       float64
	ProofBurst     int
	HandshakeTTL   time.Duration
	SessionTTL     time.Duration
	DefaultKDF     crypto.KDFParams
	DefaultSaltLen int
}

// AuthChallenge is the server's half of the SRP handshake.
type AuthChallenge struct {
	HandshakeID uuid.UUID
	Group       string
	Salt        []byte
	B           []byte
	KDF         []byte
}

// ProofParams carries the client's proof for an open handshake.
type ProofParams struct {
	HandshakeID uuid.UUID
	A           []byte
	Proof       []byte
}

// SessionResult is returned on successful proof verification.
type SessionResult struct {
	SessionID   uuid.UUID
	AccountID   uuid.UUID
	Token       string
	ServerProof []byte
	ExpiresAt   time.Time
}

// Auth implements the password-authenticated login flow. The password
// never reaches the server; a handshake exchanges ephemeral values and
// the client proves knowledge of the password-derived key.
type Auth struct {
	accountStore   model.AccountStore
	authStore      model.AuthStore
	handshakeStore model.HandshakeStore
	sessionStore   model.SessionStore
	tokenManager   model.TokenManager
	provider       *crypto.Provider
	config         AuthConfig
	limiter        *emailLimiter
	logger         *logger.Logger
}

// NewAuth creates the auth service.
func NewAuth(
	accountStore model.AccountStore,
	authStore model.AuthStore,
	handshakeStore model.HandshakeStore,
	sessionStore model.SessionStore,
	tokenManager model.TokenManager,
	provider *crypto.Provider,
	config AuthConfig,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		accountStore:   accountStore,
		authStore:      authStore,
		handshakeStore: handshakeStore,
		sessionStore:   sessionStore,
		tokenManager:   tokenManager,
		provider:       provider,
		config:         config,
		limiter:        newEmailLimiter(rate.Limit(config.ProofRPS), config.ProofBurst),
		logger:         logger,
	}
}

// InitAuth opens an SRP handshake for email. Unknown emails receive a
// simulated challenge derived deterministically from the server secret,
// so the response shape never reveals whether the account exists.
func (a *Auth) InitAuth(ctx context.Context, email string) (AuthChallenge, error) {
	a.logger.Debug("auth service: starting handshake", "email", email)

	record, err := a.authStore.GetByEmail(ctx, email)
	simulated := false
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			a.logger.Error("auth service: failed to get auth record",
				"email", email,
				"error", err.Error())
			return AuthChallenge{}, fmt.Errorf("failed to get auth record: %w", err)
		}
		record = a.simulatedRecord(email)
		simulated = true
	}

	group, err := srp.GroupByName(record.Group)
	if err != nil {
		return AuthChallenge{}, fmt.Errorf("failed to resolve auth group: %w", err)
	}

	session, err := srp.NewServerSession(group, record.Verifier)
	if err != nil {
		return AuthChallenge{}, fmt.Errorf("failed to create handshake state: %w", err)
	}

	var kdf crypto.KDFParams
	if err := json.Unmarshal(record.KDF, &kdf); err != nil {
		return AuthChallenge{}, fmt.Errorf("failed to unmarshal kdf params: %w", err)
	}

	handshake := model.PendingHandshake{
		ID:        uuid.New(),
		Email:     email,
		B:         session.B(),
		SecretB:   session.Secret(),
		Verifier:  record.Verifier,
		Salt:      kdf.Salt,
		Simulated: simulated,
		ExpiresAt: time.Now().Add(a.config.HandshakeTTL),
	}

	if err := a.handshakeStore.Create(ctx, handshake); err != nil {
		a.logger.Error("auth service: failed to create pending handshake",
			"email", email,
			"error", err.Error())
		return AuthChallenge{}, fmt.Errorf("failed to create pending handshake: %w", err)
	}

	a.logger.Info("auth service: handshake started",
		"email", email,
		"handshake_id", handshake.ID)

	return AuthChallenge{
		HandshakeID: handshake.ID,
		Group:       record.Group,
		Salt:        kdf.Salt,
		B:           handshake.B,
		KDF:         record.KDF,
	}, nil
}

// CreateSession verifies the client's proof for an open handshake and
// establishes a session. Every failure path consumes the handshake and
// returns the same AuthenticationFailed error.
func (a *Auth) CreateSession(ctx context.Context, params ProofParams) (SessionResult, error) {
	handshake, err := a.handshakeStore.GetByID(ctx, params.HandshakeID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return SessionResult{}, model.ErrAuthenticationFailed
		}
		return SessionResult{}, fmt.Errorf("failed to get pending handshake: %w", err)
	}

	if !a.limiter.allow(handshake.Email) {
		a.logger.Info("auth service: proof attempts rate limited", "email", handshake.Email)
		return SessionResult{}, model.ErrRateLimited
	}

	if handshake.Consumed || time.Now().After(handshake.ExpiresAt) {
		return SessionResult{}, model.ErrAuthenticationFailed
	}

	if err := a.handshakeStore.Consume(ctx, handshake.ID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// A concurrent proof consumed the handshake first. A replay
			// must look like any other wrong proof.
			a.logger.Info("auth service: handshake already consumed",
				"handshake_id", handshake.ID)
			return SessionResult{}, model.ErrAuthenticationFailed
		}
		return SessionResult{}, fmt.Errorf("failed to consume handshake: %w", err)
	}

	group := srp.Group2048()
	session, err := srp.RestoreServerSession(group, handshake.Verifier, handshake.SecretB)
	if err != nil {
		return SessionResult{}, fmt.Errorf("failed to restore handshake state: %w", err)
	}

	key, err := session.ComputeKey(params.A)
	if err != nil {
		a.logger.Info("auth service: rejected ephemeral public value",
			"handshake_id", handshake.ID)
		return SessionResult{}, model.ErrAuthenticationFailed
	}

	expected := srp.ClientProof(group, handshake.Email, handshake.Salt, params.A, handshake.B, key)
	if handshake.Simulated || !srp.VerifyProof(expected, params.Proof) {
		a.logger.Info("auth service: proof verification failed",
			"handshake_id", handshake.ID)
		return SessionResult{}, model.ErrAuthenticationFailed
	}

	account, err := a.accountStore.GetByEmail(ctx, handshake.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return SessionResult{}, model.ErrAuthenticationFailed
		}
		return SessionResult{}, fmt.Errorf("failed to get account: %w", err)
	}

	now := time.Now()
	sess := model.Session{
		ID:        uuid.New(),
		AccountID: account.ID,
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(a.config.SessionTTL),
	}
	if err := a.sessionStore.Create(ctx, sess); err != nil {
		return SessionResult{}, fmt.Errorf("failed to create session: %w", err)
	}

	tokenString, err := a.tokenManager.GenerateSessionToken(sess.ID, account.ID, a.config.SessionTTL)
	if err != nil {
		return SessionResult{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	a.logger.Info("auth service: session established",
		"account_id", account.ID,
		"session_id", sess.ID)

	return SessionResult{
		SessionID:   sess.ID,
		AccountID:   account.ID,
		Token:       tokenString,
		ServerProof: srp.ServerProof(params.A, params.Proof, key),
		ExpiresAt:   sess.ExpiresAt,
	}, nil
}

// RevokeSession deletes one session. Revoking an unknown session is not
// an error; the outcome is the same.
func (a *Auth) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := a.sessionStore.Delete(ctx, sessionID); err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	a.logger.Info("auth service: session revoked", "session_id", sessionID)
	return nil
}

// UpdateAuth replaces the account's verifier and KDF parameters, as
// happens on password change, and revokes every existing session.
func (a *Auth) UpdateAuth(ctx context.Context, accountID uuid.UUID, verifier, kdf []byte, groupName string) error {
	if _, err := srp.GroupByName(groupName); err != nil {
		return model.NewError(model.CodeInvalidRequest, "unknown auth group")
	}
	if len(verifier) == 0 || len(kdf) == 0 {
		return model.NewError(model.CodeInvalidRequest, "verifier and kdf params are required")
	}

	record, err := a.authStore.GetByAccountID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to get auth record: %w", err)
	}

	record.Verifier = verifier
	record.KDF = kdf
	record.Group = groupName
	record.UpdatedAt = time.Now()

	if err := a.authStore.Update(ctx, record); err != nil {
		return fmt.Errorf("failed to update auth record: %w", err)
	}

	if err := a.sessionStore.DeleteByAccountID(ctx, accountID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	a.logger.Info("auth service: auth record updated", "account_id", accountID)
	return nil
}

// simulatedRecord builds a deterministic fake auth record for an unknown
// email. The same email always yields the same salt and verifier.
func (a *Auth) simulatedRecord(email string) model.AuthRecord {
	secret := []byte(a.config.Secret)
	salt := a.provider.HMAC(secret, []byte("salt:"+email))[:a.config.DefaultSaltLen]
	x := a.provider.HMAC(secret, []byte("verifier:"+email))

	kdf := a.config.DefaultKDF
	kdf.Salt = salt
	marshaled, _ := json.Marshal(kdf)

	return model.AuthRecord{
		Email:    email,
		KDF:      marshaled,
		Verifier: srp.ComputeVerifier(srp.Group2048(), x),
		Group:    srp.Group2048Name,
	}
}

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterPruneInterval = time.Minute
)

// emailLimiter throttles proof attempts per email address. Idle entries
// are pruned so the map does not grow with every email ever probed.
type emailLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*proofLimiter
	limit     rate.Limit
	burst     int
	lastPrune time.Time
}

type proofLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newEmailLimiter(limit rate.Limit, burst int) *emailLimiter {
	return &emailLimiter{
		limiters:  make(map[string]*proofLimiter),
		limit:     limit,
		burst:     burst,
		lastPrune: time.Now(),
	}
}

func (l *emailLimiter) allow(email string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > limiterPruneInterval {
		l.prune(now)
	}

	entry, ok := l.limiters[email]
	if !ok {
		entry = &proofLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[email] = entry
	}
	entry.lastSeen = now
	return entry.lim.Allow()
}

// prune drops limiters idle long enough for their budget to have fully
// refilled. The caller holds the lock.
func (l *emailLimiter) prune(now time.Time) {
	for email, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, email)
		}
	}
	l.lastPrune = now
}
