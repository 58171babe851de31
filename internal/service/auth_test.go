package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keysmith-dev/keysmith-server/internal/crypto"
	"github.com/keysmith-dev/keysmith-server/internal/mocks"
	"github.com/keysmith-dev/keysmith-server/internal/model"
	"github.com/keysmith-dev/keysmith-server/internal/srp"
	"github.com/keysmith-dev/keysmith-server/internal/testutil"
)

func testAuthConfig() AuthConfig {
	return AuthConfig{
		Secret:       "test-secret",
		ProofRPS:     100,
		ProofBurst:   100,
		HandshakeTTL: 2 * time.Minute,
		SessionTTL:   time.Hour,
		DefaultKDF: crypto.KDFParams{
			Algo:       crypto.KDFAlgoPBKDF2SHA256,
			Iterations: 1000,
			KeyLen:     32,
		},
		DefaultSaltLen: 16,
	}
}

type authFixture struct {
	accountStore   *mocks.AccountStore
	authStore      *mocks.AuthStore
	handshakeStore *mocks.HandshakeStore
	sessionStore   *mocks.SessionStore
	tokenManager   *mocks.TokenManager
	service        *Auth
}

func newAuthFixture(cfg AuthConfig) *authFixture {
	f := &authFixture{
		accountStore:   &mocks.AccountStore{},
		authStore:      &mocks.AuthStore{},
		handshakeStore: &mocks.HandshakeStore{},
		sessionStore:   &mocks.SessionStore{},
		tokenManager:   &mocks.TokenManager{},
	}
	f.service = NewAuth(
		f.accountStore,
		f.authStore,
		f.handshakeStore,
		f.sessionStore,
		f.tokenManager,
		crypto.NewProvider(),
		cfg,
		testutil.MakeNoopLogger(),
	)
	return f
}

// enrolled builds the server-side auth record the way a signup would:
// the client derives x from the password and submits g^x.
func enrolled(t *testing.T, email, password string) (model.AuthRecord, []byte) {
	t.Helper()
	provider := crypto.NewProvider()
	kdf := crypto.KDFParams{
		Algo:       crypto.KDFAlgoPBKDF2SHA256,
		Iterations: 1000,
		Salt:       []byte("0123456789abcdef"),
		KeyLen:     32,
	}
	x, err := provider.DeriveKey([]byte(password), kdf)
	require.NoError(t, err)

	marshaled, err := json.Marshal(kdf)
	require.NoError(t, err)

	return model.AuthRecord{
		AccountID: uuid.New(),
		Email:     email,
		KDF:       marshaled,
		Verifier:  srp.ComputeVerifier(srp.Group2048(), x),
		Group:     srp.Group2048Name,
	}, x
}

func TestAuth_InitAuth_KnownAccount(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testAuthConfig())
	record, _ := enrolled(t, "alice@example.com", "correct horse")

	f.authStore.On("GetByEmail", mock.Anything, "alice@example.com").Return(record, nil)
	f.handshakeStore.On("Create", mock.Anything, mock.Anything).Return(nil)

	challenge, err := f.service.InitAuth(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, challenge.HandshakeID)
	assert.Equal(t, srp.Group2048Name, challenge.Group)
	assert.Equal(t, []byte("0123456789abcdef"), challenge.Salt)
	assert.NotEmpty(t, challenge.B)
}

func TestAuth_InitAuth_UnknownEmail_Simulated(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testAuthConfig())

	var created []model.PendingHandshake
	f.authStore.On("GetByEmail", mock.Anything, "ghost@example.com").Return(model.AuthRecord{}, model.ErrNotFound)
	f.handshakeStore.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = append(created, args.Get(1).(model.PendingHandshake))
	}).Return(nil)

	first, err := f.service.InitAuth(ctx, "ghost@example.com")
	require.NoError(t, err)
	second, err := f.service.InitAuth(ctx, "ghost@example.com")
	require.NoError(t, err)

	// The challenge shape must match a real account: stable salt and KDF
	// params across probes, fresh B per handshake.
	assert.Equal(t, first.Salt, second.Salt)
	assert.Equal(t, first.KDF, second.KDF)
	assert.NotEqual(t, first.B, second.B)

	require.Len(t, created, 2)
	assert.True(t, created[0].Simulated)
	assert.True(t, created[1].Simulated)
}

// runHandshake drives InitAuth and returns the challenge plus the
// handshake the service persisted.
func runHandshake(t *testing.T, f *authFixture, email string) (AuthChallenge, *model.PendingHandshake) {
	t.Helper()
	ctx := context.Background()

	var handshake model.PendingHandshake
	f.handshakeStore.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		handshake = args.Get(1).(model.PendingHandshake)
	}).Return(nil).Once()

	challenge, err := f.service.InitAuth(ctx, email)
	require.NoError(t, err)
	return challenge, &handshake
}

func TestAuth_CreateSession_Success(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testAuthConfig())
	record, x := enrolled(t, "alice@example.com", "correct horse")

	f.authStore.On("GetByEmail", mock.Anything, "alice@example.com").Return(record, nil)
	challenge, handshake := runHandshake(t, f, "alice@example.com")

	client, err := srp.NewClientSession(srp.Group2048(), x)
	require.NoError(t, err)
	key, err := client.ComputeKey(challenge.B)
	require.NoError(t, err)
	proof := srp.ClientProof(srp.Group2048(), "alice@example.com", challenge.Salt, client.A(), challenge.B, key)

	f.handshakeStore.On("GetByID", mock.Anything, handshake.ID).Return(*handshake, nil)
	f.handshakeStore.On("Consume", mock.Anything, handshake.ID).Return(nil)
	f.accountStore.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(model.Account{ID: record.AccountID, Email: "alice@example.com"}, nil)
	f.sessionStore.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.tokenManager.On("GenerateSessionToken", mock.Anything, record.AccountID, time.Hour).Return("bearer-token", nil)

	result, err := f.service.CreateSession(ctx, ProofParams{
		HandshakeID: handshake.ID,
		A:           client.A(),
		Proof:       proof,
	})
	require.NoError(t, err)
	assert.Equal(t, "bearer-token", result.Token)
	assert.Equal(t, record.AccountID, result.AccountID)

	// The server proof lets the client confirm key agreement.
	expected := srp.ServerProof(client.A(), proof, key)
	assert.Equal(t, expected, result.ServerProof)
}

func TestAuth_CreateSession_WrongPassword(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testAuthConfig())
	record, _ := enrolled(t, "alice@example.com", "correct horse")

	f.authStore.On("GetByEmail", mock.Anything, "alice@example.com").Return(record, nil)
	challenge, handshake := runHandshake(t, f, "alice@example.com")

	provider := crypto.NewProvider()
	var kdf crypto.KDFParams
	require.NoError(t, json.Unmarshal(record.KDF, &kdf))
	wrongX, err := provider.DeriveKey([]byte("wrong password"), kdf)
	require.NoError(t, err)

	client, err := srp.NewClientSession(srp.Group2048(), wrongX)
	require.NoError(t, err)
	key, err := client.ComputeKey(challenge.B)
	require.NoError(t, err)
	proof := srp.ClientProof(srp.Group2048(), "alice@example.com", challenge.Salt, client.A(), challenge.B, key)

	f.handshakeStore.On("GetByID", mock.Anything, handshake.ID).Return(*handshake, nil)
	f.handshakeStore.On("Consume", mock.Anything, handshake.ID).Return(nil)

	_, err = f.service.CreateSession(ctx, ProofParams{
		HandshakeID: handshake.ID,
		A:           client.A(),
		Proof:       proof,
	})
	assert.ErrorIs(t, err, model.ErrAuthenticationFailed)
}

func TestAuth_CreateSession_SimulatedNeverSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testAuthConfig())

	f.authStore.On("GetByEmail", mock.Anything, "ghost@example.com").Return(model.AuthRecord{}, model.ErrNotFound)
	challenge, handshake := runHandshake(t, f, "ghost@example.com")

	client, err := srp.NewClientSession(srp.Group2048(), []byte("whatever"))
	require.NoError(t, err)
	key, err := client.ComputeKey(challenge.B)
	require.NoError(t, err)
	proof := srp.ClientProof(srp.Group2048(), "ghost@example.com", challenge.Salt, client.A(), challenge.B, key)

	f.handshakeStore.On("GetByID", mock.Anything, handshake.ID).Return(*handshake, nil)
	f.handshakeStore.On("Consume", mock.Anything, handshake.ID).Return(nil)

	_, err = f.service.CreateSession(ctx, ProofParams{
		HandshakeID: handshake.ID,
		A:           client.A(),
		Proof:       proof,
	})
	assert.ErrorIs(t, err, model.ErrAuthenticationFailed)
}

func TestAuth_CreateSession_ZeroPublicValue(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testAuthConfig())
	record, _ := enrolled(t, "alice@example.com", "correct horse")

	f.authStore.On("GetByEmail", mock.Anything, "alice@example.com").Return(record, nil)
	_, handshake := runHandshake(t, f, "alice@example.com")

	f.handshakeStore.On("GetByID", mock.Anything, handshake.ID).Return(*handshake, nil)
	f.handshakeStore.On("Consume", mock.Anything, handshake.ID).Return(nil)

	_, err := f.service.CreateSession(ctx, ProofParams{
		HandshakeID: handshake.ID,
		A:           make([]byte, 256),
		Proof:       []byte("proof"),
	})
	assert.ErrorIs(t, err, model.ErrAuthenticationFailed)
}

func TestAuth_CreateSession_ConsumedHandshake(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testAuthConfig())
	record, _ := enrolled(t, "alice@example.com", "correct horse")

	f.authStore.On("GetByEmail", mock.Anything, "alice@example.com").Return(record, nil)
	_, handshake := runHandshake(t, f, "alice@example.com")
	handshake.Consumed = true

	f.handshakeStore.On("GetByID", mock.Anything, handshake.ID).Return(*handshake, nil)

	_, err := f.service.CreateSession(ctx, ProofParams{HandshakeID: handshake.ID})
	assert.ErrorIs(t, err, model.ErrAuthenticationFailed)
}

func TestAuth_CreateSession_ConsumeRace(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testAuthConfig())
	record, _ := enrolled(t, "alice@example.com", "correct horse")

	f.authStore.On("GetByEmail", mock.Anything, "alice@example.com").Return(record, nil)
	_, handshake := runHandshake(t, f, "alice@example.com")

	// A concurrent proof consumed the handshake between the read and the
	// one-shot update. The loser must see a plain authentication failure,
	// not a not-found.
	f.handshakeStore.On("GetByID", mock.Anything, handshake.ID).Return(*handshake, nil)
	f.handshakeStore.On("Consume", mock.Anything, handshake.ID).Return(model.ErrNotFound)

	_, err := f.service.CreateSession(ctx, ProofParams{HandshakeID: handshake.ID, A: []byte{1}, Proof: []byte{1}})
	assert.ErrorIs(t, err, model.ErrAuthenticationFailed)
}

func TestEmailLimiter_PrunesIdleEntries(t *testing.T) {
	l := newEmailLimiter(1, 1)
	require.True(t, l.allow("stale@example.com"))
	require.True(t, l.allow("fresh@example.com"))

	l.mu.Lock()
	l.limiters["stale@example.com"].lastSeen = time.Now().Add(-limiterIdleTTL - time.Minute)
	l.prune(time.Now())
	_, stale := l.limiters["stale@example.com"]
	_, fresh := l.limiters["fresh@example.com"]
	l.mu.Unlock()

	assert.False(t, stale)
	assert.True(t, fresh)
}

func TestAuth_CreateSession_RateLimited(t *testing.T) {
	ctx := context.Background()
	cfg := testAuthConfig()
	cfg.ProofRPS = 0.001
	cfg.ProofBurst = 1
	f := newAuthFixture(cfg)
	record, _ := enrolled(t, "alice@example.com", "correct horse")

	f.authStore.On("GetByEmail", mock.Anything, "alice@example.com").Return(record, nil)
	_, handshake := runHandshake(t, f, "alice@example.com")

	f.handshakeStore.On("GetByID", mock.Anything, handshake.ID).Return(*handshake, nil)
	f.handshakeStore.On("Consume", mock.Anything, handshake.ID).Return(nil)

	_, err := f.service.CreateSession(ctx, ProofParams{HandshakeID: handshake.ID, A: []byte{1}, Proof: []byte{1}})
	assert.ErrorIs(t, err, model.ErrAuthenticationFailed)

	_, err = f.service.CreateSession(ctx, ProofParams{HandshakeID: handshake.ID, A: []byte{1}, Proof: []byte{1}})
	assert.ErrorIs(t, err, model.ErrRateLimited)
}

func TestAuth_RevokeSession(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testAuthConfig())
	sessionID := uuid.New()

	f.sessionStore.On("Delete", mock.Anything, sessionID).Return(nil)
	require.NoError(t, f.service.RevokeSession(ctx, sessionID))

	// Unknown sessions revoke to the same outcome.
	unknown := uuid.New()
	f.sessionStore.On("Delete", mock.Anything, unknown).Return(model.ErrNotFound)
	require.NoError(t, f.service.RevokeSession(ctx, unknown))
}

func TestAuth_UpdateAuth(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testAuthConfig())
	record, _ := enrolled(t, "alice@example.com", "correct horse")

	f.authStore.On("GetByAccountID", mock.Anything, record.AccountID).Return(record, nil)
	f.authStore.On("Update", mock.Anything, mock.MatchedBy(func(r model.AuthRecord) bool {
		return string(r.Verifier) == "new-verifier"
	})).Return(nil)
	f.sessionStore.On("DeleteByAccountID", mock.Anything, record.AccountID).Return(nil)

	err := f.service.UpdateAuth(ctx, record.AccountID, []byte("new-verifier"), []byte(`{"algo":"PBKDF2-SHA256"}`), srp.Group2048Name)
	require.NoError(t, err)
	f.sessionStore.AssertCalled(t, "DeleteByAccountID", mock.Anything, record.AccountID)
}

func TestAuth_UpdateAuth_UnknownGroup(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(testAuthConfig())

	err := f.service.UpdateAuth(ctx, uuid.New(), []byte("v"), []byte("kdf"), "srp-unknown")
	require.Error(t, err)
	apiErr := model.AsError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.CodeInvalidRequest, apiErr.Code)
}
