package service

import (
	"context"
	"crypto/sha256"
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

type accountFixture struct {
	accountStore      *mocks.AccountStore
	authStore         *mocks.AuthStore
	sessionStore      *mocks.SessionStore
	verificationStore *mocks.VerificationStore
	mailer            *mocks.Mailer
	service           *Account
}

func newAccountFixture() *accountFixture {
	f := &accountFixture{
		accountStore:      &mocks.AccountStore{},
		authStore:         &mocks.AuthStore{},
		sessionStore:      &mocks.SessionStore{},
		verificationStore: &mocks.VerificationStore{},
		mailer:            &mocks.Mailer{},
	}
	f.service = NewAccount(
		f.accountStore,
		f.authStore,
		f.sessionStore,
		f.verificationStore,
		f.mailer,
		crypto.NewProvider(),
		time.Hour,
		testutil.MakeNoopLogger(),
	)
	return f
}

func testPublicKeyDER(t *testing.T) []byte {
	t.Helper()
	priv, err := crypto.NewProvider().GenerateKeyPair()
	require.NoError(t, err)
	der, err := crypto.MarshalPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	return der
}

func testKDF(t *testing.T) []byte {
	t.Helper()
	marshaled, err := json.Marshal(crypto.KDFParams{
		Algo:       crypto.KDFAlgoPBKDF2SHA256,
		Iterations: 1000,
		Salt:       []byte("0123456789abcdef"),
		KeyLen:     32,
	})
	require.NoError(t, err)
	return marshaled
}

func TestAccount_StartVerification(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture()

	var stored model.EmailVerification
	var mailed string
	f.verificationStore.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(model.EmailVerification)
	}).Return(nil)
	f.mailer.On("SendVerification", mock.Anything, "alice@example.com", mock.Anything, model.PurposeSignup).
		Run(func(args mock.Arguments) { mailed = args.String(2) }).Return(nil)

	require.NoError(t, f.service.StartVerification(ctx, "alice@example.com", model.PurposeSignup))

	// Only the hash is persisted; the clear token goes to the mailbox.
	require.NotEmpty(t, mailed)
	hash := sha256.Sum256([]byte(mailed))
	assert.Equal(t, hash[:], stored.TokenHash)
	assert.True(t, stored.ExpiresAt.After(time.Now()))
}

func validVerification(token string, purpose model.VerificationPurpose) model.EmailVerification {
	hash := sha256.Sum256([]byte(token))
	return model.EmailVerification{
		Email:     "alice@example.com",
		Purpose:   purpose,
		TokenHash: hash[:],
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestAccount_CreateAccount_Success(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture()

	f.verificationStore.On("GetByEmail", mock.Anything, "alice@example.com", model.PurposeSignup).
		Return(validVerification("tok", model.PurposeSignup), nil)
	f.verificationStore.On("Consume", mock.Anything, "alice@example.com", model.PurposeSignup).Return(nil)
	f.accountStore.On("GetByEmail", mock.Anything, "alice@example.com").Return(model.Account{}, model.ErrNotFound)
	f.accountStore.On("Create", mock.Anything, mock.Anything).Return(model.Account{ID: uuid.New(), Email: "alice@example.com"}, nil)
	f.authStore.On("Create", mock.Anything, mock.Anything).Return(nil)

	account, err := f.service.CreateAccount(ctx, CreateAccountParams{
		Email:               "alice@example.com",
		Name:                "Alice",
		VerifyToken:         "tok",
		PublicKey:           testPublicKeyDER(t),
		KeyParams:           []byte(`{"algo":"AES-256-GCM"}`),
		EncryptedPrivateKey: []byte("envelope"),
		Verifier:            []byte("verifier"),
		KDF:                 testKDF(t),
		Group:               srp.Group2048Name,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, account.ID)
	f.authStore.AssertCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAccount_CreateAccount_WrongToken(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture()

	f.verificationStore.On("GetByEmail", mock.Anything, "alice@example.com", model.PurposeSignup).
		Return(validVerification("tok", model.PurposeSignup), nil)

	_, err := f.service.CreateAccount(ctx, CreateAccountParams{
		Email:       "alice@example.com",
		VerifyToken: "not-the-token",
		PublicKey:   testPublicKeyDER(t),
		Verifier:    []byte("verifier"),
		KDF:         testKDF(t),
		Group:       srp.Group2048Name,
	})
	apiErr := model.AsError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.CodeVerificationRequired, apiErr.Code)
}

func TestAccount_CreateAccount_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture()

	verification := validVerification("tok", model.PurposeSignup)
	verification.ExpiresAt = time.Now().Add(-time.Minute)
	f.verificationStore.On("GetByEmail", mock.Anything, "alice@example.com", model.PurposeSignup).
		Return(verification, nil)

	_, err := f.service.CreateAccount(ctx, CreateAccountParams{
		Email:       "alice@example.com",
		VerifyToken: "tok",
		PublicKey:   testPublicKeyDER(t),
		Verifier:    []byte("verifier"),
		KDF:         testKDF(t),
		Group:       srp.Group2048Name,
	})
	apiErr := model.AsError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.CodeVerificationRequired, apiErr.Code)
}

func TestAccount_CreateAccount_EmailTaken(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture()

	f.verificationStore.On("GetByEmail", mock.Anything, "alice@example.com", model.PurposeSignup).
		Return(validVerification("tok", model.PurposeSignup), nil)
	f.verificationStore.On("Consume", mock.Anything, "alice@example.com", model.PurposeSignup).Return(nil)
	f.accountStore.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(model.Account{ID: uuid.New()}, nil)

	_, err := f.service.CreateAccount(ctx, CreateAccountParams{
		Email:       "alice@example.com",
		VerifyToken: "tok",
		PublicKey:   testPublicKeyDER(t),
		Verifier:    []byte("verifier"),
		KDF:         testKDF(t),
		Group:       srp.Group2048Name,
	})
	apiErr := model.AsError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.CodeAlreadyExists, apiErr.Code)
}

func TestAccount_CreateAccount_BadPublicKey(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture()

	_, err := f.service.CreateAccount(ctx, CreateAccountParams{
		Email:       "alice@example.com",
		VerifyToken: "tok",
		PublicKey:   []byte("not-der"),
		Verifier:    []byte("verifier"),
		KDF:         testKDF(t),
		Group:       srp.Group2048Name,
	})
	apiErr := model.AsError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.CodeInvalidRequest, apiErr.Code)
}

func TestAccount_LookupAccount(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture()
	id := uuid.New()

	f.accountStore.On("GetByEmail", mock.Anything, "alice@example.com").Return(model.Account{
		ID:                  id,
		Email:               "alice@example.com",
		Name:                "Alice",
		PublicKey:           []byte("der"),
		EncryptedPrivateKey: []byte("envelope"),
	}, nil)

	got, err := f.service.LookupAccount(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, []byte("der"), got.PublicKey)

	f.accountStore.On("GetByEmail", mock.Anything, "ghost@example.com").Return(model.Account{}, model.ErrNotFound)
	_, err = f.service.LookupAccount(ctx, "ghost@example.com")
	apiErr := model.AsError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, model.CodeNotFound, apiErr.Code)
}

func TestAccount_UpdateAccount(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture()
	id := uuid.New()

	f.accountStore.On("GetByID", mock.Anything, id).Return(model.Account{ID: id, Name: "Alice"}, nil)
	f.accountStore.On("Update", mock.Anything, mock.MatchedBy(func(a model.Account) bool {
		return a.Name == "Alice B." && string(a.EncryptedPrivateKey) == "new-envelope"
	})).Return(model.Account{ID: id, Name: "Alice B."}, nil)

	name := "Alice B."
	got, err := f.service.UpdateAccount(ctx, id, UpdateAccountParams{
		Name:                &name,
		EncryptedPrivateKey: []byte("new-envelope"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", got.Name)
}

func TestAccount_RecoverAccount(t *testing.T) {
	ctx := context.Background()
	f := newAccountFixture()
	id := uuid.New()

	f.verificationStore.On("GetByEmail", mock.Anything, "alice@example.com", model.PurposeRecover).
		Return(validVerification("tok", model.PurposeRecover), nil)
	f.verificationStore.On("Consume", mock.Anything, "alice@example.com", model.PurposeRecover).Return(nil)
	f.accountStore.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(model.Account{ID: id, Email: "alice@example.com"}, nil)
	f.accountStore.On("Update", mock.Anything, mock.Anything).
		Return(model.Account{ID: id, Email: "alice@example.com"}, nil)
	f.authStore.On("GetByAccountID", mock.Anything, id).Return(model.AuthRecord{AccountID: id}, nil)
	f.authStore.On("Update", mock.Anything, mock.MatchedBy(func(r model.AuthRecord) bool {
		return string(r.Verifier) == "new-verifier"
	})).Return(nil)
	f.sessionStore.On("DeleteByAccountID", mock.Anything, id).Return(nil)

	_, err := f.service.RecoverAccount(ctx, RecoverAccountParams{
		Email:               "alice@example.com",
		VerifyToken:         "tok",
		PublicKey:           testPublicKeyDER(t),
		KeyParams:           []byte(`{"algo":"AES-256-GCM"}`),
		EncryptedPrivateKey: []byte("new-envelope"),
		Verifier:            []byte("new-verifier"),
		KDF:                 testKDF(t),
		Group:               srp.Group2048Name,
	})
	require.NoError(t, err)
	f.sessionStore.AssertCalled(t, "DeleteByAccountID", mock.Anything, id)
}
