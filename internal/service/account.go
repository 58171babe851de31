package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keysmith-dev/keysmith-server/internal/crypto"
	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/model"
	"github.com/keysmith-dev/keysmith-server/internal/srp"
)

const verifyTokenLen = 32

// CreateAccountParams carries everything a client submits on signup. The
// private key arrives sealed under the password-derived master key; the
// server never sees it in clear.
type CreateAccountParams struct {
	Email               string
	Name                string
	VerifyToken         string
	PublicKey           []byte
	KeyParams           []byte
	EncryptedPrivateKey []byte
	Verifier            []byte
	KDF                 []byte
	Group               string
}

// UpdateAccountParams carries the mutable account fields. Nil fields are
// left unchanged.
type UpdateAccountParams struct {
	Name                *string
	EncryptedPrivateKey []byte
	KeyParams           []byte
}

// RecoverAccountParams carries a full credential replacement proven by a
// recovery token. The old keypair is discarded, not migrated: data keys
// wrapped to it stay unreadable until re-granted.
type RecoverAccountParams struct {
	Email               string
	VerifyToken         string
	PublicKey           []byte
	KeyParams           []byte
	EncryptedPrivateKey []byte
	Verifier            []byte
	KDF                 []byte
	Group               string
}

// PublicAccount is the directory view of an account: what another
// principal needs to wrap a key to it.
type PublicAccount struct {
	ID        uuid.UUID
	Email     string
	Name      string
	PublicKey []byte
}

// Account implements signup, recovery, and account maintenance.
type Account struct {
	accountStore      model.AccountStore
	authStore         model.AuthStore
	sessionStore      model.SessionStore
	verificationStore model.VerificationStore
	mailer            model.Mailer
	provider          *crypto.Provider
	verifyTokenTTL    time.Duration
	logger            *logger.Logger
}

// NewAccount creates the account service.
func NewAccount(
	accountStore model.AccountStore,
	authStore model.AuthStore,
	sessionStore model.SessionStore,
	verificationStore model.VerificationStore,
	mailer model.Mailer,
	provider *crypto.Provider,
	verifyTokenTTL time.Duration,
	logger *logger.Logger,
) *Account {
	return &Account{
		accountStore:      accountStore,
		authStore:         authStore,
		sessionStore:      sessionStore,
		verificationStore: verificationStore,
		mailer:            mailer,
		provider:          provider,
		verifyTokenTTL:    verifyTokenTTL,
		logger:            logger,
	}
}

// StartVerification mails a proof-of-ownership token for email. Only the
// token's hash is stored. The response carries no hint of whether an
// account exists for the address.
func (a *Account) StartVerification(ctx context.Context, email string, purpose model.VerificationPurpose) error {
	if email == "" {
		return model.NewError(model.CodeInvalidRequest, "email is required")
	}

	raw, err := a.provider.RandomBytes(verifyTokenLen)
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}
	token := hex.EncodeToString(raw)
	hash := sha256.Sum256([]byte(token))

	verification := model.EmailVerification{
		Email:     email,
		Purpose:   purpose,
		TokenHash: hash[:],
		ExpiresAt: time.Now().Add(a.verifyTokenTTL),
	}
	if err := a.verificationStore.Create(ctx, verification); err != nil {
		a.logger.Error("account service: failed to store verification",
			"email", email,
			"error", err.Error())
		return fmt.Errorf("failed to store verification: %w", err)
	}

	if err := a.mailer.SendVerification(ctx, email, token, purpose); err != nil {
		a.logger.Error("account service: failed to send verification email",
			"email", email,
			"error", err.Error())
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	a.logger.Info("account service: verification started",
		"email", email,
		"purpose", purpose)
	return nil
}

// consumeVerification checks the presented token against the pending
// verification and marks it used.
func (a *Account) consumeVerification(ctx context.Context, email, token string, purpose model.VerificationPurpose) error {
	verification, err := a.verificationStore.GetByEmail(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewError(model.CodeVerificationRequired, "email not verified")
		}
		return fmt.Errorf("failed to get verification: %w", err)
	}

	if verification.Consumed || time.Now().After(verification.ExpiresAt) {
		return model.NewError(model.CodeVerificationRequired, "email not verified")
	}

	hash := sha256.Sum256([]byte(token))
	if !hmac.Equal(verification.TokenHash, hash[:]) {
		return model.NewError(model.CodeVerificationRequired, "email not verified")
	}

	if err := a.verificationStore.Consume(ctx, email, purpose); err != nil {
		return fmt.Errorf("failed to consume verification: %w", err)
	}
	return nil
}

// CreateAccount registers an account after email verification.
func (a *Account) CreateAccount(ctx context.Context, params CreateAccountParams) (model.Account, error) {
	a.logger.Debug("account service: creating account", "email", params.Email)

	if err := validateCredentialParams(params.PublicKey, params.Verifier, params.KDF, params.Group); err != nil {
		return model.Account{}, err
	}

	if err := a.consumeVerification(ctx, params.Email, params.VerifyToken, model.PurposeSignup); err != nil {
		return model.Account{}, err
	}

	existing, err := a.accountStore.GetByEmail(ctx, params.Email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.Account{}, fmt.Errorf("failed to get account by email: %w", err)
	}
	if existing.ID != uuid.Nil {
		return model.Account{}, model.NewError(model.CodeAlreadyExists, "email is already registered")
	}

	account := model.Account{
		ID:                  uuid.New(),
		Email:               params.Email,
		Name:                params.Name,
		PublicKey:           params.PublicKey,
		KeyParams:           params.KeyParams,
		EncryptedPrivateKey: params.EncryptedPrivateKey,
	}
	account, err = a.accountStore.Create(ctx, account)
	if err != nil {
		a.logger.Error("account service: failed to create account",
			"email", params.Email,
			"error", err.Error())
		return model.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	record := model.AuthRecord{
		AccountID: account.ID,
		Email:     params.Email,
		KDF:       params.KDF,
		Verifier:  params.Verifier,
		Group:     params.Group,
		UpdatedAt: time.Now(),
	}
	if err := a.authStore.Create(ctx, record); err != nil {
		a.logger.Error("account service: failed to create auth record",
			"account_id", account.ID,
			"error", err.Error())
		return model.Account{}, fmt.Errorf("failed to create auth record: %w", err)
	}

	a.logger.Info("account service: account created",
		"account_id", account.ID,
		"email", params.Email)
	return account, nil
}

// GetAccount returns the caller's own account, envelope included.
func (a *Account) GetAccount(ctx context.Context, accountID uuid.UUID) (model.Account, error) {
	account, err := a.accountStore.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Account{}, model.NewError(model.CodeNotFound, "account not found")
		}
		return model.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// LookupAccount returns the public directory entry for an email. This is
// what an org admin uses to wrap keys to a new member.
func (a *Account) LookupAccount(ctx context.Context, email string) (PublicAccount, error) {
	account, err := a.accountStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return PublicAccount{}, model.NewError(model.CodeNotFound, "account not found")
		}
		return PublicAccount{}, fmt.Errorf("failed to get account by email: %w", err)
	}
	return PublicAccount{
		ID:        account.ID,
		Email:     account.Email,
		Name:      account.Name,
		PublicKey: account.PublicKey,
	}, nil
}

// UpdateAccount applies the mutable fields of the caller's account.
func (a *Account) UpdateAccount(ctx context.Context, accountID uuid.UUID, params UpdateAccountParams) (model.Account, error) {
	account, err := a.accountStore.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Account{}, model.NewError(model.CodeNotFound, "account not found")
		}
		return model.Account{}, fmt.Errorf("failed to get account: %w", err)
	}

	if params.Name != nil {
		account.Name = *params.Name
	}
	if params.EncryptedPrivateKey != nil {
		account.EncryptedPrivateKey = params.EncryptedPrivateKey
	}
	if params.KeyParams != nil {
		account.KeyParams = params.KeyParams
	}

	account, err = a.accountStore.Update(ctx, account)
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to update account: %w", err)
	}

	a.logger.Info("account service: account updated", "account_id", accountID)
	return account, nil
}

// DeleteAccount removes the caller's account and revokes its sessions.
func (a *Account) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	if err := a.accountStore.Delete(ctx, accountID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewError(model.CodeNotFound, "account not found")
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if err := a.sessionStore.DeleteByAccountID(ctx, accountID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	a.logger.Info("account service: account deleted", "account_id", accountID)
	return nil
}

// RecoverAccount replaces an account's keypair, envelope, and verifier
// after a recovery token proves email ownership. Existing sessions are
// revoked. Containers that wrapped keys to the old keypair will report a
// key mismatch until an admin re-grants access; that is the cost of a
// recovery the old password cannot unlock.
func (a *Account) RecoverAccount(ctx context.Context, params RecoverAccountParams) (model.Account, error) {
	a.logger.Debug("account service: recovering account", "email", params.Email)

	if err := validateCredentialParams(params.PublicKey, params.Verifier, params.KDF, params.Group); err != nil {
		return model.Account{}, err
	}

	if err := a.consumeVerification(ctx, params.Email, params.VerifyToken, model.PurposeRecover); err != nil {
		return model.Account{}, err
	}

	account, err := a.accountStore.GetByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Account{}, model.NewError(model.CodeNotFound, "account not found")
		}
		return model.Account{}, fmt.Errorf("failed to get account by email: %w", err)
	}

	account.PublicKey = params.PublicKey
	account.KeyParams = params.KeyParams
	account.EncryptedPrivateKey = params.EncryptedPrivateKey
	account, err = a.accountStore.Update(ctx, account)
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to update account: %w", err)
	}

	record, err := a.authStore.GetByAccountID(ctx, account.ID)
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to get auth record: %w", err)
	}
	record.Verifier = params.Verifier
	record.KDF = params.KDF
	record.Group = params.Group
	record.UpdatedAt = time.Now()
	if err := a.authStore.Update(ctx, record); err != nil {
		return model.Account{}, fmt.Errorf("failed to update auth record: %w", err)
	}

	if err := a.sessionStore.DeleteByAccountID(ctx, account.ID); err != nil {
		return model.Account{}, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	a.logger.Info("account service: account recovered", "account_id", account.ID)
	return account, nil
}

func validateCredentialParams(publicKey, verifier, kdf []byte, groupName string) error {
	if len(publicKey) == 0 {
		return model.NewError(model.CodeInvalidRequest, "public key is required")
	}
	if _, err := crypto.ParsePublicKey(publicKey); err != nil {
		return model.NewError(model.CodeInvalidRequest, "public key is not valid DER")
	}
	if len(verifier) == 0 || len(kdf) == 0 {
		return model.NewError(model.CodeInvalidRequest, "verifier and kdf params are required")
	}
	if _, err := srp.GroupByName(groupName); err != nil {
		return model.NewError(model.CodeInvalidRequest, "unknown auth group")
	}
	return nil
}
