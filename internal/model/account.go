package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountStore defines persistence operations for accounts.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (Account, error)
	Create(ctx context.Context, account Account) (Account, error)
	Update(ctx context.Context, account Account) (Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Account represents a stored account. PublicKey is the DER-encoded
// long-term RSA public key; EncryptedPrivateKey is the AEAD envelope
// sealed on the client under the password-derived master key. The server
// stores the envelope opaquely and can never open it.
type Account struct {
	ID                  uuid.UUID
	Email               string
	Name                string
	PublicKey           []byte
	KeyParams           []byte
	EncryptedPrivateKey []byte
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}

// AuthStore defines persistence operations for auth records.
type AuthStore interface {
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (AuthRecord, error)
	GetByEmail(ctx context.Context, email string) (AuthRecord, error)
	Create(ctx context.Context, auth AuthRecord) error
	Update(ctx context.Context, auth AuthRecord) error
}

// AuthRecord holds the SRP verifier and the KDF parameters for an
// account's master key. The verifier is derivable only from the password;
// nothing else about the password is stored.
type AuthRecord struct {
	AccountID uuid.UUID
	Email     string
	KDF       []byte
	Verifier  []byte
	Group     string
	UpdatedAt time.Time
}

// VerificationPurpose enumerates email verification purposes.
type VerificationPurpose string

const (
	PurposeSignup  VerificationPurpose = "signup"
	PurposeRecover VerificationPurpose = "recover"
)

// VerificationStore persists pending email verifications.
type VerificationStore interface {
	Create(ctx context.Context, v EmailVerification) error
	GetByEmail(ctx context.Context, email string, purpose VerificationPurpose) (EmailVerification, error)
	Consume(ctx context.Context, email string, purpose VerificationPurpose) error
}

// EmailVerification is a pending proof of email ownership. TokenHash is a
// SHA-256 of the token mailed to the address; the clear token never
// touches the database.
type EmailVerification struct {
	Email     string
	Purpose   VerificationPurpose
	TokenHash []byte
	ExpiresAt time.Time
	Consumed  bool
}

// Mailer delivers verification email. Delivery transport is pluggable;
// tests substitute a capture fake.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string, purpose VerificationPurpose) error
}
