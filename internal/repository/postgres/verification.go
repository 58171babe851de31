package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

var _ model.VerificationStore = (*VerificationRepository)(nil)

type VerificationRepository struct {
	db *Connection
}

func NewVerificationRepository(db *Connection) *VerificationRepository {
	return &VerificationRepository{
		db: db,
	}
}

// Create upserts: a fresh verification replaces any previous one for the
// same email and purpose, consumed or not.
func (r *VerificationRepository) Create(ctx context.Context, v model.EmailVerification) error {
	query := `INSERT INTO email_verifications (email, purpose, token_hash, expires_at, consumed)
			  VALUES ($1, $2, $3, $4, FALSE)
			  ON CONFLICT (email, purpose)
			  DO UPDATE SET token_hash = $3, expires_at = $4, consumed = FALSE`

	_, err := r.db.Exec(ctx, query, v.Email, v.Purpose, v.TokenHash, v.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}

	return nil
}

func (r *VerificationRepository) GetByEmail(ctx context.Context, email string, purpose model.VerificationPurpose) (model.EmailVerification, error) {
	var v model.EmailVerification
	query := `SELECT email, purpose, token_hash, expires_at, consumed
			  FROM email_verifications WHERE email = $1 AND purpose = $2`

	err := r.db.QueryRow(ctx, query, email, purpose).Scan(
		&v.Email, &v.Purpose, &v.TokenHash, &v.ExpiresAt, &v.Consumed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EmailVerification{}, model.ErrNotFound
		}
		return model.EmailVerification{}, fmt.Errorf("failed to get verification: %w", err)
	}

	return v, nil
}

func (r *VerificationRepository) Consume(ctx context.Context, email string, purpose model.VerificationPurpose) error {
	query := `UPDATE email_verifications SET consumed = TRUE
			  WHERE email = $1 AND purpose = $2 AND consumed = FALSE`

	tag, err := r.db.Exec(ctx, query, email, purpose)
	if err != nil {
		return fmt.Errorf("failed to consume verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}
