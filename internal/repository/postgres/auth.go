package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

var _ model.AuthStore = (*AuthRepository)(nil)

type AuthRepository struct {
	db *Connection
}

func NewAuthRepository(db *Connection) *AuthRepository {
	return &AuthRepository{
		db: db,
	}
}

func (r *AuthRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (model.AuthRecord, error) {
	var record model.AuthRecord
	query := `SELECT account_id, email, kdf, verifier, auth_group, updated_at
			  FROM auth_records WHERE account_id = $1`

	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&record.AccountID, &record.Email, &record.KDF, &record.Verifier, &record.Group, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AuthRecord{}, model.ErrNotFound
		}
		return model.AuthRecord{}, fmt.Errorf("failed to get auth record by account id: %w", err)
	}

	return record, nil
}

func (r *AuthRepository) GetByEmail(ctx context.Context, email string) (model.AuthRecord, error) {
	var record model.AuthRecord
	query := `SELECT account_id, email, kdf, verifier, auth_group, updated_at
			  FROM auth_records WHERE email = $1`

	err := r.db.QueryRow(ctx, query, email).Scan(
		&record.AccountID, &record.Email, &record.KDF, &record.Verifier, &record.Group, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AuthRecord{}, model.ErrNotFound
		}
		return model.AuthRecord{}, fmt.Errorf("failed to get auth record by email: %w", err)
	}

	return record, nil
}

func (r *AuthRepository) Create(ctx context.Context, auth model.AuthRecord) error {
	query := `INSERT INTO auth_records (account_id, email, kdf, verifier, auth_group, updated_at)
			  VALUES ($1, $2, $3, $4, $5, now())`

	_, err := r.db.Exec(ctx, query, auth.AccountID, auth.Email, auth.KDF, auth.Verifier, auth.Group)
	if err != nil {
		return fmt.Errorf("failed to create auth record: %w", err)
	}

	return nil
}

func (r *AuthRepository) Update(ctx context.Context, auth model.AuthRecord) error {
	query := `UPDATE auth_records
			  SET kdf = $2, verifier = $3, auth_group = $4, updated_at = now()
			  WHERE account_id = $1`

	tag, err := r.db.Exec(ctx, query, auth.AccountID, auth.KDF, auth.Verifier, auth.Group)
	if err != nil {
		return fmt.Errorf("failed to update auth record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}
