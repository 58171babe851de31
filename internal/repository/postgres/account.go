package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

var _ model.AccountStore = (*AccountRepository)(nil)

type AccountRepository struct {
	db *Connection
}

func NewAccountRepository(db *Connection) *AccountRepository {
	return &AccountRepository{
		db: db,
	}
}

const accountColumns = `id, email, name, public_key, key_params, encrypted_private_key, created_at, updated_at, deleted_at`

func scanAccount(row pgx.Row) (model.Account, error) {
	var account model.Account
	err := row.Scan(
		&account.ID, &account.Email, &account.Name, &account.PublicKey, &account.KeyParams,
		&account.EncryptedPrivateKey, &account.CreatedAt, &account.UpdatedAt, &account.DeletedAt,
	)
	return account, err
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 AND deleted_at IS NULL`

	account, err := scanAccount(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, model.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("failed to get account by email: %w", err)
	}

	return account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND deleted_at IS NULL`

	account, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, model.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("failed to get account by id: %w", err)
	}

	return account, nil
}

func (r *AccountRepository) Create(ctx context.Context, account model.Account) (model.Account, error) {
	query := `INSERT INTO accounts (id, email, name, public_key, key_params, encrypted_private_key, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			  RETURNING ` + accountColumns

	saved, err := scanAccount(r.db.QueryRow(ctx, query,
		account.ID, account.Email, account.Name, account.PublicKey, account.KeyParams,
		account.EncryptedPrivateKey,
	))
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	return saved, nil
}

func (r *AccountRepository) Update(ctx context.Context, account model.Account) (model.Account, error) {
	query := `UPDATE accounts
			  SET name = $2, public_key = $3, key_params = $4, encrypted_private_key = $5, updated_at = now()
			  WHERE id = $1 AND deleted_at IS NULL
			  RETURNING ` + accountColumns

	saved, err := scanAccount(r.db.QueryRow(ctx, query,
		account.ID, account.Name, account.PublicKey, account.KeyParams, account.EncryptedPrivateKey,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, model.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("failed to update account: %w", err)
	}

	return saved, nil
}

func (r *AccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE accounts SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}
