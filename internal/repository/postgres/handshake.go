package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

var _ model.HandshakeStore = (*HandshakeRepository)(nil)

type HandshakeRepository struct {
	db *Connection
}

func NewHandshakeRepository(db *Connection) *HandshakeRepository {
	return &HandshakeRepository{
		db: db,
	}
}

func (r *HandshakeRepository) Create(ctx context.Context, h model.PendingHandshake) error {
	query := `INSERT INTO handshakes (id, email, b, secret_b, verifier, salt, simulated, expires_at, consumed)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)`

	_, err := r.db.Exec(ctx, query,
		h.ID, h.Email, h.B, h.SecretB, h.Verifier, h.Salt, h.Simulated, h.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create handshake: %w", err)
	}

	return nil
}

func (r *HandshakeRepository) GetByID(ctx context.Context, id uuid.UUID) (model.PendingHandshake, error) {
	var h model.PendingHandshake
	query := `SELECT id, email, b, secret_b, verifier, salt, simulated, expires_at, consumed
			  FROM handshakes WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&h.ID, &h.Email, &h.B, &h.SecretB, &h.Verifier, &h.Salt, &h.Simulated, &h.ExpiresAt, &h.Consumed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PendingHandshake{}, model.ErrNotFound
		}
		return model.PendingHandshake{}, fmt.Errorf("failed to get handshake: %w", err)
	}

	return h, nil
}

func (r *HandshakeRepository) Consume(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE handshakes SET consumed = TRUE WHERE id = $1 AND consumed = FALSE`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to consume handshake: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}
