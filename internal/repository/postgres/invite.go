package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

var _ model.InviteStore = (*InviteRepository)(nil)

type InviteRepository struct {
	db *Connection
}

func NewInviteRepository(db *Connection) *InviteRepository {
	return &InviteRepository{
		db: db,
	}
}

const inviteColumns = `id, org_id, email, version, data, expires_at, used, created_at`

func scanInvite(row pgx.Row) (model.StoredInvite, error) {
	var invite model.StoredInvite
	err := row.Scan(
		&invite.ID, &invite.OrgID, &invite.Email, &invite.Version, &invite.Data,
		&invite.ExpiresAt, &invite.Used, &invite.CreatedAt,
	)
	return invite, err
}

func (r *InviteRepository) Create(ctx context.Context, invite model.StoredInvite) (model.StoredInvite, error) {
	query := `INSERT INTO invites (id, org_id, email, version, data, expires_at, used, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, FALSE, now())
			  RETURNING ` + inviteColumns

	saved, err := scanInvite(r.db.QueryRow(ctx, query,
		invite.ID, invite.OrgID, invite.Email, invite.Version, invite.Data, invite.ExpiresAt,
	))
	if err != nil {
		return model.StoredInvite{}, fmt.Errorf("failed to create invite: %w", err)
	}

	return saved, nil
}

func (r *InviteRepository) GetByID(ctx context.Context, id uuid.UUID) (model.StoredInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE id = $1`

	invite, err := scanInvite(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StoredInvite{}, model.ErrNotFound
		}
		return model.StoredInvite{}, fmt.Errorf("failed to get invite: %w", err)
	}

	return invite, nil
}

// MarkUsed flips the used flag exactly once; a second call reports
// ErrNotFound so races on the same invite cannot both win.
func (r *InviteRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE invites SET used = TRUE WHERE id = $1 AND used = FALSE`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark invite used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *InviteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}
