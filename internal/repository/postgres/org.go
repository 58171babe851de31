package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

var _ model.OrgStore = (*OrgRepository)(nil)

type OrgRepository struct {
	db *Connection
}

func NewOrgRepository(db *Connection) *OrgRepository {
	return &OrgRepository{
		db: db,
	}
}

const orgColumns = `id, name, version, data, created_at, updated_at`

func scanOrg(row pgx.Row) (model.StoredOrg, error) {
	var org model.StoredOrg
	err := row.Scan(&org.ID, &org.Name, &org.Version, &org.Data, &org.CreatedAt, &org.UpdatedAt)
	return org, err
}

func (r *OrgRepository) Create(ctx context.Context, org model.StoredOrg) (model.StoredOrg, error) {
	query := `INSERT INTO orgs (id, name, version, data, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, now(), now())
			  RETURNING ` + orgColumns

	saved, err := scanOrg(r.db.QueryRow(ctx, query, org.ID, org.Name, org.Version, org.Data))
	if err != nil {
		return model.StoredOrg{}, fmt.Errorf("failed to create org: %w", err)
	}

	return saved, nil
}

func (r *OrgRepository) GetByID(ctx context.Context, id uuid.UUID) (model.StoredOrg, error) {
	query := `SELECT ` + orgColumns + ` FROM orgs WHERE id = $1`

	org, err := scanOrg(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StoredOrg{}, model.ErrNotFound
		}
		return model.StoredOrg{}, fmt.Errorf("failed to get org: %w", err)
	}

	return org, nil
}

func (r *OrgRepository) Update(ctx context.Context, org model.StoredOrg) (model.StoredOrg, error) {
	query := `UPDATE orgs
			  SET name = $2, version = $3, data = $4, updated_at = now()
			  WHERE id = $1
			  RETURNING ` + orgColumns

	saved, err := scanOrg(r.db.QueryRow(ctx, query, org.ID, org.Name, org.Version, org.Data))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StoredOrg{}, model.ErrNotFound
		}
		return model.StoredOrg{}, fmt.Errorf("failed to update org: %w", err)
	}

	return saved, nil
}

func (r *OrgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM orgs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete org: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}
