package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

var _ model.GroupStore = (*GroupRepository)(nil)

type GroupRepository struct {
	db *Connection
}

func NewGroupRepository(db *Connection) *GroupRepository {
	return &GroupRepository{
		db: db,
	}
}

const groupColumns = `id, org_id, name, version, data, created_at, updated_at`

func scanGroup(row pgx.Row) (model.StoredGroup, error) {
	var group model.StoredGroup
	err := row.Scan(
		&group.ID, &group.OrgID, &group.Name, &group.Version, &group.Data,
		&group.CreatedAt, &group.UpdatedAt,
	)
	return group, err
}

func (r *GroupRepository) Create(ctx context.Context, group model.StoredGroup) (model.StoredGroup, error) {
	query := `INSERT INTO groups (id, org_id, name, version, data, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, now(), now())
			  RETURNING ` + groupColumns

	saved, err := scanGroup(r.db.QueryRow(ctx, query,
		group.ID, group.OrgID, group.Name, group.Version, group.Data,
	))
	if err != nil {
		return model.StoredGroup{}, fmt.Errorf("failed to create group: %w", err)
	}

	return saved, nil
}

func (r *GroupRepository) GetByID(ctx context.Context, id uuid.UUID) (model.StoredGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`

	group, err := scanGroup(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StoredGroup{}, model.ErrNotFound
		}
		return model.StoredGroup{}, fmt.Errorf("failed to get group: %w", err)
	}

	return group, nil
}

func (r *GroupRepository) GetByOrgID(ctx context.Context, orgID uuid.UUID) ([]model.StoredGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE org_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups by org id: %w", err)
	}
	defer rows.Close()

	var groups []model.StoredGroup
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	return groups, nil
}

func (r *GroupRepository) Update(ctx context.Context, group model.StoredGroup) (model.StoredGroup, error) {
	query := `UPDATE groups
			  SET name = $2, version = $3, data = $4, updated_at = now()
			  WHERE id = $1
			  RETURNING ` + groupColumns

	saved, err := scanGroup(r.db.QueryRow(ctx, query,
		group.ID, group.Name, group.Version, group.Data,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StoredGroup{}, model.ErrNotFound
		}
		return model.StoredGroup{}, fmt.Errorf("failed to update group: %w", err)
	}

	return saved, nil
}

func (r *GroupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}
