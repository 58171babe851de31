package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

var _ model.VaultStore = (*VaultRepository)(nil)

type VaultRepository struct {
	db *Connection
}

func NewVaultRepository(db *Connection) *VaultRepository {
	return &VaultRepository{
		db: db,
	}
}

const vaultColumns = `id, org_id, name, version, data, created_at, updated_at`

func scanVault(row pgx.Row) (model.StoredVault, error) {
	var vault model.StoredVault
	err := row.Scan(
		&vault.ID, &vault.OrgID, &vault.Name, &vault.Version, &vault.Data,
		&vault.CreatedAt, &vault.UpdatedAt,
	)
	return vault, err
}

func (r *VaultRepository) Create(ctx context.Context, vault model.StoredVault) (model.StoredVault, error) {
	query := `INSERT INTO vaults (id, org_id, name, version, data, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, now(), now())
			  RETURNING ` + vaultColumns

	saved, err := scanVault(r.db.QueryRow(ctx, query,
		vault.ID, vault.OrgID, vault.Name, vault.Version, vault.Data,
	))
	if err != nil {
		return model.StoredVault{}, fmt.Errorf("failed to create vault: %w", err)
	}

	return saved, nil
}

func (r *VaultRepository) GetByID(ctx context.Context, id uuid.UUID) (model.StoredVault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE id = $1`

	vault, err := scanVault(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StoredVault{}, model.ErrNotFound
		}
		return model.StoredVault{}, fmt.Errorf("failed to get vault: %w", err)
	}

	return vault, nil
}

func (r *VaultRepository) GetByOrgID(ctx context.Context, orgID uuid.UUID) ([]model.StoredVault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE org_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vaults by org id: %w", err)
	}
	defer rows.Close()

	var vaults []model.StoredVault
	for rows.Next() {
		vault, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vault: %w", err)
		}
		vaults = append(vaults, vault)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vaults: %w", err)
	}

	return vaults, nil
}

func (r *VaultRepository) Update(ctx context.Context, vault model.StoredVault) (model.StoredVault, error) {
	query := `UPDATE vaults
			  SET name = $2, version = $3, data = $4, updated_at = now()
			  WHERE id = $1
			  RETURNING ` + vaultColumns

	saved, err := scanVault(r.db.QueryRow(ctx, query,
		vault.ID, vault.Name, vault.Version, vault.Data,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StoredVault{}, model.ErrNotFound
		}
		return model.StoredVault{}, fmt.Errorf("failed to update vault: %w", err)
	}

	return saved, nil
}

func (r *VaultRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vaults WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vault: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}
