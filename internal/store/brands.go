package store

import (
	"context"
	"database/sql"
	"fmt"

	"license-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// FindActiveBrand looks up an active brand by its natural key (name, system).
// Returns ErrNotFound when no active brand matches.
func (s *Store) FindActiveBrand(ctx context.Context, name, system string) (*models.Brand, error) {
	var b models.Brand
	err := s.db.GetContext(ctx, &b,
		"SELECT * FROM brands WHERE name = $1 AND system = $2 AND is_active = TRUE", name, system)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// InsertBrand creates a new brand record
func (s *Store) InsertBrand(ctx context.Context, b *models.Brand) error {
	query := `
		INSERT INTO brands
		(name, system, tier, category, description, emoji, fee, royalty,
		 division, vault_mesh_id, parent_id, use_phrase, subnodes, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		b.Name, b.System, b.Tier, b.Category, b.Description, b.Emoji,
		b.Fee, b.Royalty, b.Division, b.VaultMeshID, b.ParentID,
		b.UsePhrase, b.Subnodes, b.Metadata)
	if err := row.Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert brand: %w", err)
	}
	return nil
}

// UpdateBrand overwrites the mutable attributes of an existing brand,
// keeping its identity
func (s *Store) UpdateBrand(ctx context.Context, b *models.Brand) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE brands
		SET tier = $1, category = $2, description = $3, emoji = $4,
		    fee = $5, royalty = $6, division = $7, vault_mesh_id = $8,
		    parent_id = $9, use_phrase = $10, subnodes = $11, metadata = $12,
		    updated_at = NOW()
		WHERE id = $13`,
		b.Tier, b.Category, b.Description, b.Emoji,
		b.Fee, b.Royalty, b.Division, b.VaultMeshID,
		b.ParentID, b.UsePhrase, b.Subnodes, b.Metadata, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update brand: %w", err)
	}
	return nil
}

// SoftDeleteBrands deactivates the given brands and returns the number of
// rows touched. Their system counts must be refreshed by the caller.
func (s *Store) SoftDeleteBrands(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		"UPDATE brands SET is_active = FALSE, updated_at = NOW() WHERE id IN (?)", ids)
	if err != nil {
		return 0, err
	}
	query = s.db.Rebind(query)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to soft delete brands: %w", err)
	}
	return res.RowsAffected()
}

// SystemsForBrands returns the distinct system keys of the given brands,
// active or not. Used to refresh counts after a soft delete.
func (s *Store) SystemsForBrands(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT DISTINCT system FROM brands WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var systems []string
	err = s.db.SelectContext(ctx, &systems, query, args...)
	return systems, err
}

// RefreshSystemCount recomputes the denormalized brand count for a system
// from a live count of its active brands
func (s *Store) RefreshSystemCount(ctx context.Context, systemKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO brand_systems (system_key, system_name, total_brands, is_active, updated_at)
		VALUES ($1, $1, (SELECT COUNT(*) FROM brands WHERE system = $1 AND is_active = TRUE), TRUE, NOW())
		ON CONFLICT (system_key) DO UPDATE
		SET total_brands = (SELECT COUNT(*) FROM brands WHERE system = $1 AND is_active = TRUE),
		    updated_at = NOW()`,
		systemKey)
	if err != nil {
		return fmt.Errorf("failed to refresh system count: %w", err)
	}
	return nil
}

// GetBrandSystem retrieves a brand system aggregate by key
func (s *Store) GetBrandSystem(ctx context.Context, systemKey string) (*models.BrandSystem, error) {
	var sys models.BrandSystem
	err := s.db.GetContext(ctx, &sys,
		"SELECT * FROM brand_systems WHERE system_key = $1", systemKey)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sys, nil
}
