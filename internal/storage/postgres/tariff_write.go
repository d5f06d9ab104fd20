package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

const (
	upsertBranchSQL = `INSERT INTO branches (id, name, address, phone) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address, phone = EXCLUDED.phone`

	upsertSettingsSQL = `INSERT INTO tariff_settings (
			branch_id, wash_fold_per_kg, wash_iron_per_kg, iron_per_piece, small_per_piece,
			heavy_flat, heavy_per_kg, heavy_threshold_kg
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (branch_id) DO UPDATE SET
			wash_fold_per_kg = EXCLUDED.wash_fold_per_kg,
			wash_iron_per_kg = EXCLUDED.wash_iron_per_kg,
			iron_per_piece = EXCLUDED.iron_per_piece,
			small_per_piece = EXCLUDED.small_per_piece,
			heavy_flat = EXCLUDED.heavy_flat,
			heavy_per_kg = EXCLUDED.heavy_per_kg,
			heavy_threshold_kg = EXCLUDED.heavy_threshold_kg,
			updated_at = now()`

	upsertCatalogItemSQL = `INSERT INTO catalog_items (id, branch_id, name, category, unit, kind, display_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (branch_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			unit = EXCLUDED.unit,
			kind = EXCLUDED.kind,
			display_order = EXCLUDED.display_order,
			active = TRUE`

	upsertSpecialRateSQL = `INSERT INTO special_rates (branch_id, item_id, service, rate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (branch_id, item_id, service) DO UPDATE SET
			rate = EXCLUDED.rate,
			active = TRUE,
			updated_at = now()`
)

// Branch is a shop location.
type Branch struct {
	ID      string
	Name    string
	Address string
	Phone   string
}

// SaveBranch creates or renames a branch.
func (r *TariffRepository) SaveBranch(ctx context.Context, b Branch) error {
	if _, err := r.pool.Exec(ctx, upsertBranchSQL, b.ID, b.Name, b.Address, b.Phone); err != nil {
		return fmt.Errorf("saving branch %q: %w", b.ID, err)
	}
	return nil
}

// SaveSettings replaces the base rates of a branch.
func (r *TariffRepository) SaveSettings(ctx context.Context, branchID string, s tariff.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, upsertSettingsSQL, branchID,
		s.WashFoldPerKg, s.WashIronPerKg, s.IronPerPiece, s.SmallPerPiece,
		s.HeavyFlat, s.HeavyPerKg, s.HeavyThreshold,
	)
	if err != nil {
		return fmt.Errorf("saving settings of branch %q: %w", branchID, err)
	}
	return nil
}

// SaveCatalogItems upserts catalog items of a branch in one transaction.
func (r *TariffRepository) SaveCatalogItems(ctx context.Context, branchID string, items []tariff.CatalogItem) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(upsertCatalogItemSQL, it.ID, branchID, it.Name, it.Category,
			string(it.Unit), string(it.Kind), it.DisplayOrder)
	}
	return r.sendBatch(ctx, batch, "saving catalog items")
}

// SaveSpecialRates upserts rate overrides of a branch in one transaction.
func (r *TariffRepository) SaveSpecialRates(ctx context.Context, branchID string, rates []tariff.SpecialRate) error {
	batch := &pgx.Batch{}
	for _, sr := range rates {
		batch.Queue(upsertSpecialRateSQL, branchID, sr.ItemID, string(sr.Service), sr.Rate)
	}
	return r.sendBatch(ctx, batch, "saving special rates")
}

func (r *TariffRepository) sendBatch(ctx context.Context, batch *pgx.Batch, op string) error {
	if batch.Len() == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}
