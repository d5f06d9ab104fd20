package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

const (
	getSettingsSQL = `SELECT wash_fold_per_kg, wash_iron_per_kg, iron_per_piece, small_per_piece,
		heavy_flat, heavy_per_kg, heavy_threshold_kg
		FROM tariff_settings WHERE branch_id = $1`

	listSpecialRatesSQL = `SELECT item_id, service, rate
		FROM special_rates WHERE branch_id = $1 AND active
		ORDER BY item_id, service`

	listCatalogItemsSQL = `SELECT id, name, category, unit, kind, display_order
		FROM catalog_items WHERE branch_id = $1 AND active
		ORDER BY display_order, name`
)

var _ tariff.Repository = (*TariffRepository)(nil)

// TariffRepository implements tariff.Repository backed by PostgreSQL.
type TariffRepository struct {
	pool *pgxpool.Pool
}

// NewTariffRepository returns a TariffRepository that uses the given pool.
func NewTariffRepository(pool *pgxpool.Pool) *TariffRepository {
	return &TariffRepository{pool: pool}
}

// GetSettings returns the base rates of a branch.
func (r *TariffRepository) GetSettings(ctx context.Context, branchID string) (*tariff.Settings, error) {
	var s tariff.Settings
	err := r.pool.QueryRow(ctx, getSettingsSQL, branchID).Scan(
		&s.WashFoldPerKg, &s.WashIronPerKg, &s.IronPerPiece, &s.SmallPerPiece,
		&s.HeavyFlat, &s.HeavyPerKg, &s.HeavyThreshold,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tariff.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("getting settings of branch %q: %w", branchID, err)
	}
	return &s, nil
}

// ListSpecialRates returns the active rate overrides of a branch.
func (r *TariffRepository) ListSpecialRates(ctx context.Context, branchID string) ([]tariff.SpecialRate, error) {
	rows, err := r.pool.Query(ctx, listSpecialRatesSQL, branchID)
	if err != nil {
		return nil, fmt.Errorf("listing special rates: %w", err)
	}
	return pgx.CollectRows(rows, scanSpecialRate)
}

// ListCatalogItems returns the active catalog of a branch in display order.
func (r *TariffRepository) ListCatalogItems(ctx context.Context, branchID string) ([]tariff.CatalogItem, error) {
	rows, err := r.pool.Query(ctx, listCatalogItemsSQL, branchID)
	if err != nil {
		return nil, fmt.Errorf("listing catalog items: %w", err)
	}
	return pgx.CollectRows(rows, scanCatalogItem)
}

func scanSpecialRate(row pgx.CollectableRow) (tariff.SpecialRate, error) {
	var (
		sr      tariff.SpecialRate
		service string
	)
	if err := row.Scan(&sr.ItemID, &service, &sr.Rate); err != nil {
		return sr, err
	}
	label, err := tariff.ParseRateLabel(service)
	if err != nil {
		return sr, err
	}
	sr.Service = label
	return sr, nil
}

func scanCatalogItem(row pgx.CollectableRow) (tariff.CatalogItem, error) {
	var (
		it         tariff.CatalogItem
		unit, kind string
	)
	if err := row.Scan(&it.ID, &it.Name, &it.Category, &unit, &kind, &it.DisplayOrder); err != nil {
		return it, err
	}
	var err error
	if it.Unit, err = tariff.ParseUnit(unit); err != nil {
		return it, err
	}
	if it.Kind, err = tariff.ParseKind(kind); err != nil {
		return it, err
	}
	return it, nil
}
