// Package tariff holds the per-branch pricing configuration: base rates,
// per-item special rate overrides and the garment catalog.
package tariff

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrSettingsNotFound is returned by a Repository when a branch has no
// settings row. Load degrades to DefaultSettings in that case.
var ErrSettingsNotFound = errors.New("tariff settings not found")

// Unit is the pricing unit of a catalog item.
type Unit string

const (
	UnitPiece  Unit = "PIECE"
	UnitWeight Unit = "WEIGHT"
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == UnitPiece || u == UnitWeight
}

// ParseUnit converts a stored or user supplied unit. The legacy "KG" label is
// accepted as UnitWeight.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "PIECE":
		return UnitPiece, nil
	case "WEIGHT", "KG":
		return UnitWeight, nil
	default:
		return "", fmt.Errorf("unknown pricing unit %q", s)
	}
}

// Kind tells whether a catalog item may be covered by a bulk pile.
type Kind string

const (
	// KindStandard is an ordinary garment, eligible for bulk inclusion.
	KindStandard Kind = "STANDARD"
	// KindSpecial is never bulk-included (footwear, bags, soft toys).
	KindSpecial Kind = "SPECIAL"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindStandard || k == KindSpecial
}

// ParseKind converts a stored kind label.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown item kind %q", s)
	}
	return k, nil
}

// Settings are the base rates of a branch.
type Settings struct {
	WashFoldPerKg  decimal.Decimal `json:"wash_fold_per_kg"`
	WashIronPerKg  decimal.Decimal `json:"wash_iron_per_kg"`
	IronPerPiece   decimal.Decimal `json:"iron_per_piece"`
	SmallPerPiece  decimal.Decimal `json:"small_per_piece"`
	HeavyFlat      decimal.Decimal `json:"heavy_flat"`
	HeavyPerKg     decimal.Decimal `json:"heavy_per_kg"`
	HeavyThreshold decimal.Decimal `json:"heavy_threshold_kg"`
}

// FallbackRate is charged for special-wash and dry-clean lines that have no
// override in the special rate table.
var FallbackRate = decimal.NewFromInt(50)

// DefaultSettings returns the rates used when a branch has none configured.
func DefaultSettings() Settings {
	return Settings{
		WashFoldPerKg:  decimal.NewFromInt(45),
		WashIronPerKg:  decimal.NewFromInt(60),
		IronPerPiece:   decimal.NewFromInt(8),
		SmallPerPiece:  decimal.NewFromInt(15),
		HeavyFlat:      decimal.NewFromInt(100),
		HeavyPerKg:     decimal.NewFromInt(80),
		HeavyThreshold: decimal.RequireFromString("1.5"),
	}
}

// WithDefaults replaces zero-valued rates by their defaults.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	pick := func(v, def decimal.Decimal) decimal.Decimal {
		if v.IsZero() {
			return def
		}
		return v
	}
	return Settings{
		WashFoldPerKg:  pick(s.WashFoldPerKg, d.WashFoldPerKg),
		WashIronPerKg:  pick(s.WashIronPerKg, d.WashIronPerKg),
		IronPerPiece:   pick(s.IronPerPiece, d.IronPerPiece),
		SmallPerPiece:  pick(s.SmallPerPiece, d.SmallPerPiece),
		HeavyFlat:      pick(s.HeavyFlat, d.HeavyFlat),
		HeavyPerKg:     pick(s.HeavyPerKg, d.HeavyPerKg),
		HeavyThreshold: pick(s.HeavyThreshold, d.HeavyThreshold),
	}
}

// Validate rejects negative rates.
func (s Settings) Validate() error {
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"wash_fold_per_kg", s.WashFoldPerKg},
		{"wash_iron_per_kg", s.WashIronPerKg},
		{"iron_per_piece", s.IronPerPiece},
		{"small_per_piece", s.SmallPerPiece},
		{"heavy_flat", s.HeavyFlat},
		{"heavy_per_kg", s.HeavyPerKg},
		{"heavy_threshold_kg", s.HeavyThreshold},
	} {
		if f.v.IsNegative() {
			return fmt.Errorf("%s must not be negative", f.name)
		}
	}
	return nil
}

// CatalogItem is a garment staff can pick during intake.
type CatalogItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Unit         Unit   `json:"unit"`
	Kind         Kind   `json:"kind"`
	DisplayOrder int    `json:"display_order"`
}

// Catalog indexes catalog items by id.
type Catalog map[string]CatalogItem

// NewCatalog builds a Catalog from a list of items.
func NewCatalog(items []CatalogItem) Catalog {
	c := make(Catalog, len(items))
	for _, it := range items {
		c[it.ID] = it
	}
	return c
}

// Snapshot is everything pricing needs for one branch, loaded once per
// request and never mutated afterwards.
type Snapshot struct {
	BranchID string
	Settings Settings
	Rates    SpecialRates
	Items    []CatalogItem
}

// Catalog returns the snapshot items indexed by id.
func (s Snapshot) Catalog() Catalog {
	return NewCatalog(s.Items)
}

// Repository reads tariff configuration from storage.
type Repository interface {
	// GetSettings returns ErrSettingsNotFound when the branch has no row.
	GetSettings(ctx context.Context, branchID string) (*Settings, error)
	ListSpecialRates(ctx context.Context, branchID string) ([]SpecialRate, error)
	ListCatalogItems(ctx context.Context, branchID string) ([]CatalogItem, error)
}

// Load reads a branch snapshot from repo. Missing settings fall back to
// DefaultSettings, zero rates to their individual defaults.
func Load(ctx context.Context, repo Repository, branchID string) (Snapshot, error) {
	settings := DefaultSettings()
	s, err := repo.GetSettings(ctx, branchID)
	switch {
	case err == nil:
		settings = s.WithDefaults()
	case errors.Is(err, ErrSettingsNotFound):
	default:
		return Snapshot{}, errors.Wrap(err, "get settings")
	}

	rates, err := repo.ListSpecialRates(ctx, branchID)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "list special rates")
	}
	items, err := repo.ListCatalogItems(ctx, branchID)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "list catalog items")
	}

	return Snapshot{
		BranchID: branchID,
		Settings: settings,
		Rates:    NewSpecialRates(rates),
		Items:    items,
	}, nil
}
