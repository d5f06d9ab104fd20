package main

import (
	"os"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

type seedFile struct {
	Branches []branchSeed `yaml:"branches"`
	Staff    staffSeed    `yaml:"staff"`
}

type branchSeed struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Address  string        `yaml:"address"`
	Phone    string        `yaml:"phone"`
	Settings settingsSeed  `yaml:"settings"`
	Catalog  []catalogSeed `yaml:"catalog"`
	Rates    []rateSeed    `yaml:"special_rates"`
}

type settingsSeed struct {
	WashFoldPerKg  money `yaml:"wash_fold_per_kg"`
	WashIronPerKg  money `yaml:"wash_iron_per_kg"`
	IronPerPiece   money `yaml:"iron_per_piece"`
	SmallPerPiece  money `yaml:"small_per_piece"`
	HeavyFlat      money `yaml:"heavy_flat"`
	HeavyPerKg     money `yaml:"heavy_per_kg"`
	HeavyThreshold money `yaml:"heavy_threshold_kg"`
}

type catalogSeed struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Unit     string `yaml:"unit"`
	Kind     string `yaml:"kind"`
}

type rateSeed struct {
	ItemID  string `yaml:"item_id"`
	Service string `yaml:"service"`
	Rate    money  `yaml:"rate"`
}

type staffSeed struct {
	KeyID    string `yaml:"key_id"`
	Name     string `yaml:"name"`
	StaffID  string `yaml:"staff_id"`
	BranchID string `yaml:"branch_id"`
	Role     string `yaml:"role"`
}

// money reads a YAML scalar as an exact decimal.
type money struct {
	decimal.Decimal
}

func (m *money) UnmarshalYAML(n *yaml.Node) error {
	d, err := decimal.NewFromString(n.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d: %q is not a number", n.Line, n.Value)
	}
	m.Decimal = d
	return nil
}

func readSeed(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, errors.Wrap(err, "parse seed YAML")
	}
	if len(seed.Branches) == 0 {
		return nil, errors.New("seed file has no branches")
	}
	if seed.Staff.KeyID == "" || seed.Staff.StaffID == "" || seed.Staff.BranchID == "" {
		return nil, errors.New("seed staff needs key_id, staff_id and branch_id")
	}
	return &seed, nil
}

func (s settingsSeed) toDomain() tariff.Settings {
	return tariff.Settings{
		WashFoldPerKg:  s.WashFoldPerKg.Decimal,
		WashIronPerKg:  s.WashIronPerKg.Decimal,
		IronPerPiece:   s.IronPerPiece.Decimal,
		SmallPerPiece:  s.SmallPerPiece.Decimal,
		HeavyFlat:      s.HeavyFlat.Decimal,
		HeavyPerKg:     s.HeavyPerKg.Decimal,
		HeavyThreshold: s.HeavyThreshold.Decimal,
	}
}

func (b branchSeed) catalog() ([]tariff.CatalogItem, error) {
	items := make([]tariff.CatalogItem, 0, len(b.Catalog))
	for i, c := range b.Catalog {
		unit, err := tariff.ParseUnit(c.Unit)
		if err != nil {
			return nil, errors.Wrapf(err, "catalog item %s", c.ID)
		}
		kind := tariff.KindStandard
		if c.Kind != "" {
			if kind, err = tariff.ParseKind(c.Kind); err != nil {
				return nil, errors.Wrapf(err, "catalog item %s", c.ID)
			}
		}
		category := c.Category
		if category == "" {
			category = "Others"
		}
		items = append(items, tariff.CatalogItem{
			ID:           c.ID,
			Name:         c.Name,
			Category:     category,
			Unit:         unit,
			Kind:         kind,
			DisplayOrder: i + 1,
		})
	}
	return items, nil
}

func (b branchSeed) rates() ([]tariff.SpecialRate, error) {
	rates := make([]tariff.SpecialRate, 0, len(b.Rates))
	for _, r := range b.Rates {
		label, err := tariff.ParseRateLabel(r.Service)
		if err != nil {
			return nil, errors.Wrapf(err, "special rate %s", r.ItemID)
		}
		if r.Rate.IsNegative() {
			return nil, errors.Errorf("special rate %s/%s is negative", r.ItemID, r.Service)
		}
		rates = append(rates, tariff.SpecialRate{ItemID: r.ItemID, Service: label, Rate: r.Rate.Decimal})
	}
	return rates, nil
}
