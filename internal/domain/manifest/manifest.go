// Package manifest models the garments staff collect during intake before
// they are priced.
package manifest

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

// Sentinel errors for manifest validation.
var (
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 10000")
	ErrInvalidWeight   = errors.New("weight must be between 0 and 1000 kg with at most 3 decimals")
	ErrInvalidRate     = errors.New("rate must be between 0 and 1000000 with at most 2 decimals")
	ErrManualName      = errors.New("custom item name required")
	ErrNoItem          = errors.New("entry must reference a catalog item or a custom item")
	ErrOutOfRange      = errors.New("entry index out of range")
)

// ItemNotFoundError indicates an entry references an unknown catalog item.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("catalog item %s not found", e.ItemID)
}

// Selection is the service staff chose for a catalog item.
type Selection string

const (
	// SelectStandard makes the garment a candidate for bulk inclusion.
	SelectStandard Selection = "Standard"
	SelectIronOnly Selection = "Iron Only"
	SelectDryClean Selection = "Dry Clean"
)

// Valid reports whether s is a known selection.
func (s Selection) Valid() bool {
	switch s {
	case SelectStandard, SelectIronOnly, SelectDryClean:
		return true
	}
	return false
}

// ParseSelection converts a user supplied selection. Empty means Standard.
func ParseSelection(s string) (Selection, error) {
	if s == "" {
		return SelectStandard, nil
	}
	sel := Selection(s)
	if !sel.Valid() {
		return "", fmt.Errorf("unknown service %q", s)
	}
	return sel, nil
}

// BulkService is the wash applied to a bulk pile.
type BulkService string

const (
	BulkWashFold BulkService = "Wash & Fold"
	BulkWashIron BulkService = "Wash & Iron"
)

// Valid reports whether s is a known bulk service.
func (s BulkService) Valid() bool {
	return s == BulkWashFold || s == BulkWashIron
}

// ParseBulkService converts a user supplied bulk service. Empty means
// Wash & Fold.
func ParseBulkService(s string) (BulkService, error) {
	if s == "" {
		return BulkWashFold, nil
	}
	bs := BulkService(s)
	if !bs.Valid() {
		return "", fmt.Errorf("unknown bulk service %q", s)
	}
	return bs, nil
}

// BulkPile is the weighed heap of plain garments. Zero weight means there is
// no pile.
type BulkPile struct {
	Weight  decimal.Decimal
	Service BulkService
}

// Active reports whether the pile exists.
func (p BulkPile) Active() bool {
	return p.Weight.IsPositive()
}

// Validate checks the pile weight and service.
func (p BulkPile) Validate() error {
	if !tariff.Bounded(p.Weight, tariff.MaxWeight, tariff.WeightPlaces) {
		return ErrInvalidWeight
	}
	if p.Active() && !p.Service.Valid() {
		return fmt.Errorf("unknown bulk service %q", p.Service)
	}
	return nil
}

// ManualItem is a garment that is not in the catalog, priced by hand.
type ManualItem struct {
	Name     string
	Category string
	Unit     tariff.Unit
	Rate     decimal.Decimal
}

// Entry is one configured garment line. Exactly one of Item and Manual is set.
type Entry struct {
	Item      *tariff.CatalogItem
	Manual    *ManualItem
	Quantity  int
	Weight    decimal.Decimal
	Selection Selection
}

// IsManual reports whether the entry is a custom, not-in-catalog item.
func (e Entry) IsManual() bool {
	return e.Manual != nil
}

// Name returns the display name of the garment.
func (e Entry) Name() string {
	if e.Manual != nil {
		return e.Manual.Name
	}
	if e.Item != nil {
		return e.Item.Name
	}
	return ""
}

// Unit returns the pricing unit of the garment.
func (e Entry) Unit() tariff.Unit {
	if e.Manual != nil {
		return e.Manual.Unit
	}
	if e.Item != nil {
		return e.Item.Unit
	}
	return tariff.UnitPiece
}

// Validate checks a single entry.
func (e Entry) Validate() error {
	switch {
	case e.Item == nil && e.Manual == nil, e.Item != nil && e.Manual != nil:
		return ErrNoItem
	case e.Quantity <= 0, e.Quantity > tariff.MaxQuantity:
		return ErrInvalidQuantity
	case !tariff.Bounded(e.Weight, tariff.MaxWeight, tariff.WeightPlaces):
		return ErrInvalidWeight
	}
	if e.Manual != nil {
		if e.Manual.Name == "" {
			return ErrManualName
		}
		if !tariff.Bounded(e.Manual.Rate, tariff.MaxRate, tariff.MoneyPlaces) {
			return ErrInvalidRate
		}
		if !e.Manual.Unit.Valid() {
			return fmt.Errorf("unknown pricing unit %q", e.Manual.Unit)
		}
		return nil
	}
	if !e.Selection.Valid() {
		return fmt.Errorf("unknown service %q", e.Selection)
	}
	return nil
}

// CatalogEntry builds an entry for a catalog item.
func CatalogEntry(c tariff.Catalog, itemID string, quantity int, weight decimal.Decimal, sel Selection) (Entry, error) {
	item, ok := c[itemID]
	if !ok {
		return Entry{}, &ItemNotFoundError{ItemID: itemID}
	}
	e := Entry{
		Item:      &item,
		Quantity:  quantity,
		Weight:    weight,
		Selection: sel,
	}
	return e, e.Validate()
}

// Manifest is the ordered list of entries of one order in progress.
type Manifest struct {
	entries []Entry
}

// New returns a manifest holding entries, validating each one.
func New(entries ...Entry) (*Manifest, error) {
	m := &Manifest{}
	for i, e := range entries {
		if err := m.Add(e); err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
	}
	return m, nil
}

// Add appends a validated entry.
func (m *Manifest) Add(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.entries = append(m.entries, e)
	return nil
}

// Remove deletes the entry at index i, keeping the order of the others.
func (m *Manifest) Remove(i int) error {
	if i < 0 || i >= len(m.entries) {
		return ErrOutOfRange
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	return nil
}

// Entries returns the entries in insertion order.
func (m *Manifest) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}
