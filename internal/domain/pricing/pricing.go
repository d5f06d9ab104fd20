// Package pricing turns a manifest into priced line items and derives the
// expected garment count used for intake verification.
//
// Everything here is a pure function of its arguments.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-billing/internal/domain/manifest"
	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

// ServiceType is the resolved service label persisted on a line.
type ServiceType string

const (
	ServiceWashFold    ServiceType = "Wash & Fold"
	ServiceWashIron    ServiceType = "Wash & Iron"
	ServiceSpecialWash ServiceType = "Special Wash"
	ServicePieceWash   ServiceType = "Piece Wash"
	ServiceIronOnly    ServiceType = "Iron Only"
	ServiceDryClean    ServiceType = "Dry Clean"
	ServiceHeavyWash   ServiceType = "Heavy Wash"
	ServiceCustom      ServiceType = "Custom"
)

// Valid reports whether s is a known service type.
func (s ServiceType) Valid() bool {
	switch s {
	case ServiceWashFold, ServiceWashIron, ServiceSpecialWash, ServicePieceWash,
		ServiceIronOnly, ServiceDryClean, ServiceHeavyWash, ServiceCustom:
		return true
	}
	return false
}

// ParseServiceType converts a stored service label.
func ParseServiceType(s string) (ServiceType, error) {
	st := ServiceType(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown service type %q", s)
	}
	return st, nil
}

func bulkServiceType(s manifest.BulkService) ServiceType {
	if s == manifest.BulkWashIron {
		return ServiceWashIron
	}
	return ServiceWashFold
}

// LineItem is a priced line of an order. ItemID is nil for the bulk base
// charge and for custom items.
type LineItem struct {
	ItemID       *string         `json:"item_id"`
	Name         string          `json:"item_name"`
	Service      ServiceType     `json:"service_type"`
	Quantity     int             `json:"quantity"`
	Weight       decimal.Decimal `json:"weight"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	IsBaseCharge bool            `json:"is_base_charge"`
}

// ComputeLineItems prices the pile and every manifest entry. The base charge,
// when present, comes first; the rest follow manifest order.
func ComputeLineItems(
	settings tariff.Settings,
	rates tariff.SpecialRates,
	pile manifest.BulkPile,
	m *manifest.Manifest,
) []LineItem {
	entries := m.Entries()
	lines := make([]LineItem, 0, len(entries)+1)

	if pile.Active() {
		rate := settings.WashFoldPerKg
		if pile.Service == manifest.BulkWashIron {
			rate = settings.WashIronPerKg
		}
		base := pile.Weight.Mul(rate).Round(0)
		lines = append(lines, LineItem{
			Name:         fmt.Sprintf("Bulk Pile (%s)", pile.Service),
			Service:      bulkServiceType(pile.Service),
			Quantity:     1,
			Weight:       pile.Weight,
			UnitPrice:    base,
			TotalPrice:   base,
			IsBaseCharge: true,
		})
	}

	for _, e := range entries {
		lines = append(lines, priceEntry(settings, rates, pile, e))
	}
	return lines
}

func priceEntry(settings tariff.Settings, rates tariff.SpecialRates, pile manifest.BulkPile, e manifest.Entry) LineItem {
	var (
		price   decimal.Decimal
		service ServiceType
		itemID  *string
	)

	if e.IsManual() {
		price = e.Manual.Rate
		service = ServiceCustom
	} else {
		id := e.Item.ID
		itemID = &id

		switch e.Selection {
		case manifest.SelectStandard:
			switch {
			case e.Item.Kind == tariff.KindSpecial:
				price = firstRate(rates, id, tariff.FallbackRate, tariff.RateStandard, tariff.RateWash)
				service = ServiceSpecialWash
			case !pile.Active() && e.Item.Unit == tariff.UnitPiece:
				price = settings.SmallPerPiece
				service = ServicePieceWash
			default:
				price = decimal.Zero
				service = bulkServiceType(pile.Service)
			}
		case manifest.SelectIronOnly:
			price = firstRate(rates, id, settings.IronPerPiece, tariff.RateIronOnly)
			service = ServiceIronOnly
		case manifest.SelectDryClean:
			price = firstRate(rates, id, tariff.FallbackRate, tariff.RateDryClean)
			service = ServiceDryClean
		}

		// Weight-priced items ignore the selection entirely.
		if e.Item.Unit == tariff.UnitWeight {
			if e.Weight.LessThanOrEqual(settings.HeavyThreshold) {
				price = settings.HeavyFlat
			} else {
				price = e.Weight.Mul(settings.HeavyPerKg).Round(0)
			}
			service = ServiceHeavyWash
		}
	}

	return LineItem{
		ItemID:     itemID,
		Name:       e.Name(),
		Service:    service,
		Quantity:   e.Quantity,
		Weight:     e.Weight,
		UnitPrice:  price,
		TotalPrice: lineTotal(price, e),
	}
}

// lineTotal multiplies by weight for weight-priced entries (1 when no weight
// was entered) and by quantity otherwise.
func lineTotal(price decimal.Decimal, e manifest.Entry) decimal.Decimal {
	if e.Unit() == tariff.UnitWeight {
		w := e.Weight
		if w.IsZero() {
			w = decimal.NewFromInt(1)
		}
		return price.Mul(w).Round(0)
	}
	return price.Mul(decimal.NewFromInt(int64(e.Quantity))).Round(0)
}

func firstRate(rates tariff.SpecialRates, itemID string, fallback decimal.Decimal, labels ...tariff.RateLabel) decimal.Decimal {
	for _, l := range labels {
		if v, ok := rates.Lookup(itemID, l); ok {
			return v
		}
	}
	return fallback
}

// Subtotal sums the line totals.
func Subtotal(lines []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.TotalPrice)
	}
	return sum
}
