package tariff

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateLabel is the service label a special rate is keyed by.
type RateLabel string

const (
	RateStandard RateLabel = "Standard"
	RateWash     RateLabel = "Wash"
	RateIronOnly RateLabel = "Iron Only"
	RateDryClean RateLabel = "Dry Clean"
)

// Valid reports whether l is a known rate label.
func (l RateLabel) Valid() bool {
	switch l {
	case RateStandard, RateWash, RateIronOnly, RateDryClean:
		return true
	}
	return false
}

// ParseRateLabel converts a stored service label.
func ParseRateLabel(s string) (RateLabel, error) {
	l := RateLabel(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown rate service %q", s)
	}
	return l, nil
}

// SpecialRate overrides the price of one item for one service.
type SpecialRate struct {
	ItemID  string          `json:"item_id"`
	Service RateLabel       `json:"service"`
	Rate    decimal.Decimal `json:"rate"`
}

type rateKey struct {
	item    string
	service RateLabel
}

// SpecialRates is an immutable lookup table of overrides.
type SpecialRates struct {
	byKey map[rateKey]decimal.Decimal
	list  []SpecialRate
}

// NewSpecialRates indexes rates. A later duplicate wins.
func NewSpecialRates(rates []SpecialRate) SpecialRates {
	sr := SpecialRates{
		byKey: make(map[rateKey]decimal.Decimal, len(rates)),
		list:  make([]SpecialRate, len(rates)),
	}
	copy(sr.list, rates)
	for _, r := range rates {
		sr.byKey[rateKey{item: r.ItemID, service: r.Service}] = r.Rate
	}
	return sr
}

// Lookup returns the override for (item, service). A zero override counts as
// absent.
func (sr SpecialRates) Lookup(itemID string, service RateLabel) (decimal.Decimal, bool) {
	v, ok := sr.byKey[rateKey{item: itemID, service: service}]
	if !ok || v.IsZero() {
		return decimal.Zero, false
	}
	return v, true
}

// List returns a copy of the rates in load order.
func (sr SpecialRates) List() []SpecialRate {
	out := make([]SpecialRate, len(sr.list))
	copy(out, sr.list)
	return out
}

// Len returns the number of rates.
func (sr SpecialRates) Len() int {
	return len(sr.list)
}
