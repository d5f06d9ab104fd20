package tariff

import "github.com/shopspring/decimal"

// Input limits. They keep every amount inside the NUMERIC columns that
// store it and bound the cost of decimal arithmetic on user input.
const (
	MaxQuantity  = 10_000
	WeightPlaces = 3
	MoneyPlaces  = 2
	maxExponent  = 12
	minExponent  = -30
	maxIntDigits = 12
)

var (
	// MaxWeight is the heaviest pile or garment accepted, in kg.
	MaxWeight = decimal.NewFromInt(1000)
	// MaxRate caps a single unit rate.
	MaxRate = decimal.NewFromInt(1_000_000)
	// MaxAmount caps order level amounts such as discounts and payments.
	MaxAmount = decimal.NewFromInt(1_000_000_000)
)

// Bounded reports whether d lies in [0, upper] with at most places
// fractional digits. The exponent is checked before any comparison, since
// comparing decimals with far apart exponents rescales the coefficient.
func Bounded(d, upper decimal.Decimal, places int32) bool {
	if d.IsZero() {
		return true
	}
	if d.IsNegative() {
		return false
	}
	exp := int64(d.Exponent())
	if exp > maxExponent || exp < minExponent {
		return false
	}
	if d.NumDigits()+int(exp) > maxIntDigits {
		return false
	}
	if d.GreaterThan(upper) {
		return false
	}
	return d.Round(places).Equal(d)
}
