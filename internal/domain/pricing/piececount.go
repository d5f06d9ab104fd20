package pricing

import "github.com/shopspring/decimal"

// PieceCount returns the number of garments staff should find in the bag.
// Base charge lines are skipped. Iron Only garments are skipped while a bulk
// pile exists since they were already counted with the pile.
func PieceCount(lines []LineItem, bulkWeight decimal.Decimal) int {
	pile := bulkWeight.IsPositive()
	count := 0
	for _, l := range lines {
		if l.IsBaseCharge {
			continue
		}
		if pile && l.Service == ServiceIronOnly {
			continue
		}
		count += l.Quantity
	}
	return count
}
