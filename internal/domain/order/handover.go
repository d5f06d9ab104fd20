package order

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// ResolveHandover decides the update applied when staff hand an order back
// to the customer. Paid orders are only marked delivered; anything else is
// settled in full with method (cash when empty) and marked delivered.
func ResolveHandover(o *Order, method PaymentMethod, now time.Time) (StatusPatch, error) {
	if o.Status == StatusDelivered {
		return StatusPatch{}, ErrAlreadyDelivered
	}

	switch o.PaymentStatus {
	case PaymentPaid:
		return StatusPatch{
			Status:      StatusDelivered,
			CompletedAt: now,
		}, nil
	case PaymentUnpaid, PaymentPartial:
		if method == "" {
			method = MethodCash
		}
		if !method.Valid() {
			return StatusPatch{}, ValidationErrors{{Field: "payment_method", Message: fmt.Sprintf("unknown payment method %q", method)}}
		}
		paid := PaymentPaid
		amount := o.Final
		return StatusPatch{
			Status:        StatusDelivered,
			PaymentStatus: &paid,
			AmountPaid:    &amount,
			PaymentMethod: &method,
			CompletedAt:   now,
		}, nil
	default:
		return StatusPatch{}, errors.Errorf("order %s has unknown payment status %q", o.ID, o.PaymentStatus)
	}
}
