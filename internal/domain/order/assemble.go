package order

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-billing/internal/domain/pricing"
	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

const (
	minPhoneLen = 10
	minNameLen  = 2

	// maxPieceCount allows a full manifest of maximum quantity lines.
	maxPieceCount = 1_000_000

	dueDateLayout = "2006-01-02"
	dueTimeLayout = "15:04"
)

// Input is the raw intake form plus the priced lines.
type Input struct {
	BranchID      string
	StaffID       string
	Phone         string
	Name          string
	Address       string
	DeliveryMode  string
	DueDate       string
	DueTime       string
	Discount      decimal.Decimal
	PaymentStatus string
	PaymentMethod string
	// AmountPaid is only read for partial payments.
	AmountPaid decimal.Decimal
	PieceCount int
	BulkWeight decimal.Decimal
	Notes      string
	Lines      []pricing.LineItem
}

// Assemble validates in and computes the order totals. Every invalid field is
// reported at once as ValidationErrors; nothing is persisted.
func Assemble(in Input, now time.Time, loc *time.Location) (*Payload, error) {
	if loc == nil {
		loc = time.UTC
	}
	var verr ValidationErrors

	phone := strings.TrimSpace(in.Phone)
	name := strings.TrimSpace(in.Name)
	if utf8.RuneCountInString(phone) < minPhoneLen {
		verr.add("phone", "must be at least %d characters", minPhoneLen)
	}
	if utf8.RuneCountInString(name) < minNameLen {
		verr.add("name", "must be at least %d characters", minNameLen)
	}

	mode := DeliveryMode(in.DeliveryMode)
	if in.DeliveryMode == "" {
		mode = DeliveryPickup
	}
	if !mode.Valid() {
		verr.add("delivery_mode", "unknown delivery mode %q", in.DeliveryMode)
	}

	var dueAt time.Time
	switch {
	case in.DueDate == "":
		verr.add("due_date", "required")
	case in.DueTime == "":
		verr.add("due_time", "required")
	default:
		t, err := time.ParseInLocation(dueDateLayout+" "+dueTimeLayout, in.DueDate+" "+in.DueTime, loc)
		if err != nil {
			verr.add("due_date", "invalid due date or time")
		} else if !t.After(now) {
			verr.add("due_date", "must be in the future")
		} else {
			dueAt = t
		}
	}

	// Out of range amounts are replaced by zero below so that no arithmetic
	// runs on them.
	discount := in.Discount
	if !tariff.Bounded(discount, tariff.MaxAmount, tariff.MoneyPlaces) {
		verr.add("discount", "must be between 0 and %s with at most %d decimals", tariff.MaxAmount, tariff.MoneyPlaces)
		discount = decimal.Zero
	}
	if in.PieceCount <= 0 || in.PieceCount > maxPieceCount {
		verr.add("piece_count", "must be between 1 and %d", maxPieceCount)
	}
	if len(in.Lines) == 0 {
		verr.add("items", "at least one item required")
	}
	if !tariff.Bounded(in.BulkWeight, tariff.MaxWeight, tariff.WeightPlaces) {
		verr.add("bulk_weight", "must be between 0 and %s kg with at most %d decimals", tariff.MaxWeight, tariff.WeightPlaces)
	}

	subtotal := pricing.Subtotal(in.Lines)
	final := subtotal.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	status := PaymentStatus(in.PaymentStatus)
	if in.PaymentStatus == "" {
		status = PaymentUnpaid
	}
	var (
		method *PaymentMethod
		paid   = decimal.Zero
	)
	switch status {
	case PaymentUnpaid:
		// Method is dropped for unpaid orders.
	case PaymentPaid, PaymentPartial:
		m := PaymentMethod(in.PaymentMethod)
		switch {
		case in.PaymentMethod == "":
			verr.add("payment_method", "required when payment status is %s", status)
		case !m.Valid():
			verr.add("payment_method", "unknown payment method %q", in.PaymentMethod)
		default:
			method = &m
		}
		if status == PaymentPaid {
			paid = final
		} else {
			paid = in.AmountPaid
			if !tariff.Bounded(paid, tariff.MaxAmount, tariff.MoneyPlaces) || !paid.IsPositive() || !paid.LessThan(final) {
				verr.add("amount_paid", "partial payment must be between 0 and %s", final.StringFixed(0))
			}
		}
	default:
		verr.add("payment_status", "unknown payment status %q", in.PaymentStatus)
	}

	if err := verr.err(); err != nil {
		return nil, err
	}

	lines := make([]pricing.LineItem, len(in.Lines))
	copy(lines, in.Lines)

	return &Payload{
		BranchID: in.BranchID,
		StaffID:  in.StaffID,
		Customer: Customer{
			Phone:   phone,
			Name:    name,
			Address: strings.TrimSpace(in.Address),
		},
		DeliveryMode:  mode,
		DueAt:         dueAt,
		Subtotal:      subtotal,
		Discount:      in.Discount,
		Final:         final,
		AmountPaid:    paid,
		PaymentStatus: status,
		PaymentMethod: method,
		PieceCount:    in.PieceCount,
		BulkWeight:    in.BulkWeight,
		Notes:         strings.TrimSpace(in.Notes),
		Lines:         lines,
	}, nil
}
