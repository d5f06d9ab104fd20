package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-billing/internal/domain/pricing"
)

// Sentinel errors returned by the order service and its repository.
var (
	ErrNotFound         = errors.New("order not found")
	ErrAlreadyDelivered = errors.New("order already delivered")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrInvalidInput     = errors.New("order: invalid input")
)

// DeliveryMode tells how the garments go back to the customer.
type DeliveryMode string

const (
	DeliveryPickup   DeliveryMode = "PICKUP"
	DeliveryDelivery DeliveryMode = "DELIVERY"
)

// Valid reports whether m is a known delivery mode.
func (m DeliveryMode) Valid() bool {
	return m == DeliveryPickup || m == DeliveryDelivery
}

// PaymentStatus is the settlement state of an order.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentPartial PaymentStatus = "PARTIAL"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPaid, PaymentPartial:
		return true
	}
	return false
}

// PaymentMethod is how money was collected.
type PaymentMethod string

const (
	MethodCash  PaymentMethod = "CASH"
	MethodUPI   PaymentMethod = "UPI"
	MethodOther PaymentMethod = "OTHER"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodUPI, MethodOther:
		return true
	}
	return false
}

// ParsePaymentMethod converts a user supplied method.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment method %q", s)
	}
	return m, nil
}

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDelivered Status = "DELIVERED"
)

// Customer is the person the order belongs to. Customers are unique per
// branch and phone.
type Customer struct {
	ID      string `json:"id,omitempty"`
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Payload is an assembled order ready to be persisted.
type Payload struct {
	BranchID      string
	StaffID       string
	Customer      Customer
	DeliveryMode  DeliveryMode
	DueAt         time.Time
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Final         decimal.Decimal
	AmountPaid    decimal.Decimal
	PaymentStatus PaymentStatus
	// PaymentMethod is nil for unpaid orders.
	PaymentMethod *PaymentMethod
	PieceCount    int
	BulkWeight    decimal.Decimal
	Notes         string
	Lines         []pricing.LineItem
}

// Created identifies a freshly stored order.
type Created struct {
	ID             string
	ReadableBillID string
	CreatedAt      time.Time
}

// Order is a stored order.
type Order struct {
	ID             string
	ReadableBillID string
	BranchID       string
	Customer       Customer
	DeliveryMode   DeliveryMode
	DueAt          time.Time
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Final          decimal.Decimal
	AmountPaid     decimal.Decimal
	PaymentStatus  PaymentStatus
	PaymentMethod  *PaymentMethod
	Status         Status
	PieceCount     int
	BulkWeight     decimal.Decimal
	Notes          string
	CreatedAt      time.Time
	CompletedAt    *time.Time
	Lines          []pricing.LineItem
}

// Summary is a row of the recent orders list.
type Summary struct {
	ID             string
	ReadableBillID string
	CustomerName   string
	CustomerPhone  string
	Final          decimal.Decimal
	PaymentStatus  PaymentStatus
	Status         Status
	DueAt          time.Time
	CreatedAt      time.Time
}

// DailyStats are the counters shown on the branch dashboard.
type DailyStats struct {
	Day         string
	Created     int
	TotalWeight decimal.Decimal
	Cleared     int
	DueToday    int
}

// StatusPatch is the update applied on handover. Nil payment fields are left
// untouched.
type StatusPatch struct {
	Status        Status
	PaymentStatus *PaymentStatus
	AmountPaid    *decimal.Decimal
	PaymentMethod *PaymentMethod
	CompletedAt   time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores the customer, the order header and its lines atomically.
	Create(ctx context.Context, p *Payload) (*Created, error)
	// Get returns ErrNotFound when no order has the id.
	Get(ctx context.Context, id string) (*Order, error)
	// UpdateStatus returns ErrNotFound or ErrAlreadyDelivered when the
	// order cannot transition.
	UpdateStatus(ctx context.Context, id string, patch StatusPatch) error
	ListRecent(ctx context.Context, branchID string, limit int) ([]Summary, error)
	// DailyStats counts activity in [from, to).
	DailyStats(ctx context.Context, branchID string, from, to time.Time) (*DailyStats, error)
	// FindCustomer returns ErrCustomerNotFound when the phone is unknown.
	FindCustomer(ctx context.Context, branchID, phone string) (*Customer, error)
}
