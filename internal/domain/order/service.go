package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/laundry-billing/internal/domain/manifest"
	"github.com/xenking/laundry-billing/internal/domain/pricing"
	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

// ManualInput describes a custom, not-in-catalog garment.
type ManualInput struct {
	Name     string
	Category string
	Unit     string
	Rate     decimal.Decimal
}

// ItemInput is one garment line as entered by staff. Either ItemID or Manual
// is set.
type ItemInput struct {
	ItemID   string
	Manual   *ManualInput
	Quantity int
	Weight   decimal.Decimal
	Service  string
}

// QuoteRequest holds the pile and garments to price.
type QuoteRequest struct {
	BulkWeight  decimal.Decimal
	BulkService string
	Items       []ItemInput
}

// Quote is the priced preview of an order.
type Quote struct {
	Lines      []pricing.LineItem
	Subtotal   decimal.Decimal
	PieceCount int
}

// SubmitRequest holds everything needed to create an order. PieceCount
// defaults to the suggested count when nil.
type SubmitRequest struct {
	QuoteRequest

	Phone         string
	Name          string
	Address       string
	DeliveryMode  string
	DueDate       string
	DueTime       string
	Discount      decimal.Decimal
	PaymentStatus string
	PaymentMethod string
	AmountPaid    decimal.Decimal
	PieceCount    *int
	Notes         string
}

// SubmitResult is returned for a stored order.
type SubmitResult struct {
	Created  *Created
	Payload  *Payload
	Expected int
}

// ServiceConfig holds non-dependency settings of the Service.
type ServiceConfig struct {
	// Location is the business time zone used for due dates and daily stats.
	Location       *time.Location
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
	Now            func() time.Time
}

// Service encapsulates order intake, lookup and handover.
type Service struct {
	tariffs tariff.Repository
	orders  Repository
	loc     *time.Location
	now     func() time.Time
	tracer  trace.Tracer

	created  metric.Int64Counter
	handover metric.Int64Counter
	revenue  metric.Float64Counter
}

// NewService creates an order Service.
func NewService(tariffs tariff.Repository, orders Repository, cfg ServiceConfig) (*Service, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}

	meter := cfg.MeterProvider.Meter("laundry-billing/order")
	s := &Service{
		tariffs: tariffs,
		orders:  orders,
		loc:     cfg.Location,
		now:     cfg.Now,
		tracer:  cfg.TracerProvider.Tracer("laundry-billing/order"),
	}

	var err error
	if s.created, err = meter.Int64Counter("orders.created",
		metric.WithDescription("Orders stored"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.created")
	}
	if s.handover, err = meter.Int64Counter("orders.handover",
		metric.WithDescription("Orders handed over to customers"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.handover")
	}
	if s.revenue, err = meter.Float64Counter("orders.billed",
		metric.WithDescription("Final amount billed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.billed")
	}
	return s, nil
}

// Location returns the business time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Snapshot loads the tariff of a branch.
func (s *Service) Snapshot(ctx context.Context, branchID string) (tariff.Snapshot, error) {
	return tariff.Load(ctx, s.tariffs, branchID)
}

// Quote prices a pile and its garments for a branch.
func (s *Service) Quote(ctx context.Context, branchID string, req QuoteRequest) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "order.Quote")
	defer span.End()

	snap, err := s.Snapshot(ctx, branchID)
	if err != nil {
		return nil, errors.Wrap(err, "load tariff")
	}
	return quote(snap, req)
}

func quote(snap tariff.Snapshot, req QuoteRequest) (*Quote, error) {
	pile, m, err := buildManifest(snap.Catalog(), req)
	if err != nil {
		return nil, err
	}
	lines := pricing.ComputeLineItems(snap.Settings, snap.Rates, pile, m)
	return &Quote{
		Lines:      lines,
		Subtotal:   pricing.Subtotal(lines),
		PieceCount: pricing.PieceCount(lines, pile.Weight),
	}, nil
}

func buildManifest(catalog tariff.Catalog, req QuoteRequest) (manifest.BulkPile, *manifest.Manifest, error) {
	var verr ValidationErrors

	pile := manifest.BulkPile{Weight: req.BulkWeight}
	svc, err := manifest.ParseBulkService(req.BulkService)
	if err != nil {
		verr.add("bulk_service", "%s", err.Error())
	}
	pile.Service = svc
	if err := pile.Validate(); err != nil {
		verr.add("bulk_weight", "%s", err.Error())
	}

	m := &manifest.Manifest{}
	for i, in := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		e, err := buildEntry(catalog, in)
		if err == nil {
			err = m.Add(e)
		}
		if err != nil {
			verr.add(field, "%s", err.Error())
		}
	}

	if err := verr.err(); err != nil {
		return manifest.BulkPile{}, nil, err
	}
	return pile, m, nil
}

func buildEntry(catalog tariff.Catalog, in ItemInput) (manifest.Entry, error) {
	if in.Manual != nil {
		unit := tariff.UnitPiece
		if in.Manual.Unit != "" {
			u, err := tariff.ParseUnit(in.Manual.Unit)
			if err != nil {
				return manifest.Entry{}, err
			}
			unit = u
		}
		category := in.Manual.Category
		if category == "" {
			category = "Others"
		}
		return manifest.Entry{
			Manual: &manifest.ManualItem{
				Name:     in.Manual.Name,
				Category: category,
				Unit:     unit,
				Rate:     in.Manual.Rate,
			},
			Quantity: in.Quantity,
			Weight:   in.Weight,
		}, nil
	}

	sel, err := manifest.ParseSelection(in.Service)
	if err != nil {
		return manifest.Entry{}, err
	}
	return manifest.CatalogEntry(catalog, in.ItemID, in.Quantity, in.Weight, sel)
}

// Submit prices the request, assembles the order and stores it. Lines are
// always priced here from the branch tariff.
func (s *Service) Submit(ctx context.Context, branchID, staffID string, req SubmitRequest) (*SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "order.Submit",
		trace.WithAttributes(attribute.String("branch.id", branchID)),
	)
	defer span.End()

	snap, err := s.Snapshot(ctx, branchID)
	if err != nil {
		return nil, errors.Wrap(err, "load tariff")
	}
	q, err := quote(snap, req.QuoteRequest)
	if err != nil {
		return nil, err
	}

	pieces := q.PieceCount
	if req.PieceCount != nil {
		pieces = *req.PieceCount
	}

	payload, err := Assemble(Input{
		BranchID:      branchID,
		StaffID:       staffID,
		Phone:         req.Phone,
		Name:          req.Name,
		Address:       req.Address,
		DeliveryMode:  req.DeliveryMode,
		DueDate:       req.DueDate,
		DueTime:       req.DueTime,
		Discount:      req.Discount,
		PaymentStatus: req.PaymentStatus,
		PaymentMethod: req.PaymentMethod,
		AmountPaid:    req.AmountPaid,
		PieceCount:    pieces,
		BulkWeight:    req.BulkWeight,
		Notes:         req.Notes,
		Lines:         q.Lines,
	}, s.now(), s.loc)
	if err != nil {
		return nil, err
	}

	created, err := s.orders.Create(ctx, payload)
	if err != nil {
		span.RecordError(err)
		return nil, &StorageError{Op: "create order", Err: err}
	}

	attrs := metric.WithAttributes(
		attribute.String("branch.id", branchID),
		attribute.String("payment.status", string(payload.PaymentStatus)),
	)
	s.created.Add(ctx, 1, attrs)
	s.revenue.Add(ctx, payload.Final.InexactFloat64(), attrs)

	return &SubmitResult{
		Created:  created,
		Payload:  payload,
		Expected: q.PieceCount,
	}, nil
}

// Get returns a stored order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return o, nil
}

// Handover settles and delivers an order. method is used only when money is
// still owed; empty means cash.
func (s *Service) Handover(ctx context.Context, id string, method PaymentMethod) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Handover",
		trace.WithAttributes(attribute.String("order.id", id)),
	)
	defer span.End()

	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch, err := ResolveHandover(o, method, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, id, patch); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyDelivered) {
			return nil, err
		}
		span.RecordError(err)
		return nil, &StorageError{Op: "update order status", Err: err}
	}

	collected := o.PaymentStatus != PaymentPaid
	s.handover.Add(ctx, 1, metric.WithAttributes(
		attribute.String("branch.id", o.BranchID),
		attribute.Bool("payment.collected", collected),
	))

	applyPatch(o, patch)
	return o, nil
}

func applyPatch(o *Order, p StatusPatch) {
	o.Status = p.Status
	completed := p.CompletedAt
	o.CompletedAt = &completed
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
	if p.AmountPaid != nil {
		o.AmountPaid = *p.AmountPaid
	}
	if p.PaymentMethod != nil {
		m := *p.PaymentMethod
		o.PaymentMethod = &m
	}
}

// Recent lists the latest orders of a branch, newest first.
func (s *Service) Recent(ctx context.Context, branchID string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	list, err := s.orders.ListRecent(ctx, branchID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list recent orders")
	}
	return list, nil
}

// DailyStats returns dashboard counters for the business day containing day.
func (s *Service) DailyStats(ctx context.Context, branchID string, day time.Time) (*DailyStats, error) {
	local := day.In(s.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, 1)

	stats, err := s.orders.DailyStats(ctx, branchID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "daily stats")
	}
	stats.Day = from.Format(dueDateLayout)
	stats.TotalWeight = stats.TotalWeight.Round(2)
	return stats, nil
}

// Today returns the current time in the business time zone.
func (s *Service) Today() time.Time {
	return s.now().In(s.loc)
}

// FindCustomer looks up a customer of a branch by phone.
func (s *Service) FindCustomer(ctx context.Context, branchID, phone string) (*Customer, error) {
	c, err := s.orders.FindCustomer(ctx, branchID, phone)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, errors.Wrap(err, "find customer")
	}
	return c, nil
}
