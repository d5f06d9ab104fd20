package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-billing/internal/domain/order"
	"github.com/xenking/laundry-billing/internal/domain/pricing"
)

const (
	nextBillSeqSQL = `UPDATE branches SET bill_seq = bill_seq + 1 WHERE id = $1 RETURNING bill_seq`

	upsertCustomerSQL = `INSERT INTO customers (id, branch_id, phone, name, address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (branch_id, phone) DO UPDATE SET
			name = EXCLUDED.name,
			address = CASE WHEN EXCLUDED.address <> '' THEN EXCLUDED.address ELSE customers.address END
		RETURNING id`

	insertOrderSQL = `INSERT INTO orders (
			id, readable_bill_id, branch_id, customer_id, staff_id, delivery_mode, due_at,
			subtotal, discount, final_amount, amount_paid, payment_status, payment_method,
			total_pieces, bulk_weight, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at`

	getOrderSQL = `SELECT o.id, o.readable_bill_id, o.branch_id,
			c.id, c.phone, c.name, c.address,
			o.delivery_mode, o.due_at, o.subtotal, o.discount, o.final_amount, o.amount_paid,
			o.payment_status, o.payment_method, o.status, o.total_pieces, o.bulk_weight, o.notes,
			o.created_at, o.completed_at
		FROM orders o JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1`

	listOrderItemsSQL = `SELECT item_id, item_name, service_type, quantity, weight, unit_price, total_price, is_base_charge
		FROM order_items WHERE order_id = $1 ORDER BY position`

	updateStatusSQL = `UPDATE orders SET
			status = $2,
			completed_at = $3,
			payment_status = COALESCE($4, payment_status),
			amount_paid = COALESCE($5, amount_paid),
			payment_method = COALESCE($6, payment_method)
		WHERE id = $1 AND status <> 'DELIVERED'`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	listRecentSQL = `SELECT o.id, o.readable_bill_id, c.name, c.phone, o.final_amount,
			o.payment_status, o.status, o.due_at, o.created_at
		FROM orders o JOIN customers c ON c.id = o.customer_id
		WHERE o.branch_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2`

	dailyStatsSQL = `SELECT
			(SELECT count(*) FROM orders
				WHERE branch_id = $1 AND created_at >= $2 AND created_at < $3),
			(SELECT COALESCE(sum(i.weight), 0) FROM order_items i JOIN orders o ON o.id = i.order_id
				WHERE o.branch_id = $1 AND o.created_at >= $2 AND o.created_at < $3),
			(SELECT count(*) FROM orders
				WHERE branch_id = $1 AND completed_at >= $2 AND completed_at < $3),
			(SELECT count(*) FROM orders
				WHERE branch_id = $1 AND due_at >= $2 AND due_at < $3 AND status <> 'DELIVERED')`

	findCustomerSQL = `SELECT id, phone, name, address FROM customers WHERE branch_id = $1 AND phone = $2`
)

var orderItemColumns = []string{
	"order_id", "position", "item_id", "item_name", "service_type",
	"quantity", "weight", "unit_price", "total_price", "is_base_charge",
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create stores the customer, the order and its lines in one transaction and
// assigns the next readable bill id of the branch.
func (r *OrderRepository) Create(ctx context.Context, p *order.Payload) (*order.Created, error) {
	created := &order.Created{ID: uuid.New().String()}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var seq int64
		if err := tx.QueryRow(ctx, nextBillSeqSQL, p.BranchID).Scan(&seq); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("branch %q not found", p.BranchID)
			}
			return fmt.Errorf("allocating bill number: %w", err)
		}
		created.ReadableBillID = fmt.Sprintf("B-%06d", seq)

		var customerID string
		if err := tx.QueryRow(ctx, upsertCustomerSQL,
			uuid.New().String(), p.BranchID, p.Customer.Phone, p.Customer.Name, p.Customer.Address,
		).Scan(&customerID); err != nil {
			return fmt.Errorf("saving customer: %w", err)
		}

		var method *string
		if p.PaymentMethod != nil {
			m := string(*p.PaymentMethod)
			method = &m
		}
		if err := tx.QueryRow(ctx, insertOrderSQL,
			created.ID, created.ReadableBillID, p.BranchID, customerID, p.StaffID,
			string(p.DeliveryMode), p.DueAt,
			p.Subtotal, p.Discount, p.Final, p.AmountPaid,
			string(p.PaymentStatus), method,
			p.PieceCount, p.BulkWeight, p.Notes,
		).Scan(&created.CreatedAt); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		rows := make([][]any, len(p.Lines))
		for i, l := range p.Lines {
			rows[i] = []any{
				created.ID, i, l.ItemID, l.Name, string(l.Service),
				l.Quantity, l.Weight, l.UnitPrice, l.TotalPrice, l.IsBaseCharge,
			}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"order_items"}, orderItemColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("inserting order items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns an order with its lines.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, order.ErrNotFound
	}

	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", id, err)
	}
	o.Lines, err = pgx.CollectRows(rows, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", id, err)
	}
	return o, nil
}

// UpdateStatus applies a handover patch unless the order is already
// delivered.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, patch order.StatusPatch) error {
	if _, err := uuid.Parse(id); err != nil {
		return order.ErrNotFound
	}

	var status, method *string
	if patch.PaymentStatus != nil {
		s := string(*patch.PaymentStatus)
		status = &s
	}
	if patch.PaymentMethod != nil {
		m := string(*patch.PaymentMethod)
		method = &m
	}

	tag, err := r.pool.Exec(ctx, updateStatusSQL,
		id, string(patch.Status), patch.CompletedAt, status, patch.AmountPaid, method,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrAlreadyDelivered
}

// ListRecent returns the latest orders of a branch.
func (r *OrderRepository) ListRecent(ctx context.Context, branchID string, limit int) ([]order.Summary, error) {
	rows, err := r.pool.Query(ctx, listRecentSQL, branchID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Summary, error) {
		var (
			s              order.Summary
			payment, state string
		)
		err := row.Scan(&s.ID, &s.ReadableBillID, &s.CustomerName, &s.CustomerPhone, &s.Final,
			&payment, &state, &s.DueAt, &s.CreatedAt)
		s.PaymentStatus = order.PaymentStatus(payment)
		s.Status = order.Status(state)
		return s, err
	})
}

// DailyStats counts orders created, cleared and due in [from, to).
func (r *OrderRepository) DailyStats(ctx context.Context, branchID string, from, to time.Time) (*order.DailyStats, error) {
	var (
		st                         order.DailyStats
		created, cleared, dueToday int64
		weight                     decimal.Decimal
	)
	if err := r.pool.QueryRow(ctx, dailyStatsSQL, branchID, from, to).Scan(
		&created, &weight, &cleared, &dueToday,
	); err != nil {
		return nil, fmt.Errorf("computing daily stats: %w", err)
	}
	st.Created = int(created)
	st.TotalWeight = weight
	st.Cleared = int(cleared)
	st.DueToday = int(dueToday)
	return &st, nil
}

// FindCustomer looks up a customer by phone.
func (r *OrderRepository) FindCustomer(ctx context.Context, branchID, phone string) (*order.Customer, error) {
	var c order.Customer
	err := r.pool.QueryRow(ctx, findCustomerSQL, branchID, phone).Scan(&c.ID, &c.Phone, &c.Name, &c.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("finding customer: %w", err)
	}
	return &c, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o                     order.Order
		mode, payment, status string
		method                *string
	)
	err := row.Scan(
		&o.ID, &o.ReadableBillID, &o.BranchID,
		&o.Customer.ID, &o.Customer.Phone, &o.Customer.Name, &o.Customer.Address,
		&mode, &o.DueAt, &o.Subtotal, &o.Discount, &o.Final, &o.AmountPaid,
		&payment, &method, &status, &o.PieceCount, &o.BulkWeight, &o.Notes,
		&o.CreatedAt, &o.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	o.DeliveryMode = order.DeliveryMode(mode)
	o.PaymentStatus = order.PaymentStatus(payment)
	o.Status = order.Status(status)
	if method != nil {
		m := order.PaymentMethod(*method)
		o.PaymentMethod = &m
	}
	return &o, nil
}

func scanLineItem(row pgx.CollectableRow) (pricing.LineItem, error) {
	var (
		l       pricing.LineItem
		service string
	)
	if err := row.Scan(&l.ItemID, &l.Name, &service, &l.Quantity, &l.Weight,
		&l.UnitPrice, &l.TotalPrice, &l.IsBaseCharge); err != nil {
		return l, err
	}
	st, err := pricing.ParseServiceType(service)
	if err != nil {
		return l, err
	}
	l.Service = st
	return l, nil
}
