package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/tillworks/lanepos/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, number, customer_id, drawer_session_id, status, payment_status,
			subtotal, tax, discount, fee, total,
			discount_type, discount_value, fee_type, fee_value,
			created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	createOrderLineSQL = `INSERT INTO order_lines (id, order_id, owner_kind, owner_id, sku, name, quantity,
			unit_price, discount, tax_rate, subtotal, tax, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	getOrderSQL = `SELECT id, number, customer_id, drawer_session_id, status, payment_status,
			subtotal, tax, discount, fee, total,
			discount_type, discount_value, fee_type, fee_value,
			created_at, updated_at, completed_at
		FROM orders WHERE id = $1`

	listOrderLinesSQL = `SELECT id, order_id, owner_kind, owner_id, sku, name, quantity,
			unit_price, discount, tax_rate, subtotal, tax, total
		FROM order_lines WHERE order_id = $1 ORDER BY id`

	updateOrderSQL = `UPDATE orders
		SET status = $2, payment_status = $3, subtotal = $4, tax = $5, discount = $6,
			fee = $7, total = $8, updated_at = $9, completed_at = $10
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository over the given DB.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order with its lines. A unique index on the order
// number surfaces collisions as order.ErrNumberTaken so callers can retry.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, lines []order.Line) error {
	q := r.db.q(ctx)

	_, err := q.Exec(ctx, createOrderSQL,
		o.ID, o.Number, o.CustomerID, o.DrawerSessionID, string(o.Status), string(o.PaymentStatus),
		o.Subtotal, o.Tax, o.Discount, o.Fee, o.Total,
		string(o.DiscountAdj.Type), o.DiscountAdj.Value, string(o.FeeAdj.Type), o.FeeAdj.Value,
		o.CreatedAt, o.UpdatedAt, o.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrNumberTaken
		}
		return errors.Wrapf(err, "creating order %q", o.ID)
	}

	for i := range lines {
		l := &lines[i]
		_, err := q.Exec(ctx, createOrderLineSQL,
			l.ID, l.OrderID, l.Owner.Kind, l.Owner.ID, l.SKU, l.Name, l.Quantity,
			l.UnitPrice, l.Discount, l.TaxRate, l.Subtotal, l.Tax, l.Total,
		)
		if err != nil {
			return errors.Wrapf(err, "creating order line %q", l.ID)
		}
	}
	return nil
}

// Get returns the order and its lines.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, []order.Line, error) {
	q := r.db.q(ctx)

	var (
		o             order.Order
		status        string
		paymentStatus string
		discountType  string
		feeType       string
	)
	err := q.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.DrawerSessionID, &status, &paymentStatus,
		&o.Subtotal, &o.Tax, &o.Discount, &o.Fee, &o.Total,
		&discountType, &o.DiscountAdj.Value, &feeType, &o.FeeAdj.Value,
		&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, order.ErrNotFound
		}
		return nil, nil, errors.Wrapf(err, "reading order %q", id)
	}
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.DiscountAdj.Type = order.AdjustmentType(discountType)
	o.FeeAdj.Type = order.AdjustmentType(feeType)

	rows, err := q.Query(ctx, listOrderLinesSQL, id)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "listing lines for order %q", id)
	}
	defer rows.Close()

	var lines []order.Line
	for rows.Next() {
		var l order.Line
		err := rows.Scan(
			&l.ID, &l.OrderID, &l.Owner.Kind, &l.Owner.ID, &l.SKU, &l.Name, &l.Quantity,
			&l.UnitPrice, &l.Discount, &l.TaxRate, &l.Subtotal, &l.Tax, &l.Total,
		)
		if err != nil {
			return nil, nil, errors.Wrap(err, "scanning order line")
		}
		lines = append(lines, l)
	}
	return &o, lines, rows.Err()
}

// Update persists the order's mutable fields.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateOrderSQL,
		o.ID, string(o.Status), string(o.PaymentStatus), o.Subtotal, o.Tax, o.Discount,
		o.Fee, o.Total, o.UpdatedAt, o.CompletedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "updating order %q", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}
