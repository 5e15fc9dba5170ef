package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/payment"
)

const (
	addPaymentSQL = `INSERT INTO payments (id, order_id, method, amount, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	listPaymentsSQL = `SELECT id, order_id, method, amount, reference, created_at
		FROM payments WHERE order_id = $1 ORDER BY created_at`

	totalPaidSQL = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
// Payment rows are append-only.
type PaymentRepository struct {
	db *DB
}

// NewPaymentRepository returns a PaymentRepository over the given DB.
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Add appends a payment row.
func (r *PaymentRepository) Add(ctx context.Context, p *payment.Payment) error {
	_, err := r.db.q(ctx).Exec(ctx, addPaymentSQL,
		p.ID, p.OrderID, string(p.Method), p.Amount, p.Reference, p.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "adding payment %q", p.ID)
	}
	return nil
}

// ListByOrder returns the payments recorded against an order.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]payment.Payment, error) {
	rows, err := r.db.q(ctx).Query(ctx, listPaymentsSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing payments for order %q", orderID)
	}
	defer rows.Close()

	var out []payment.Payment
	for rows.Next() {
		var (
			p      payment.Payment
			method string
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &method, &p.Amount, &p.Reference, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning payment")
		}
		p.Method = payment.Method(method)
		out = append(out, p)
	}
	return out, rows.Err()
}

// TotalPaid sums the payments recorded against an order.
func (r *PaymentRepository) TotalPaid(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.q(ctx).QueryRow(ctx, totalPaidSQL, orderID).Scan(&total)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "summing payments for order %q", orderID)
	}
	return total, nil
}
