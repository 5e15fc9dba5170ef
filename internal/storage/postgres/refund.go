package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/refund"
)

const (
	addRefundSQL = `INSERT INTO refunds (id, order_id, session_id, amount, reason, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	listRefundsSQL = `SELECT id, order_id, session_id, amount, reason, actor, created_at
		FROM refunds WHERE order_id = $1 ORDER BY created_at`

	totalRefundedSQL = `SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE order_id = $1`
)

var _ refund.Repository = (*RefundRepository)(nil)

// RefundRepository implements refund.Repository backed by PostgreSQL.
// Refund rows are append-only.
type RefundRepository struct {
	db *DB
}

// NewRefundRepository returns a RefundRepository over the given DB.
func NewRefundRepository(db *DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// Add appends a refund row.
func (r *RefundRepository) Add(ctx context.Context, rec *refund.Refund) error {
	_, err := r.db.q(ctx).Exec(ctx, addRefundSQL,
		rec.ID, rec.OrderID, rec.SessionID, rec.Amount, rec.Reason, rec.Actor, rec.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "adding refund %q", rec.ID)
	}
	return nil
}

// ListByOrder returns the refunds recorded against an order.
func (r *RefundRepository) ListByOrder(ctx context.Context, orderID string) ([]refund.Refund, error) {
	rows, err := r.db.q(ctx).Query(ctx, listRefundsSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing refunds for order %q", orderID)
	}
	defer rows.Close()

	var out []refund.Refund
	for rows.Next() {
		var rec refund.Refund
		if err := rows.Scan(&rec.ID, &rec.OrderID, &rec.SessionID, &rec.Amount, &rec.Reason, &rec.Actor, &rec.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning refund")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TotalRefunded sums the refunds recorded against an order.
func (r *RefundRepository) TotalRefunded(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.q(ctx).QueryRow(ctx, totalRefundedSQL, orderID).Scan(&total)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "summing refunds for order %q", orderID)
	}
	return total, nil
}
