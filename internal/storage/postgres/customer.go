package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/customer"
)

const (
	getCustomerSQL = `SELECT id, name, email, total_spent, order_count, loyalty_points, created_at
		FROM customers WHERE id = $1`

	createCustomerSQL = `INSERT INTO customers (id, name, email, total_spent, order_count, loyalty_points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	addCustomerStatsSQL = `UPDATE customers
		SET total_spent = total_spent + $2, order_count = order_count + 1, loyalty_points = loyalty_points + $3
		WHERE id = $1`

	customerHasOrdersSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE customer_id = $1)`

	deleteCustomerSQL = `DELETE FROM customers WHERE id = $1`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	db *DB
}

// NewCustomerRepository returns a CustomerRepository over the given DB.
func NewCustomerRepository(db *DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Get returns the customer by id.
func (r *CustomerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	var c customer.Customer
	err := r.db.q(ctx).QueryRow(ctx, getCustomerSQL, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.TotalSpent, &c.OrderCount, &c.LoyaltyPoints, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "reading customer %q", id)
	}
	return &c, nil
}

// Create inserts a customer row.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	_, err := r.db.q(ctx).Exec(ctx, createCustomerSQL,
		c.ID, c.Name, c.Email, c.TotalSpent, c.OrderCount, c.LoyaltyPoints, c.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "creating customer %q", c.ID)
	}
	return nil
}

// AddStats accumulates a completed order into the customer statistics.
func (r *CustomerRepository) AddStats(ctx context.Context, id string, spent decimal.Decimal, points int64) error {
	tag, err := r.db.q(ctx).Exec(ctx, addCustomerStatsSQL, id, spent, points)
	if err != nil {
		return errors.Wrapf(err, "updating stats for customer %q", id)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

// Delete removes a customer unless any order references them.
func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	q := r.db.q(ctx)

	var hasOrders bool
	if err := q.QueryRow(ctx, customerHasOrdersSQL, id).Scan(&hasOrders); err != nil {
		return errors.Wrapf(err, "checking orders for customer %q", id)
	}
	if hasOrders {
		return customer.ErrHasOrders
	}

	tag, err := q.Exec(ctx, deleteCustomerSQL, id)
	if err != nil {
		return errors.Wrapf(err, "deleting customer %q", id)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}
