// Package customer tracks lifetime purchase statistics and loyalty points.
package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrHasOrders is returned when deleting a customer with order history.
	ErrHasOrders = errors.New("customer has order history")
)

// Customer carries the statistics updated on every completed sale.
type Customer struct {
	ID            string
	Name          string
	Email         string
	TotalSpent    decimal.Decimal
	OrderCount    int64
	LoyaltyPoints int64
	CreatedAt     time.Time
}

// PointsFor returns the loyalty points awarded for an order total under the
// default policy: one point per whole currency unit, floored.
func PointsFor(total decimal.Decimal) int64 {
	return total.Floor().IntPart()
}

// Repository defines persistence operations for customers.
type Repository interface {
	Get(ctx context.Context, id string) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
	// AddStats accumulates a completed order into the customer's lifetime
	// spend, order count, and loyalty points.
	AddStats(ctx context.Context, id string, spent decimal.Decimal, points int64) error
	// Delete removes a customer; it fails with ErrHasOrders when the customer
	// is referenced by any order.
	Delete(ctx context.Context, id string) error
}
