// Package refund computes refund amounts and drives order-refund transitions.
package refund

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/fault"
	"github.com/tillworks/lanepos/internal/domain/order"
)

// Refund is an immutable record of money returned against an order.
// SessionID is set when the refund was paid out in cash from a drawer
// session, so close-time reconciliation can account for it.
type Refund struct {
	ID        string
	OrderID   string
	SessionID string
	Amount    decimal.Decimal
	Reason    string
	Actor     string
	CreatedAt time.Time
}

// IsFull reports whether amount covers the whole order total. Full vs partial
// is purely this comparison; there is no explicit flag.
func IsFull(amount, total decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(total)
}

// Percentage returns amount as a percentage of total, rounded to one decimal
// place. It returns zero for a zero total.
func Percentage(amount, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return amount.Div(total).Mul(decimal.NewFromInt(100)).Round(1)
}

// Repository defines persistence operations for refunds.
type Repository interface {
	Add(ctx context.Context, r *Refund) error
	ListByOrder(ctx context.Context, orderID string) ([]Refund, error)
	TotalRefunded(ctx context.Context, orderID string) (decimal.Decimal, error)
}

// Processor creates refund records and transitions orders whose cumulative
// refunds reach the order total. Restocking is never implicit: exchange flows
// decide per line whether returned goods go back on the shelf.
type Processor struct {
	refunds Refunds
	orders  order.Repository
	newID   func() string
	now     func() time.Time
}

// Refunds is the subset of Repository the processor needs.
type Refunds interface {
	Add(ctx context.Context, r *Refund) error
	TotalRefunded(ctx context.Context, orderID string) (decimal.Decimal, error)
}

// NewProcessor creates a Processor with the given dependencies.
func NewProcessor(refunds Refunds, orders order.Repository, newID func() string, now func() time.Time) *Processor {
	return &Processor{
		refunds: refunds,
		orders:  orders,
		newID:   newID,
		now:     now,
	}
}

// Process records a refund of amount against o. Refunding beyond the order
// total is rejected as a business rule violation. When cumulative refunds
// reach the total, the order moves to refunded. sessionID links a cash
// payout to the active drawer session and may be empty.
func (p *Processor) Process(ctx context.Context, o *order.Order, amount decimal.Decimal, reason, actor, sessionID string) (*Refund, error) {
	if !amount.IsPositive() {
		return nil, fault.Validation("amount", "refund amount must be positive")
	}

	already, err := p.refunds.TotalRefunded(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	cumulative := already.Add(amount)
	if cumulative.GreaterThan(o.Total) {
		return nil, fault.BusinessRule(
			"refund of %s exceeds remaining balance %s on order %s",
			amount.StringFixed(2), o.Total.Sub(already).StringFixed(2), o.Number,
		)
	}

	r := &Refund{
		ID:        p.newID(),
		OrderID:   o.ID,
		SessionID: sessionID,
		Amount:    amount,
		Reason:    reason,
		Actor:     actor,
		CreatedAt: p.now(),
	}
	if err := p.refunds.Add(ctx, r); err != nil {
		return nil, err
	}

	if IsFull(cumulative, o.Total) {
		if err := o.MarkRefunded(p.now()); err != nil {
			return nil, err
		}
		if err := p.orders.Update(ctx, o); err != nil {
			return nil, err
		}
	}

	return r, nil
}
