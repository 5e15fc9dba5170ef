// Package order holds the order entity, its line items, lifecycle
// transitions, and total computation.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrNumberTaken is returned by Repository.Create when the generated order
// number collides with an existing one. Callers retry with a fresh number.
var ErrNumberTaken = errors.New("order number already taken")

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// PaymentStatus tracks how much of the order total has been settled.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// transitions lists the permitted status moves. Anything absent is rejected.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {StatusRefunded},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// AdjustmentType discriminates flat vs percentage order-level adjustments.
type AdjustmentType string

const (
	AdjustFlat       AdjustmentType = "flat"
	AdjustPercentage AdjustmentType = "percentage"
)

// Adjustment is an order-level fee or discount as supplied at checkout.
// The raw value is retained so return flows can pro-rate percentage-type
// adjustments onto returned items.
type Adjustment struct {
	Type  AdjustmentType
	Value decimal.Decimal
}

// AmountOn resolves the adjustment to a monetary amount against base.
func (a Adjustment) AmountOn(base decimal.Decimal) decimal.Decimal {
	if a.Type == AdjustPercentage {
		return base.Mul(a.Value).Div(decimal.NewFromInt(100)).Round(2)
	}
	return a.Value.Round(2)
}

// IsZero reports whether the adjustment carries no value.
func (a Adjustment) IsZero() bool {
	return a.Value.IsZero()
}

// Order is the root financial entity of a checkout.
type Order struct {
	ID              string
	Number          string
	CustomerID      string // empty for anonymous sales
	DrawerSessionID string // empty when no drawer session was active
	Status          Status
	PaymentStatus   PaymentStatus

	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Fee      decimal.Decimal
	Total    decimal.Decimal

	// DiscountAdj and FeeAdj retain the raw checkout adjustments for return
	// pro-rating. Only percentage-type adjustments are pro-rated per item.
	DiscountAdj Adjustment
	FeeAdj      Adjustment

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// LineOwner identifies the product or variant a line refers to, mirroring the
// inventory owner reference without importing that package.
type LineOwner struct {
	Kind string
	ID   string
}

// Line is a single order line. Quantity is signed: negative quantities denote
// returned units in return/exchange orders.
type Line struct {
	ID        string
	OrderID   string
	Owner     LineOwner
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	TaxRate   decimal.Decimal

	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Recalculate derives the line's subtotal, tax, and total from its inputs.
// Signed quantities propagate their sign into the derived amounts.
func (l *Line) Recalculate() {
	qty := decimal.NewFromInt(int64(l.Quantity))
	l.Subtotal = l.UnitPrice.Mul(qty).Sub(l.Discount).Round(2)
	l.Tax = l.Subtotal.Mul(l.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
	l.Total = l.Subtotal.Add(l.Tax)
}

// CalculateTotals recomputes the order's financial summary from its lines.
// It is explicit and idempotent; callers invoke it at transaction boundaries
// rather than on every line mutation.
func (o *Order) CalculateTotals(lines []Line) {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for i := range lines {
		lines[i].Recalculate()
		subtotal = subtotal.Add(lines[i].Subtotal)
		tax = tax.Add(lines[i].Tax)
	}

	o.Subtotal = subtotal.Round(2)
	o.Tax = tax.Round(2)
	o.Discount = o.DiscountAdj.AmountOn(o.Subtotal)
	o.Fee = o.FeeAdj.AmountOn(o.Subtotal)

	total := o.Subtotal.Add(o.Tax).Add(o.Fee).Sub(o.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total.Round(2)
}

// Complete marks the order lifecycle as completed. PaymentStatus is derived
// from the recorded payment totals, not forced here. The caller is
// responsible for updating customer statistics afterwards.
func (o *Order) Complete(now time.Time) error {
	if !CanTransition(o.Status, StatusCompleted) {
		return errors.Errorf("cannot complete order in status %q", o.Status)
	}
	o.Status = StatusCompleted
	o.CompletedAt = &now
	o.UpdatedAt = now
	return nil
}

// Cancel marks the order as cancelled. Reserved inventory must be released
// (never fulfilled) by the caller: the goods were never removed from stock.
func (o *Order) Cancel(now time.Time) error {
	if !CanTransition(o.Status, StatusCancelled) {
		return errors.Errorf("cannot cancel order in status %q", o.Status)
	}
	o.Status = StatusCancelled
	o.UpdatedAt = now
	return nil
}

// MarkRefunded transitions the order into the refunded terminal state.
func (o *Order) MarkRefunded(now time.Time) error {
	if !CanTransition(o.Status, StatusRefunded) {
		return errors.Errorf("cannot refund order in status %q", o.Status)
	}
	o.Status = StatusRefunded
	o.PaymentStatus = PaymentRefunded
	o.UpdatedAt = now
	return nil
}

// Repository defines persistence operations for orders and their lines.
type Repository interface {
	Create(ctx context.Context, o *Order, lines []Line) error
	Get(ctx context.Context, id string) (*Order, []Line, error)
	Update(ctx context.Context, o *Order) error
}
