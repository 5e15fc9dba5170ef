// Package payment tracks payments applied to orders and derives the order's
// payment status from the running totals.
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/order"
)

// Method enumerates the supported tender types. MethodReturnCredit is the
// pseudo-payment applied when returned goods fund an exchange.
type Method string

const (
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodOther        Method = "other"
	MethodReturnCredit Method = "return_credit"
)

// Valid reports whether m is a known tender type.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodOther, MethodReturnCredit:
		return true
	}
	return false
}

// Payment is an immutable record of one tender applied to an order.
type Payment struct {
	ID        string
	OrderID   string
	Method    Method
	Amount    decimal.Decimal
	Reference string
	CreatedAt time.Time
}

// paidTolerance treats balances within a cent as fully settled.
var paidTolerance = decimal.RequireFromString("0.01")

// RemainingBalance returns the unsettled portion of the order total, floored
// at zero. Refunds conceptually reopen the balance.
func RemainingBalance(total, paid, refunded decimal.Decimal) decimal.Decimal {
	r := total.Sub(paid).Add(refunded)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// DeriveStatus computes the payment status from the order total and the
// running paid/refunded sums: paid when the remaining balance is within a
// cent, partial when anything has been tendered, otherwise pending.
func DeriveStatus(total, paid, refunded decimal.Decimal) order.PaymentStatus {
	remaining := RemainingBalance(total, paid, refunded)
	switch {
	case remaining.LessThanOrEqual(paidTolerance):
		return order.PaymentPaid
	case paid.IsPositive():
		return order.PaymentPartial
	default:
		return order.PaymentPending
	}
}

// Repository defines persistence operations for payments.
type Repository interface {
	Add(ctx context.Context, p *Payment) error
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
	TotalPaid(ctx context.Context, orderID string) (decimal.Decimal, error)
}
