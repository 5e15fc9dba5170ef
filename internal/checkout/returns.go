package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/fault"
	"github.com/tillworks/lanepos/internal/domain/order"
	"github.com/tillworks/lanepos/internal/domain/payment"
	"github.com/tillworks/lanepos/internal/domain/refund"
)

// ReturnLine is one returned unit group. Quantity is negative by contract.
// Restock controls whether the goods go back on the shelf; exchanges of
// damaged goods intentionally skip restocking.
type ReturnLine struct {
	ItemID    string
	VariantID string
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
	Restock   bool
}

func (l ReturnLine) owner() order.LineOwner {
	return SaleLine{ItemID: l.ItemID, VariantID: l.VariantID}.owner()
}

// ReturnRequest is the caller-facing return/exchange contract.
type ReturnRequest struct {
	OriginalOrderID string
	ReturnLines     []ReturnLine
	NewLines        []SaleLine
	PaymentMethod   payment.Method
	PaymentAmount   decimal.Decimal
	DrawerSessionID string
	Actor           string
}

// ReturnReceipt mirrors the sale receipt with the net settlement direction.
type ReturnReceipt struct {
	OrderID     string
	OrderNumber string
	Lines       []order.Line
	Payments    []payment.Payment
	// RefundDue is positive when the return value exceeds the new items.
	RefundDue decimal.Decimal
	// BalanceDue is positive when the new items exceed the return credit.
	BalanceDue decimal.Decimal
	ChangeDue  decimal.Decimal
	Refund     *refund.Refund
}

// ProcessReturn executes a return or exchange as one atomic unit. The return
// credit is the absolute value of the returned lines, pro-rated by the
// original order's percentage-type discount and fee; flat-type adjustments
// are deliberately not pro-rated per item. The signed net of new items minus
// credit decides refund-due versus balance-due.
func (o *Orchestrator) ProcessReturn(ctx context.Context, req ReturnRequest) (*ReturnReceipt, error) {
	if err := validateReturn(req); err != nil {
		return nil, err
	}

	var receipt *ReturnReceipt
	err := o.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := o.processReturn(ctx, req)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (o *Orchestrator) processReturn(ctx context.Context, req ReturnRequest) (*ReturnReceipt, error) {
	now := o.now()

	orig, _, err := o.orders.Get(ctx, req.OriginalOrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, fault.NotFound("order", req.OriginalOrderID)
		}
		return nil, errors.Wrap(err, "get original order")
	}

	exch := &order.Order{
		ID:              o.newID(),
		CustomerID:      orig.CustomerID,
		DrawerSessionID: req.DrawerSessionID,
		Status:          order.StatusPending,
		PaymentStatus:   order.PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	lines := make([]order.Line, 0, len(req.ReturnLines)+len(req.NewLines))
	for _, l := range req.ReturnLines {
		lines = append(lines, order.Line{
			ID:        o.newID(),
			OrderID:   exch.ID,
			Owner:     l.owner(),
			SKU:       l.SKU,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			TaxRate:   l.TaxRate,
		})
	}
	for _, l := range req.NewLines {
		lines = append(lines, order.Line{
			ID:        o.newID(),
			OrderID:   exch.ID,
			Owner:     l.owner(),
			SKU:       l.SKU,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Discount:  l.DiscountAmount,
			TaxRate:   l.TaxRate,
		})
	}
	exch.CalculateTotals(lines)

	credit := returnCredit(orig, lines[:len(req.ReturnLines)])
	newTotal := decimal.Zero
	for _, l := range lines[len(req.ReturnLines):] {
		newTotal = newTotal.Add(l.Total)
	}
	net := newTotal.Sub(credit).Round(2)

	var refundDue, balanceDue, changeDue decimal.Decimal
	switch {
	case net.GreaterThan(paidTolerance):
		balanceDue = net
		if req.PaymentAmount.LessThan(net) {
			return nil, fault.PaymentShortfall(net.Sub(req.PaymentAmount).Round(2))
		}
		changeDue = req.PaymentAmount.Sub(net).Round(2)
	case net.LessThan(paidTolerance.Neg()):
		refundDue = net.Neg()
	}

	if err := o.createWithNumber(ctx, exch, lines); err != nil {
		return nil, err
	}

	// Settle the exchange order: the return credit is a pseudo-payment, any
	// balance due is covered by the real tender.
	var payments []payment.Payment
	if credit.IsPositive() {
		payments = append(payments, payment.Payment{
			ID:        o.newID(),
			OrderID:   exch.ID,
			Method:    payment.MethodReturnCredit,
			Amount:    credit,
			Reference: orig.Number,
			CreatedAt: now,
		})
	}
	if balanceDue.IsPositive() && req.PaymentAmount.IsPositive() {
		// Cash tenders are recorded net of change, same as a sale.
		amount := req.PaymentAmount
		if req.PaymentMethod == payment.MethodCash {
			amount = amount.Sub(changeDue)
		}
		payments = append(payments, payment.Payment{
			ID:        o.newID(),
			OrderID:   exch.ID,
			Method:    req.PaymentMethod,
			Amount:    amount.Round(2),
			CreatedAt: now,
		})
	}
	paid := decimal.Zero
	exch.PaymentStatus = payment.DeriveStatus(exch.Total, paid, decimal.Zero)
	for i := range payments {
		if err := o.payments.Add(ctx, &payments[i]); err != nil {
			return nil, errors.Wrap(err, "add payment")
		}
		paid = paid.Add(payments[i].Amount)
		exch.PaymentStatus = payment.DeriveStatus(exch.Total, paid, decimal.Zero)
	}

	// Returned goods: release is a no-op safety for stale reservations;
	// restocking is per line so damaged goods can stay off the shelf.
	for _, l := range req.ReturnLines {
		qty := -l.Quantity
		if err := o.stock.Release(ctx, l.SKU, qty); err != nil {
			return nil, errors.Wrapf(err, "release %s", l.SKU)
		}
		if !l.Restock {
			continue
		}
		if _, err := o.stock.Adjust(ctx, l.SKU, qty, "return_restock", req.Actor); err != nil {
			return nil, errors.Wrapf(err, "restock %s", l.SKU)
		}
	}

	// New items move through reserve+fulfill exactly like a sale.
	newLines := lines[len(req.ReturnLines):]
	if err := o.reserveAll(ctx, newLines); err != nil {
		return nil, err
	}
	for _, l := range newLines {
		if err := o.stock.Fulfill(ctx, l.SKU, l.Quantity, "exchange", req.Actor); err != nil {
			return nil, errors.Wrapf(err, "fulfill %s", l.SKU)
		}
	}

	var rec *refund.Refund
	if refundDue.IsPositive() {
		// An un-pro-rated flat discount can push the raw credit above what
		// the original order took in; the refund is capped at its remaining
		// refundable balance.
		already, err := o.refunds.TotalRefunded(ctx, orig.ID)
		if err != nil {
			return nil, errors.Wrap(err, "sum prior refunds")
		}
		if remaining := orig.Total.Sub(already); refundDue.GreaterThan(remaining) {
			refundDue = remaining
		}
		if refundDue.IsNegative() {
			refundDue = decimal.Zero
		}
	}
	if refundDue.IsPositive() {
		sessionID := ""
		if req.PaymentMethod == payment.MethodCash {
			sessionID = req.DrawerSessionID
		}
		rec, err = o.refundProc.Process(ctx, orig, refundDue, "return", req.Actor, sessionID)
		if err != nil {
			return nil, err
		}
		// A partial refund reopens part of the original order's balance.
		if orig.Status != order.StatusRefunded {
			paidOrig, err := o.payments.TotalPaid(ctx, orig.ID)
			if err != nil {
				return nil, errors.Wrap(err, "sum original payments")
			}
			refundedOrig, err := o.refunds.TotalRefunded(ctx, orig.ID)
			if err != nil {
				return nil, errors.Wrap(err, "sum refunds")
			}
			orig.PaymentStatus = payment.DeriveStatus(orig.Total, paidOrig, refundedOrig)
			if err := o.orders.Update(ctx, orig); err != nil {
				return nil, errors.Wrap(err, "update original order")
			}
		}
	}

	if err := exch.Complete(now); err != nil {
		return nil, err
	}
	if err := o.orders.Update(ctx, exch); err != nil {
		return nil, errors.Wrap(err, "complete exchange order")
	}

	if err := o.enqueueOrderSync(ctx, exch, "created"); err != nil {
		return nil, err
	}
	if orig.Status == order.StatusRefunded {
		if err := o.enqueueOrderSync(ctx, orig, "refunded"); err != nil {
			return nil, err
		}
	}

	return &ReturnReceipt{
		OrderID:     exch.ID,
		OrderNumber: exch.Number,
		Lines:       lines,
		Payments:    payments,
		RefundDue:   refundDue,
		BalanceDue:  balanceDue,
		ChangeDue:   changeDue,
		Refund:      rec,
	}, nil
}

// returnCredit values the returned lines and pro-rates the original order's
// percentage-type adjustments onto them. A percentage discount lowers what
// the customer actually paid per item, so it lowers the credit; a percentage
// fee raised it, so it raises the credit. Flat adjustments are not pro-rated.
func returnCredit(orig *order.Order, returnLines []order.Line) decimal.Decimal {
	gross := decimal.Zero
	for _, l := range returnLines {
		gross = gross.Add(l.Total.Abs())
	}

	credit := gross
	hundred := decimal.NewFromInt(100)
	if orig.DiscountAdj.Type == order.AdjustPercentage {
		credit = credit.Sub(gross.Mul(orig.DiscountAdj.Value).Div(hundred))
	}
	if orig.FeeAdj.Type == order.AdjustPercentage {
		credit = credit.Add(gross.Mul(orig.FeeAdj.Value).Div(hundred))
	}
	if credit.IsNegative() {
		credit = decimal.Zero
	}
	return credit.Round(2)
}

func validateReturn(req ReturnRequest) error {
	if req.OriginalOrderID == "" {
		return fault.Validation("original_order_id", "original order id is required")
	}
	if len(req.ReturnLines) == 0 {
		return fault.Validation("return_lines", "at least one return line is required")
	}
	for i, l := range req.ReturnLines {
		if l.SKU == "" {
			return fault.Validation("return_lines", "line %d: sku is required", i)
		}
		if l.Quantity >= 0 {
			return fault.Validation("return_lines", "line %d: quantity must be negative", i)
		}
		if l.UnitPrice.IsNegative() {
			return fault.Validation("return_lines", "line %d: unit price must not be negative", i)
		}
	}
	for i, l := range req.NewLines {
		if l.SKU == "" {
			return fault.Validation("new_lines", "line %d: sku is required", i)
		}
		if l.Quantity <= 0 {
			return fault.Validation("new_lines", "line %d: quantity must be greater than 0", i)
		}
		if l.UnitPrice.IsNegative() {
			return fault.Validation("new_lines", "line %d: unit price must not be negative", i)
		}
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return fault.Validation("payment_method", "unknown method %q", req.PaymentMethod)
	}
	if req.PaymentAmount.IsNegative() {
		return fault.Validation("payment_amount", "payment amount must not be negative")
	}
	return nil
}
