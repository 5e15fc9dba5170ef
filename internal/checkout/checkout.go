// Package checkout composes the inventory, order, payment, refund, and
// drawer ledgers into atomic sale and return/exchange transactions.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tillworks/lanepos/internal/domain/customer"
	"github.com/tillworks/lanepos/internal/domain/drawer"
	"github.com/tillworks/lanepos/internal/domain/fault"
	"github.com/tillworks/lanepos/internal/domain/inventory"
	"github.com/tillworks/lanepos/internal/domain/order"
	"github.com/tillworks/lanepos/internal/domain/payment"
	"github.com/tillworks/lanepos/internal/domain/refund"
)

// numberAttempts bounds retries when a generated order number collides.
const numberAttempts = 3

// paidTolerance treats net settlement balances within a cent as settled. It
// never relaxes the shortfall gate: tendered payments must cover the total
// in full.
var paidTolerance = decimal.RequireFromString("0.01")

// TxRunner executes fn inside one transactional unit of work. Everything the
// orchestrator writes during a sale or return happens within a single run:
// a failure part-way leaves no partial state.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SyncEnqueuer appends a catalog-sync job in the same unit of work as the
// transaction that produced it. The push itself happens asynchronously after
// commit and never affects the sale.
type SyncEnqueuer interface {
	Enqueue(ctx context.Context, entityType, entityID, action string, payload []byte) error
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Tx        TxRunner
	Stock     inventory.Ledger
	Orders    order.Repository
	Payments  payment.Repository
	Refunds   refund.Repository
	Customers customer.Repository
	Drawers   drawer.Repository
	Sync      SyncEnqueuer
	Logger    *zap.Logger
}

// Orchestrator drives checkout and return/exchange flows.
type Orchestrator struct {
	tx        TxRunner
	stock     inventory.Ledger
	orders    order.Repository
	payments  payment.Repository
	refunds   refund.Repository
	customers customer.Repository
	drawers   drawer.Repository
	sync      SyncEnqueuer
	lg        *zap.Logger

	refundProc *refund.Processor

	newID func() string
	now   func() time.Time
}

// New creates an Orchestrator from its dependencies.
func New(d Deps, newID func() string, now func() time.Time) *Orchestrator {
	return &Orchestrator{
		refundProc: refund.NewProcessor(d.Refunds, d.Orders, newID, now),
		tx:        d.Tx,
		stock:     d.Stock,
		orders:    d.Orders,
		payments:  d.Payments,
		refunds:   d.Refunds,
		customers: d.Customers,
		drawers:   d.Drawers,
		sync:      d.Sync,
		lg:        d.Logger,
		newID:     newID,
		now:       now,
	}
}

// SaleLine is one requested line of a sale.
type SaleLine struct {
	ItemID         string
	VariantID      string
	SKU            string
	Name           string
	Quantity       int
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxRate        decimal.Decimal
}

func (l SaleLine) owner() order.LineOwner {
	if l.VariantID != "" {
		return order.LineOwner{Kind: string(inventory.OwnerVariant), ID: l.VariantID}
	}
	return order.LineOwner{Kind: string(inventory.OwnerProduct), ID: l.ItemID}
}

// SalePayment is one tender of a (possibly split) payment.
type SalePayment struct {
	Method    payment.Method
	Amount    decimal.Decimal
	Reference string
}

// SaleRequest is the caller-facing checkout contract.
type SaleRequest struct {
	Lines           []SaleLine
	Payments        []SalePayment
	CustomerID      string
	Discount        *order.Adjustment
	Fee             *order.Adjustment
	DrawerSessionID string
	Actor           string
}

// Receipt is the projection returned after a successful sale.
type Receipt struct {
	OrderID     string
	OrderNumber string
	Lines       []order.Line
	Payments    []payment.Payment
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Discount    decimal.Decimal
	Fee         decimal.Decimal
	Total       decimal.Decimal
	ChangeDue   decimal.Decimal
}

// ProcessSale executes a sale as one atomic unit: reserve every line
// (all-or-nothing), create the order, record payments, fulfill inventory,
// complete the order, and return the receipt projection.
func (o *Orchestrator) ProcessSale(ctx context.Context, req SaleRequest) (*Receipt, error) {
	if err := validateSale(req); err != nil {
		return nil, err
	}

	var receipt *Receipt
	err := o.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := o.processSale(ctx, req)
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

func (o *Orchestrator) processSale(ctx context.Context, req SaleRequest) (*Receipt, error) {
	now := o.now()

	if req.CustomerID != "" {
		if _, err := o.customers.Get(ctx, req.CustomerID); err != nil {
			if errors.Is(err, customer.ErrNotFound) {
				return nil, fault.NotFound("customer", req.CustomerID)
			}
			return nil, errors.Wrap(err, "get customer")
		}
	}
	if req.DrawerSessionID != "" {
		s, err := o.drawers.Get(ctx, req.DrawerSessionID)
		if err != nil {
			if errors.Is(err, drawer.ErrNotFound) {
				return nil, fault.NotFound("drawer session", req.DrawerSessionID)
			}
			return nil, errors.Wrap(err, "get drawer session")
		}
		if !s.IsOpen() {
			return nil, fault.BusinessRule("drawer session %s is closed", s.ID)
		}
	}

	ord := &order.Order{
		ID:              o.newID(),
		CustomerID:      req.CustomerID,
		DrawerSessionID: req.DrawerSessionID,
		Status:          order.StatusPending,
		PaymentStatus:   order.PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Discount != nil {
		ord.DiscountAdj = *req.Discount
	}
	if req.Fee != nil {
		ord.FeeAdj = *req.Fee
	}

	lines := make([]order.Line, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = order.Line{
			ID:        o.newID(),
			OrderID:   ord.ID,
			Owner:     l.owner(),
			SKU:       l.SKU,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Discount:  l.DiscountAmount,
			TaxRate:   l.TaxRate,
		}
	}
	ord.CalculateTotals(lines)

	// Payment shortfall is checked before any inventory is touched.
	tendered := decimal.Zero
	for _, p := range req.Payments {
		tendered = tendered.Add(p.Amount)
	}
	if tendered.LessThan(ord.Total) {
		return nil, fault.PaymentShortfall(ord.Total.Sub(tendered).Round(2))
	}

	if err := o.reserveAll(ctx, lines); err != nil {
		return nil, err
	}

	if err := o.createWithNumber(ctx, ord, lines); err != nil {
		return nil, err
	}

	// Change is handed back out of the cash tender, so cash rows are recorded
	// net of change: the drawer holds exactly what the sale retained.
	amounts := make([]decimal.Decimal, len(req.Payments))
	for i, p := range req.Payments {
		amounts[i] = p.Amount
	}
	change := tendered.Sub(ord.Total)
	for i := len(req.Payments) - 1; i >= 0 && change.IsPositive(); i-- {
		if req.Payments[i].Method != payment.MethodCash {
			continue
		}
		d := decimal.Min(change, amounts[i])
		amounts[i] = amounts[i].Sub(d)
		change = change.Sub(d)
	}

	paid := decimal.Zero
	ord.PaymentStatus = payment.DeriveStatus(ord.Total, paid, decimal.Zero)
	payments := make([]payment.Payment, 0, len(req.Payments))
	for i, p := range req.Payments {
		if amounts[i].IsZero() {
			continue
		}
		pay := payment.Payment{
			ID:        o.newID(),
			OrderID:   ord.ID,
			Method:    p.Method,
			Amount:    amounts[i].Round(2),
			Reference: p.Reference,
			CreatedAt: now,
		}
		if err := o.payments.Add(ctx, &pay); err != nil {
			return nil, errors.Wrap(err, "add payment")
		}
		payments = append(payments, pay)
		paid = paid.Add(pay.Amount)
		ord.PaymentStatus = payment.DeriveStatus(ord.Total, paid, decimal.Zero)
	}

	for _, l := range lines {
		if err := o.stock.Fulfill(ctx, l.SKU, l.Quantity, "sale", req.Actor); err != nil {
			return nil, errors.Wrapf(err, "fulfill %s", l.SKU)
		}
	}

	if err := ord.Complete(now); err != nil {
		return nil, err
	}
	if err := o.orders.Update(ctx, ord); err != nil {
		return nil, errors.Wrap(err, "complete order")
	}

	if ord.CustomerID != "" {
		points := customer.PointsFor(ord.Total)
		if err := o.customers.AddStats(ctx, ord.CustomerID, ord.Total, points); err != nil {
			return nil, errors.Wrap(err, "update customer statistics")
		}
	}

	if err := o.enqueueOrderSync(ctx, ord, "created"); err != nil {
		return nil, err
	}

	return &Receipt{
		OrderID:     ord.ID,
		OrderNumber: ord.Number,
		Lines:       lines,
		Payments:    payments,
		Subtotal:    ord.Subtotal,
		Tax:         ord.Tax,
		Discount:    ord.Discount,
		Fee:         ord.Fee,
		Total:       ord.Total,
		ChangeDue:   tendered.Sub(ord.Total).Round(2),
	}, nil
}

// reserveAll reserves every line or none: on the first shortfall it releases
// all prior reservations and reports the failing SKU.
func (o *Orchestrator) reserveAll(ctx context.Context, lines []order.Line) error {
	for i, l := range lines {
		ok, err := o.stock.Reserve(ctx, l.SKU, l.Quantity)
		if err != nil {
			o.releaseLines(ctx, lines[:i])
			if errors.Is(err, inventory.ErrNotFound) {
				return fault.NotFound("inventory", l.SKU)
			}
			return errors.Wrapf(err, "reserve %s", l.SKU)
		}
		if !ok {
			o.releaseLines(ctx, lines[:i])
			return fault.InsufficientStock(l.SKU)
		}
	}
	return nil
}

// releaseLines is the compensating action for a failed reservation pass.
// Release clamps at zero, so retrying after a partial failure is safe.
func (o *Orchestrator) releaseLines(ctx context.Context, lines []order.Line) {
	for _, l := range lines {
		if err := o.stock.Release(ctx, l.SKU, l.Quantity); err != nil {
			o.lg.Warn("compensating release failed",
				zap.String("sku", l.SKU),
				zap.Int("quantity", l.Quantity),
				zap.Error(err),
			)
		}
	}
}

// createWithNumber persists the order, regenerating the human-readable number
// on a uniqueness collision.
func (o *Orchestrator) createWithNumber(ctx context.Context, ord *order.Order, lines []order.Line) error {
	for attempt := 0; attempt < numberAttempts; attempt++ {
		ord.Number = order.NewNumber(o.now())
		err := o.orders.Create(ctx, ord, lines)
		if err == nil {
			return nil
		}
		if !errors.Is(err, order.ErrNumberTaken) {
			return errors.Wrap(err, "create order")
		}
	}
	return errors.Errorf("order number collisions exhausted after %d attempts", numberAttempts)
}

func (o *Orchestrator) enqueueOrderSync(ctx context.Context, ord *order.Order, action string) error {
	payload := orderSyncPayload(ord)
	if err := o.sync.Enqueue(ctx, "order", ord.ID, action, payload); err != nil {
		return errors.Wrap(err, "enqueue catalog sync")
	}
	return nil
}

func validateSale(req SaleRequest) error {
	if len(req.Lines) == 0 {
		return fault.Validation("lines", "at least one line is required")
	}
	for i, l := range req.Lines {
		if l.SKU == "" {
			return fault.Validation("lines", "line %d: sku is required", i)
		}
		if l.Quantity <= 0 {
			return fault.Validation("lines", "line %d: quantity must be greater than 0", i)
		}
		if l.UnitPrice.IsNegative() {
			return fault.Validation("lines", "line %d: unit price must not be negative", i)
		}
		if l.TaxRate.IsNegative() {
			return fault.Validation("lines", "line %d: tax rate must not be negative", i)
		}
	}
	if len(req.Payments) == 0 {
		return fault.Validation("payments", "at least one payment is required")
	}
	for i, p := range req.Payments {
		if !p.Method.Valid() {
			return fault.Validation("payments", "payment %d: unknown method %q", i, p.Method)
		}
		if !p.Amount.IsPositive() {
			return fault.Validation("payments", "payment %d: amount must be positive", i)
		}
	}
	if req.Discount != nil && req.Discount.Value.IsNegative() {
		return fault.Validation("discount", "discount must not be negative")
	}
	if req.Fee != nil && req.Fee.Value.IsNegative() {
		return fault.Validation("fee", "fee must not be negative")
	}
	return nil
}

// CancelOrder cancels a pending or processing order and releases (never
// fulfills) the inventory its lines reserved.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) error {
	return o.tx.WithinTx(ctx, func(ctx context.Context) error {
		ord, lines, err := o.orders.Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				return fault.NotFound("order", orderID)
			}
			return errors.Wrap(err, "get order")
		}

		if err := ord.Cancel(o.now()); err != nil {
			return fault.BusinessRule("%s", err.Error())
		}
		for _, l := range lines {
			if l.Quantity <= 0 {
				continue
			}
			if err := o.stock.Release(ctx, l.SKU, l.Quantity); err != nil {
				return errors.Wrapf(err, "release %s", l.SKU)
			}
		}
		if err := o.orders.Update(ctx, ord); err != nil {
			return errors.Wrap(err, "update order")
		}
		return o.enqueueOrderSync(ctx, ord, "cancelled")
	})
}
