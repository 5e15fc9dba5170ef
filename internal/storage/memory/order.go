package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/customer"
	"github.com/tillworks/lanepos/internal/domain/order"
	"github.com/tillworks/lanepos/internal/domain/payment"
	"github.com/tillworks/lanepos/internal/domain/refund"
)

var (
	_ order.Repository    = (*OrderRepo)(nil)
	_ payment.Repository  = (*PaymentRepo)(nil)
	_ refund.Repository   = (*RefundRepo)(nil)
	_ customer.Repository = (*CustomerRepo)(nil)
)

// OrderRepo implements order.Repository over the shared store.
type OrderRepo struct {
	s *Store
}

// Create persists an order with its lines, enforcing number uniqueness.
func (r *OrderRepo) Create(_ context.Context, o *order.Order, lines []order.Line) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.orderNumbers[o.Number]; taken {
		return order.ErrNumberTaken
	}
	r.s.orderNumbers[o.Number] = o.ID
	r.s.orders[o.ID] = *o
	r.s.orderLines[o.ID] = append([]order.Line(nil), lines...)
	return nil
}

// Get returns a copy of the order and its lines.
func (r *OrderRepo) Get(_ context.Context, id string) (*order.Order, []order.Line, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil, order.ErrNotFound
	}
	lines := append([]order.Line(nil), r.s.orderLines[id]...)
	return &o, lines, nil
}

// Update overwrites the order row.
func (r *OrderRepo) Update(_ context.Context, o *order.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[o.ID]; !ok {
		return order.ErrNotFound
	}
	r.s.orders[o.ID] = *o
	return nil
}

// PaymentRepo implements payment.Repository over the shared store.
type PaymentRepo struct {
	s *Store
}

// Add appends an immutable payment row.
func (r *PaymentRepo) Add(_ context.Context, p *payment.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.payments[p.OrderID] = append(r.s.payments[p.OrderID], *p)
	return nil
}

// ListByOrder returns the payments recorded against an order.
func (r *PaymentRepo) ListByOrder(_ context.Context, orderID string) ([]payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return append([]payment.Payment(nil), r.s.payments[orderID]...), nil
}

// TotalPaid sums the payments recorded against an order.
func (r *PaymentRepo) TotalPaid(_ context.Context, orderID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	total := decimal.Zero
	for _, p := range r.s.payments[orderID] {
		total = total.Add(p.Amount)
	}
	return total, nil
}

// RefundRepo implements refund.Repository over the shared store.
type RefundRepo struct {
	s *Store
}

// Add appends an immutable refund row.
func (r *RefundRepo) Add(_ context.Context, rec *refund.Refund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.refunds[rec.OrderID] = append(r.s.refunds[rec.OrderID], *rec)
	return nil
}

// ListByOrder returns the refunds recorded against an order.
func (r *RefundRepo) ListByOrder(_ context.Context, orderID string) ([]refund.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return append([]refund.Refund(nil), r.s.refunds[orderID]...), nil
}

// TotalRefunded sums the refunds recorded against an order.
func (r *RefundRepo) TotalRefunded(_ context.Context, orderID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	total := decimal.Zero
	for _, rec := range r.s.refunds[orderID] {
		total = total.Add(rec.Amount)
	}
	return total, nil
}

// CustomerRepo implements customer.Repository over the shared store.
type CustomerRepo struct {
	s *Store
}

// Get returns a copy of the customer row.
func (r *CustomerRepo) Get(_ context.Context, id string) (*customer.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

// Create inserts a customer row.
func (r *CustomerRepo) Create(_ context.Context, c *customer.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.customers[c.ID] = *c
	return nil
}

// AddStats accumulates a completed order into the customer statistics.
func (r *CustomerRepo) AddStats(_ context.Context, id string, spent decimal.Decimal, points int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.customers[id]
	if !ok {
		return customer.ErrNotFound
	}
	c.TotalSpent = c.TotalSpent.Add(spent)
	c.OrderCount++
	c.LoyaltyPoints += points
	r.s.customers[id] = c
	return nil
}

// Delete removes a customer unless any order references them.
func (r *CustomerRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.customers[id]; !ok {
		return customer.ErrNotFound
	}
	for _, o := range r.s.orders {
		if o.CustomerID == id {
			return customer.ErrHasOrders
		}
	}
	delete(r.s.customers, id)
	return nil
}
