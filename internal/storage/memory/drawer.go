package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/drawer"
	"github.com/tillworks/lanepos/internal/domain/payment"
)

var _ drawer.Repository = (*DrawerRepo)(nil)

// DrawerRepo implements drawer.Repository over the shared store.
type DrawerRepo struct {
	s *Store
}

// Open inserts a session, enforcing at most one open session per operator.
func (r *DrawerRepo) Open(_ context.Context, sess *drawer.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.sessions {
		if existing.Operator == sess.Operator && existing.IsOpen() {
			return drawer.ErrAlreadyOpen
		}
	}
	r.s.sessions[sess.ID] = *sess
	return nil
}

// Get returns a copy of the session.
func (r *DrawerRepo) Get(_ context.Context, id string) (*drawer.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, drawer.ErrNotFound
	}
	return &sess, nil
}

// OpenByOperator returns the operator's open session, if any.
func (r *DrawerRepo) OpenByOperator(_ context.Context, operator string) (*drawer.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, sess := range r.s.sessions {
		if sess.Operator == operator && sess.IsOpen() {
			return &sess, nil
		}
	}
	return nil, drawer.ErrNoOpenSession
}

// AddMovement appends an immutable manual cash movement.
func (r *DrawerRepo) AddMovement(_ context.Context, m *drawer.CashMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[m.SessionID]; !ok {
		return drawer.ErrNotFound
	}
	r.s.cashMovements[m.SessionID] = append(r.s.cashMovements[m.SessionID], *m)
	return nil
}

// Totals sums the session's cash activity: cash-method payments on orders
// linked to the session, refunds paid out from the session, and manual
// movements.
func (r *DrawerRepo) Totals(_ context.Context, sessionID string) (drawer.Totals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t := drawer.Totals{
		CashSales:   decimal.Zero,
		CashRefunds: decimal.Zero,
		CashIn:      decimal.Zero,
		CashOut:     decimal.Zero,
	}

	for orderID, o := range r.s.orders {
		if o.DrawerSessionID != sessionID {
			continue
		}
		for _, p := range r.s.payments[orderID] {
			if p.Method == payment.MethodCash {
				t.CashSales = t.CashSales.Add(p.Amount)
			}
		}
	}
	for _, refunds := range r.s.refunds {
		for _, rec := range refunds {
			if rec.SessionID == sessionID {
				t.CashRefunds = t.CashRefunds.Add(rec.Amount)
			}
		}
	}
	for _, m := range r.s.cashMovements[sessionID] {
		switch m.Type {
		case drawer.MovementIn:
			t.CashIn = t.CashIn.Add(m.Amount)
		case drawer.MovementOut:
			t.CashOut = t.CashOut.Add(m.Amount)
		}
	}
	return t, nil
}

// Close persists the close-time fields.
func (r *DrawerRepo) Close(_ context.Context, sess *drawer.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[sess.ID]; !ok {
		return drawer.ErrNotFound
	}
	r.s.sessions[sess.ID] = *sess
	return nil
}
