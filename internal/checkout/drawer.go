package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/drawer"
	"github.com/tillworks/lanepos/internal/domain/fault"
)

// discrepancyTolerance is the close-time reconciliation tolerance in currency units.
var discrepancyTolerance = decimal.RequireFromString("0.01")

// DrawerCloseResult extends the reconciliation outcome with the discrepancy flag.
type DrawerCloseResult struct {
	drawer.CloseResult
	HasDiscrepancy bool
}

// OpenDrawer starts a cash custody session for the operator. An operator may
// hold at most one open session at a time.
func (o *Orchestrator) OpenDrawer(ctx context.Context, operator string, opening decimal.Decimal) (*drawer.Session, error) {
	if operator == "" {
		return nil, fault.Validation("operator", "operator is required")
	}
	if opening.IsNegative() {
		return nil, fault.Validation("opening_amount", "opening amount must not be negative")
	}

	s := &drawer.Session{
		ID:            o.newID(),
		Operator:      operator,
		OpenedAt:      o.now(),
		OpeningAmount: opening,
	}
	if err := o.drawers.Open(ctx, s); err != nil {
		if errors.Is(err, drawer.ErrAlreadyOpen) {
			return nil, fault.DrawerAlreadyOpen(operator)
		}
		return nil, errors.Wrap(err, "open drawer session")
	}
	return s, nil
}

// CloseDrawer reconciles the session against the counted closing amount:
// expected = opening + cash sales + manual in - manual out - cash refunds.
func (o *Orchestrator) CloseDrawer(ctx context.Context, sessionID string, closing decimal.Decimal, notes string) (*DrawerCloseResult, error) {
	if closing.IsNegative() {
		return nil, fault.Validation("closing_amount", "closing amount must not be negative")
	}

	s, err := o.drawers.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, drawer.ErrNotFound) {
			return nil, fault.NotFound("drawer session", sessionID)
		}
		return nil, errors.Wrap(err, "get drawer session")
	}

	totals, err := o.drawers.Totals(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "sum drawer activity")
	}

	res, err := s.Close(closing, totals, notes, o.now())
	if err != nil {
		if errors.Is(err, drawer.ErrSessionClosed) {
			return nil, fault.BusinessRule("drawer session %s is already closed", sessionID)
		}
		return nil, err
	}
	if err := o.drawers.Close(ctx, s); err != nil {
		return nil, errors.Wrap(err, "close drawer session")
	}

	return &DrawerCloseResult{
		CloseResult:    res,
		HasDiscrepancy: res.HasDiscrepancy(discrepancyTolerance),
	}, nil
}

// RecordCashMovement appends a manual cash in/out event to an open session.
func (o *Orchestrator) RecordCashMovement(ctx context.Context, sessionID string, typ drawer.MovementType, amount decimal.Decimal, reason string) (*drawer.CashMovement, error) {
	if typ != drawer.MovementIn && typ != drawer.MovementOut {
		return nil, fault.Validation("type", "movement type must be in or out")
	}
	if !amount.IsPositive() {
		return nil, fault.Validation("amount", "movement amount must be positive")
	}

	s, err := o.drawers.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, drawer.ErrNotFound) {
			return nil, fault.NotFound("drawer session", sessionID)
		}
		return nil, errors.Wrap(err, "get drawer session")
	}
	if !s.IsOpen() {
		return nil, fault.BusinessRule("drawer session %s is closed", sessionID)
	}

	m := &drawer.CashMovement{
		ID:        o.newID(),
		SessionID: sessionID,
		Type:      typ,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: o.now(),
	}
	if err := o.drawers.AddMovement(ctx, m); err != nil {
		return nil, errors.Wrap(err, "add cash movement")
	}
	return m, nil
}
