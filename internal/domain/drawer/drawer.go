// Package drawer models cash custody: one operator holds the drawer for a
// bounded session, records manual movements, and reconciles the counted cash
// against the computed expectation at close.
package drawer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrAlreadyOpen is returned when opening a session for an operator who
	// already holds one.
	ErrAlreadyOpen = errors.New("operator already has an open drawer session")
	// ErrNoOpenSession is returned when the operator has no open session.
	ErrNoOpenSession = errors.New("no open drawer session")
	// ErrSessionClosed is returned when mutating an already-closed session.
	ErrSessionClosed = errors.New("drawer session already closed")
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("drawer session not found")
)

// Session is one cash custody interval. ClosedAt == nil means the session is
// still open; expected amount and difference are computed only at close.
type Session struct {
	ID             string
	Operator       string
	OpenedAt       time.Time
	ClosedAt       *time.Time
	OpeningAmount  decimal.Decimal
	ClosingAmount  decimal.Decimal
	ExpectedAmount decimal.Decimal
	Difference     decimal.Decimal
	Notes          string
}

// IsOpen reports whether the session is still accepting activity.
func (s *Session) IsOpen() bool { return s.ClosedAt == nil }

// MovementType discriminates manual cash movements.
type MovementType string

const (
	MovementIn  MovementType = "in"
	MovementOut MovementType = "out"
)

// CashMovement is an immutable manual cash event within a session.
type CashMovement struct {
	ID        string
	SessionID string
	Type      MovementType
	Amount    decimal.Decimal
	Reason    string
	CreatedAt time.Time
}

// Totals aggregates the cash activity of a session window: cash-method sales
// and refunds plus manual in/out movements.
type Totals struct {
	CashSales   decimal.Decimal
	CashRefunds decimal.Decimal
	CashIn      decimal.Decimal
	CashOut     decimal.Decimal
}

// CloseResult is the reconciliation outcome returned to the operator.
type CloseResult struct {
	Expected   decimal.Decimal
	Difference decimal.Decimal
	IsOver     bool
	IsShort    bool
	Duration   time.Duration
}

// HasDiscrepancy reports whether the absolute difference exceeds tolerance.
func (r CloseResult) HasDiscrepancy(tolerance decimal.Decimal) bool {
	return r.Difference.Abs().GreaterThan(tolerance)
}

// Expected computes the cash the drawer should hold:
// opening + cash sales + manual in - manual out - cash refunds.
func Expected(opening decimal.Decimal, t Totals) decimal.Decimal {
	return opening.
		Add(t.CashSales).
		Add(t.CashIn).
		Sub(t.CashOut).
		Sub(t.CashRefunds).
		Round(2)
}

// Close reconciles the session against the counted closing amount and marks
// it closed. A session closes exactly once.
func (s *Session) Close(closing decimal.Decimal, totals Totals, notes string, now time.Time) (CloseResult, error) {
	if !s.IsOpen() {
		return CloseResult{}, ErrSessionClosed
	}

	expected := Expected(s.OpeningAmount, totals)
	diff := closing.Sub(expected).Round(2)

	s.ClosedAt = &now
	s.ClosingAmount = closing
	s.ExpectedAmount = expected
	s.Difference = diff
	s.Notes = notes

	return CloseResult{
		Expected:   expected,
		Difference: diff,
		IsOver:     diff.IsPositive(),
		IsShort:    diff.IsNegative(),
		Duration:   now.Sub(s.OpenedAt),
	}, nil
}

// Repository defines persistence for drawer sessions and cash movements.
// Open must enforce at most one open session per operator.
type Repository interface {
	// Open creates a session; it fails when the operator already has one open.
	Open(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	OpenByOperator(ctx context.Context, operator string) (*Session, error)
	AddMovement(ctx context.Context, m *CashMovement) error
	// Totals sums the session's cash activity for reconciliation.
	Totals(ctx context.Context, sessionID string) (Totals, error)
	// Close persists the close-time fields written by Session.Close.
	Close(ctx context.Context, s *Session) error
}
