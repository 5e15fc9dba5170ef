package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/tillworks/lanepos/internal/domain/drawer"
)

const (
	openSessionSQL = `INSERT INTO drawer_sessions (id, operator, opened_at, opening_amount, closing_amount, expected_amount, difference, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getSessionSQL = `SELECT id, operator, opened_at, closed_at, opening_amount, closing_amount, expected_amount, difference, notes
		FROM drawer_sessions WHERE id = $1`

	openByOperatorSQL = `SELECT id, operator, opened_at, closed_at, opening_amount, closing_amount, expected_amount, difference, notes
		FROM drawer_sessions WHERE operator = $1 AND closed_at IS NULL`

	closeSessionSQL = `UPDATE drawer_sessions
		SET closed_at = $2, closing_amount = $3, expected_amount = $4, difference = $5, notes = $6
		WHERE id = $1 AND closed_at IS NULL`

	addCashMovementSQL = `INSERT INTO cash_movements (id, session_id, type, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	cashSalesSQL = `SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p JOIN orders o ON o.id = p.order_id
		WHERE o.drawer_session_id = $1 AND p.method = 'cash'`

	cashRefundsSQL = `SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE session_id = $1`

	cashMovementTotalsSQL = `SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'in'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'out'), 0)
		FROM cash_movements WHERE session_id = $1`
)

var _ drawer.Repository = (*DrawerRepository)(nil)

// DrawerRepository implements drawer.Repository backed by PostgreSQL. A
// partial unique index on (operator) WHERE closed_at IS NULL enforces the
// one-open-session-per-operator rule at the database level.
type DrawerRepository struct {
	db *DB
}

// NewDrawerRepository returns a DrawerRepository over the given DB.
func NewDrawerRepository(db *DB) *DrawerRepository {
	return &DrawerRepository{db: db}
}

// Open inserts a session, surfacing the unique-index collision as
// drawer.ErrAlreadyOpen.
func (r *DrawerRepository) Open(ctx context.Context, s *drawer.Session) error {
	_, err := r.db.q(ctx).Exec(ctx, openSessionSQL,
		s.ID, s.Operator, s.OpenedAt, s.OpeningAmount, s.ClosingAmount, s.ExpectedAmount, s.Difference, s.Notes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return drawer.ErrAlreadyOpen
		}
		return errors.Wrapf(err, "opening drawer session for %q", s.Operator)
	}
	return nil
}

// Get returns the session by id.
func (r *DrawerRepository) Get(ctx context.Context, id string) (*drawer.Session, error) {
	s, err := r.scanSession(r.db.q(ctx).QueryRow(ctx, getSessionSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, drawer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "reading drawer session %q", id)
	}
	return s, nil
}

// OpenByOperator returns the operator's open session, if any.
func (r *DrawerRepository) OpenByOperator(ctx context.Context, operator string) (*drawer.Session, error) {
	s, err := r.scanSession(r.db.q(ctx).QueryRow(ctx, openByOperatorSQL, operator))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, drawer.ErrNoOpenSession
		}
		return nil, errors.Wrapf(err, "reading open session for %q", operator)
	}
	return s, nil
}

// AddMovement appends an immutable manual cash movement.
func (r *DrawerRepository) AddMovement(ctx context.Context, m *drawer.CashMovement) error {
	_, err := r.db.q(ctx).Exec(ctx, addCashMovementSQL,
		m.ID, m.SessionID, string(m.Type), m.Amount, m.Reason, m.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "adding cash movement %q", m.ID)
	}
	return nil
}

// Totals sums the session's cash activity: cash-method payments on orders
// linked to the session, refunds paid out from the session, and manual
// movements.
func (r *DrawerRepository) Totals(ctx context.Context, sessionID string) (drawer.Totals, error) {
	q := r.db.q(ctx)

	var t drawer.Totals
	if err := q.QueryRow(ctx, cashSalesSQL, sessionID).Scan(&t.CashSales); err != nil {
		return drawer.Totals{}, errors.Wrap(err, "summing cash sales")
	}
	if err := q.QueryRow(ctx, cashRefundsSQL, sessionID).Scan(&t.CashRefunds); err != nil {
		return drawer.Totals{}, errors.Wrap(err, "summing cash refunds")
	}
	if err := q.QueryRow(ctx, cashMovementTotalsSQL, sessionID).Scan(&t.CashIn, &t.CashOut); err != nil {
		return drawer.Totals{}, errors.Wrap(err, "summing cash movements")
	}
	return t, nil
}

// Close persists the close-time fields. The closed_at guard keeps a session
// from closing twice even under concurrent close requests.
func (r *DrawerRepository) Close(ctx context.Context, s *drawer.Session) error {
	tag, err := r.db.q(ctx).Exec(ctx, closeSessionSQL,
		s.ID, s.ClosedAt, s.ClosingAmount, s.ExpectedAmount, s.Difference, s.Notes,
	)
	if err != nil {
		return errors.Wrapf(err, "closing drawer session %q", s.ID)
	}
	if tag.RowsAffected() == 0 {
		return drawer.ErrSessionClosed
	}
	return nil
}

func (r *DrawerRepository) scanSession(row pgx.Row) (*drawer.Session, error) {
	var s drawer.Session
	err := row.Scan(&s.ID, &s.Operator, &s.OpenedAt, &s.ClosedAt,
		&s.OpeningAmount, &s.ClosingAmount, &s.ExpectedAmount, &s.Difference, &s.Notes)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
