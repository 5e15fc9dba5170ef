package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tillworks/lanepos/internal/domain/inventory"
)

const (
	getItemSQL = `SELECT id, sku, owner_kind, owner_id, quantity, reserved, last_counted_at, updated_at
		FROM inventory_items WHERE sku = $1`

	lockItemSQL = `SELECT id, sku, owner_kind, owner_id, quantity, reserved, last_counted_at, updated_at
		FROM inventory_items WHERE sku = $1 FOR UPDATE`

	createItemSQL = `INSERT INTO inventory_items (id, sku, owner_kind, owner_id, quantity, reserved, last_counted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sku) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			reserved = EXCLUDED.reserved,
			updated_at = EXCLUDED.updated_at`

	updateItemSQL = `UPDATE inventory_items
		SET quantity = $2, reserved = $3, last_counted_at = $4, updated_at = $5
		WHERE sku = $1`

	insertMovementSQL = `INSERT INTO inventory_movements (id, sku, delta, old_quantity, new_quantity, reason, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	listMovementsSQL = `SELECT id, sku, delta, old_quantity, new_quantity, reason, actor, created_at
		FROM inventory_movements WHERE sku = $1 ORDER BY created_at DESC LIMIT $2`
)

var _ inventory.Ledger = (*InventoryLedger)(nil)

// InventoryLedger implements inventory.Ledger backed by PostgreSQL. Mutations
// lock the stock row with SELECT ... FOR UPDATE so concurrent checkouts on
// the same SKU serialize.
type InventoryLedger struct {
	db *DB
}

// NewInventoryLedger returns an InventoryLedger over the given DB.
func NewInventoryLedger(db *DB) *InventoryLedger {
	return &InventoryLedger{db: db}
}

// Get returns the inventory row for sku.
func (l *InventoryLedger) Get(ctx context.Context, sku string) (*inventory.Item, error) {
	return l.scanItem(l.db.q(ctx).QueryRow(ctx, getItemSQL, sku), sku)
}

// Create upserts an inventory row.
func (l *InventoryLedger) Create(ctx context.Context, item *inventory.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now()
	}
	_, err := l.db.q(ctx).Exec(ctx, createItemSQL,
		item.ID, item.SKU, string(item.Owner.Kind), item.Owner.ID,
		item.Quantity, item.Reserved, item.LastCountedAt, item.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "creating inventory item %q", item.SKU)
	}
	return nil
}

// Reserve holds qty units, reporting false on shortfall without mutating.
func (l *InventoryLedger) Reserve(ctx context.Context, sku string, qty int) (bool, error) {
	it, err := l.lock(ctx, sku)
	if err != nil {
		return false, err
	}
	if !it.Reserve(qty) {
		return false, nil
	}
	return true, l.save(ctx, it)
}

// Release returns qty units to available, clamping reserved at zero.
func (l *InventoryLedger) Release(ctx context.Context, sku string, qty int) error {
	it, err := l.lock(ctx, sku)
	if err != nil {
		return err
	}
	it.Release(qty)
	return l.save(ctx, it)
}

// Fulfill converts a reservation into a physical decrement in one step.
func (l *InventoryLedger) Fulfill(ctx context.Context, sku string, qty int, reason, actor string) error {
	it, err := l.lock(ctx, sku)
	if err != nil {
		return err
	}
	it.Release(qty)
	if _, err := l.adjust(ctx, it, -qty, reason, actor); err != nil {
		return err
	}
	return l.save(ctx, it)
}

// Adjust mutates quantity by delta and appends a movement snapshot.
func (l *InventoryLedger) Adjust(ctx context.Context, sku string, delta int, reason, actor string) (*inventory.Movement, error) {
	it, err := l.lock(ctx, sku)
	if err != nil {
		return nil, err
	}
	m, err := l.adjust(ctx, it, delta, reason, actor)
	if err != nil {
		return nil, err
	}
	return m, l.save(ctx, it)
}

// RecordCount reconciles quantity against a physical count.
func (l *InventoryLedger) RecordCount(ctx context.Context, sku string, counted int, actor string) (*inventory.Movement, error) {
	it, err := l.lock(ctx, sku)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	it.LastCountedAt = &now

	var m *inventory.Movement
	if delta := counted - it.Quantity; delta != 0 {
		if m, err = l.adjust(ctx, it, delta, "physical_count", actor); err != nil {
			return nil, err
		}
	}
	return m, l.save(ctx, it)
}

// Movements returns the most recent movements for sku, newest first.
func (l *InventoryLedger) Movements(ctx context.Context, sku string, limit int) ([]inventory.Movement, error) {
	rows, err := l.db.q(ctx).Query(ctx, listMovementsSQL, sku, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "listing movements for %q", sku)
	}
	defer rows.Close()

	var out []inventory.Movement
	for rows.Next() {
		var m inventory.Movement
		if err := rows.Scan(&m.ID, &m.SKU, &m.Delta, &m.OldQuantity, &m.NewQuantity, &m.Reason, &m.Actor, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning movement")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// lock reads the stock row under FOR UPDATE.
func (l *InventoryLedger) lock(ctx context.Context, sku string) (*inventory.Item, error) {
	return l.scanItem(l.db.q(ctx).QueryRow(ctx, lockItemSQL, sku), sku)
}

func (l *InventoryLedger) scanItem(row pgx.Row, sku string) (*inventory.Item, error) {
	var (
		it        inventory.Item
		ownerKind string
	)
	err := row.Scan(&it.ID, &it.SKU, &ownerKind, &it.Owner.ID, &it.Quantity, &it.Reserved, &it.LastCountedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inventory.ErrNotFound
		}
		return nil, errors.Wrapf(err, "reading inventory item %q", sku)
	}
	it.Owner.Kind = inventory.OwnerKind(ownerKind)
	return &it, nil
}

func (l *InventoryLedger) save(ctx context.Context, it *inventory.Item) error {
	it.UpdatedAt = time.Now()
	_, err := l.db.q(ctx).Exec(ctx, updateItemSQL,
		it.SKU, it.Quantity, it.Reserved, it.LastCountedAt, it.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "updating inventory item %q", it.SKU)
	}
	return nil
}

// adjust applies delta to the locked item and records the audit movement.
func (l *InventoryLedger) adjust(ctx context.Context, it *inventory.Item, delta int, reason, actor string) (*inventory.Movement, error) {
	oldQty, newQty := it.ApplyDelta(delta)

	m := inventory.Movement{
		ID:          uuid.New().String(),
		SKU:         it.SKU,
		Delta:       delta,
		OldQuantity: oldQty,
		NewQuantity: newQty,
		Reason:      reason,
		Actor:       actor,
		CreatedAt:   time.Now(),
	}
	_, err := l.db.q(ctx).Exec(ctx, insertMovementSQL,
		m.ID, m.SKU, m.Delta, m.OldQuantity, m.NewQuantity, m.Reason, m.Actor, m.CreatedAt,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "recording movement for %q", it.SKU)
	}
	return &m, nil
}
