package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/lanepos/internal/domain/inventory"
)

var _ inventory.Ledger = (*InventoryLedger)(nil)

// InventoryLedger implements inventory.Ledger over the shared store. The
// store mutex serializes per-SKU mutations the way the postgres row lock does.
type InventoryLedger struct {
	s *Store
}

// Get returns a copy of the inventory row for sku.
func (l *InventoryLedger) Get(_ context.Context, sku string) (*inventory.Item, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	it, ok := l.s.items[sku]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	return &it, nil
}

// Create inserts a new inventory row.
func (l *InventoryLedger) Create(_ context.Context, item *inventory.Item) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	l.s.items[item.SKU] = *item
	return nil
}

// Reserve holds qty units, reporting false on shortfall without mutating.
func (l *InventoryLedger) Reserve(_ context.Context, sku string, qty int) (bool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	it, ok := l.s.items[sku]
	if !ok {
		return false, inventory.ErrNotFound
	}
	if !it.Reserve(qty) {
		return false, nil
	}
	it.UpdatedAt = time.Now()
	l.s.items[sku] = it
	return true, nil
}

// Release returns qty units to available, clamping reserved at zero.
func (l *InventoryLedger) Release(_ context.Context, sku string, qty int) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	it, ok := l.s.items[sku]
	if !ok {
		return inventory.ErrNotFound
	}
	it.Release(qty)
	it.UpdatedAt = time.Now()
	l.s.items[sku] = it
	return nil
}

// Fulfill converts a reservation into a physical decrement in one step.
func (l *InventoryLedger) Fulfill(_ context.Context, sku string, qty int, reason, actor string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	it, ok := l.s.items[sku]
	if !ok {
		return inventory.ErrNotFound
	}
	it.Release(qty)
	l.adjustLocked(&it, -qty, reason, actor)
	l.s.items[sku] = it
	return nil
}

// Adjust mutates quantity by delta and appends a movement snapshot.
func (l *InventoryLedger) Adjust(_ context.Context, sku string, delta int, reason, actor string) (*inventory.Movement, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	it, ok := l.s.items[sku]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	m := l.adjustLocked(&it, delta, reason, actor)
	l.s.items[sku] = it
	return m, nil
}

// RecordCount reconciles quantity against a physical count.
func (l *InventoryLedger) RecordCount(_ context.Context, sku string, counted int, actor string) (*inventory.Movement, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	it, ok := l.s.items[sku]
	if !ok {
		return nil, inventory.ErrNotFound
	}

	now := time.Now()
	it.LastCountedAt = &now

	var m *inventory.Movement
	if delta := counted - it.Quantity; delta != 0 {
		m = l.adjustLocked(&it, delta, "physical_count", actor)
	}
	l.s.items[sku] = it
	return m, nil
}

// Movements returns the most recent movements for sku, newest first.
func (l *InventoryLedger) Movements(_ context.Context, sku string, limit int) ([]inventory.Movement, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	ms := l.s.movements[sku]
	out := make([]inventory.Movement, 0, limit)
	for i := len(ms) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, ms[i])
	}
	return out, nil
}

// adjustLocked applies delta and appends the audit movement. Caller holds mu.
func (l *InventoryLedger) adjustLocked(it *inventory.Item, delta int, reason, actor string) *inventory.Movement {
	oldQty, newQty := it.ApplyDelta(delta)
	it.UpdatedAt = time.Now()

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
	l.s.movements[it.SKU] = append(l.s.movements[it.SKU], m)
	return &m
}
