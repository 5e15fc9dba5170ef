// Package inventory implements the per-item stock ledger: reservations,
// fulfillment, manual adjustments, and the append-only movement audit trail.
package inventory

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no inventory row exists for a SKU.
var ErrNotFound = errors.New("inventory not found")

// OwnerKind discriminates the item owning an inventory row.
type OwnerKind string

const (
	OwnerProduct OwnerKind = "product"
	OwnerVariant OwnerKind = "variant"
)

// OwnerRef identifies the product or variant an inventory row belongs to.
type OwnerRef struct {
	Kind OwnerKind
	ID   string
}

// Item is a single stock counter. Quantity is physical units on hand;
// Reserved is the portion held for in-flight checkouts. Both are mutated only
// through a Ledger, which serializes access per SKU.
type Item struct {
	ID            string
	SKU           string
	Owner         OwnerRef
	Quantity      int
	Reserved      int
	LastCountedAt *time.Time
	UpdatedAt     time.Time
}

// Available returns the stock that can still be reserved, floored at zero.
func (it *Item) Available() int {
	a := it.Quantity - it.Reserved
	if a < 0 {
		return 0
	}
	return a
}

// Reserve places a hold on qty units. It reports false without mutating when
// available stock is short; callers must treat false as an instruction to
// abort the enclosing transaction.
func (it *Item) Reserve(qty int) bool {
	if qty <= 0 || it.Available() < qty {
		return false
	}
	it.Reserved += qty
	return true
}

// Release returns qty units from reserved to available, clamping at zero.
// Safe to over-call: compensating rollbacks may retry it.
func (it *Item) Release(qty int) {
	it.Reserved -= qty
	if it.Reserved < 0 {
		it.Reserved = 0
	}
}

// ApplyDelta mutates quantity by delta, clamping at zero, and returns the
// old and new values for the movement record.
func (it *Item) ApplyDelta(delta int) (oldQty, newQty int) {
	oldQty = it.Quantity
	it.Quantity += delta
	if it.Quantity < 0 {
		it.Quantity = 0
	}
	return oldQty, it.Quantity
}

// Movement is an immutable audit record of one quantity mutation.
type Movement struct {
	ID          string
	SKU         string
	Delta       int
	OldQuantity int
	NewQuantity int
	Reason      string
	Actor       string
	CreatedAt   time.Time
}

// Ledger mutates inventory rows. Implementations must serialize operations on
// a given SKU across concurrent callers: the postgres ledger locks the row,
// the in-memory ledger holds a store-wide mutex.
type Ledger interface {
	Get(ctx context.Context, sku string) (*Item, error)
	Create(ctx context.Context, item *Item) error

	// Reserve holds qty units. The boolean is a soft failure: false means
	// available < qty and nothing was mutated.
	Reserve(ctx context.Context, sku string, qty int) (bool, error)
	// Release returns qty units to available, clamping reserved at zero.
	Release(ctx context.Context, sku string, qty int) error
	// Fulfill converts a reservation into a physical decrement: release(qty)
	// followed by an adjustment of -qty, in one serialized step.
	Fulfill(ctx context.Context, sku string, qty int, reason, actor string) error
	// Adjust mutates quantity by delta and appends a movement snapshot.
	Adjust(ctx context.Context, sku string, delta int, reason, actor string) (*Movement, error)
	// RecordCount reconciles quantity against a physical count, adjusting by
	// the delta when nonzero and stamping the last-counted time.
	RecordCount(ctx context.Context, sku string, counted int, actor string) (*Movement, error)

	Movements(ctx context.Context, sku string, limit int) ([]Movement, error)
}
