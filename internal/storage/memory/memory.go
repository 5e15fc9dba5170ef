// Package memory provides an in-memory store implementing every repository
// interface. It backs unit tests and local development without PostgreSQL;
// a store-wide mutex gives the same per-SKU serialization guarantees the
// postgres row locks do.
package memory

import (
	"context"
	"sync"

	"github.com/tillworks/lanepos/internal/catalogsync"
	"github.com/tillworks/lanepos/internal/domain/customer"
	"github.com/tillworks/lanepos/internal/domain/drawer"
	"github.com/tillworks/lanepos/internal/domain/inventory"
	"github.com/tillworks/lanepos/internal/domain/order"
	"github.com/tillworks/lanepos/internal/domain/payment"
	"github.com/tillworks/lanepos/internal/domain/refund"
)

// Store holds all state behind one mutex.
type Store struct {
	// txMu serializes units of work (WithinTx); mu guards the maps for
	// individual operations. Never hold both except txMu-then-mu.
	txMu sync.Mutex
	mu   sync.Mutex

	items     map[string]inventory.Item // by SKU
	movements map[string][]inventory.Movement

	orders       map[string]order.Order
	orderLines   map[string][]order.Line
	orderNumbers map[string]string // number -> order id

	payments map[string][]payment.Payment // by order id
	refunds  map[string][]refund.Refund   // by order id

	customers map[string]customer.Customer

	sessions      map[string]drawer.Session
	cashMovements map[string][]drawer.CashMovement

	jobs map[string]catalogsync.Job
}

// New creates an empty store.
func New() *Store {
	return &Store{
		items:         make(map[string]inventory.Item),
		movements:     make(map[string][]inventory.Movement),
		orders:        make(map[string]order.Order),
		orderLines:    make(map[string][]order.Line),
		orderNumbers:  make(map[string]string),
		payments:      make(map[string][]payment.Payment),
		refunds:       make(map[string][]refund.Refund),
		customers:     make(map[string]customer.Customer),
		sessions:      make(map[string]drawer.Session),
		cashMovements: make(map[string][]drawer.CashMovement),
		jobs:          make(map[string]catalogsync.Job),
	}
}

// WithinTx serializes units of work. The in-memory store has no rollback;
// callers rely on the orchestrator's validate-first ordering and explicit
// compensating releases, which the postgres store also exercises.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

// Accessors return repository views over the shared state, one type per
// repository interface.

func (s *Store) Inventory() *InventoryLedger { return &InventoryLedger{s: s} }
func (s *Store) Orders() *OrderRepo          { return &OrderRepo{s: s} }
func (s *Store) Payments() *PaymentRepo      { return &PaymentRepo{s: s} }
func (s *Store) Refunds() *RefundRepo        { return &RefundRepo{s: s} }
func (s *Store) Customers() *CustomerRepo    { return &CustomerRepo{s: s} }
func (s *Store) Drawers() *DrawerRepo        { return &DrawerRepo{s: s} }
func (s *Store) SyncJobs() *SyncJobStore     { return &SyncJobStore{s: s} }
