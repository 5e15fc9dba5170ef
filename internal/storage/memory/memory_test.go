package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/lanepos/internal/domain/inventory"
	"github.com/tillworks/lanepos/internal/domain/order"
)

func seedItem(t *testing.T, s *Store, sku string, qty int) {
	t.Helper()
	err := s.Inventory().Create(context.Background(), &inventory.Item{
		SKU:      sku,
		Owner:    inventory.OwnerRef{Kind: inventory.OwnerProduct, ID: sku},
		Quantity: qty,
	})
	require.NoError(t, err)
}

func TestInventoryLedger_ConcurrentReserve(t *testing.T) {
	s := New()
	seedItem(t, s, "MUG", 5)
	ledger := s.Inventory()

	// Two registers grab 3 of 5 units at once. Only one can win.
	const workers = 2
	results := make([]bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := ledger.Reserve(context.Background(), "MUG", 3)
			require.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one reservation may succeed")

	it, err := ledger.Get(context.Background(), "MUG")
	require.NoError(t, err)
	assert.Equal(t, 3, it.Reserved)
	assert.Equal(t, 2, it.Available())
}

func TestInventoryLedger_Movements(t *testing.T) {
	s := New()
	seedItem(t, s, "MUG", 10)
	ledger := s.Inventory()
	ctx := context.Background()

	_, err := ledger.Adjust(ctx, "MUG", 5, "delivery", "alice")
	require.NoError(t, err)
	_, err = ledger.Adjust(ctx, "MUG", -2, "damage", "alice")
	require.NoError(t, err)

	ms, err := ledger.Movements(ctx, "MUG", 1)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, -2, ms[0].Delta, "newest first")
	assert.Equal(t, 15, ms[0].OldQuantity)
	assert.Equal(t, 13, ms[0].NewQuantity)
}

func TestInventoryLedger_RecordCount(t *testing.T) {
	s := New()
	seedItem(t, s, "MUG", 10)
	ledger := s.Inventory()
	ctx := context.Background()

	m, err := ledger.RecordCount(ctx, "MUG", 7, "alice")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, -3, m.Delta)
	assert.Equal(t, "physical_count", m.Reason)

	// Count matching the books records no movement but stamps the item.
	m, err = ledger.RecordCount(ctx, "MUG", 7, "alice")
	require.NoError(t, err)
	assert.Nil(t, m)

	it, err := ledger.Get(ctx, "MUG")
	require.NoError(t, err)
	assert.Equal(t, 7, it.Quantity)
	assert.NotNil(t, it.LastCountedAt)
}

func TestOrderRepo_NumberUniqueness(t *testing.T) {
	s := New()
	repo := s.Orders()
	ctx := context.Background()

	first := &order.Order{ID: "o-1", Number: "POS-20250601-AAAAAA"}
	require.NoError(t, repo.Create(ctx, first, nil))

	dup := &order.Order{ID: "o-2", Number: "POS-20250601-AAAAAA"}
	err := repo.Create(ctx, dup, nil)
	assert.ErrorIs(t, err, order.ErrNumberTaken)
}

func TestStore_WithinTxSerializes(t *testing.T) {
	s := New()
	ctx := context.Background()

	var got []int
	var wg sync.WaitGroup
	release := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.WithinTx(ctx, func(context.Context) error {
			<-release
			got = append(got, 1)
			return nil
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		// Let the first unit of work take the lock.
		release <- struct{}{}
		_ = s.WithinTx(ctx, func(context.Context) error {
			got = append(got, 2)
			return nil
		})
	}()

	wg.Wait()
	assert.Equal(t, []int{1, 2}, got)
}
