package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tillworks/lanepos/internal/catalogsync"
	"github.com/tillworks/lanepos/internal/domain/customer"
	"github.com/tillworks/lanepos/internal/domain/fault"
	"github.com/tillworks/lanepos/internal/domain/inventory"
	"github.com/tillworks/lanepos/internal/domain/order"
	"github.com/tillworks/lanepos/internal/domain/payment"
	"github.com/tillworks/lanepos/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// --- Helpers ---

type testEnv struct {
	store        *memory.Store
	orchestrator *Orchestrator
	now          time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	newID := func() string { return uuid.New().String() }

	orchestrator := New(Deps{
		Tx:        store,
		Stock:     store.Inventory(),
		Orders:    store.Orders(),
		Payments:  store.Payments(),
		Refunds:   store.Refunds(),
		Customers: store.Customers(),
		Drawers:   store.Drawers(),
		Sync:      catalogsync.NewQueue(store.SyncJobs(), newID, func() time.Time { return now }),
		Logger:    zap.NewNop(),
	}, newID, func() time.Time { return now })

	return &testEnv{store: store, orchestrator: orchestrator, now: now}
}

func (e *testEnv) seedStock(t *testing.T, sku string, qty int) {
	t.Helper()
	err := e.store.Inventory().Create(context.Background(), &inventory.Item{
		SKU:      sku,
		Owner:    inventory.OwnerRef{Kind: inventory.OwnerProduct, ID: sku},
		Quantity: qty,
	})
	require.NoError(t, err)
}

func (e *testEnv) stock(t *testing.T, sku string) *inventory.Item {
	t.Helper()
	it, err := e.store.Inventory().Get(context.Background(), sku)
	require.NoError(t, err)
	return it
}

func saleLine(sku string, qty int, price string) SaleLine {
	return SaleLine{ItemID: sku, SKU: sku, Name: sku, Quantity: qty, UnitPrice: dec(price)}
}

func cash(amount string) SalePayment {
	return SalePayment{Method: payment.MethodCash, Amount: dec(amount)}
}

// --- Tests ---

func TestProcessSale(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedStock(t, "MUG", 10)

		receipt, err := env.orchestrator.ProcessSale(context.Background(), SaleRequest{
			Lines:    []SaleLine{saleLine("MUG", 3, "19.99")},
			Payments: []SalePayment{cash("100.00")},
			Actor:    "alice",
		})
		require.NoError(t, err)

		assert.True(t, dec("59.97").Equal(receipt.Total), "got %s", receipt.Total)
		assert.True(t, dec("40.03").Equal(receipt.ChangeDue), "got %s", receipt.ChangeDue)
		assert.NotEmpty(t, receipt.OrderNumber)

		require.Len(t, receipt.Payments, 1)
		assert.True(t, dec("59.97").Equal(receipt.Payments[0].Amount),
			"cash is recorded net of change, got %s", receipt.Payments[0].Amount)

		it := env.stock(t, "MUG")
		assert.Equal(t, 7, it.Quantity, "fulfillment decrements physical stock")
		assert.Equal(t, 0, it.Reserved, "reservation consumed by fulfillment")

		ord, _, err := env.store.Orders().Get(context.Background(), receipt.OrderID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusCompleted, ord.Status)
		assert.Equal(t, order.PaymentPaid, ord.PaymentStatus)

		jobs := env.store.SyncJobs().Jobs()
		require.Len(t, jobs, 1)
		assert.Equal(t, "order", jobs[0].EntityType)
		assert.Equal(t, "created", jobs[0].Action)
	})

	t.Run("tax and adjustments", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedStock(t, "SHIRT", 5)

		line := saleLine("SHIRT", 1, "100.00")
		line.TaxRate = dec("10")
		receipt, err := env.orchestrator.ProcessSale(context.Background(), SaleRequest{
			Lines:    []SaleLine{line},
			Payments: []SalePayment{cash("100.00")},
			Discount: &order.Adjustment{Type: order.AdjustPercentage, Value: dec("10")},
		})
		require.NoError(t, err)

		// 100 + 10 tax - 10 discount.
		assert.True(t, dec("100").Equal(receipt.Total), "got %s", receipt.Total)
		assert.True(t, dec("10").Equal(receipt.Tax))
		assert.True(t, dec("10").Equal(receipt.Discount))
	})

	t.Run("payment shortfall leaves stock untouched", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedStock(t, "MUG", 10)

		_, err := env.orchestrator.ProcessSale(context.Background(), SaleRequest{
			Lines:    []SaleLine{saleLine("MUG", 2, "50.00")},
			Payments: []SalePayment{cash("60.00")},
		})
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.KindPaymentShortfall))

		var f *fault.Fault
		require.ErrorAs(t, err, &f)
		assert.True(t, dec("40.00").Equal(f.Remaining), "got %s", f.Remaining)

		it := env.stock(t, "MUG")
		assert.Equal(t, 10, it.Quantity)
		assert.Equal(t, 0, it.Reserved)
	})

	t.Run("a cent short is still a shortfall", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedStock(t, "MUG", 10)

		_, err := env.orchestrator.ProcessSale(context.Background(), SaleRequest{
			Lines:    []SaleLine{saleLine("MUG", 1, "10.00")},
			Payments: []SalePayment{cash("9.99")},
		})
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.KindPaymentShortfall))

		var f *fault.Fault
		require.ErrorAs(t, err, &f)
		assert.True(t, dec("0.01").Equal(f.Remaining), "got %s", f.Remaining)

		it := env.stock(t, "MUG")
		assert.Equal(t, 10, it.Quantity)
		assert.Equal(t, 0, it.Reserved)
	})

	t.Run("split tender covers the total", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedStock(t, "MUG", 10)

		receipt, err := env.orchestrator.ProcessSale(context.Background(), SaleRequest{
			Lines: []SaleLine{saleLine("MUG", 2, "50.00")},
			Payments: []SalePayment{
				cash("60.00"),
				{Method: payment.MethodCard, Amount: dec("40.00"), Reference: "auth-1"},
			},
		})
		require.NoError(t, err)
		assert.Len(t, receipt.Payments, 2)
		assert.True(t, receipt.ChangeDue.IsZero())
	})

	t.Run("insufficient stock releases earlier reservations", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedStock(t, "MUG", 10)
		env.seedStock(t, "SHIRT", 1)

		_, err := env.orchestrator.ProcessSale(context.Background(), SaleRequest{
			Lines: []SaleLine{
				saleLine("MUG", 3, "10.00"),
				saleLine("SHIRT", 2, "20.00"),
			},
			Payments: []SalePayment{cash("100.00")},
		})
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.KindInsufficientStock))

		var f *fault.Fault
		require.ErrorAs(t, err, &f)
		assert.Equal(t, "SHIRT", f.SKU)

		mug := env.stock(t, "MUG")
		assert.Equal(t, 0, mug.Reserved, "all-or-nothing: prior reservation released")
		assert.Equal(t, 10, mug.Quantity)
	})

	t.Run("unknown sku", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.orchestrator.ProcessSale(context.Background(), SaleRequest{
			Lines:    []SaleLine{saleLine("GHOST", 1, "10.00")},
			Payments: []SalePayment{cash("20.00")},
		})
		assert.True(t, fault.Is(err, fault.KindNotFound))
	})

	t.Run("unknown customer", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedStock(t, "MUG", 10)

		_, err := env.orchestrator.ProcessSale(context.Background(), SaleRequest{
			Lines:      []SaleLine{saleLine("MUG", 1, "10.00")},
			Payments:   []SalePayment{cash("20.00")},
			CustomerID: "ghost",
		})
		assert.True(t, fault.Is(err, fault.KindNotFound))
	})

	t.Run("customer statistics accumulate", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedStock(t, "MUG", 10)
		require.NoError(t, env.store.Customers().Create(context.Background(), &customer.Customer{
			ID: "c-1", Name: "Dana",
		}))

		_, err := env.orchestrator.ProcessSale(context.Background(), SaleRequest{
			Lines:      []SaleLine{saleLine("MUG", 2, "25.50")},
			Payments:   []SalePayment{cash("51.00")},
			CustomerID: "c-1",
		})
		require.NoError(t, err)

		c, err := env.store.Customers().Get(context.Background(), "c-1")
		require.NoError(t, err)
		assert.True(t, dec("51.00").Equal(c.TotalSpent))
		assert.Equal(t, int64(1), c.OrderCount)
		assert.Equal(t, int64(51), c.LoyaltyPoints, "one point per whole currency unit")
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)

		tests := []struct {
			name string
			req  SaleRequest
		}{
			{"no lines", SaleRequest{Payments: []SalePayment{cash("10")}}},
			{"no payments", SaleRequest{Lines: []SaleLine{saleLine("MUG", 1, "10")}}},
			{"zero quantity", SaleRequest{
				Lines:    []SaleLine{saleLine("MUG", 0, "10")},
				Payments: []SalePayment{cash("10")},
			}},
			{"negative price", SaleRequest{
				Lines:    []SaleLine{saleLine("MUG", 1, "-10")},
				Payments: []SalePayment{cash("10")},
			}},
			{"unknown method", SaleRequest{
				Lines:    []SaleLine{saleLine("MUG", 1, "10")},
				Payments: []SalePayment{{Method: "bitcoin", Amount: dec("10")}},
			}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := env.orchestrator.ProcessSale(context.Background(), tt.req)
				assert.True(t, fault.Is(err, fault.KindValidation), "got %v", err)
			})
		}
	})
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv(t)
	env.seedStock(t, "MUG", 10)

	// A pending order whose line is still reserved.
	ok, err := env.store.Inventory().Reserve(context.Background(), "MUG", 3)
	require.NoError(t, err)
	require.True(t, ok)

	ord := &order.Order{
		ID:     "ord-1",
		Number: "POS-20250601-TEST22",
		Status: order.StatusPending,
	}
	lines := []order.Line{{ID: "l-1", OrderID: "ord-1", SKU: "MUG", Quantity: 3, UnitPrice: dec("10")}}
	require.NoError(t, env.store.Orders().Create(context.Background(), ord, lines))

	require.NoError(t, env.orchestrator.CancelOrder(context.Background(), "ord-1"))

	got, _, err := env.store.Orders().Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)

	it := env.stock(t, "MUG")
	assert.Equal(t, 10, it.Quantity, "cancel releases, never fulfills")
	assert.Equal(t, 0, it.Reserved)

	t.Run("completed orders cannot be cancelled", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedStock(t, "MUG", 10)

		receipt, err := env.orchestrator.ProcessSale(context.Background(), SaleRequest{
			Lines:    []SaleLine{saleLine("MUG", 1, "10.00")},
			Payments: []SalePayment{cash("10.00")},
		})
		require.NoError(t, err)

		err = env.orchestrator.CancelOrder(context.Background(), receipt.OrderID)
		assert.True(t, fault.Is(err, fault.KindBusinessRule))
	})

	t.Run("unknown order", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.orchestrator.CancelOrder(context.Background(), "ghost")
		assert.True(t, fault.Is(err, fault.KindNotFound))
	})
}
