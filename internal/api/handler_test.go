package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tillworks/lanepos/internal/catalogsync"
	"github.com/tillworks/lanepos/internal/checkout"
	"github.com/tillworks/lanepos/internal/domain/inventory"
	"github.com/tillworks/lanepos/internal/storage/memory"
)

// --- Helpers ---

type testServer struct {
	store *memory.Store
	mux   *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New()
	now := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	newID := func() string { return uuid.New().String() }

	orchestrator := checkout.New(checkout.Deps{
		Tx:        store,
		Stock:     store.Inventory(),
		Orders:    store.Orders(),
		Payments:  store.Payments(),
		Refunds:   store.Refunds(),
		Customers: store.Customers(),
		Drawers:   store.Drawers(),
		Sync:      catalogsync.NewQueue(store.SyncJobs(), newID, now),
		Logger:    zap.NewNop(),
	}, newID, now)

	h := NewHandler(orchestrator, store.Orders(), store.Payments(), store.Refunds(), store.Inventory())
	return &testServer{store: store, mux: h.Routes()}
}

func (s *testServer) seedStock(t *testing.T, sku string, qty int) {
	t.Helper()
	err := s.store.Inventory().Create(context.Background(), &inventory.Item{
		SKU:      sku,
		Owner:    inventory.OwnerRef{Kind: inventory.OwnerProduct, ID: sku},
		Quantity: qty,
	})
	require.NoError(t, err)
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), "body: %s", rec.Body.String())
	}
	return rec, payload
}

// --- Tests ---

func TestCheckoutEndpoint(t *testing.T) {
	t.Run("sale returns a receipt", func(t *testing.T) {
		srv := newTestServer(t)
		srv.seedStock(t, "MUG", 10)

		rec, body := srv.do(t, http.MethodPost, "/api/checkout", `{
			"lines": [{"item_id": "MUG", "sku": "MUG", "name": "Mug", "quantity": 3, "unit_price": 19.99}],
			"payments": [{"method": "cash", "amount": 100}],
			"actor": "alice"
		}`)

		require.Equal(t, http.StatusCreated, rec.Code, "body: %v", body)
		assert.InDelta(t, 59.97, body["total"], 0.001)
		assert.InDelta(t, 40.03, body["change_due"], 0.001)
		assert.Contains(t, body["order_number"], "POS-")
		assert.Len(t, body["lines"], 1)
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		srv := newTestServer(t)

		rec, body := srv.do(t, http.MethodPost, "/api/checkout", `{"lines": [`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation", body["kind"])
	})

	t.Run("payment shortfall is a 422 with remaining", func(t *testing.T) {
		srv := newTestServer(t)
		srv.seedStock(t, "MUG", 10)

		rec, body := srv.do(t, http.MethodPost, "/api/checkout", `{
			"lines": [{"item_id": "MUG", "sku": "MUG", "name": "Mug", "quantity": 2, "unit_price": 50}],
			"payments": [{"method": "cash", "amount": 60}]
		}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "payment_shortfall", body["kind"])
		assert.InDelta(t, 40.0, body["remaining"], 0.001)
	})

	t.Run("insufficient stock is a 422 with the sku", func(t *testing.T) {
		srv := newTestServer(t)
		srv.seedStock(t, "MUG", 1)

		rec, body := srv.do(t, http.MethodPost, "/api/checkout", `{
			"lines": [{"item_id": "MUG", "sku": "MUG", "name": "Mug", "quantity": 5, "unit_price": 10}],
			"payments": [{"method": "cash", "amount": 50}]
		}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "insufficient_stock", body["kind"])
		assert.Equal(t, "MUG", body["sku"])
	})

	t.Run("unknown sku is a 404", func(t *testing.T) {
		srv := newTestServer(t)

		rec, body := srv.do(t, http.MethodPost, "/api/checkout", `{
			"lines": [{"item_id": "GHOST", "sku": "GHOST", "name": "x", "quantity": 1, "unit_price": 10}],
			"payments": [{"method": "cash", "amount": 10}]
		}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", body["kind"])
	})
}

func TestOrderEndpoints(t *testing.T) {
	srv := newTestServer(t)
	srv.seedStock(t, "MUG", 10)

	_, receipt := srv.do(t, http.MethodPost, "/api/checkout", `{
		"lines": [{"item_id": "MUG", "sku": "MUG", "name": "Mug", "quantity": 1, "unit_price": 10}],
		"payments": [{"method": "cash", "amount": 10}]
	}`)
	orderID := receipt["order_id"].(string)

	t.Run("get order projection", func(t *testing.T) {
		rec, body := srv.do(t, http.MethodGet, "/api/orders/"+orderID, "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "completed", body["status"])
		assert.Equal(t, "paid", body["payment_status"])
		assert.InDelta(t, 10.0, body["total"], 0.001)
		assert.Len(t, body["payments"], 1)
	})

	t.Run("get unknown order", func(t *testing.T) {
		rec, _ := srv.do(t, http.MethodGet, "/api/orders/ghost", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cancel completed order is a 422", func(t *testing.T) {
		rec, body := srv.do(t, http.MethodPost, "/api/orders/"+orderID+"/cancel", "")

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "business_rule", body["kind"])
	})
}

func TestReturnEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.seedStock(t, "MUG", 10)

	_, receipt := srv.do(t, http.MethodPost, "/api/checkout", `{
		"lines": [{"item_id": "MUG", "sku": "MUG", "name": "Mug", "quantity": 1, "unit_price": 100, "tax_rate": 10}],
		"payments": [{"method": "cash", "amount": 110}]
	}`)
	orderID := receipt["order_id"].(string)

	rec, body := srv.do(t, http.MethodPost, "/api/returns", `{
		"original_order_id": "`+orderID+`",
		"return_lines": [{"item_id": "MUG", "sku": "MUG", "name": "Mug", "quantity": -1, "unit_price": 100, "tax_rate": 10, "restock": true}],
		"payment_method": "cash",
		"actor": "alice"
	}`)

	require.Equal(t, http.StatusCreated, rec.Code, "body: %v", body)
	assert.InDelta(t, 110.0, body["refund_due"], 0.001)
	assert.InDelta(t, 0.0, body["balance_due"], 0.001)

	refund, ok := body["refund"].(map[string]any)
	require.True(t, ok, "refund object expected: %v", body)
	assert.Equal(t, orderID, refund["order_id"])
	assert.InDelta(t, 110.0, refund["amount"], 0.001)
}

func TestDrawerEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec, opened := srv.do(t, http.MethodPost, "/api/drawer/open", `{"operator": "alice", "opening_amount": 100}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := opened["session_id"].(string)

	t.Run("second open for same operator conflicts", func(t *testing.T) {
		rec, body := srv.do(t, http.MethodPost, "/api/drawer/open", `{"operator": "alice", "opening_amount": 50}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "drawer_already_open", body["kind"])
	})

	t.Run("record movement", func(t *testing.T) {
		rec, body := srv.do(t, http.MethodPost, "/api/drawer/movements",
			`{"session_id": "`+sessionID+`", "type": "in", "amount": 20, "reason": "change run"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "in", body["type"])
		assert.InDelta(t, 20.0, body["amount"], 0.001)
	})

	t.Run("close reconciles", func(t *testing.T) {
		rec, body := srv.do(t, http.MethodPost, "/api/drawer/close",
			`{"session_id": "`+sessionID+`", "closing_amount": 115, "notes": "short a five"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.InDelta(t, 120.0, body["expected_amount"], 0.001)
		assert.InDelta(t, -5.0, body["difference"], 0.001)
		assert.Equal(t, true, body["is_short"])
		assert.Equal(t, true, body["has_discrepancy"])
	})
}

func TestInventoryEndpoints(t *testing.T) {
	srv := newTestServer(t)
	srv.seedStock(t, "MUG", 10)

	t.Run("get stock row", func(t *testing.T) {
		rec, body := srv.do(t, http.MethodGet, "/api/inventory/MUG", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.InDelta(t, 10, body["quantity"], 0)
		assert.InDelta(t, 10, body["available"], 0)
	})

	t.Run("unknown sku", func(t *testing.T) {
		rec, _ := srv.do(t, http.MethodGet, "/api/inventory/GHOST", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("physical count adjusts and audits", func(t *testing.T) {
		rec, body := srv.do(t, http.MethodPost, "/api/inventory/MUG/count", `{"counted": 7, "actor": "alice"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		movement, ok := body["movement"].(map[string]any)
		require.True(t, ok, "movement expected: %v", body)
		assert.InDelta(t, -3, movement["delta"], 0)
		assert.Equal(t, "physical_count", movement["reason"])
	})

	t.Run("count requires a value", func(t *testing.T) {
		rec, body := srv.do(t, http.MethodPost, "/api/inventory/MUG/count", `{"actor": "alice"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "counted", body["field"])
	})

	t.Run("movements newest first", func(t *testing.T) {
		rec, body := srv.do(t, http.MethodGet, "/api/inventory/MUG/movements?limit=1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		movements := body["movements"].([]any)
		require.Len(t, movements, 1)
	})

	t.Run("movements rejects bad limit", func(t *testing.T) {
		rec, _ := srv.do(t, http.MethodGet, "/api/inventory/MUG/movements?limit=zero", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
