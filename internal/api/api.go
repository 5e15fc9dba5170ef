// Package api exposes the checkout engine over HTTP with hand-written JSON
// encoding. Monetary amounts travel as JSON numbers with two-decimal
// semantics.
package api

import (
	"net/http"

	"github.com/tillworks/lanepos/internal/checkout"
	"github.com/tillworks/lanepos/internal/domain/inventory"
	"github.com/tillworks/lanepos/internal/domain/order"
	"github.com/tillworks/lanepos/internal/domain/payment"
	"github.com/tillworks/lanepos/internal/domain/refund"
)

// Handler routes API requests to the checkout orchestrator and read-side
// repositories.
type Handler struct {
	orchestrator *checkout.Orchestrator
	orders       order.Repository
	payments     payment.Repository
	refunds      refund.Repository
	stock        inventory.Ledger
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(
	orchestrator *checkout.Orchestrator,
	orders order.Repository,
	payments payment.Repository,
	refunds refund.Repository,
	stock inventory.Ledger,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		orders:       orders,
		payments:     payments,
		refunds:      refunds,
		stock:        stock,
	}
}

// Routes returns the API route table.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/checkout", h.handleCheckout)
	mux.HandleFunc("POST /api/returns", h.handleReturn)
	mux.HandleFunc("GET /api/orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.handleCancelOrder)
	mux.HandleFunc("POST /api/drawer/open", h.handleDrawerOpen)
	mux.HandleFunc("POST /api/drawer/close", h.handleDrawerClose)
	mux.HandleFunc("POST /api/drawer/movements", h.handleDrawerMovement)
	mux.HandleFunc("GET /api/inventory/{sku}", h.handleGetInventory)
	mux.HandleFunc("POST /api/inventory/{sku}/count", h.handleInventoryCount)
	mux.HandleFunc("GET /api/inventory/{sku}/movements", h.handleInventoryMovements)
	return mux
}
