package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/tillworks/lanepos/internal/domain/fault"
	"github.com/tillworks/lanepos/internal/domain/order"
	"github.com/tillworks/lanepos/internal/domain/refund"
)

// handleGetOrder renders the full order projection: order, lines, payments,
// and refunds.
func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ord, lines, err := h.orders.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, r, fault.NotFound("order", id))
			return
		}
		writeError(w, r, err)
		return
	}

	payments, err := h.payments.ListByOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	refunds, err := h.refunds.ListByOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(ord.ID)
	e.FieldStart("number")
	e.Str(ord.Number)
	if ord.CustomerID != "" {
		e.FieldStart("customer_id")
		e.Str(ord.CustomerID)
	}
	if ord.DrawerSessionID != "" {
		e.FieldStart("drawer_session_id")
		e.Str(ord.DrawerSessionID)
	}
	e.FieldStart("status")
	e.Str(string(ord.Status))
	e.FieldStart("payment_status")
	e.Str(string(ord.PaymentStatus))
	encodeLines(&e, lines)
	encodePayments(&e, payments)
	encodeRefunds(&e, ord, refunds)
	e.FieldStart("subtotal")
	e.Float64(ord.Subtotal.InexactFloat64())
	e.FieldStart("tax")
	e.Float64(ord.Tax.InexactFloat64())
	e.FieldStart("discount")
	e.Float64(ord.Discount.InexactFloat64())
	e.FieldStart("fee")
	e.Float64(ord.Fee.InexactFloat64())
	e.FieldStart("total")
	e.Float64(ord.Total.InexactFloat64())
	e.FieldStart("created_at")
	e.Str(ord.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	if ord.CompletedAt != nil {
		e.FieldStart("completed_at")
		e.Str(ord.CompletedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeRefunds(e *jx.Encoder, ord *order.Order, refunds []refund.Refund) {
	if len(refunds) == 0 {
		return
	}
	e.FieldStart("refunds")
	e.ArrStart()
	for _, rec := range refunds {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(rec.ID)
		e.FieldStart("amount")
		e.Float64(rec.Amount.InexactFloat64())
		e.FieldStart("percentage")
		e.Float64(refund.Percentage(rec.Amount, ord.Total).InexactFloat64())
		e.FieldStart("full")
		e.Bool(refund.IsFull(rec.Amount, ord.Total))
		e.FieldStart("reason")
		e.Str(rec.Reason)
		e.ObjEnd()
	}
	e.ArrEnd()
}
