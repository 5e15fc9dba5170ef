package api

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/tillworks/lanepos/internal/domain/fault"
	"github.com/tillworks/lanepos/internal/domain/inventory"
)

// handleGetInventory renders the stock row for a SKU.
func (h *Handler) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")

	it, err := h.stock.Get(r.Context(), sku)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			writeError(w, r, fault.NotFound("inventory", sku))
			return
		}
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("sku")
	e.Str(it.SKU)
	e.FieldStart("owner_kind")
	e.Str(string(it.Owner.Kind))
	e.FieldStart("owner_id")
	e.Str(it.Owner.ID)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("reserved")
	e.Int(it.Reserved)
	e.FieldStart("available")
	e.Int(it.Available())
	if it.LastCountedAt != nil {
		e.FieldStart("last_counted_at")
		e.Str(it.LastCountedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// handleInventoryCount reconciles stock against a physical count.
func (h *Handler) handleInventoryCount(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")

	var (
		counted  int
		hasCount bool
		actor    string
	)
	err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "counted":
				counted, err = d.Int()
				hasCount = true
			case "actor":
				actor, err = d.Str()
			default:
				return d.Skip()
			}
			return err
		})
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !hasCount || counted < 0 {
		writeError(w, r, fault.Validation("counted", "counted must be zero or greater"))
		return
	}

	m, err := h.stock.RecordCount(r.Context(), sku, counted, actor)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			writeError(w, r, fault.NotFound("inventory", sku))
			return
		}
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("sku")
	e.Str(sku)
	e.FieldStart("counted")
	e.Int(counted)
	if m != nil {
		e.FieldStart("movement")
		encodeMovement(&e, *m)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// handleInventoryMovements renders the audit trail for a SKU, newest first.
func (h *Handler) handleInventoryMovements(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, fault.Validation("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	movements, err := h.stock.Movements(r.Context(), sku, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("sku")
	e.Str(sku)
	e.FieldStart("movements")
	e.ArrStart()
	for _, m := range movements {
		encodeMovement(&e, m)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeMovement(e *jx.Encoder, m inventory.Movement) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(m.ID)
	e.FieldStart("delta")
	e.Int(m.Delta)
	e.FieldStart("old_quantity")
	e.Int(m.OldQuantity)
	e.FieldStart("new_quantity")
	e.Int(m.NewQuantity)
	e.FieldStart("reason")
	e.Str(m.Reason)
	if m.Actor != "" {
		e.FieldStart("actor")
		e.Str(m.Actor)
	}
	e.FieldStart("created_at")
	e.Str(m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	e.ObjEnd()
}
