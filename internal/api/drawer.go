package api

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/drawer"
)

// handleDrawerOpen starts a cash custody session.
func (h *Handler) handleDrawerOpen(w http.ResponseWriter, r *http.Request) {
	var (
		operator string
		opening  decimal.Decimal
	)
	err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "operator":
				operator, err = d.Str()
			case "opening_amount":
				opening, err = decodeDecimal(d)
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

	s, err := h.orchestrator.OpenDrawer(r.Context(), operator, opening)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("session_id")
	e.Str(s.ID)
	e.FieldStart("operator")
	e.Str(s.Operator)
	e.FieldStart("opened_at")
	e.Str(s.OpenedAt.Format("2006-01-02T15:04:05Z07:00"))
	e.FieldStart("opening_amount")
	e.Float64(s.OpeningAmount.InexactFloat64())
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

// handleDrawerClose reconciles and closes a session.
func (h *Handler) handleDrawerClose(w http.ResponseWriter, r *http.Request) {
	var (
		sessionID string
		closing   decimal.Decimal
		notes     string
	)
	err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "session_id":
				sessionID, err = d.Str()
			case "closing_amount":
				closing, err = decodeDecimal(d)
			case "notes":
				notes, err = d.Str()
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

	res, err := h.orchestrator.CloseDrawer(r.Context(), sessionID, closing, notes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("expected_amount")
	e.Float64(res.Expected.InexactFloat64())
	e.FieldStart("difference")
	e.Float64(res.Difference.InexactFloat64())
	e.FieldStart("is_over")
	e.Bool(res.IsOver)
	e.FieldStart("is_short")
	e.Bool(res.IsShort)
	e.FieldStart("has_discrepancy")
	e.Bool(res.HasDiscrepancy)
	e.FieldStart("duration_seconds")
	e.Int64(int64(res.Duration.Seconds()))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// handleDrawerMovement records a manual cash in/out event.
func (h *Handler) handleDrawerMovement(w http.ResponseWriter, r *http.Request) {
	var (
		sessionID string
		typ       string
		amount    decimal.Decimal
		reason    string
	)
	err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "session_id":
				sessionID, err = d.Str()
			case "type":
				typ, err = d.Str()
			case "amount":
				amount, err = decodeDecimal(d)
			case "reason":
				reason, err = d.Str()
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

	m, err := h.orchestrator.RecordCashMovement(r.Context(), sessionID, drawer.MovementType(typ), amount, reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(m.ID)
	e.FieldStart("session_id")
	e.Str(m.SessionID)
	e.FieldStart("type")
	e.Str(string(m.Type))
	e.FieldStart("amount")
	e.Float64(m.Amount.InexactFloat64())
	e.FieldStart("reason")
	e.Str(m.Reason)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}
