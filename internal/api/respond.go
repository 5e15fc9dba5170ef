package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tillworks/lanepos/internal/domain/fault"
)

// statusFor maps fault kinds to HTTP statuses.
var statusFor = map[fault.Kind]int{
	fault.KindValidation:        http.StatusBadRequest,
	fault.KindNotFound:          http.StatusNotFound,
	fault.KindInsufficientStock: http.StatusUnprocessableEntity,
	fault.KindPaymentShortfall:  http.StatusUnprocessableEntity,
	fault.KindBusinessRule:      http.StatusUnprocessableEntity,
	fault.KindDrawerAlreadyOpen: http.StatusConflict,
}

// writeJSON writes the encoder's buffer with the given status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError renders a business fault as {code, kind, message, ...context};
// anything else is a 500 with the detail kept out of the response body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var f *fault.Fault
	if !errors.As(err, &f) {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		var e jx.Encoder
		e.ObjStart()
		e.FieldStart("code")
		e.Int(http.StatusInternalServerError)
		e.FieldStart("message")
		e.Str("internal error")
		e.ObjEnd()
		writeJSON(w, http.StatusInternalServerError, &e)
		return
	}

	status, ok := statusFor[f.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("kind")
	e.Str(string(f.Kind))
	e.FieldStart("message")
	e.Str(f.Message)
	if f.Field != "" {
		e.FieldStart("field")
		e.Str(f.Field)
	}
	if f.SKU != "" {
		e.FieldStart("sku")
		e.Str(f.SKU)
	}
	if f.Kind == fault.KindPaymentShortfall {
		e.FieldStart("remaining")
		e.Float64(f.Remaining.InexactFloat64())
	}
	if f.Entity != "" {
		e.FieldStart("entity")
		e.Str(f.Entity)
	}
	if f.ID != "" {
		e.FieldStart("id")
		e.Str(f.ID)
	}
	e.ObjEnd()
	writeJSON(w, status, &e)
}
