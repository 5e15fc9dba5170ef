package checkout

import (
	"github.com/go-faster/jx"

	"github.com/tillworks/lanepos/internal/domain/order"
)

// orderSyncPayload builds the catalog-sync payload for an order event.
// The external platform consumes {entity_type, entity_id, action, payload};
// this is the payload portion.
func orderSyncPayload(ord *order.Order) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("order_number")
	e.Str(ord.Number)
	e.FieldStart("status")
	e.Str(string(ord.Status))
	e.FieldStart("payment_status")
	e.Str(string(ord.PaymentStatus))
	e.FieldStart("total")
	e.Float64(ord.Total.InexactFloat64())
	e.FieldStart("currency_scale")
	e.Int(2)
	e.ObjEnd()
	return e.Bytes()
}
