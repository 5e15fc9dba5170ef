package api

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/tillworks/lanepos/internal/checkout"
	"github.com/tillworks/lanepos/internal/domain/payment"
)

// handleReturn executes a return/exchange and renders the settlement receipt.
func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req checkout.ReturnRequest
	err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "original_order_id":
				v, err := d.Str()
				req.OriginalOrderID = v
				return err
			case "return_lines":
				return d.Arr(func(d *jx.Decoder) error {
					line, err := decodeReturnLine(d)
					if err != nil {
						return err
					}
					req.ReturnLines = append(req.ReturnLines, line)
					return nil
				})
			case "new_lines":
				return d.Arr(func(d *jx.Decoder) error {
					line, err := decodeSaleLine(d)
					if err != nil {
						return err
					}
					req.NewLines = append(req.NewLines, line)
					return nil
				})
			case "payment_method":
				v, err := d.Str()
				req.PaymentMethod = payment.Method(v)
				return err
			case "payment_amount":
				v, err := decodeDecimal(d)
				req.PaymentAmount = v
				return err
			case "drawer_session_id":
				v, err := d.Str()
				req.DrawerSessionID = v
				return err
			case "actor":
				v, err := d.Str()
				req.Actor = v
				return err
			default:
				return d.Skip()
			}
		})
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	receipt, err := h.orchestrator.ProcessReturn(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(receipt.OrderID)
	e.FieldStart("order_number")
	e.Str(receipt.OrderNumber)
	encodeLines(&e, receipt.Lines)
	encodePayments(&e, receipt.Payments)
	e.FieldStart("refund_due")
	e.Float64(receipt.RefundDue.InexactFloat64())
	e.FieldStart("balance_due")
	e.Float64(receipt.BalanceDue.InexactFloat64())
	e.FieldStart("change_due")
	e.Float64(receipt.ChangeDue.InexactFloat64())
	if receipt.Refund != nil {
		e.FieldStart("refund")
		e.ObjStart()
		e.FieldStart("id")
		e.Str(receipt.Refund.ID)
		e.FieldStart("order_id")
		e.Str(receipt.Refund.OrderID)
		e.FieldStart("amount")
		e.Float64(receipt.Refund.Amount.InexactFloat64())
		e.FieldStart("reason")
		e.Str(receipt.Refund.Reason)
		e.ObjEnd()
	}
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

func decodeReturnLine(d *jx.Decoder) (checkout.ReturnLine, error) {
	var line checkout.ReturnLine
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "item_id":
			line.ItemID, err = d.Str()
		case "variant_id":
			line.VariantID, err = d.Str()
		case "sku":
			line.SKU, err = d.Str()
		case "name":
			line.Name, err = d.Str()
		case "quantity":
			line.Quantity, err = d.Int()
		case "unit_price":
			line.UnitPrice, err = decodeDecimal(d)
		case "tax_rate":
			line.TaxRate, err = decodeDecimal(d)
		case "restock":
			line.Restock, err = d.Bool()
		default:
			return d.Skip()
		}
		return err
	})
	return line, err
}
