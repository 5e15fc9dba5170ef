package api

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/tillworks/lanepos/internal/checkout"
	"github.com/tillworks/lanepos/internal/domain/order"
	"github.com/tillworks/lanepos/internal/domain/payment"
)

// handleCheckout executes a sale and renders the receipt.
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkout.SaleRequest
	err := decodeBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "lines":
				return d.Arr(func(d *jx.Decoder) error {
					line, err := decodeSaleLine(d)
					if err != nil {
						return err
					}
					req.Lines = append(req.Lines, line)
					return nil
				})
			case "payments":
				return d.Arr(func(d *jx.Decoder) error {
					p, err := decodeSalePayment(d)
					if err != nil {
						return err
					}
					req.Payments = append(req.Payments, p)
					return nil
				})
			case "customer_id":
				v, err := d.Str()
				req.CustomerID = v
				return err
			case "drawer_session_id":
				v, err := d.Str()
				req.DrawerSessionID = v
				return err
			case "actor":
				v, err := d.Str()
				req.Actor = v
				return err
			case "discount":
				adj, err := decodeAdjustment(d)
				req.Discount = adj
				return err
			case "fee":
				adj, err := decodeAdjustment(d)
				req.Fee = adj
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

	receipt, err := h.orchestrator.ProcessSale(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	encodeReceiptFields(&e, receipt)
	e.FieldStart("change_due")
	e.Float64(receipt.ChangeDue.InexactFloat64())
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

// handleCancelOrder cancels a not-yet-completed order and releases its
// reservations.
func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.CancelOrder(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeSaleLine(d *jx.Decoder) (checkout.SaleLine, error) {
	var line checkout.SaleLine
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
		case "discount":
			line.DiscountAmount, err = decodeDecimal(d)
		case "tax_rate":
			line.TaxRate, err = decodeDecimal(d)
		default:
			return d.Skip()
		}
		return err
	})
	return line, err
}

func decodeSalePayment(d *jx.Decoder) (checkout.SalePayment, error) {
	var p checkout.SalePayment
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "method":
			var v string
			v, err = d.Str()
			p.Method = payment.Method(v)
		case "amount":
			p.Amount, err = decodeDecimal(d)
		case "reference":
			p.Reference, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	return p, err
}

func decodeAdjustment(d *jx.Decoder) (*order.Adjustment, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var adj order.Adjustment
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			var v string
			v, err = d.Str()
			adj.Type = order.AdjustmentType(v)
		case "value":
			adj.Value, err = decodeDecimal(d)
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &adj, nil
}

// encodeReceiptFields writes the fields shared by sale and return receipts.
func encodeReceiptFields(e *jx.Encoder, rc *checkout.Receipt) {
	e.FieldStart("order_id")
	e.Str(rc.OrderID)
	e.FieldStart("order_number")
	e.Str(rc.OrderNumber)
	encodeLines(e, rc.Lines)
	encodePayments(e, rc.Payments)
	e.FieldStart("subtotal")
	e.Float64(rc.Subtotal.InexactFloat64())
	e.FieldStart("tax")
	e.Float64(rc.Tax.InexactFloat64())
	e.FieldStart("discount")
	e.Float64(rc.Discount.InexactFloat64())
	e.FieldStart("fee")
	e.Float64(rc.Fee.InexactFloat64())
	e.FieldStart("total")
	e.Float64(rc.Total.InexactFloat64())
}

func encodeLines(e *jx.Encoder, lines []order.Line) {
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("sku")
		e.Str(l.SKU)
		e.FieldStart("name")
		e.Str(l.Name)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unit_price")
		e.Float64(l.UnitPrice.InexactFloat64())
		e.FieldStart("discount")
		e.Float64(l.Discount.InexactFloat64())
		e.FieldStart("tax_rate")
		e.Float64(l.TaxRate.InexactFloat64())
		e.FieldStart("subtotal")
		e.Float64(l.Subtotal.InexactFloat64())
		e.FieldStart("tax")
		e.Float64(l.Tax.InexactFloat64())
		e.FieldStart("total")
		e.Float64(l.Total.InexactFloat64())
		e.ObjEnd()
	}
	e.ArrEnd()
}

func encodePayments(e *jx.Encoder, payments []payment.Payment) {
	e.FieldStart("payments")
	e.ArrStart()
	for _, p := range payments {
		e.ObjStart()
		e.FieldStart("method")
		e.Str(string(p.Method))
		e.FieldStart("amount")
		e.Float64(p.Amount.InexactFloat64())
		if p.Reference != "" {
			e.FieldStart("reference")
			e.Str(p.Reference)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
}
