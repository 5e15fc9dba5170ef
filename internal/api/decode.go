package api

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/fault"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// decodeBody reads the request body and hands a decoder to fn. Malformed
// JSON surfaces as a validation fault.
func decodeBody(r *http.Request, fn func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if err := fn(jx.DecodeBytes(body)); err != nil {
		if fault.Is(err, fault.KindValidation) {
			return err
		}
		return fault.Validation("body", "invalid request body: %s", err)
	}
	return nil
}

// decodeDecimal parses a JSON number from its raw representation so amounts
// like 0.1 survive without binary float rounding.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	num, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse amount")
	}
	return v, nil
}
