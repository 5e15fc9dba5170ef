// Package fault defines the single outcome type shared by all checkout and
// ledger operations. Every business failure carries an explicit Kind so
// transport layers can map it without inspecting error strings.
package fault

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the business failure classes.
type Kind string

const (
	// KindValidation indicates malformed input; the operation had no side effects.
	KindValidation Kind = "validation"
	// KindInsufficientStock indicates a reservation shortfall; the enclosing
	// transaction must be aborted as a whole.
	KindInsufficientStock Kind = "insufficient_stock"
	// KindPaymentShortfall indicates tendered payments do not cover the total.
	KindPaymentShortfall Kind = "payment_shortfall"
	// KindNotFound indicates an unknown order, customer, or inventory row.
	KindNotFound Kind = "not_found"
	// KindDrawerAlreadyOpen indicates the operator already has an open session.
	KindDrawerAlreadyOpen Kind = "drawer_already_open"
	// KindBusinessRule indicates a policy violation such as over-refunding.
	KindBusinessRule Kind = "business_rule"
)

// Fault is a business failure with actionable context for the caller.
type Fault struct {
	Kind    Kind
	Message string

	// SKU is set for insufficient_stock faults.
	SKU string
	// Field is set for validation faults.
	Field string
	// Remaining is set for payment_shortfall faults.
	Remaining decimal.Decimal
	// Entity and ID are set for not_found faults.
	Entity string
	ID     string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Validation reports malformed input on the given field.
func Validation(field, format string, args ...any) *Fault {
	return &Fault{
		Kind:    KindValidation,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// InsufficientStock reports a reservation shortfall for the given SKU.
func InsufficientStock(sku string) *Fault {
	return &Fault{
		Kind:    KindInsufficientStock,
		SKU:     sku,
		Message: fmt.Sprintf("insufficient stock for %s", sku),
	}
}

// PaymentShortfall reports that tendered payments leave the given amount uncovered.
func PaymentShortfall(remaining decimal.Decimal) *Fault {
	return &Fault{
		Kind:      KindPaymentShortfall,
		Remaining: remaining,
		Message:   fmt.Sprintf("payments short by %s", remaining.StringFixed(2)),
	}
}

// NotFound reports an unknown entity.
func NotFound(entity, id string) *Fault {
	return &Fault{
		Kind:    KindNotFound,
		Entity:  entity,
		ID:      id,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

// DrawerAlreadyOpen reports that the operator already holds an open session.
func DrawerAlreadyOpen(operator string) *Fault {
	return &Fault{
		Kind:    KindDrawerAlreadyOpen,
		Message: fmt.Sprintf("operator %s already has an open drawer session", operator),
	}
}

// BusinessRule reports a policy violation.
func BusinessRule(format string, args ...any) *Fault {
	return &Fault{
		Kind:    KindBusinessRule,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf extracts the failure kind from err. It reports false when err is not
// a Fault (i.e. an infrastructure error).
func KindOf(err error) (Kind, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

// Is reports whether err is a Fault of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
