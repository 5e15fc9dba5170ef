package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tillworks/lanepos/internal/domain/order"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMethod_Valid(t *testing.T) {
	assert.True(t, MethodCash.Valid())
	assert.True(t, MethodCard.Valid())
	assert.True(t, MethodReturnCredit.Valid())
	assert.False(t, Method("bitcoin").Valid())
	assert.False(t, Method("").Valid())
}

func TestRemainingBalance(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		paid     string
		refunded string
		want     string
	}{
		{"nothing paid", "100", "0", "0", "100"},
		{"partially paid", "100", "40", "0", "60"},
		{"fully paid", "100", "100", "0", "0"},
		{"overpaid floors at zero", "100", "120", "0", "0"},
		{"refund reopens balance", "100", "100", "30", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemainingBalance(dec(tt.total), dec(tt.paid), dec(tt.refunded))
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		paid     string
		refunded string
		want     order.PaymentStatus
	}{
		{"nothing paid", "100", "0", "0", order.PaymentPending},
		{"partial", "100", "40", "0", order.PaymentPartial},
		{"exact", "100", "100", "0", order.PaymentPaid},
		{"within cent tolerance", "100", "99.995", "0", order.PaymentPaid},
		{"refund drops back to partial", "100", "100", "30", order.PaymentPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(dec(tt.total), dec(tt.paid), dec(tt.refunded))
			assert.Equal(t, tt.want, got)
		})
	}
}
