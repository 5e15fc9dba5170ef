package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItem_Available(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		reserved int
		want     int
	}{
		{"no reservations", 10, 0, 10},
		{"some reserved", 10, 4, 6},
		{"fully reserved", 5, 5, 0},
		{"over-reserved clamps to zero", 3, 7, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := Item{Quantity: tt.quantity, Reserved: tt.reserved}
			assert.Equal(t, tt.want, it.Available())
		})
	}
}

func TestItem_Reserve(t *testing.T) {
	t.Run("reserves within available", func(t *testing.T) {
		it := Item{Quantity: 10, Reserved: 3}

		assert.True(t, it.Reserve(5))
		assert.Equal(t, 8, it.Reserved)
		assert.Equal(t, 10, it.Quantity, "quantity untouched until fulfillment")
	})

	t.Run("rejects shortfall without mutating", func(t *testing.T) {
		it := Item{Quantity: 10, Reserved: 8}

		assert.False(t, it.Reserve(3))
		assert.Equal(t, 8, it.Reserved)
	})

	t.Run("rejects non-positive quantities", func(t *testing.T) {
		it := Item{Quantity: 10}

		assert.False(t, it.Reserve(0))
		assert.False(t, it.Reserve(-1))
		assert.Equal(t, 0, it.Reserved)
	})
}

func TestItem_Release(t *testing.T) {
	it := Item{Quantity: 10, Reserved: 4}

	it.Release(3)
	assert.Equal(t, 1, it.Reserved)

	// Releasing more than reserved clamps at zero instead of going negative.
	it.Release(5)
	assert.Equal(t, 0, it.Reserved)
}

func TestItem_ApplyDelta(t *testing.T) {
	t.Run("applies signed deltas", func(t *testing.T) {
		it := Item{Quantity: 10}

		oldQty, newQty := it.ApplyDelta(-4)
		assert.Equal(t, 10, oldQty)
		assert.Equal(t, 6, newQty)
		assert.Equal(t, 6, it.Quantity)
	})

	t.Run("clamps below zero", func(t *testing.T) {
		it := Item{Quantity: 2}

		oldQty, newQty := it.ApplyDelta(-5)
		assert.Equal(t, 2, oldQty)
		assert.Equal(t, 0, newQty)
		assert.Equal(t, 0, it.Quantity)
	})
}
