package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRateTableActivation(t *testing.T) {
	rates := DefaultRateTable()

	assert.True(t, rates.RateFor(TypeActivation, 1).Equal(decimal.NewFromFloat(0.20)))
	assert.True(t, rates.RateFor(TypeActivation, 2).Equal(decimal.NewFromFloat(0.15)))
	assert.True(t, rates.RateFor(TypeActivation, 3).Equal(decimal.NewFromFloat(0.10)))

	assert.True(t, rates.RateFor(TypeActivation, 0).IsZero())
	assert.True(t, rates.RateFor(TypeActivation, 4).IsZero())
	assert.Equal(t, 3, rates.Depth(TypeActivation))
}

func TestDefaultRateTableCourseSale(t *testing.T) {
	rates := DefaultRateTable()

	// Level rates apply to the 20 percent pool, so the effective rate
	// against the sale price is levelRate * 0.20.
	assert.True(t, rates.RateFor(TypeCourseSale, 1).Equal(decimal.NewFromFloat(0.008)))
	assert.True(t, rates.RateFor(TypeCourseSale, 2).Equal(decimal.NewFromFloat(0.006)))
	assert.True(t, rates.RateFor(TypeCourseSale, 3).Equal(decimal.NewFromFloat(0.004)))

	pool := rates.PoolFor(TypeCourseSale, decimal.NewFromInt(1000))
	assert.True(t, pool.Equal(decimal.NewFromInt(200)), "pool = %s", pool)

	// Activation has no pool basis, the amount passes through.
	raw := rates.PoolFor(TypeActivation, decimal.NewFromInt(100))
	assert.True(t, raw.Equal(decimal.NewFromInt(100)))
}

func TestRateTableUnknownType(t *testing.T) {
	rates := DefaultRateTable()

	assert.True(t, rates.RateFor(Type("bonus"), 1).IsZero())
	assert.Equal(t, 0, rates.Depth(Type("bonus")))
	assert.True(t, rates.PoolFor(Type("bonus"), decimal.NewFromInt(50)).Equal(decimal.NewFromInt(50)))
}

func TestNewRateTableCopiesSchedules(t *testing.T) {
	levels := []decimal.Decimal{decimal.NewFromFloat(0.5)}
	rates := NewRateTable(map[Type]Schedule{
		TypeActivation: {Levels: levels},
	})

	levels[0] = decimal.NewFromFloat(0.99)

	require.True(t, rates.RateFor(TypeActivation, 1).Equal(decimal.NewFromFloat(0.5)))
}

func TestMaxDepth(t *testing.T) {
	assert.Equal(t, 3, DefaultRateTable().MaxDepth())

	rates := NewRateTable(map[Type]Schedule{
		TypeActivation: {Levels: []decimal.Decimal{decimal.NewFromFloat(0.1)}},
		TypeCourseSale: {
			PoolRate: decimal.NewFromFloat(0.2),
			Levels: []decimal.Decimal{
				decimal.NewFromFloat(0.04),
				decimal.NewFromFloat(0.03),
				decimal.NewFromFloat(0.02),
				decimal.NewFromFloat(0.01),
			},
		},
	})
	assert.Equal(t, 4, rates.MaxDepth())
}
