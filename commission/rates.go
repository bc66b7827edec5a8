// commission/rates.go
package commission

import "github.com/shopspring/decimal"

// Schedule is the payout policy for one commission type: an ordered list of
// per-level rates (index 0 = level 1, the direct recruiter) and the basis
// those rates apply to. With a zero PoolRate the level rates apply to the
// raw event amount; with a non-zero PoolRate a commission pool of
// PoolRate * amount is carved out first and the level rates apply to that
// pool. The basis is part of the schedule, never inferred at call time.
type Schedule struct {
	PoolRate decimal.Decimal
	Levels   []decimal.Decimal
}

// RateTable maps commission types to their schedules. It is loaded once at
// process start and never mutated afterwards; lookups are safe for
// concurrent use.
type RateTable struct {
	schedules map[Type]Schedule
}

// NewRateTable copies the given schedules into an immutable table.
func NewRateTable(schedules map[Type]Schedule) *RateTable {
	copied := make(map[Type]Schedule, len(schedules))
	for typ, s := range schedules {
		levels := make([]decimal.Decimal, len(s.Levels))
		copy(levels, s.Levels)
		copied[typ] = Schedule{PoolRate: s.PoolRate, Levels: levels}
	}
	return &RateTable{schedules: copied}
}

// DefaultRateTable returns the platform's standard schedules: activation
// pays 20/15/10 percent of the invested amount to the first three uplines;
// a course sale carves out a 20 percent commission pool and pays 4/3/2
// percent of that pool up the chain.
func DefaultRateTable() *RateTable {
	return NewRateTable(map[Type]Schedule{
		TypeActivation: {
			Levels: []decimal.Decimal{
				decimal.NewFromFloat(0.20),
				decimal.NewFromFloat(0.15),
				decimal.NewFromFloat(0.10),
			},
		},
		TypeCourseSale: {
			PoolRate: decimal.NewFromFloat(0.20),
			Levels: []decimal.Decimal{
				decimal.NewFromFloat(0.04),
				decimal.NewFromFloat(0.03),
				decimal.NewFromFloat(0.02),
			},
		},
	})
}

// RateFor returns the effective rate against the raw event amount for the
// given type and level (1-based). Levels beyond the schedule, unknown
// types and levels < 1 all yield zero.
func (t *RateTable) RateFor(typ Type, level int) decimal.Decimal {
	s, ok := t.schedules[typ]
	if !ok || level < 1 || level > len(s.Levels) {
		return decimal.Zero
	}
	rate := s.Levels[level-1]
	if !s.PoolRate.IsZero() {
		rate = rate.Mul(s.PoolRate)
	}
	return rate
}

// PoolFor returns the commission pool carved out of amount for the given
// type: amount * PoolRate, half-up to the cent. Types without a pool
// basis return the amount unchanged.
func (t *RateTable) PoolFor(typ Type, amount decimal.Decimal) decimal.Decimal {
	s, ok := t.schedules[typ]
	if !ok || s.PoolRate.IsZero() {
		return amount
	}
	return amount.Mul(s.PoolRate).Round(moneyPlaces)
}

// Depth returns the number of configured levels for a type; distributions
// never walk further than this.
func (t *RateTable) Depth(typ Type) int {
	return len(t.schedules[typ].Levels)
}

// MaxDepth returns the longest configured schedule across all types. The
// upline cache built at recruitment time is capped at this depth.
func (t *RateTable) MaxDepth() int {
	max := 0
	for _, s := range t.schedules {
		if len(s.Levels) > max {
			max = len(s.Levels)
		}
	}
	return max
}
