// commission/engine.go
package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidAmount is returned when Distribute is called with a base
// amount that is not strictly positive. Caller error, never retried.
var ErrInvalidAmount = errors.New("commission: base amount must be positive")

// moneyPlaces is the currency precision every payout is rounded to.
const moneyPlaces = 2

const maxRetryDelay = 2 * time.Second

// DistributionError reports a distribution whose transactional commit kept
// conflicting until the retry budget ran out.
type DistributionError struct {
	EventID        string
	Attempts       int
	LevelsResolved int
	Err            error
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("commission: distribution of event %s failed after %d attempts (%d levels resolved): %v",
		e.EventID, e.Attempts, e.LevelsResolved, e.Err)
}

func (e *DistributionError) Unwrap() error { return e.Err }

// Payout is one entry of a DistributionResult.
type Payout struct {
	RecipientID primitive.ObjectID
	Level       int
	Amount      decimal.Decimal
}

// Result describes one committed distribution. A resolved chain with no
// eligible recipient yields an empty Payouts list, not an error; whether
// that is acceptable is the calling workflow's policy. Replayed is set when
// every ledger record for the event already existed, meaning this call
// changed no balances.
type Result struct {
	EventID          string
	TotalDistributed decimal.Decimal
	Payouts          []Payout
	Truncated        bool
	Replayed         bool
}

// Engine distributes tiered commissions up a recruitment chain. Each
// Distribute call is a stateless transition applied through one atomic
// transaction; the engine holds no shared mutable state and does no
// locking of its own, so a single Engine is safe for concurrent use.
type Engine struct {
	store      Store
	rates      *RateTable
	maxRetries int
	retryDelay time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRetries bounds how many times a conflicting commit is retried
// before the distribution is surfaced as failed.
func WithMaxRetries(n int) Option {
	return func(e *Engine) { e.maxRetries = n }
}

// WithRetryDelay sets the initial backoff between conflict retries. The
// delay doubles per attempt up to a fixed ceiling.
func WithRetryDelay(d time.Duration) Option {
	return func(e *Engine) { e.retryDelay = d }
}

func NewEngine(store Store, rates *RateTable, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		rates:      rates,
		maxRetries: 3,
		retryDelay: 75 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Distribute resolves the upline of sourceID, computes the per-level
// payouts for baseAmount under the schedule for typ and applies every
// balance increment together with its ledger record in one transaction.
// Re-invoking with the same eventID is a no-op for balances: ledger
// records are inserted if-absent and increments are applied only for
// records actually inserted. On a transaction conflict the whole
// distribution is re-resolved from a fresh read and retried.
func (e *Engine) Distribute(ctx context.Context, eventID string, sourceID primitive.ObjectID, baseAmount decimal.Decimal, typ Type) (*Result, error) {
	if !baseAmount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidAmount, baseAmount)
	}

	depth := e.rates.Depth(typ)
	delay := e.retryDelay
	levelsResolved := 0

	for attempt := 1; ; attempt++ {
		var result *Result
		err := e.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
			r, levels, err := e.distributeOnce(ctx, tx, eventID, sourceID, baseAmount, typ, depth)
			levelsResolved = levels
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		if attempt > e.maxRetries {
			return nil, &DistributionError{
				EventID:        eventID,
				Attempts:       attempt,
				LevelsResolved: levelsResolved,
				Err:            err,
			}
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
		if delay < maxRetryDelay {
			delay *= 2
		}
	}
}

// distributeOnce is one transactional attempt. It reports how many chain
// levels were resolved so failures can be audited.
func (e *Engine) distributeOnce(ctx context.Context, tx Tx, eventID string, sourceID primitive.ObjectID, baseAmount decimal.Decimal, typ Type, depth int) (*Result, int, error) {
	chain, err := NewResolver(tx).Resolve(ctx, sourceID, depth)
	if err != nil {
		return nil, 0, err
	}
	levels := len(chain.Ancestors)

	records, err := e.buildPayouts(ctx, tx, eventID, sourceID, baseAmount, typ, chain)
	if err != nil {
		return nil, levels, err
	}

	result := &Result{
		EventID:          eventID,
		TotalDistributed: decimal.Zero,
		Truncated:        chain.Truncated,
	}
	if len(records) == 0 {
		// No eligible ancestors: a top-level user or an all-inactive
		// chain. Commit nothing, succeed with an empty payout list.
		return result, levels, nil
	}

	inserted, err := tx.AppendPayouts(ctx, records)
	if err != nil {
		return nil, levels, err
	}
	result.Replayed = len(inserted) == 0

	incs := make([]Increment, 0, 2*len(inserted))
	for _, rec := range inserted {
		incs = append(incs,
			Increment{UserID: rec.RecipientID, Field: FieldBalance, Delta: rec.Amount},
			Increment{UserID: rec.RecipientID, Field: FieldTotalEarned, Delta: rec.Amount},
		)
		result.Payouts = append(result.Payouts, Payout{
			RecipientID: rec.RecipientID,
			Level:       rec.Level,
			Amount:      rec.Amount,
		})
		result.TotalDistributed = result.TotalDistributed.Add(rec.Amount)
	}
	if len(incs) > 0 {
		if err := tx.ApplyIncrements(ctx, incs); err != nil {
			return nil, levels, err
		}
	}
	return result, levels, nil
}

// buildPayouts turns a resolved chain into ledger records. An inactive
// ancestor forfeits its payout but never halts the walk; the next level
// is still considered.
func (e *Engine) buildPayouts(ctx context.Context, tx Tx, eventID string, sourceID primitive.ObjectID, baseAmount decimal.Decimal, typ Type, chain Chain) ([]PayoutRecord, error) {
	if len(chain.Ancestors) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, 0, len(chain.Ancestors))
	for _, a := range chain.Ancestors {
		ids = append(ids, a.ID)
	}
	ancestors, err := tx.FindUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load ancestors of %s: %w", sourceID.Hex(), err)
	}

	now := time.Now().UTC()
	var records []PayoutRecord
	for _, a := range chain.Ancestors {
		rate := e.rates.RateFor(typ, a.Level)
		if rate.IsZero() {
			continue
		}
		recipient, ok := ancestors[a.ID]
		if !ok || !recipient.Active {
			continue
		}
		// Half-up to the cent, independently per level, so identical
		// inputs always reproduce identical payouts.
		amount := baseAmount.Mul(rate).Round(moneyPlaces)
		if amount.IsZero() {
			continue
		}
		records = append(records, PayoutRecord{
			EventID:     eventID,
			EventType:   typ,
			SourceID:    sourceID,
			RecipientID: a.ID,
			Level:       a.Level,
			Amount:      amount,
			CreatedAt:   now,
		})
	}
	return records, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
