package commission

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type payoutKey struct {
	event     string
	recipient primitive.ObjectID
	level     int
}

type memUser struct {
	UserRecord
	Balance     decimal.Decimal
	TotalEarned decimal.Decimal
}

// memStore is an in-memory Store. Transactions are serialized by a mutex
// and stage their writes until commit, so a failed or conflicted commit
// leaves no trace, the same contract the real store provides.
type memStore struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]*memUser
	ledger    map[payoutKey]PayoutRecord
	conflicts int // commits to fail with ErrConflict before succeeding
	commits   int
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[primitive.ObjectID]*memUser),
		ledger: make(map[payoutKey]PayoutRecord),
	}
}

func (s *memStore) add(u *memUser) { s.users[u.ID] = u }

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.commits++
	if s.conflicts > 0 {
		s.conflicts--
		return ErrConflict
	}

	for _, rec := range tx.newRecords {
		s.ledger[payoutKey{rec.EventID, rec.RecipientID, rec.Level}] = rec
	}
	for _, inc := range tx.incs {
		u := s.users[inc.UserID]
		switch inc.Field {
		case FieldBalance:
			u.Balance = u.Balance.Add(inc.Delta)
		case FieldTotalEarned:
			u.TotalEarned = u.TotalEarned.Add(inc.Delta)
		}
	}
	return nil
}

type memTx struct {
	store      *memStore
	incs       []Increment
	newRecords []PayoutRecord
}

func (t *memTx) FindUser(_ context.Context, id primitive.ObjectID) (*UserRecord, error) {
	u, ok := t.store.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := u.UserRecord
	return &cp, nil
}

func (t *memTx) FindUsers(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*UserRecord, error) {
	out := make(map[primitive.ObjectID]*UserRecord, len(ids))
	for _, id := range ids {
		if u, ok := t.store.users[id]; ok {
			cp := u.UserRecord
			out[id] = &cp
		}
	}
	return out, nil
}

func (t *memTx) ApplyIncrements(_ context.Context, incs []Increment) error {
	t.incs = append(t.incs, incs...)
	return nil
}

func (t *memTx) AppendPayouts(_ context.Context, records []PayoutRecord) ([]PayoutRecord, error) {
	var inserted []PayoutRecord
	for _, rec := range records {
		key := payoutKey{rec.EventID, rec.RecipientID, rec.Level}
		if _, ok := t.store.ledger[key]; ok {
			continue
		}
		inserted = append(inserted, rec)
	}
	t.newRecords = append(t.newRecords, inserted...)
	return inserted, nil
}

// chainStore builds source -> level1 -> level2 -> level3, all active, and
// returns the store together with the ids in that order.
func chainStore() (*memStore, primitive.ObjectID, [3]primitive.ObjectID) {
	s := newMemStore()
	source := primitive.NewObjectID()
	var uplines [3]primitive.ObjectID
	for i := range uplines {
		uplines[i] = primitive.NewObjectID()
	}

	s.add(&memUser{UserRecord: UserRecord{
		ID:          source,
		RecruiterID: &uplines[0],
		Uplines:     uplines[:],
		Active:      true,
	}})
	s.add(&memUser{UserRecord: UserRecord{ID: uplines[0], RecruiterID: &uplines[1], Active: true}})
	s.add(&memUser{UserRecord: UserRecord{ID: uplines[1], RecruiterID: &uplines[2], Active: true}})
	s.add(&memUser{UserRecord: UserRecord{ID: uplines[2], Active: true}})
	return s, source, uplines
}

func money(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func requireMoney(t *testing.T, want float64, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(money(want)), "want %v, got %s", want, got)
}

func TestDistributeThreeLevels(t *testing.T) {
	store, source, uplines := chainStore()
	engine := NewEngine(store, DefaultRateTable())

	result, err := engine.Distribute(context.Background(), "evt-1", source, money(100), TypeActivation)
	require.NoError(t, err)

	require.Len(t, result.Payouts, 3)
	assert.False(t, result.Truncated)
	assert.False(t, result.Replayed)
	requireMoney(t, 45, result.TotalDistributed)

	requireMoney(t, 20, store.users[uplines[0]].Balance)
	requireMoney(t, 15, store.users[uplines[1]].Balance)
	requireMoney(t, 10, store.users[uplines[2]].Balance)
	requireMoney(t, 20, store.users[uplines[0]].TotalEarned)

	require.Len(t, store.ledger, 3)
	rec := store.ledger[payoutKey{"evt-1", uplines[1], 2}]
	assert.Equal(t, TypeActivation, rec.EventType)
	assert.Equal(t, source, rec.SourceID)
	requireMoney(t, 15, rec.Amount)
}

func TestDistributeShortChain(t *testing.T) {
	s := newMemStore()
	source := primitive.NewObjectID()
	parent := primitive.NewObjectID()
	grandparent := primitive.NewObjectID()
	s.add(&memUser{UserRecord: UserRecord{ID: source, RecruiterID: &parent, Active: true}})
	s.add(&memUser{UserRecord: UserRecord{ID: parent, RecruiterID: &grandparent, Active: true}})
	s.add(&memUser{UserRecord: UserRecord{ID: grandparent, Active: true}})

	engine := NewEngine(s, DefaultRateTable())
	result, err := engine.Distribute(context.Background(), "evt-short", source, money(100), TypeActivation)
	require.NoError(t, err)

	require.Len(t, result.Payouts, 2)
	requireMoney(t, 35, result.TotalDistributed)
	requireMoney(t, 20, s.users[parent].Balance)
	requireMoney(t, 15, s.users[grandparent].Balance)
}

func TestDistributeNoUpline(t *testing.T) {
	s := newMemStore()
	source := primitive.NewObjectID()
	s.add(&memUser{UserRecord: UserRecord{ID: source, Active: true}})

	engine := NewEngine(s, DefaultRateTable())
	result, err := engine.Distribute(context.Background(), "evt-root", source, money(100), TypeActivation)
	require.NoError(t, err)

	assert.Empty(t, result.Payouts)
	assert.True(t, result.TotalDistributed.IsZero())
	assert.False(t, result.Replayed)
	assert.Empty(t, s.ledger)
}

func TestDistributeInactiveAncestorSkipped(t *testing.T) {
	store, source, uplines := chainStore()
	store.users[uplines[1]].Active = false

	engine := NewEngine(store, DefaultRateTable())
	result, err := engine.Distribute(context.Background(), "evt-skip", source, money(100), TypeActivation)
	require.NoError(t, err)

	// The inactive level forfeits its share; the level beyond it still pays.
	require.Len(t, result.Payouts, 2)
	requireMoney(t, 30, result.TotalDistributed)
	requireMoney(t, 20, store.users[uplines[0]].Balance)
	assert.True(t, store.users[uplines[1]].Balance.IsZero())
	requireMoney(t, 10, store.users[uplines[2]].Balance)
}

func TestDistributeReplayIsNoOp(t *testing.T) {
	store, source, uplines := chainStore()
	engine := NewEngine(store, DefaultRateTable())

	first, err := engine.Distribute(context.Background(), "evt-replay", source, money(100), TypeActivation)
	require.NoError(t, err)
	require.Len(t, first.Payouts, 3)

	second, err := engine.Distribute(context.Background(), "evt-replay", source, money(100), TypeActivation)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Empty(t, second.Payouts)
	assert.True(t, second.TotalDistributed.IsZero())

	// Balances and the ledger are exactly as after the first run.
	requireMoney(t, 20, store.users[uplines[0]].Balance)
	requireMoney(t, 15, store.users[uplines[1]].Balance)
	requireMoney(t, 10, store.users[uplines[2]].Balance)
	require.Len(t, store.ledger, 3)
}

func TestDistributeCourseSaleRounding(t *testing.T) {
	store, source, uplines := chainStore()
	engine := NewEngine(store, DefaultRateTable())

	// 999.99 * 0.008 = 7.99992, rounded half up per level.
	result, err := engine.Distribute(context.Background(), "evt-sale", source, money(999.99), TypeCourseSale)
	require.NoError(t, err)

	require.Len(t, result.Payouts, 3)
	requireMoney(t, 8.00, store.users[uplines[0]].Balance)
	requireMoney(t, 6.00, store.users[uplines[1]].Balance)
	requireMoney(t, 4.00, store.users[uplines[2]].Balance)
	requireMoney(t, 18.00, result.TotalDistributed)
}

func TestDistributeTinyAmountDropsZeroPayouts(t *testing.T) {
	store, source, _ := chainStore()
	engine := NewEngine(store, DefaultRateTable())

	// 0.03 * 0.20 rounds to 0.01 at level 1, but levels 2 and 3 round to
	// 0.00 and are dropped rather than written as zero ledger entries.
	result, err := engine.Distribute(context.Background(), "evt-tiny", source, money(0.03), TypeActivation)
	require.NoError(t, err)

	require.Len(t, result.Payouts, 1)
	assert.Equal(t, 1, result.Payouts[0].Level)
	requireMoney(t, 0.01, result.Payouts[0].Amount)
	require.Len(t, store.ledger, 1)
}

func TestDistributeInvalidAmount(t *testing.T) {
	store, source, _ := chainStore()
	engine := NewEngine(store, DefaultRateTable())

	_, err := engine.Distribute(context.Background(), "evt-bad", source, decimal.Zero, TypeActivation)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = engine.Distribute(context.Background(), "evt-bad", source, money(-5), TypeActivation)
	require.ErrorIs(t, err, ErrInvalidAmount)

	assert.Equal(t, 0, store.commits)
}

func TestDistributeUnknownSource(t *testing.T) {
	store, _, _ := chainStore()
	engine := NewEngine(store, DefaultRateTable())

	_, err := engine.Distribute(context.Background(), "evt-ghost", primitive.NewObjectID(), money(100), TypeActivation)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDistributeCyclicChainTruncates(t *testing.T) {
	s := newMemStore()
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	s.add(&memUser{UserRecord: UserRecord{ID: a, RecruiterID: &b, Active: true}})
	s.add(&memUser{UserRecord: UserRecord{ID: b, RecruiterID: &a, Active: true}})

	engine := NewEngine(s, DefaultRateTable())
	result, err := engine.Distribute(context.Background(), "evt-cycle", a, money(100), TypeActivation)
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	require.Len(t, result.Payouts, 1)
	requireMoney(t, 20, s.users[b].Balance)
}

func TestDistributeRetriesConflicts(t *testing.T) {
	store, source, uplines := chainStore()
	store.conflicts = 2

	engine := NewEngine(store, DefaultRateTable(), WithRetryDelay(time.Millisecond))
	result, err := engine.Distribute(context.Background(), "evt-retry", source, money(100), TypeActivation)
	require.NoError(t, err)

	// The outcome is indistinguishable from a conflict-free run.
	require.Len(t, result.Payouts, 3)
	requireMoney(t, 45, result.TotalDistributed)
	requireMoney(t, 20, store.users[uplines[0]].Balance)
	assert.Equal(t, 3, store.commits)
}

func TestDistributeConflictBudgetExhausted(t *testing.T) {
	store, source, uplines := chainStore()
	store.conflicts = 10

	engine := NewEngine(store, DefaultRateTable(),
		WithMaxRetries(2), WithRetryDelay(time.Millisecond))
	_, err := engine.Distribute(context.Background(), "evt-doomed", source, money(100), TypeActivation)

	var distErr *DistributionError
	require.ErrorAs(t, err, &distErr)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "evt-doomed", distErr.EventID)
	assert.Equal(t, 3, distErr.Attempts)
	assert.Equal(t, 3, distErr.LevelsResolved)

	// Nothing was committed.
	assert.True(t, store.users[uplines[0]].Balance.IsZero())
	assert.Empty(t, store.ledger)
}

func TestDistributeRecoversAfterFailedAttempt(t *testing.T) {
	store, source, uplines := chainStore()
	store.conflicts = 10

	engine := NewEngine(store, DefaultRateTable(),
		WithMaxRetries(2), WithRetryDelay(time.Millisecond))

	// The event's workflow committed, then every distribution attempt
	// lost its commit. Nothing may be left behind.
	_, err := engine.Distribute(context.Background(), "evt-recover", source, money(100), TypeActivation)
	require.ErrorIs(t, err, ErrConflict)
	assert.True(t, store.users[uplines[0]].Balance.IsZero())
	assert.Empty(t, store.ledger)

	// A later re-run of the same event pays the chain in full.
	store.conflicts = 0
	result, err := engine.Distribute(context.Background(), "evt-recover", source, money(100), TypeActivation)
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	requireMoney(t, 45, result.TotalDistributed)
	requireMoney(t, 20, store.users[uplines[0]].Balance)
	requireMoney(t, 15, store.users[uplines[1]].Balance)
	requireMoney(t, 10, store.users[uplines[2]].Balance)

	// Once paid, further re-runs are no-ops.
	again, err := engine.Distribute(context.Background(), "evt-recover", source, money(100), TypeActivation)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	requireMoney(t, 20, store.users[uplines[0]].Balance)
}

func TestDistributeStorageErrorNotRetried(t *testing.T) {
	_, source, _ := chainStore()

	failing := &failingStore{err: ErrUnavailable}
	engine := NewEngine(failing, DefaultRateTable(), WithRetryDelay(time.Millisecond))

	_, err := engine.Distribute(context.Background(), "evt-down", source, money(100), TypeActivation)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, failing.calls)
}

type failingStore struct {
	err   error
	calls int
}

func (f *failingStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	f.calls++
	return f.err
}

func TestDistributeConcurrentEvents(t *testing.T) {
	store, source, uplines := chainStore()
	engine := NewEngine(store, DefaultRateTable(), WithRetryDelay(time.Millisecond))

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Distribute(context.Background(),
				fmt.Sprintf("evt-conc-%d", i), source, money(100), TypeActivation)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "distribution %d", i)
	}
	requireMoney(t, 20*n, store.users[uplines[0]].Balance)
	requireMoney(t, 15*n, store.users[uplines[1]].Balance)
	requireMoney(t, 10*n, store.users[uplines[2]].Balance)
	require.Len(t, store.ledger, 3*n)
}
