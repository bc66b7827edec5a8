// commission/store.go
package commission

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Type identifies the kind of monetary event that triggers a distribution.
type Type string

const (
	TypeActivation Type = "activation"
	TypeCourseSale Type = "course-sale"
)

// Balance fields an Increment may target.
const (
	FieldBalance     = "balance"
	FieldTotalEarned = "totalEarned"
)

var (
	// ErrNotFound is returned by a UserReader when the requested user
	// does not exist.
	ErrNotFound = errors.New("commission: user not found")

	// ErrConflict signals that a transactional commit lost a race with a
	// concurrent writer. The engine retries these with backoff.
	ErrConflict = errors.New("commission: transaction conflict")

	// ErrUnavailable signals the backing store cannot be reached. It is
	// propagated immediately; retry policy belongs to the caller.
	ErrUnavailable = errors.New("commission: storage unavailable")
)

// UserRecord is the slice of a user the engine needs: the recruiter
// back-reference, the precomputed upline cache and the activity flag that
// gates commission eligibility.
type UserRecord struct {
	ID          primitive.ObjectID
	RecruiterID *primitive.ObjectID
	Uplines     []primitive.ObjectID
	Active      bool
}

// Increment is a single balance-field delta applied to one user.
type Increment struct {
	UserID primitive.ObjectID
	Field  string
	Delta  decimal.Decimal
}

// PayoutRecord is one immutable ledger entry: a single payout to a single
// recipient at a single level of one event. At most one record may exist
// per (EventID, RecipientID, Level) triple.
type PayoutRecord struct {
	EventID     string
	EventType   Type
	SourceID    primitive.ObjectID
	RecipientID primitive.ObjectID
	Level       int
	Amount      decimal.Decimal
	CreatedAt   time.Time
}

// UserReader provides read access to user records. Implementations reading
// inside a transaction must observe the transaction's snapshot.
type UserReader interface {
	FindUser(ctx context.Context, id primitive.ObjectID) (*UserRecord, error)
	FindUsers(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*UserRecord, error)
}

// Tx is the unit-of-work handle the engine operates on. All writes issued
// through one Tx commit together or not at all.
type Tx interface {
	UserReader

	// ApplyIncrements applies every delta to its user's field.
	ApplyIncrements(ctx context.Context, incs []Increment) error

	// AppendPayouts inserts the given ledger records, skipping any whose
	// (EventID, RecipientID, Level) triple already exists, and returns the
	// subset that was actually inserted.
	AppendPayouts(ctx context.Context, records []PayoutRecord) ([]PayoutRecord, error)
}

// Store runs a function inside an atomic transaction. If fn returns an
// error, or the commit fails, none of the writes issued through the Tx
// take effect. A commit lost to a concurrent writer surfaces as
// ErrConflict.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
