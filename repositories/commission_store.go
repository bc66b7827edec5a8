// repositories/commission_store.go
package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/skilltreehq/skilltree_backend/commission"
	"github.com/skilltreehq/skilltree_backend/models"
)

// CommissionStore implements commission.Store on MongoDB. Every
// distribution runs inside one multi-document transaction with snapshot
// reads and majority writes; the unique (eventId, recipientId, level)
// index on payouts enforces ledger idempotence.
type CommissionStore struct {
	client  *mongo.Client
	users   *mongo.Collection
	payouts *mongo.Collection
}

func NewCommissionStore(client *mongo.Client, db *mongo.Database) *CommissionStore {
	return &CommissionStore{
		client:  client,
		users:   db.Collection("users"),
		payouts: db.Collection("payouts"),
	}
}

func (s *CommissionStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx commission.Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: %v", commission.ErrUnavailable, err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	err = mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := session.StartTransaction(txnOpts); err != nil {
			return err
		}
		tx := &commissionTx{users: s.users, payouts: s.payouts}
		if err := fn(sc, tx); err != nil {
			_ = session.AbortTransaction(sc)
			return err
		}
		if err := session.CommitTransaction(sc); err != nil {
			_ = session.AbortTransaction(sc)
			return err
		}
		return nil
	})
	return mapTxError(err)
}

// mapTxError translates driver errors into the commission package's
// taxonomy: transient transaction labels become ErrConflict (retried by
// the engine), network failures become ErrUnavailable (not retried).
func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, commission.ErrConflict) || errors.Is(err, commission.ErrUnavailable) {
		return err
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		if serverErr.HasErrorLabel("TransientTransactionError") ||
			serverErr.HasErrorLabel("UnknownTransactionCommitResult") {
			return fmt.Errorf("%w: %v", commission.ErrConflict, err)
		}
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return fmt.Errorf("%w: %v", commission.ErrUnavailable, err)
	}
	return err
}

// commissionTx issues all reads and writes of one distribution attempt
// through the session context it receives.
type commissionTx struct {
	users   *mongo.Collection
	payouts *mongo.Collection
}

// userChainDoc is the projection of a user the engine cares about.
type userChainDoc struct {
	ID          primitive.ObjectID   `bson:"_id"`
	RecruiterID *primitive.ObjectID  `bson:"recruiterId,omitempty"`
	Uplines     []primitive.ObjectID `bson:"uplines,omitempty"`
	Status      string               `bson:"status"`
}

var chainProjection = bson.M{"_id": 1, "recruiterId": 1, "uplines": 1, "status": 1}

func (d *userChainDoc) record() *commission.UserRecord {
	return &commission.UserRecord{
		ID:          d.ID,
		RecruiterID: d.RecruiterID,
		Uplines:     d.Uplines,
		Active:      d.Status == models.StatusActive,
	}
}

func (t *commissionTx) FindUser(ctx context.Context, id primitive.ObjectID) (*commission.UserRecord, error) {
	var doc userChainDoc
	err := t.users.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(chainProjection)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, commission.ErrNotFound
	}
	if err != nil {
		return nil, mapTxError(err)
	}
	return doc.record(), nil
}

func (t *commissionTx) FindUsers(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*commission.UserRecord, error) {
	users := make(map[primitive.ObjectID]*commission.UserRecord, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	cursor, err := t.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(chainProjection))
	if err != nil {
		return nil, mapTxError(err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc userChainDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		users[doc.ID] = doc.record()
	}
	if err := cursor.Err(); err != nil {
		return nil, mapTxError(err)
	}
	return users, nil
}

func (t *commissionTx) ApplyIncrements(ctx context.Context, incs []commission.Increment) error {
	if len(incs) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(incs))
	for _, inc := range incs {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": inc.UserID}).
			SetUpdate(bson.M{"$inc": bson.M{inc.Field: inc.Delta.InexactFloat64()}}))
	}
	_, err := t.users.BulkWrite(ctx, writes)
	return mapTxError(err)
}

func (t *commissionTx) AppendPayouts(ctx context.Context, records []commission.PayoutRecord) ([]commission.PayoutRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	// Filter out triples that already exist within this snapshot; a
	// replayed event inserts nothing. Two racing first-time runs both
	// pass this check, but only one commit survives the unique index —
	// the loser surfaces as a conflict and re-reads on retry.
	ors := make([]bson.M, 0, len(records))
	for _, rec := range records {
		ors = append(ors, bson.M{
			"eventId":     rec.EventID,
			"recipientId": rec.RecipientID,
			"level":       rec.Level,
		})
	}
	cursor, err := t.payouts.Find(ctx, bson.M{"$or": ors},
		options.Find().SetProjection(bson.M{"eventId": 1, "recipientId": 1, "level": 1}))
	if err != nil {
		return nil, mapTxError(err)
	}
	defer cursor.Close(ctx)

	type payoutKey struct {
		eventID   string
		recipient primitive.ObjectID
		level     int
	}
	existing := make(map[payoutKey]bool)
	for cursor.Next(ctx) {
		var doc models.PayoutRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		existing[payoutKey{doc.EventID, doc.RecipientID, doc.Level}] = true
	}
	if err := cursor.Err(); err != nil {
		return nil, mapTxError(err)
	}

	var inserted []commission.PayoutRecord
	var docs []interface{}
	for _, rec := range records {
		if existing[payoutKey{rec.EventID, rec.RecipientID, rec.Level}] {
			continue
		}
		inserted = append(inserted, rec)
		docs = append(docs, models.PayoutRecord{
			EventID:     rec.EventID,
			EventType:   string(rec.EventType),
			SourceID:    rec.SourceID,
			RecipientID: rec.RecipientID,
			Level:       rec.Level,
			Amount:      rec.Amount.InexactFloat64(),
			CreatedAt:   rec.CreatedAt,
		})
	}
	if len(docs) == 0 {
		return nil, nil
	}
	if _, err := t.payouts.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %v", commission.ErrConflict, err)
		}
		return nil, mapTxError(err)
	}
	return inserted, nil
}
