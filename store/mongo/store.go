// Package mongo implements store.Store on MongoDB through grove.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/id"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/record"
	abacusstore "github.com/xraph/abacus/store"
)

// Collection name constants.
const (
	colAccounts   = "abacus_accounts"
	colOperations = "abacus_operations"
	colRecords    = "abacus_records"
)

// compile-time interface check
var _ abacusstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all abacus collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("abacus/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	if a.Balance < 0 {
		return fmt.Errorf("%w: negative opening balance", account.ErrInvalidAmount)
	}
	if a.CreatedAt.IsZero() {
		now := time.Now().UTC()
		a.CreatedAt, a.UpdatedAt = now, now
	}
	_, err := s.mdb.NewInsert(toAccountModel(a)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return account.ErrAccountExists
		}
		return fmt.Errorf("abacus/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("abacus/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

// Debit matches the account only while its balance covers amount and
// decrements it in the same document update.
func (s *Store) Debit(ctx context.Context, accountID uuid.UUID, amount int64) (*account.Account, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}

	filter := bson.M{
		"_id":     accountID.String(),
		"balance": bson.M{"$gte": amount},
	}
	a, err := s.incBalance(ctx, filter, -amount)
	if err != nil {
		if isNoDocuments(err) {
			if _, getErr := s.GetAccount(ctx, accountID); getErr != nil {
				return nil, getErr
			}
			return nil, account.ErrInsufficientBalance
		}
		return nil, fmt.Errorf("abacus/mongo: debit: %w", err)
	}
	return a, nil
}

func (s *Store) Credit(ctx context.Context, accountID uuid.UUID, amount int64) (*account.Account, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}

	a, err := s.incBalance(ctx, bson.M{"_id": accountID.String()}, amount)
	if err != nil {
		if isNoDocuments(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("abacus/mongo: credit: %w", err)
	}
	return a, nil
}

func (s *Store) incBalance(ctx context.Context, filter bson.M, delta int64) (*account.Account, error) {
	update := bson.M{
		"$inc": bson.M{"balance": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m accountModel
	if err := s.mdb.Collection(colAccounts).FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		return nil, err
	}
	return fromAccountModel(&m)
}

// ==================== Operation Store ====================

func (s *Store) GetOperationByKind(ctx context.Context, kind operation.Kind) (*operation.Operation, error) {
	var m operationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"kind": kind.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, operation.ErrOperationNotFound
		}
		return nil, fmt.Errorf("abacus/mongo: get operation: %w", err)
	}
	return fromOperationModel(&m)
}

func (s *Store) ListOperations(ctx context.Context) ([]*operation.Operation, error) {
	var models []operationModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "kind", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("abacus/mongo: list operations: %w", err)
	}

	result := make([]*operation.Operation, 0, len(models))
	for i := range models {
		op, err := fromOperationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, op)
	}
	return result, nil
}

// UpsertOperation keys on kind. The ID and creation time are written only
// when the document is first inserted.
func (s *Store) UpsertOperation(ctx context.Context, op *operation.Operation) error {
	m := toOperationModel(op)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"kind": m.Kind}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"cost":       m.Cost,
				"arity":      m.Arity,
				"updated_at": m.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"_id":        m.ID,
				"kind":       m.Kind,
				"created_at": m.CreatedAt,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("abacus/mongo: upsert operation: %w", err)
	}
	return nil
}

// ==================== Record Store ====================

func (s *Store) AppendRecord(ctx context.Context, r *record.Record) error {
	_, err := s.mdb.NewInsert(toRecordModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("abacus/mongo: append record: %w", err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, recordID id.RecordID) (*record.Record, error) {
	var m recordModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": recordID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, record.ErrRecordNotFound
		}
		return nil, fmt.Errorf("abacus/mongo: get record: %w", err)
	}
	return fromRecordModel(&m)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all abacus collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colOperations: {
			{
				Keys:    bson.D{{Key: "kind", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colRecords: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "operation_id", Value: 1}}},
		},
	}
}
