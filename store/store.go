// Package store defines the unified persistence interface for accounts,
// operations and records. Backends live in subpackages.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/id"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/record"
)

// Store is the unified storage interface for all abacus entities.
// Methods are declared explicitly rather than by embedding so each backend
// reads as one contract.
type Store interface {
	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error)
	Debit(ctx context.Context, accountID uuid.UUID, amount int64) (*account.Account, error)
	Credit(ctx context.Context, accountID uuid.UUID, amount int64) (*account.Account, error)

	// Operation methods
	GetOperationByKind(ctx context.Context, kind operation.Kind) (*operation.Operation, error)
	ListOperations(ctx context.Context) ([]*operation.Operation, error)
	UpsertOperation(ctx context.Context, op *operation.Operation) error

	// Record methods
	AppendRecord(ctx context.Context, r *record.Record) error
	GetRecord(ctx context.Context, recordID id.RecordID) (*record.Record, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// SettleFunc builds the record for a debit that has been applied but not
// yet committed. A non-nil error abandons the charge.
type SettleFunc func(debited *account.Account) (*record.Record, error)

// Charger is implemented by stores that can debit an account and append the
// resulting record atomically. A failed Charge leaves neither the debit nor
// the record behind, so callers need no compensating credit.
type Charger interface {
	Charge(ctx context.Context, accountID uuid.UUID, amount int64, settle SettleFunc) (*account.Account, *record.Record, error)
}

// Compile-time checks that Store satisfies every domain contract.
var (
	_ account.Ledger  = Store(nil)
	_ operation.Store = Store(nil)
	_ record.Store    = Store(nil)
)
