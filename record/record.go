// Package record defines the append-only audit entry written for every
// successful execution.
package record

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/abacus/id"
	"github.com/xraph/abacus/operation"
)

var (
	ErrPersistence    = errors.New("abacus: failed to persist record")
	ErrRecordNotFound = errors.New("abacus: record not found")
)

// Record is one successful debit-and-compute execution. Cost is the price
// charged at execution time and BalanceAfter is the balance left by the
// debit.
type Record struct {
	ID           id.RecordID    `json:"id"`
	OperationID  id.OperationID `json:"operation_id"`
	AccountID    uuid.UUID      `json:"account_id"`
	Kind         operation.Kind `json:"type"`
	Cost         int64          `json:"cost"`
	BalanceAfter int64          `json:"balance_after"`
	Result       string         `json:"result"`
	CreatedAt    time.Time      `json:"created_at"`
	Deleted      bool           `json:"deleted"`
}

// Store appends and reads records. Records are never updated.
type Store interface {
	AppendRecord(ctx context.Context, r *Record) error
	GetRecord(ctx context.Context, recordID id.RecordID) (*Record, error)
}
