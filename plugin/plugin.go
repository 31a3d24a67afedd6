// Package plugin provides lifecycle hooks for the abacus engine.
// Plugins implement any subset of the hook interfaces below.
package plugin

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/record"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnCatalogSeeded is called after Start writes new or repriced operations.
type OnCatalogSeeded interface {
	Plugin
	OnCatalogSeeded(ctx context.Context, ops []*operation.Operation) error
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnBalanceDebited is called after a successful debit, before computation.
type OnBalanceDebited interface {
	Plugin
	OnBalanceDebited(ctx context.Context, acct *account.Account, op *operation.Operation) error
}

// OnInsufficientBalance is called when a debit is refused.
type OnInsufficientBalance interface {
	Plugin
	OnInsufficientBalance(ctx context.Context, accountID uuid.UUID, op *operation.Operation) error
}

// OnRefundIssued is called after a compensating credit.
type OnRefundIssued interface {
	Plugin
	OnRefundIssued(ctx context.Context, acct *account.Account, amount int64, cause error) error
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionCompleted is called after a record is persisted.
type OnTransactionCompleted interface {
	Plugin
	OnTransactionCompleted(ctx context.Context, rec *record.Record, elapsed time.Duration) error
}

// OnTransactionFailed is called when an execution stops at step with err.
// operationName is the name as requested by the caller.
type OnTransactionFailed interface {
	Plugin
	OnTransactionFailed(ctx context.Context, step, operationName string, err error) error
}
