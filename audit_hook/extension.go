// Package audithook bridges engine lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit system. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/plugin"
	"github.com/xraph/abacus/record"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnCatalogSeeded        = (*Extension)(nil)
	_ plugin.OnBalanceDebited       = (*Extension)(nil)
	_ plugin.OnInsufficientBalance  = (*Extension)(nil)
	_ plugin.OnRefundIssued         = (*Extension)(nil)
	_ plugin.OnTransactionCompleted = (*Extension)(nil)
	_ plugin.OnTransactionFailed    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry in the audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges engine lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnCatalogSeeded implements plugin.OnCatalogSeeded.
func (e *Extension) OnCatalogSeeded(ctx context.Context, ops []*operation.Operation) error {
	costs := make(map[string]int64, len(ops))
	for _, op := range ops {
		costs[op.Kind.String()] = op.Cost
	}
	return e.record(ctx, ActionCatalogSeeded, SeverityInfo, OutcomeSuccess,
		ResourceOperation, "", CategoryCatalog, nil,
		"operations", len(ops),
		"costs", costs,
	)
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnBalanceDebited implements plugin.OnBalanceDebited.
func (e *Extension) OnBalanceDebited(ctx context.Context, acct *account.Account, op *operation.Operation) error {
	return e.record(ctx, ActionBalanceDebited, SeverityInfo, OutcomeSuccess,
		ResourceAccount, acct.ID.String(), CategoryBilling, nil,
		"operation", op.Kind.String(),
		"amount", op.Cost,
		"balance", acct.Balance,
	)
}

// OnInsufficientBalance implements plugin.OnInsufficientBalance.
func (e *Extension) OnInsufficientBalance(ctx context.Context, accountID uuid.UUID, op *operation.Operation) error {
	return e.record(ctx, ActionBalanceInsufficient, SeverityWarning, OutcomeFailure,
		ResourceAccount, accountID.String(), CategoryBilling, nil,
		"operation", op.Kind.String(),
		"amount", op.Cost,
	)
}

// OnRefundIssued implements plugin.OnRefundIssued.
func (e *Extension) OnRefundIssued(ctx context.Context, acct *account.Account, amount int64, cause error) error {
	return e.record(ctx, ActionBalanceRefunded, SeverityWarning, OutcomeSuccess,
		ResourceAccount, acct.ID.String(), CategoryBilling, cause,
		"amount", amount,
		"balance", acct.Balance,
	)
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionCompleted implements plugin.OnTransactionCompleted.
func (e *Extension) OnTransactionCompleted(ctx context.Context, rec *record.Record, elapsed time.Duration) error {
	return e.record(ctx, ActionTransactionCompleted, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, rec.ID.String(), CategoryTransaction, nil,
		"account_id", rec.AccountID.String(),
		"operation", rec.Kind.String(),
		"cost", rec.Cost,
		"balance_after", rec.BalanceAfter,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnTransactionFailed implements plugin.OnTransactionFailed.
func (e *Extension) OnTransactionFailed(ctx context.Context, step, operationName string, err error) error {
	severity := SeverityWarning
	if step == "persist_record" {
		severity = SeverityCritical
	}
	return e.record(ctx, ActionTransactionFailed, severity, OutcomeFailure,
		ResourceTransaction, "", CategoryTransaction, err,
		"step", step,
		"operation", operationName,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
