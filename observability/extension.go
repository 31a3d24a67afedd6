// Package observability provides a metrics extension that records engine
// lifecycle events through a MetricFactory.
package observability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/arith"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/plugin"
	"github.com/xraph/abacus/record"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnCatalogSeeded        = (*MetricsExtension)(nil)
	_ plugin.OnBalanceDebited       = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientBalance  = (*MetricsExtension)(nil)
	_ plugin.OnRefundIssued         = (*MetricsExtension)(nil)
	_ plugin.OnTransactionCompleted = (*MetricsExtension)(nil)
	_ plugin.OnTransactionFailed    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to track executions and balance movement.
type MetricsExtension struct {
	factory MetricFactory

	// Catalog metrics
	CatalogSeeded Counter

	// Balance metrics
	BalanceDebited      Counter
	CreditsCharged      Counter
	BalanceInsufficient Counter
	Refunds             Counter
	CreditsRefunded     Counter

	// Transaction metrics
	TransactionsCompleted Counter
	TransactionLatency    Histogram
	BalanceAfter          Histogram
	operationCompleted    map[operation.Kind]Counter

	// Failure metrics
	TransactionsFailed Counter
	UpstreamErrors     Counter
	PersistenceErrors  Counter
	stepFailed         map[string]Counter
}

// failureSteps are the execution steps failures are broken down by.
var failureSteps = []string{
	"resolve_identity",
	"load_account",
	"resolve_operation",
	"validate",
	"debit_balance",
	"compute",
	"persist_record",
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions, or NewPrometheusFactory standalone.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		// Catalog metrics
		CatalogSeeded: factory.Counter("abacus.catalog.seeded"),

		// Balance metrics
		BalanceDebited:      factory.Counter("abacus.balance.debited"),
		CreditsCharged:      factory.Counter("abacus.balance.credits_charged"),
		BalanceInsufficient: factory.Counter("abacus.balance.insufficient"),
		Refunds:             factory.Counter("abacus.balance.refunds"),
		CreditsRefunded:     factory.Counter("abacus.balance.credits_refunded"),

		// Transaction metrics
		TransactionsCompleted: factory.Counter("abacus.transaction.completed"),
		TransactionLatency:    factory.Histogram("abacus.transaction.latency_ms"),
		BalanceAfter:          factory.Histogram("abacus.transaction.balance_after"),
		operationCompleted:    make(map[operation.Kind]Counter, len(operation.Kinds)),

		// Failure metrics
		TransactionsFailed: factory.Counter("abacus.transaction.failed"),
		UpstreamErrors:     factory.Counter("abacus.upstream.errors"),
		PersistenceErrors:  factory.Counter("abacus.store.errors"),
		stepFailed:         make(map[string]Counter, len(failureSteps)),
	}

	for _, k := range operation.Kinds {
		m.operationCompleted[k] = factory.Counter("abacus.operation." + k.String() + ".completed")
	}
	for _, step := range failureSteps {
		m.stepFailed[step] = factory.Counter("abacus.transaction.failed." + step)
	}

	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// OnCatalogSeeded implements plugin.OnCatalogSeeded.
func (m *MetricsExtension) OnCatalogSeeded(_ context.Context, ops []*operation.Operation) error {
	m.CatalogSeeded.Add(float64(len(ops)))
	return nil
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnBalanceDebited implements plugin.OnBalanceDebited.
func (m *MetricsExtension) OnBalanceDebited(_ context.Context, _ *account.Account, op *operation.Operation) error {
	m.BalanceDebited.Inc()
	m.CreditsCharged.Add(float64(op.Cost))
	return nil
}

// OnInsufficientBalance implements plugin.OnInsufficientBalance.
func (m *MetricsExtension) OnInsufficientBalance(_ context.Context, _ uuid.UUID, _ *operation.Operation) error {
	m.BalanceInsufficient.Inc()
	return nil
}

// OnRefundIssued implements plugin.OnRefundIssued.
func (m *MetricsExtension) OnRefundIssued(_ context.Context, _ *account.Account, amount int64, _ error) error {
	m.Refunds.Inc()
	m.CreditsRefunded.Add(float64(amount))
	return nil
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionCompleted implements plugin.OnTransactionCompleted.
func (m *MetricsExtension) OnTransactionCompleted(_ context.Context, rec *record.Record, elapsed time.Duration) error {
	m.TransactionsCompleted.Inc()
	m.TransactionLatency.Observe(float64(elapsed.Milliseconds()))
	m.BalanceAfter.Observe(float64(rec.BalanceAfter))
	if c, ok := m.operationCompleted[rec.Kind]; ok {
		c.Inc()
	}
	return nil
}

// OnTransactionFailed implements plugin.OnTransactionFailed.
func (m *MetricsExtension) OnTransactionFailed(_ context.Context, step, _ string, err error) error {
	m.TransactionsFailed.Inc()
	if c, ok := m.stepFailed[step]; ok {
		c.Inc()
	}
	switch {
	case errors.Is(err, arith.ErrUpstreamUnavailable):
		m.UpstreamErrors.Inc()
	case errors.Is(err, record.ErrPersistence):
		m.PersistenceErrors.Inc()
	}
	return nil
}
