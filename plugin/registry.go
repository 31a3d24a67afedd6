package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/record"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onCatalogSeeded        []OnCatalogSeeded
	onBalanceDebited       []OnBalanceDebited
	onInsufficientBalance  []OnInsufficientBalance
	onRefundIssued         []OnRefundIssued
	onTransactionCompleted []OnTransactionCompleted
	onTransactionFailed    []OnTransactionFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnCatalogSeeded); ok {
		r.onCatalogSeeded = append(r.onCatalogSeeded, v)
	}
	if v, ok := p.(OnBalanceDebited); ok {
		r.onBalanceDebited = append(r.onBalanceDebited, v)
	}
	if v, ok := p.(OnInsufficientBalance); ok {
		r.onInsufficientBalance = append(r.onInsufficientBalance, v)
	}
	if v, ok := p.(OnRefundIssued); ok {
		r.onRefundIssued = append(r.onRefundIssued, v)
	}
	if v, ok := p.(OnTransactionCompleted); ok {
		r.onTransactionCompleted = append(r.onTransactionCompleted, v)
	}
	if v, ok := p.(OnTransactionFailed); ok {
		r.onTransactionFailed = append(r.onTransactionFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnCatalogSeeded", reflect.TypeOf((*OnCatalogSeeded)(nil)).Elem()},
	{"OnBalanceDebited", reflect.TypeOf((*OnBalanceDebited)(nil)).Elem()},
	{"OnInsufficientBalance", reflect.TypeOf((*OnInsufficientBalance)(nil)).Elem()},
	{"OnRefundIssued", reflect.TypeOf((*OnRefundIssued)(nil)).Elem()},
	{"OnTransactionCompleted", reflect.TypeOf((*OnTransactionCompleted)(nil)).Elem()},
	{"OnTransactionFailed", reflect.TypeOf((*OnTransactionFailed)(nil)).Elem()},
}

// implementedInterfaces lists the hook interfaces p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnInit", p.Name(), func() error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnShutdown", p.Name(), func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitCatalogSeeded emits a catalog seeded event.
func (r *Registry) EmitCatalogSeeded(ctx context.Context, ops []*operation.Operation) {
	r.mu.RLock()
	plugins := r.onCatalogSeeded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnCatalogSeeded", p.Name(), func() error {
			return p.OnCatalogSeeded(ctx, ops)
		})
	}
}

// EmitBalanceDebited emits a balance debited event.
func (r *Registry) EmitBalanceDebited(ctx context.Context, acct *account.Account, op *operation.Operation) {
	r.mu.RLock()
	plugins := r.onBalanceDebited
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnBalanceDebited", p.Name(), func() error {
			return p.OnBalanceDebited(ctx, acct, op)
		})
	}
}

// EmitInsufficientBalance emits a refused debit event.
func (r *Registry) EmitInsufficientBalance(ctx context.Context, accountID uuid.UUID, op *operation.Operation) {
	r.mu.RLock()
	plugins := r.onInsufficientBalance
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnInsufficientBalance", p.Name(), func() error {
			return p.OnInsufficientBalance(ctx, accountID, op)
		})
	}
}

// EmitRefundIssued emits a refund event.
func (r *Registry) EmitRefundIssued(ctx context.Context, acct *account.Account, amount int64, cause error) {
	r.mu.RLock()
	plugins := r.onRefundIssued
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnRefundIssued", p.Name(), func() error {
			return p.OnRefundIssued(ctx, acct, amount, cause)
		})
	}
}

// EmitTransactionCompleted emits a completed transaction event.
func (r *Registry) EmitTransactionCompleted(ctx context.Context, rec *record.Record, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onTransactionCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnTransactionCompleted", p.Name(), func() error {
			return p.OnTransactionCompleted(ctx, rec, elapsed)
		})
	}
}

// EmitTransactionFailed emits a failed transaction event.
func (r *Registry) EmitTransactionFailed(ctx context.Context, step, operationName string, err error) {
	r.mu.RLock()
	plugins := r.onTransactionFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnTransactionFailed", p.Name(), func() error {
			return p.OnTransactionFailed(ctx, step, operationName, err)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, hook, pluginName string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins never block the execution pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
