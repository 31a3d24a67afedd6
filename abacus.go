package abacus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/arith"
	"github.com/xraph/abacus/id"
	"github.com/xraph/abacus/identity"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/plugin"
	"github.com/xraph/abacus/record"
	"github.com/xraph/abacus/store"
)

var tracer = otel.Tracer("github.com/xraph/abacus")

// Engine executes billable operations: it resolves the caller, validates the
// request, debits the account, computes the result and appends a record.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	verifier  identity.Verifier
	generator arith.Generator
	mode      arith.Mode
	costs     operation.Costs
	refund    bool
	migrate   bool
	now       func() time.Time

	resolver *identity.Resolver
	catalog  *operation.Catalog
	calc     *arith.Calculator

	started atomic.Bool
}

// New creates a new Engine. Without WithVerifier, credentials are parsed
// but their signatures are not checked.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		verifier: identity.NewUnverifiedVerifier(),
		mode:     arith.ModeDecimal,
		costs:    operation.DefaultCosts(),
		refund:   true,
		migrate:  true,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	e.resolver = identity.NewResolver(e.verifier)
	e.catalog = operation.NewCatalog(s, e.costs)
	e.calc = arith.NewCalculator(arith.WithMode(e.mode), arith.WithGenerator(e.generator))

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithVerifier sets the credential verifier.
func WithVerifier(v identity.Verifier) Option {
	return func(e *Engine) { e.verifier = v }
}

// WithGenerator sets the random string source.
func WithGenerator(g arith.Generator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithMode sets the numeric mode.
func WithMode(m arith.Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithCosts sets the per-operation price list.
func WithCosts(c operation.Costs) Option {
	return func(e *Engine) { e.costs = c }
}

// WithRefundOnFailure controls whether a debit is credited back when the
// computation or the record append fails after charging. Enabled by default.
// Stores implementing store.Charger roll the debit back instead.
func WithRefundOnFailure(enabled bool) Option {
	return func(e *Engine) { e.refund = enabled }
}

// WithAutoMigrate controls whether Start migrates the store. Enabled by
// default.
func WithAutoMigrate(enabled bool) Option {
	return func(e *Engine) { e.migrate = enabled }
}

// WithClock sets the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Start migrates the store, seeds the operation catalog and initializes
// plugins. Execute fails with ErrNotStarted until Start returns nil.
func (e *Engine) Start(ctx context.Context) error {
	if e.migrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	seeded, err := e.catalog.Seed(ctx)
	if err != nil {
		return fmt.Errorf("abacus: seed catalog: %w", err)
	}
	if len(seeded) > 0 {
		e.plugins.EmitCatalogSeeded(ctx, seeded)
	}

	e.plugins.EmitInit(ctx, e)
	e.started.Store(true)

	e.logger.Info("abacus started",
		"mode", e.mode.String(),
		"seeded_operations", len(seeded),
		"refund_on_failure", e.refund,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	e.started.Store(false)
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// ──────────────────────────────────────────────────
// Execution
// ──────────────────────────────────────────────────

// Request is one operation request. A nil operand is absent.
type Request struct {
	Credential string
	Operation  string
	Operand1   *decimal.Decimal
	Operand2   *decimal.Decimal
}

// Execute runs req to completion. On success the returned record has been
// appended to the store. Before Start, and after Stop, Execute returns the
// bare ErrNotStarted without touching the store. Every other failure is a
// *StepError wrapping one of the package sentinels.
//
// Request shape and operand checks run before the debit, so a request that
// can only fail on its own inputs is never charged.
func (e *Engine) Execute(ctx context.Context, req Request) (rec *record.Record, err error) {
	ctx, span := tracer.Start(ctx, "abacus.Execute",
		trace.WithAttributes(attribute.String("abacus.operation", req.Operation)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.plugins.EmitTransactionFailed(ctx, string(FailedStep(err)), req.Operation, err)
			return
		}
		span.SetAttributes(
			attribute.String("abacus.record_id", rec.ID.String()),
			attribute.Int64("abacus.balance_after", rec.BalanceAfter),
		)
		e.plugins.EmitTransactionCompleted(ctx, rec, time.Since(start))
	}()

	if !e.started.Load() {
		return nil, ErrNotStarted
	}

	accountID, err := e.resolver.Resolve(ctx, req.Credential)
	if err != nil {
		return nil, fail(StepResolveIdentity, err)
	}
	span.SetAttributes(attribute.String("abacus.account_id", accountID.String()))

	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, fail(StepLoadAccount, storeErr(err))
	}

	op, err := e.catalog.Resolve(ctx, req.Operation, req.Operand1 != nil, req.Operand2 != nil)
	if err != nil {
		return nil, fail(StepResolveOperation, storeErr(err))
	}

	a, b := operand(req.Operand1), operand(req.Operand2)
	if err := e.calc.Validate(op.Kind, a, b); err != nil {
		return nil, fail(StepValidate, err)
	}

	if charger, ok := e.store.(store.Charger); ok {
		return e.charge(ctx, charger, accountID, op, a, b)
	}

	acct, err := e.store.Debit(ctx, accountID, op.Cost)
	if err != nil {
		return nil, e.debitFailed(ctx, accountID, op, err)
	}
	e.plugins.EmitBalanceDebited(ctx, acct, op)

	result, err := e.calc.Compute(ctx, op.Kind, a, b)
	if err != nil {
		e.refundDebit(ctx, acct, op, err)
		return nil, fail(StepCompute, err)
	}

	rec = e.newRecord(acct, op, result)
	if err := e.store.AppendRecord(ctx, rec); err != nil {
		e.logAppendFailed(accountID, op, err)
		e.refundDebit(ctx, acct, op, err)
		return nil, fail(StepPersistRecord, fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	return rec, nil
}

// charge runs the debit, computation and record append as one store
// transaction. A failure after the debit rolls it back, so nothing is
// refunded.
func (e *Engine) charge(ctx context.Context, charger store.Charger, accountID uuid.UUID, op *operation.Operation, a, b decimal.Decimal) (*record.Record, error) {
	var (
		debited    bool
		computeErr error
	)
	acct, rec, err := charger.Charge(ctx, accountID, op.Cost, func(acct *account.Account) (*record.Record, error) {
		debited = true
		result, err := e.calc.Compute(ctx, op.Kind, a, b)
		if err != nil {
			computeErr = err
			return nil, err
		}
		return e.newRecord(acct, op, result), nil
	})
	switch {
	case err == nil:
	case !debited:
		return nil, e.debitFailed(ctx, accountID, op, err)
	case computeErr != nil:
		return nil, fail(StepCompute, computeErr)
	default:
		e.logAppendFailed(accountID, op, err)
		return nil, fail(StepPersistRecord, fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	e.plugins.EmitBalanceDebited(ctx, acct, op)
	return rec, nil
}

func (e *Engine) debitFailed(ctx context.Context, accountID uuid.UUID, op *operation.Operation, err error) error {
	if errors.Is(err, account.ErrInsufficientBalance) {
		e.plugins.EmitInsufficientBalance(ctx, accountID, op)
	}
	return fail(StepDebitBalance, storeErr(err))
}

func (e *Engine) newRecord(acct *account.Account, op *operation.Operation, result string) *record.Record {
	return &record.Record{
		ID:           id.NewRecordID(),
		OperationID:  op.ID,
		AccountID:    acct.ID,
		Kind:         op.Kind,
		Cost:         op.Cost,
		BalanceAfter: acct.Balance,
		Result:       result,
		CreatedAt:    e.now(),
	}
}

func (e *Engine) logAppendFailed(accountID uuid.UUID, op *operation.Operation, err error) {
	e.logger.Error("abacus: append record failed",
		"account_id", accountID,
		"operation", op.Kind.String(),
		"error", err,
	)
}

// ExecuteStrings parses decimal operands and calls Execute. An empty string
// is an absent operand.
func (e *Engine) ExecuteStrings(ctx context.Context, credential, operationName, operand1, operand2 string) (*record.Record, error) {
	a, err := parseOperand(operand1)
	if err != nil {
		return nil, fail(StepValidate, err)
	}
	b, err := parseOperand(operand2)
	if err != nil {
		return nil, fail(StepValidate, err)
	}
	return e.Execute(ctx, Request{
		Credential: credential,
		Operation:  operationName,
		Operand1:   a,
		Operand2:   b,
	})
}

// Operations lists the catalog ordered by kind.
func (e *Engine) Operations(ctx context.Context) ([]*operation.Operation, error) {
	return e.catalog.List(ctx)
}

// Balance returns the account the credential belongs to.
func (e *Engine) Balance(ctx context.Context, credential string) (*account.Account, error) {
	accountID, err := e.resolver.Resolve(ctx, credential)
	if err != nil {
		return nil, fail(StepResolveIdentity, err)
	}
	a, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fail(StepLoadAccount, storeErr(err))
	}
	return a, nil
}

// refundDebit credits op.Cost back after a post-debit failure. The credit
// and the refund event run on a context detached from cancellation, so a
// timed-out request is still refunded and reported.
func (e *Engine) refundDebit(ctx context.Context, acct *account.Account, op *operation.Operation, cause error) {
	if !e.refund {
		return
	}

	ctx = context.WithoutCancel(ctx)
	refunded, err := e.store.Credit(ctx, acct.ID, op.Cost)
	if err != nil {
		e.logger.Error("abacus: refund failed",
			"account_id", acct.ID,
			"amount", op.Cost,
			"cause", cause,
			"error", err,
		)
		return
	}

	e.logger.Warn("abacus: debit refunded",
		"account_id", acct.ID,
		"operation", op.Kind.String(),
		"amount", op.Cost,
		"cause", cause,
	)
	e.plugins.EmitRefundIssued(ctx, refunded, op.Cost, cause)
}

func fail(step Step, err error) error {
	return &StepError{Step: step, Err: err}
}

// domainErrors are the sentinels stores return for expected outcomes.
var domainErrors = []error{
	account.ErrAccountNotFound,
	account.ErrInsufficientBalance,
	account.ErrInvalidAmount,
	operation.ErrUnknownOperation,
	operation.ErrMissingOperand,
	operation.ErrUnexpectedOperand,
}

// storeErr passes domain sentinels through and marks anything else as a
// persistence failure.
func storeErr(err error) error {
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func operand(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func parseOperand(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidOperand, s)
	}
	return &d, nil
}
