package abacus_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/xraph/abacus"
	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/arith"
	"github.com/xraph/abacus/identity"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/record"
	"github.com/xraph/abacus/store"
	"github.com/xraph/abacus/store/memory"
)

var secret = []byte("test-secret")

func token(t *testing.T, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + signed
}

type fixture struct {
	engine *abacus.Engine
	store  *memory.Store
	id     uuid.UUID
	token  string
}

func newFixture(t *testing.T, balance int64, opts ...abacus.Option) *fixture {
	t.Helper()

	costs := operation.DefaultCosts()
	costs.Addition = 10
	costs.SquareRoot = 10

	s := memory.New()
	base := []abacus.Option{
		abacus.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		abacus.WithVerifier(identity.NewHMACVerifier(secret)),
		abacus.WithCosts(costs),
		abacus.WithGenerator(arith.GeneratorFunc(func(_ context.Context, n int) (string, error) {
			return "abcdefghij", nil
		})),
	}
	e := abacus.New(s, append(base, opts...)...)

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Stop() })

	accountID := uuid.New()
	if err := s.CreateAccount(ctx, &account.Account{ID: accountID, Balance: balance}); err != nil {
		t.Fatal(err)
	}

	return &fixture{engine: e, store: s, id: accountID, token: token(t, accountID.String())}
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), f.id)
	if err != nil {
		t.Fatal(err)
	}
	return a.Balance
}

func TestExecuteAddition(t *testing.T) {
	f := newFixture(t, 100)

	rec, err := f.engine.ExecuteStrings(context.Background(), f.token, "addition", "5", "5")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Result != "10" {
		t.Errorf("result = %q, want %q", rec.Result, "10")
	}
	if rec.BalanceAfter != 90 {
		t.Errorf("balance after = %d, want 90", rec.BalanceAfter)
	}
	if rec.Cost != 10 || rec.AccountID != f.id || rec.Kind != operation.KindAddition {
		t.Errorf("unexpected record %+v", rec)
	}
	if got := f.balance(t); got != 90 {
		t.Errorf("stored balance = %d, want 90", got)
	}

	stored, err := f.store.GetRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Result != "10" {
		t.Errorf("stored result = %q", stored.Result)
	}
}

func TestExecuteResults(t *testing.T) {
	tests := []struct {
		op   string
		a, b string
		want string
	}{
		{"addition", "10.5", "20.3", "30,8"},
		{"subtraction", "1", "0.25", "0,75"},
		{"multiplication", "-3", "1.5", "-4,5"},
		{"division", "1", "3", "0,333333333333333"},
		{"square_root", "4", "", "2"},
		{"random_string", "1", "", "abcdefghij"},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			f := newFixture(t, 100)
			rec, err := f.engine.ExecuteStrings(context.Background(), f.token, tt.op, tt.a, tt.b)
			if err != nil {
				t.Fatal(err)
			}
			if rec.Result != tt.want {
				t.Errorf("result = %q, want %q", rec.Result, tt.want)
			}
		})
	}
}

func TestExecuteInsufficientBalance(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.engine.ExecuteStrings(context.Background(), f.token, "addition", "5", "5")
	if !errors.Is(err, abacus.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if step := abacus.FailedStep(err); step != abacus.StepDebitBalance {
		t.Errorf("step = %q, want %q", step, abacus.StepDebitBalance)
	}
	if got := f.balance(t); got != 5 {
		t.Errorf("balance = %d, want 5", got)
	}
	if n := len(f.store.Records()); n != 0 {
		t.Errorf("records = %d, want 0", n)
	}
}

func TestExecuteRejectsBeforeDebit(t *testing.T) {
	tests := map[string]struct {
		op   string
		a, b string
		want error
		step abacus.Step
	}{
		"unknown operation": {"power", "2", "3", abacus.ErrUnknownOperation, abacus.StepResolveOperation},
		"missing operand":   {"addition", "2", "", abacus.ErrMissingOperand, abacus.StepResolveOperation},
		"extra operand":     {"square_root", "2", "3", abacus.ErrUnexpectedOperand, abacus.StepResolveOperation},
		"negative root":     {"square_root", "-9", "", abacus.ErrNegativeSquareRoot, abacus.StepValidate},
		"division by zero":  {"division", "1", "0", abacus.ErrDivisionByZero, abacus.StepValidate},
		"bad count":         {"random_string", "1.5", "", abacus.ErrInvalidCount, abacus.StepValidate},
		"not a number":      {"addition", "five", "5", abacus.ErrInvalidOperand, abacus.StepValidate},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 100)
			_, err := f.engine.ExecuteStrings(context.Background(), f.token, tt.op, tt.a, tt.b)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if step := abacus.FailedStep(err); step != tt.step {
				t.Errorf("step = %q, want %q", step, tt.step)
			}
			if got := f.balance(t); got != 100 {
				t.Errorf("balance = %d, want 100", got)
			}
		})
	}
}

func TestExecuteIdentityFailures(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.engine.ExecuteStrings(ctx, "Bearer not-a-token", "addition", "1", "1")
	if !errors.Is(err, abacus.ErrInvalidCredential) {
		t.Errorf("expected ErrInvalidCredential, got %v", err)
	}
	if abacus.StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("status = %d", abacus.StatusCode(err))
	}

	_, err = f.engine.ExecuteStrings(ctx, token(t, uuid.NewString()), "addition", "1", "1")
	if !errors.Is(err, abacus.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if step := abacus.FailedStep(err); step != abacus.StepLoadAccount {
		t.Errorf("step = %q, want %q", step, abacus.StepLoadAccount)
	}
}

func TestExecuteUpstreamFailureRefunds(t *testing.T) {
	down := arith.GeneratorFunc(func(context.Context, int) (string, error) {
		return "", errors.New("connection refused")
	})

	t.Run("refund", func(t *testing.T) {
		f := newFixture(t, 100, abacus.WithGenerator(down))
		_, err := f.engine.ExecuteStrings(context.Background(), f.token, "random_string", "3", "")
		if !errors.Is(err, abacus.ErrUpstreamUnavailable) {
			t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
		}
		if step := abacus.FailedStep(err); step != abacus.StepCompute {
			t.Errorf("step = %q, want %q", step, abacus.StepCompute)
		}
		if got := f.balance(t); got != 100 {
			t.Errorf("balance = %d, want 100", got)
		}
	})

	t.Run("no refund", func(t *testing.T) {
		f := newFixture(t, 100, abacus.WithGenerator(down), abacus.WithRefundOnFailure(false))
		_, err := f.engine.ExecuteStrings(context.Background(), f.token, "random_string", "3", "")
		if !errors.Is(err, abacus.ErrUpstreamUnavailable) {
			t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
		}
		if got := f.balance(t); got != 95 {
			t.Errorf("balance = %d, want 95", got)
		}
	})
}

func TestExecutePersistenceFailure(t *testing.T) {
	f := newFixture(t, 100)
	f.store.FailAppends(errors.New("disk full"))

	_, err := f.engine.ExecuteStrings(context.Background(), f.token, "addition", "1", "2")
	if !errors.Is(err, abacus.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if step := abacus.FailedStep(err); step != abacus.StepPersistRecord {
		t.Errorf("step = %q, want %q", step, abacus.StepPersistRecord)
	}
	if abacus.StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("status = %d", abacus.StatusCode(err))
	}
	if got := f.balance(t); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}
}

func TestExecuteConcurrentDebits(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, short int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.ExecuteStrings(ctx, f.token, "addition", "1", "1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, abacus.ErrInsufficientBalance):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 10 || short != 15 {
		t.Errorf("ok = %d, short = %d; want 10 and 15", ok, short)
	}
	if got := f.balance(t); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}

	records := f.store.Records()
	if len(records) != 10 {
		t.Fatalf("records = %d, want 10", len(records))
	}
	seen := make(map[int64]bool)
	for _, r := range records {
		seen[r.BalanceAfter] = true
	}
	if len(seen) != 10 {
		t.Errorf("balance-after values not distinct: %v", seen)
	}
}

func TestExecuteNotStarted(t *testing.T) {
	tests := []struct {
		name  string
		start bool
	}{
		{"before start", false},
		{"after stop", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := memory.New()
			accountID := uuid.New()
			if err := s.CreateAccount(ctx, &account.Account{ID: accountID, Balance: 50}); err != nil {
				t.Fatal(err)
			}

			e := abacus.New(s, abacus.WithVerifier(identity.NewHMACVerifier(secret)))
			if tt.start {
				if err := e.Start(ctx); err != nil {
					t.Fatal(err)
				}
				if err := e.Stop(); err != nil {
					t.Fatal(err)
				}
			}

			_, err := e.ExecuteStrings(ctx, token(t, accountID.String()), "addition", "1", "2")
			if !errors.Is(err, abacus.ErrNotStarted) {
				t.Fatalf("expected ErrNotStarted, got %v", err)
			}
			var se *abacus.StepError
			if errors.As(err, &se) {
				t.Errorf("ErrNotStarted wrapped in step %q", se.Step)
			}
			a, err := s.GetAccount(ctx, accountID)
			if err != nil {
				t.Fatal(err)
			}
			if a.Balance != 50 {
				t.Errorf("balance = %d, want 50", a.Balance)
			}
		})
	}
}

func TestOperationsAndBalance(t *testing.T) {
	f := newFixture(t, 42)
	ctx := context.Background()

	ops, err := f.engine.Operations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != len(operation.Kinds) {
		t.Fatalf("operations = %d, want %d", len(ops), len(operation.Kinds))
	}
	if ops[0].Kind != operation.KindAddition || ops[0].Cost != 10 {
		t.Errorf("first operation = %+v", ops[0])
	}

	a, err := f.engine.Balance(ctx, f.token)
	if err != nil {
		t.Fatal(err)
	}
	if a.Balance != 42 {
		t.Errorf("balance = %d, want 42", a.Balance)
	}
}

type hookRecorder struct {
	mu        sync.Mutex
	completed []*record.Record
	refunds   []int64
	refundCtx []error
	failed    []string
}

func (h *hookRecorder) Name() string { return "recorder" }

func (h *hookRecorder) OnTransactionCompleted(_ context.Context, rec *record.Record, _ time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = append(h.completed, rec)
	return nil
}

func (h *hookRecorder) OnRefundIssued(ctx context.Context, _ *account.Account, amount int64, _ error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refunds = append(h.refunds, amount)
	h.refundCtx = append(h.refundCtx, ctx.Err())
	return nil
}

func (h *hookRecorder) OnTransactionFailed(_ context.Context, step, _ string, _ error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, step)
	return nil
}

func TestExecuteEmitsHooks(t *testing.T) {
	h := &hookRecorder{}
	f := newFixture(t, 15, abacus.WithPlugin(h))
	ctx := context.Background()

	if _, err := f.engine.ExecuteStrings(ctx, f.token, "addition", "1", "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.ExecuteStrings(ctx, f.token, "addition", "1", "1"); err == nil {
		t.Fatal("expected insufficient balance")
	}

	f.store.FailAppends(errors.New("boom"))
	if _, err := f.engine.ExecuteStrings(ctx, f.token, "subtraction", "1", "1"); err == nil {
		t.Fatal("expected persistence failure")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.completed) != 1 {
		t.Errorf("completed = %d, want 1", len(h.completed))
	}
	if len(h.refunds) != 1 || h.refunds[0] != 1 {
		t.Errorf("refunds = %v, want [1]", h.refunds)
	}
	want := []string{string(abacus.StepDebitBalance), string(abacus.StepPersistRecord)}
	if len(h.failed) != len(want) || h.failed[0] != want[0] || h.failed[1] != want[1] {
		t.Errorf("failed = %v, want %v", h.failed, want)
	}
}

func TestExecuteRefundAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The caller gives up while the generator is running.
	abandoned := arith.GeneratorFunc(func(context.Context, int) (string, error) {
		cancel()
		return "", errors.New("context canceled by caller")
	})

	h := &hookRecorder{}
	f := newFixture(t, 100, abacus.WithGenerator(abandoned), abacus.WithPlugin(h))

	if _, err := f.engine.ExecuteStrings(ctx, f.token, "random_string", "4", ""); err == nil {
		t.Fatal("expected compute failure")
	}
	if got := f.balance(t); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.refunds) != 1 || h.refunds[0] != 5 {
		t.Fatalf("refunds = %v, want [5]", h.refunds)
	}
	if h.refundCtx[0] != nil {
		t.Errorf("refund hook saw cancelled context: %v", h.refundCtx[0])
	}
}

// atomicStore gives the memory store a Charge that undoes its own debit
// when settle or the append fails.
type atomicStore struct {
	*memory.Store
	charges atomic.Int64
}

func (s *atomicStore) Charge(ctx context.Context, accountID uuid.UUID, amount int64, settle store.SettleFunc) (*account.Account, *record.Record, error) {
	s.charges.Add(1)
	acct, err := s.Debit(ctx, accountID, amount)
	if err != nil {
		return nil, nil, err
	}
	rec, err := settle(acct)
	if err == nil {
		err = s.AppendRecord(ctx, rec)
	}
	if err != nil {
		_, _ = s.Credit(ctx, accountID, amount)
		return nil, nil, err
	}
	return acct, rec, nil
}

func TestExecuteCharger(t *testing.T) {
	down := arith.GeneratorFunc(func(context.Context, int) (string, error) {
		return "", errors.New("connection refused")
	})

	tests := []struct {
		name        string
		balance     int64
		op, a, b    string
		failAppends bool
		wantStep    abacus.Step
		wantErr     error
		wantBalance int64
	}{
		{name: "success", balance: 20, op: "addition", a: "1", b: "2", wantBalance: 10},
		{name: "insufficient", balance: 5, op: "addition", a: "1", b: "2", wantStep: abacus.StepDebitBalance, wantErr: abacus.ErrInsufficientBalance, wantBalance: 5},
		{name: "compute", balance: 20, op: "random_string", a: "2", wantStep: abacus.StepCompute, wantErr: abacus.ErrUpstreamUnavailable, wantBalance: 20},
		{name: "append", balance: 20, op: "addition", a: "1", b: "2", failAppends: true, wantStep: abacus.StepPersistRecord, wantErr: abacus.ErrPersistence, wantBalance: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := &atomicStore{Store: memory.New()}
			h := &hookRecorder{}
			costs := operation.DefaultCosts()
			costs.Addition = 10

			e := abacus.New(s,
				abacus.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
				abacus.WithVerifier(identity.NewHMACVerifier(secret)),
				abacus.WithCosts(costs),
				abacus.WithGenerator(down),
				abacus.WithPlugin(h),
			)
			if err := e.Start(ctx); err != nil {
				t.Fatal(err)
			}
			accountID := uuid.New()
			if err := s.CreateAccount(ctx, &account.Account{ID: accountID, Balance: tt.balance}); err != nil {
				t.Fatal(err)
			}
			if tt.failAppends {
				s.FailAppends(errors.New("disk full"))
			}

			rec, err := e.ExecuteStrings(ctx, token(t, accountID.String()), tt.op, tt.a, tt.b)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatal(err)
				}
				if rec.BalanceAfter != tt.wantBalance || rec.Result != "3" {
					t.Errorf("record = %+v", rec)
				}
			} else {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if step := abacus.FailedStep(err); step != tt.wantStep {
					t.Errorf("step = %q, want %q", step, tt.wantStep)
				}
			}

			if n := s.charges.Load(); n != 1 {
				t.Errorf("charges = %d, want 1", n)
			}
			a, err := s.GetAccount(ctx, accountID)
			if err != nil {
				t.Fatal(err)
			}
			if a.Balance != tt.wantBalance {
				t.Errorf("balance = %d, want %d", a.Balance, tt.wantBalance)
			}
			h.mu.Lock()
			defer h.mu.Unlock()
			if len(h.refunds) != 0 {
				t.Errorf("refunds = %v, want none from a transactional store", h.refunds)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{abacus.ErrInvalidCredential, http.StatusUnauthorized},
		{abacus.ErrAccountNotFound, http.StatusNotFound},
		{abacus.ErrUnknownOperation, http.StatusBadRequest},
		{abacus.ErrMissingOperand, http.StatusBadRequest},
		{abacus.ErrInvalidCount, http.StatusBadRequest},
		{abacus.ErrInsufficientBalance, http.StatusPaymentRequired},
		{abacus.ErrDivisionByZero, http.StatusUnprocessableEntity},
		{abacus.ErrNegativeSquareRoot, http.StatusUnprocessableEntity},
		{abacus.ErrUpstreamUnavailable, http.StatusBadGateway},
		{abacus.ErrPersistence, http.StatusInternalServerError},
		{&abacus.StepError{Step: abacus.StepDebitBalance, Err: abacus.ErrInsufficientBalance}, http.StatusPaymentRequired},
	}

	for _, tt := range tests {
		if got := abacus.StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
