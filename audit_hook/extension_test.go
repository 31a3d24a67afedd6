package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/abacus/account"
	audithook "github.com/xraph/abacus/audit_hook"
	"github.com/xraph/abacus/id"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/record"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, evt *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func TestTransactionEvents(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)
	ctx := context.Background()

	rec := &record.Record{
		ID:           id.NewRecordID(),
		AccountID:    uuid.New(),
		Kind:         operation.KindDivision,
		Cost:         3,
		BalanceAfter: 97,
		Result:       "0,5",
	}
	if err := ext.OnTransactionCompleted(ctx, rec, 12*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnTransactionFailed(ctx, "persist_record", "addition", errors.New("disk full")); err != nil {
		t.Fatal(err)
	}

	if len(s.events) != 2 {
		t.Fatalf("events = %d, want 2", len(s.events))
	}

	done := s.events[0]
	if done.Action != audithook.ActionTransactionCompleted || done.ResourceID != rec.ID.String() {
		t.Errorf("unexpected completed event %+v", done)
	}
	if done.Metadata["operation"] != "division" || done.Metadata["balance_after"] != int64(97) {
		t.Errorf("unexpected metadata %v", done.Metadata)
	}

	failed := s.events[1]
	if failed.Outcome != audithook.OutcomeFailure || failed.Severity != audithook.SeverityCritical {
		t.Errorf("unexpected failed event %+v", failed)
	}
	if failed.Reason != "disk full" || failed.Metadata["step"] != "persist_record" {
		t.Errorf("unexpected failed event %+v", failed)
	}
}

func TestBalanceEvents(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)
	ctx := context.Background()

	acct := &account.Account{ID: uuid.New(), Balance: 40}
	op := &operation.Operation{Kind: operation.KindRandomString, Cost: 5}

	_ = ext.OnBalanceDebited(ctx, acct, op)
	_ = ext.OnInsufficientBalance(ctx, acct.ID, op)
	_ = ext.OnRefundIssued(ctx, acct, 5, errors.New("upstream down"))

	want := []string{
		audithook.ActionBalanceDebited,
		audithook.ActionBalanceInsufficient,
		audithook.ActionBalanceRefunded,
	}
	if len(s.events) != len(want) {
		t.Fatalf("events = %d, want %d", len(s.events), len(want))
	}
	for i, action := range want {
		if s.events[i].Action != action {
			t.Errorf("event %d action = %q, want %q", i, s.events[i].Action, action)
		}
		if s.events[i].ResourceID != acct.ID.String() {
			t.Errorf("event %d resource id = %q", i, s.events[i].ResourceID)
		}
	}
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()
	acct := &account.Account{ID: uuid.New()}
	op := &operation.Operation{Kind: operation.KindAddition, Cost: 1}

	only := &sink{}
	ext := audithook.New(only, audithook.WithEnabledActions(audithook.ActionBalanceInsufficient))
	_ = ext.OnBalanceDebited(ctx, acct, op)
	_ = ext.OnInsufficientBalance(ctx, acct.ID, op)
	if len(only.events) != 1 || only.events[0].Action != audithook.ActionBalanceInsufficient {
		t.Errorf("enabled filter recorded %v", only.events)
	}

	skip := &sink{}
	ext = audithook.New(skip, audithook.WithDisabledActions(audithook.ActionBalanceDebited))
	_ = ext.OnBalanceDebited(ctx, acct, op)
	_ = ext.OnCatalogSeeded(ctx, []*operation.Operation{op})
	if len(skip.events) != 1 || skip.events[0].Action != audithook.ActionCatalogSeeded {
		t.Errorf("disabled filter recorded %v", skip.events)
	}
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	failing := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	})
	ext := audithook.New(failing, audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err := ext.OnTransactionFailed(context.Background(), "compute", "random_string", errors.New("timeout"))
	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestFailuresOnly(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s, audithook.WithFailuresOnly())
	ctx := context.Background()

	_ = ext.OnTransactionCompleted(ctx, &record.Record{ID: id.NewRecordID()}, time.Millisecond)
	_ = ext.OnTransactionFailed(ctx, "validate", "division", errors.New("division by zero"))

	if len(s.events) != 1 || s.events[0].Action != audithook.ActionTransactionFailed {
		t.Errorf("recorded %v", s.events)
	}
}
