// Package memory implements store.Store in process memory. It is the
// fixture backend for tests and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/id"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/record"
	"github.com/xraph/abacus/store"
	"github.com/xraph/abacus/types"
)

var _ store.Store = (*Store)(nil)

// Store keeps every entity in maps guarded by one mutex. Values are copied
// on the way in and out so callers never alias stored state.
type Store struct {
	mu sync.RWMutex

	accounts   map[uuid.UUID]*account.Account
	operations map[operation.Kind]*operation.Operation
	records    map[string]*record.Record
	order      []string

	// appendErr, when set, fails AppendRecord.
	appendErr error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts:   make(map[uuid.UUID]*account.Account),
		operations: make(map[operation.Kind]*operation.Operation),
		records:    make(map[string]*record.Record),
	}
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	if a.Balance < 0 {
		return fmt.Errorf("%w: negative opening balance", account.ErrInvalidAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; exists {
		return account.ErrAccountExists
	}
	if a.CreatedAt.IsZero() {
		a.Entity = types.NewEntity()
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID uuid.UUID) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// Debit checks and decrements under the write lock.
func (s *Store) Debit(_ context.Context, accountID uuid.UUID, amount int64) (*account.Account, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	if a.Balance < amount {
		return nil, account.ErrInsufficientBalance
	}
	a.Balance -= amount
	a.Touch()
	cp := *a
	return &cp, nil
}

func (s *Store) Credit(_ context.Context, accountID uuid.UUID, amount int64) (*account.Account, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	a.Balance += amount
	a.Touch()
	cp := *a
	return &cp, nil
}

// ==================== Operation Store ====================

func (s *Store) GetOperationByKind(_ context.Context, kind operation.Kind) (*operation.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.operations[kind]
	if !ok {
		return nil, operation.ErrOperationNotFound
	}
	cp := *op
	return &cp, nil
}

func (s *Store) ListOperations(_ context.Context) ([]*operation.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*operation.Operation, 0, len(s.operations))
	for _, op := range s.operations {
		cp := *op
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Kind < result[j].Kind })
	return result, nil
}

// UpsertOperation keys entries by kind. When an entry for the kind already
// exists its ID is kept.
func (s *Store) UpsertOperation(_ context.Context, op *operation.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.operations[op.Kind]; ok {
		op.ID = existing.ID
		op.CreatedAt = existing.CreatedAt
	}
	cp := *op
	s.operations[op.Kind] = &cp
	return nil
}

// ==================== Record Store ====================

func (s *Store) AppendRecord(_ context.Context, r *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return s.appendErr
	}
	key := r.ID.String()
	if _, exists := s.records[key]; exists {
		return fmt.Errorf("memory: record %s already exists", key)
	}
	cp := *r
	s.records[key] = &cp
	s.order = append(s.order, key)
	return nil
}

func (s *Store) GetRecord(_ context.Context, recordID id.RecordID) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[recordID.String()]
	if !ok {
		return nil, record.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

// Records returns every appended record in append order.
func (s *Store) Records() []*record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*record.Record, 0, len(s.order))
	for _, key := range s.order {
		cp := *s.records[key]
		result = append(result, &cp)
	}
	return result
}

// FailAppends makes every later AppendRecord return err. Pass nil to
// restore normal behavior.
func (s *Store) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}
