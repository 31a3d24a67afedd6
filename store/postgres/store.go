// Package postgres implements store.Store on PostgreSQL through grove.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	// Registers the "pg" migration executor.
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"

	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/id"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/record"
	abacusstore "github.com/xraph/abacus/store"
)

// compile-time interface checks
var (
	_ abacusstore.Store   = (*Store)(nil)
	_ abacusstore.Charger = (*Store)(nil)
)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("abacus/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("abacus/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	if a.Balance < 0 {
		return fmt.Errorf("%w: negative opening balance", account.ErrInvalidAmount)
	}
	if a.CreatedAt.IsZero() {
		now := time.Now().UTC()
		a.CreatedAt, a.UpdatedAt = now, now
	}
	_, err := s.pg.NewInsert(toAccountModel(a)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return account.ErrAccountExists
		}
		return err
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	return getAccount(ctx, s.pg, accountID)
}

// Debit applies the balance check and decrement in one conditional UPDATE.
// Row-level locking serializes concurrent debits on the same account.
func (s *Store) Debit(ctx context.Context, accountID uuid.UUID, amount int64) (*account.Account, error) {
	return debit(ctx, s.pg, accountID, amount)
}

func (s *Store) Credit(ctx context.Context, accountID uuid.UUID, amount int64) (*account.Account, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}

	m := new(accountModel)
	err := s.pg.NewRaw(`
		UPDATE abacus_accounts
		SET balance = balance + $1, updated_at = $2
		WHERE id = $3
		RETURNING id, balance, created_at, updated_at
	`, amount, time.Now().UTC(), accountID.String()).Scan(ctx, m)
	if err != nil {
		if isNoRows(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

// Charge debits amount and appends the record settle builds from the
// debited account, both inside one transaction. The account row stays
// locked until commit, so no other debit observes the uncommitted balance.
func (s *Store) Charge(ctx context.Context, accountID uuid.UUID, amount int64, settle abacusstore.SettleFunc) (*account.Account, *record.Record, error) {
	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("abacus/postgres: begin charge: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	acct, err := debit(ctx, tx, accountID, amount)
	if err != nil {
		return nil, nil, err
	}

	rec, err := settle(acct)
	if err != nil {
		return nil, nil, err
	}

	if _, err := tx.NewInsert(toRecordModel(rec)).Exec(ctx); err != nil {
		return nil, nil, fmt.Errorf("abacus/postgres: append record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("abacus/postgres: commit charge: %w", err)
	}
	return acct, rec, nil
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
	NewRaw(query string, args ...any) *pgdriver.RawQuery
}

func getAccount(ctx context.Context, q querier, accountID uuid.UUID) (*account.Account, error) {
	m := new(accountModel)
	err := q.NewSelect(m).
		Where("id = $1", accountID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func debit(ctx context.Context, q querier, accountID uuid.UUID, amount int64) (*account.Account, error) {
	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}

	m := new(accountModel)
	err := q.NewRaw(`
		UPDATE abacus_accounts
		SET balance = balance - $1, updated_at = $2
		WHERE id = $3 AND balance >= $1
		RETURNING id, balance, created_at, updated_at
	`, amount, time.Now().UTC(), accountID.String()).Scan(ctx, m)
	if err != nil {
		if isNoRows(err) {
			return nil, debitRefusal(ctx, q, accountID)
		}
		return nil, err
	}
	return fromAccountModel(m)
}

// debitRefusal tells a missing account apart from a short balance after a
// conditional update matched no row.
func debitRefusal(ctx context.Context, q querier, accountID uuid.UUID) error {
	if _, err := getAccount(ctx, q, accountID); err != nil {
		return err
	}
	return account.ErrInsufficientBalance
}

// ==================== Operation Store ====================

func (s *Store) GetOperationByKind(ctx context.Context, kind operation.Kind) (*operation.Operation, error) {
	m := new(operationModel)
	err := s.pg.NewSelect(m).
		Where("kind = $1", kind.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, operation.ErrOperationNotFound
		}
		return nil, err
	}
	return fromOperationModel(m)
}

func (s *Store) ListOperations(ctx context.Context) ([]*operation.Operation, error) {
	var models []operationModel
	err := s.pg.NewSelect(&models).
		OrderExpr("kind ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*operation.Operation, 0, len(models))
	for i := range models {
		op, err := fromOperationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, op)
	}
	return result, nil
}

// UpsertOperation inserts by kind; on conflict only cost and arity change so
// the stored ID survives reseeding.
func (s *Store) UpsertOperation(ctx context.Context, op *operation.Operation) error {
	_, err := s.pg.NewInsert(toOperationModel(op)).
		OnConflict("(kind) DO UPDATE").
		Set("cost = EXCLUDED.cost").
		Set("arity = EXCLUDED.arity").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Record Store ====================

func (s *Store) AppendRecord(ctx context.Context, r *record.Record) error {
	_, err := s.pg.NewInsert(toRecordModel(r)).Exec(ctx)
	return err
}

func (s *Store) GetRecord(ctx context.Context, recordID id.RecordID) (*record.Record, error) {
	m := new(recordModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", recordID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, record.ErrRecordNotFound
		}
		return nil, err
	}
	return fromRecordModel(m)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches SQLSTATE 23505 without binding to a driver type.
func isUniqueViolation(err error) bool {
	var coder interface{ SQLState() string }
	if errors.As(err, &coder) {
		return coder.SQLState() == "23505"
	}
	return false
}
