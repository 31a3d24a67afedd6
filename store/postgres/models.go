package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xraph/grove"

	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/id"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/record"
	"github.com/xraph/abacus/types"
)

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:abacus_accounts"`

	ID        string    `grove:"id,pk"`
	Balance   int64     `grove:"balance"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:        a.ID.String(),
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("abacus/postgres: parse account id %q: %w", m.ID, err)
	}
	return &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:      accountID,
		Balance: m.Balance,
	}, nil
}

// ==================== Operation models ====================

type operationModel struct {
	grove.BaseModel `grove:"table:abacus_operations"`

	ID        string    `grove:"id,pk"`
	Kind      string    `grove:"kind"`
	Cost      int64     `grove:"cost"`
	Arity     int       `grove:"arity"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toOperationModel(op *operation.Operation) *operationModel {
	return &operationModel{
		ID:        op.ID.String(),
		Kind:      op.Kind.String(),
		Cost:      op.Cost,
		Arity:     op.Arity,
		CreatedAt: op.CreatedAt,
		UpdatedAt: op.UpdatedAt,
	}
}

func fromOperationModel(m *operationModel) (*operation.Operation, error) {
	opID, err := id.ParseOperationID(m.ID)
	if err != nil {
		return nil, err
	}
	kind, err := operation.ParseKind(m.Kind)
	if err != nil {
		return nil, err
	}
	return &operation.Operation{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:    opID,
		Kind:  kind,
		Cost:  m.Cost,
		Arity: m.Arity,
	}, nil
}

// ==================== Record models ====================

type recordModel struct {
	grove.BaseModel `grove:"table:abacus_records"`

	ID           string    `grove:"id,pk"`
	OperationID  string    `grove:"operation_id"`
	AccountID    string    `grove:"account_id"`
	Kind         string    `grove:"kind"`
	Cost         int64     `grove:"cost"`
	BalanceAfter int64     `grove:"balance_after"`
	Result       string    `grove:"result"`
	CreatedAt    time.Time `grove:"created_at"`
	Deleted      bool      `grove:"deleted"`
}

func toRecordModel(r *record.Record) *recordModel {
	return &recordModel{
		ID:           r.ID.String(),
		OperationID:  r.OperationID.String(),
		AccountID:    r.AccountID.String(),
		Kind:         r.Kind.String(),
		Cost:         r.Cost,
		BalanceAfter: r.BalanceAfter,
		Result:       r.Result,
		CreatedAt:    r.CreatedAt,
		Deleted:      r.Deleted,
	}
}

func fromRecordModel(m *recordModel) (*record.Record, error) {
	recID, err := id.ParseRecordID(m.ID)
	if err != nil {
		return nil, err
	}
	opID, err := id.ParseOperationID(m.OperationID)
	if err != nil {
		return nil, err
	}
	accountID, err := uuid.Parse(m.AccountID)
	if err != nil {
		return nil, fmt.Errorf("abacus/postgres: parse account id %q: %w", m.AccountID, err)
	}
	kind, err := operation.ParseKind(m.Kind)
	if err != nil {
		return nil, err
	}
	return &record.Record{
		ID:           recID,
		OperationID:  opID,
		AccountID:    accountID,
		Kind:         kind,
		Cost:         m.Cost,
		BalanceAfter: m.BalanceAfter,
		Result:       m.Result,
		CreatedAt:    m.CreatedAt,
		Deleted:      m.Deleted,
	}, nil
}
