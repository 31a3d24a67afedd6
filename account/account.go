// Package account defines balance-holding accounts and the ledger contract
// that debits them.
package account

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/xraph/abacus/types"
)

var (
	ErrAccountNotFound     = errors.New("abacus: account not found")
	ErrInsufficientBalance = errors.New("abacus: insufficient balance for this operation")
	ErrAccountExists       = errors.New("abacus: account already exists")
	ErrInvalidAmount       = errors.New("abacus: amount must be positive")
)

// Account holds the balance of one authenticated caller. ID is the subject
// issued by the identity provider.
type Account struct {
	types.Entity
	ID      uuid.UUID `json:"id"`
	Balance int64     `json:"balance"`
}

// Ledger is the balance contract every store implements.
//
// Debit must apply the balance check and the decrement as one step: two
// concurrent debits never both succeed when their combined amount exceeds
// the balance. On ErrInsufficientBalance the balance is unchanged.
type Ledger interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, accountID uuid.UUID) (*Account, error)
	Debit(ctx context.Context, accountID uuid.UUID, amount int64) (*Account, error)
	Credit(ctx context.Context, accountID uuid.UUID, amount int64) (*Account, error)
}
