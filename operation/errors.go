package operation

import "errors"

var (
	// ErrUnknownOperation is returned for names outside the six kinds and for
	// kinds that are missing from the store.
	ErrUnknownOperation = errors.New("abacus: unknown operation")
	// ErrMissingOperand is returned when a required operand is absent.
	ErrMissingOperand = errors.New("abacus: missing operand")
	// ErrUnexpectedOperand is returned when a one-operand kind receives two.
	ErrUnexpectedOperand = errors.New("abacus: unexpected operand")
	// ErrOperationNotFound is returned by stores when no entry exists for a kind.
	ErrOperationNotFound = errors.New("abacus: operation not found")
	// ErrInvalidCost is returned when configuration carries a cost <= 0.
	ErrInvalidCost = errors.New("abacus: operation cost must be positive")
)
