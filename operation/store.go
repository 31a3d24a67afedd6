package operation

import "context"

// Store persists catalog entries.
type Store interface {
	GetOperationByKind(ctx context.Context, kind Kind) (*Operation, error)
	ListOperations(ctx context.Context) ([]*Operation, error)
	UpsertOperation(ctx context.Context, op *Operation) error
}
