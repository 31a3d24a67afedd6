package operation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xraph/abacus/id"
	"github.com/xraph/abacus/types"
)

// Catalog resolves operation names to stored entries and keeps the stored
// costs in line with configuration.
type Catalog struct {
	store Store
	costs Costs
}

// NewCatalog creates a catalog over s priced by costs.
func NewCatalog(s Store, costs Costs) *Catalog {
	return &Catalog{store: s, costs: costs}
}

// Costs returns the configured price list.
func (c *Catalog) Costs() Costs { return c.costs }

// CheckArity validates operand presence for kind.
func CheckArity(kind Kind, hasFirst, hasSecond bool) error {
	if !hasFirst {
		return fmt.Errorf("%w: %s requires a first operand", ErrMissingOperand, kind)
	}
	switch kind.Arity() {
	case 2:
		if !hasSecond {
			return fmt.Errorf("%w: %s requires a second operand", ErrMissingOperand, kind)
		}
	case 1:
		if hasSecond {
			return fmt.Errorf("%w: %s takes a single operand", ErrUnexpectedOperand, kind)
		}
	}
	return nil
}

// Resolve looks up name and validates that the supplied operands match the
// kind's arity. The returned entry carries the cost to charge.
func (c *Catalog) Resolve(ctx context.Context, name string, hasFirst, hasSecond bool) (*Operation, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	if err := CheckArity(kind, hasFirst, hasSecond); err != nil {
		return nil, err
	}

	op, err := c.store.GetOperationByKind(ctx, kind)
	if err != nil {
		if errors.Is(err, ErrOperationNotFound) {
			return nil, fmt.Errorf("%w: %s is not in the catalog", ErrUnknownOperation, kind)
		}
		return nil, err
	}
	return op, nil
}

// List returns every stored operation ordered by kind.
func (c *Catalog) List(ctx context.Context) ([]*Operation, error) {
	ops, err := c.store.ListOperations(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Kind < ops[j].Kind })
	return ops, nil
}

// Seed writes one entry per kind, creating missing entries and repricing
// entries whose cost differs from configuration. Existing IDs are kept. It
// returns the entries that were written.
func (c *Catalog) Seed(ctx context.Context) ([]*Operation, error) {
	if err := c.costs.Validate(); err != nil {
		return nil, err
	}

	existing, err := c.store.ListOperations(ctx)
	if err != nil {
		return nil, err
	}
	byKind := make(map[Kind]*Operation, len(existing))
	for _, op := range existing {
		byKind[op.Kind] = op
	}

	var written []*Operation
	for _, kind := range Kinds {
		cost := c.costs.For(kind)
		op, ok := byKind[kind]
		switch {
		case !ok:
			op = &Operation{
				Entity: types.NewEntity(),
				ID:     id.NewOperationID(),
				Kind:   kind,
				Cost:   cost,
				Arity:  kind.Arity(),
			}
		case op.Cost != cost || op.Arity != kind.Arity():
			op.Cost = cost
			op.Arity = kind.Arity()
			op.Touch()
		default:
			continue
		}
		if err := c.store.UpsertOperation(ctx, op); err != nil {
			return written, fmt.Errorf("seed %s: %w", kind, err)
		}
		written = append(written, op)
	}
	return written, nil
}
