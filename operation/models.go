// Package operation defines the six billable computation kinds, their
// catalog entries and the catalog that resolves a request to an entry.
package operation

import (
	"fmt"
	"strings"

	"github.com/xraph/abacus/id"
	"github.com/xraph/abacus/types"
)

// Kind is the closed set of computations an account can pay for.
type Kind uint8

// The zero Kind is invalid.
const (
	KindAddition Kind = iota + 1
	KindSubtraction
	KindMultiplication
	KindDivision
	KindSquareRoot
	KindRandomString
)

// Kinds lists every valid kind in catalog order.
var Kinds = []Kind{
	KindAddition,
	KindSubtraction,
	KindMultiplication,
	KindDivision,
	KindSquareRoot,
	KindRandomString,
}

var kindNames = map[Kind]string{
	KindAddition:       "addition",
	KindSubtraction:    "subtraction",
	KindMultiplication: "multiplication",
	KindDivision:       "division",
	KindSquareRoot:     "square_root",
	KindRandomString:   "random_string",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames)*2)
	for k, name := range kindNames {
		m[name] = k
		m[strings.ReplaceAll(name, "_", "")] = k
	}
	return m
}()

// ParseKind resolves a case-insensitive kind name. "square_root",
// "SQUARE-ROOT" and "squareroot" all resolve to KindSquareRoot.
func ParseKind(name string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "-", "_")
	if k, ok := kindsByName[key]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// String returns the canonical snake_case name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the six defined kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Arity is the number of operands the kind consumes.
func (k Kind) Arity() int {
	switch k {
	case KindSquareRoot, KindRandomString:
		return 1
	default:
		return 2
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("operation: invalid kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(data []byte) error {
	parsed, err := ParseKind(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Operation is a catalog entry. Its ID is stable across reseeding; only the
// cost follows configuration.
type Operation struct {
	types.Entity
	ID    id.OperationID `json:"id"`
	Kind  Kind           `json:"type"`
	Cost  int64          `json:"cost"`
	Arity int            `json:"arity"`
}
