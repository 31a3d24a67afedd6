// Package arith implements the six billable computations on arbitrary
// precision decimals, with an optional fixed-width integer mode.
package arith

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/abacus/operation"
)

// MaxRandomStrings is the largest count a random string request may ask for.
const MaxRandomStrings = 10000

// Mode selects the numeric representation.
type Mode uint8

const (
	// ModeDecimal computes on arbitrary precision decimals.
	ModeDecimal Mode = iota
	// ModeInt64 computes on int64 and reports overflow instead of wrapping.
	ModeInt64
)

func (m Mode) String() string {
	switch m {
	case ModeDecimal:
		return "decimal"
	case ModeInt64:
		return "int64"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode parses "decimal" or "int64". The empty string is ModeDecimal.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "decimal":
		return ModeDecimal, nil
	case "int64":
		return ModeInt64, nil
	default:
		return 0, fmt.Errorf("arith: unknown mode %q", s)
	}
}

// Generator produces count random strings as a single text blob.
type Generator interface {
	Generate(ctx context.Context, count int) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, count int) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, count int) (string, error) {
	return f(ctx, count)
}

// Calculator computes operation results.
type Calculator struct {
	mode      Mode
	generator Generator
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithMode sets the numeric mode.
func WithMode(m Mode) Option {
	return func(c *Calculator) { c.mode = m }
}

// WithGenerator sets the random string source.
func WithGenerator(g Generator) Option {
	return func(c *Calculator) { c.generator = g }
}

// NewCalculator creates a Calculator in ModeDecimal unless configured
// otherwise.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{mode: ModeDecimal}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the configured numeric mode.
func (c *Calculator) Mode() Mode { return c.mode }

// Validate runs every operand check that does not need the random string
// service. A nil error means Compute can only fail upstream.
func (c *Calculator) Validate(kind operation.Kind, a, b decimal.Decimal) error {
	_, err := c.compute(context.Background(), kind, a, b, false)
	return err
}

// Compute returns the formatted result of kind applied to a and b. b is
// ignored by one-operand kinds.
func (c *Calculator) Compute(ctx context.Context, kind operation.Kind, a, b decimal.Decimal) (string, error) {
	return c.compute(ctx, kind, a, b, true)
}

func (c *Calculator) compute(ctx context.Context, kind operation.Kind, a, b decimal.Decimal, fetch bool) (string, error) {
	if kind == operation.KindRandomString {
		count, err := Count(a)
		if err != nil {
			return "", err
		}
		if !fetch {
			return "", nil
		}
		return c.randomString(ctx, count)
	}

	if c.mode == ModeInt64 {
		return computeInt64(kind, a, b)
	}
	return computeDecimal(kind, a, b)
}

// Count validates a random string count.
func Count(a decimal.Decimal) (int, error) {
	if !a.IsInteger() || a.IsNegative() || a.GreaterThan(decimal.NewFromInt(MaxRandomStrings)) {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidCount, Format(a))
	}
	return int(a.IntPart()), nil
}

func (c *Calculator) randomString(ctx context.Context, count int) (string, error) {
	if c.generator == nil {
		return "", fmt.Errorf("%w: no generator configured", ErrUpstreamUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	s, err := c.generator.Generate(ctx, count)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return s, nil
}

func computeDecimal(kind operation.Kind, a, b decimal.Decimal) (string, error) {
	switch kind {
	case operation.KindAddition:
		return Format(a.Add(b)), nil
	case operation.KindSubtraction:
		return Format(a.Sub(b)), nil
	case operation.KindMultiplication:
		return Format(a.Mul(b)), nil
	case operation.KindDivision:
		if b.IsZero() {
			return "", ErrDivisionByZero
		}
		return Format(a.DivRound(b, DivisionScale)), nil
	case operation.KindSquareRoot:
		r, err := Sqrt(a)
		if err != nil {
			return "", err
		}
		return Format(r), nil
	default:
		return "", fmt.Errorf("%w: %s", operation.ErrUnknownOperation, kind)
	}
}

func computeInt64(kind operation.Kind, a, b decimal.Decimal) (string, error) {
	x, err := toInt64(a)
	if err != nil {
		return "", err
	}
	var y int64
	if kind.Arity() == 2 {
		if y, err = toInt64(b); err != nil {
			return "", err
		}
	}

	var r int64
	switch kind {
	case operation.KindAddition:
		r, err = addInt64(x, y)
	case operation.KindSubtraction:
		r, err = subInt64(x, y)
	case operation.KindMultiplication:
		r, err = mulInt64(x, y)
	case operation.KindDivision:
		return divInt64(x, y)
	case operation.KindSquareRoot:
		r, err = sqrtInt64(x)
	default:
		return "", fmt.Errorf("%w: %s", operation.ErrUnknownOperation, kind)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", r), nil
}
