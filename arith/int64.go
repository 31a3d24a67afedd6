package arith

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	hundred  = decimal.NewFromInt(100)
)

// toInt64 converts a whole decimal inside the int64 range.
func toInt64(d decimal.Decimal) (int64, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s is not a whole number", ErrInvalidOperand, Format(d))
	}
	if d.LessThan(minInt64) || d.GreaterThan(maxInt64) {
		return 0, fmt.Errorf("%w: %s does not fit in 64 bits", ErrArithmeticOverflow, Format(d))
	}
	return d.IntPart(), nil
}

func addInt64(a, b int64) (int64, error) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, fmt.Errorf("%w: %d + %d", ErrArithmeticOverflow, a, b)
	}
	return c, nil
}

func subInt64(a, b int64) (int64, error) {
	c := a - b
	if (c < a) != (b > 0) {
		return 0, fmt.Errorf("%w: %d - %d", ErrArithmeticOverflow, a, b)
	}
	return c, nil
}

func mulInt64(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	c := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) || c/b != a {
		return 0, fmt.Errorf("%w: %d * %d", ErrArithmeticOverflow, a, b)
	}
	return c, nil
}

// divInt64 returns the exact quotient, or the quotient truncated toward zero
// to two decimals rendered as "q,ff".
func divInt64(a, b int64) (string, error) {
	if b == 0 {
		return "", ErrDivisionByZero
	}
	if a == math.MinInt64 && b == -1 {
		return "", fmt.Errorf("%w: %d / %d", ErrArithmeticOverflow, a, b)
	}
	if a%b == 0 {
		return fmt.Sprintf("%d", a/b), nil
	}

	hundredths, _ := decimal.NewFromInt(a).Mul(hundred).QuoRem(decimal.NewFromInt(b), 0)
	hundredths = hundredths.Abs()
	whole := hundredths.Div(hundred).Truncate(0)
	frac := hundredths.Sub(whole.Mul(hundred))

	sign := ""
	if (a < 0) != (b < 0) {
		sign = "-"
	}
	return fmt.Sprintf("%s%s,%02d", sign, whole.String(), frac.IntPart()), nil
}

// sqrtInt64 returns floor(sqrt(a)).
func sqrtInt64(a int64) (int64, error) {
	if a < 0 {
		return 0, ErrNegativeSquareRoot
	}
	r := int64(math.Sqrt(float64(a)))
	for r > 0 && r > a/r {
		r--
	}
	for r+1 <= a/(r+1) {
		r++
	}
	return r, nil
}
