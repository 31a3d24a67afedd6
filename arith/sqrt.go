package arith

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// SignificantDigits is the working precision of Sqrt.
	SignificantDigits = 15
	// DivisionScale is the number of fractional digits kept by Div.
	DivisionScale = 15

	maxSqrtIterations = 100
	// guard digits used before rounding an intermediate quotient to
	// SignificantDigits.
	guardScale = 40
)

var two = decimal.NewFromInt(2)

// roundSignificant rounds d half away from zero to n significant digits.
func roundSignificant(d decimal.Decimal, n int) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	digits := len(strings.TrimPrefix(d.Coefficient().String(), "-"))
	places := n - (digits + int(d.Exponent()))
	return d.Round(int32(places))
}

// divSignificant divides a by b and rounds the quotient to n significant
// digits.
func divSignificant(a, b decimal.Decimal, n int) decimal.Decimal {
	q := a.DivRound(b, guardScale)
	if q.IsZero() && !a.IsZero() {
		q = a.DivRound(b, guardScale-a.Exponent())
	}
	return roundSignificant(q, n)
}

// Sqrt computes the square root of a with Newton–Raphson iteration at
// SignificantDigits of working precision. The seed is the float64 square
// root and iteration stops at the first fixed point.
func Sqrt(a decimal.Decimal) (decimal.Decimal, error) {
	if a.IsNegative() {
		return decimal.Zero, ErrNegativeSquareRoot
	}
	if a.IsZero() {
		return decimal.Zero, nil
	}

	x := roundSignificant(seed(a), SignificantDigits)

	for i := 0; i < maxSqrtIterations; i++ {
		q := divSignificant(a, x, SignificantDigits)
		next := divSignificant(q.Add(x), two, SignificantDigits)
		if next.Equal(x) {
			return next, nil
		}
		x = next
	}
	// A two-value cycle at this precision never reaches a fixed point; the
	// last iterate is within one unit of the final digit.
	return x, nil
}

// seed returns the float64 square root of a, or a power of ten of the right
// magnitude when a is outside the float64 range.
func seed(a decimal.Decimal) decimal.Decimal {
	f := math.Sqrt(a.InexactFloat64())
	if f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return decimal.NewFromFloat(f)
	}
	magnitude := len(a.Coefficient().String()) + int(a.Exponent())
	return decimal.New(1, int32(magnitude/2))
}
