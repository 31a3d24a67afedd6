package arith_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xraph/abacus/arith"
	"github.com/xraph/abacus/operation"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFormat(t *testing.T) {
	tests := []struct {
		in   decimal.Decimal
		want string
	}{
		{decimal.NewFromInt(100), "100"},
		{d("100.5000"), "100,5"},
		{d("30.8"), "30,8"},
		{d("100.00"), "100"},
		{d("-2.50"), "-2,5"},
		{d("0.000001"), "0,000001"},
		{decimal.Zero, "0"},
	}
	for _, tt := range tests {
		if got := arith.Format(tt.in); got != tt.want {
			t.Errorf("Format(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestComputeDecimal(t *testing.T) {
	calc := arith.NewCalculator()
	ctx := context.Background()

	tests := []struct {
		name string
		kind operation.Kind
		a, b string
		want string
	}{
		{"add", operation.KindAddition, "5", "5", "10"},
		{"add fractions", operation.KindAddition, "10.5", "20.3", "30,8"},
		{"add exact 15 digits", operation.KindAddition, "0.123456789012345", "987654321.987654", "987654322,111110789012345"},
		{"sub", operation.KindSubtraction, "3", "10", "-7"},
		{"mul", operation.KindMultiplication, "1.5", "4", "6"},
		{"mul exact", operation.KindMultiplication, "1.25", "1.25", "1,5625"},
		{"div exact", operation.KindDivision, "10", "4", "2,5"},
		{"div repeating", operation.KindDivision, "1", "3", "0,333333333333333"},
		{"div round half up", operation.KindDivision, "2", "3", "0,666666666666667"},
		{"div negative", operation.KindDivision, "-2", "3", "-0,666666666666667"},
		{"div whole", operation.KindDivision, "100", "4", "25"},
		{"sqrt perfect", operation.KindSquareRoot, "4", "", "2"},
		{"sqrt zero", operation.KindSquareRoot, "0", "", "0"},
		{"sqrt fraction", operation.KindSquareRoot, "0.25", "", "0,5"},
		{"sqrt large", operation.KindSquareRoot, "1000000", "", "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := decimal.Zero
			if tt.b != "" {
				b = d(tt.b)
			}
			got, err := calc.Compute(ctx, tt.kind, d(tt.a), b)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdditionIsExact(t *testing.T) {
	calc := arith.NewCalculator()
	pairs := [][2]string{
		{"0.1", "0.2"},
		{"123456789.123456", "0.000000000000001"},
		{"-999999999999999", "999999999999999"},
		{"3.14159265358979", "2.71828182845904"},
	}
	for _, p := range pairs {
		a, b := d(p[0]), d(p[1])
		got, err := calc.Compute(context.Background(), operation.KindAddition, a, b)
		if err != nil {
			t.Fatal(err)
		}
		if want := arith.Format(a.Add(b)); got != want {
			t.Errorf("%s + %s = %q, want %q", p[0], p[1], got, want)
		}
	}
	got, _ := calc.Compute(context.Background(), operation.KindAddition, d("0.1"), d("0.2"))
	if got != "0,3" {
		t.Errorf("0.1 + 0.2 = %q, want 0,3", got)
	}
}

func TestDivisionByZero(t *testing.T) {
	for _, mode := range []arith.Mode{arith.ModeDecimal, arith.ModeInt64} {
		calc := arith.NewCalculator(arith.WithMode(mode))
		for _, a := range []string{"0", "1", "-7", "123456"} {
			_, err := calc.Compute(context.Background(), operation.KindDivision, d(a), decimal.Zero)
			if !errors.Is(err, arith.ErrDivisionByZero) {
				t.Errorf("[%s] %s/0 error = %v, want ErrDivisionByZero", mode, a, err)
			}
			if err := calc.Validate(operation.KindDivision, d(a), decimal.Zero); !errors.Is(err, arith.ErrDivisionByZero) {
				t.Errorf("[%s] Validate %s/0 error = %v", mode, a, err)
			}
		}
	}
}

func TestSqrtNegative(t *testing.T) {
	for _, a := range []string{"-9", "-0.0001", "-1"} {
		if _, err := arith.Sqrt(d(a)); !errors.Is(err, arith.ErrNegativeSquareRoot) {
			t.Errorf("Sqrt(%s) error = %v, want ErrNegativeSquareRoot", a, err)
		}
	}
}

func TestSqrtPrecision(t *testing.T) {
	tolerance := d("1e-14")
	for _, a := range []string{"3", "5", "10", "0.5", "0.01", "7", "1e-10", "16", "0.0009"} {
		r, err := arith.Sqrt(d(a))
		if err != nil {
			t.Fatalf("Sqrt(%s): %v", a, err)
		}
		diff := r.Mul(r).Sub(d(a)).Abs()
		if !diff.LessThan(tolerance) {
			t.Errorf("Sqrt(%s) = %s, |r*r - a| = %s", a, r, diff)
		}
	}
}

func TestSqrtRelativePrecision(t *testing.T) {
	for _, a := range []string{"2", "123456", "98765432123", "1e40", "1e-40"} {
		x := d(a)
		r, err := arith.Sqrt(x)
		if err != nil {
			t.Fatalf("Sqrt(%s): %v", a, err)
		}
		rel := r.Mul(r).Sub(x).Abs().Div(x)
		if rel.GreaterThan(d("1e-13")) {
			t.Errorf("Sqrt(%s) = %s, relative error %s", a, r, rel)
		}
	}
}

func TestSqrtOutsideFloatRange(t *testing.T) {
	x := decimal.New(4, 400)
	r, err := arith.Sqrt(x)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Equal(decimal.New(2, 200)) {
		t.Errorf("Sqrt(4e400) = %s", r)
	}
}

func TestRandomStringCount(t *testing.T) {
	var gotCount int
	gen := arith.GeneratorFunc(func(_ context.Context, count int) (string, error) {
		gotCount = count
		return strings.Repeat("x\n", count), nil
	})
	calc := arith.NewCalculator(arith.WithGenerator(gen))
	ctx := context.Background()

	out, err := calc.Compute(ctx, operation.KindRandomString, decimal.NewFromInt(3), decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}
	if gotCount != 3 || out != "x\nx\nx\n" {
		t.Errorf("count=%d out=%q", gotCount, out)
	}

	for _, bad := range []string{"-1", "10001", "2.5"} {
		gotCount = -100
		_, err := calc.Compute(ctx, operation.KindRandomString, d(bad), decimal.Zero)
		if !errors.Is(err, arith.ErrInvalidCount) {
			t.Errorf("count %s error = %v, want ErrInvalidCount", bad, err)
		}
		if gotCount != -100 {
			t.Errorf("generator called for invalid count %s", bad)
		}
	}

	for _, ok := range []string{"0", "10000"} {
		if err := calc.Validate(operation.KindRandomString, d(ok), decimal.Zero); err != nil {
			t.Errorf("Validate(%s): %v", ok, err)
		}
	}
}

func TestRandomStringUpstream(t *testing.T) {
	ctx := context.Background()
	failing := arith.GeneratorFunc(func(context.Context, int) (string, error) {
		return "", errors.New("connection refused")
	})
	calc := arith.NewCalculator(arith.WithGenerator(failing))
	if _, err := calc.Compute(ctx, operation.KindRandomString, decimal.NewFromInt(1), decimal.Zero); !errors.Is(err, arith.ErrUpstreamUnavailable) {
		t.Errorf("error = %v, want ErrUpstreamUnavailable", err)
	}

	if _, err := arith.NewCalculator().Compute(ctx, operation.KindRandomString, decimal.NewFromInt(1), decimal.Zero); !errors.Is(err, arith.ErrUpstreamUnavailable) {
		t.Errorf("nil generator error = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	ok := arith.GeneratorFunc(func(context.Context, int) (string, error) { return "abc", nil })
	_, err := arith.NewCalculator(arith.WithGenerator(ok)).Compute(cancelled, operation.KindRandomString, decimal.NewFromInt(1), decimal.Zero)
	if !errors.Is(err, arith.ErrUpstreamUnavailable) || !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled error = %v", err)
	}
}

func TestInt64Mode(t *testing.T) {
	calc := arith.NewCalculator(arith.WithMode(arith.ModeInt64))
	ctx := context.Background()
	max := decimal.NewFromInt(math.MaxInt64)
	min := decimal.NewFromInt(math.MinInt64)

	tests := []struct {
		name    string
		kind    operation.Kind
		a, b    decimal.Decimal
		want    string
		wantErr error
	}{
		{"add", operation.KindAddition, d("5"), d("5"), "10", nil},
		{"add overflow", operation.KindAddition, max, d("1"), "", arith.ErrArithmeticOverflow},
		{"sub overflow", operation.KindSubtraction, min, d("1"), "", arith.ErrArithmeticOverflow},
		{"sub", operation.KindSubtraction, d("-5"), d("-5"), "0", nil},
		{"mul", operation.KindMultiplication, d("-3"), d("7"), "-21", nil},
		{"mul overflow", operation.KindMultiplication, max, d("2"), "", arith.ErrArithmeticOverflow},
		{"mul min by -1", operation.KindMultiplication, min, d("-1"), "", arith.ErrArithmeticOverflow},
		{"div exact", operation.KindDivision, d("10"), d("5"), "2", nil},
		{"div truncated", operation.KindDivision, d("10"), d("4"), "2,50", nil},
		{"div negative", operation.KindDivision, d("-10"), d("3"), "-3,33", nil},
		{"div below one", operation.KindDivision, d("1"), d("-3"), "-0,33", nil},
		{"div two thirds", operation.KindDivision, d("2"), d("3"), "0,66", nil},
		{"div min by -1", operation.KindDivision, min, d("-1"), "", arith.ErrArithmeticOverflow},
		{"sqrt floor", operation.KindSquareRoot, d("10"), decimal.Zero, "3", nil},
		{"sqrt max", operation.KindSquareRoot, max, decimal.Zero, "3037000499", nil},
		{"sqrt negative", operation.KindSquareRoot, d("-4"), decimal.Zero, "", arith.ErrNegativeSquareRoot},
		{"operand too large", operation.KindAddition, max.Add(d("1")), d("0"), "", arith.ErrArithmeticOverflow},
		{"fractional operand", operation.KindAddition, d("1.5"), d("1"), "", arith.ErrInvalidOperand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Compute(ctx, tt.kind, tt.a, tt.b)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if verr := calc.Validate(tt.kind, tt.a, tt.b); !errors.Is(verr, tt.wantErr) {
					t.Errorf("Validate error = %v, want %v", verr, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]arith.Mode{"": arith.ModeDecimal, "decimal": arith.ModeDecimal, "int64": arith.ModeInt64} {
		got, err := arith.ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := arith.ParseMode("float"); err == nil {
		t.Error("expected error")
	}
}
