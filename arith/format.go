package arith

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders d the way results are stored: whole numbers without a
// fractional part, everything else with trailing zeros stripped and a comma
// as the decimal separator.
//
//	100      -> "100"
//	100.5000 -> "100,5"
//	30.8     -> "30,8"
func Format(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1)
}
