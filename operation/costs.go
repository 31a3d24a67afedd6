package operation

import (
	"fmt"
	"strconv"
)

// Costs is the per-kind price list injected into the catalog.
type Costs struct {
	Addition       int64 `json:"addition"       mapstructure:"addition"       yaml:"addition"`
	Subtraction    int64 `json:"subtraction"    mapstructure:"subtraction"    yaml:"subtraction"`
	Multiplication int64 `json:"multiplication" mapstructure:"multiplication" yaml:"multiplication"`
	Division       int64 `json:"division"       mapstructure:"division"       yaml:"division"`
	SquareRoot     int64 `json:"square_root"    mapstructure:"square_root"    yaml:"square_root"`
	RandomString   int64 `json:"random_string"  mapstructure:"random_string"  yaml:"random_string"`
}

// EnvKeys maps each kind to the environment variable that carries its cost.
var EnvKeys = map[Kind]string{
	KindAddition:       "ADD_COST",
	KindSubtraction:    "SUB_COST",
	KindMultiplication: "MLT_COST",
	KindDivision:       "DIV_COST",
	KindSquareRoot:     "SQR_COST",
	KindRandomString:   "RDM_STR_COST",
}

// DefaultCosts returns a flat price list of one unit per operation, with
// random strings priced higher because they call an upstream service.
func DefaultCosts() Costs {
	return Costs{
		Addition:       1,
		Subtraction:    1,
		Multiplication: 1,
		Division:       1,
		SquareRoot:     1,
		RandomString:   5,
	}
}

// For returns the configured cost of k.
func (c Costs) For(k Kind) int64 {
	switch k {
	case KindAddition:
		return c.Addition
	case KindSubtraction:
		return c.Subtraction
	case KindMultiplication:
		return c.Multiplication
	case KindDivision:
		return c.Division
	case KindSquareRoot:
		return c.SquareRoot
	case KindRandomString:
		return c.RandomString
	default:
		return 0
	}
}

func (c *Costs) set(k Kind, v int64) {
	switch k {
	case KindAddition:
		c.Addition = v
	case KindSubtraction:
		c.Subtraction = v
	case KindMultiplication:
		c.Multiplication = v
	case KindDivision:
		c.Division = v
	case KindSquareRoot:
		c.SquareRoot = v
	case KindRandomString:
		c.RandomString = v
	}
}

// With returns a copy of c with k priced at v.
func (c Costs) With(k Kind, v int64) Costs {
	c.set(k, v)
	return c
}

// Validate rejects non-positive costs.
func (c Costs) Validate() error {
	for _, k := range Kinds {
		if c.For(k) <= 0 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidCost, k, c.For(k))
		}
	}
	return nil
}

// WithEnv overlays costs found through lookup (typically os.LookupEnv) on c.
// Unset keys keep their current value.
func (c Costs) WithEnv(lookup func(string) (string, bool)) (Costs, error) {
	for _, k := range Kinds {
		raw, ok := lookup(EnvKeys[k])
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c, fmt.Errorf("operation: parse %s: %w", EnvKeys[k], err)
		}
		c.set(k, v)
	}
	return c, c.Validate()
}

// CostsFromEnv builds a price list from DefaultCosts overlaid with the
// environment variables named in EnvKeys.
func CostsFromEnv(lookup func(string) (string, bool)) (Costs, error) {
	return DefaultCosts().WithEnv(lookup)
}
