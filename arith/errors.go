package arith

import "errors"

var (
	ErrDivisionByZero      = errors.New("abacus: division by 0 is not possible")
	ErrNegativeSquareRoot  = errors.New("abacus: negative numbers don't have square roots")
	ErrArithmeticOverflow  = errors.New("abacus: arithmetic overflow")
	ErrInvalidCount        = errors.New("abacus: random string count must be an integer between 0 and 10000")
	ErrUpstreamUnavailable = errors.New("abacus: random string service unavailable")
	ErrInvalidOperand      = errors.New("abacus: invalid operand")
)
