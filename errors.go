package abacus

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/abacus/account"
	"github.com/xraph/abacus/arith"
	"github.com/xraph/abacus/identity"
	"github.com/xraph/abacus/operation"
	"github.com/xraph/abacus/record"
)

// Sentinel errors for every way an execution can fail. They are defined by
// the packages that raise them and re-exported here; match with errors.Is.
var (
	// Identity errors
	ErrInvalidCredential = identity.ErrInvalidCredential
	ErrAccountNotFound   = account.ErrAccountNotFound

	// Request shape errors
	ErrUnknownOperation  = operation.ErrUnknownOperation
	ErrMissingOperand    = operation.ErrMissingOperand
	ErrUnexpectedOperand = operation.ErrUnexpectedOperand
	ErrInvalidOperand    = arith.ErrInvalidOperand

	// Balance errors
	ErrInsufficientBalance = account.ErrInsufficientBalance

	// Arithmetic errors
	ErrDivisionByZero     = arith.ErrDivisionByZero
	ErrNegativeSquareRoot = arith.ErrNegativeSquareRoot
	ErrArithmeticOverflow = arith.ErrArithmeticOverflow
	ErrInvalidCount       = arith.ErrInvalidCount

	// Dependency errors
	ErrUpstreamUnavailable = arith.ErrUpstreamUnavailable
	ErrPersistence         = record.ErrPersistence

	// Engine errors
	ErrNotStarted = errors.New("abacus: engine not started")
)

// Step names the execution stage an error came from.
type Step string

// Execution steps in order.
const (
	StepResolveIdentity  Step = "resolve_identity"
	StepLoadAccount      Step = "load_account"
	StepResolveOperation Step = "resolve_operation"
	StepValidate         Step = "validate"
	StepDebitBalance     Step = "debit_balance"
	StepCompute          Step = "compute"
	StepPersistRecord    Step = "persist_record"
)

// StepError tags an execution failure with the step that produced it.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// FailedStep returns the step recorded in err, or "" when err did not come
// from Execute.
func FailedStep(err error) Step {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, record.ErrRecordNotFound)
}

// IsClientError returns true when the caller sent something the engine
// rejects: bad credentials, bad request shape, short balance or operands the
// computation does not support.
func IsClientError(err error) bool {
	switch StatusCode(err) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusPaymentRequired,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// IsRetryable returns true if the error is temporary. The engine never
// retries; a caller retrying after ErrPersistence risks a second debit when
// refunds are disabled.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// StatusCode maps an execution error to the HTTP status a transport layer
// should answer with. Unknown errors map to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnknownOperation),
		errors.Is(err, ErrMissingOperand),
		errors.Is(err, ErrUnexpectedOperand),
		errors.Is(err, ErrInvalidOperand),
		errors.Is(err, ErrInvalidCount):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrDivisionByZero),
		errors.Is(err, ErrNegativeSquareRoot),
		errors.Is(err, ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
