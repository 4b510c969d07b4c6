package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "debit", "quote")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrValidation is wrapped by every ValidationError. No side effect has happened.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned for unknown ids and ids owned by another account.
	ErrNotFound = errors.New("order not found")

	// ErrInvalidOperation is a business-rule violation, e.g. cancelling a FILLED order.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInsufficientFunds is terminal. The order is recorded REJECTED.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientHoldings rejects a SELL larger than the held quantity, before any ledger call.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrLimitNotMarketable rejects a LIMIT BUY whose limit is below the current quote.
	ErrLimitNotMarketable = errors.New("limit price below market")

	// ErrPriceUnavailable is returned when no usable quote could be obtained.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrLedgerUnavailable is transient; the coordinator retries it a bounded number of times.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrCompensationFailure means funds and order records disagree and need an operator.
	ErrCompensationFailure = errors.New("compensation failure")

	// ErrOutcomeUnknown means the ledger may have applied a movement it never acknowledged.
	ErrOutcomeUnknown = errors.New("settlement outcome unknown")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

// FieldError is a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

// Add records a field violation.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no violation was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// CompensationError carries what an operator needs to reconcile by hand.
// Stage is "reversal" when the compensating movement failed and "settlement"
// when the settlement movement itself was left in doubt.
type CompensationError struct {
	Stage     string
	OrderID   string
	AccountID string
	Side      Side
	Amount    decimal.Decimal
	Cause     error // what left the ledger in doubt
	Err       error // why it could not be resolved
}

func (e *CompensationError) Error() string {
	stage := e.Stage
	if stage == "" {
		stage = "reversal"
	}
	return fmt.Sprintf("compensation failed for order %s (account=%s side=%s amount=%s): %s: %v; cause: %v",
		e.OrderID, e.AccountID, e.Side, e.Amount, stage, e.Err, e.Cause)
}

func (e *CompensationError) Unwrap() error {
	return ErrCompensationFailure
}
