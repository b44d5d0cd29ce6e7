/*
errors.go - Centralized error types for the wallet domain

PURPOSE:
  All domain errors in one place. Callers branch on these with errors.Is /
  errors.As; they never need to inspect storage-layer details. Anything not
  covered here is a generic storage or connectivity failure and is fatal
  for the request.

ERROR CATEGORIES:
  1. Validation errors - malformed or missing request fields
  2. Not-found errors - absent user or transaction on a path that needs one
  3. Conflict errors - duplicate name, duplicate transaction uid
  4. Balance errors - a write that would drive a balance negative

SEE ALSO:
  - engine.go: Returns InsufficientFundsError
  - store/sqlite: Maps database constraint violations onto these errors
*/
package wallet

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientFunds is returned when applying a transaction would
	// leave the user's balance negative. This is an expected, recoverable
	// outcome of normal operation, not a system failure.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateName is returned when creating a user whose name is taken.
	ErrDuplicateName = errors.New("user name already exists")

	// ErrDuplicateTransaction is returned when submitting a transaction
	// whose uid has already been recorded.
	ErrDuplicateTransaction = errors.New("transaction uid already exists")

	// ErrUserNotFound is returned when an operation requires a user that
	// does not exist. Plain lookups return an absent value instead.
	ErrUserNotFound = errors.New("user not found")

	// ErrTransactionNotFound is the transaction counterpart of ErrUserNotFound.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InsufficientFundsError provides details about a rejected withdrawal.
type InsufficientFundsError struct {
	UserID    int64
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: user %d has %s, requested %s",
		e.UserID, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsConflict returns true if the error is a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrDuplicateTransaction)
}

// IsValidation returns true if the error is due to invalid client input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
