/*
Package wallet provides the core ledger engine of the service.

PURPOSE:
  This package contains the domain types and algorithms for managing user
  balances: how a transaction is applied atomically against a balance, how
  the non-negative invariant is enforced, and how a balance at an arbitrary
  past point in time is reconstructed from the transaction log.

KEY CONCEPTS IN THIS FILE (types.go):
  - User: An account with a name and a non-negative balance
  - Transaction: An immutable ledger entry (deposit or withdrawal)
  - TxType: The direction a transaction moves the balance

DESIGN PRINCIPLES:
  1. Immutability: Transactions are written once and never modified
  2. Precision: Uses decimal.Decimal, never binary floating-point
  3. Explicitness: No ORM, no lazy loading; the Store contract states
     exactly what each call reads and writes

SEE ALSO:
  - engine.go: Balance application and historical reconstruction
  - store.go: Persistence contract consumed by the engine
  - errors.go: Domain error taxonomy
*/
package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxNameLength is the longest user name the service accepts.
const MaxNameLength = 64

// =============================================================================
// USER
// =============================================================================

// User is an account holder. Balance is the only mutable field and it is
// mutated exclusively by the engine applying a transaction; as observed by
// any committed read it is never negative.
type User struct {
	ID      int64
	Name    string
	Balance decimal.Decimal
}

// =============================================================================
// TRANSACTION
// =============================================================================

type TxType string

const (
	TxDeposit  TxType = "DEPOSIT"
	TxWithdraw TxType = "WITHDRAW"
)

// Valid reports whether t is one of the known transaction types.
func (t TxType) Valid() bool {
	return t == TxDeposit || t == TxWithdraw
}

// Transaction is a single immutable ledger entry. Once written it is
// permanent: there is no update or delete path, only the append in
// Engine.Apply.
type Transaction struct {
	UID       uuid.UUID
	Type      TxType
	Amount    decimal.Decimal // strictly positive, two fractional digits
	Timestamp time.Time
	UserID    int64
}

// Delta returns the signed effect of the transaction on its owner's
// balance: +Amount for a deposit, -Amount for a withdrawal.
func (t Transaction) Delta() decimal.Decimal {
	if t.Type == TxWithdraw {
		return t.Amount.Neg()
	}
	return t.Amount
}

// MustParseDecimal parses s as a decimal, returning zero on failure.
// Intended for trusted inputs (storage round-trips, test fixtures);
// request parsing goes through ParseAmount instead.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseAmount parses a request amount: a strictly positive decimal with at
// most two fractional digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "not a decimal number"}
	}
	if !d.IsPositive() {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "must be strictly positive"}
	}
	if !d.Equal(d.Round(2)) {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "at most two fractional digits"}
	}
	return d, nil
}
