/*
store.go - Persistence contract for users and transactions

PURPOSE:
  Defines the interface between the domain logic and the database. The
  engine and service never touch SQL; they consume this contract. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

ATOMIC UNITS:
  WithTx is the transaction primitive. Everything done through the
  UnitOfWork handle commits or rolls back together, and the underlying
  resources are released on every exit path, including a cancelled
  context. The engine's read-validate-write cycle always runs inside one
  unit so that no balance is computed from a value a sibling unit is
  concurrently mutating.

APPEND-ONLY CONTRACT:
  Transactions are insert-only. There is no update or delete method, and
  implementations must not provide one.

SEE ALSO:
  - store/sqlite: Production implementation
  - wallet/store: In-memory implementation for tests
*/
package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the ledger store consumed by the Engine and Service.
type Store interface {
	// WithTx runs fn inside one atomic unit. If fn returns an error the
	// unit rolls back in full; otherwise it commits. Writes are only
	// possible through the UnitOfWork handle.
	WithTx(ctx context.Context, fn func(u UnitOfWork) error) error

	// CreateUser inserts a new user with a zero balance and returns it
	// with its assigned id. Returns ErrDuplicateName if the name is taken.
	CreateUser(ctx context.Context, name string) (*User, error)

	// LoadUser returns the user or nil if absent.
	LoadUser(ctx context.Context, id int64) (*User, error)

	// GetTransaction returns the transaction or nil if absent.
	GetTransaction(ctx context.Context, uid uuid.UUID) (*Transaction, error)

	// TransactionsAfter returns the user's transactions with timestamp
	// strictly greater than after, ordered by timestamp then uid.
	TransactionsAfter(ctx context.Context, userID int64, after time.Time) ([]Transaction, error)

	// TransactionsByUser returns the user's full history, ordered by
	// timestamp then uid.
	TransactionsByUser(ctx context.Context, userID int64) ([]Transaction, error)
}

// UnitOfWork is the scoped handle for reads and writes inside one atomic
// unit. Reads through it observe the unit's own uncommitted writes.
type UnitOfWork interface {
	// LoadUser re-reads the user inside the unit. The value returned is
	// stable for the lifetime of the unit: no sibling unit can commit a
	// conflicting balance update before this one finishes.
	LoadUser(ctx context.Context, id int64) (*User, error)

	// SaveUser persists the user's balance. Implementations enforce the
	// non-negative balance constraint as a last line of defense and map a
	// violation onto ErrInsufficientFunds.
	SaveUser(ctx context.Context, user *User) error

	// InsertTransaction appends a ledger entry. Returns
	// ErrDuplicateTransaction if the uid is already recorded.
	InsertTransaction(ctx context.Context, tx Transaction) error

	// TransactionsAfter is TransactionsAfter scoped to the unit, so a
	// balance and the log it is reconciled against come from the same
	// snapshot.
	TransactionsAfter(ctx context.Context, userID int64, after time.Time) ([]Transaction, error)
}
