/*
engine.go - Transactional balance updates and historical reconstruction

PURPOSE:
  The Engine owns the invariant "balance >= 0" and the two core operations
  of the system:

  Apply:     records a transaction and adjusts the owner's balance as one
             atomic unit, rejecting any withdrawal the balance cannot cover.
  BalanceAt: reconstructs the balance as of an arbitrary past timestamp by
             reverse-applying every transaction recorded after it.

CONCURRENCY:
  Apply re-reads the balance inside the store's atomic unit, so two
  concurrent applications against the same user are serialized by the
  store and neither observes a stale balance. The unit is the only
  synchronization boundary; the engine holds no locks of its own and
  transactions for different users do not contend.

VALIDATION VS SAFETY NET:
  The engine pre-validates the new balance explicitly and returns a typed
  InsufficientFundsError. The storage layer additionally carries a check
  constraint; if that ever fires it maps onto the same domain error, but
  it is a last line of defense, not the validation path.

SEE ALSO:
  - store.go: The atomic unit contract
  - service.go: Composition with existence checks and request parsing
*/
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Engine applies transactions and reconstructs historical balances.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Apply records tx against user's balance. On success exactly one user row
// is updated and one transaction row inserted, atomically. On failure zero
// rows change.
//
// The caller must pass a transaction owned by user; a mismatch is a
// programming error, not a domain error, and panics.
func (e *Engine) Apply(ctx context.Context, user *User, tx Transaction) error {
	if tx.UserID != user.ID {
		panic(fmt.Sprintf("wallet: transaction %s belongs to user %d, applied to user %d",
			tx.UID, tx.UserID, user.ID))
	}

	return e.store.WithTx(ctx, func(u UnitOfWork) error {
		// Re-read inside the unit; the caller's copy may be stale.
		current, err := u.LoadUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrUserNotFound
		}

		next := current.Balance.Add(tx.Delta())
		if next.IsNegative() {
			return &InsufficientFundsError{
				UserID:    current.ID,
				Available: current.Balance,
				Requested: tx.Amount,
			}
		}

		current.Balance = next
		if err := u.SaveUser(ctx, current); err != nil {
			return err
		}
		if err := u.InsertTransaction(ctx, tx); err != nil {
			return err
		}

		// Expose the committed balance to the caller.
		user.Balance = next
		return nil
	})
}

// BalanceAt returns the balance user would have had immediately after all
// transactions with timestamp <= at.
//
// The committed balance already reflects every transaction, including
// those after at, so the walk starts from it and subtracts the signed
// effect of each later transaction: a deposit after at is subtracted, a
// withdrawal after at is added back. A transaction falling exactly on at
// is already included in the present balance and is not reversed.
//
// The balance and the log are read inside one atomic unit. Reading them
// separately would let a sibling Apply commit in between, leaving a
// transaction in the log that the balance never included and making the
// walk land below zero. The unit mutates nothing; the caller's copy is
// only used for its ID.
func (e *Engine) BalanceAt(ctx context.Context, user *User, at time.Time) (decimal.Decimal, error) {
	balance := decimal.Zero

	err := e.store.WithTx(ctx, func(u UnitOfWork) error {
		current, err := u.LoadUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrUserNotFound
		}

		txs, err := u.TransactionsAfter(ctx, user.ID, at)
		if err != nil {
			return err
		}

		balance = current.Balance
		for _, tx := range txs {
			balance = balance.Sub(tx.Delta())
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}
