package wallet_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wallet-ledger/wallet"
	"github.com/warp/wallet-ledger/wallet/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestEngine(t *testing.T) (*wallet.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return wallet.NewEngine(mem), mem
}

func newTestUser(t *testing.T, mem *store.Memory, name string) *wallet.User {
	t.Helper()
	user, err := mem.CreateUser(context.Background(), name)
	require.NoError(t, err)
	return user
}

func dec(s string) decimal.Decimal {
	return wallet.MustParseDecimal(s)
}

func at(hour int) time.Time {
	return time.Date(2025, time.March, 10, hour, 0, 0, 0, time.UTC)
}

func deposit(userID int64, amount string, ts time.Time) wallet.Transaction {
	return wallet.Transaction{
		UID:       uuid.New(),
		Type:      wallet.TxDeposit,
		Amount:    dec(amount),
		Timestamp: ts,
		UserID:    userID,
	}
}

func withdraw(userID int64, amount string, ts time.Time) wallet.Transaction {
	return wallet.Transaction{
		UID:       uuid.New(),
		Type:      wallet.TxWithdraw,
		Amount:    dec(amount),
		Timestamp: ts,
		UserID:    userID,
	}
}

// =============================================================================
// APPLY TESTS
// =============================================================================

func TestApply_Deposit_IncreasesBalance(t *testing.T) {
	// GIVEN: A fresh user with balance 0
	// WHEN: Depositing 100.00
	// THEN: Balance is 100.00 and the transaction is recorded

	ctx := context.Background()
	engine, mem := newTestEngine(t)
	user := newTestUser(t, mem, "alice")

	tx := deposit(user.ID, "100.00", at(10))
	require.NoError(t, engine.Apply(ctx, user, tx))

	reloaded, err := mem.LoadUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(dec("100.00")), "balance should be 100.00, got %s", reloaded.Balance)

	stored, err := mem.GetTransaction(ctx, tx.UID)
	require.NoError(t, err)
	require.NotNil(t, stored, "transaction should be recorded")
}

func TestApply_Overdraft_RejectedWithoutStateChange(t *testing.T) {
	// GIVEN: A fresh user with balance 0
	// WHEN: Withdrawing 50.00
	// THEN: InsufficientFunds; no transaction row, balance still 0

	ctx := context.Background()
	engine, mem := newTestEngine(t)
	user := newTestUser(t, mem, "alice")

	tx := withdraw(user.ID, "50.00", at(10))
	err := engine.Apply(ctx, user, tx)

	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	var detail *wallet.InsufficientFundsError
	require.ErrorAs(t, err, &detail)
	assert.True(t, detail.Available.IsZero())
	assert.True(t, detail.Requested.Equal(dec("50.00")))

	reloaded, err := mem.LoadUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.IsZero(), "failed apply must not change balance")

	stored, err := mem.GetTransaction(ctx, tx.UID)
	require.NoError(t, err)
	assert.Nil(t, stored, "failed apply must not persist the transaction")
}

func TestApply_WithdrawToExactlyZero_Allowed(t *testing.T) {
	ctx := context.Background()
	engine, mem := newTestEngine(t)
	user := newTestUser(t, mem, "alice")

	require.NoError(t, engine.Apply(ctx, user, deposit(user.ID, "25.50", at(9))))
	require.NoError(t, engine.Apply(ctx, user, withdraw(user.ID, "25.50", at(10))))

	reloaded, err := mem.LoadUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.IsZero())
}

func TestApply_MismatchedOwner_Panics(t *testing.T) {
	// The owner precondition is a programming error, not a domain error.
	ctx := context.Background()
	engine, mem := newTestEngine(t)
	user := newTestUser(t, mem, "alice")

	assert.Panics(t, func() {
		_ = engine.Apply(ctx, user, deposit(user.ID+1, "10.00", at(10)))
	})
}

func TestApply_UnknownUser_NotFound(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	ghost := &wallet.User{ID: 42, Name: "ghost", Balance: decimal.Zero}
	err := engine.Apply(ctx, ghost, deposit(42, "10.00", at(10)))
	require.ErrorIs(t, err, wallet.ErrUserNotFound)
}

func TestApply_ConcurrentOverdraft_ExactlyOneSucceeds(t *testing.T) {
	// GIVEN: A user with balance 100.00
	// WHEN: Two concurrent withdrawals of 70.00 each
	// THEN: Exactly one succeeds with InsufficientFunds for the other,
	//       and the final balance is 30.00

	ctx := context.Background()
	engine, mem := newTestEngine(t)
	user := newTestUser(t, mem, "alice")
	require.NoError(t, engine.Apply(ctx, user, deposit(user.ID, "100.00", at(9))))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := &wallet.User{ID: user.ID}
			errs[i] = engine.Apply(ctx, u, withdraw(user.ID, "70.00", at(10+i)))
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, wallet.ErrInsufficientFunds)
			failed++
		}
	}
	assert.Equal(t, 1, failed, "exactly one of the two withdrawals must fail")

	reloaded, err := mem.LoadUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(dec("30.00")),
		"final balance should be 30.00, got %s", reloaded.Balance)
}

// =============================================================================
// RECONSTRUCTION TESTS
// =============================================================================

func TestBalanceAt_ReconstructionRoundTrip(t *testing.T) {
	// GIVEN: N transactions applied in timestamp order
	// WHEN: Reconstructing between transaction k and k+1
	// THEN: The result equals the running balance after the first k

	ctx := context.Background()
	engine, mem := newTestEngine(t)
	user := newTestUser(t, mem, "alice")

	txs := []wallet.Transaction{
		deposit(user.ID, "100.00", at(10)),
		withdraw(user.ID, "30.00", at(11)),
		deposit(user.ID, "5.25", at(12)),
		withdraw(user.ID, "75.00", at(13)),
	}
	running := []string{"100.00", "70.00", "75.25", "0.25"}

	for _, tx := range txs {
		require.NoError(t, engine.Apply(ctx, user, tx))
	}

	for k, want := range running {
		got, err := engine.BalanceAt(ctx, user, txs[k].Timestamp.Add(30*time.Minute))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec(want)),
			"after tx %d expected %s, got %s", k, want, got)
	}
}

func TestBalanceAt_BeforeFirstTransaction_IsZero(t *testing.T) {
	ctx := context.Background()
	engine, mem := newTestEngine(t)
	user := newTestUser(t, mem, "alice")

	require.NoError(t, engine.Apply(ctx, user, deposit(user.ID, "100.00", at(10))))

	got, err := engine.BalanceAt(ctx, user, at(9))
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "balance before any transaction is the creation default")
}

func TestBalanceAt_AfterLastTransaction_EqualsCurrent(t *testing.T) {
	ctx := context.Background()
	engine, mem := newTestEngine(t)
	user := newTestUser(t, mem, "alice")

	require.NoError(t, engine.Apply(ctx, user, deposit(user.ID, "100.00", at(10))))
	require.NoError(t, engine.Apply(ctx, user, withdraw(user.ID, "30.00", at(11))))

	got, err := engine.BalanceAt(ctx, user, at(23))
	require.NoError(t, err)
	assert.True(t, got.Equal(user.Balance), "no transactions after at means current balance")
}

func TestBalanceAt_BoundaryTimestamp_NotReversed(t *testing.T) {
	// GIVEN: A transaction exactly at the query time
	// WHEN: Reconstructing at that instant
	// THEN: The transaction counts as already included (strict >)

	ctx := context.Background()
	engine, mem := newTestEngine(t)
	user := newTestUser(t, mem, "alice")

	require.NoError(t, engine.Apply(ctx, user, deposit(user.ID, "100.00", at(10))))
	require.NoError(t, engine.Apply(ctx, user, withdraw(user.ID, "30.00", at(11))))

	got, err := engine.BalanceAt(ctx, user, at(11))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("70.00")),
		"the withdrawal at the boundary must not be reversed, got %s", got)
}

func TestBalanceAt_StaleCallerSnapshot_ReadsCommittedState(t *testing.T) {
	// GIVEN: A caller holding a user copy loaded before a sibling deposit
	//        committed
	// WHEN: Reconstructing the balance before that deposit's timestamp
	// THEN: The walk uses the committed balance and log, read together,
	//       and never lands below zero

	ctx := context.Background()
	engine, mem := newTestEngine(t)
	user := newTestUser(t, mem, "alice")

	stale := *user // balance still 0.00

	sibling, err := mem.LoadUser(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, engine.Apply(ctx, sibling, deposit(user.ID, "100.00", at(10))))

	got, err := engine.BalanceAt(ctx, &stale, at(9))
	require.NoError(t, err)
	assert.False(t, got.IsNegative(), "reconstruction must never go below zero, got %s", got)
	assert.True(t, got.IsZero(), "before the deposit the balance was 0.00, got %s", got)

	got, err = engine.BalanceAt(ctx, &stale, at(11))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("100.00")), "after the deposit the balance is 100.00, got %s", got)
}

func TestBalanceAt_UnknownUser_NotFound(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	ghost := &wallet.User{ID: 42, Name: "ghost", Balance: decimal.Zero}
	_, err := engine.BalanceAt(ctx, ghost, at(10))
	require.ErrorIs(t, err, wallet.ErrUserNotFound)
}

func TestBalanceAt_ReversesDepositsAndRestoresWithdrawals(t *testing.T) {
	ctx := context.Background()
	engine, mem := newTestEngine(t)
	user := newTestUser(t, mem, "alice")

	require.NoError(t, engine.Apply(ctx, user, deposit(user.ID, "100.00", at(10))))
	require.NoError(t, engine.Apply(ctx, user, withdraw(user.ID, "40.00", at(12))))
	require.NoError(t, engine.Apply(ctx, user, deposit(user.ID, "15.00", at(14))))

	// Current balance is 75.00. Walking back past the 15.00 deposit and the
	// 40.00 withdrawal: 75 - 15 + 40 = 100.
	got, err := engine.BalanceAt(ctx, user, at(11))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("100.00")), "expected 100.00, got %s", got)
}
