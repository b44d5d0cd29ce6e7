/*
Package sqlite provides the SQLite-backed implementation of wallet.Store.

PURPOSE:
  Implements the ledger store contract using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

MONEY REPRESENTATION:
  Balances and amounts are fixed-point with two fractional digits, so they
  are stored as integer cents. That keeps arithmetic exact and lets the
  database enforce "balance >= 0" with a plain check constraint, which is
  the storage layer's last line of defense behind the engine's own
  validation. Timestamps are stored as integer Unix nanoseconds so that
  ORDER BY compares chronologically.

ATOMIC UNITS:
  WithTx wraps database/sql transactions. SQLite allows a single writer at
  a time, and the pool is pinned to one connection, so units are strictly
  serialized at the database level; the Go side holds no locks. A unit
  that returns an error, or whose context is cancelled, rolls back via the
  deferred Rollback on every exit path.

CONSTRAINT MAPPING:
  Constraint violations surface as typed domain errors:
    users.name UNIQUE        -> wallet.ErrDuplicateName
    transactions.uid PK      -> wallet.ErrDuplicateTransaction
    users.balance CHECK      -> wallet.ErrInsufficientFunds

SEE ALSO:
  - wallet/store.go: Interface definitions
  - wallet/store/memory.go: In-memory implementation for engine tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/wallet-ledger/wallet"
)

// Store implements wallet.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store at the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one pooled connection keeps every unit
	// strictly serialized (and makes ":memory:" databases stable).
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TEXT NOT NULL
	);

	-- Append-only ledger. No UPDATE or DELETE is ever issued against it.
	CREATE TABLE IF NOT EXISTS transactions (
		uid TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		tx_type TEXT NOT NULL CHECK (tx_type IN ('DEPOSIT', 'WITHDRAW')),
		amount INTEGER NOT NULL CHECK (amount > 0),
		timestamp INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Balance reconstruction walks (user_id, timestamp > bound) in order;
	-- uid in the index keeps the tie-break deterministic (hot path).
	CREATE INDEX IF NOT EXISTS idx_transactions_user_time
		ON transactions(user_id, timestamp, uid);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser inserts a user with a zero balance and returns it with its
// assigned id.
func (s *Store) CreateUser(ctx context.Context, name string) (*wallet.User, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (name, balance, created_at) VALUES (?, 0, ?)",
		name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintError(err, sqlite3.ErrConstraintUnique) {
			return nil, wallet.ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new user id: %w", err)
	}

	return &wallet.User{ID: id, Name: name, Balance: decimal.Zero}, nil
}

// LoadUser returns the user or nil if absent.
func (s *Store) LoadUser(ctx context.Context, id int64) (*wallet.User, error) {
	return loadUser(ctx, s.db, id)
}

func loadUser(ctx context.Context, db dbtx, id int64) (*wallet.User, error) {
	var (
		user  wallet.User
		cents int64
	)

	err := db.QueryRowContext(ctx,
		"SELECT id, name, balance FROM users WHERE id = ?", id,
	).Scan(&user.ID, &user.Name, &cents)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user.Balance = fromCents(cents)
	return &user, nil
}

func saveUser(ctx context.Context, db dbtx, user *wallet.User) error {
	_, err := db.ExecContext(ctx,
		"UPDATE users SET balance = ? WHERE id = ?",
		toCents(user.Balance), user.ID,
	)
	if err != nil {
		// The check constraint is the safety net behind the engine's own
		// validation; it still maps to the same domain error.
		if isConstraintError(err, sqlite3.ErrConstraintCheck) {
			return wallet.ErrInsufficientFunds
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func insertTransaction(ctx context.Context, db dbtx, tx wallet.Transaction) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO transactions (uid, user_id, tx_type, amount, timestamp, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tx.UID.String(),
		tx.UserID,
		string(tx.Type),
		toCents(tx.Amount),
		tx.Timestamp.UTC().UnixNano(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintError(err, sqlite3.ErrConstraintPrimaryKey) ||
			isConstraintError(err, sqlite3.ErrConstraintUnique) {
			return wallet.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransaction returns the transaction or nil if absent.
func (s *Store) GetTransaction(ctx context.Context, uid uuid.UUID) (*wallet.Transaction, error) {
	query := `
		SELECT uid, user_id, tx_type, amount, timestamp
		FROM transactions
		WHERE uid = ?
	`

	txs, err := queryTransactions(ctx, s.db, query, uid.String())
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

// TransactionsAfter returns the user's transactions with timestamp strictly
// greater than after, ordered by timestamp then uid.
func (s *Store) TransactionsAfter(ctx context.Context, userID int64, after time.Time) ([]wallet.Transaction, error) {
	return transactionsAfter(ctx, s.db, userID, after)
}

func transactionsAfter(ctx context.Context, db dbtx, userID int64, after time.Time) ([]wallet.Transaction, error) {
	query := `
		SELECT uid, user_id, tx_type, amount, timestamp
		FROM transactions
		WHERE user_id = ? AND timestamp > ?
		ORDER BY timestamp ASC, uid ASC
	`

	return queryTransactions(ctx, db, query, userID, after.UTC().UnixNano())
}

// TransactionsByUser returns the user's full history, ordered by timestamp
// then uid.
func (s *Store) TransactionsByUser(ctx context.Context, userID int64) ([]wallet.Transaction, error) {
	query := `
		SELECT uid, user_id, tx_type, amount, timestamp
		FROM transactions
		WHERE user_id = ?
		ORDER BY timestamp ASC, uid ASC
	`

	return queryTransactions(ctx, s.db, query, userID)
}

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]wallet.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []wallet.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (wallet.Transaction, error) {
	var (
		tx       wallet.Transaction
		uid      string
		cents    int64
		unixNano int64
	)

	if err := rows.Scan(&uid, &tx.UserID, &tx.Type, &cents, &unixNano); err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	parsed, err := uuid.Parse(uid)
	if err != nil {
		return tx, fmt.Errorf("failed to parse stored uid %q: %w", uid, err)
	}

	tx.UID = parsed
	tx.Amount = fromCents(cents)
	tx.Timestamp = time.Unix(0, unixNano).UTC()
	return tx, nil
}

// =============================================================================
// ATOMIC UNITS (wallet.UnitOfWork)
// =============================================================================

// WithTx executes fn within one database transaction. The deferred
// Rollback releases the unit on every exit path; it is a no-op after a
// successful Commit.
func (s *Store) WithTx(ctx context.Context, fn func(u wallet.UnitOfWork) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&unit{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type unit struct {
	tx *sql.Tx
}

func (u *unit) LoadUser(ctx context.Context, id int64) (*wallet.User, error) {
	return loadUser(ctx, u.tx, id)
}

func (u *unit) SaveUser(ctx context.Context, user *wallet.User) error {
	return saveUser(ctx, u.tx, user)
}

func (u *unit) InsertTransaction(ctx context.Context, tx wallet.Transaction) error {
	return insertTransaction(ctx, u.tx, tx)
}

func (u *unit) TransactionsAfter(ctx context.Context, userID int64, after time.Time) ([]wallet.Transaction, error) {
	return transactionsAfter(ctx, u.tx, userID, after)
}

// =============================================================================
// HELPERS
// =============================================================================

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same statement
// helpers run inside and outside a unit.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// toCents converts a two-fractional-digit decimal to integer cents.
func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

// fromCents converts integer cents back to a decimal.
func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func isConstraintError(err error, code sqlite3.ErrNoExtended) bool {
	var sqErr sqlite3.Error
	return errors.As(err, &sqErr) && sqErr.ExtendedCode == code
}
