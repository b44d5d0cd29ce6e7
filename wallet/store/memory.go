// Package store provides an in-memory wallet.Store for tests and demos.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/wallet-ledger/wallet"
)

// Memory implements wallet.Store with maps. A single mutex held for the
// whole atomic unit stands in for the database's isolation; it is a test
// double, not a production store.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]wallet.User
	names  map[string]int64
	txs    map[uuid.UUID]wallet.Transaction
	byUser map[int64][]wallet.Transaction // sorted by (timestamp, uid)
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[int64]wallet.User),
		names:  make(map[string]int64),
		txs:    make(map[uuid.UUID]wallet.Transaction),
		byUser: make(map[int64][]wallet.Transaction),
	}
}

func (m *Memory) CreateUser(_ context.Context, name string) (*wallet.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.names[name]; taken {
		return nil, wallet.ErrDuplicateName
	}

	m.nextID++
	user := wallet.User{ID: m.nextID, Name: name, Balance: decimal.Zero}
	m.users[user.ID] = user
	m.names[name] = user.ID

	out := user
	return &out, nil
}

func (m *Memory) LoadUser(_ context.Context, id int64) (*wallet.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadUserLocked(id), nil
}

func (m *Memory) loadUserLocked(id int64) *wallet.User {
	user, ok := m.users[id]
	if !ok {
		return nil
	}
	out := user
	return &out
}

func (m *Memory) GetTransaction(_ context.Context, uid uuid.UUID) (*wallet.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[uid]
	if !ok {
		return nil, nil
	}
	out := tx
	return &out, nil
}

func (m *Memory) TransactionsAfter(_ context.Context, userID int64, after time.Time) ([]wallet.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transactionsAfterLocked(userID, after), nil
}

func (m *Memory) transactionsAfterLocked(userID int64, after time.Time) []wallet.Transaction {
	txs := m.byUser[userID]
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].Timestamp.After(after)
	})

	out := make([]wallet.Transaction, len(txs)-i)
	copy(out, txs[i:])
	return out
}

func (m *Memory) TransactionsByUser(_ context.Context, userID int64) ([]wallet.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]wallet.Transaction, len(m.byUser[userID]))
	copy(out, m.byUser[userID])
	return out, nil
}

// WithTx serializes all units behind the mutex and buffers writes until fn
// returns; an error discards the buffer, leaving the store untouched.
func (m *Memory) WithTx(_ context.Context, fn func(u wallet.UnitOfWork) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := &memUnit{store: m}
	if err := fn(u); err != nil {
		return err
	}

	for _, user := range u.savedUsers {
		m.users[user.ID] = user
	}
	for _, tx := range u.inserted {
		m.txs[tx.UID] = tx
		m.insertSortedLocked(tx)
	}
	return nil
}

// insertSortedLocked keeps byUser ordered with a binary search for the
// insertion point.
func (m *Memory) insertSortedLocked(tx wallet.Transaction) {
	txs := m.byUser[tx.UserID]
	i := sort.Search(len(txs), func(i int) bool {
		if !txs[i].Timestamp.Equal(tx.Timestamp) {
			return txs[i].Timestamp.After(tx.Timestamp)
		}
		return strings.Compare(txs[i].UID.String(), tx.UID.String()) > 0
	})

	txs = append(txs, wallet.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.byUser[tx.UserID] = txs
}

type memUnit struct {
	store      *Memory
	savedUsers map[int64]wallet.User
	inserted   []wallet.Transaction
}

func (u *memUnit) LoadUser(_ context.Context, id int64) (*wallet.User, error) {
	if user, ok := u.savedUsers[id]; ok {
		out := user
		return &out, nil
	}
	return u.store.loadUserLocked(id), nil
}

func (u *memUnit) SaveUser(_ context.Context, user *wallet.User) error {
	// Same last line of defense the database enforces with its check
	// constraint.
	if user.Balance.IsNegative() {
		return wallet.ErrInsufficientFunds
	}
	if u.savedUsers == nil {
		u.savedUsers = make(map[int64]wallet.User)
	}
	u.savedUsers[user.ID] = *user
	return nil
}

func (u *memUnit) InsertTransaction(_ context.Context, tx wallet.Transaction) error {
	if _, dup := u.store.txs[tx.UID]; dup {
		return wallet.ErrDuplicateTransaction
	}
	for _, pending := range u.inserted {
		if pending.UID == tx.UID {
			return wallet.ErrDuplicateTransaction
		}
	}
	u.inserted = append(u.inserted, tx)
	return nil
}

func (u *memUnit) TransactionsAfter(_ context.Context, userID int64, after time.Time) ([]wallet.Transaction, error) {
	// The unit already holds the store mutex for its whole lifetime, so
	// the committed view cannot shift underneath this read.
	return u.store.transactionsAfterLocked(userID, after), nil
}
