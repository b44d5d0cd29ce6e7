/*
service.go - Public operation surface of the wallet

PURPOSE:
  Composes the Engine with existence checks and request parsing. This is
  the layer HTTP handlers talk to; it accepts unvalidated input, returns
  typed domain errors, and never leaks storage details.

ABSENCE VS ERROR:
  GetUser and GetTransaction return (nil, nil) for an absent record; the
  caller decides whether absence is an error. SubmitTransaction, which
  needs the owning user to exist, returns ErrUserNotFound instead.

SEE ALSO:
  - engine.go: Balance application and reconstruction
  - api/handlers.go: HTTP mapping of the operations and error taxonomy
*/
package wallet

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionInput is an unvalidated transaction submission. String fields
// carry whatever the client sent; SubmitTransaction does the parsing.
type TransactionInput struct {
	UID       string
	Type      string
	Amount    string
	Timestamp string
	UserID    int64
}

// Service is the public-facing operation surface.
type Service struct {
	store  Store
	engine *Engine
	log    zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		engine: NewEngine(store),
		log:    log,
	}
}

// CreateUser creates a user with a zero balance. The name is required,
// at most MaxNameLength characters, and unique.
func (s *Service) CreateUser(ctx context.Context, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "must not be empty"}
	}
	// Character limit, not a byte limit; multibyte names count per rune.
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, &ValidationError{Field: "name", Message: "must be at most 64 characters"}
	}

	user, err := s.store.CreateUser(ctx, name)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("user_id", user.ID).Str("name", user.Name).Msg("user created")
	return user, nil
}

// GetUser returns the user, or (nil, nil) if absent.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.store.LoadUser(ctx, id)
}

// GetBalance returns the user's balance. With a nil timestamp it is the
// current balance, read directly; otherwise it is reconstructed as of the
// given time.
func (s *Service) GetBalance(ctx context.Context, user *User, at *time.Time) (decimal.Decimal, error) {
	if at == nil {
		return user.Balance, nil
	}
	return s.engine.BalanceAt(ctx, user, *at)
}

// GetTransaction returns the transaction, or (nil, nil) if absent.
func (s *Service) GetTransaction(ctx context.Context, uid uuid.UUID) (*Transaction, error) {
	return s.store.GetTransaction(ctx, uid)
}

// UserTransactions returns the user's full history in timestamp order.
// Returns ErrUserNotFound if the user does not exist.
func (s *Service) UserTransactions(ctx context.Context, userID int64) ([]Transaction, error) {
	user, err := s.store.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.store.TransactionsByUser(ctx, userID)
}

// SubmitTransaction parses and validates in, resolves the owning user, and
// applies the transaction. The uid is generated when not supplied; the
// timestamp defaults to the submission time.
func (s *Service) SubmitTransaction(ctx context.Context, in TransactionInput) (*Transaction, error) {
	tx, err := s.parseTransaction(in)
	if err != nil {
		return nil, err
	}

	user, err := s.store.LoadUser(ctx, tx.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := s.engine.Apply(ctx, user, tx); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("uid", tx.UID.String()).
		Str("type", string(tx.Type)).
		Str("amount", tx.Amount.StringFixed(2)).
		Int64("user_id", tx.UserID).
		Msg("transaction applied")
	return &tx, nil
}

func (s *Service) parseTransaction(in TransactionInput) (Transaction, error) {
	var tx Transaction

	tx.Type = TxType(in.Type)
	if !tx.Type.Valid() {
		return tx, &ValidationError{Field: "type", Message: `must be "DEPOSIT" or "WITHDRAW"`}
	}

	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return tx, err
	}
	tx.Amount = amount

	if in.UID == "" {
		tx.UID = uuid.New()
	} else {
		uid, err := uuid.Parse(in.UID)
		if err != nil {
			return tx, &ValidationError{Field: "uid", Message: "not a valid UUID"}
		}
		tx.UID = uid
	}

	if in.Timestamp == "" {
		tx.Timestamp = time.Now().UTC()
	} else {
		ts, err := ParseTimestamp(in.Timestamp)
		if err != nil {
			return tx, err
		}
		tx.Timestamp = ts
	}

	if in.UserID <= 0 {
		return tx, &ValidationError{Field: "user_id", Message: "must be a positive integer"}
	}
	tx.UserID = in.UserID

	return tx, nil
}

// ParseTimestamp accepts RFC 3339 as well as the zone-less ISO 8601 forms
// "2006-01-02T15:04:05" and "2006-01-02", which are read as UTC. Fractional
// seconds are accepted after either seconds field.
func ParseTimestamp(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, &ValidationError{Field: "timestamp", Message: "not an ISO 8601 timestamp"}
}
