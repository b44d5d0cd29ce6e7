/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  domain model. Monetary values cross the wire as decimal strings with two
  fractional digits, never as floating-point numbers.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  DTOs are pure data carriers. Validation happens in the wallet service,
  which is where the typed domain errors come from.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/wallet-ledger/wallet"
)

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

// CreateUserRequest is the request to create a user.
type CreateUserRequest struct {
	Name string `json:"name"`
}

// BalanceDTO is the response to a balance query.
type BalanceDTO struct {
	UserID  int64  `json:"user_id"`
	Balance string `json:"balance"`
}

// TransactionDTO represents a transaction in API responses.
type TransactionDTO struct {
	UID       string `json:"uid"`
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
	UserID    int64  `json:"user_id"`
}

// SubmitTransactionRequest is the request to record a transaction.
// UID and Timestamp are optional; absent values are assigned server-side.
type SubmitTransactionRequest struct {
	UID       string `json:"uid"`
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
	UserID    int64  `json:"user_id"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toUserDTO(u *wallet.User) UserDTO {
	return UserDTO{
		ID:      u.ID,
		Name:    u.Name,
		Balance: u.Balance.StringFixed(2),
	}
}

func toTransactionDTO(tx *wallet.Transaction) TransactionDTO {
	return TransactionDTO{
		UID:       tx.UID.String(),
		Type:      string(tx.Type),
		Amount:    tx.Amount.StringFixed(2),
		Timestamp: tx.Timestamp.UTC().Format(time.RFC3339Nano),
		UserID:    tx.UserID,
	}
}
