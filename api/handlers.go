/*
handlers.go - HTTP handlers for the wallet service

PURPOSE:
  Exposes the wallet service via REST. Handles HTTP request/response and
  JSON serialization, and delegates everything else to the domain layer.

ENDPOINTS:
  POST   /user                      Create user
  GET    /user/{id}                 Get user
  GET    /user/{id}/balance         Current or historical balance
  GET    /user/{id}/transactions    Full transaction history
  POST   /transaction               Record a deposit or withdrawal
  GET    /transaction/{id}          Get transaction by uid
  GET    /healthz                   Liveness plus database ping

ERROR HANDLING:
  Domain errors map onto HTTP status codes:
  - 400: Validation errors, malformed input
  - 402: Insufficient funds
  - 404: User or transaction not found
  - 409: Duplicate name or transaction uid
  - 500: Storage or connectivity failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/wallet-ledger/wallet"
)

// Pinger reports storage reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *wallet.Service
	DB      Pinger
}

// NewHandler creates a handler backed by the given service.
func NewHandler(service *wallet.Service, db Pinger) *Handler {
	return &Handler{Service: service, DB: db}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser creates a new user.
// POST /user
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Service.CreateUser(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// GetUser returns a single user.
// GET /user/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	user, err := h.Service.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// GetBalance returns the user's balance, optionally as of a past time.
// GET /user/{id}/balance?timestamp=ISO8601
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var at *time.Time
	if raw := r.URL.Query().Get("timestamp"); raw != "" {
		ts, err := wallet.ParseTimestamp(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid timestamp format", err)
			return
		}
		at = &ts
	}

	user, err := h.Service.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	balance, err := h.Service.GetBalance(r.Context(), user, at)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		UserID:  user.ID,
		Balance: balance.StringFixed(2),
	})
}

// ListTransactions returns the user's full history.
// GET /user/{id}/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	txs, err := h.Service.UserTransactions(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i := range txs {
		dtos[i] = toTransactionDTO(&txs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// SubmitTransaction records a deposit or withdrawal.
// POST /transaction
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req SubmitTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, err := h.Service.SubmitTransaction(r.Context(), wallet.TransactionInput{
		UID:       req.UID,
		Type:      req.Type,
		Amount:    req.Amount,
		Timestamp: req.Timestamp,
		UserID:    req.UserID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// GetTransaction returns a transaction by uid.
// GET /transaction/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	uid, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction uid", err)
		return
	}

	tx, err := h.Service.GetTransaction(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get transaction", err)
		return
	}
	if tx == nil {
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and database reachability.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unreachable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid user id", err)
		return 0, false
	}
	return id, true
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
// Anything untyped is a storage or connectivity failure and surfaces as 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case wallet.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, wallet.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "Insufficient funds", err)
	case wallet.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case wallet.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
