/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's customer-facing
 * API endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business logic.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/securebank/ledger-service/internal/app"
	"github.com/securebank/ledger-service/internal/domain"
	"github.com/securebank/ledger-service/internal/store"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// movementResponse is sent back after a money-movement operation completes.
type movementResponse struct {
	TransactionID   string `json:"transaction_id"`
	ReferenceNumber string `json:"reference_number"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Message         string `json:"message"`
}

func buildMovementResponse(record *domain.Transaction, message string) movementResponse {
	return movementResponse{
		TransactionID:   record.ID.String(),
		ReferenceNumber: record.ReferenceNumber,
		Status:          record.Status,
		Amount:          record.Amount,
		Message:         message,
	}
}

// CreateAccountHandler handles requests to open a new account.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_account outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_account outcome=failed user_id=%s err=%v", userID, err)
		h.respondServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, account)
}

// ListAccountsHandler returns all accounts owned by the caller.
func (h *LedgerHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_accounts outcome=failed user_id=%s err=%v", userID, err)
		h.respondServiceError(w, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	h.writeJSON(w, http.StatusOK, accounts)
}

// GetAccountHandler returns a single account owned by the caller.
func (h *LedgerHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID, userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// DepositHandler handles requests to credit an account looked up by phone number.
func (h *LedgerHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=deposit outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	log.Printf("level=info component=api endpoint=deposit outcome=accepted user_id=%s phone=%s amount=%d", userID, req.PhoneNumber, req.Amount)

	record, err := h.service.Deposit(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=deposit outcome=failed user_id=%s err=%v", userID, err)
		h.respondServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, buildMovementResponse(record, "Deposit completed"))
}

// TransferHandler handles requests to move money to another account by phone number.
func (h *LedgerHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	log.Printf("level=info component=api endpoint=transfer outcome=accepted sender_id=%s recipient_phone=%s amount=%d", userID, req.PhoneNumber, req.Amount)

	record, err := h.service.Transfer(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=failed sender_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, store.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, "No account found with that phone number")
		case errors.Is(err, store.ErrCredentialNotSet):
			h.writeError(w, http.StatusPreconditionFailed, "Password credential is not set")
		case errors.Is(err, app.ErrReauthenticationLocked):
			h.writeError(w, http.StatusLocked, "Too many incorrect password attempts. Please wait and try again.")
		case errors.Is(err, app.ErrReauthenticationFailed):
			h.writeError(w, http.StatusUnauthorized, "Authentication failed. Please check your password.")
		case errors.Is(err, app.ErrTransferRateLimited):
			h.writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, app.ErrAccountNotEligible), errors.Is(err, app.ErrSelfTransfer):
			h.writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrAmountBelowMinimum), errors.Is(err, app.ErrInvalidPhoneNumber):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, buildMovementResponse(record, "Transfer completed"))
}

// ListTransactionsHandler returns the caller's transaction history.
func (h *LedgerHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	transactions, err := h.service.ListTransactions(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_transactions outcome=failed user_id=%s err=%v", userID, err)
		h.respondServiceError(w, err)
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

// GetTransactionHandler returns one transaction the caller participated in.
func (h *LedgerHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		http.Error(w, "Invalid transaction ID", http.StatusBadRequest)
		return
	}

	record, err := h.service.GetTransaction(r.Context(), transactionID, userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// RequestLoanHandler handles new loan applications.
func (h *LedgerHandlers) RequestLoanHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.LoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=request_loan outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	loan, err := h.service.RequestLoan(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=request_loan outcome=failed user_id=%s err=%v", userID, err)
		h.respondServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, loan)
}

// ListLoansHandler returns the caller's loan history.
func (h *LedgerHandlers) ListLoansHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	loans, err := h.service.ListLoans(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_loans outcome=failed user_id=%s err=%v", userID, err)
		h.respondServiceError(w, err)
		return
	}
	if loans == nil {
		loans = []domain.Loan{}
	}
	h.writeJSON(w, http.StatusOK, loans)
}

// respondServiceError maps service-layer errors onto HTTP statuses: validation
// failures to 400, missing records to 404, policy violations to 403 and
// insufficient funds to 402.
func (h *LedgerHandlers) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrLoanNotFound),
		errors.Is(err, store.ErrTransactionNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, store.ErrAccountNumberTaken),
		errors.Is(err, app.ErrInvalidPhoneNumber),
		errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrAmountBelowMinimum),
		errors.Is(err, app.ErrInvalidAccountType),
		errors.Is(err, app.ErrInvalidLoanTerm):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrAccountNotEligible),
		errors.Is(err, app.ErrSelfDeposit),
		errors.Is(err, app.ErrSelfTransfer),
		errors.Is(err, app.ErrNotAccountOwner),
		errors.Is(err, app.ErrNotParticipant):
		h.writeError(w, http.StatusForbidden, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
