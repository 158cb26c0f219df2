/**
 * @description
 * This file defines the core domain models for the ledger-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit, which avoids
 *   floating-point inaccuracies with financial data.
 * - Account and Loan share the same approval state machine: PENDING is the sole
 *   initial state, APPROVED and DENIED are terminal from PENDING. FROZEN is
 *   reachable only from APPROVED and only for accounts.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account statuses.
const (
	AccountStatusPending  = "PENDING"
	AccountStatusApproved = "APPROVED"
	AccountStatusDenied   = "DENIED"
	AccountStatusFrozen   = "FROZEN"
)

// Transaction types.
const (
	TransactionTypeDeposit     = "DEPOSIT"
	TransactionTypeWithdrawal  = "WITHDRAWAL"
	TransactionTypeTransfer    = "TRANSFER"
	TransactionTypeAdminCredit = "ADMIN_CREDIT"
)

// Transaction statuses. COMPLETED transactions are immutable.
const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
)

// Loan statuses.
const (
	LoanStatusPending  = "PENDING"
	LoanStatusApproved = "APPROVED"
	LoanStatusDenied   = "DENIED"
)

// AccountTypes lists the account products a customer can open.
var AccountTypes = []string{
	"SAVINGS", "CHECKING", "FIXED", "LOAN", "CREDIT", "MOBILE",
	"VIRTUAL", "BUSINESS", "JOINT", "STUDENT", "RETIREMENT", "OTHER",
}

// Account represents a customer account row in the ledger.
// Balance is kept non-negative at all times by the store layer.
type Account struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	AccountType   string    `json:"account_type"`
	AccountNumber string    `json:"account_number"`
	PhoneNumber   string    `json:"phone_number"`
	Balance       int64     `json:"balance"`
	Status        string    `json:"status"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Transaction represents the central ledger record for any money movement.
// Deposits and admin credits reference the credited account as both sides,
// preserving one self-referencing credit record per operation.
type Transaction struct {
	ID              uuid.UUID  `json:"id"`
	FromAccountID   uuid.UUID  `json:"from_account_id"`
	ToAccountID     *uuid.UUID `json:"to_account_id,omitempty"`
	TransactionType string     `json:"transaction_type"`
	Amount          int64      `json:"amount"`
	Status          string     `json:"status"`
	ReferenceNumber string     `json:"reference_number"`
	Description     string     `json:"description"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Loan represents a loan application awaiting manager resolution.
type Loan struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	AccountID   uuid.UUID `json:"account_id"`
	Term        int       `json:"term"` // months
	Amount      int64     `json:"amount"`
	Purpose     string    `json:"purpose"`
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requested_at"`
}

// User is the simplified view of a customer the ledger-service needs:
// identity for ownership checks, email for notification addressing and the
// password hash for transfer re-authentication.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	IsStaff  bool      `json:"is_staff"`
}

// UserCredential stores server-owned re-authentication metadata for a user.
type UserCredential struct {
	UserID         uuid.UUID  `json:"user_id"`
	PasswordHash   string     `json:"-"`
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
}

// CreateAccountRequest is the DTO for opening a new account.
// AccountNumber is optional; a ten digit number is generated when absent.
type CreateAccountRequest struct {
	AccountType   string `json:"account_type"`
	PhoneNumber   string `json:"phone_number"`
	AccountNumber string `json:"account_number,omitempty"`
}

// DepositRequest is the DTO for crediting another customer's account by phone.
type DepositRequest struct {
	PhoneNumber string `json:"phone_number"`
	Amount      int64  `json:"amount"`
}

// TransferRequest is the DTO for moving money to another account by phone.
// Password is re-checked against the sender's stored credential before commit.
type TransferRequest struct {
	PhoneNumber string `json:"phone_number"`
	Amount      int64  `json:"amount"`
	Password    string `json:"password"`
}

// AdminCreditRequest is the DTO for a staff-initiated balance credit.
type AdminCreditRequest struct {
	PhoneNumber string `json:"phone_number"`
	Amount      int64  `json:"amount"`
}

// LoanRequest is the DTO for a new loan application.
type LoanRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
	Term      int       `json:"term"`
	Purpose   string    `json:"purpose"`
}

// TransferReceivedPayload is the message payload published when a transfer
// completes, consumed by the mail-delivery collaborator.
type TransferReceivedPayload struct {
	ReferenceNumber string    `json:"reference_number"`
	SenderUsername  string    `json:"sender_username"`
	RecipientEmail  string    `json:"recipient_email"`
	Amount          int64     `json:"amount"`
	Timestamp       time.Time `json:"timestamp"`
}

// ManagerOverview aggregates the records a manager reviews: accounts and loans
// awaiting resolution plus the most recent ledger activity.
type ManagerOverview struct {
	PendingAccounts    []Account     `json:"pending_accounts"`
	PendingLoans       []Loan        `json:"pending_loans"`
	RecentTransactions []Transaction `json:"recent_transactions"`
}
