/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the ledger-service. By defining an interface,
 * we decouple the application's business logic from the specific database
 * implementation (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/securebank/ledger-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
//
// CreditAccount and TransferFunds are the money-movement primitives. Each runs
// inside a single database transaction: every touched account row is locked
// before the balance comparison and released only after the paired transaction
// record commits, so a failure anywhere leaves stored balances unchanged.
type Repository interface {
	// User and credential methods
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	GetUserCredentialByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserCredential, error)
	RecordFailedReauthAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int, lockoutDurationSeconds int) (*domain.UserCredential, error)
	ResetReauthFailureState(ctx context.Context, userID uuid.UUID) error

	// Account methods
	CreateAccount(ctx context.Context, account *domain.Account) error
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindAccountByPhone(ctx context.Context, phoneNumber string) (*domain.Account, error)
	FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	FindAccountsByStatus(ctx context.Context, status string) ([]domain.Account, error)
	// UpdateAccountStatus transitions status only when the row currently holds
	// fromStatus; ErrAccountNotFound is returned otherwise.
	UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, fromStatus, toStatus string) error

	// Money movement methods
	CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64, record *domain.Transaction) error
	TransferFunds(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount int64, record *domain.Transaction) error

	// Transaction history methods
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	FindTransactionsByAccountIDs(ctx context.Context, accountIDs []uuid.UUID) ([]domain.Transaction, error)
	FindRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)

	// Loan methods
	CreateLoan(ctx context.Context, loan *domain.Loan) error
	FindLoansByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error)
	FindLoansByStatus(ctx context.Context, status string) ([]domain.Loan, error)
	UpdateLoanStatus(ctx context.Context, loanID uuid.UUID, fromStatus, toStatus string) error
}
