/**
 * @description
 * Account lifecycle management: customers open accounts that start PENDING,
 * and a manager approves, denies or (for approved accounts) freezes them.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and data access.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/google/uuid"
	"github.com/securebank/ledger-service/internal/domain"
)

// CreateAccount opens a new account in PENDING status. When no account number
// is supplied a ten digit number is generated; collisions with an existing
// number surface as store.ErrAccountNumberTaken.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID, req domain.CreateAccountRequest) (*domain.Account, error) {
	if !ValidAccountType(req.AccountType) {
		return nil, ErrInvalidAccountType
	}
	if !ValidPhoneNumber(req.PhoneNumber) {
		return nil, ErrInvalidPhoneNumber
	}

	accountNumber := req.AccountNumber
	if accountNumber == "" {
		accountNumber = generateAccountNumber()
	}

	account := &domain.Account{
		ID:            uuid.New(),
		UserID:        userID,
		AccountType:   req.AccountType,
		AccountNumber: accountNumber,
		PhoneNumber:   req.PhoneNumber,
		Balance:       0,
		Status:        domain.AccountStatusPending,
		IsActive:      true,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger op=create_account account_id=%s user_id=%s number=%s", account.ID, userID, accountNumber)
	return account, nil
}

// ApproveAccount transitions a PENDING account to APPROVED. A repeat approval
// finds no PENDING row and reports not-found.
func (s *Service) ApproveAccount(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.UpdateAccountStatus(ctx, accountID, domain.AccountStatusPending, domain.AccountStatusApproved)
}

// DenyAccount transitions a PENDING account to DENIED.
func (s *Service) DenyAccount(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.UpdateAccountStatus(ctx, accountID, domain.AccountStatusPending, domain.AccountStatusDenied)
}

// FreezeAccount takes an APPROVED account out of money-movement eligibility.
// FROZEN is only reachable from APPROVED.
func (s *Service) FreezeAccount(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.UpdateAccountStatus(ctx, accountID, domain.AccountStatusApproved, domain.AccountStatusFrozen)
}

// ListAccounts retrieves all of a user's accounts for the dashboard.
func (s *Service) ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	return s.repo.FindAccountsByUserID(ctx, userID)
}

// GetAccount retrieves a single account, restricted to its owner.
func (s *Service) GetAccount(ctx context.Context, accountID, userID uuid.UUID) (*domain.Account, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, ErrNotAccountOwner
	}
	return account, nil
}

// ManagerOverview aggregates everything a manager reviews in one call.
func (s *Service) ManagerOverview(ctx context.Context) (*domain.ManagerOverview, error) {
	pendingAccounts, err := s.repo.FindAccountsByStatus(ctx, domain.AccountStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending accounts: %w", err)
	}
	pendingLoans, err := s.repo.FindLoansByStatus(ctx, domain.LoanStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending loans: %w", err)
	}
	recent, err := s.repo.FindRecentTransactions(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent transactions: %w", err)
	}

	return &domain.ManagerOverview{
		PendingAccounts:    pendingAccounts,
		PendingLoans:       pendingLoans,
		RecentTransactions: recent,
	}, nil
}

// generateAccountNumber derives a ten digit account number from a fresh UUID.
func generateAccountNumber() string {
	id := uuid.New()
	digits := new(big.Int).SetBytes(id[:]).String()
	return digits[:10]
}
