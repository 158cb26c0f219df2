/**
 * @description
 * Loan request management: customers apply for loans against one of their
 * accounts; a manager resolves the application with the same PENDING-guarded
 * state machine used for account approval.
 */

package app

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/securebank/ledger-service/internal/domain"
)

// RequestLoan records a loan application in PENDING status. The account must
// belong to the requesting user.
func (s *Service) RequestLoan(ctx context.Context, userID uuid.UUID, req domain.LoanRequest) (*domain.Loan, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.Term <= 0 {
		return nil, ErrInvalidLoanTerm
	}

	account, err := s.repo.FindAccountByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, ErrNotAccountOwner
	}

	purpose := req.Purpose
	if purpose == "" {
		purpose = "General"
	}

	loan := &domain.Loan{
		ID:        uuid.New(),
		UserID:    userID,
		AccountID: account.ID,
		Term:      req.Term,
		Amount:    req.Amount,
		Purpose:   purpose,
		Status:    domain.LoanStatusPending,
	}
	if err := s.repo.CreateLoan(ctx, loan); err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger op=request_loan loan_id=%s user_id=%s amount=%d term=%d", loan.ID, userID, req.Amount, req.Term)
	return loan, nil
}

// ApproveLoan resolves a PENDING loan as APPROVED.
func (s *Service) ApproveLoan(ctx context.Context, loanID uuid.UUID) error {
	return s.repo.UpdateLoanStatus(ctx, loanID, domain.LoanStatusPending, domain.LoanStatusApproved)
}

// DenyLoan resolves a PENDING loan as DENIED.
func (s *Service) DenyLoan(ctx context.Context, loanID uuid.UUID) error {
	return s.repo.UpdateLoanStatus(ctx, loanID, domain.LoanStatusPending, domain.LoanStatusDenied)
}

// ListLoans retrieves a user's loan history, newest first.
func (s *Service) ListLoans(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error) {
	return s.repo.FindLoansByUserID(ctx, userID)
}
