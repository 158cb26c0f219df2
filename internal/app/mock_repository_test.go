package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/securebank/ledger-service/internal/domain"
	"github.com/securebank/ledger-service/internal/store"
)

// mockRepository is an in-memory store.Repository for service tests. Money
// movement mirrors the real implementation's guarantee: a failed operation
// leaves balances and the transaction log untouched.
type mockRepository struct {
	users        map[uuid.UUID]*domain.User
	credentials  map[uuid.UUID]*domain.UserCredential
	accounts     map[uuid.UUID]*domain.Account
	transactions []domain.Transaction
	loans        map[uuid.UUID]*domain.Loan
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:       make(map[uuid.UUID]*domain.User),
		credentials: make(map[uuid.UUID]*domain.UserCredential),
		accounts:    make(map[uuid.UUID]*domain.Account),
		loans:       make(map[uuid.UUID]*domain.Loan),
	}
}

func (m *mockRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, ok := m.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func (m *mockRepository) GetUserCredentialByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserCredential, error) {
	credential, ok := m.credentials[userID]
	if !ok {
		return nil, store.ErrCredentialNotSet
	}
	copied := *credential
	return &copied, nil
}

func (m *mockRepository) RecordFailedReauthAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int, lockoutDurationSeconds int) (*domain.UserCredential, error) {
	credential, ok := m.credentials[userID]
	if !ok {
		return nil, store.ErrCredentialNotSet
	}
	credential.FailedAttempts++
	if credential.FailedAttempts >= maxAttempts {
		lockedUntil := time.Now().Add(time.Duration(lockoutDurationSeconds) * time.Second)
		credential.LockedUntil = &lockedUntil
	}
	copied := *credential
	return &copied, nil
}

func (m *mockRepository) ResetReauthFailureState(ctx context.Context, userID uuid.UUID) error {
	credential, ok := m.credentials[userID]
	if !ok {
		return store.ErrCredentialNotSet
	}
	credential.FailedAttempts = 0
	credential.LockedUntil = nil
	return nil
}

func (m *mockRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	for _, existing := range m.accounts {
		if existing.AccountNumber == account.AccountNumber {
			return store.ErrAccountNumberTaken
		}
	}
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *mockRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, ok := m.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *mockRepository) FindAccountByPhone(ctx context.Context, phoneNumber string) (*domain.Account, error) {
	for _, account := range m.accounts {
		if account.PhoneNumber == phoneNumber {
			copied := *account
			return &copied, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (m *mockRepository) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	for _, account := range m.accounts {
		if account.UserID == userID {
			copied := *account
			return &copied, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (m *mockRepository) FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	var result []domain.Account
	for _, account := range m.accounts {
		if account.UserID == userID {
			result = append(result, *account)
		}
	}
	return result, nil
}

func (m *mockRepository) FindAccountsByStatus(ctx context.Context, status string) ([]domain.Account, error) {
	var result []domain.Account
	for _, account := range m.accounts {
		if account.Status == status {
			result = append(result, *account)
		}
	}
	return result, nil
}

func (m *mockRepository) UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, fromStatus, toStatus string) error {
	account, ok := m.accounts[accountID]
	if !ok || account.Status != fromStatus {
		return store.ErrAccountNotFound
	}
	account.Status = toStatus
	return nil
}

func (m *mockRepository) CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64, record *domain.Transaction) error {
	account, ok := m.accounts[accountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	account.Balance += amount
	m.transactions = append(m.transactions, *record)
	return nil
}

func (m *mockRepository) TransferFunds(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount int64, record *domain.Transaction) error {
	from, ok := m.accounts[fromAccountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	to, ok := m.accounts[toAccountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	if from.Balance < amount {
		return store.ErrInsufficientFunds
	}
	from.Balance -= amount
	to.Balance += amount
	m.transactions = append(m.transactions, *record)
	return nil
}

func (m *mockRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	for _, record := range m.transactions {
		if record.ID == transactionID {
			copied := record
			return &copied, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (m *mockRepository) FindTransactionsByAccountIDs(ctx context.Context, accountIDs []uuid.UUID) ([]domain.Transaction, error) {
	ids := make(map[uuid.UUID]bool, len(accountIDs))
	for _, id := range accountIDs {
		ids[id] = true
	}
	var result []domain.Transaction
	for _, record := range m.transactions {
		if ids[record.FromAccountID] || (record.ToAccountID != nil && ids[*record.ToAccountID]) {
			result = append(result, record)
		}
	}
	return result, nil
}

func (m *mockRepository) FindRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if len(m.transactions) <= limit {
		result := make([]domain.Transaction, len(m.transactions))
		copy(result, m.transactions)
		return result, nil
	}
	result := make([]domain.Transaction, limit)
	copy(result, m.transactions[len(m.transactions)-limit:])
	return result, nil
}

func (m *mockRepository) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	copied := *loan
	m.loans[loan.ID] = &copied
	return nil
}

func (m *mockRepository) FindLoansByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error) {
	var result []domain.Loan
	for _, loan := range m.loans {
		if loan.UserID == userID {
			result = append(result, *loan)
		}
	}
	return result, nil
}

func (m *mockRepository) FindLoansByStatus(ctx context.Context, status string) ([]domain.Loan, error) {
	var result []domain.Loan
	for _, loan := range m.loans {
		if loan.Status == status {
			result = append(result, *loan)
		}
	}
	return result, nil
}

func (m *mockRepository) UpdateLoanStatus(ctx context.Context, loanID uuid.UUID, fromStatus, toStatus string) error {
	loan, ok := m.loans[loanID]
	if !ok || loan.Status != fromStatus {
		return store.ErrLoanNotFound
	}
	loan.Status = toStatus
	return nil
}
