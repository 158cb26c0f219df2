/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to users, accounts, transactions and loans.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/securebank/ledger-service/internal/domain"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAccountNumberTaken  = errors.New("account number already in use")
	ErrCredentialNotSet    = errors.New("password credential not set")
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, btrim(username), email, is_staff FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Username, &user.Email, &user.IsStaff)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserCredentialByUserID returns re-authentication metadata for a user.
func (r *PostgresRepository) GetUserCredentialByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserCredential, error) {
	var credential domain.UserCredential
	query := `
		SELECT user_id, password_hash, failed_attempts, locked_until
		FROM user_credentials
		WHERE user_id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&credential.UserID,
		&credential.PasswordHash,
		&credential.FailedAttempts,
		&credential.LockedUntil,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCredentialNotSet
		}
		return nil, err
	}
	if credential.PasswordHash == "" {
		return nil, ErrCredentialNotSet
	}

	return &credential, nil
}

// RecordFailedReauthAttempt atomically increments failed attempts and applies lockout.
func (r *PostgresRepository) RecordFailedReauthAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int, lockoutDurationSeconds int) (*domain.UserCredential, error) {
	var credential domain.UserCredential
	query := `
		UPDATE user_credentials
		SET
			failed_attempts = CASE
				WHEN (locked_until IS NOT NULL AND locked_until <= NOW())
					OR (locked_until IS NULL AND failed_attempts >= $2) THEN 1
				ELSE failed_attempts + 1
			END,
			last_failed_at = NOW(),
			locked_until = CASE
				WHEN (
					CASE
						WHEN (locked_until IS NOT NULL AND locked_until <= NOW())
							OR (locked_until IS NULL AND failed_attempts >= $2) THEN 1
						ELSE failed_attempts + 1
					END
				) >= $2 THEN NOW() + ($3 * INTERVAL '1 second')
				ELSE NULL
			END
		WHERE user_id = $1
		RETURNING user_id, password_hash, failed_attempts, locked_until
	`
	err := r.db.QueryRow(ctx, query, userID, maxAttempts, lockoutDurationSeconds).Scan(
		&credential.UserID,
		&credential.PasswordHash,
		&credential.FailedAttempts,
		&credential.LockedUntil,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCredentialNotSet
		}
		return nil, err
	}

	return &credential, nil
}

// ResetReauthFailureState clears failed-attempt counters after a successful re-authentication.
func (r *PostgresRepository) ResetReauthFailureState(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE user_credentials
		SET failed_attempts = 0, last_failed_at = NULL, locked_until = NULL
		WHERE user_id = $1
	`
	result, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrCredentialNotSet
	}
	return nil
}

// CreateAccount inserts a new account row in PENDING status.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, account_type, account_number, phone_number, balance, status, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		account.ID,
		account.UserID,
		account.AccountType,
		account.AccountNumber,
		account.PhoneNumber,
		account.Balance,
		account.Status,
		account.IsActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAccountNumberTaken
		}
		return err
	}
	return nil
}

const accountColumns = `id, user_id, account_type, account_number, phone_number, balance, status, is_active, created_at, updated_at`

func scanAccount(row pgx.Row, account *domain.Account) error {
	return row.Scan(
		&account.ID, &account.UserID, &account.AccountType, &account.AccountNumber,
		&account.PhoneNumber, &account.Balance, &account.Status, &account.IsActive,
		&account.CreatedAt, &account.UpdatedAt,
	)
}

// FindAccountByID retrieves a single account by its ID.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	err := scanAccount(r.db.QueryRow(ctx, query, accountID), &account)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindAccountByPhone retrieves the account registered under a phone number.
func (r *PostgresRepository) FindAccountByPhone(ctx context.Context, phoneNumber string) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE phone_number = $1 ORDER BY created_at LIMIT 1`
	err := scanAccount(r.db.QueryRow(ctx, query, phoneNumber), &account)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindAccountByUserID retrieves a user's first opened account, the one money
// movement operates on.
func (r *PostgresRepository) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at LIMIT 1`
	err := scanAccount(r.db.QueryRow(ctx, query, userID), &account)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindAccountsByUserID retrieves all accounts belonging to a user.
func (r *PostgresRepository) FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var account domain.Account
		if err := scanAccount(rows, &account); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// FindAccountsByStatus retrieves all accounts in a given lifecycle status.
func (r *PostgresRepository) FindAccountsByStatus(ctx context.Context, status string) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE status = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var account domain.Account
		if err := scanAccount(rows, &account); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// UpdateAccountStatus transitions an account between lifecycle states. The
// fromStatus guard makes the transition one-directional: a second approval of
// the same account matches zero rows and reports ErrAccountNotFound.
func (r *PostgresRepository) UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, fromStatus, toStatus string) error {
	query := `UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	result, err := r.db.Exec(ctx, query, toStatus, accountID, fromStatus)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// CreditAccount atomically increases an account balance and records the paired
// ledger entry. The account row is locked before the update and released when
// the transaction record commits.
func (r *PostgresRepository) CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64, record *domain.Transaction) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var balance int64
	// Use FOR UPDATE to lock the row, preventing race conditions.
	err = tx.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", accountID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrAccountNotFound
		}
		return err
	}

	if _, err = tx.Exec(ctx, "UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2", amount, accountID); err != nil {
		return err
	}

	if err = insertTransaction(ctx, tx, record); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// TransferFunds atomically debits one account, credits another and records the
// paired TRANSFER entry. Both account rows are locked in deterministic order so
// concurrent transfers touching the same accounts serialize instead of
// deadlocking, and the balance check happens under the lock.
func (r *PostgresRepository) TransferFunds(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount int64, record *domain.Transaction) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	first, second := fromAccountID, toAccountID
	if second.String() < first.String() {
		first, second = second, first
	}

	balances := make(map[uuid.UUID]int64, 2)
	for _, id := range []uuid.UUID{first, second} {
		var balance int64
		err = tx.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", id).Scan(&balance)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrAccountNotFound
			}
			return err
		}
		balances[id] = balance
	}

	if balances[fromAccountID] < amount {
		return ErrInsufficientFunds
	}

	if _, err = tx.Exec(ctx, "UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE id = $2", amount, fromAccountID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, "UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2", amount, toAccountID); err != nil {
		return err
	}

	if err = insertTransaction(ctx, tx, record); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, record *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, from_account_id, to_account_id, transaction_type, amount, status, reference_number, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Exec(ctx, query,
		record.ID,
		record.FromAccountID,
		record.ToAccountID,
		record.TransactionType,
		record.Amount,
		record.Status,
		record.ReferenceNumber,
		record.Description,
	)
	return err
}

const transactionColumns = `id, from_account_id, to_account_id, transaction_type, amount, status, reference_number, COALESCE(description, '') AS description, created_at, updated_at`

func scanTransaction(row pgx.Row, record *domain.Transaction) error {
	return row.Scan(
		&record.ID, &record.FromAccountID, &record.ToAccountID, &record.TransactionType,
		&record.Amount, &record.Status, &record.ReferenceNumber, &record.Description,
		&record.CreatedAt, &record.UpdatedAt,
	)
}

// FindTransactionByID retrieves a single transaction record.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	var record domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	err := scanTransaction(r.db.QueryRow(ctx, query, transactionID), &record)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindTransactionsByAccountIDs retrieves all transactions where any of the given
// accounts appears on either side, newest first.
func (r *PostgresRepository) FindTransactionsByAccountIDs(ctx context.Context, accountIDs []uuid.UUID) ([]domain.Transaction, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE from_account_id = ANY($1) OR to_account_id = ANY($1)
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, accountIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var record domain.Transaction
		if err := scanTransaction(rows, &record); err != nil {
			return nil, err
		}
		transactions = append(transactions, record)
	}
	return transactions, rows.Err()
}

// FindRecentTransactions retrieves the most recent ledger activity for the
// manager dashboard.
func (r *PostgresRepository) FindRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var record domain.Transaction
		if err := scanTransaction(rows, &record); err != nil {
			return nil, err
		}
		transactions = append(transactions, record)
	}
	return transactions, rows.Err()
}

// CreateLoan inserts a new loan application in PENDING status.
func (r *PostgresRepository) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (id, user_id, account_id, term, amount, purpose, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		loan.ID,
		loan.UserID,
		loan.AccountID,
		loan.Term,
		loan.Amount,
		loan.Purpose,
		loan.Status,
	)
	return err
}

const loanColumns = `id, user_id, account_id, term, amount, COALESCE(purpose, '') AS purpose, status, requested_at`

func scanLoan(row pgx.Row, loan *domain.Loan) error {
	return row.Scan(
		&loan.ID, &loan.UserID, &loan.AccountID, &loan.Term,
		&loan.Amount, &loan.Purpose, &loan.Status, &loan.RequestedAt,
	)
}

// FindLoansByUserID retrieves a user's loan applications, newest first.
func (r *PostgresRepository) FindLoansByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE user_id = $1 ORDER BY requested_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		var loan domain.Loan
		if err := scanLoan(rows, &loan); err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// FindLoansByStatus retrieves all loans in a given status for manager review.
func (r *PostgresRepository) FindLoansByStatus(ctx context.Context, status string) ([]domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE status = $1 ORDER BY requested_at DESC`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		var loan domain.Loan
		if err := scanLoan(rows, &loan); err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// UpdateLoanStatus resolves a loan application. Same guard shape as account
// approval: only rows currently in fromStatus transition.
func (r *PostgresRepository) UpdateLoanStatus(ctx context.Context, loanID uuid.UUID, fromStatus, toStatus string) error {
	query := `UPDATE loans SET status = $1 WHERE id = $2 AND status = $3`
	result, err := r.db.Exec(ctx, query, toStatus, loanID, fromStatus)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrLoanNotFound
	}
	return nil
}
