/**
 * @description
 * This file contains the core money-movement logic for the ledger-service. The
 * `Service` struct orchestrates deposits, transfers and privileged credits,
 * coordinating between the database repository and the message broker.
 *
 * Key features:
 * - Enforces the eligibility policy: only APPROVED, unfrozen accounts move money.
 * - Re-authenticates the caller (bcrypt password check with lockout) before a
 *   transfer commits.
 * - Delegates balance mutation to atomic repository operations so a failure at
 *   any point leaves stored balances unchanged.
 * - Publishes transfer.received events for the mail-delivery collaborator;
 *   publish failures are logged, never propagated.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation (ids and reference numbers).
 * - golang.org/x/crypto/bcrypt: Password re-authentication.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/securebank/ledger-service/internal/domain"
	"github.com/securebank/ledger-service/internal/store"
	"github.com/securebank/ledger-service/pkg/rabbitmq"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPhoneNumber     = errors.New("phone number must match the +2376XXXXXXXX or 6XXXXXXXX pattern")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrAmountBelowMinimum     = errors.New("amount is below the transfer minimum")
	ErrInvalidAccountType     = errors.New("unknown account type")
	ErrInvalidLoanTerm        = errors.New("loan term must be a positive number of months")
	ErrAccountNotEligible     = errors.New("account is not approved or is frozen")
	ErrSelfDeposit            = errors.New("cannot deposit into your own account")
	ErrSelfTransfer           = errors.New("cannot transfer to your own account")
	ErrNotAccountOwner        = errors.New("account does not belong to this user")
	ErrNotParticipant         = errors.New("transaction does not involve this user")
	ErrReauthenticationFailed = errors.New("password re-authentication failed")
	ErrReauthenticationLocked = errors.New("too many failed password attempts")
	ErrTransferRateLimited    = errors.New("transfer rate limit exceeded")
)

const transferEventsExchange = "securebank.events"

// RateLimiter is implemented by distributed rate limiters (see RedisRateLimiter).
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic of the ledger.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher

	minTransferAmount int64
	reauthMaxAttempts int
	reauthLockoutSecs int

	rateLimiter            RateLimiter
	transferLimitPerMinute int
}

// NewService creates a new ledger service instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, minTransferAmount int64) *Service {
	if minTransferAmount < 1 {
		minTransferAmount = 1
	}
	return &Service{
		repo:              repo,
		eventProducer:     producer,
		minTransferAmount: minTransferAmount,
		reauthMaxAttempts: 5,
		reauthLockoutSecs: 600,
	}
}

// ConfigureReauthPolicy overrides the failed-attempt lockout policy.
func (s *Service) ConfigureReauthPolicy(maxAttempts, lockoutSeconds int) {
	if maxAttempts > 0 {
		s.reauthMaxAttempts = maxAttempts
	}
	if lockoutSeconds > 0 {
		s.reauthLockoutSecs = lockoutSeconds
	}
}

// SetTransferRateLimiter enables distributed per-sender transfer rate limiting.
func (s *Service) SetTransferRateLimiter(limiter RateLimiter, limitPerMinute int) {
	s.rateLimiter = limiter
	s.transferLimitPerMinute = limitPerMinute
}

// Deposit credits the account registered under targetPhone and records one
// COMPLETED DEPOSIT transaction referencing that account on both sides.
// A caller that holds an account may only deposit while that account is
// APPROVED, and never into their own account.
func (s *Service) Deposit(ctx context.Context, callerUserID uuid.UUID, req domain.DepositRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !ValidPhoneNumber(req.PhoneNumber) {
		return nil, ErrInvalidPhoneNumber
	}

	callerAccount, err := s.repo.FindAccountByUserID(ctx, callerUserID)
	if err != nil && !errors.Is(err, store.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to find caller account: %w", err)
	}
	if callerAccount != nil {
		if callerAccount.Status != domain.AccountStatusApproved {
			return nil, ErrAccountNotEligible
		}
		if callerAccount.PhoneNumber == req.PhoneNumber {
			return nil, ErrSelfDeposit
		}
	}

	target, err := s.repo.FindAccountByPhone(ctx, req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	record := &domain.Transaction{
		ID:              uuid.New(),
		FromAccountID:   target.ID,
		ToAccountID:     &target.ID,
		TransactionType: domain.TransactionTypeDeposit,
		Amount:          req.Amount,
		Status:          domain.TransactionStatusCompleted,
		ReferenceNumber: uuid.New().String(),
		Description:     fmt.Sprintf("Deposit from %s", req.PhoneNumber),
	}
	if err := s.repo.CreditAccount(ctx, target.ID, req.Amount, record); err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger op=deposit outcome=completed account_id=%s amount=%d reference=%s", target.ID, req.Amount, record.ReferenceNumber)
	return record, nil
}

// Transfer moves money from the caller's account to the account registered
// under the recipient phone number. The caller's password is re-checked before
// anything commits; the debit, credit and TRANSFER record are applied in one
// database transaction or not at all.
func (s *Service) Transfer(ctx context.Context, senderUserID uuid.UUID, req domain.TransferRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.Amount < s.minTransferAmount {
		return nil, ErrAmountBelowMinimum
	}
	if !ValidPhoneNumber(req.PhoneNumber) {
		return nil, ErrInvalidPhoneNumber
	}

	senderAccount, err := s.repo.FindAccountByUserID(ctx, senderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find sender account: %w", err)
	}
	if senderAccount.Status != domain.AccountStatusApproved {
		return nil, ErrAccountNotEligible
	}

	if err := s.consumeTransferRateLimit(ctx, senderUserID); err != nil {
		return nil, err
	}

	if err := s.VerifyPassword(ctx, senderUserID, req.Password); err != nil {
		return nil, err
	}

	if req.PhoneNumber == senderAccount.PhoneNumber {
		return nil, ErrSelfTransfer
	}

	recipientAccount, err := s.repo.FindAccountByPhone(ctx, req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	record := &domain.Transaction{
		ID:              uuid.New(),
		FromAccountID:   senderAccount.ID,
		ToAccountID:     &recipientAccount.ID,
		TransactionType: domain.TransactionTypeTransfer,
		Amount:          req.Amount,
		Status:          domain.TransactionStatusCompleted,
		ReferenceNumber: uuid.New().String(),
		Description:     fmt.Sprintf("Transfer to %s", req.PhoneNumber),
	}
	if err := s.repo.TransferFunds(ctx, senderAccount.ID, recipientAccount.ID, req.Amount, record); err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger op=transfer outcome=completed from=%s to=%s amount=%d reference=%s", senderAccount.ID, recipientAccount.ID, req.Amount, record.ReferenceNumber)

	s.publishTransferReceived(ctx, senderUserID, recipientAccount.UserID, record)

	return record, nil
}

// AdminCredit is the privileged counterpart of Deposit: staff credit a customer
// account directly, recording one COMPLETED ADMIN_CREDIT transaction. Staff
// access is enforced at the API boundary.
func (s *Service) AdminCredit(ctx context.Context, req domain.AdminCreditRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	target, err := s.repo.FindAccountByPhone(ctx, req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	record := &domain.Transaction{
		ID:              uuid.New(),
		FromAccountID:   target.ID,
		ToAccountID:     &target.ID,
		TransactionType: domain.TransactionTypeAdminCredit,
		Amount:          req.Amount,
		Status:          domain.TransactionStatusCompleted,
		ReferenceNumber: uuid.New().String(),
		Description:     fmt.Sprintf("Admin credited %d", req.Amount),
	}
	if err := s.repo.CreditAccount(ctx, target.ID, req.Amount, record); err != nil {
		return nil, err
	}

	log.Printf("level=info component=ledger op=admin_credit outcome=completed account_id=%s amount=%d reference=%s", target.ID, req.Amount, record.ReferenceNumber)
	return record, nil
}

// VerifyPassword re-authenticates a user against their stored bcrypt hash,
// applying the failed-attempt lockout policy.
func (s *Service) VerifyPassword(ctx context.Context, userID uuid.UUID, password string) error {
	credential, err := s.repo.GetUserCredentialByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if credential.LockedUntil != nil && credential.LockedUntil.After(time.Now()) {
		return ErrReauthenticationLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(credential.PasswordHash), []byte(password)) != nil {
		updated, recordErr := s.repo.RecordFailedReauthAttempt(ctx, userID, s.reauthMaxAttempts, s.reauthLockoutSecs)
		if recordErr != nil {
			log.Printf("level=error component=ledger msg=\"failed to record reauth attempt\" user_id=%s err=%v", userID, recordErr)
			return ErrReauthenticationFailed
		}
		if updated.LockedUntil != nil && updated.LockedUntil.After(time.Now()) {
			return ErrReauthenticationLocked
		}
		return ErrReauthenticationFailed
	}

	if err := s.repo.ResetReauthFailureState(ctx, userID); err != nil {
		log.Printf("level=warn component=ledger msg=\"failed to reset reauth state\" user_id=%s err=%v", userID, err)
	}
	return nil
}

// ListTransactions retrieves the full history across all of a user's accounts.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	accounts, err := s.repo.FindAccountsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.ID)
	}
	return s.repo.FindTransactionsByAccountIDs(ctx, ids)
}

// GetTransaction retrieves a single transaction, restricted to participants.
func (s *Service) GetTransaction(ctx context.Context, transactionID, userID uuid.UUID) (*domain.Transaction, error) {
	record, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	accounts, err := s.repo.FindAccountsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		if record.FromAccountID == account.ID {
			return record, nil
		}
		if record.ToAccountID != nil && *record.ToAccountID == account.ID {
			return record, nil
		}
	}
	return nil, ErrNotParticipant
}

func (s *Service) consumeTransferRateLimit(ctx context.Context, senderUserID uuid.UUID) error {
	if s.rateLimiter == nil || s.transferLimitPerMinute <= 0 {
		return nil
	}

	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "transfer", senderUserID.String(), s.transferLimitPerMinute, time.Minute)
	if err != nil {
		// The limiter is protective, not load-bearing: degrade open.
		log.Printf("level=warn component=ledger msg=\"transfer rate limiter unavailable\" user_id=%s err=%v", senderUserID, err)
		return nil
	}
	if count > s.transferLimitPerMinute {
		log.Printf("level=warn component=ledger op=transfer outcome=rate_limited user_id=%s count=%d retry_after=%d", senderUserID, count, retryAfter)
		return ErrTransferRateLimited
	}
	return nil
}

// publishTransferReceived notifies the mail-delivery collaborator that a
// transfer landed. Failure here must not roll back the completed transfer.
func (s *Service) publishTransferReceived(ctx context.Context, senderUserID, recipientUserID uuid.UUID, record *domain.Transaction) {
	if s.eventProducer == nil {
		return
	}

	sender, err := s.repo.FindUserByID(ctx, senderUserID)
	if err != nil {
		log.Printf("level=warn component=ledger msg=\"transfer notification skipped; sender lookup failed\" user_id=%s err=%v", senderUserID, err)
		return
	}
	recipient, err := s.repo.FindUserByID(ctx, recipientUserID)
	if err != nil {
		log.Printf("level=warn component=ledger msg=\"transfer notification skipped; recipient lookup failed\" user_id=%s err=%v", recipientUserID, err)
		return
	}

	payload := domain.TransferReceivedPayload{
		ReferenceNumber: record.ReferenceNumber,
		SenderUsername:  sender.Username,
		RecipientEmail:  recipient.Email,
		Amount:          record.Amount,
		Timestamp:       time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, transferEventsExchange, "transfer.received", payload); err != nil {
		log.Printf("level=warn component=ledger msg=\"transfer notification publish failed\" reference=%s err=%v", record.ReferenceNumber, err)
	}
}
