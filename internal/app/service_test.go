package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/securebank/ledger-service/internal/domain"
	"github.com/securebank/ledger-service/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse battery staple"

type recordingPublisher struct {
	exchanges   []string
	routingKeys []string
	bodies      []interface{}
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.exchanges = append(p.exchanges, exchange)
	p.routingKeys = append(p.routingKeys, routingKey)
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *recordingPublisher) Close() {}

type stubRateLimiter struct {
	count int
	err   error
}

func (l *stubRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	if l.err != nil {
		return 0, 0, l.err
	}
	l.count++
	return l.count, 30, nil
}

func seedUser(t *testing.T, repo *mockRepository, username, email string) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	repo.users[userID] = &domain.User{ID: userID, Username: username, Email: email}
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash test password: %v", err)
	}
	repo.credentials[userID] = &domain.UserCredential{UserID: userID, PasswordHash: string(hash)}
	return userID
}

func seedAccount(t *testing.T, repo *mockRepository, userID uuid.UUID, phone string, balance int64, status string) *domain.Account {
	t.Helper()
	account := &domain.Account{
		ID:            uuid.New(),
		UserID:        userID,
		AccountType:   "SAVINGS",
		AccountNumber: uuid.New().String()[:10],
		PhoneNumber:   phone,
		Balance:       balance,
		Status:        status,
		IsActive:      true,
	}
	repo.accounts[account.ID] = account
	return account
}

func newTestService(repo *mockRepository) (*Service, *recordingPublisher) {
	publisher := &recordingPublisher{}
	return NewService(repo, publisher, 100), publisher
}

func TestDeposit_CreditsTargetAndRecordsOneTransaction(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)

	callerID := seedUser(t, repo, "alice", "alice@example.com")
	targetID := seedUser(t, repo, "bob", "bob@example.com")
	seedAccount(t, repo, callerID, "+237650000001", 5000, domain.AccountStatusApproved)
	target := seedAccount(t, repo, targetID, "+237650000002", 1000, domain.AccountStatusApproved)

	record, err := service.Deposit(context.Background(), callerID, domain.DepositRequest{PhoneNumber: "+237650000002", Amount: 250})
	if err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}

	if got := repo.accounts[target.ID].Balance; got != 1250 {
		t.Errorf("expected target balance 1250, got %d", got)
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("expected exactly one transaction, got %d", len(repo.transactions))
	}
	if record.Status != domain.TransactionStatusCompleted {
		t.Errorf("expected COMPLETED status, got %s", record.Status)
	}
	if record.TransactionType != domain.TransactionTypeDeposit {
		t.Errorf("expected DEPOSIT type, got %s", record.TransactionType)
	}
	if record.FromAccountID != target.ID || record.ToAccountID == nil || *record.ToAccountID != target.ID {
		t.Errorf("expected deposit record to reference the credited account on both sides")
	}
	if record.Description != "Deposit from +237650000002" {
		t.Errorf("unexpected description %q", record.Description)
	}
}

func TestDeposit_RejectsSelfDeposit(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)

	callerID := seedUser(t, repo, "alice", "alice@example.com")
	account := seedAccount(t, repo, callerID, "+237650000001", 5000, domain.AccountStatusApproved)

	_, err := service.Deposit(context.Background(), callerID, domain.DepositRequest{PhoneNumber: account.PhoneNumber, Amount: 100})
	if !errors.Is(err, ErrSelfDeposit) {
		t.Fatalf("expected ErrSelfDeposit, got %v", err)
	}
	if repo.accounts[account.ID].Balance != 5000 {
		t.Errorf("self-deposit must not change the balance")
	}
	if len(repo.transactions) != 0 {
		t.Errorf("self-deposit must not record a transaction")
	}
}

func TestDeposit_RejectsIneligibleCallerAccount(t *testing.T) {
	for _, status := range []string{domain.AccountStatusPending, domain.AccountStatusFrozen, domain.AccountStatusDenied} {
		t.Run(status, func(t *testing.T) {
			repo := newMockRepository()
			service, _ := newTestService(repo)

			callerID := seedUser(t, repo, "alice", "alice@example.com")
			targetID := seedUser(t, repo, "bob", "bob@example.com")
			seedAccount(t, repo, callerID, "+237650000001", 5000, status)
			seedAccount(t, repo, targetID, "+237650000002", 0, domain.AccountStatusApproved)

			_, err := service.Deposit(context.Background(), callerID, domain.DepositRequest{PhoneNumber: "+237650000002", Amount: 100})
			if !errors.Is(err, ErrAccountNotEligible) {
				t.Fatalf("expected ErrAccountNotEligible, got %v", err)
			}
		})
	}
}

func TestDeposit_AllowsCallerWithoutAccount(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)

	callerID := uuid.New() // no account, no user record needed for deposit
	targetID := seedUser(t, repo, "bob", "bob@example.com")
	target := seedAccount(t, repo, targetID, "+237650000002", 0, domain.AccountStatusApproved)

	if _, err := service.Deposit(context.Background(), callerID, domain.DepositRequest{PhoneNumber: "+237650000002", Amount: 42}); err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}
	if repo.accounts[target.ID].Balance != 42 {
		t.Errorf("expected balance 42, got %d", repo.accounts[target.ID].Balance)
	}
}

func TestDeposit_ValidationErrors(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)
	callerID := uuid.New()

	tests := []struct {
		name    string
		req     domain.DepositRequest
		wantErr error
	}{
		{"zero amount", domain.DepositRequest{PhoneNumber: "+237650000002", Amount: 0}, ErrInvalidAmount},
		{"negative amount", domain.DepositRequest{PhoneNumber: "+237650000002", Amount: -50}, ErrInvalidAmount},
		{"bad phone", domain.DepositRequest{PhoneNumber: "12345", Amount: 100}, ErrInvalidPhoneNumber},
		{"unknown phone", domain.DepositRequest{PhoneNumber: "+237650000009", Amount: 100}, store.ErrAccountNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Deposit(context.Background(), callerID, tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTransfer_MovesMoneyAtomically(t *testing.T) {
	repo := newMockRepository()
	service, publisher := newTestService(repo)

	senderID := seedUser(t, repo, "alice", "alice@example.com")
	recipientID := seedUser(t, repo, "bob", "bob@example.com")
	sender := seedAccount(t, repo, senderID, "+237650000001", 5000, domain.AccountStatusApproved)
	recipient := seedAccount(t, repo, recipientID, "+237650000002", 0, domain.AccountStatusApproved)

	record, err := service.Transfer(context.Background(), senderID, domain.TransferRequest{
		PhoneNumber: "+237650000002",
		Amount:      2000,
		Password:    testPassword,
	})
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}

	if got := repo.accounts[sender.ID].Balance; got != 3000 {
		t.Errorf("expected sender balance 3000, got %d", got)
	}
	if got := repo.accounts[recipient.ID].Balance; got != 2000 {
		t.Errorf("expected recipient balance 2000, got %d", got)
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("expected exactly one transaction, got %d", len(repo.transactions))
	}
	if record.TransactionType != domain.TransactionTypeTransfer || record.Amount != 2000 {
		t.Errorf("expected one TRANSFER of 2000, got %s of %d", record.TransactionType, record.Amount)
	}
	if record.Status != domain.TransactionStatusCompleted {
		t.Errorf("expected COMPLETED status, got %s", record.Status)
	}
	if record.ReferenceNumber == "" {
		t.Errorf("expected a generated reference number")
	}

	// Conservation: total across both accounts is unchanged.
	total := repo.accounts[sender.ID].Balance + repo.accounts[recipient.ID].Balance
	if total != 5000 {
		t.Errorf("expected conserved total 5000, got %d", total)
	}

	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "transfer.received" {
		t.Fatalf("expected one transfer.received event, got %v", publisher.routingKeys)
	}
	payload, ok := publisher.bodies[0].(domain.TransferReceivedPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", publisher.bodies[0])
	}
	if payload.SenderUsername != "alice" || payload.RecipientEmail != "bob@example.com" || payload.Amount != 2000 {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestTransfer_InsufficientFundsLeavesBalancesUnchanged(t *testing.T) {
	repo := newMockRepository()
	service, publisher := newTestService(repo)

	senderID := seedUser(t, repo, "alice", "alice@example.com")
	recipientID := seedUser(t, repo, "bob", "bob@example.com")
	sender := seedAccount(t, repo, senderID, "+237650000001", 5000, domain.AccountStatusApproved)
	recipient := seedAccount(t, repo, recipientID, "+237650000002", 0, domain.AccountStatusApproved)

	_, err := service.Transfer(context.Background(), senderID, domain.TransferRequest{
		PhoneNumber: "+237650000002",
		Amount:      9999,
		Password:    testPassword,
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if repo.accounts[sender.ID].Balance != 5000 {
		t.Errorf("failed transfer must not change the sender balance, got %d", repo.accounts[sender.ID].Balance)
	}
	if repo.accounts[recipient.ID].Balance != 0 {
		t.Errorf("failed transfer must not change the recipient balance, got %d", repo.accounts[recipient.ID].Balance)
	}
	if len(repo.transactions) != 0 {
		t.Errorf("failed transfer must not record a transaction")
	}
	if len(publisher.routingKeys) != 0 {
		t.Errorf("failed transfer must not publish an event")
	}
}

func TestTransfer_RejectsSelfTransfer(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)

	senderID := seedUser(t, repo, "alice", "alice@example.com")
	sender := seedAccount(t, repo, senderID, "+237650000001", 5000, domain.AccountStatusApproved)

	_, err := service.Transfer(context.Background(), senderID, domain.TransferRequest{
		PhoneNumber: sender.PhoneNumber,
		Amount:      500,
		Password:    testPassword,
	})
	if !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
	if repo.accounts[sender.ID].Balance != 5000 {
		t.Errorf("self-transfer must not change the balance")
	}
}

func TestTransfer_RejectsIneligibleSender(t *testing.T) {
	for _, status := range []string{domain.AccountStatusPending, domain.AccountStatusFrozen} {
		t.Run(status, func(t *testing.T) {
			repo := newMockRepository()
			service, _ := newTestService(repo)

			senderID := seedUser(t, repo, "alice", "alice@example.com")
			recipientID := seedUser(t, repo, "bob", "bob@example.com")
			seedAccount(t, repo, senderID, "+237650000001", 5000, status)
			seedAccount(t, repo, recipientID, "+237650000002", 0, domain.AccountStatusApproved)

			_, err := service.Transfer(context.Background(), senderID, domain.TransferRequest{
				PhoneNumber: "+237650000002",
				Amount:      500,
				Password:    testPassword,
			})
			if !errors.Is(err, ErrAccountNotEligible) {
				t.Fatalf("expected ErrAccountNotEligible, got %v", err)
			}
		})
	}
}

func TestTransfer_RejectsAmountBelowMinimum(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)

	senderID := seedUser(t, repo, "alice", "alice@example.com")
	seedAccount(t, repo, senderID, "+237650000001", 5000, domain.AccountStatusApproved)

	_, err := service.Transfer(context.Background(), senderID, domain.TransferRequest{
		PhoneNumber: "+237650000002",
		Amount:      99,
		Password:    testPassword,
	})
	if !errors.Is(err, ErrAmountBelowMinimum) {
		t.Fatalf("expected ErrAmountBelowMinimum, got %v", err)
	}
}

func TestTransfer_WrongPasswordFailsWithoutMovingMoney(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)

	senderID := seedUser(t, repo, "alice", "alice@example.com")
	recipientID := seedUser(t, repo, "bob", "bob@example.com")
	sender := seedAccount(t, repo, senderID, "+237650000001", 5000, domain.AccountStatusApproved)
	seedAccount(t, repo, recipientID, "+237650000002", 0, domain.AccountStatusApproved)

	_, err := service.Transfer(context.Background(), senderID, domain.TransferRequest{
		PhoneNumber: "+237650000002",
		Amount:      500,
		Password:    "wrong password",
	})
	if !errors.Is(err, ErrReauthenticationFailed) {
		t.Fatalf("expected ErrReauthenticationFailed, got %v", err)
	}
	if repo.accounts[sender.ID].Balance != 5000 {
		t.Errorf("failed re-auth must not change the balance")
	}
	if repo.credentials[senderID].FailedAttempts != 1 {
		t.Errorf("expected one recorded failed attempt, got %d", repo.credentials[senderID].FailedAttempts)
	}
}

func TestTransfer_LockoutAfterRepeatedFailures(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)
	service.ConfigureReauthPolicy(3, 600)

	senderID := seedUser(t, repo, "alice", "alice@example.com")
	recipientID := seedUser(t, repo, "bob", "bob@example.com")
	seedAccount(t, repo, senderID, "+237650000001", 5000, domain.AccountStatusApproved)
	seedAccount(t, repo, recipientID, "+237650000002", 0, domain.AccountStatusApproved)

	req := domain.TransferRequest{PhoneNumber: "+237650000002", Amount: 500, Password: "wrong password"}
	for i := 0; i < 2; i++ {
		if _, err := service.Transfer(context.Background(), senderID, req); !errors.Is(err, ErrReauthenticationFailed) {
			t.Fatalf("attempt %d: expected ErrReauthenticationFailed, got %v", i+1, err)
		}
	}

	// The third failure crosses the threshold and locks the user out.
	if _, err := service.Transfer(context.Background(), senderID, req); !errors.Is(err, ErrReauthenticationLocked) {
		t.Fatalf("expected ErrReauthenticationLocked on threshold, got %v", err)
	}

	// Even the correct password is rejected while locked.
	req.Password = testPassword
	if _, err := service.Transfer(context.Background(), senderID, req); !errors.Is(err, ErrReauthenticationLocked) {
		t.Fatalf("expected ErrReauthenticationLocked while locked, got %v", err)
	}
}

func TestTransfer_SuccessResetsFailureCount(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)

	senderID := seedUser(t, repo, "alice", "alice@example.com")
	recipientID := seedUser(t, repo, "bob", "bob@example.com")
	seedAccount(t, repo, senderID, "+237650000001", 5000, domain.AccountStatusApproved)
	seedAccount(t, repo, recipientID, "+237650000002", 0, domain.AccountStatusApproved)
	repo.credentials[senderID].FailedAttempts = 2

	_, err := service.Transfer(context.Background(), senderID, domain.TransferRequest{
		PhoneNumber: "+237650000002",
		Amount:      500,
		Password:    testPassword,
	})
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if repo.credentials[senderID].FailedAttempts != 0 {
		t.Errorf("expected failure count reset after success, got %d", repo.credentials[senderID].FailedAttempts)
	}
}

func TestTransfer_RateLimitExceeded(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)
	limiter := &stubRateLimiter{count: 2}
	service.SetTransferRateLimiter(limiter, 2)

	senderID := seedUser(t, repo, "alice", "alice@example.com")
	recipientID := seedUser(t, repo, "bob", "bob@example.com")
	sender := seedAccount(t, repo, senderID, "+237650000001", 5000, domain.AccountStatusApproved)
	seedAccount(t, repo, recipientID, "+237650000002", 0, domain.AccountStatusApproved)

	_, err := service.Transfer(context.Background(), senderID, domain.TransferRequest{
		PhoneNumber: "+237650000002",
		Amount:      500,
		Password:    testPassword,
	})
	if !errors.Is(err, ErrTransferRateLimited) {
		t.Fatalf("expected ErrTransferRateLimited, got %v", err)
	}
	if repo.accounts[sender.ID].Balance != 5000 {
		t.Errorf("rate-limited transfer must not change the balance")
	}
}

func TestTransfer_RateLimiterFailureDegradesOpen(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)
	service.SetTransferRateLimiter(&stubRateLimiter{err: errors.New("redis down")}, 2)

	senderID := seedUser(t, repo, "alice", "alice@example.com")
	recipientID := seedUser(t, repo, "bob", "bob@example.com")
	seedAccount(t, repo, senderID, "+237650000001", 5000, domain.AccountStatusApproved)
	seedAccount(t, repo, recipientID, "+237650000002", 0, domain.AccountStatusApproved)

	if _, err := service.Transfer(context.Background(), senderID, domain.TransferRequest{
		PhoneNumber: "+237650000002",
		Amount:      500,
		Password:    testPassword,
	}); err != nil {
		t.Fatalf("expected transfer to proceed when the limiter is unavailable, got %v", err)
	}
}

func TestAdminCredit_RecordsAdminCreditTransaction(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)

	targetID := seedUser(t, repo, "bob", "bob@example.com")
	target := seedAccount(t, repo, targetID, "+237650000002", 100, domain.AccountStatusApproved)

	record, err := service.AdminCredit(context.Background(), domain.AdminCreditRequest{PhoneNumber: "+237650000002", Amount: 900})
	if err != nil {
		t.Fatalf("AdminCredit returned error: %v", err)
	}
	if repo.accounts[target.ID].Balance != 1000 {
		t.Errorf("expected balance 1000, got %d", repo.accounts[target.ID].Balance)
	}
	if record.TransactionType != domain.TransactionTypeAdminCredit {
		t.Errorf("expected ADMIN_CREDIT type, got %s", record.TransactionType)
	}
	if record.Description != "Admin credited 900" {
		t.Errorf("unexpected description %q", record.Description)
	}
	if record.FromAccountID != target.ID || record.ToAccountID == nil || *record.ToAccountID != target.ID {
		t.Errorf("expected credit record to reference the credited account on both sides")
	}
}

func TestAdminCredit_RejectsNonPositiveAmount(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)

	_, err := service.AdminCredit(context.Background(), domain.AdminCreditRequest{PhoneNumber: "+237650000002", Amount: 0})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestGetTransaction_RestrictedToParticipants(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)

	senderID := seedUser(t, repo, "alice", "alice@example.com")
	recipientID := seedUser(t, repo, "bob", "bob@example.com")
	outsiderID := seedUser(t, repo, "carol", "carol@example.com")
	seedAccount(t, repo, senderID, "+237650000001", 5000, domain.AccountStatusApproved)
	seedAccount(t, repo, recipientID, "+237650000002", 0, domain.AccountStatusApproved)
	seedAccount(t, repo, outsiderID, "+237650000003", 0, domain.AccountStatusApproved)

	record, err := service.Transfer(context.Background(), senderID, domain.TransferRequest{
		PhoneNumber: "+237650000002",
		Amount:      500,
		Password:    testPassword,
	})
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}

	for _, participant := range []uuid.UUID{senderID, recipientID} {
		if _, err := service.GetTransaction(context.Background(), record.ID, participant); err != nil {
			t.Errorf("participant %s should see the transaction, got %v", participant, err)
		}
	}
	if _, err := service.GetTransaction(context.Background(), record.ID, outsiderID); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("expected ErrNotParticipant for outsider, got %v", err)
	}
}

func TestListTransactions_ReturnsHistoryAcrossAccounts(t *testing.T) {
	repo := newMockRepository()
	service, _ := newTestService(repo)

	senderID := seedUser(t, repo, "alice", "alice@example.com")
	recipientID := seedUser(t, repo, "bob", "bob@example.com")
	seedAccount(t, repo, senderID, "+237650000001", 5000, domain.AccountStatusApproved)
	seedAccount(t, repo, recipientID, "+237650000002", 0, domain.AccountStatusApproved)

	if _, err := service.Transfer(context.Background(), senderID, domain.TransferRequest{
		PhoneNumber: "+237650000002", Amount: 500, Password: testPassword,
	}); err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if _, err := service.Deposit(context.Background(), senderID, domain.DepositRequest{
		PhoneNumber: "+237650000002", Amount: 100,
	}); err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}

	senderHistory, err := service.ListTransactions(context.Background(), senderID)
	if err != nil {
		t.Fatalf("ListTransactions returned error: %v", err)
	}
	if len(senderHistory) != 1 {
		t.Errorf("expected 1 transaction for the sender, got %d", len(senderHistory))
	}

	recipientHistory, err := service.ListTransactions(context.Background(), recipientID)
	if err != nil {
		t.Fatalf("ListTransactions returned error: %v", err)
	}
	if len(recipientHistory) != 2 {
		t.Errorf("expected 2 transactions for the recipient, got %d", len(recipientHistory))
	}
}
