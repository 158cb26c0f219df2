/**
 * @description
 * Staff-only handlers: the manager dashboard overview, account and loan
 * resolution, account freezing and privileged credits. All routes in this file
 * sit behind the RequireStaff middleware.
 */

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/securebank/ledger-service/internal/domain"
)

// ManagerOverviewHandler returns pending accounts, pending loans and recent activity.
func (h *LedgerHandlers) ManagerOverviewHandler(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.ManagerOverview(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=manager_overview outcome=failed err=%v", err)
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, overview)
}

// ApproveAccountHandler approves a PENDING account.
func (h *LedgerHandlers) ApproveAccountHandler(w http.ResponseWriter, r *http.Request) {
	h.resolveAccount(w, r, h.service.ApproveAccount, "approve_account", domain.AccountStatusApproved)
}

// DenyAccountHandler denies a PENDING account.
func (h *LedgerHandlers) DenyAccountHandler(w http.ResponseWriter, r *http.Request) {
	h.resolveAccount(w, r, h.service.DenyAccount, "deny_account", domain.AccountStatusDenied)
}

// FreezeAccountHandler freezes an APPROVED account.
func (h *LedgerHandlers) FreezeAccountHandler(w http.ResponseWriter, r *http.Request) {
	h.resolveAccount(w, r, h.service.FreezeAccount, "freeze_account", domain.AccountStatusFrozen)
}

// AdminCreditHandler credits a customer account directly.
func (h *LedgerHandlers) AdminCreditHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.AdminCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=admin_credit outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	record, err := h.service.AdminCredit(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=admin_credit outcome=failed phone=%s err=%v", req.PhoneNumber, err)
		h.respondServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, buildMovementResponse(record, "Account credited"))
}

// ApproveLoanHandler approves a PENDING loan.
func (h *LedgerHandlers) ApproveLoanHandler(w http.ResponseWriter, r *http.Request) {
	h.resolveLoan(w, r, h.service.ApproveLoan, "approve_loan", domain.LoanStatusApproved)
}

// DenyLoanHandler denies a PENDING loan.
func (h *LedgerHandlers) DenyLoanHandler(w http.ResponseWriter, r *http.Request) {
	h.resolveLoan(w, r, h.service.DenyLoan, "deny_loan", domain.LoanStatusDenied)
}

func (h *LedgerHandlers) resolveAccount(w http.ResponseWriter, r *http.Request, resolve func(context.Context, uuid.UUID) error, endpoint, status string) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	if err := resolve(r.Context(), accountID); err != nil {
		log.Printf("level=warn component=api endpoint=%s outcome=failed account_id=%s err=%v", endpoint, accountID, err)
		h.respondServiceError(w, err)
		return
	}

	log.Printf("level=info component=api endpoint=%s outcome=completed account_id=%s", endpoint, accountID)
	h.writeJSON(w, http.StatusOK, map[string]string{"account_id": accountID.String(), "status": status})
}

func (h *LedgerHandlers) resolveLoan(w http.ResponseWriter, r *http.Request, resolve func(context.Context, uuid.UUID) error, endpoint, status string) {
	loanID, err := uuid.Parse(chi.URLParam(r, "loanID"))
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	if err := resolve(r.Context(), loanID); err != nil {
		log.Printf("level=warn component=api endpoint=%s outcome=failed loan_id=%s err=%v", endpoint, loanID, err)
		h.respondServiceError(w, err)
		return
	}

	log.Printf("level=info component=api endpoint=%s outcome=completed loan_id=%s", endpoint, loanID)
	h.writeJSON(w, http.StatusOK, map[string]string{"loan_id": loanID.String(), "status": status})
}
