/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LedgerRoutes creates and returns a new router for the ledger service.
func LedgerRoutes(h *LedgerHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		// Customer endpoints.
		r.Post("/accounts", h.CreateAccountHandler)
		r.Get("/accounts", h.ListAccountsHandler)
		r.Get("/accounts/{accountID}", h.GetAccountHandler)

		r.Post("/deposits", h.DepositHandler)
		r.Post("/transfers", h.TransferHandler)
		r.Get("/transactions", h.ListTransactionsHandler)
		r.Get("/transactions/{transactionID}", h.GetTransactionHandler)

		r.Post("/loans", h.RequestLoanHandler)
		r.Get("/loans", h.ListLoansHandler)

		// Manager endpoints.
		r.Group(func(r chi.Router) {
			r.Use(RequireStaff)

			r.Get("/manager/overview", h.ManagerOverviewHandler)
			r.Post("/manager/accounts/{accountID}/approve", h.ApproveAccountHandler)
			r.Post("/manager/accounts/{accountID}/deny", h.DenyAccountHandler)
			r.Post("/manager/accounts/{accountID}/freeze", h.FreezeAccountHandler)
			r.Post("/manager/loans/{loanID}/approve", h.ApproveLoanHandler)
			r.Post("/manager/loans/{loanID}/deny", h.DenyLoanHandler)
			r.Post("/manager/credits", h.AdminCreditHandler)
		})
	})

	return r
}
