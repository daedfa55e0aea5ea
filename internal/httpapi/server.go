// Package httpapi wires the HTTP surface of the ledger service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
    "log/slog"
    "net/http"

    chi "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"

    "github.com/finbooks/ledger/internal/service/account"
    "github.com/finbooks/ledger/internal/service/journal"
    "github.com/finbooks/ledger/internal/service/reconcile"
    "github.com/finbooks/ledger/internal/service/recurring"
    "github.com/finbooks/ledger/internal/service/report"
)

// Server wires handlers and middleware using Chi.
// It composes read (repo) and write (writer) dependencies through services.
type Server struct {
    accounts  account.Service
    journal   journal.Service
    recurring recurring.Service
    reconcile reconcile.Service
    reports   report.Service
    store     Store
    log       *slog.Logger
    rt        *chi.Mux
}

// New constructs the HTTP server with routes and middleware. Posting a
// journal entry materializes bank transactions for linked bank accounts, so
// the journal service is built with the reconciliation materializer hook.
func New(store Store, logger *slog.Logger) *Server {
    r := chi.NewRouter()
    r.Use(chimw.RequestID)
    r.Use(requestLogger(logger))
    r.Use(recoverer(logger))
    r.Use(metricsMiddleware)

    hook := reconcile.NewMaterializer(store, store, logger)
    s := &Server{
        accounts:  account.New(store, store),
        journal:   journal.New(store, store, logger, hook),
        recurring: recurring.New(store, store, logger),
        reconcile: reconcile.New(store, store, logger),
        reports:   report.New(store),
        store:     store,
        log:       logger,
        rt:        r,
    }
    s.routes()
    return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// RecurringService exposes the recurring service for the cron daemon.
func (s *Server) RecurringService() recurring.Service { return s.recurring }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
    // Accounts (v1)
    s.rt.With(s.validatePostAccount()).Post("/v1/accounts", s.postAccount)
    s.rt.With(s.validateUserQuery()).Get("/v1/accounts", s.listAccounts)
    s.rt.Get("/v1/accounts/{id}", s.getAccount)
    s.rt.Patch("/v1/accounts/{id}", s.updateAccount)
    s.rt.Delete("/v1/accounts/{id}", s.deactivateAccount)
    // Entries (v1)
    s.rt.With(s.validatePostEntry()).Post("/v1/entries", s.postEntry)
    s.rt.With(s.validateUserQuery()).Get("/v1/entries", s.listEntries)
    s.rt.Get("/v1/entries/{id}", s.getEntry)
    s.rt.Post("/v1/entries/{id}/post", s.postEntryPosting)
    s.rt.Patch("/v1/entries/{id}", s.updateEntry)
    s.rt.Delete("/v1/entries/{id}", s.deleteEntry)
    s.rt.With(s.validateReverseEntry()).Post("/v1/entries/reverse", s.reverseEntry)
    // Recurring templates (v1)
    s.rt.Post("/v1/recurring", s.postTemplate)
    s.rt.With(s.validateUserQuery()).Get("/v1/recurring", s.listTemplates)
    s.rt.Delete("/v1/recurring/{id}", s.deactivateTemplate)
    s.rt.Post("/v1/recurring/run", s.runGenerationPass)
    // Banking (v1)
    s.rt.Post("/v1/bank-accounts", s.postBankAccount)
    s.rt.With(s.validateUserQuery()).Get("/v1/bank-accounts", s.listBankAccounts)
    s.rt.Get("/v1/bank-accounts/{id}/transactions", s.listBankTransactions)
    s.rt.Post("/v1/bank-transactions", s.postBankTransaction)
    // Reconciliation sessions (v1)
    s.rt.Post("/v1/reconciliations", s.startSession)
    s.rt.Get("/v1/reconciliations/{id}", s.getSession)
    s.rt.Patch("/v1/reconciliations/{id}", s.updateSession)
    s.rt.Get("/v1/reconciliations/{id}/unmatched", s.unmatchedTransactions)
    s.rt.Post("/v1/reconciliations/{id}/complete", s.completeSession)
    s.rt.Post("/v1/reconciliations/{id}/reopen", s.reopenSession)
    s.rt.Get("/v1/reconciliations/{id}/matches", s.listMatches)
    // Reports (v1)
    s.rt.With(s.validateReportQuery()).Get("/v1/reports/trial-balance", s.trialBalance)
    s.rt.With(s.validateReportQuery()).Get("/v1/reports/income-statement", s.incomeStatement)
    s.rt.With(s.validateReportQuery()).Get("/v1/reports/balance-sheet", s.balanceSheet)
    // Health and metrics (unversioned)
    s.rt.Get("/healthz", s.healthz)
    s.rt.Get("/readyz", s.readyz)
    s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
