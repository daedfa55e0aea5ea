package httpapi

import (
    "context"

    "github.com/finbooks/ledger/internal/service/account"
    "github.com/finbooks/ledger/internal/service/journal"
    "github.com/finbooks/ledger/internal/service/reconcile"
    "github.com/finbooks/ledger/internal/service/recurring"
    "github.com/finbooks/ledger/internal/service/report"
)

// Store is a convenience union of every repository and writer interface the
// services need. Both the in-memory store and the postgres store satisfy it,
// which keeps main's wiring to a single value.
type Store interface {
    account.Repo
    account.Writer
    journal.Repo
    journal.Writer
    recurring.Repo
    recurring.Writer
    reconcile.Repo
    reconcile.Writer
    report.Repo
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
    Ready(ctx context.Context) error
}
