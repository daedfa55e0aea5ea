// Package memory provides a simple in-memory implementation of the store used
// for development and tests. It keeps code paths easy to follow while allowing
// the pgx store to be plugged in for real deployments.
package memory

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
)

// Store is an in-memory implementation of every repository and writer
// interface used across the service layer. Guarded by an RWMutex; the
// multi-write operations (MarkEntryPosted, CompleteSession, ReopenSession,
// CreateGeneratedEntry) hold the write lock for their whole critical section,
// which is the in-memory equivalent of a store transaction.
type Store struct {
    mu        sync.RWMutex
    users     map[uuid.UUID]struct{}
    accounts  map[uuid.UUID]ledger.Account
    entries   map[uuid.UUID]*ledger.JournalEntry
    templates map[uuid.UUID]ledger.RecurringTemplate
    bankAccts map[uuid.UUID]ledger.BankAccount
    bankTxns  map[uuid.UUID]ledger.BankTransaction
    sessions  map[uuid.UUID]ledger.ReconciliationSession
    matches   map[uuid.UUID]ledger.ReconciliationMatch
}

// New constructs an empty in-memory store.
func New() *Store {
    return &Store{
        users:     make(map[uuid.UUID]struct{}),
        accounts:  make(map[uuid.UUID]ledger.Account),
        entries:   make(map[uuid.UUID]*ledger.JournalEntry),
        templates: make(map[uuid.UUID]ledger.RecurringTemplate),
        bankAccts: make(map[uuid.UUID]ledger.BankAccount),
        bankTxns:  make(map[uuid.UUID]ledger.BankTransaction),
        sessions:  make(map[uuid.UUID]ledger.ReconciliationSession),
        matches:   make(map[uuid.UUID]ledger.ReconciliationMatch),
    }
}

// Seed helpers for local dev/tests.
func (s *Store) SeedUser(u ledger.User)       { s.mu.Lock(); s.users[u.ID] = struct{}{}; s.mu.Unlock() }
func (s *Store) SeedAccount(a ledger.Account) { s.mu.Lock(); s.accounts[a.ID] = a; s.mu.Unlock() }

// --- Accounts ---

func (s *Store) AccountsByIDs(_ context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make(map[uuid.UUID]ledger.Account, len(ids))
    for _, id := range ids {
        if acc, ok := s.accounts[id]; ok && acc.UserID == userID {
            out[id] = acc
        }
    }
    return out, nil
}

func (s *Store) ListAccounts(_ context.Context, userID uuid.UUID) ([]ledger.Account, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]ledger.Account, 0)
    for _, a := range s.accounts {
        if a.UserID == userID {
            out = append(out, a)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
    return out, nil
}

func (s *Store) GetAccount(_ context.Context, userID, accountID uuid.UUID) (ledger.Account, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    a, ok := s.accounts[accountID]
    if !ok || a.UserID != userID {
        return ledger.Account{}, errs.ErrNotFound
    }
    return a, nil
}

func (s *Store) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.accounts[a.ID] = a
    return a, nil
}

func (s *Store) UpdateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.accounts[a.ID]; !ok {
        return ledger.Account{}, errs.ErrNotFound
    }
    s.accounts[a.ID] = a
    return a, nil
}

// --- Entries ---

func copyEntry(e *ledger.JournalEntry) ledger.JournalEntry {
    out := *e
    out.Lines = make([]ledger.JournalLine, len(e.Lines))
    copy(out.Lines, e.Lines)
    return out
}

func (s *Store) CreateJournalEntry(_ context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    e := copyEntry(&entry)
    s.entries[e.ID] = &e
    return entry, nil
}

func (s *Store) UpdateJournalEntry(_ context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    cur, ok := s.entries[entry.ID]
    if !ok || cur.UserID != entry.UserID {
        return ledger.JournalEntry{}, errs.ErrNotFound
    }
    e := copyEntry(&entry)
    s.entries[entry.ID] = &e
    return entry, nil
}

func (s *Store) ListEntries(_ context.Context, userID uuid.UUID) ([]ledger.JournalEntry, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]ledger.JournalEntry, 0)
    for _, e := range s.entries {
        if e.UserID == userID {
            out = append(out, copyEntry(e))
        }
    }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].Date.Equal(out[j].Date) {
            return out[i].Date.Before(out[j].Date)
        }
        return out[i].ID.String() < out[j].ID.String()
    })
    return out, nil
}

func (s *Store) GetEntry(_ context.Context, userID, entryID uuid.UUID) (ledger.JournalEntry, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    e, ok := s.entries[entryID]
    if !ok || e.UserID != userID {
        return ledger.JournalEntry{}, errs.ErrNotFound
    }
    return copyEntry(e), nil
}

// MarkEntryPosted flips Posted under the write lock, re-checking state so a
// racing second post observes ErrAlreadyPosted instead of double-flipping.
func (s *Store) MarkEntryPosted(_ context.Context, userID, entryID uuid.UUID) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    e, ok := s.entries[entryID]
    if !ok || e.UserID != userID {
        return errs.ErrNotFound
    }
    if e.Deleted {
        return errs.ErrEntryDeleted
    }
    if e.Posted {
        return errs.ErrAlreadyPosted
    }
    e.Posted = true
    return nil
}

func (s *Store) MarkEntryDeleted(_ context.Context, userID, entryID uuid.UUID) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    e, ok := s.entries[entryID]
    if !ok || e.UserID != userID {
        return errs.ErrNotFound
    }
    if e.Posted {
        return errs.ErrPostedImmutable
    }
    e.Deleted = true
    return nil
}

// --- Recurring templates ---

func (s *Store) CreateTemplate(_ context.Context, tpl ledger.RecurringTemplate) (ledger.RecurringTemplate, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.templates[tpl.ID] = tpl
    return tpl, nil
}

func (s *Store) UpdateTemplate(_ context.Context, tpl ledger.RecurringTemplate) (ledger.RecurringTemplate, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.templates[tpl.ID]; !ok {
        return ledger.RecurringTemplate{}, errs.ErrNotFound
    }
    s.templates[tpl.ID] = tpl
    return tpl, nil
}

func (s *Store) ListActiveTemplates(_ context.Context) ([]ledger.RecurringTemplate, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]ledger.RecurringTemplate, 0)
    for _, t := range s.templates {
        if t.Active {
            out = append(out, t)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
    return out, nil
}

func (s *Store) ListTemplates(_ context.Context, userID uuid.UUID) ([]ledger.RecurringTemplate, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]ledger.RecurringTemplate, 0)
    for _, t := range s.templates {
        if t.UserID == userID {
            out = append(out, t)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
    return out, nil
}

func (s *Store) GetTemplate(_ context.Context, userID, templateID uuid.UUID) (ledger.RecurringTemplate, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    t, ok := s.templates[templateID]
    if !ok || t.UserID != userID {
        return ledger.RecurringTemplate{}, errs.ErrNotFound
    }
    return t, nil
}

// CreateGeneratedEntry persists the generated entry and advances the
// template's LastGenerated in one critical section.
func (s *Store) CreateGeneratedEntry(_ context.Context, entry ledger.JournalEntry, templateID uuid.UUID, occurrence time.Time) (ledger.JournalEntry, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    tpl, ok := s.templates[templateID]
    if !ok {
        return ledger.JournalEntry{}, errs.ErrNotFound
    }
    e := copyEntry(&entry)
    s.entries[e.ID] = &e
    occ := occurrence
    tpl.LastGenerated = &occ
    s.templates[templateID] = tpl
    return entry, nil
}
