package memory

// Bank accounts, bank transactions, reconciliation sessions and match groups.

import (
    "context"
    "sort"
    "time"

    "github.com/google/uuid"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
)

// --- Bank accounts ---

func (s *Store) CreateBankAccount(_ context.Context, ba ledger.BankAccount) (ledger.BankAccount, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.bankAccts[ba.ID] = ba
    return ba, nil
}

func (s *Store) GetBankAccount(_ context.Context, userID, bankAccountID uuid.UUID) (ledger.BankAccount, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    ba, ok := s.bankAccts[bankAccountID]
    if !ok || ba.UserID != userID {
        return ledger.BankAccount{}, errs.ErrNotFound
    }
    return ba, nil
}

func (s *Store) ListBankAccounts(_ context.Context, userID uuid.UUID) ([]ledger.BankAccount, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]ledger.BankAccount, 0)
    for _, ba := range s.bankAccts {
        if ba.UserID == userID {
            out = append(out, ba)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
    return out, nil
}

func (s *Store) BankAccountByLedgerAccount(_ context.Context, userID, accountID uuid.UUID) (ledger.BankAccount, bool, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    for _, ba := range s.bankAccts {
        if ba.UserID == userID && ba.AccountID == accountID {
            return ba, true, nil
        }
    }
    return ledger.BankAccount{}, false, nil
}

// --- Bank transactions ---

func (s *Store) CreateBankTransaction(_ context.Context, t ledger.BankTransaction) (ledger.BankTransaction, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.bankTxns[t.ID] = t
    return t, nil
}

func (s *Store) ListBankTransactions(_ context.Context, userID, bankAccountID uuid.UUID) ([]ledger.BankTransaction, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]ledger.BankTransaction, 0)
    for _, t := range s.bankTxns {
        if t.UserID == userID && t.BankAccountID == bankAccountID {
            out = append(out, t)
        }
    }
    sortTxns(out)
    return out, nil
}

func (s *Store) TransactionsBySession(_ context.Context, userID, sessionID uuid.UUID) ([]ledger.BankTransaction, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]ledger.BankTransaction, 0)
    for _, t := range s.bankTxns {
        if t.UserID == userID && t.SessionID != nil && *t.SessionID == sessionID {
            out = append(out, t)
        }
    }
    sortTxns(out)
    return out, nil
}

func sortTxns(txns []ledger.BankTransaction) {
    sort.Slice(txns, func(i, j int) bool {
        if !txns[i].Date.Equal(txns[j].Date) {
            return txns[i].Date.Before(txns[j].Date)
        }
        return txns[i].ID.String() < txns[j].ID.String()
    })
}

// --- Reconciliation sessions ---

// CreateSession enforces the at-most-one in-progress session per bank account
// invariant under the write lock, so concurrent starts serialize here.
func (s *Store) CreateSession(_ context.Context, sess ledger.ReconciliationSession) (ledger.ReconciliationSession, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, other := range s.sessions {
        if other.BankAccountID == sess.BankAccountID && other.Status == ledger.SessionInProgress {
            return ledger.ReconciliationSession{}, errs.ErrSessionActive
        }
    }
    s.sessions[sess.ID] = sess
    return sess, nil
}

func (s *Store) GetSession(_ context.Context, userID, sessionID uuid.UUID) (ledger.ReconciliationSession, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    sess, ok := s.sessions[sessionID]
    if !ok || sess.UserID != userID {
        return ledger.ReconciliationSession{}, errs.ErrNotFound
    }
    return sess, nil
}

func (s *Store) ActiveSession(_ context.Context, userID, bankAccountID uuid.UUID) (ledger.ReconciliationSession, bool, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    for _, sess := range s.sessions {
        if sess.UserID == userID && sess.BankAccountID == bankAccountID && sess.Status == ledger.SessionInProgress {
            return sess, true, nil
        }
    }
    return ledger.ReconciliationSession{}, false, nil
}

func (s *Store) UpdateSession(_ context.Context, sess ledger.ReconciliationSession) (ledger.ReconciliationSession, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.sessions[sess.ID]; !ok {
        return ledger.ReconciliationSession{}, errs.ErrNotFound
    }
    s.sessions[sess.ID] = sess
    return sess, nil
}

// CompleteSession applies the transaction updates, the session flip and the
// bank account stamp in one critical section: all or nothing.
func (s *Store) CompleteSession(_ context.Context, sess ledger.ReconciliationSession, txns []ledger.BankTransaction, lastReconciled time.Time) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.sessions[sess.ID]; !ok {
        return errs.ErrNotFound
    }
    ba, ok := s.bankAccts[sess.BankAccountID]
    if !ok {
        return errs.ErrNotFound
    }
    for _, t := range txns {
        if _, ok := s.bankTxns[t.ID]; !ok {
            return errs.ErrNotFound
        }
    }
    for _, t := range txns {
        s.bankTxns[t.ID] = t
    }
    s.sessions[sess.ID] = sess
    stamp := lastReconciled
    ba.LastReconciled = &stamp
    s.bankAccts[ba.ID] = ba
    return nil
}

// ReopenSession reverts the transaction updates and the session flip in one
// critical section.
func (s *Store) ReopenSession(_ context.Context, sess ledger.ReconciliationSession, txns []ledger.BankTransaction) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.sessions[sess.ID]; !ok {
        return errs.ErrNotFound
    }
    for _, t := range txns {
        if _, ok := s.bankTxns[t.ID]; !ok {
            return errs.ErrNotFound
        }
    }
    for _, t := range txns {
        s.bankTxns[t.ID] = t
    }
    s.sessions[sess.ID] = sess
    return nil
}

// --- Match groups ---

func (s *Store) CreateMatch(_ context.Context, m ledger.ReconciliationMatch) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.matches[m.ID] = m
    return nil
}

func (s *Store) DeleteMatches(_ context.Context, sessionID uuid.UUID) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for id, m := range s.matches {
        if m.SessionID == sessionID {
            delete(s.matches, id)
        }
    }
    return nil
}

func (s *Store) MatchesBySession(_ context.Context, userID, sessionID uuid.UUID) ([]ledger.ReconciliationMatch, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    sess, ok := s.sessions[sessionID]
    if !ok || sess.UserID != userID {
        return nil, errs.ErrNotFound
    }
    out := make([]ledger.ReconciliationMatch, 0)
    for _, m := range s.matches {
        if m.SessionID == sessionID {
            out = append(out, m)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
    return out, nil
}
