// Package reconcile owns the bank-statement reconciliation lifecycle:
// session setup, the live unmatched working set, completion with match
// groups, and reopen. Matching heuristics live outside the core; this
// service only validates and persists groupings handed to it.
package reconcile

import (
    "context"
    "fmt"
    "log/slog"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
    GetBankAccount(ctx context.Context, userID, bankAccountID uuid.UUID) (ledger.BankAccount, error)
    ListBankAccounts(ctx context.Context, userID uuid.UUID) ([]ledger.BankAccount, error)
    BankAccountByLedgerAccount(ctx context.Context, userID, accountID uuid.UUID) (ledger.BankAccount, bool, error)
    ListBankTransactions(ctx context.Context, userID, bankAccountID uuid.UUID) ([]ledger.BankTransaction, error)
    TransactionsBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]ledger.BankTransaction, error)
    GetSession(ctx context.Context, userID, sessionID uuid.UUID) (ledger.ReconciliationSession, error)
    ActiveSession(ctx context.Context, userID, bankAccountID uuid.UUID) (ledger.ReconciliationSession, bool, error)
    MatchesBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]ledger.ReconciliationMatch, error)
}

// Writer defines write operations needed by the service. CompleteSession and
// ReopenSession apply the session flip and every transaction update in one
// atomic store transaction. CreateSession enforces the at-most-one
// in-progress session per bank account rule, returning ErrSessionActive.
type Writer interface {
    CreateBankAccount(ctx context.Context, ba ledger.BankAccount) (ledger.BankAccount, error)
    CreateBankTransaction(ctx context.Context, t ledger.BankTransaction) (ledger.BankTransaction, error)
    CreateSession(ctx context.Context, s ledger.ReconciliationSession) (ledger.ReconciliationSession, error)
    UpdateSession(ctx context.Context, s ledger.ReconciliationSession) (ledger.ReconciliationSession, error)
    CompleteSession(ctx context.Context, s ledger.ReconciliationSession, txns []ledger.BankTransaction, lastReconciled time.Time) error
    ReopenSession(ctx context.Context, s ledger.ReconciliationSession, txns []ledger.BankTransaction) error
    CreateMatch(ctx context.Context, m ledger.ReconciliationMatch) error
    DeleteMatches(ctx context.Context, sessionID uuid.UUID) error
}

// MatchInput is one caller-supplied match group: a set of bank transactions
// against a set of ledger entries.
type MatchInput struct {
    BankTransactionIDs []uuid.UUID
    EntryIDs           []uuid.UUID
}

// Service exposes the reconciliation session state machine.
type Service interface {
    CreateBankAccount(ctx context.Context, ba ledger.BankAccount) (ledger.BankAccount, error)
    ListBankAccounts(ctx context.Context, userID uuid.UUID) ([]ledger.BankAccount, error)
    ImportTransaction(ctx context.Context, t ledger.BankTransaction) (ledger.BankTransaction, error)
    ListTransactions(ctx context.Context, userID, bankAccountID uuid.UUID) ([]ledger.BankTransaction, error)
    StartSession(ctx context.Context, userID, bankAccountID uuid.UUID, rangeStart, rangeEnd time.Time, statementBalance money.Amount) (ledger.ReconciliationSession, error)
    GetSession(ctx context.Context, userID, sessionID uuid.UUID) (ledger.ReconciliationSession, error)
    UpdateSession(ctx context.Context, userID, sessionID uuid.UUID, rangeStart, rangeEnd *time.Time, statementBalance *money.Amount) (ledger.ReconciliationSession, error)
    UnmatchedTransactions(ctx context.Context, userID, sessionID uuid.UUID) ([]ledger.BankTransaction, error)
    CompleteSession(ctx context.Context, userID, sessionID uuid.UUID, matches []MatchInput) error
    ReopenSession(ctx context.Context, userID, sessionID uuid.UUID) error
    ListMatches(ctx context.Context, userID, sessionID uuid.UUID) ([]ledger.ReconciliationMatch, error)
}

type service struct {
    repo   Repo
    writer Writer
    log    *slog.Logger
}

func New(repo Repo, writer Writer, log *slog.Logger) Service {
    return &service{repo: repo, writer: writer, log: log}
}

// CreateBankAccount links bank metadata to a ledger account 1:1.
func (s *service) CreateBankAccount(ctx context.Context, ba ledger.BankAccount) (ledger.BankAccount, error) {
    if ba.UserID == uuid.Nil || ba.AccountID == uuid.Nil {
        return ledger.BankAccount{}, errs.ErrInvalid
    }
    if ba.Name == "" {
        return ledger.BankAccount{}, errs.Invalidf("name is required")
    }
    if _, exists, err := s.repo.BankAccountByLedgerAccount(ctx, ba.UserID, ba.AccountID); err != nil {
        return ledger.BankAccount{}, err
    } else if exists {
        return ledger.BankAccount{}, errs.Invalidf("ledger account already linked to a bank account")
    }
    ba.ID = uuid.New()
    ba.LastReconciled = nil
    return s.writer.CreateBankAccount(ctx, ba)
}

func (s *service) ListBankAccounts(ctx context.Context, userID uuid.UUID) ([]ledger.BankAccount, error) {
    if userID == uuid.Nil {
        return nil, errs.ErrInvalid
    }
    return s.repo.ListBankAccounts(ctx, userID)
}

// ImportTransaction records one bank-side movement as unmatched. File parsing
// happens upstream; by the time a row reaches the core it is already typed.
func (s *service) ImportTransaction(ctx context.Context, t ledger.BankTransaction) (ledger.BankTransaction, error) {
    if t.UserID == uuid.Nil || t.BankAccountID == uuid.Nil {
        return ledger.BankTransaction{}, errs.ErrInvalid
    }
    if t.Direction != ledger.DirectionDebit && t.Direction != ledger.DirectionCredit {
        return ledger.BankTransaction{}, errs.Invalidf("direction must be debit or credit")
    }
    if u, _ := t.Amount.MinorUnits(); u < 0 {
        return ledger.BankTransaction{}, errs.Invalidf("amount must not be negative; use direction for sign")
    }
    if _, err := s.repo.GetBankAccount(ctx, t.UserID, t.BankAccountID); err != nil {
        return ledger.BankTransaction{}, err
    }
    t.ID = uuid.New()
    t.Status = ledger.StatusUnmatched
    t.SessionID = nil
    t.Deleted = false
    return s.writer.CreateBankTransaction(ctx, t)
}

func (s *service) ListTransactions(ctx context.Context, userID, bankAccountID uuid.UUID) ([]ledger.BankTransaction, error) {
    if userID == uuid.Nil || bankAccountID == uuid.Nil {
        return nil, errs.ErrInvalid
    }
    return s.repo.ListBankTransactions(ctx, userID, bankAccountID)
}

// StartSession opens a reconciliation for one bank account and date range.
// Book balances come from the signed sum of non-deleted bank transactions:
// starting is everything before the range, ending is everything through its
// end. The unmatched working set stays a live query (UnmatchedTransactions).
func (s *service) StartSession(ctx context.Context, userID, bankAccountID uuid.UUID, rangeStart, rangeEnd time.Time, statementBalance money.Amount) (ledger.ReconciliationSession, error) {
    if userID == uuid.Nil || bankAccountID == uuid.Nil {
        return ledger.ReconciliationSession{}, errs.ErrInvalid
    }
    if rangeEnd.Before(rangeStart) {
        return ledger.ReconciliationSession{}, errs.Invalidf("range end before range start")
    }
    if _, err := s.repo.GetBankAccount(ctx, userID, bankAccountID); err != nil {
        return ledger.ReconciliationSession{}, err
    }
    if _, active, err := s.repo.ActiveSession(ctx, userID, bankAccountID); err != nil {
        return ledger.ReconciliationSession{}, err
    } else if active {
        return ledger.ReconciliationSession{}, errs.ErrSessionActive
    }
    starting, ending, err := s.bookBalances(ctx, userID, bankAccountID, rangeStart, rangeEnd, statementBalance.Curr().Code())
    if err != nil {
        return ledger.ReconciliationSession{}, err
    }
    sess := ledger.ReconciliationSession{
        ID:               uuid.New(),
        UserID:           userID,
        BankAccountID:    bankAccountID,
        RangeStart:       rangeStart,
        RangeEnd:         rangeEnd,
        StartingBalance:  starting,
        EndingBalance:    ending,
        StatementBalance: statementBalance,
        Status:           ledger.SessionInProgress,
    }
    // The store serializes concurrent starts; a race loser gets ErrSessionActive.
    return s.writer.CreateSession(ctx, sess)
}

func (s *service) bookBalances(ctx context.Context, userID, bankAccountID uuid.UUID, rangeStart, rangeEnd time.Time, currency string) (starting, ending money.Amount, err error) {
    txns, err := s.repo.ListBankTransactions(ctx, userID, bankAccountID)
    if err != nil {
        return money.Amount{}, money.Amount{}, err
    }
    var startMinor, endMinor int64
    for _, t := range txns {
        if t.Deleted {
            continue
        }
        if t.Date.Before(rangeStart) {
            startMinor += t.SignedMinor()
        }
        if !t.Date.After(rangeEnd) {
            endMinor += t.SignedMinor()
        }
    }
    starting, err = money.NewAmountFromMinorUnits(currency, startMinor)
    if err != nil {
        return money.Amount{}, money.Amount{}, err
    }
    ending, err = money.NewAmountFromMinorUnits(currency, endMinor)
    if err != nil {
        return money.Amount{}, money.Amount{}, err
    }
    return starting, ending, nil
}

func (s *service) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (ledger.ReconciliationSession, error) {
    if userID == uuid.Nil || sessionID == uuid.Nil {
        return ledger.ReconciliationSession{}, errs.ErrInvalid
    }
    return s.repo.GetSession(ctx, userID, sessionID)
}

// UpdateSession adjusts the range and/or statement balance of an in-progress
// session. A range change invalidates the working set, so book balances are
// recomputed here and UnmatchedTransactions reflects the new range on the
// next fetch.
func (s *service) UpdateSession(ctx context.Context, userID, sessionID uuid.UUID, rangeStart, rangeEnd *time.Time, statementBalance *money.Amount) (ledger.ReconciliationSession, error) {
    sess, err := s.GetSession(ctx, userID, sessionID)
    if err != nil {
        return ledger.ReconciliationSession{}, err
    }
    if sess.Status != ledger.SessionInProgress {
        return ledger.ReconciliationSession{}, errs.ErrSessionNotOpen
    }
    rangeChanged := false
    if rangeStart != nil {
        sess.RangeStart = *rangeStart
        rangeChanged = true
    }
    if rangeEnd != nil {
        sess.RangeEnd = *rangeEnd
        rangeChanged = true
    }
    if sess.RangeEnd.Before(sess.RangeStart) {
        return ledger.ReconciliationSession{}, errs.Invalidf("range end before range start")
    }
    if statementBalance != nil {
        sess.StatementBalance = *statementBalance
    }
    if rangeChanged {
        starting, ending, err := s.bookBalances(ctx, userID, sess.BankAccountID, sess.RangeStart, sess.RangeEnd, sess.StatementBalance.Curr().Code())
        if err != nil {
            return ledger.ReconciliationSession{}, err
        }
        sess.StartingBalance = starting
        sess.EndingBalance = ending
    }
    return s.writer.UpdateSession(ctx, sess)
}

// UnmatchedTransactions is the session's live working set: unmatched,
// non-deleted transactions inside the session range. Transactions added after
// the session started show up on the next call.
func (s *service) UnmatchedTransactions(ctx context.Context, userID, sessionID uuid.UUID) ([]ledger.BankTransaction, error) {
    sess, err := s.GetSession(ctx, userID, sessionID)
    if err != nil {
        return nil, err
    }
    txns, err := s.repo.ListBankTransactions(ctx, userID, sess.BankAccountID)
    if err != nil {
        return nil, err
    }
    out := make([]ledger.BankTransaction, 0, len(txns))
    for _, t := range txns {
        if t.Deleted || t.Status != ledger.StatusUnmatched {
            continue
        }
        if t.Date.Before(sess.RangeStart) || t.Date.After(sess.RangeEnd) {
            continue
        }
        out = append(out, t)
    }
    return out, nil
}

// CompleteSession finishes a reconciliation. The required part is atomic:
// every referenced bank transaction flips to reconciled and links back to the
// session and its matched entry, the session flips to completed, and the bank
// account's LastReconciled is stamped to the range end. Match-group audit
// rows are persisted afterwards, best-effort per group: a missing audit row
// never blocks a completed reconciliation.
func (s *service) CompleteSession(ctx context.Context, userID, sessionID uuid.UUID, matches []MatchInput) error {
    sess, err := s.GetSession(ctx, userID, sessionID)
    if err != nil {
        return err
    }
    if sess.Status != ledger.SessionInProgress {
        return errs.ErrSessionNotOpen
    }
    txns, err := s.repo.ListBankTransactions(ctx, userID, sess.BankAccountID)
    if err != nil {
        return err
    }
    byID := make(map[uuid.UUID]ledger.BankTransaction, len(txns))
    for _, t := range txns {
        byID[t.ID] = t
    }
    updated := make(map[uuid.UUID]ledger.BankTransaction)
    for gi, m := range matches {
        var entryID *uuid.UUID
        if len(m.EntryIDs) > 0 {
            id := m.EntryIDs[0]
            entryID = &id
        }
        for _, txnID := range m.BankTransactionIDs {
            t, ok := byID[txnID]
            if !ok || t.Deleted {
                return fmt.Errorf("match[%d]: bank transaction %s not found: %w", gi, txnID, errs.ErrNotFound)
            }
            if t.Status == ledger.StatusReconciled && (t.SessionID == nil || *t.SessionID != sess.ID) {
                return fmt.Errorf("match[%d]: bank transaction %s already reconciled by another session: %w", gi, txnID, errs.ErrInvalid)
            }
            // Re-linking an already-linked transaction updates in place.
            t.Status = ledger.StatusReconciled
            sid := sess.ID
            t.SessionID = &sid
            t.EntryID = entryID
            updated[t.ID] = t
        }
    }
    sess.Status = ledger.SessionCompleted
    flat := make([]ledger.BankTransaction, 0, len(updated))
    for _, t := range updated {
        flat = append(flat, t)
    }
    if err := s.writer.CompleteSession(ctx, sess, flat, sess.RangeEnd); err != nil {
        return err
    }
    // Best-effort audit trail, outside the atomic boundary. A new completion
    // replaces whatever groups an earlier completion of this session recorded.
    if err := s.writer.DeleteMatches(ctx, sess.ID); err != nil {
        s.log.Error("clearing prior match groups failed", "session_id", sess.ID, "err", err)
    }
    for gi, m := range matches {
        rec := ledger.ReconciliationMatch{
            ID:                 uuid.New(),
            SessionID:          sess.ID,
            BankTransactionIDs: m.BankTransactionIDs,
            EntryIDs:           m.EntryIDs,
        }
        if err := s.writer.CreateMatch(ctx, rec); err != nil {
            s.log.Error("match group persistence failed; skipping", "session_id", sess.ID, "group", gi, "err", err)
        }
    }
    return nil
}

// ReopenSession reverts a completed session to in-progress and resets every
// bank transaction it reconciled back to unmatched. Recorded match groups are
// kept as history. A transaction inside the range that claims reconciled
// status without a session link is data drift and rejects the reopen.
func (s *service) ReopenSession(ctx context.Context, userID, sessionID uuid.UUID) error {
    sess, err := s.GetSession(ctx, userID, sessionID)
    if err != nil {
        return err
    }
    if sess.Status != ledger.SessionCompleted {
        return errs.ErrSessionNotCompleted
    }
    txns, err := s.repo.ListBankTransactions(ctx, userID, sess.BankAccountID)
    if err != nil {
        return err
    }
    reverted := make([]ledger.BankTransaction, 0)
    for _, t := range txns {
        if t.Deleted {
            continue
        }
        if t.Status == ledger.StatusReconciled && t.SessionID == nil &&
            !t.Date.Before(sess.RangeStart) && !t.Date.After(sess.RangeEnd) {
            return fmt.Errorf("bank transaction %s reconciled without a session link: %w", t.ID, errs.ErrIntegrity)
        }
        if t.SessionID == nil || *t.SessionID != sess.ID {
            continue
        }
        if t.Status != ledger.StatusReconciled {
            return fmt.Errorf("bank transaction %s linked to session but not reconciled: %w", t.ID, errs.ErrIntegrity)
        }
        t.Status = ledger.StatusUnmatched
        t.SessionID = nil
        t.EntryID = nil
        reverted = append(reverted, t)
    }
    sess.Status = ledger.SessionInProgress
    return s.writer.ReopenSession(ctx, sess, reverted)
}

// ListMatches returns the match groups recorded for a session.
func (s *service) ListMatches(ctx context.Context, userID, sessionID uuid.UUID) ([]ledger.ReconciliationMatch, error) {
    return s.repo.MatchesBySession(ctx, userID, sessionID)
}
