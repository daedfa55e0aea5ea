// Package journal implements the journal engine: entry validation, atomic
// posting with the balance invariant, immutability of posted entries, and
// reversal as the only correction path once an entry is posted.
package journal

import (
    "context"
    "log/slog"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
    AccountsByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error)
    ListEntries(ctx context.Context, userID uuid.UUID) ([]ledger.JournalEntry, error)
    GetEntry(ctx context.Context, userID, entryID uuid.UUID) (ledger.JournalEntry, error)
}

// Writer defines write operations needed by the service. MarkEntryPosted and
// MarkEntryDeleted are single atomic state flips executed inside one store
// transaction; the store reports ErrAlreadyPosted / ErrPostedImmutable /
// ErrEntryDeleted when the flip races or the entry is in the wrong state.
type Writer interface {
    CreateJournalEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error)
    UpdateJournalEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error)
    MarkEntryPosted(ctx context.Context, userID, entryID uuid.UUID) error
    MarkEntryDeleted(ctx context.Context, userID, entryID uuid.UUID) error
}

// PostCommitHook runs after a posting transaction commits. Hooks are
// best-effort by design: a returned error is logged and never propagated, so
// a ledger posting cannot appear to fail because of a downstream side effect.
type PostCommitHook func(ctx context.Context, entry ledger.JournalEntry) error

// Service exposes validation, creation and lifecycle of journal entries.
type Service interface {
    ValidateEntry(ctx context.Context, e ledger.JournalEntry) error
    CreateEntry(ctx context.Context, e ledger.JournalEntry) (ledger.JournalEntry, error)
    PostEntry(ctx context.Context, userID, entryID uuid.UUID) (ledger.JournalEntry, error)
    UpdateEntry(ctx context.Context, e ledger.JournalEntry) (ledger.JournalEntry, error)
    DeleteEntry(ctx context.Context, userID, entryID uuid.UUID) error
    ReverseEntry(ctx context.Context, userID, entryID uuid.UUID, date time.Time) (ledger.JournalEntry, error)
    ListEntries(ctx context.Context, userID uuid.UUID) ([]ledger.JournalEntry, error)
    GetEntry(ctx context.Context, userID, entryID uuid.UUID) (ledger.JournalEntry, error)
}

type service struct {
    repo   Repo
    writer Writer
    log    *slog.Logger
    hooks  []PostCommitHook
}

// New constructs the journal service. Hooks run in order after every
// successful posting.
func New(repo Repo, writer Writer, log *slog.Logger, hooks ...PostCommitHook) Service {
    return &service{repo: repo, writer: writer, log: log, hooks: hooks}
}

func (s *service) ValidateEntry(ctx context.Context, entry ledger.JournalEntry) error {
    if entry.UserID == uuid.Nil {
        return errs.ErrInvalid
    }
    if entry.Currency == "" {
        return errs.Invalidf("currency is required")
    }
    if len(entry.Lines) == 0 {
        return errs.Invalidf("at least one line is required")
    }
    ids := make([]uuid.UUID, 0, len(entry.Lines))
    for i, line := range entry.Lines {
        if line.AccountID == uuid.Nil {
            return fieldErr(i, "account_id required")
        }
        d := line.DebitMinor()
        c := line.CreditMinor()
        if d < 0 || c < 0 {
            return fieldErr(i, "amounts must not be negative")
        }
        if (d == 0) == (c == 0) {
            return fieldErr(i, "exactly one of debit or credit must be set")
        }
        ids = append(ids, line.AccountID)
    }
    accMap, err := s.repo.AccountsByIDs(ctx, entry.UserID, ids)
    if err != nil {
        return err
    }
    for i, line := range entry.Lines {
        acc, ok := accMap[line.AccountID]
        if !ok {
            return fieldErr(i, "account not found for user")
        }
        if !acc.Active {
            return fieldErr(i, "account is inactive")
        }
    }
    return nil
}

// CreateEntry persists a validated entry with Posted=false. The balance
// invariant is enforced at posting time, not here, so callers can stage
// partially built entries.
func (s *service) CreateEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
    if err := s.ValidateEntry(ctx, entry); err != nil {
        return ledger.JournalEntry{}, err
    }
    if entry.Source == "" {
        entry.Source = ledger.SourceManual
    }
    entry.ID = uuid.New()
    entry.Posted = false
    entry.Deleted = false
    lines := make([]ledger.JournalLine, len(entry.Lines))
    for i, ln := range entry.Lines {
        ln.ID = uuid.New()
        ln.EntryID = entry.ID
        lines[i] = ln
    }
    entry.Lines = lines
    return s.writer.CreateJournalEntry(ctx, entry)
}

// PostEntry finalizes an entry. It recomputes both totals over the entry's
// current lines in minor units, rejects imbalances beyond the tolerance, and
// flips Posted atomically in the store. Post-commit hooks run afterwards.
func (s *service) PostEntry(ctx context.Context, userID, entryID uuid.UUID) (ledger.JournalEntry, error) {
    if userID == uuid.Nil || entryID == uuid.Nil {
        return ledger.JournalEntry{}, errs.ErrInvalid
    }
    entry, err := s.repo.GetEntry(ctx, userID, entryID)
    if err != nil {
        return ledger.JournalEntry{}, err
    }
    if entry.Deleted {
        return ledger.JournalEntry{}, errs.ErrEntryDeleted
    }
    if entry.Posted {
        return ledger.JournalEntry{}, errs.ErrAlreadyPosted
    }
    if !entry.Balanced() {
        d, c := entry.Totals()
        return ledger.JournalEntry{}, &errs.ImbalancedEntryError{DebitMinor: d, CreditMinor: c, Currency: entry.Currency}
    }
    if err := s.writer.MarkEntryPosted(ctx, userID, entryID); err != nil {
        return ledger.JournalEntry{}, err
    }
    entry.Posted = true
    s.runPostCommitHooks(ctx, entry)
    return entry, nil
}

// runPostCommitHooks executes each hook with independent error capture.
func (s *service) runPostCommitHooks(ctx context.Context, entry ledger.JournalEntry) {
    for _, hook := range s.hooks {
        if err := hook(ctx, entry); err != nil {
            s.log.Error("post-commit hook failed", "entry_id", entry.ID, "err", err)
        }
    }
}

// UpdateEntry replaces the header fields and, when lines are supplied, the
// line set of an unposted entry.
func (s *service) UpdateEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
    if entry.UserID == uuid.Nil || entry.ID == uuid.Nil {
        return ledger.JournalEntry{}, errs.ErrInvalid
    }
    current, err := s.repo.GetEntry(ctx, entry.UserID, entry.ID)
    if err != nil {
        return ledger.JournalEntry{}, err
    }
    if current.Deleted {
        return ledger.JournalEntry{}, errs.ErrEntryDeleted
    }
    if current.Posted {
        return ledger.JournalEntry{}, errs.ErrPostedImmutable
    }
    next := current
    next.Date = entry.Date
    next.Memo = entry.Memo
    if entry.Lines != nil {
        next.Lines = entry.Lines
        if err := s.ValidateEntry(ctx, next); err != nil {
            return ledger.JournalEntry{}, err
        }
        lines := make([]ledger.JournalLine, len(next.Lines))
        for i, ln := range next.Lines {
            if ln.ID == uuid.Nil {
                ln.ID = uuid.New()
            }
            ln.EntryID = next.ID
            lines[i] = ln
        }
        next.Lines = lines
    }
    return s.writer.UpdateJournalEntry(ctx, next)
}

// DeleteEntry soft-deletes an unposted entry. Posted entries cannot be
// deleted, only reversed, to preserve audit integrity.
func (s *service) DeleteEntry(ctx context.Context, userID, entryID uuid.UUID) error {
    if userID == uuid.Nil || entryID == uuid.Nil {
        return errs.ErrInvalid
    }
    entry, err := s.repo.GetEntry(ctx, userID, entryID)
    if err != nil {
        return err
    }
    if entry.Posted {
        return errs.ErrPostedImmutable
    }
    if entry.Deleted {
        return errs.ErrEntryDeleted
    }
    return s.writer.MarkEntryDeleted(ctx, userID, entryID)
}

// ReverseEntry posts a new offsetting entry for a posted one, swapping each
// line's debit and credit. The original entry is untouched.
func (s *service) ReverseEntry(ctx context.Context, userID, entryID uuid.UUID, date time.Time) (ledger.JournalEntry, error) {
    if userID == uuid.Nil || entryID == uuid.Nil {
        return ledger.JournalEntry{}, errs.ErrInvalid
    }
    orig, err := s.repo.GetEntry(ctx, userID, entryID)
    if err != nil {
        return ledger.JournalEntry{}, err
    }
    if orig.Deleted {
        return ledger.JournalEntry{}, errs.ErrEntryDeleted
    }
    if !orig.Posted {
        return ledger.JournalEntry{}, errs.Invalidf("only posted entries can be reversed")
    }
    zero, _ := money.NewAmountFromMinorUnits(orig.Currency, 0)
    rev := ledger.JournalEntry{
        UserID:   userID,
        Date:     date,
        Currency: orig.Currency,
        Memo:     "reversal of " + orig.ID.String() + ": " + orig.Memo,
        Source:   orig.Source,
        Lines:    make([]ledger.JournalLine, 0, len(orig.Lines)),
    }
    for _, ln := range orig.Lines {
        flipped := ledger.JournalLine{AccountID: ln.AccountID, Debit: ln.Credit, Credit: ln.Debit, Memo: ln.Memo}
        if flipped.DebitMinor() == 0 {
            flipped.Debit = zero
        }
        if flipped.CreditMinor() == 0 {
            flipped.Credit = zero
        }
        rev.Lines = append(rev.Lines, flipped)
    }
    created, err := s.CreateEntry(ctx, rev)
    if err != nil {
        return ledger.JournalEntry{}, err
    }
    return s.PostEntry(ctx, userID, created.ID)
}

func (s *service) ListEntries(ctx context.Context, userID uuid.UUID) ([]ledger.JournalEntry, error) {
    if userID == uuid.Nil {
        return nil, errs.ErrInvalid
    }
    return s.repo.ListEntries(ctx, userID)
}

func (s *service) GetEntry(ctx context.Context, userID, entryID uuid.UUID) (ledger.JournalEntry, error) {
    if userID == uuid.Nil || entryID == uuid.Nil {
        return ledger.JournalEntry{}, errs.ErrInvalid
    }
    return s.repo.GetEntry(ctx, userID, entryID)
}

func fieldErr(i int, msg string) error { return errs.Invalidf("line[%d]: %s", i, msg) }
