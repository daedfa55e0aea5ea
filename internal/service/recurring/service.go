// Package recurring implements the scheduler that materializes journal
// entries from recurring templates. Each template is processed independently
// and transactionally, so a failed or interrupted pass is safe to rerun.
package recurring

import (
    "context"
    "log/slog"
    "time"

    "github.com/google/uuid"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
    ListActiveTemplates(ctx context.Context) ([]ledger.RecurringTemplate, error)
    ListTemplates(ctx context.Context, userID uuid.UUID) ([]ledger.RecurringTemplate, error)
    GetTemplate(ctx context.Context, userID, templateID uuid.UUID) (ledger.RecurringTemplate, error)
    GetEntry(ctx context.Context, userID, entryID uuid.UUID) (ledger.JournalEntry, error)
}

// Writer defines write operations needed by the service.
// CreateGeneratedEntry persists the cloned entry and advances the template's
// LastGenerated in one store transaction.
type Writer interface {
    CreateTemplate(ctx context.Context, tpl ledger.RecurringTemplate) (ledger.RecurringTemplate, error)
    UpdateTemplate(ctx context.Context, tpl ledger.RecurringTemplate) (ledger.RecurringTemplate, error)
    CreateGeneratedEntry(ctx context.Context, entry ledger.JournalEntry, templateID uuid.UUID, occurrence time.Time) (ledger.JournalEntry, error)
}

// ItemError is a per-template failure from a generation pass.
type ItemError struct {
    TemplateID uuid.UUID
    Err        error
}

// PassResult summarizes one generation pass. Failures are collected, not
// thrown: one broken template must not abort the batch.
type PassResult struct {
    Generated int
    Skipped   int
    Errors    []ItemError
}

// Service drives recurring entry generation and template lifecycle.
type Service interface {
    CreateTemplate(ctx context.Context, tpl ledger.RecurringTemplate) (ledger.RecurringTemplate, error)
    ListTemplates(ctx context.Context, userID uuid.UUID) ([]ledger.RecurringTemplate, error)
    Deactivate(ctx context.Context, userID, templateID uuid.UUID) error
    RunGenerationPass(ctx context.Context, asOf time.Time) (PassResult, error)
}

type service struct {
    repo   Repo
    writer Writer
    log    *slog.Logger
}

func New(repo Repo, writer Writer, log *slog.Logger) Service {
    return &service{repo: repo, writer: writer, log: log}
}

// CreateTemplate validates and persists a template bound to an existing entry.
func (s *service) CreateTemplate(ctx context.Context, tpl ledger.RecurringTemplate) (ledger.RecurringTemplate, error) {
    if tpl.UserID == uuid.Nil || tpl.EntryID == uuid.Nil {
        return ledger.RecurringTemplate{}, errs.ErrInvalid
    }
    if !tpl.Frequency.Valid() {
        return ledger.RecurringTemplate{}, errs.Invalidf("invalid frequency")
    }
    if tpl.AnchorDay < 0 || tpl.AnchorDay > 31 {
        return ledger.RecurringTemplate{}, errs.Invalidf("anchor day must be between 0 and 31")
    }
    if tpl.StartDate.IsZero() {
        return ledger.RecurringTemplate{}, errs.Invalidf("start date is required")
    }
    if tpl.EndDate != nil && tpl.EndDate.Before(tpl.StartDate) {
        return ledger.RecurringTemplate{}, errs.Invalidf("end date before start date")
    }
    // The source entry must exist; posted or unposted are both allowed.
    src, err := s.repo.GetEntry(ctx, tpl.UserID, tpl.EntryID)
    if err != nil {
        return ledger.RecurringTemplate{}, err
    }
    if src.Deleted {
        return ledger.RecurringTemplate{}, errs.ErrEntryDeleted
    }
    tpl.ID = uuid.New()
    tpl.LastGenerated = nil
    tpl.Active = true
    return s.writer.CreateTemplate(ctx, tpl)
}

func (s *service) ListTemplates(ctx context.Context, userID uuid.UUID) ([]ledger.RecurringTemplate, error) {
    if userID == uuid.Nil {
        return nil, errs.ErrInvalid
    }
    return s.repo.ListTemplates(ctx, userID)
}

// Deactivate turns a template off. Templates are never deleted.
func (s *service) Deactivate(ctx context.Context, userID, templateID uuid.UUID) error {
    if userID == uuid.Nil || templateID == uuid.Nil {
        return errs.ErrInvalid
    }
    tpl, err := s.repo.GetTemplate(ctx, userID, templateID)
    if err != nil {
        return err
    }
    tpl.Active = false
    _, err = s.writer.UpdateTemplate(ctx, tpl)
    return err
}

// RunGenerationPass materializes at most one occurrence per due template.
// The pass is idempotent per template per date: rerunning with the same asOf
// generates nothing new because LastGenerated already covers the occurrence.
func (s *service) RunGenerationPass(ctx context.Context, asOf time.Time) (PassResult, error) {
    templates, err := s.repo.ListActiveTemplates(ctx)
    if err != nil {
        return PassResult{}, err
    }
    var res PassResult
    for _, tpl := range templates {
        generated, err := s.generateOne(ctx, tpl, asOf)
        if err != nil {
            s.log.Error("recurring generation failed", "template_id", tpl.ID, "err", err)
            res.Errors = append(res.Errors, ItemError{TemplateID: tpl.ID, Err: err})
            continue
        }
        if generated {
            res.Generated++
        } else {
            res.Skipped++
        }
    }
    return res, nil
}

func (s *service) generateOne(ctx context.Context, tpl ledger.RecurringTemplate, asOf time.Time) (bool, error) {
    if tpl.StartDate.After(asOf) {
        return false, nil
    }
    if tpl.EndDate != nil && tpl.EndDate.Before(asOf) {
        return false, nil
    }
    base := tpl.StartDate
    if tpl.LastGenerated != nil {
        base = *tpl.LastGenerated
    }
    next := NextOccurrence(tpl, base)
    if next.IsZero() {
        return false, errs.Invalidf("invalid frequency on template")
    }
    if next.After(asOf) {
        return false, nil // not yet due
    }
    src, err := s.repo.GetEntry(ctx, tpl.UserID, tpl.EntryID)
    if err != nil {
        return false, err
    }
    if src.Deleted {
        return false, errs.ErrEntryDeleted
    }
    clone := ledger.JournalEntry{
        ID:       uuid.New(),
        UserID:   tpl.UserID,
        Date:     next,
        Currency: src.Currency,
        Memo:     src.Memo,
        Source:   ledger.SourceRecurring,
        Lines:    make([]ledger.JournalLine, 0, len(src.Lines)),
    }
    for _, ln := range src.Lines {
        clone.Lines = append(clone.Lines, ledger.JournalLine{
            ID:        uuid.New(),
            EntryID:   clone.ID,
            AccountID: ln.AccountID,
            Debit:     ln.Debit,
            Credit:    ln.Credit,
            Memo:      ln.Memo,
        })
    }
    if _, err := s.writer.CreateGeneratedEntry(ctx, clone, tpl.ID, next); err != nil {
        return false, err
    }
    s.log.Info("recurring entry generated", "template_id", tpl.ID, "entry_id", clone.ID, "date", next.Format("2006-01-02"))
    return true, nil
}
