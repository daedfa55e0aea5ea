package postgres

import (
    "context"
    "errors"
    "time"

    "github.com/google/uuid"
    "github.com/jackc/pgx/v5"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
)

const templateCols = `id, user_id, entry_id, frequency, anchor_day, anchor_weekday, start_date, end_date, last_generated, active`

func scanTemplate(row pgx.Row) (ledger.RecurringTemplate, error) {
    var t ledger.RecurringTemplate
    var weekday int
    err := row.Scan(&t.ID, &t.UserID, &t.EntryID, &t.Frequency, &t.AnchorDay, &weekday, &t.StartDate, &t.EndDate, &t.LastGenerated, &t.Active)
    t.AnchorWeekday = time.Weekday(weekday)
    return t, err
}

// CreateTemplate inserts a recurring template row.
func (s *Store) CreateTemplate(ctx context.Context, t ledger.RecurringTemplate) (ledger.RecurringTemplate, error) {
    _, err := s.pool.Exec(ctx, `
        insert into recurring_templates (`+templateCols+`)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `, t.ID, t.UserID, t.EntryID, t.Frequency, t.AnchorDay, int(t.AnchorWeekday), t.StartDate, t.EndDate, t.LastGenerated, t.Active)
    if err != nil { return ledger.RecurringTemplate{}, err }
    return t, nil
}

// UpdateTemplate rewrites the mutable template fields.
func (s *Store) UpdateTemplate(ctx context.Context, t ledger.RecurringTemplate) (ledger.RecurringTemplate, error) {
    ct, err := s.pool.Exec(ctx, `
        update recurring_templates
        set frequency=$1, anchor_day=$2, anchor_weekday=$3, start_date=$4, end_date=$5, last_generated=$6, active=$7
        where id=$8 and user_id=$9
    `, t.Frequency, t.AnchorDay, int(t.AnchorWeekday), t.StartDate, t.EndDate, t.LastGenerated, t.Active, t.ID, t.UserID)
    if err != nil { return ledger.RecurringTemplate{}, err }
    if ct.RowsAffected() == 0 { return ledger.RecurringTemplate{}, errs.ErrNotFound }
    return t, nil
}

// GetTemplate fetches a template by id for a user.
func (s *Store) GetTemplate(ctx context.Context, userID, templateID uuid.UUID) (ledger.RecurringTemplate, error) {
    t, err := scanTemplate(s.pool.QueryRow(ctx, `
        select `+templateCols+` from recurring_templates
        where id = $1 and user_id = $2
    `, templateID, userID))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.RecurringTemplate{}, errs.ErrNotFound }
    if err != nil { return ledger.RecurringTemplate{}, err }
    return t, nil
}

// ListTemplates returns all templates for a user ordered by start date.
func (s *Store) ListTemplates(ctx context.Context, userID uuid.UUID) ([]ledger.RecurringTemplate, error) {
    return s.listTemplates(ctx, `
        select `+templateCols+` from recurring_templates
        where user_id = $1
        order by start_date asc, id asc
    `, userID)
}

// ListActiveTemplates returns active templates across all users, used by the
// generation pass.
func (s *Store) ListActiveTemplates(ctx context.Context) ([]ledger.RecurringTemplate, error) {
    return s.listTemplates(ctx, `
        select `+templateCols+` from recurring_templates
        where active = true
        order by start_date asc, id asc
    `)
}

func (s *Store) listTemplates(ctx context.Context, q string, args ...any) ([]ledger.RecurringTemplate, error) {
    rows, err := s.pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := make([]ledger.RecurringTemplate, 0)
    for rows.Next() {
        t, err := scanTemplate(rows)
        if err != nil { return nil, err }
        out = append(out, t)
    }
    return out, rows.Err()
}

// CreateGeneratedEntry inserts the generated entry and advances the template's
// last_generated marker in one transaction, so a crashed pass never leaves a
// template pointing behind an entry that exists.
func (s *Store) CreateGeneratedEntry(ctx context.Context, entry ledger.JournalEntry, templateID uuid.UUID, occurrence time.Time) (ledger.JournalEntry, error) {
    tx, err := s.pool.Begin(ctx)
    if err != nil { return ledger.JournalEntry{}, err }
    defer func() { _ = tx.Rollback(ctx) }()
    if err := insertEntry(ctx, tx, entry); err != nil { return ledger.JournalEntry{}, err }
    ct, err := tx.Exec(ctx, `
        update recurring_templates set last_generated=$1
        where id=$2 and user_id=$3
    `, occurrence, templateID, entry.UserID)
    if err != nil { return ledger.JournalEntry{}, err }
    if ct.RowsAffected() == 0 { return ledger.JournalEntry{}, errs.ErrNotFound }
    if err := tx.Commit(ctx); err != nil { return ledger.JournalEntry{}, err }
    return entry, nil
}
