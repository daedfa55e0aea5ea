package recurring

import (
    "context"
    "io"
    "log/slog"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/stretchr/testify/require"

    "github.com/finbooks/ledger/internal/ledger"
    "github.com/finbooks/ledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
    return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func seedEntry(t *testing.T, store *memory.Store, userID uuid.UUID, memo string) ledger.JournalEntry {
    t.Helper()
    cash := ledger.Account{ID: uuid.New(), UserID: userID, Code: 1000, Name: "Cash", Type: ledger.AccountTypeAsset, Active: true}
    rent := ledger.Account{ID: uuid.New(), UserID: userID, Code: 5100, Name: "Rent", Type: ledger.AccountTypeExpense, Active: true}
    store.SeedAccount(cash)
    store.SeedAccount(rent)
    d, err := money.NewAmountFromMinorUnits("USD", 120000)
    require.NoError(t, err)
    zero, err := money.NewAmountFromMinorUnits("USD", 0)
    require.NoError(t, err)
    entryID := uuid.New()
    entry := ledger.JournalEntry{
        ID:       entryID,
        UserID:   userID,
        Date:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
        Currency: "USD",
        Memo:     memo,
        Source:   ledger.SourceManual,
        Lines: []ledger.JournalLine{
            {ID: uuid.New(), EntryID: entryID, AccountID: rent.ID, Debit: d, Credit: zero},
            {ID: uuid.New(), EntryID: entryID, AccountID: cash.ID, Debit: zero, Credit: d},
        },
    }
    created, err := store.CreateJournalEntry(context.Background(), entry)
    require.NoError(t, err)
    return created
}

func setup(t *testing.T) (Service, *memory.Store, uuid.UUID, ledger.JournalEntry) {
    t.Helper()
    store := memory.New()
    user := ledger.User{ID: uuid.New()}
    store.SeedUser(user)
    entry := seedEntry(t, store, user.ID, "monthly rent")
    return New(store, store, testLogger()), store, user.ID, entry
}

func TestCreateTemplate(t *testing.T) {
    svc, _, userID, entry := setup(t)
    ctx := context.Background()

    tpl, err := svc.CreateTemplate(ctx, ledger.RecurringTemplate{
        UserID:    userID,
        EntryID:   entry.ID,
        Frequency: ledger.FrequencyMonthly,
        AnchorDay: 1,
        StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
    })
    require.NoError(t, err)
    require.True(t, tpl.Active)
    require.Nil(t, tpl.LastGenerated)
}

func TestCreateTemplate_Invalid(t *testing.T) {
    svc, _, userID, entry := setup(t)
    ctx := context.Background()

    _, err := svc.CreateTemplate(ctx, ledger.RecurringTemplate{
        UserID: userID, EntryID: entry.ID,
        Frequency: ledger.Frequency("sometimes"),
        StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
    })
    require.Error(t, err)

    _, err = svc.CreateTemplate(ctx, ledger.RecurringTemplate{
        UserID: userID, EntryID: uuid.New(),
        Frequency: ledger.FrequencyMonthly,
        StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
    })
    require.Error(t, err, "source entry must exist")
}

func TestRunGenerationPass(t *testing.T) {
    svc, store, userID, entry := setup(t)
    ctx := context.Background()

    start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
    tpl, err := svc.CreateTemplate(ctx, ledger.RecurringTemplate{
        UserID: userID, EntryID: entry.ID,
        Frequency: ledger.FrequencyMonthly, AnchorDay: 1,
        StartDate: start,
    })
    require.NoError(t, err)

    asOf := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
    res, err := svc.RunGenerationPass(ctx, asOf)
    require.NoError(t, err)
    require.Equal(t, 1, res.Generated)
    require.Empty(t, res.Errors)

    entries, err := store.ListEntries(ctx, userID)
    require.NoError(t, err)
    require.Len(t, entries, 2)
    var gen ledger.JournalEntry
    for _, e := range entries {
        if e.ID != entry.ID {
            gen = e
        }
    }
    require.Equal(t, ledger.SourceRecurring, gen.Source)
    require.False(t, gen.Posted, "generated entries are drafts")
    require.Equal(t, asOf, gen.Date)
    require.Len(t, gen.Lines, 2)

    got, err := store.GetTemplate(ctx, userID, tpl.ID)
    require.NoError(t, err)
    require.NotNil(t, got.LastGenerated)
    require.Equal(t, asOf, *got.LastGenerated)
}

func TestRunGenerationPass_Idempotent(t *testing.T) {
    svc, _, userID, entry := setup(t)
    ctx := context.Background()

    _, err := svc.CreateTemplate(ctx, ledger.RecurringTemplate{
        UserID: userID, EntryID: entry.ID,
        Frequency: ledger.FrequencyMonthly, AnchorDay: 1,
        StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
    })
    require.NoError(t, err)

    asOf := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
    res, err := svc.RunGenerationPass(ctx, asOf)
    require.NoError(t, err)
    require.Equal(t, 1, res.Generated)

    res, err = svc.RunGenerationPass(ctx, asOf)
    require.NoError(t, err)
    require.Equal(t, 0, res.Generated, "second pass for the same date generates nothing")
    require.Equal(t, 1, res.Skipped)
}

func TestRunGenerationPass_NotYetDue(t *testing.T) {
    svc, _, userID, entry := setup(t)
    ctx := context.Background()

    _, err := svc.CreateTemplate(ctx, ledger.RecurringTemplate{
        UserID: userID, EntryID: entry.ID,
        Frequency: ledger.FrequencyMonthly, AnchorDay: 1,
        StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
    })
    require.NoError(t, err)

    res, err := svc.RunGenerationPass(ctx, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
    require.NoError(t, err)
    require.Equal(t, 0, res.Generated)
    require.Equal(t, 1, res.Skipped)
}

func TestRunGenerationPass_EndedTemplate(t *testing.T) {
    svc, _, userID, entry := setup(t)
    ctx := context.Background()

    end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
    _, err := svc.CreateTemplate(ctx, ledger.RecurringTemplate{
        UserID: userID, EntryID: entry.ID,
        Frequency: ledger.FrequencyMonthly, AnchorDay: 1,
        StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
        EndDate:   &end,
    })
    require.NoError(t, err)

    res, err := svc.RunGenerationPass(ctx, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
    require.NoError(t, err)
    require.Equal(t, 0, res.Generated)
}

func TestRunGenerationPass_CollectsErrors(t *testing.T) {
    svc, store, userID, entry := setup(t)
    ctx := context.Background()

    // healthy template
    _, err := svc.CreateTemplate(ctx, ledger.RecurringTemplate{
        UserID: userID, EntryID: entry.ID,
        Frequency: ledger.FrequencyMonthly, AnchorDay: 1,
        StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
    })
    require.NoError(t, err)

    // template whose source entry gets deleted after creation
    doomed := seedEntry(t, store, userID, "doomed")
    badTpl, err := svc.CreateTemplate(ctx, ledger.RecurringTemplate{
        UserID: userID, EntryID: doomed.ID,
        Frequency: ledger.FrequencyMonthly, AnchorDay: 1,
        StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
    })
    require.NoError(t, err)
    require.NoError(t, store.MarkEntryDeleted(ctx, userID, doomed.ID))

    res, err := svc.RunGenerationPass(ctx, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
    require.NoError(t, err, "a failing template does not abort the pass")
    require.Equal(t, 1, res.Generated)
    require.Len(t, res.Errors, 1)
    require.Equal(t, badTpl.ID, res.Errors[0].TemplateID)
}

func TestDeactivate(t *testing.T) {
    svc, store, userID, entry := setup(t)
    ctx := context.Background()

    tpl, err := svc.CreateTemplate(ctx, ledger.RecurringTemplate{
        UserID: userID, EntryID: entry.ID,
        Frequency: ledger.FrequencyMonthly, AnchorDay: 1,
        StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
    })
    require.NoError(t, err)
    require.NoError(t, svc.Deactivate(ctx, userID, tpl.ID))

    got, err := store.GetTemplate(ctx, userID, tpl.ID)
    require.NoError(t, err)
    require.False(t, got.Active)

    res, err := svc.RunGenerationPass(ctx, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
    require.NoError(t, err)
    require.Equal(t, 0, res.Generated, "inactive templates are not considered")
}
