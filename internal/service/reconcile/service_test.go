package reconcile

import (
    "context"
    "io"
    "log/slog"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/stretchr/testify/require"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
    "github.com/finbooks/ledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
    return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func usd(t *testing.T, minor int64) money.Amount {
    t.Helper()
    a, err := money.NewAmountFromMinorUnits("USD", minor)
    require.NoError(t, err)
    return a
}

func setup(t *testing.T) (Service, *memory.Store, uuid.UUID, ledger.BankAccount) {
    t.Helper()
    store := memory.New()
    user := ledger.User{ID: uuid.New()}
    store.SeedUser(user)
    checking := ledger.Account{ID: uuid.New(), UserID: user.ID, Code: 1010, Name: "Checking", Type: ledger.AccountTypeAsset, Active: true}
    store.SeedAccount(checking)
    svc := New(store, store, testLogger())
    ba, err := svc.CreateBankAccount(context.Background(), ledger.BankAccount{UserID: user.ID, AccountID: checking.ID, Name: "Main Checking"})
    require.NoError(t, err)
    return svc, store, user.ID, ba
}

func importTxn(t *testing.T, svc Service, userID uuid.UUID, ba ledger.BankAccount, day int, minor int64, dir ledger.TransactionDirection) ledger.BankTransaction {
    t.Helper()
    txn, err := svc.ImportTransaction(context.Background(), ledger.BankTransaction{
        UserID:        userID,
        BankAccountID: ba.ID,
        Date:          time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
        Description:   "imported",
        Amount:        usd(t, minor),
        Direction:     dir,
    })
    require.NoError(t, err)
    return txn
}

func sessionRange() (time.Time, time.Time) {
    return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
}

func TestCreateBankAccount_OnePerLedgerAccount(t *testing.T) {
    svc, _, userID, ba := setup(t)

    _, err := svc.CreateBankAccount(context.Background(), ledger.BankAccount{UserID: userID, AccountID: ba.AccountID, Name: "Duplicate"})
    require.Error(t, err)
}

func TestStartSession_BookBalances(t *testing.T) {
    svc, _, userID, ba := setup(t)
    ctx := context.Background()

    // before the range
    februaryTxn, err := svc.ImportTransaction(ctx, ledger.BankTransaction{
        UserID: userID, BankAccountID: ba.ID,
        Date:      time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
        Amount:    usd(t, 50000),
        Direction: ledger.DirectionDebit,
    })
    require.NoError(t, err)
    _ = februaryTxn
    // inside the range
    importTxn(t, svc, userID, ba, 5, 20000, ledger.DirectionDebit)
    importTxn(t, svc, userID, ba, 12, 7500, ledger.DirectionCredit)

    start, end := sessionRange()
    sess, err := svc.StartSession(ctx, userID, ba.ID, start, end, usd(t, 62500))
    require.NoError(t, err)

    startingMinor, _ := sess.StartingBalance.MinorUnits()
    endingMinor, _ := sess.EndingBalance.MinorUnits()
    require.Equal(t, int64(50000), startingMinor)
    require.Equal(t, int64(62500), endingMinor)
    require.Equal(t, ledger.SessionInProgress, sess.Status)
}

func TestStartSession_OneActivePerBankAccount(t *testing.T) {
    svc, _, userID, ba := setup(t)
    ctx := context.Background()
    start, end := sessionRange()

    _, err := svc.StartSession(ctx, userID, ba.ID, start, end, usd(t, 0))
    require.NoError(t, err)

    _, err = svc.StartSession(ctx, userID, ba.ID, start, end, usd(t, 0))
    require.ErrorIs(t, err, errs.ErrSessionActive)
}

func TestCompleteAndReopenSession(t *testing.T) {
    svc, store, userID, ba := setup(t)
    ctx := context.Background()

    txn1 := importTxn(t, svc, userID, ba, 5, 20000, ledger.DirectionDebit)
    txn2 := importTxn(t, svc, userID, ba, 12, 7500, ledger.DirectionCredit)
    entryID := uuid.New()

    start, end := sessionRange()
    sess, err := svc.StartSession(ctx, userID, ba.ID, start, end, usd(t, 12500))
    require.NoError(t, err)

    unmatched, err := svc.UnmatchedTransactions(ctx, userID, sess.ID)
    require.NoError(t, err)
    require.Len(t, unmatched, 2)

    err = svc.CompleteSession(ctx, userID, sess.ID, []MatchInput{
        {BankTransactionIDs: []uuid.UUID{txn1.ID, txn2.ID}, EntryIDs: []uuid.UUID{entryID}},
    })
    require.NoError(t, err)

    got, err := svc.GetSession(ctx, userID, sess.ID)
    require.NoError(t, err)
    require.Equal(t, ledger.SessionCompleted, got.Status)

    txns, err := store.TransactionsBySession(ctx, userID, sess.ID)
    require.NoError(t, err)
    require.Len(t, txns, 2)
    for _, txn := range txns {
        require.Equal(t, ledger.StatusReconciled, txn.Status)
        require.NotNil(t, txn.SessionID)
        require.Equal(t, sess.ID, *txn.SessionID)
        require.NotNil(t, txn.EntryID)
        require.Equal(t, entryID, *txn.EntryID)
    }

    reloaded, err := store.GetBankAccount(ctx, userID, ba.ID)
    require.NoError(t, err)
    require.NotNil(t, reloaded.LastReconciled, "completion stamps the bank account")

    matches, err := svc.ListMatches(ctx, userID, sess.ID)
    require.NoError(t, err)
    require.Len(t, matches, 1)

    // reopen reverts the transactions but keeps match history
    require.NoError(t, svc.ReopenSession(ctx, userID, sess.ID))

    got, err = svc.GetSession(ctx, userID, sess.ID)
    require.NoError(t, err)
    require.Equal(t, ledger.SessionInProgress, got.Status)

    all, err := svc.ListTransactions(ctx, userID, ba.ID)
    require.NoError(t, err)
    for _, txn := range all {
        require.Equal(t, ledger.StatusUnmatched, txn.Status)
        require.Nil(t, txn.SessionID)
        require.Nil(t, txn.EntryID)
    }

    matches, err = svc.ListMatches(ctx, userID, sess.ID)
    require.NoError(t, err)
    require.Len(t, matches, 1, "reopen keeps matches as history")
}

func TestCompleteSession_ReplacesMatchHistory(t *testing.T) {
    svc, _, userID, ba := setup(t)
    ctx := context.Background()

    txn := importTxn(t, svc, userID, ba, 5, 20000, ledger.DirectionDebit)
    start, end := sessionRange()
    sess, err := svc.StartSession(ctx, userID, ba.ID, start, end, usd(t, 20000))
    require.NoError(t, err)

    matches := []MatchInput{{BankTransactionIDs: []uuid.UUID{txn.ID}}}
    require.NoError(t, svc.CompleteSession(ctx, userID, sess.ID, matches))
    require.NoError(t, svc.ReopenSession(ctx, userID, sess.ID))
    require.NoError(t, svc.CompleteSession(ctx, userID, sess.ID, matches))

    groups, err := svc.ListMatches(ctx, userID, sess.ID)
    require.NoError(t, err)
    require.Len(t, groups, 1, "a new completion replaces the previous groups")
    require.Equal(t, []uuid.UUID{txn.ID}, groups[0].BankTransactionIDs)
}

func TestCompleteSession_RequiresOpen(t *testing.T) {
    svc, _, userID, ba := setup(t)
    ctx := context.Background()
    start, end := sessionRange()

    sess, err := svc.StartSession(ctx, userID, ba.ID, start, end, usd(t, 0))
    require.NoError(t, err)
    require.NoError(t, svc.CompleteSession(ctx, userID, sess.ID, nil))

    err = svc.CompleteSession(ctx, userID, sess.ID, nil)
    require.ErrorIs(t, err, errs.ErrSessionNotOpen)
}

func TestReopenSession_RequiresCompleted(t *testing.T) {
    svc, _, userID, ba := setup(t)
    ctx := context.Background()
    start, end := sessionRange()

    sess, err := svc.StartSession(ctx, userID, ba.ID, start, end, usd(t, 0))
    require.NoError(t, err)

    err = svc.ReopenSession(ctx, userID, sess.ID)
    require.ErrorIs(t, err, errs.ErrSessionNotCompleted)
}

func TestCompleteSession_RejectsForeignReconciled(t *testing.T) {
    svc, _, userID, ba := setup(t)
    ctx := context.Background()

    txn := importTxn(t, svc, userID, ba, 5, 20000, ledger.DirectionDebit)
    start, end := sessionRange()
    first, err := svc.StartSession(ctx, userID, ba.ID, start, end, usd(t, 20000))
    require.NoError(t, err)
    require.NoError(t, svc.CompleteSession(ctx, userID, first.ID, []MatchInput{
        {BankTransactionIDs: []uuid.UUID{txn.ID}, EntryIDs: []uuid.UUID{uuid.New()}},
    }))

    second, err := svc.StartSession(ctx, userID, ba.ID, start, end, usd(t, 20000))
    require.NoError(t, err)
    err = svc.CompleteSession(ctx, userID, second.ID, []MatchInput{
        {BankTransactionIDs: []uuid.UUID{txn.ID}, EntryIDs: []uuid.UUID{uuid.New()}},
    })
    require.Error(t, err, "a transaction reconciled by another session cannot be claimed")
}

func TestReopenSession_DetectsDrift(t *testing.T) {
    svc, store, userID, ba := setup(t)
    ctx := context.Background()

    txn := importTxn(t, svc, userID, ba, 5, 20000, ledger.DirectionDebit)
    start, end := sessionRange()
    sess, err := svc.StartSession(ctx, userID, ba.ID, start, end, usd(t, 20000))
    require.NoError(t, err)
    require.NoError(t, svc.CompleteSession(ctx, userID, sess.ID, nil))

    // Simulate drift: a reconciled transaction without any session link.
    txn.Status = ledger.StatusReconciled
    txn.SessionID = nil
    require.NoError(t, store.CompleteSession(ctx, mustSession(t, store, userID, sess.ID), []ledger.BankTransaction{txn}, time.Now().UTC()))

    err = svc.ReopenSession(ctx, userID, sess.ID)
    require.ErrorIs(t, err, errs.ErrIntegrity)
}

func mustSession(t *testing.T, store *memory.Store, userID, sessionID uuid.UUID) ledger.ReconciliationSession {
    t.Helper()
    sess, err := store.GetSession(context.Background(), userID, sessionID)
    require.NoError(t, err)
    return sess
}
