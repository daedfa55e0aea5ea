package reconcile

import (
    "context"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/stretchr/testify/require"

    "github.com/finbooks/ledger/internal/ledger"
)

func TestMaterializer(t *testing.T) {
    svc, store, userID, ba := setup(t)
    ctx := context.Background()
    hook := NewMaterializer(store, store, testLogger())

    other := uuid.New() // ledger account with no bank link
    entryID := uuid.New()
    entry := ledger.JournalEntry{
        ID:       entryID,
        UserID:   userID,
        Date:     time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
        Currency: "USD",
        Memo:     "client payment",
        Posted:   true,
        Lines: []ledger.JournalLine{
            {ID: uuid.New(), EntryID: entryID, AccountID: ba.AccountID, Debit: usd(t, 20000), Credit: usd(t, 0)},
            {ID: uuid.New(), EntryID: entryID, AccountID: other, Debit: usd(t, 0), Credit: usd(t, 20000)},
        },
    }

    require.NoError(t, hook(ctx, entry))

    txns, err := svc.ListTransactions(ctx, userID, ba.ID)
    require.NoError(t, err)
    require.Len(t, txns, 1, "only lines on linked accounts materialize")
    txn := txns[0]
    require.Equal(t, ledger.DirectionDebit, txn.Direction)
    require.Equal(t, ledger.StatusUnmatched, txn.Status)
    require.Equal(t, "client payment", txn.Description)
    require.NotNil(t, txn.EntryID)
    require.Equal(t, entry.ID, *txn.EntryID)
    minor, _ := txn.Amount.MinorUnits()
    require.Equal(t, int64(20000), minor)
}

func TestMaterializer_CreditSide(t *testing.T) {
    svc, store, userID, ba := setup(t)
    ctx := context.Background()
    hook := NewMaterializer(store, store, testLogger())

    entryID := uuid.New()
    entry := ledger.JournalEntry{
        ID:       entryID,
        UserID:   userID,
        Date:     time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
        Currency: "USD",
        Memo:     "rent paid",
        Posted:   true,
        Lines: []ledger.JournalLine{
            {ID: uuid.New(), EntryID: entryID, AccountID: uuid.New(), Debit: usd(t, 120000), Credit: usd(t, 0)},
            {ID: uuid.New(), EntryID: entryID, AccountID: ba.AccountID, Debit: usd(t, 0), Credit: usd(t, 120000)},
        },
    }

    require.NoError(t, hook(ctx, entry))

    txns, err := svc.ListTransactions(ctx, userID, ba.ID)
    require.NoError(t, err)
    require.Len(t, txns, 1)
    require.Equal(t, ledger.DirectionCredit, txns[0].Direction)
}
