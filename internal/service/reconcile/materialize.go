package reconcile

import (
    "context"
    "fmt"
    "log/slog"

    "github.com/google/uuid"

    "github.com/finbooks/ledger/internal/ledger"
)

// NewMaterializer returns a post-commit hook for the journal engine that
// mirrors posted journal lines into bank transactions for every ledger
// account linked to a bank account. It runs outside the posting transaction:
// a failure here is logged by the journal engine and never rolls back the
// posting.
func NewMaterializer(repo Repo, writer Writer, log *slog.Logger) func(ctx context.Context, entry ledger.JournalEntry) error {
    return func(ctx context.Context, entry ledger.JournalEntry) error {
        for _, ln := range entry.Lines {
            ba, linked, err := repo.BankAccountByLedgerAccount(ctx, entry.UserID, ln.AccountID)
            if err != nil {
                return fmt.Errorf("bank account lookup for account %s: %w", ln.AccountID, err)
            }
            if !linked {
                continue
            }
            direction := ledger.DirectionDebit
            amount := ln.Debit
            if ln.DebitMinor() == 0 {
                direction = ledger.DirectionCredit
                amount = ln.Credit
            }
            entryID := entry.ID
            txn := ledger.BankTransaction{
                ID:            uuid.New(),
                UserID:        entry.UserID,
                BankAccountID: ba.ID,
                Date:          entry.Date,
                Description:   entry.Memo,
                Amount:        amount,
                Direction:     direction,
                Status:        ledger.StatusUnmatched,
                EntryID:       &entryID,
            }
            if _, err := writer.CreateBankTransaction(ctx, txn); err != nil {
                return fmt.Errorf("materialize bank transaction for entry %s: %w", entry.ID, err)
            }
            log.Info("bank transaction materialized", "entry_id", entry.ID, "bank_account_id", ba.ID)
        }
        return nil
    }
}
