package postgres

import (
    "context"
    "errors"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/jackc/pgx/v5"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
)

// --- Bank accounts ---

const bankAccountCols = `id, user_id, account_id, name, last_reconciled`

func scanBankAccount(row pgx.Row) (ledger.BankAccount, error) {
    var ba ledger.BankAccount
    err := row.Scan(&ba.ID, &ba.UserID, &ba.AccountID, &ba.Name, &ba.LastReconciled)
    return ba, err
}

// CreateBankAccount inserts a bank account row.
func (s *Store) CreateBankAccount(ctx context.Context, ba ledger.BankAccount) (ledger.BankAccount, error) {
    _, err := s.pool.Exec(ctx, `
        insert into bank_accounts (`+bankAccountCols+`)
        values ($1,$2,$3,$4,$5)
    `, ba.ID, ba.UserID, ba.AccountID, ba.Name, ba.LastReconciled)
    if err != nil { return ledger.BankAccount{}, err }
    return ba, nil
}

// GetBankAccount fetches a bank account by id for a user.
func (s *Store) GetBankAccount(ctx context.Context, userID, bankAccountID uuid.UUID) (ledger.BankAccount, error) {
    ba, err := scanBankAccount(s.pool.QueryRow(ctx, `
        select `+bankAccountCols+` from bank_accounts
        where id = $1 and user_id = $2
    `, bankAccountID, userID))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.BankAccount{}, errs.ErrNotFound }
    if err != nil { return ledger.BankAccount{}, err }
    return ba, nil
}

// ListBankAccounts returns all bank accounts for a user ordered by name.
func (s *Store) ListBankAccounts(ctx context.Context, userID uuid.UUID) ([]ledger.BankAccount, error) {
    rows, err := s.pool.Query(ctx, `
        select `+bankAccountCols+` from bank_accounts
        where user_id = $1
        order by name asc, id asc
    `, userID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := make([]ledger.BankAccount, 0)
    for rows.Next() {
        ba, err := scanBankAccount(rows)
        if err != nil { return nil, err }
        out = append(out, ba)
    }
    return out, rows.Err()
}

// BankAccountByLedgerAccount looks up the bank account linked to a ledger
// account, if any.
func (s *Store) BankAccountByLedgerAccount(ctx context.Context, userID, accountID uuid.UUID) (ledger.BankAccount, bool, error) {
    ba, err := scanBankAccount(s.pool.QueryRow(ctx, `
        select `+bankAccountCols+` from bank_accounts
        where user_id = $1 and account_id = $2
    `, userID, accountID))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.BankAccount{}, false, nil }
    if err != nil { return ledger.BankAccount{}, false, err }
    return ba, true, nil
}

// --- Bank transactions ---

const bankTxnCols = `id, user_id, bank_account_id, date, description, amount_minor, currency, direction, status, entry_id, session_id, deleted`

func scanBankTxn(row pgx.Row) (ledger.BankTransaction, error) {
    var t ledger.BankTransaction
    var amountMinor int64
    var currency string
    err := row.Scan(&t.ID, &t.UserID, &t.BankAccountID, &t.Date, &t.Description, &amountMinor, &currency, &t.Direction, &t.Status, &t.EntryID, &t.SessionID, &t.Deleted)
    if err != nil { return ledger.BankTransaction{}, err }
    t.Amount, err = money.NewAmountFromMinorUnits(currency, amountMinor)
    return t, err
}

// CreateBankTransaction inserts a bank transaction row.
func (s *Store) CreateBankTransaction(ctx context.Context, t ledger.BankTransaction) (ledger.BankTransaction, error) {
    amountMinor, _ := t.Amount.MinorUnits()
    _, err := s.pool.Exec(ctx, `
        insert into bank_transactions (`+bankTxnCols+`)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    `, t.ID, t.UserID, t.BankAccountID, t.Date, t.Description, amountMinor, t.Amount.Curr().Code(), t.Direction, t.Status, t.EntryID, t.SessionID, t.Deleted)
    if err != nil { return ledger.BankTransaction{}, err }
    return t, nil
}

// ListBankTransactions returns all transactions of a bank account ordered by
// date.
func (s *Store) ListBankTransactions(ctx context.Context, userID, bankAccountID uuid.UUID) ([]ledger.BankTransaction, error) {
    return s.listBankTxns(ctx, `
        select `+bankTxnCols+` from bank_transactions
        where user_id = $1 and bank_account_id = $2
        order by date asc, id asc
    `, userID, bankAccountID)
}

// TransactionsBySession returns the transactions a session marked reconciled.
func (s *Store) TransactionsBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]ledger.BankTransaction, error) {
    return s.listBankTxns(ctx, `
        select `+bankTxnCols+` from bank_transactions
        where user_id = $1 and session_id = $2
        order by date asc, id asc
    `, userID, sessionID)
}

func (s *Store) listBankTxns(ctx context.Context, q string, args ...any) ([]ledger.BankTransaction, error) {
    rows, err := s.pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := make([]ledger.BankTransaction, 0)
    for rows.Next() {
        t, err := scanBankTxn(rows)
        if err != nil { return nil, err }
        out = append(out, t)
    }
    return out, rows.Err()
}

func updateBankTxn(ctx context.Context, tx pgx.Tx, t ledger.BankTransaction) error {
    ct, err := tx.Exec(ctx, `
        update bank_transactions
        set status=$1, entry_id=$2, session_id=$3, deleted=$4
        where id=$5 and user_id=$6
    `, t.Status, t.EntryID, t.SessionID, t.Deleted, t.ID, t.UserID)
    if err != nil { return err }
    if ct.RowsAffected() == 0 { return errs.ErrNotFound }
    return nil
}

// --- Sessions ---

const sessionCols = `id, user_id, bank_account_id, range_start, range_end, starting_minor, ending_minor, statement_minor, currency, status`

func scanSession(row pgx.Row) (ledger.ReconciliationSession, error) {
    var sess ledger.ReconciliationSession
    var startingMinor, endingMinor, statementMinor int64
    var currency string
    err := row.Scan(&sess.ID, &sess.UserID, &sess.BankAccountID, &sess.RangeStart, &sess.RangeEnd, &startingMinor, &endingMinor, &statementMinor, &currency, &sess.Status)
    if err != nil { return ledger.ReconciliationSession{}, err }
    if sess.StartingBalance, err = money.NewAmountFromMinorUnits(currency, startingMinor); err != nil { return ledger.ReconciliationSession{}, err }
    if sess.EndingBalance, err = money.NewAmountFromMinorUnits(currency, endingMinor); err != nil { return ledger.ReconciliationSession{}, err }
    sess.StatementBalance, err = money.NewAmountFromMinorUnits(currency, statementMinor)
    return sess, err
}

func sessionArgs(sess ledger.ReconciliationSession) []any {
    startingMinor, _ := sess.StartingBalance.MinorUnits()
    endingMinor, _ := sess.EndingBalance.MinorUnits()
    statementMinor, _ := sess.StatementBalance.MinorUnits()
    return []any{sess.ID, sess.UserID, sess.BankAccountID, sess.RangeStart, sess.RangeEnd, startingMinor, endingMinor, statementMinor, sess.StatementBalance.Curr().Code(), sess.Status}
}

// CreateSession inserts a session. The conditional insert enforces the single
// in_progress session per bank account without a separate lock.
func (s *Store) CreateSession(ctx context.Context, sess ledger.ReconciliationSession) (ledger.ReconciliationSession, error) {
    ct, err := s.pool.Exec(ctx, `
        insert into reconciliation_sessions (`+sessionCols+`)
        select $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
        where not exists (
            select 1 from reconciliation_sessions
            where bank_account_id = $3 and status = 'in_progress'
        )
    `, sessionArgs(sess)...)
    if err != nil { return ledger.ReconciliationSession{}, err }
    if ct.RowsAffected() == 0 { return ledger.ReconciliationSession{}, errs.ErrSessionActive }
    return sess, nil
}

// GetSession fetches a session by id for a user.
func (s *Store) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (ledger.ReconciliationSession, error) {
    sess, err := scanSession(s.pool.QueryRow(ctx, `
        select `+sessionCols+` from reconciliation_sessions
        where id = $1 and user_id = $2
    `, sessionID, userID))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.ReconciliationSession{}, errs.ErrNotFound }
    if err != nil { return ledger.ReconciliationSession{}, err }
    return sess, nil
}

// ActiveSession returns the in_progress session of a bank account, if one
// exists.
func (s *Store) ActiveSession(ctx context.Context, userID, bankAccountID uuid.UUID) (ledger.ReconciliationSession, bool, error) {
    sess, err := scanSession(s.pool.QueryRow(ctx, `
        select `+sessionCols+` from reconciliation_sessions
        where user_id = $1 and bank_account_id = $2 and status = 'in_progress'
    `, userID, bankAccountID))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.ReconciliationSession{}, false, nil }
    if err != nil { return ledger.ReconciliationSession{}, false, err }
    return sess, true, nil
}

// UpdateSession rewrites the session row.
func (s *Store) UpdateSession(ctx context.Context, sess ledger.ReconciliationSession) (ledger.ReconciliationSession, error) {
    args := sessionArgs(sess)
    ct, err := s.pool.Exec(ctx, `
        update reconciliation_sessions
        set range_start=$4, range_end=$5, starting_minor=$6, ending_minor=$7, statement_minor=$8, currency=$9, status=$10
        where id=$1 and user_id=$2
    `, args...)
    if err != nil { return ledger.ReconciliationSession{}, err }
    if ct.RowsAffected() == 0 { return ledger.ReconciliationSession{}, errs.ErrNotFound }
    return sess, nil
}

// CompleteSession applies the transaction updates, the session flip and the
// bank account stamp in one database transaction: all or nothing.
func (s *Store) CompleteSession(ctx context.Context, sess ledger.ReconciliationSession, txns []ledger.BankTransaction, lastReconciled time.Time) error {
    tx, err := s.pool.Begin(ctx)
    if err != nil { return err }
    defer func() { _ = tx.Rollback(ctx) }()
    if err := updateSessionTx(ctx, tx, sess); err != nil { return err }
    for _, t := range txns {
        if err := updateBankTxn(ctx, tx, t); err != nil { return err }
    }
    ct, err := tx.Exec(ctx, `
        update bank_accounts set last_reconciled=$1
        where id=$2 and user_id=$3
    `, lastReconciled, sess.BankAccountID, sess.UserID)
    if err != nil { return err }
    if ct.RowsAffected() == 0 { return errs.ErrNotFound }
    return tx.Commit(ctx)
}

// ReopenSession reverts the transaction updates and the session flip in one
// database transaction.
func (s *Store) ReopenSession(ctx context.Context, sess ledger.ReconciliationSession, txns []ledger.BankTransaction) error {
    tx, err := s.pool.Begin(ctx)
    if err != nil { return err }
    defer func() { _ = tx.Rollback(ctx) }()
    if err := updateSessionTx(ctx, tx, sess); err != nil { return err }
    for _, t := range txns {
        if err := updateBankTxn(ctx, tx, t); err != nil { return err }
    }
    return tx.Commit(ctx)
}

func updateSessionTx(ctx context.Context, tx pgx.Tx, sess ledger.ReconciliationSession) error {
    args := sessionArgs(sess)
    ct, err := tx.Exec(ctx, `
        update reconciliation_sessions
        set range_start=$4, range_end=$5, starting_minor=$6, ending_minor=$7, statement_minor=$8, currency=$9, status=$10
        where id=$1 and user_id=$2
    `, args...)
    if err != nil { return err }
    if ct.RowsAffected() == 0 { return errs.ErrNotFound }
    return nil
}

// --- Match groups ---

// CreateMatch inserts a match group. Transaction and entry ids live in array
// columns; groups are small so this stays simple.
func (s *Store) CreateMatch(ctx context.Context, m ledger.ReconciliationMatch) error {
    _, err := s.pool.Exec(ctx, `
        insert into reconciliation_matches (id, session_id, bank_transaction_ids, entry_ids)
        values ($1,$2,$3,$4)
    `, m.ID, m.SessionID, m.BankTransactionIDs, m.EntryIDs)
    return err
}

// DeleteMatches removes every match group recorded for a session.
func (s *Store) DeleteMatches(ctx context.Context, sessionID uuid.UUID) error {
    _, err := s.pool.Exec(ctx, `delete from reconciliation_matches where session_id = $1`, sessionID)
    return err
}

// MatchesBySession returns the match groups recorded for a session.
func (s *Store) MatchesBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]ledger.ReconciliationMatch, error) {
    if _, err := s.GetSession(ctx, userID, sessionID); err != nil { return nil, err }
    rows, err := s.pool.Query(ctx, `
        select id, session_id, bank_transaction_ids, entry_ids
        from reconciliation_matches
        where session_id = $1
        order by id asc
    `, sessionID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := make([]ledger.ReconciliationMatch, 0)
    for rows.Next() {
        var m ledger.ReconciliationMatch
        if err := rows.Scan(&m.ID, &m.SessionID, &m.BankTransactionIDs, &m.EntryIDs); err != nil { return nil, err }
        out = append(out, m)
    }
    return out, rows.Err()
}
