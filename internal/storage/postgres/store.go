package postgres

// Package postgres provides a pgx-backed storage implementation that satisfies
// the repository and writer interfaces used by the services.
//
// It is intentionally small and explicit. Migrations that create the expected
// schema live under db/migrations. This package focuses on mapping between the
// domain entities and SQL rows and running the necessary statements and
// transactions. The operations the design requires to be atomic
// (MarkEntryPosted, CreateGeneratedEntry, CompleteSession, ReopenSession) run
// inside a single database transaction here.

import (
    "context"
    "errors"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
    pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
    cfg, err := pgxpool.ParseConfig(dsn)
    if err != nil { return nil, err }
    pool, err := pgxpool.NewWithConfig(ctx, cfg)
    if err != nil { return nil, err }
    if err := pool.Ping(ctx); err != nil { pool.Close(); return nil, err }
    return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() { if s.pool != nil { s.pool.Close() } }

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// SeedDev inserts a demo user with a minimal chart of accounts for local
// testing. Fresh UUIDs every run.
func (s *Store) SeedDev(ctx context.Context) (ledger.User, []ledger.Account, error) {
    tx, err := s.pool.Begin(ctx)
    if err != nil { return ledger.User{}, nil, err }
    defer func() { _ = tx.Rollback(ctx) }()
    user := ledger.User{ID: uuid.New()}
    if _, err := tx.Exec(ctx, `insert into users (id, email) values ($1, null)`, user.ID); err != nil { return ledger.User{}, nil, err }
    accs := []ledger.Account{
        {ID: uuid.New(), UserID: user.ID, Code: 1000, Name: "Cash", Type: ledger.AccountTypeAsset, Active: true},
        {ID: uuid.New(), UserID: user.ID, Code: 2000, Name: "Accounts Payable", Type: ledger.AccountTypeLiability, Active: true},
        {ID: uuid.New(), UserID: user.ID, Code: 3000, Name: "Owner Equity", Type: ledger.AccountTypeEquity, Active: true},
        {ID: uuid.New(), UserID: user.ID, Code: 4000, Name: "Revenue", Type: ledger.AccountTypeRevenue, Active: true},
        {ID: uuid.New(), UserID: user.ID, Code: 5000, Name: "Expenses", Type: ledger.AccountTypeExpense, Active: true},
    }
    for _, a := range accs {
        if _, err := tx.Exec(ctx, `
            insert into accounts (id, user_id, code, name, type, parent_id, active)
            values ($1,$2,$3,$4,$5,$6,$7)
        `, a.ID, a.UserID, a.Code, a.Name, a.Type, a.ParentID, a.Active); err != nil {
            return ledger.User{}, nil, err
        }
    }
    if err := tx.Commit(ctx); err != nil { return ledger.User{}, nil, err }
    return user, accs, nil
}

// --- Account reads ---

const accountCols = `id, user_id, code, name, type, parent_id, active`

func scanAccount(row pgx.Row) (ledger.Account, error) {
    var a ledger.Account
    err := row.Scan(&a.ID, &a.UserID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Active)
    return a, err
}

// AccountsByIDs returns accounts for a user filtered by IDs.
func (s *Store) AccountsByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
    if len(ids) == 0 { return map[uuid.UUID]ledger.Account{}, nil }
    rows, err := s.pool.Query(ctx, `
        select `+accountCols+` from accounts
        where user_id = $1 and id = any($2)
    `, userID, ids)
    if err != nil { return nil, err }
    defer rows.Close()
    out := make(map[uuid.UUID]ledger.Account)
    for rows.Next() {
        a, err := scanAccount(rows)
        if err != nil { return nil, err }
        out[a.ID] = a
    }
    return out, rows.Err()
}

// ListAccounts returns all accounts for a user ordered by code.
func (s *Store) ListAccounts(ctx context.Context, userID uuid.UUID) ([]ledger.Account, error) {
    rows, err := s.pool.Query(ctx, `
        select `+accountCols+` from accounts
        where user_id = $1
        order by code asc
    `, userID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := make([]ledger.Account, 0)
    for rows.Next() {
        a, err := scanAccount(rows)
        if err != nil { return nil, err }
        out = append(out, a)
    }
    return out, rows.Err()
}

// GetAccount fetches a single account by id for a user.
func (s *Store) GetAccount(ctx context.Context, userID, accountID uuid.UUID) (ledger.Account, error) {
    a, err := scanAccount(s.pool.QueryRow(ctx, `
        select `+accountCols+` from accounts
        where id = $1 and user_id = $2
    `, accountID, userID))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Account{}, errs.ErrNotFound }
    if err != nil { return ledger.Account{}, err }
    return a, nil
}

// --- Account writes ---

// CreateAccount inserts an account row.
func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
    _, err := s.pool.Exec(ctx, `
        insert into accounts (id, user_id, code, name, type, parent_id, active)
        values ($1,$2,$3,$4,$5,$6,$7)
    `, a.ID, a.UserID, a.Code, a.Name, a.Type, a.ParentID, a.Active)
    if err != nil { return ledger.Account{}, err }
    return a, nil
}

// UpdateAccount updates mutable fields (name, parent, active).
func (s *Store) UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
    ct, err := s.pool.Exec(ctx, `
        update accounts
        set name=$1, parent_id=$2, active=$3
        where id=$4 and user_id=$5
    `, a.Name, a.ParentID, a.Active, a.ID, a.UserID)
    if err != nil { return ledger.Account{}, err }
    if ct.RowsAffected() == 0 { return ledger.Account{}, errs.ErrNotFound }
    return a, nil
}

// --- Entry reads ---

// ListEntries returns entries for a user with lines populated.
func (s *Store) ListEntries(ctx context.Context, userID uuid.UUID) ([]ledger.JournalEntry, error) {
    rows, err := s.pool.Query(ctx, `
        select id, user_id, date, currency, memo, source, posted, deleted
        from entries
        where user_id = $1
        order by date asc, id asc
    `, userID)
    if err != nil { return nil, err }
    defer rows.Close()
    entries := make([]ledger.JournalEntry, 0)
    ids := make([]uuid.UUID, 0)
    for rows.Next() {
        var e ledger.JournalEntry
        if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.Currency, &e.Memo, &e.Source, &e.Posted, &e.Deleted); err != nil { return nil, err }
        entries = append(entries, e)
        ids = append(ids, e.ID)
    }
    if err := rows.Err(); err != nil { return nil, err }
    if len(entries) == 0 { return entries, nil }
    lineRows, err := s.pool.Query(ctx, `
        select id, entry_id, account_id, debit_minor, credit_minor, memo
        from entry_lines
        where entry_id = any($1)
        order by id asc
    `, ids)
    if err != nil { return nil, err }
    defer lineRows.Close()
    idx := make(map[uuid.UUID]*ledger.JournalEntry, len(entries))
    for i := range entries { idx[entries[i].ID] = &entries[i] }
    for lineRows.Next() {
        var id, entryID, accountID uuid.UUID
        var debitMinor, creditMinor int64
        var memo string
        if err := lineRows.Scan(&id, &entryID, &accountID, &debitMinor, &creditMinor, &memo); err != nil { return nil, err }
        e := idx[entryID]
        if e == nil { continue }
        d, _ := money.NewAmountFromMinorUnits(e.Currency, debitMinor)
        c, _ := money.NewAmountFromMinorUnits(e.Currency, creditMinor)
        e.Lines = append(e.Lines, ledger.JournalLine{ID: id, EntryID: entryID, AccountID: accountID, Debit: d, Credit: c, Memo: memo})
    }
    return entries, lineRows.Err()
}

// GetEntry returns an entry by id for a user with lines populated.
func (s *Store) GetEntry(ctx context.Context, userID, entryID uuid.UUID) (ledger.JournalEntry, error) {
    var e ledger.JournalEntry
    err := s.pool.QueryRow(ctx, `
        select id, user_id, date, currency, memo, source, posted, deleted
        from entries
        where id = $1 and user_id = $2
    `, entryID, userID).Scan(&e.ID, &e.UserID, &e.Date, &e.Currency, &e.Memo, &e.Source, &e.Posted, &e.Deleted)
    if errors.Is(err, pgx.ErrNoRows) { return ledger.JournalEntry{}, errs.ErrNotFound }
    if err != nil { return ledger.JournalEntry{}, err }
    rows, err := s.pool.Query(ctx, `
        select id, account_id, debit_minor, credit_minor, memo
        from entry_lines
        where entry_id = $1
        order by id asc
    `, entryID)
    if err != nil { return ledger.JournalEntry{}, err }
    defer rows.Close()
    for rows.Next() {
        var id, accountID uuid.UUID
        var debitMinor, creditMinor int64
        var memo string
        if err := rows.Scan(&id, &accountID, &debitMinor, &creditMinor, &memo); err != nil { return ledger.JournalEntry{}, err }
        d, _ := money.NewAmountFromMinorUnits(e.Currency, debitMinor)
        c, _ := money.NewAmountFromMinorUnits(e.Currency, creditMinor)
        e.Lines = append(e.Lines, ledger.JournalLine{ID: id, EntryID: entryID, AccountID: accountID, Debit: d, Credit: c, Memo: memo})
    }
    if err := rows.Err(); err != nil { return ledger.JournalEntry{}, err }
    return e, nil
}

// --- Entry writes ---

// CreateJournalEntry inserts an entry and its lines in a transaction.
func (s *Store) CreateJournalEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
    tx, err := s.pool.Begin(ctx)
    if err != nil { return ledger.JournalEntry{}, err }
    if err := insertEntry(ctx, tx, entry); err != nil { _ = tx.Rollback(ctx); return ledger.JournalEntry{}, err }
    if err := tx.Commit(ctx); err != nil { return ledger.JournalEntry{}, err }
    return entry, nil
}

// UpdateJournalEntry rewrites the header and replaces the line set.
func (s *Store) UpdateJournalEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
    tx, err := s.pool.Begin(ctx)
    if err != nil { return ledger.JournalEntry{}, err }
    defer func() { _ = tx.Rollback(ctx) }()
    ct, err := tx.Exec(ctx, `
        update entries
        set date=$1, memo=$2, source=$3, posted=$4, deleted=$5
        where id=$6 and user_id=$7
    `, entry.Date, entry.Memo, entry.Source, entry.Posted, entry.Deleted, entry.ID, entry.UserID)
    if err != nil { return ledger.JournalEntry{}, err }
    if ct.RowsAffected() == 0 { return ledger.JournalEntry{}, errs.ErrNotFound }
    if _, err := tx.Exec(ctx, `delete from entry_lines where entry_id = $1`, entry.ID); err != nil { return ledger.JournalEntry{}, err }
    if err := insertLines(ctx, tx, entry); err != nil { return ledger.JournalEntry{}, err }
    if err := tx.Commit(ctx); err != nil { return ledger.JournalEntry{}, err }
    return entry, nil
}

// MarkEntryPosted flips posted=true atomically. The conditional update makes
// a racing second post lose cleanly; the follow-up read discriminates why.
func (s *Store) MarkEntryPosted(ctx context.Context, userID, entryID uuid.UUID) error {
    ct, err := s.pool.Exec(ctx, `
        update entries set posted=true
        where id=$1 and user_id=$2 and posted=false and deleted=false
    `, entryID, userID)
    if err != nil { return err }
    if ct.RowsAffected() == 1 { return nil }
    var posted, deleted bool
    err = s.pool.QueryRow(ctx, `
        select posted, deleted from entries where id=$1 and user_id=$2
    `, entryID, userID).Scan(&posted, &deleted)
    if errors.Is(err, pgx.ErrNoRows) { return errs.ErrNotFound }
    if err != nil { return err }
    if deleted { return errs.ErrEntryDeleted }
    if posted { return errs.ErrAlreadyPosted }
    return errs.ErrNotFound
}

// MarkEntryDeleted soft-deletes an unposted entry.
func (s *Store) MarkEntryDeleted(ctx context.Context, userID, entryID uuid.UUID) error {
    ct, err := s.pool.Exec(ctx, `
        update entries set deleted=true
        where id=$1 and user_id=$2 and posted=false
    `, entryID, userID)
    if err != nil { return err }
    if ct.RowsAffected() == 1 { return nil }
    var posted bool
    err = s.pool.QueryRow(ctx, `
        select posted from entries where id=$1 and user_id=$2
    `, entryID, userID).Scan(&posted)
    if errors.Is(err, pgx.ErrNoRows) { return errs.ErrNotFound }
    if err != nil { return err }
    if posted { return errs.ErrPostedImmutable }
    return errs.ErrNotFound
}

// insertEntry inserts the entry header and its lines within the executor.
func insertEntry(ctx context.Context, tx pgx.Tx, e ledger.JournalEntry) error {
    if _, err := tx.Exec(ctx, `
        insert into entries (id, user_id, date, currency, memo, source, posted, deleted)
        values ($1,$2,$3,$4,$5,$6,$7,$8)
    `, e.ID, e.UserID, e.Date, e.Currency, e.Memo, e.Source, e.Posted, e.Deleted); err != nil {
        return err
    }
    return insertLines(ctx, tx, e)
}

func insertLines(ctx context.Context, tx pgx.Tx, e ledger.JournalEntry) error {
    for _, ln := range e.Lines {
        if _, err := tx.Exec(ctx, `
            insert into entry_lines (id, entry_id, account_id, debit_minor, credit_minor, memo)
            values ($1,$2,$3,$4,$5,$6)
        `, ln.ID, e.ID, ln.AccountID, ln.DebitMinor(), ln.CreditMinor(), ln.Memo); err != nil {
            return err
        }
    }
    return nil
}
