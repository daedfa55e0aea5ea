// Package report aggregates posted, non-deleted journal lines into trial
// balance, income statement and balance sheet views. Everything here is
// read-only; amounts are summed in minor units and never touch floats.
package report

import (
    "context"
    "sort"
    "time"

    "github.com/google/uuid"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
)

// Repo defines the reads the aggregator needs; it depends on the ledger store
// only, never on the other engines.
type Repo interface {
    ListAccounts(ctx context.Context, userID uuid.UUID) ([]ledger.Account, error)
    ListEntries(ctx context.Context, userID uuid.UUID) ([]ledger.JournalEntry, error)
}

// Row is one account line in a report.
type Row struct {
    AccountID   uuid.UUID
    Code        int
    Name        string
    Type        ledger.AccountType
    DebitMinor  int64
    CreditMinor int64
    // BalanceMinor is the sign-normalized net for statement views.
    BalanceMinor int64
}

// TrialBalance lists per-account debit/credit nets for a date range.
type TrialBalance struct {
    Currency         string
    Rows             []Row
    TotalDebitMinor  int64
    TotalCreditMinor int64
}

// IncomeStatement shows revenue and expenses sign-normalized so both display
// positive, with subtotals and a net income row.
type IncomeStatement struct {
    Currency          string
    Revenue           []Row
    Expenses          []Row
    TotalRevenueMinor int64
    TotalExpenseMinor int64
    NetIncomeMinor    int64
}

// BalanceSheet shows cumulative balances through a date, including a
// synthetic current-year-earnings equity row so the statement balances
// without a closing-entry process.
type BalanceSheet struct {
    AsOf                     time.Time
    Currency                 string
    Assets                   []Row
    Liabilities              []Row
    Equity                   []Row
    TotalAssetsMinor         int64
    TotalLiabilitiesMinor    int64
    TotalEquityMinor         int64
    CurrentYearEarningsMinor int64
}

// Balanced reports whether assets equal liabilities plus equity within the
// rounding tolerance. Callers must surface a violation, never mask it.
func (b BalanceSheet) Balanced() bool {
    diff := b.TotalAssetsMinor - (b.TotalLiabilitiesMinor + b.TotalEquityMinor)
    if diff < 0 {
        diff = -diff
    }
    return diff <= ledger.BalanceToleranceMinor
}

// Service exposes the read-only report operations.
type Service interface {
    TrialBalance(ctx context.Context, userID uuid.UUID, start, end *time.Time) (TrialBalance, error)
    IncomeStatement(ctx context.Context, userID uuid.UUID, start, end time.Time) (IncomeStatement, error)
    BalanceSheet(ctx context.Context, userID uuid.UUID, asOf time.Time) (BalanceSheet, error)
}

type service struct {
    repo Repo
}

func New(repo Repo) Service { return &service{repo: repo} }

// accumulate walks posted, non-deleted entries and nets debit/credit minor
// units per account for dates within [start, end] (nil bounds are open).
func (s *service) accumulate(ctx context.Context, userID uuid.UUID, start, end *time.Time) (map[uuid.UUID]*Row, string, error) {
    entries, err := s.repo.ListEntries(ctx, userID)
    if err != nil {
        return nil, "", err
    }
    nets := make(map[uuid.UUID]*Row)
    currency := ""
    for _, e := range entries {
        if !e.Posted || e.Deleted {
            continue
        }
        if start != nil && e.Date.Before(*start) {
            continue
        }
        if end != nil && e.Date.After(*end) {
            continue
        }
        if currency == "" {
            currency = e.Currency
        }
        for _, ln := range e.Lines {
            r, ok := nets[ln.AccountID]
            if !ok {
                r = &Row{AccountID: ln.AccountID}
                nets[ln.AccountID] = r
            }
            r.DebitMinor += ln.DebitMinor()
            r.CreditMinor += ln.CreditMinor()
        }
    }
    return nets, currency, nil
}

func (s *service) accountIndex(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
    accs, err := s.repo.ListAccounts(ctx, userID)
    if err != nil {
        return nil, err
    }
    idx := make(map[uuid.UUID]ledger.Account, len(accs))
    for _, a := range accs {
        idx[a.ID] = a
    }
    return idx, nil
}

func sortRows(rows []Row) {
    sort.Slice(rows, func(i, j int) bool {
        if rows[i].Code != rows[j].Code {
            return rows[i].Code < rows[j].Code
        }
        return rows[i].Name < rows[j].Name
    })
}

// TrialBalance nets debits against credits per account within the range.
// Accounts with no net activity are omitted.
func (s *service) TrialBalance(ctx context.Context, userID uuid.UUID, start, end *time.Time) (TrialBalance, error) {
    if userID == uuid.Nil {
        return TrialBalance{}, errs.ErrInvalid
    }
    nets, currency, err := s.accumulate(ctx, userID, start, end)
    if err != nil {
        return TrialBalance{}, err
    }
    idx, err := s.accountIndex(ctx, userID)
    if err != nil {
        return TrialBalance{}, err
    }
    tb := TrialBalance{Currency: currency}
    for id, r := range nets {
        if r.DebitMinor == 0 && r.CreditMinor == 0 {
            continue
        }
        acc := idx[id]
        row := *r
        row.Code = acc.Code
        row.Name = acc.Name
        row.Type = acc.Type
        // Present the net on the account's natural side.
        net := row.DebitMinor - row.CreditMinor
        if net >= 0 {
            row.DebitMinor, row.CreditMinor = net, 0
        } else {
            row.DebitMinor, row.CreditMinor = 0, -net
        }
        if row.DebitMinor == 0 && row.CreditMinor == 0 {
            continue
        }
        tb.TotalDebitMinor += row.DebitMinor
        tb.TotalCreditMinor += row.CreditMinor
        tb.Rows = append(tb.Rows, row)
    }
    sortRows(tb.Rows)
    return tb, nil
}

// IncomeStatement restricts to income-statement account types. Revenue-side
// rows report credit-debit, expense-side rows debit-credit, so both read as
// positive amounts; net income is revenue minus expenses.
func (s *service) IncomeStatement(ctx context.Context, userID uuid.UUID, start, end time.Time) (IncomeStatement, error) {
    if userID == uuid.Nil {
        return IncomeStatement{}, errs.ErrInvalid
    }
    nets, currency, err := s.accumulate(ctx, userID, &start, &end)
    if err != nil {
        return IncomeStatement{}, err
    }
    idx, err := s.accountIndex(ctx, userID)
    if err != nil {
        return IncomeStatement{}, err
    }
    is := IncomeStatement{Currency: currency}
    for id, r := range nets {
        acc, ok := idx[id]
        if !ok || !acc.Type.IncomeStatementType() {
            continue
        }
        row := Row{AccountID: id, Code: acc.Code, Name: acc.Name, Type: acc.Type,
            DebitMinor: r.DebitMinor, CreditMinor: r.CreditMinor}
        switch acc.Type {
        case ledger.AccountTypeRevenue, ledger.AccountTypeOtherIncome:
            row.BalanceMinor = r.CreditMinor - r.DebitMinor
            if row.BalanceMinor == 0 {
                continue
            }
            is.TotalRevenueMinor += row.BalanceMinor
            is.Revenue = append(is.Revenue, row)
        default:
            row.BalanceMinor = r.DebitMinor - r.CreditMinor
            if row.BalanceMinor == 0 {
                continue
            }
            is.TotalExpenseMinor += row.BalanceMinor
            is.Expenses = append(is.Expenses, row)
        }
    }
    sortRows(is.Revenue)
    sortRows(is.Expenses)
    is.NetIncomeMinor = is.TotalRevenueMinor - is.TotalExpenseMinor
    return is, nil
}

// BalanceSheet accumulates from inception through asOf. Assets report
// debit-credit, liabilities and equity credit-debit. Net income since
// inception is recomputed independently and inserted as a synthetic
// current-year-earnings equity row; zero-balance rows are dropped before
// totals.
func (s *service) BalanceSheet(ctx context.Context, userID uuid.UUID, asOf time.Time) (BalanceSheet, error) {
    if userID == uuid.Nil {
        return BalanceSheet{}, errs.ErrInvalid
    }
    nets, currency, err := s.accumulate(ctx, userID, nil, &asOf)
    if err != nil {
        return BalanceSheet{}, err
    }
    idx, err := s.accountIndex(ctx, userID)
    if err != nil {
        return BalanceSheet{}, err
    }
    bs := BalanceSheet{AsOf: asOf, Currency: currency}
    var earnings int64
    for id, r := range nets {
        acc, ok := idx[id]
        if !ok {
            continue
        }
        row := Row{AccountID: id, Code: acc.Code, Name: acc.Name, Type: acc.Type,
            DebitMinor: r.DebitMinor, CreditMinor: r.CreditMinor}
        switch acc.Type {
        case ledger.AccountTypeAsset:
            row.BalanceMinor = r.DebitMinor - r.CreditMinor
            if row.BalanceMinor == 0 {
                continue
            }
            bs.TotalAssetsMinor += row.BalanceMinor
            bs.Assets = append(bs.Assets, row)
        case ledger.AccountTypeLiability:
            row.BalanceMinor = r.CreditMinor - r.DebitMinor
            if row.BalanceMinor == 0 {
                continue
            }
            bs.TotalLiabilitiesMinor += row.BalanceMinor
            bs.Liabilities = append(bs.Liabilities, row)
        case ledger.AccountTypeEquity:
            row.BalanceMinor = r.CreditMinor - r.DebitMinor
            if row.BalanceMinor == 0 {
                continue
            }
            bs.TotalEquityMinor += row.BalanceMinor
            bs.Equity = append(bs.Equity, row)
        case ledger.AccountTypeRevenue, ledger.AccountTypeOtherIncome:
            earnings += r.CreditMinor - r.DebitMinor
        case ledger.AccountTypeExpense, ledger.AccountTypeOtherExpense:
            earnings -= r.DebitMinor - r.CreditMinor
        }
    }
    sortRows(bs.Assets)
    sortRows(bs.Liabilities)
    sortRows(bs.Equity)
    bs.CurrentYearEarningsMinor = earnings
    if earnings != 0 {
        bs.Equity = append(bs.Equity, Row{Name: "Current Year Earnings", Type: ledger.AccountTypeEquity, BalanceMinor: earnings})
        bs.TotalEquityMinor += earnings
    }
    return bs, nil
}
