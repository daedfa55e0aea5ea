package httpapi

import (
    "time"

    "github.com/google/uuid"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/ledger"
    "github.com/finbooks/ledger/internal/service/report"
)

// Accounts

type postAccountRequest struct {
    UserID   uuid.UUID          `json:"user_id"`
    Code     int                `json:"code"`
    Name     string             `json:"name"`
    Type     ledger.AccountType `json:"type"`
    ParentID *uuid.UUID         `json:"parent_id,omitempty"`
}

type patchAccountRequest struct {
    Name     *string    `json:"name,omitempty"`
    ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

type accountResponse struct {
    ID       uuid.UUID          `json:"id"`
    UserID   uuid.UUID          `json:"user_id"`
    Code     int                `json:"code"`
    Name     string             `json:"name"`
    Type     ledger.AccountType `json:"type"`
    ParentID *uuid.UUID         `json:"parent_id,omitempty"`
    Active   bool               `json:"active"`
}

func toAccountResponse(a ledger.Account) accountResponse {
    return accountResponse{ID: a.ID, UserID: a.UserID, Code: a.Code, Name: a.Name, Type: a.Type, ParentID: a.ParentID, Active: a.Active}
}

// Entries

type postEntryRequest struct {
    UserID   uuid.UUID          `json:"user_id"`
    Date     time.Time          `json:"date"`
    Currency string             `json:"currency"`
    Memo     string             `json:"memo"`
    Source   ledger.EntrySource `json:"source,omitempty"`
    Lines    []postEntryLine    `json:"lines"`
}

type postEntryLine struct {
    AccountID   uuid.UUID `json:"account_id"`
    DebitMinor  int64     `json:"debit_minor"`
    CreditMinor int64     `json:"credit_minor"`
    Memo        string    `json:"memo,omitempty"`
}

type patchEntryRequest struct {
    Date  *time.Time       `json:"date,omitempty"`
    Memo  *string          `json:"memo,omitempty"`
    Lines *[]postEntryLine `json:"lines,omitempty"`
}

type reverseEntryRequest struct {
    UserID  uuid.UUID  `json:"user_id"`
    EntryID uuid.UUID  `json:"entry_id"`
    Date    *time.Time `json:"date,omitempty"`
}

type entryResponse struct {
    ID       uuid.UUID          `json:"id"`
    UserID   uuid.UUID          `json:"user_id"`
    Date     time.Time          `json:"date"`
    Currency string             `json:"currency"`
    Memo     string             `json:"memo"`
    Source   ledger.EntrySource `json:"source"`
    Posted   bool               `json:"posted"`
    Deleted  bool               `json:"deleted"`
    Lines    []lineResponse     `json:"lines"`
}

type lineResponse struct {
    ID          uuid.UUID `json:"id"`
    AccountID   uuid.UUID `json:"account_id"`
    DebitMinor  int64     `json:"debit_minor"`
    CreditMinor int64     `json:"credit_minor"`
    Debit       string    `json:"debit"`
    Credit      string    `json:"credit"`
    Memo        string    `json:"memo,omitempty"`
}

func toEntryResponse(e ledger.JournalEntry) entryResponse {
    out := entryResponse{
        ID: e.ID, UserID: e.UserID, Date: e.Date, Currency: e.Currency,
        Memo: e.Memo, Source: e.Source, Posted: e.Posted, Deleted: e.Deleted,
        Lines: make([]lineResponse, 0, len(e.Lines)),
    }
    for _, ln := range e.Lines {
        d, c := ln.DebitMinor(), ln.CreditMinor()
        out.Lines = append(out.Lines, lineResponse{
            ID: ln.ID, AccountID: ln.AccountID,
            DebitMinor: d, CreditMinor: c,
            Debit: errs.FormatMinor(d), Credit: errs.FormatMinor(c),
            Memo: ln.Memo,
        })
    }
    return out
}

// Recurring templates

type postTemplateRequest struct {
    UserID        uuid.UUID        `json:"user_id"`
    EntryID       uuid.UUID        `json:"entry_id"`
    Frequency     ledger.Frequency `json:"frequency"`
    AnchorDay     int              `json:"anchor_day,omitempty"`
    AnchorWeekday int              `json:"anchor_weekday,omitempty"`
    StartDate     time.Time        `json:"start_date"`
    EndDate       *time.Time       `json:"end_date,omitempty"`
}

type templateResponse struct {
    ID            uuid.UUID        `json:"id"`
    UserID        uuid.UUID        `json:"user_id"`
    EntryID       uuid.UUID        `json:"entry_id"`
    Frequency     ledger.Frequency `json:"frequency"`
    AnchorDay     int              `json:"anchor_day"`
    AnchorWeekday int              `json:"anchor_weekday"`
    StartDate     time.Time        `json:"start_date"`
    EndDate       *time.Time       `json:"end_date,omitempty"`
    LastGenerated *time.Time       `json:"last_generated,omitempty"`
    Active        bool             `json:"active"`
}

func toTemplateResponse(t ledger.RecurringTemplate) templateResponse {
    return templateResponse{
        ID: t.ID, UserID: t.UserID, EntryID: t.EntryID, Frequency: t.Frequency,
        AnchorDay: t.AnchorDay, AnchorWeekday: int(t.AnchorWeekday),
        StartDate: t.StartDate, EndDate: t.EndDate, LastGenerated: t.LastGenerated,
        Active: t.Active,
    }
}

type generationPassResponse struct {
    Generated int                   `json:"generated"`
    Skipped   int                   `json:"skipped"`
    Errors    []generationPassError `json:"errors"`
}

type generationPassError struct {
    TemplateID uuid.UUID `json:"template_id"`
    Error      string    `json:"error"`
}

// Banking

type postBankAccountRequest struct {
    UserID    uuid.UUID `json:"user_id"`
    AccountID uuid.UUID `json:"account_id"`
    Name      string    `json:"name"`
}

type bankAccountResponse struct {
    ID             uuid.UUID  `json:"id"`
    UserID         uuid.UUID  `json:"user_id"`
    AccountID      uuid.UUID  `json:"account_id"`
    Name           string     `json:"name"`
    LastReconciled *time.Time `json:"last_reconciled,omitempty"`
}

func toBankAccountResponse(ba ledger.BankAccount) bankAccountResponse {
    return bankAccountResponse{ID: ba.ID, UserID: ba.UserID, AccountID: ba.AccountID, Name: ba.Name, LastReconciled: ba.LastReconciled}
}

type postBankTransactionRequest struct {
    UserID        uuid.UUID                   `json:"user_id"`
    BankAccountID uuid.UUID                   `json:"bank_account_id"`
    Date          time.Time                   `json:"date"`
    Description   string                      `json:"description"`
    AmountMinor   int64                       `json:"amount_minor"`
    Currency      string                      `json:"currency"`
    Direction     ledger.TransactionDirection `json:"direction"`
}

type bankTransactionResponse struct {
    ID            uuid.UUID                   `json:"id"`
    BankAccountID uuid.UUID                   `json:"bank_account_id"`
    Date          time.Time                   `json:"date"`
    Description   string                      `json:"description"`
    AmountMinor   int64                       `json:"amount_minor"`
    Amount        string                      `json:"amount"`
    Currency      string                      `json:"currency"`
    Direction     ledger.TransactionDirection `json:"direction"`
    Status        ledger.TransactionStatus    `json:"status"`
    EntryID       *uuid.UUID                  `json:"entry_id,omitempty"`
    SessionID     *uuid.UUID                  `json:"session_id,omitempty"`
}

func toBankTransactionResponse(t ledger.BankTransaction) bankTransactionResponse {
    u, _ := t.Amount.MinorUnits()
    return bankTransactionResponse{
        ID: t.ID, BankAccountID: t.BankAccountID, Date: t.Date, Description: t.Description,
        AmountMinor: u, Amount: errs.FormatMinor(u), Currency: t.Amount.Curr().Code(),
        Direction: t.Direction, Status: t.Status, EntryID: t.EntryID, SessionID: t.SessionID,
    }
}

// Reconciliation sessions

type startSessionRequest struct {
    UserID                uuid.UUID `json:"user_id"`
    BankAccountID         uuid.UUID `json:"bank_account_id"`
    RangeStart            time.Time `json:"range_start"`
    RangeEnd              time.Time `json:"range_end"`
    StatementBalanceMinor int64     `json:"statement_balance_minor"`
    Currency              string    `json:"currency"`
}

type patchSessionRequest struct {
    RangeStart            *time.Time `json:"range_start,omitempty"`
    RangeEnd              *time.Time `json:"range_end,omitempty"`
    StatementBalanceMinor *int64     `json:"statement_balance_minor,omitempty"`
}

type sessionResponse struct {
    ID                    uuid.UUID            `json:"id"`
    UserID                uuid.UUID            `json:"user_id"`
    BankAccountID         uuid.UUID            `json:"bank_account_id"`
    RangeStart            time.Time            `json:"range_start"`
    RangeEnd              time.Time            `json:"range_end"`
    StartingBalanceMinor  int64                `json:"starting_balance_minor"`
    EndingBalanceMinor    int64                `json:"ending_balance_minor"`
    StatementBalanceMinor int64                `json:"statement_balance_minor"`
    DifferenceMinor       int64                `json:"difference_minor"`
    Currency              string               `json:"currency"`
    Status                ledger.SessionStatus `json:"status"`
}

func toSessionResponse(s ledger.ReconciliationSession) sessionResponse {
    starting, _ := s.StartingBalance.MinorUnits()
    ending, _ := s.EndingBalance.MinorUnits()
    statement, _ := s.StatementBalance.MinorUnits()
    return sessionResponse{
        ID: s.ID, UserID: s.UserID, BankAccountID: s.BankAccountID,
        RangeStart: s.RangeStart, RangeEnd: s.RangeEnd,
        StartingBalanceMinor: starting, EndingBalanceMinor: ending,
        StatementBalanceMinor: statement, DifferenceMinor: statement - ending,
        Currency: s.StatementBalance.Curr().Code(), Status: s.Status,
    }
}

type completeSessionRequest struct {
    UserID  uuid.UUID      `json:"user_id"`
    Matches []matchRequest `json:"matches"`
}

type matchRequest struct {
    BankTransactionIDs []uuid.UUID `json:"bank_transaction_ids"`
    EntryIDs           []uuid.UUID `json:"entry_ids"`
}

type matchResponse struct {
    ID                 uuid.UUID   `json:"id"`
    SessionID          uuid.UUID   `json:"session_id"`
    BankTransactionIDs []uuid.UUID `json:"bank_transaction_ids"`
    EntryIDs           []uuid.UUID `json:"entry_ids"`
}

// Reports

type reportRow struct {
    AccountID    uuid.UUID          `json:"account_id"`
    Code         int                `json:"code"`
    Name         string             `json:"name"`
    Type         ledger.AccountType `json:"type"`
    DebitMinor   int64              `json:"debit_minor"`
    CreditMinor  int64              `json:"credit_minor"`
    BalanceMinor int64              `json:"balance_minor"`
    Balance      string             `json:"balance"`
}

func toReportRows(rows []report.Row) []reportRow {
    out := make([]reportRow, 0, len(rows))
    for _, r := range rows {
        out = append(out, reportRow{
            AccountID: r.AccountID, Code: r.Code, Name: r.Name, Type: r.Type,
            DebitMinor: r.DebitMinor, CreditMinor: r.CreditMinor,
            BalanceMinor: r.BalanceMinor, Balance: errs.FormatMinor(r.BalanceMinor),
        })
    }
    return out
}

type trialBalanceResponse struct {
    Currency         string      `json:"currency"`
    Rows             []reportRow `json:"rows"`
    TotalDebitMinor  int64       `json:"total_debit_minor"`
    TotalCreditMinor int64       `json:"total_credit_minor"`
}

type incomeStatementResponse struct {
    Currency          string      `json:"currency"`
    Revenue           []reportRow `json:"revenue"`
    Expenses          []reportRow `json:"expenses"`
    TotalRevenueMinor int64       `json:"total_revenue_minor"`
    TotalExpenseMinor int64       `json:"total_expense_minor"`
    NetIncomeMinor    int64       `json:"net_income_minor"`
    NetIncome         string      `json:"net_income"`
}

type balanceSheetResponse struct {
    AsOf                  time.Time   `json:"as_of"`
    Currency              string      `json:"currency"`
    Assets                []reportRow `json:"assets"`
    Liabilities           []reportRow `json:"liabilities"`
    Equity                []reportRow `json:"equity"`
    TotalAssetsMinor      int64       `json:"total_assets_minor"`
    TotalLiabilitiesMinor int64       `json:"total_liabilities_minor"`
    TotalEquityMinor      int64       `json:"total_equity_minor"`
    Balanced              bool        `json:"balanced"`
}

// Queries stashed in the request context by validation middleware.

type listQuery struct {
    UserID uuid.UUID
}

type reportQuery struct {
    UserID uuid.UUID
    Start  *time.Time
    End    *time.Time
}
