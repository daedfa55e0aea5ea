package ledger

import (
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
)

// BalanceToleranceMinor is the rounding tolerance, in minor units, applied when
// checking that an entry's debits equal its credits. One minor unit (0.01 for
// two-decimal currencies) absorbs legitimate per-line rounding without letting
// genuine imbalances through.
const BalanceToleranceMinor int64 = 1

// AccountType enumerates the broad classification of an account in the ledger.
type AccountType string

const (
	// AccountTypeAsset increases on the debit side and holds resources owned by a user.
	AccountTypeAsset AccountType = "asset"
	// AccountTypeLiability increases on the credit side and tracks obligations.
	AccountTypeLiability AccountType = "liability"
	// AccountTypeEquity captures the owner's residual interest in the entity.
	AccountTypeEquity AccountType = "equity"
	// AccountTypeRevenue represents inflows that increase equity.
	AccountTypeRevenue AccountType = "revenue"
	// AccountTypeExpense represents outflows that decrease equity.
	AccountTypeExpense AccountType = "expense"
	// AccountTypeOtherIncome covers non-operating inflows (interest, refunds).
	AccountTypeOtherIncome AccountType = "other_income"
	// AccountTypeOtherExpense covers non-operating outflows.
	AccountTypeOtherExpense AccountType = "other_expense"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
    switch t {
    case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
        AccountTypeRevenue, AccountTypeExpense, AccountTypeOtherIncome, AccountTypeOtherExpense:
        return true
    }
    return false
}

// DebitNormal reports whether accounts of this type carry a debit-side balance.
func (t AccountType) DebitNormal() bool {
    return t == AccountTypeAsset || t == AccountTypeExpense || t == AccountTypeOtherExpense
}

// IncomeStatementType reports whether the type belongs on the income statement.
func (t AccountType) IncomeStatementType() bool {
    switch t {
    case AccountTypeRevenue, AccountTypeExpense, AccountTypeOtherIncome, AccountTypeOtherExpense:
        return true
    }
    return false
}

// EntrySource tags where a journal entry originated.
type EntrySource string

const (
    SourceManual         EntrySource = "manual"
    SourceBill           EntrySource = "bill"
    SourceRecurring      EntrySource = "recurring"
    SourceReconciliation EntrySource = "reconciliation_adjustment"
)

// User captures the owner of ledger data. Identity is supplied by an external
// provider; the core only uses it for ownership filtering.
type User struct {
	ID    uuid.UUID
	Email *string
}

// Account is a node in a user's chart-of-accounts tree.
type Account struct {
    ID     uuid.UUID
    UserID uuid.UUID
    // Code is the numeric position in the chart (1000 Cash, 4000 Revenue, ...).
    Code int
    Name string
    Type AccountType
    // ParentID points at the enclosing account, if any. The parent must share
    // the type, carry a strictly lower code, and the link may not form a cycle.
    ParentID *uuid.UUID
    // Active indicates whether the account is active (soft-delete when false).
    // Accounts with journal activity are never physically removed.
    Active bool
}

// JournalEntry is a single transaction header owning an ordered set of lines.
type JournalEntry struct {
    ID       uuid.UUID
    UserID   uuid.UUID
    Date     time.Time
    Currency string
    Memo     string
    Source   EntrySource
    // Posted marks the entry as finalized. Posting is terminal: a posted entry
    // can only be corrected by a new offsetting entry, never edited or deleted.
    Posted  bool
    Deleted bool
    Lines   []JournalLine
}

// Totals sums the entry's lines in minor units.
func (e JournalEntry) Totals() (debitMinor, creditMinor int64) {
    for _, ln := range e.Lines {
        debitMinor += ln.DebitMinor()
        creditMinor += ln.CreditMinor()
    }
    return debitMinor, creditMinor
}

// Balanced reports whether debits equal credits within the rounding tolerance.
func (e JournalEntry) Balanced() bool {
    d, c := e.Totals()
    diff := d - c
    if diff < 0 {
        diff = -diff
    }
    return diff <= BalanceToleranceMinor
}

// JournalLine is one debit or credit leg of an entry. Exactly one of
// Debit/Credit is non-zero; both are non-negative.
type JournalLine struct {
    ID        uuid.UUID
    EntryID   uuid.UUID
    AccountID uuid.UUID
    Debit     money.Amount
    Credit    money.Amount
    Memo      string
}

// DebitMinor returns the debit leg in minor units.
func (l JournalLine) DebitMinor() int64 { u, _ := l.Debit.MinorUnits(); return u }

// CreditMinor returns the credit leg in minor units.
func (l JournalLine) CreditMinor() int64 { u, _ := l.Credit.MinorUnits(); return u }

// Frequency is the cadence of a recurring template.
type Frequency string

const (
    FrequencyWeekly    Frequency = "weekly"
    FrequencyMonthly   Frequency = "monthly"
    FrequencyQuarterly Frequency = "quarterly"
    FrequencyYearly    Frequency = "yearly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
    switch f {
    case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
        return true
    }
    return false
}

// RecurringTemplate binds a source journal entry to a generation schedule.
// Templates are never deleted, only deactivated.
type RecurringTemplate struct {
    ID     uuid.UUID
    UserID uuid.UUID
    // EntryID is the pattern entry cloned on each occurrence.
    EntryID   uuid.UUID
    Frequency Frequency
    // AnchorDay is the day-of-month for monthly/quarterly/yearly templates.
    // 0 or 31 means "last day of the month".
    AnchorDay int
    // AnchorWeekday applies to weekly templates only.
    AnchorWeekday time.Weekday
    StartDate     time.Time
    EndDate       *time.Time
    LastGenerated *time.Time
    Active        bool
}

// BankAccount links external bank metadata 1:1 to a ledger account (the book side).
type BankAccount struct {
    ID             uuid.UUID
    UserID         uuid.UUID
    AccountID      uuid.UUID
    Name           string
    LastReconciled *time.Time
}

// TransactionDirection is the book-side direction of a bank transaction:
// a debit increases the linked asset account, a credit decreases it.
type TransactionDirection string

const (
    DirectionDebit  TransactionDirection = "debit"
    DirectionCredit TransactionDirection = "credit"
)

// TransactionStatus tracks a bank transaction through matching. Status moves
// forward (unmatched -> matched -> reconciled) except on session reopen, which
// resets reconciled back to unmatched.
type TransactionStatus string

const (
    StatusUnmatched  TransactionStatus = "unmatched"
    StatusMatched    TransactionStatus = "matched"
    StatusReconciled TransactionStatus = "reconciled"
)

// BankTransaction is one imported bank-side movement.
type BankTransaction struct {
    ID            uuid.UUID
    UserID        uuid.UUID
    BankAccountID uuid.UUID
    Date          time.Time
    Description   string
    Amount        money.Amount
    Direction     TransactionDirection
    Status        TransactionStatus
    // EntryID links the matched ledger entry, when one is known.
    EntryID *uuid.UUID
    // SessionID records the reconciliation session that marked it reconciled.
    SessionID *uuid.UUID
    Deleted   bool
}

// SignedMinor returns the transaction amount in minor units, positive for
// debits (inflows to the book asset account) and negative for credits.
func (t BankTransaction) SignedMinor() int64 {
    u, _ := t.Amount.MinorUnits()
    if t.Direction == DirectionCredit {
        return -u
    }
    return u
}

// SessionStatus is the lifecycle state of a reconciliation session.
type SessionStatus string

const (
    SessionInProgress SessionStatus = "in_progress"
    SessionCompleted  SessionStatus = "completed"
)

// ReconciliationSession is the unit of work for reconciling one bank account
// over one date range. At most one in_progress session may exist per bank
// account; the store enforces this.
type ReconciliationSession struct {
    ID            uuid.UUID
    UserID        uuid.UUID
    BankAccountID uuid.UUID
    RangeStart    time.Time
    RangeEnd      time.Time
    // StartingBalance and EndingBalance are book balances derived from the
    // signed sum of non-deleted bank transactions.
    StartingBalance  money.Amount
    EndingBalance    money.Amount
    StatementBalance money.Amount
    Status           SessionStatus
}

// ReconciliationMatch groups a set of bank transactions against a set of
// ledger entries (many-to-many, e.g. one deposit matching three receipts).
// Matches are history: reopen keeps them until a new completion overwrites.
type ReconciliationMatch struct {
    ID                 uuid.UUID
    SessionID          uuid.UUID
    BankTransactionIDs []uuid.UUID
    EntryIDs           []uuid.UUID
}
