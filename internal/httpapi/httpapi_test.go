package httpapi

import (
    "bytes"
    "encoding/json"
    "io"
    "log/slog"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/google/uuid"

    "github.com/finbooks/ledger/internal/ledger"
    "github.com/finbooks/ledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
    return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type entryResp struct {
    ID       string    `json:"id"`
    UserID   string    `json:"user_id"`
    Date     time.Time `json:"date"`
    Currency string    `json:"currency"`
    Posted   bool      `json:"posted"`
    Deleted  bool      `json:"deleted"`
    Lines    []struct {
        ID          string `json:"id"`
        AccountID   string `json:"account_id"`
        DebitMinor  int64  `json:"debit_minor"`
        CreditMinor int64  `json:"credit_minor"`
    } `json:"lines"`
}

type errResp struct {
    Error string `json:"error"`
    Code  string `json:"code"`
}

func setup(t *testing.T) (*memory.Store, http.Handler, uuid.UUID, ledger.Account, ledger.Account) {
    t.Helper()
    store := memory.New()
    user := ledger.User{ID: uuid.New()}
    store.SeedUser(user)
    cash := ledger.Account{ID: uuid.New(), UserID: user.ID, Code: 1000, Name: "Cash", Type: ledger.AccountTypeAsset, Active: true}
    revenue := ledger.Account{ID: uuid.New(), UserID: user.ID, Code: 4000, Name: "Revenue", Type: ledger.AccountTypeRevenue, Active: true}
    store.SeedAccount(cash)
    store.SeedAccount(revenue)
    h := New(store, testLogger()).Handler()
    return store, h, user.ID, cash, revenue
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
    t.Helper()
    var rd io.Reader
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil {
            t.Fatalf("marshal: %v", err)
        }
        rd = bytes.NewReader(b)
    }
    req := httptest.NewRequest(method, target, rd)
    if body != nil {
        req.Header.Set("Content-Type", "application/json")
    }
    rec := httptest.NewRecorder()
    h.ServeHTTP(rec, req)
    return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
    t.Helper()
    var v T
    if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
        t.Fatalf("decode: %v: %s", err, rec.Body.String())
    }
    return v
}

func entryBody(userID uuid.UUID, cash, revenue ledger.Account, debit, credit int64) map[string]any {
    return map[string]any{
        "user_id":  userID.String(),
        "date":     time.Now().UTC().Format(time.RFC3339),
        "currency": "USD",
        "memo":     "Sale",
        "lines": []map[string]any{
            {"account_id": cash.ID.String(), "debit_minor": debit, "credit_minor": 0},
            {"account_id": revenue.ID.String(), "debit_minor": 0, "credit_minor": credit},
        },
    }
}

func TestAccounts_CreateGetAndDuplicateCode(t *testing.T) {
    _, h, userID, _, _ := setup(t)

    body := map[string]any{"user_id": userID.String(), "code": 5000, "name": "Expenses", "type": "expense"}
    rec := do(t, h, http.MethodPost, "/v1/accounts", body)
    if rec.Code != http.StatusCreated {
        t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    created := decode[struct {
        ID     string `json:"id"`
        Code   int    `json:"code"`
        Active bool   `json:"active"`
    }](t, rec)
    if created.Code != 5000 || !created.Active {
        t.Fatalf("unexpected response: %+v", created)
    }

    rec = do(t, h, http.MethodGet, "/v1/accounts/"+created.ID+"?user_id="+userID.String(), nil)
    if rec.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
    }

    // same code again
    rec = do(t, h, http.MethodPost, "/v1/accounts", body)
    if rec.Code != http.StatusConflict {
        t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
    }
    if er := decode[errResp](t, rec); er.Code != "code_exists" {
        t.Fatalf("unexpected error code: %+v", er)
    }
}

func TestEntries_DraftThenPost(t *testing.T) {
    _, h, userID, cash, revenue := setup(t)

    rec := do(t, h, http.MethodPost, "/v1/entries", entryBody(userID, cash, revenue, 10000, 10000))
    if rec.Code != http.StatusCreated {
        t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    created := decode[entryResp](t, rec)
    if created.Posted {
        t.Fatalf("new entries must start as drafts: %+v", created)
    }

    rec = do(t, h, http.MethodPost, "/v1/entries/"+created.ID+"/post?user_id="+userID.String(), nil)
    if rec.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
    }
    if posted := decode[entryResp](t, rec); !posted.Posted {
        t.Fatalf("expected posted entry: %+v", posted)
    }
}

func TestEntries_UnbalancedStaysDraft(t *testing.T) {
    _, h, userID, cash, revenue := setup(t)

    // drafts may be unbalanced; posting is where the invariant bites
    rec := do(t, h, http.MethodPost, "/v1/entries", entryBody(userID, cash, revenue, 10000, 9900))
    if rec.Code != http.StatusCreated {
        t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    created := decode[entryResp](t, rec)

    rec = do(t, h, http.MethodPost, "/v1/entries/"+created.ID+"/post?user_id="+userID.String(), nil)
    if rec.Code != http.StatusUnprocessableEntity {
        t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
    }
    if er := decode[errResp](t, rec); er.Code != "unbalanced_entry" {
        t.Fatalf("unexpected error code: %+v", er)
    }

    rec = do(t, h, http.MethodGet, "/v1/entries/"+created.ID+"?user_id="+userID.String(), nil)
    if rec.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
    }
    if got := decode[entryResp](t, rec); got.Posted {
        t.Fatalf("failed posting must leave the draft untouched: %+v", got)
    }
}

func TestEntries_ValidationErrors(t *testing.T) {
    _, h, userID, cash, revenue := setup(t)

    // no lines
    body := entryBody(userID, cash, revenue, 1000, 1000)
    body["lines"] = []map[string]any{}
    rec := do(t, h, http.MethodPost, "/v1/entries", body)
    if rec.Code != http.StatusUnprocessableEntity {
        t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
    }
    er := decode[errResp](t, rec)
    if er.Code != "validation_error" || !strings.Contains(er.Error, "at least one line is required") {
        t.Fatalf("expected the violated rule in the payload: %+v", er)
    }

    // a line with both sides set
    body = entryBody(userID, cash, revenue, 1000, 1000)
    body["lines"] = []map[string]any{
        {"account_id": cash.ID.String(), "debit_minor": 1000, "credit_minor": 1000},
    }
    rec = do(t, h, http.MethodPost, "/v1/entries", body)
    if rec.Code != http.StatusUnprocessableEntity {
        t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
    }
    er = decode[errResp](t, rec)
    if er.Code != "validation_error" || !strings.Contains(er.Error, "exactly one of debit or credit") {
        t.Fatalf("expected the violated rule in the payload: %+v", er)
    }

    // reversing a draft is rejected with the reason
    rec = do(t, h, http.MethodPost, "/v1/entries", entryBody(userID, cash, revenue, 1000, 1000))
    created := decode[entryResp](t, rec)
    rec = do(t, h, http.MethodPost, "/v1/entries/reverse", map[string]any{
        "user_id":  userID.String(),
        "entry_id": created.ID,
    })
    if rec.Code != http.StatusUnprocessableEntity {
        t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
    }
    if er = decode[errResp](t, rec); !strings.Contains(er.Error, "only posted entries can be reversed") {
        t.Fatalf("expected the violated rule in the payload: %+v", er)
    }
}

func TestEntries_PostedIsImmutable(t *testing.T) {
    _, h, userID, cash, revenue := setup(t)

    rec := do(t, h, http.MethodPost, "/v1/entries", entryBody(userID, cash, revenue, 2500, 2500))
    created := decode[entryResp](t, rec)
    do(t, h, http.MethodPost, "/v1/entries/"+created.ID+"/post?user_id="+userID.String(), nil)

    rec = do(t, h, http.MethodPatch, "/v1/entries/"+created.ID+"?user_id="+userID.String(), map[string]any{"memo": "edited"})
    if rec.Code != http.StatusConflict {
        t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
    }
    if er := decode[errResp](t, rec); er.Code != "posted_immutable" {
        t.Fatalf("unexpected error code: %+v", er)
    }

    rec = do(t, h, http.MethodDelete, "/v1/entries/"+created.ID+"?user_id="+userID.String(), nil)
    if rec.Code != http.StatusConflict {
        t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
    }
}

func TestEntries_Reverse(t *testing.T) {
    _, h, userID, cash, revenue := setup(t)

    rec := do(t, h, http.MethodPost, "/v1/entries", entryBody(userID, cash, revenue, 7500, 7500))
    created := decode[entryResp](t, rec)
    do(t, h, http.MethodPost, "/v1/entries/"+created.ID+"/post?user_id="+userID.String(), nil)

    rec = do(t, h, http.MethodPost, "/v1/entries/reverse", map[string]any{
        "user_id":  userID.String(),
        "entry_id": created.ID,
    })
    if rec.Code != http.StatusCreated {
        t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    reversal := decode[entryResp](t, rec)
    if !reversal.Posted || len(reversal.Lines) != 2 {
        t.Fatalf("unexpected reversal: %+v", reversal)
    }
    for _, ln := range reversal.Lines {
        if ln.AccountID == cash.ID.String() && ln.CreditMinor != 7500 {
            t.Fatalf("cash line not reversed: %+v", ln)
        }
        if ln.AccountID == revenue.ID.String() && ln.DebitMinor != 7500 {
            t.Fatalf("revenue line not reversed: %+v", ln)
        }
    }
}

func TestEntries_NotFound(t *testing.T) {
    _, h, userID, _, _ := setup(t)

    rec := do(t, h, http.MethodGet, "/v1/entries/"+uuid.NewString()+"?user_id="+userID.String(), nil)
    if rec.Code != http.StatusNotFound {
        t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
    }

    rec = do(t, h, http.MethodGet, "/v1/entries/not-a-uuid?user_id="+userID.String(), nil)
    if rec.Code != http.StatusBadRequest {
        t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
    }

    rec = do(t, h, http.MethodGet, "/v1/entries", nil)
    if rec.Code != http.StatusBadRequest {
        t.Fatalf("expected 400 without user_id, got %d: %s", rec.Code, rec.Body.String())
    }
}

func TestRecurring_CreateAndRun(t *testing.T) {
    _, h, userID, cash, revenue := setup(t)

    rec := do(t, h, http.MethodPost, "/v1/entries", entryBody(userID, cash, revenue, 120000, 120000))
    src := decode[entryResp](t, rec)

    rec = do(t, h, http.MethodPost, "/v1/recurring", map[string]any{
        "user_id":    userID.String(),
        "entry_id":   src.ID,
        "frequency":  "monthly",
        "anchor_day": 1,
        "start_date": "2025-01-01T00:00:00Z",
    })
    if rec.Code != http.StatusCreated {
        t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
    }

    rec = do(t, h, http.MethodPost, "/v1/recurring/run?as_of=2025-02-01T00:00:00Z", nil)
    if rec.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
    }
    pass := decode[struct {
        Generated int `json:"generated"`
        Skipped   int `json:"skipped"`
    }](t, rec)
    if pass.Generated != 1 {
        t.Fatalf("expected one generated entry, got %+v", pass)
    }

    // the pass is idempotent
    rec = do(t, h, http.MethodPost, "/v1/recurring/run?as_of=2025-02-01T00:00:00Z", nil)
    pass = decode[struct {
        Generated int `json:"generated"`
        Skipped   int `json:"skipped"`
    }](t, rec)
    if pass.Generated != 0 || pass.Skipped != 1 {
        t.Fatalf("second run should generate nothing: %+v", pass)
    }
}

type sessionResp struct {
    ID                    string `json:"id"`
    Status                string `json:"status"`
    StartingBalanceMinor  int64  `json:"starting_balance_minor"`
    EndingBalanceMinor    int64  `json:"ending_balance_minor"`
    StatementBalanceMinor int64  `json:"statement_balance_minor"`
    DifferenceMinor       int64  `json:"difference_minor"`
}

func TestReconciliation_FullFlow(t *testing.T) {
    _, h, userID, cash, _ := setup(t)

    rec := do(t, h, http.MethodPost, "/v1/bank-accounts", map[string]any{
        "user_id":    userID.String(),
        "account_id": cash.ID.String(),
        "name":       "Main Checking",
    })
    if rec.Code != http.StatusCreated {
        t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    ba := decode[struct {
        ID string `json:"id"`
    }](t, rec)

    txnIDs := make([]string, 0, 2)
    for _, txn := range []map[string]any{
        {"amount_minor": 20000, "direction": "debit", "description": "Deposit"},
        {"amount_minor": 7500, "direction": "credit", "description": "Card payment"},
    } {
        txn["user_id"] = userID.String()
        txn["bank_account_id"] = ba.ID
        txn["date"] = "2025-03-10T00:00:00Z"
        txn["currency"] = "USD"
        rec = do(t, h, http.MethodPost, "/v1/bank-transactions", txn)
        if rec.Code != http.StatusCreated {
            t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
        }
        created := decode[struct {
            ID     string `json:"id"`
            Status string `json:"status"`
        }](t, rec)
        if created.Status != "unmatched" {
            t.Fatalf("imported transactions start unmatched: %+v", created)
        }
        txnIDs = append(txnIDs, created.ID)
    }

    startBody := map[string]any{
        "user_id":                 userID.String(),
        "bank_account_id":         ba.ID,
        "range_start":             "2025-03-01T00:00:00Z",
        "range_end":               "2025-03-31T00:00:00Z",
        "statement_balance_minor": 12500,
        "currency":                "USD",
    }
    rec = do(t, h, http.MethodPost, "/v1/reconciliations", startBody)
    if rec.Code != http.StatusCreated {
        t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    sess := decode[sessionResp](t, rec)
    if sess.Status != "in_progress" || sess.EndingBalanceMinor != 12500 || sess.DifferenceMinor != 0 {
        t.Fatalf("unexpected session: %+v", sess)
    }

    // only one open session per bank account
    rec = do(t, h, http.MethodPost, "/v1/reconciliations", startBody)
    if rec.Code != http.StatusConflict {
        t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
    }
    if er := decode[errResp](t, rec); er.Code != "session_active" {
        t.Fatalf("unexpected error code: %+v", er)
    }

    rec = do(t, h, http.MethodGet, "/v1/reconciliations/"+sess.ID+"/unmatched?user_id="+userID.String(), nil)
    unmatched := decode[struct {
        Items []struct {
            ID string `json:"id"`
        } `json:"items"`
    }](t, rec)
    if len(unmatched.Items) != 2 {
        t.Fatalf("expected 2 unmatched transactions, got %d", len(unmatched.Items))
    }

    rec = do(t, h, http.MethodPost, "/v1/reconciliations/"+sess.ID+"/complete", map[string]any{
        "user_id": userID.String(),
        "matches": []map[string]any{
            {"bank_transaction_ids": txnIDs, "entry_ids": []string{}},
        },
    })
    if rec.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
    }
    if done := decode[sessionResp](t, rec); done.Status != "completed" {
        t.Fatalf("expected completed session: %+v", done)
    }

    rec = do(t, h, http.MethodGet, "/v1/reconciliations/"+sess.ID+"/matches?user_id="+userID.String(), nil)
    matches := decode[struct {
        Items []struct {
            ID string `json:"id"`
        } `json:"items"`
    }](t, rec)
    if len(matches.Items) != 1 {
        t.Fatalf("expected 1 match group, got %d", len(matches.Items))
    }

    rec = do(t, h, http.MethodPost, "/v1/reconciliations/"+sess.ID+"/reopen?user_id="+userID.String(), nil)
    if rec.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
    }
    if reopened := decode[sessionResp](t, rec); reopened.Status != "in_progress" {
        t.Fatalf("expected reopened session: %+v", reopened)
    }
}

func TestReports(t *testing.T) {
    _, h, userID, cash, revenue := setup(t)

    rec := do(t, h, http.MethodPost, "/v1/entries", entryBody(userID, cash, revenue, 25000, 25000))
    created := decode[entryResp](t, rec)
    do(t, h, http.MethodPost, "/v1/entries/"+created.ID+"/post?user_id="+userID.String(), nil)

    rec = do(t, h, http.MethodGet, "/v1/reports/trial-balance?user_id="+userID.String(), nil)
    if rec.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
    }
    tb := decode[struct {
        TotalDebitMinor  int64 `json:"total_debit_minor"`
        TotalCreditMinor int64 `json:"total_credit_minor"`
    }](t, rec)
    if tb.TotalDebitMinor != 25000 || tb.TotalCreditMinor != 25000 {
        t.Fatalf("unexpected totals: %+v", tb)
    }

    // income statement needs an explicit period
    rec = do(t, h, http.MethodGet, "/v1/reports/income-statement?user_id="+userID.String(), nil)
    if rec.Code != http.StatusBadRequest {
        t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
    }
    start, end := "2025-01-01T00:00:00Z", "2026-01-01T00:00:00Z"
    rec = do(t, h, http.MethodGet, "/v1/reports/income-statement?user_id="+userID.String()+"&start="+start+"&end="+end, nil)
    if rec.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
    }

    rec = do(t, h, http.MethodGet, "/v1/reports/balance-sheet?user_id="+userID.String(), nil)
    if rec.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
    }
    bs := decode[struct {
        Balanced bool `json:"balanced"`
    }](t, rec)
    if !bs.Balanced {
        t.Fatalf("balance sheet should balance: %s", rec.Body.String())
    }
}

func TestHealthEndpoints(t *testing.T) {
    _, h, _, _, _ := setup(t)

    if rec := do(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
        t.Fatalf("healthz: expected 200, got %d", rec.Code)
    }
    if rec := do(t, h, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
        t.Fatalf("readyz: expected 200, got %d", rec.Code)
    }
    if rec := do(t, h, http.MethodGet, "/metrics", nil); rec.Code != http.StatusOK {
        t.Fatalf("metrics: expected 200, got %d", rec.Code)
    }
}
