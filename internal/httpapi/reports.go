package httpapi

import (
    "net/http"
    "time"

    "github.com/finbooks/ledger/internal/errs"
)

// trialBalance handles GET /v1/reports/trial-balance. Both range bounds are
// optional.
func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
    q, ok := r.Context().Value(ctxKeyReportQuery).(reportQuery)
    if !ok {
        badRequest(w, "missing validated request")
        return
    }
    tb, err := s.reports.TrialBalance(r.Context(), q.UserID, q.Start, q.End)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusOK, trialBalanceResponse{
        Currency:         tb.Currency,
        Rows:             toReportRows(tb.Rows),
        TotalDebitMinor:  tb.TotalDebitMinor,
        TotalCreditMinor: tb.TotalCreditMinor,
    })
}

// incomeStatement handles GET /v1/reports/income-statement. A full period
// range is required.
func (s *Server) incomeStatement(w http.ResponseWriter, r *http.Request) {
    q, ok := r.Context().Value(ctxKeyReportQuery).(reportQuery)
    if !ok {
        badRequest(w, "missing validated request")
        return
    }
    if q.Start == nil || q.End == nil {
        badRequest(w, "start and end are required")
        return
    }
    is, err := s.reports.IncomeStatement(r.Context(), q.UserID, *q.Start, *q.End)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusOK, incomeStatementResponse{
        Currency:          is.Currency,
        Revenue:           toReportRows(is.Revenue),
        Expenses:          toReportRows(is.Expenses),
        TotalRevenueMinor: is.TotalRevenueMinor,
        TotalExpenseMinor: is.TotalExpenseMinor,
        NetIncomeMinor:    is.NetIncomeMinor,
        NetIncome:         errs.FormatMinor(is.NetIncomeMinor),
    })
}

// balanceSheet handles GET /v1/reports/balance-sheet. Defaults as_of to now.
// A sheet that fails the accounting identity is still returned, flagged, and
// logged; it signals corrupted data rather than a bad request.
func (s *Server) balanceSheet(w http.ResponseWriter, r *http.Request) {
    q, ok := r.Context().Value(ctxKeyReportQuery).(reportQuery)
    if !ok {
        badRequest(w, "missing validated request")
        return
    }
    asOf := time.Now().UTC()
    if raw := r.URL.Query().Get("as_of"); raw != "" {
        t, err := time.Parse(time.RFC3339, raw)
        if err != nil {
            badRequest(w, "invalid as_of")
            return
        }
        asOf = t.UTC()
    } else if q.End != nil {
        asOf = *q.End
    }
    bs, err := s.reports.BalanceSheet(r.Context(), q.UserID, asOf)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    balanced := bs.Balanced()
    if !balanced {
        s.log.Error("balance sheet out of balance",
            "user_id", q.UserID,
            "assets_minor", bs.TotalAssetsMinor,
            "liabilities_minor", bs.TotalLiabilitiesMinor,
            "equity_minor", bs.TotalEquityMinor,
        )
    }
    toJSON(w, http.StatusOK, balanceSheetResponse{
        AsOf:                  bs.AsOf,
        Currency:              bs.Currency,
        Assets:                toReportRows(bs.Assets),
        Liabilities:           toReportRows(bs.Liabilities),
        Equity:                toReportRows(bs.Equity),
        TotalAssetsMinor:      bs.TotalAssetsMinor,
        TotalLiabilitiesMinor: bs.TotalLiabilitiesMinor,
        TotalEquityMinor:      bs.TotalEquityMinor,
        Balanced:              balanced,
    })
}
