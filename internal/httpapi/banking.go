package httpapi

import (
    "encoding/json"
    "net/http"

    "github.com/govalues/money"

    "github.com/finbooks/ledger/internal/ledger"
)

// postBankAccount handles POST /v1/bank-accounts. A bank account links 1:1 to
// a ledger asset account; posted entries touching that account materialize as
// bank transactions.
func (s *Server) postBankAccount(w http.ResponseWriter, r *http.Request) {
    var req postBankAccountRequest
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&req); err != nil {
        badRequest(w, "invalid JSON: "+err.Error())
        return
    }
    ba := ledger.BankAccount{UserID: req.UserID, AccountID: req.AccountID, Name: req.Name}
    created, err := s.reconcile.CreateBankAccount(r.Context(), ba)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusCreated, toBankAccountResponse(created))
}

// listBankAccounts handles GET /v1/bank-accounts.
func (s *Server) listBankAccounts(w http.ResponseWriter, r *http.Request) {
    q, ok := r.Context().Value(ctxKeyListQuery).(listQuery)
    if !ok {
        badRequest(w, "missing validated request")
        return
    }
    accounts, err := s.reconcile.ListBankAccounts(r.Context(), q.UserID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    out := make([]bankAccountResponse, 0, len(accounts))
    for _, ba := range accounts {
        out = append(out, toBankAccountResponse(ba))
    }
    toJSON(w, http.StatusOK, struct {
        Items []bankAccountResponse `json:"items"`
    }{Items: out})
}

// listBankTransactions handles GET /v1/bank-accounts/{id}/transactions.
func (s *Server) listBankTransactions(w http.ResponseWriter, r *http.Request) {
    userID, bankAccountID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    txns, err := s.reconcile.ListTransactions(r.Context(), userID, bankAccountID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    out := make([]bankTransactionResponse, 0, len(txns))
    for _, t := range txns {
        out = append(out, toBankTransactionResponse(t))
    }
    toJSON(w, http.StatusOK, struct {
        Items []bankTransactionResponse `json:"items"`
    }{Items: out})
}

// postBankTransaction handles POST /v1/bank-transactions, importing one
// bank-side movement (e.g. a statement row).
func (s *Server) postBankTransaction(w http.ResponseWriter, r *http.Request) {
    var req postBankTransactionRequest
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&req); err != nil {
        badRequest(w, "invalid JSON: "+err.Error())
        return
    }
    amount, err := money.NewAmountFromMinorUnits(req.Currency, req.AmountMinor)
    if err != nil {
        badRequest(w, "invalid currency")
        return
    }
    t := ledger.BankTransaction{
        UserID:        req.UserID,
        BankAccountID: req.BankAccountID,
        Date:          req.Date.UTC(),
        Description:   req.Description,
        Amount:        amount,
        Direction:     req.Direction,
        Status:        ledger.StatusUnmatched,
    }
    created, err := s.reconcile.ImportTransaction(r.Context(), t)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusCreated, toBankTransactionResponse(created))
}
