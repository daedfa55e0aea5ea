package httpapi

import (
    "encoding/json"
    "net/http"

    "github.com/govalues/money"

    "github.com/finbooks/ledger/internal/service/reconcile"
)

// startSession handles POST /v1/reconciliations. At most one in-progress
// session may exist per bank account; a second start returns 409.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
    var req startSessionRequest
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&req); err != nil {
        badRequest(w, "invalid JSON: "+err.Error())
        return
    }
    statement, err := money.NewAmountFromMinorUnits(req.Currency, req.StatementBalanceMinor)
    if err != nil {
        badRequest(w, "invalid currency")
        return
    }
    sess, err := s.reconcile.StartSession(r.Context(), req.UserID, req.BankAccountID, req.RangeStart.UTC(), req.RangeEnd.UTC(), statement)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// getSession handles GET /v1/reconciliations/{id}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
    userID, sessionID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    sess, err := s.reconcile.GetSession(r.Context(), userID, sessionID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusOK, toSessionResponse(sess))
}

// updateSession handles PATCH /v1/reconciliations/{id}. Only in-progress
// sessions can change; book balances are recomputed when the range moves.
func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
    userID, sessionID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    var req patchSessionRequest
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&req); err != nil {
        badRequest(w, "invalid JSON: "+err.Error())
        return
    }
    var statement *money.Amount
    if req.StatementBalanceMinor != nil {
        cur, err := s.reconcile.GetSession(r.Context(), userID, sessionID)
        if err != nil {
            writeDomainError(w, err)
            return
        }
        amt, err := money.NewAmountFromMinorUnits(cur.StatementBalance.Curr().Code(), *req.StatementBalanceMinor)
        if err != nil {
            badRequest(w, "invalid statement_balance_minor")
            return
        }
        statement = &amt
    }
    sess, err := s.reconcile.UpdateSession(r.Context(), userID, sessionID, req.RangeStart, req.RangeEnd, statement)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusOK, toSessionResponse(sess))
}

// unmatchedTransactions handles GET /v1/reconciliations/{id}/unmatched.
func (s *Server) unmatchedTransactions(w http.ResponseWriter, r *http.Request) {
    userID, sessionID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    txns, err := s.reconcile.UnmatchedTransactions(r.Context(), userID, sessionID)
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

// completeSession handles POST /v1/reconciliations/{id}/complete. The caller
// supplies match groups; every referenced transaction flips to reconciled and
// the session closes in one atomic store operation.
func (s *Server) completeSession(w http.ResponseWriter, r *http.Request) {
    sessionID, err := pathID(r)
    if err != nil {
        badRequest(w, "invalid id")
        return
    }
    var req completeSessionRequest
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&req); err != nil {
        badRequest(w, "invalid JSON: "+err.Error())
        return
    }
    matches := make([]reconcile.MatchInput, 0, len(req.Matches))
    for _, m := range req.Matches {
        matches = append(matches, reconcile.MatchInput{BankTransactionIDs: m.BankTransactionIDs, EntryIDs: m.EntryIDs})
    }
    if err := s.reconcile.CompleteSession(r.Context(), req.UserID, sessionID, matches); err != nil {
        writeDomainError(w, err)
        return
    }
    sessionsCompletedTotal.Inc()
    sess, err := s.reconcile.GetSession(r.Context(), req.UserID, sessionID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusOK, toSessionResponse(sess))
}

// reopenSession handles POST /v1/reconciliations/{id}/reopen. Reconciled
// transactions in the session revert to unmatched; match history is kept.
func (s *Server) reopenSession(w http.ResponseWriter, r *http.Request) {
    userID, sessionID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    if err := s.reconcile.ReopenSession(r.Context(), userID, sessionID); err != nil {
        writeDomainError(w, err)
        return
    }
    sess, err := s.reconcile.GetSession(r.Context(), userID, sessionID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusOK, toSessionResponse(sess))
}

// listMatches handles GET /v1/reconciliations/{id}/matches.
func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
    userID, sessionID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    groups, err := s.reconcile.ListMatches(r.Context(), userID, sessionID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    out := make([]matchResponse, 0, len(groups))
    for _, m := range groups {
        out = append(out, matchResponse{ID: m.ID, SessionID: m.SessionID, BankTransactionIDs: m.BankTransactionIDs, EntryIDs: m.EntryIDs})
    }
    toJSON(w, http.StatusOK, struct {
        Items []matchResponse `json:"items"`
    }{Items: out})
}
