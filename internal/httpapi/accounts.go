package httpapi

import (
    "encoding/json"
    "net/http"

    chi "github.com/go-chi/chi/v5"
    "github.com/google/uuid"

    "github.com/finbooks/ledger/internal/ledger"
)

// postAccount handles POST /v1/accounts. The validated account is placed in
// the request context by validatePostAccount.
func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
    a, ok := r.Context().Value(ctxKeyPostAccount).(ledger.Account)
    if !ok {
        badRequest(w, "missing validated request")
        return
    }
    created, err := s.accounts.Create(r.Context(), a)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusCreated, toAccountResponse(created))
}

// listAccounts handles GET /v1/accounts.
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
    q, ok := r.Context().Value(ctxKeyListQuery).(listQuery)
    if !ok {
        badRequest(w, "missing validated request")
        return
    }
    accounts, err := s.accounts.List(r.Context(), q.UserID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    out := make([]accountResponse, 0, len(accounts))
    for _, a := range accounts {
        out = append(out, toAccountResponse(a))
    }
    toJSON(w, http.StatusOK, struct {
        Items []accountResponse `json:"items"`
    }{Items: out})
}

// getAccount handles GET /v1/accounts/{id}.
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
    userID, accountID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    a, err := s.accounts.Get(r.Context(), userID, accountID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusOK, toAccountResponse(a))
}

// updateAccount handles PATCH /v1/accounts/{id}. Code and type are immutable;
// the service rejects attempts to change them.
func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
    userID, accountID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    var req patchAccountRequest
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&req); err != nil {
        badRequest(w, "invalid JSON: "+err.Error())
        return
    }
    a, err := s.accounts.Get(r.Context(), userID, accountID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    if req.Name != nil {
        a.Name = *req.Name
    }
    if req.ParentID != nil {
        a.ParentID = req.ParentID
    }
    updated, err := s.accounts.Update(r.Context(), a)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusOK, toAccountResponse(updated))
}

// deactivateAccount handles DELETE /v1/accounts/{id}. Accounts are never
// removed, only deactivated.
func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
    userID, accountID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    if err := s.accounts.Deactivate(r.Context(), userID, accountID); err != nil {
        writeDomainError(w, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} path param.
func pathID(r *http.Request) (uuid.UUID, error) {
    return uuid.Parse(chi.URLParam(r, "id"))
}

// pathIDAndUser parses the {id} path param and the user_id query param.
func pathIDAndUser(w http.ResponseWriter, r *http.Request) (userID, id uuid.UUID, ok bool) {
    id, err := uuid.Parse(chi.URLParam(r, "id"))
    if err != nil {
        badRequest(w, "invalid id")
        return uuid.Nil, uuid.Nil, false
    }
    userID, ok = parseUserID(w, r)
    if !ok {
        return uuid.Nil, uuid.Nil, false
    }
    return userID, id, true
}
