package httpapi

import (
    "encoding/json"
    "net/http"
    "time"

    "github.com/finbooks/ledger/internal/ledger"
)

// postEntry handles POST /v1/entries. The entry is created as a draft;
// posting is a separate call.
func (s *Server) postEntry(w http.ResponseWriter, r *http.Request) {
    e, ok := r.Context().Value(ctxKeyPostEntry).(ledger.JournalEntry)
    if !ok {
        badRequest(w, "missing validated request")
        return
    }
    created, err := s.journal.CreateEntry(r.Context(), e)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusCreated, toEntryResponse(created))
}

// listEntries handles GET /v1/entries.
func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
    q, ok := r.Context().Value(ctxKeyListQuery).(listQuery)
    if !ok {
        badRequest(w, "missing validated request")
        return
    }
    entries, err := s.journal.ListEntries(r.Context(), q.UserID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    out := make([]entryResponse, 0, len(entries))
    for _, e := range entries {
        out = append(out, toEntryResponse(e))
    }
    toJSON(w, http.StatusOK, struct {
        Items []entryResponse `json:"items"`
    }{Items: out})
}

// getEntry handles GET /v1/entries/{id}.
func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
    userID, entryID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    e, err := s.journal.GetEntry(r.Context(), userID, entryID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusOK, toEntryResponse(e))
}

// postEntryPosting handles POST /v1/entries/{id}/post. Posting re-checks the
// balance invariant and makes the entry immutable.
func (s *Server) postEntryPosting(w http.ResponseWriter, r *http.Request) {
    userID, entryID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    e, err := s.journal.PostEntry(r.Context(), userID, entryID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    entriesPostedTotal.Inc()
    toJSON(w, http.StatusOK, toEntryResponse(e))
}

// updateEntry handles PATCH /v1/entries/{id}. Only drafts can change.
func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
    userID, entryID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    var req patchEntryRequest
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&req); err != nil {
        badRequest(w, "invalid JSON: "+err.Error())
        return
    }
    e, err := s.journal.GetEntry(r.Context(), userID, entryID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    if req.Date != nil {
        e.Date = *req.Date
    }
    if req.Memo != nil {
        e.Memo = *req.Memo
    }
    if req.Lines != nil {
        draft := toEntryDomain(postEntryRequest{UserID: userID, Currency: e.Currency, Lines: *req.Lines})
        e.Lines = draft.Lines
    }
    updated, err := s.journal.UpdateEntry(r.Context(), e)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusOK, toEntryResponse(updated))
}

// deleteEntry handles DELETE /v1/entries/{id}. Soft delete; posted entries
// are rejected and must be reversed instead.
func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
    userID, entryID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    if err := s.journal.DeleteEntry(r.Context(), userID, entryID); err != nil {
        writeDomainError(w, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

// reverseEntry handles POST /v1/entries/reverse. The reversal is created and
// posted in one call.
func (s *Server) reverseEntry(w http.ResponseWriter, r *http.Request) {
    req, ok := r.Context().Value(ctxKeyReverseEntry).(reverseEntryRequest)
    if !ok {
        badRequest(w, "missing validated request")
        return
    }
    date := time.Now().UTC()
    if req.Date != nil {
        date = req.Date.UTC()
    }
    rev, err := s.journal.ReverseEntry(r.Context(), req.UserID, req.EntryID, date)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    entriesPostedTotal.Inc()
    toJSON(w, http.StatusCreated, toEntryResponse(rev))
}
