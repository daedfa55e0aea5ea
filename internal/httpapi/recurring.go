package httpapi

import (
    "encoding/json"
    "net/http"
    "time"

    "github.com/finbooks/ledger/internal/ledger"
)

// postTemplate handles POST /v1/recurring.
func (s *Server) postTemplate(w http.ResponseWriter, r *http.Request) {
    var req postTemplateRequest
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(&req); err != nil {
        badRequest(w, "invalid JSON: "+err.Error())
        return
    }
    tpl := ledger.RecurringTemplate{
        UserID:        req.UserID,
        EntryID:       req.EntryID,
        Frequency:     req.Frequency,
        AnchorDay:     req.AnchorDay,
        AnchorWeekday: time.Weekday(req.AnchorWeekday),
        StartDate:     req.StartDate.UTC(),
        EndDate:       req.EndDate,
        Active:        true,
    }
    created, err := s.recurring.CreateTemplate(r.Context(), tpl)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    toJSON(w, http.StatusCreated, toTemplateResponse(created))
}

// listTemplates handles GET /v1/recurring.
func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
    q, ok := r.Context().Value(ctxKeyListQuery).(listQuery)
    if !ok {
        badRequest(w, "missing validated request")
        return
    }
    tpls, err := s.recurring.ListTemplates(r.Context(), q.UserID)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    out := make([]templateResponse, 0, len(tpls))
    for _, t := range tpls {
        out = append(out, toTemplateResponse(t))
    }
    toJSON(w, http.StatusOK, struct {
        Items []templateResponse `json:"items"`
    }{Items: out})
}

// deactivateTemplate handles DELETE /v1/recurring/{id}.
func (s *Server) deactivateTemplate(w http.ResponseWriter, r *http.Request) {
    userID, templateID, ok := pathIDAndUser(w, r)
    if !ok {
        return
    }
    if err := s.recurring.Deactivate(r.Context(), userID, templateID); err != nil {
        writeDomainError(w, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

// runGenerationPass handles POST /v1/recurring/run. The pass is idempotent:
// running it twice for the same date generates nothing the second time.
// Per-template failures are reported without aborting the pass.
func (s *Server) runGenerationPass(w http.ResponseWriter, r *http.Request) {
    asOf := time.Now().UTC()
    if raw := r.URL.Query().Get("as_of"); raw != "" {
        t, err := time.Parse(time.RFC3339, raw)
        if err != nil {
            badRequest(w, "invalid as_of")
            return
        }
        asOf = t.UTC()
    }
    res, err := s.recurring.RunGenerationPass(r.Context(), asOf)
    if err != nil {
        writeDomainError(w, err)
        return
    }
    recurringGeneratedTotal.Add(float64(res.Generated))
    out := generationPassResponse{Generated: res.Generated, Skipped: res.Skipped, Errors: make([]generationPassError, 0, len(res.Errors))}
    for _, e := range res.Errors {
        out.Errors = append(out.Errors, generationPassError{TemplateID: e.TemplateID, Error: e.Err.Error()})
    }
    toJSON(w, http.StatusOK, out)
}
