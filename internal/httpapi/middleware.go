package httpapi

import (
    "context"
    "encoding/json"
    "net/http"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"

    "github.com/finbooks/ledger/internal/ledger"
)

type ctxKey string

const ctxKeyPostEntry ctxKey = "validatedPostEntry"
const ctxKeyPostAccount ctxKey = "validatedPostAccount"
const ctxKeyListQuery ctxKey = "validatedListQuery"
const ctxKeyReverseEntry ctxKey = "validatedReverseEntry"
const ctxKeyReportQuery ctxKey = "validatedReportQuery"

// validatePostEntry decodes and validates the POST /entries body and stores
// the domain entry in the request context for the handler to use.
func (s *Server) validatePostEntry() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            var req postEntryRequest
            dec := json.NewDecoder(r.Body)
            dec.DisallowUnknownFields()
            if err := dec.Decode(&req); err != nil {
                badRequest(w, "invalid JSON: "+err.Error())
                return
            }
            e := toEntryDomain(req)
            if err := s.journal.ValidateEntry(r.Context(), e); err != nil {
                writeDomainError(w, err)
                return
            }
            ctx := context.WithValue(r.Context(), ctxKeyPostEntry, e)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

// validatePostAccount decodes and validates the POST /accounts body.
func (s *Server) validatePostAccount() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            var req postAccountRequest
            dec := json.NewDecoder(r.Body)
            dec.DisallowUnknownFields()
            if err := dec.Decode(&req); err != nil {
                badRequest(w, "invalid JSON: "+err.Error())
                return
            }
            a := ledger.Account{UserID: req.UserID, Code: req.Code, Name: req.Name, Type: req.Type, ParentID: req.ParentID, Active: true}
            if err := s.accounts.ValidateCreate(r.Context(), a); err != nil {
                writeDomainError(w, err)
                return
            }
            ctx := context.WithValue(r.Context(), ctxKeyPostAccount, a)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

// validateReverseEntry decodes the POST /entries/reverse body.
func (s *Server) validateReverseEntry() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            var req reverseEntryRequest
            dec := json.NewDecoder(r.Body)
            dec.DisallowUnknownFields()
            if err := dec.Decode(&req); err != nil {
                badRequest(w, "invalid JSON: "+err.Error())
                return
            }
            if req.UserID == uuid.Nil || req.EntryID == uuid.Nil {
                badRequest(w, "user_id and entry_id are required")
                return
            }
            ctx := context.WithValue(r.Context(), ctxKeyReverseEntry, req)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

// validateUserQuery parses the user_id query param required on list endpoints.
func (s *Server) validateUserQuery() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            userID, ok := parseUserID(w, r)
            if !ok {
                return
            }
            ctx := context.WithValue(r.Context(), ctxKeyListQuery, listQuery{UserID: userID})
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

// validateReportQuery parses user_id plus optional start/end RFC3339 params.
func (s *Server) validateReportQuery() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            userID, ok := parseUserID(w, r)
            if !ok {
                return
            }
            q := reportQuery{UserID: userID}
            if raw := r.URL.Query().Get("start"); raw != "" {
                t, err := time.Parse(time.RFC3339, raw)
                if err != nil {
                    badRequest(w, "invalid start")
                    return
                }
                tt := t.UTC()
                q.Start = &tt
            }
            if raw := r.URL.Query().Get("end"); raw != "" {
                t, err := time.Parse(time.RFC3339, raw)
                if err != nil {
                    badRequest(w, "invalid end")
                    return
                }
                tt := t.UTC()
                q.End = &tt
            }
            ctx := context.WithValue(r.Context(), ctxKeyReportQuery, q)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

func parseUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
    raw := r.URL.Query().Get("user_id")
    if raw == "" {
        badRequest(w, "user_id is required")
        return uuid.Nil, false
    }
    userID, err := uuid.Parse(raw)
    if err != nil {
        badRequest(w, "invalid user_id")
        return uuid.Nil, false
    }
    return userID, true
}

func toEntryDomain(req postEntryRequest) ledger.JournalEntry {
    lines := make([]ledger.JournalLine, 0, len(req.Lines))
    for _, ln := range req.Lines {
        d, _ := money.NewAmountFromMinorUnits(req.Currency, ln.DebitMinor)
        c, _ := money.NewAmountFromMinorUnits(req.Currency, ln.CreditMinor)
        lines = append(lines, ledger.JournalLine{AccountID: ln.AccountID, Debit: d, Credit: c, Memo: ln.Memo})
    }
    return ledger.JournalEntry{
        UserID:   req.UserID,
        Date:     req.Date,
        Currency: req.Currency,
        Memo:     req.Memo,
        Source:   req.Source,
        Lines:    lines,
    }
}
