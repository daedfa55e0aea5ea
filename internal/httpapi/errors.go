package httpapi

import (
    "errors"
    "net/http"

    "github.com/finbooks/ledger/internal/errs"
    "github.com/finbooks/ledger/internal/service/account"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
    Error string `json:"error"`
    Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
    toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }
func conflict(w http.ResponseWriter, msg, code string) { writeErr(w, http.StatusConflict, msg, code) }
func unprocessable(w http.ResponseWriter, msg, code string) {
    writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// writeDomainError maps service errors onto HTTP statuses and stable codes.
// Unknown errors become 500 without leaking internals.
func writeDomainError(w http.ResponseWriter, err error) {
    switch {
    case errors.Is(err, errs.ErrNotFound):
        notFound(w)
    case errors.Is(err, errs.ErrForbidden):
        writeErr(w, http.StatusForbidden, err.Error(), "forbidden")
    case errors.Is(err, errs.ErrUnbalanced):
        unprocessable(w, err.Error(), "unbalanced_entry")
    case errors.Is(err, errs.ErrAlreadyPosted):
        conflict(w, err.Error(), "already_posted")
    case errors.Is(err, errs.ErrPostedImmutable):
        conflict(w, err.Error(), "posted_immutable")
    case errors.Is(err, errs.ErrEntryDeleted):
        conflict(w, err.Error(), "entry_deleted")
    case errors.Is(err, errs.ErrSessionActive):
        conflict(w, err.Error(), "session_active")
    case errors.Is(err, errs.ErrSessionNotOpen):
        conflict(w, err.Error(), "session_not_open")
    case errors.Is(err, errs.ErrSessionNotCompleted):
        conflict(w, err.Error(), "session_not_completed")
    case errors.Is(err, account.ErrCodeExists):
        conflict(w, err.Error(), "code_exists")
    case errors.Is(err, errs.ErrImmutable):
        conflict(w, err.Error(), "immutable_field")
    case errors.Is(err, errs.ErrIntegrity):
        conflict(w, err.Error(), "integrity_error")
    case errors.Is(err, errs.ErrInvalid):
        unprocessable(w, err.Error(), "validation_error")
    default:
        writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
    }
}
