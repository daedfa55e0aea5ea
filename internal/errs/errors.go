package errs

import (
    "errors"
    "fmt"
)

// Common sentinel errors for cross-layer signaling.
var (
    ErrNotFound  = errors.New("not_found")
    ErrForbidden = errors.New("forbidden")
    ErrInvalid   = errors.New("invalid")
    // ErrUnbalanced indicates debits != credits beyond the rounding tolerance.
    ErrUnbalanced = errors.New("unbalanced_entry")
    // ErrAlreadyPosted indicates a second posting attempt; posting is terminal.
    ErrAlreadyPosted = errors.New("already_posted")
    // ErrPostedImmutable indicates an update/delete against a posted entry.
    ErrPostedImmutable = errors.New("posted_immutable")
    // ErrEntryDeleted indicates an operation against a soft-deleted entry.
    ErrEntryDeleted = errors.New("entry_deleted")
    // ErrSessionActive indicates a bank account already has an in-progress session.
    ErrSessionActive = errors.New("session_already_active")
    // ErrSessionNotOpen indicates a mutation against a session that is not in progress.
    ErrSessionNotOpen = errors.New("session_not_open")
    // ErrSessionNotCompleted indicates a reopen against a session that is not completed.
    ErrSessionNotCompleted = errors.New("session_not_completed")
    // ErrImmutable indicates an attempt to change immutable fields.
    ErrImmutable = errors.New("immutable")
    // ErrIntegrity indicates persisted state that violates a cross-row invariant
    // (data drift); it must be surfaced, never silently repaired.
    ErrIntegrity = errors.New("data_integrity")
)

// ValidationError is a caller-fault rule violation. It matches the ErrInvalid
// sentinel under errors.Is while keeping the message that names the rule.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

// Is makes the typed error match the ErrInvalid sentinel under errors.Is.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Invalidf builds a ValidationError from a format string.
func Invalidf(format string, args ...any) error {
    return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ImbalancedEntryError carries both totals so callers can tell the user which
// amounts disagree instead of a generic failure.
type ImbalancedEntryError struct {
    DebitMinor  int64
    CreditMinor int64
    Currency    string
}

func (e *ImbalancedEntryError) Error() string {
    return fmt.Sprintf("debits %s do not equal credits %s",
        FormatMinor(e.DebitMinor), FormatMinor(e.CreditMinor))
}

// Is makes the typed error match the ErrUnbalanced sentinel under errors.Is.
func (e *ImbalancedEntryError) Is(target error) bool { return target == ErrUnbalanced }

// FormatMinor renders minor units as a two-decimal amount string.
func FormatMinor(units int64) string {
    neg := units < 0
    if neg {
        units = -units
    }
    s := fmt.Sprintf("%d.%02d", units/100, units%100)
    if neg {
        return "-" + s
    }
    return s
}
