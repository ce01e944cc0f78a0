package model

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the engine. Callers branch with errors.Is; detail is
// attached with fmt.Errorf("%w: ...").
var (
	ErrValidation        = errors.New("validation error")
	ErrNotEligible       = errors.New("not eligible")
	ErrOutOfWindow       = errors.New("out of window")
	ErrSlotConflict      = errors.New("slot conflict")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")

	ErrIdempotencyMismatch = fmt.Errorf("%w: idempotency key reused with a different request", ErrValidation)
)

// Kind returns the stable machine-readable name for err, or "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIdempotencyMismatch):
		return "idempotency_mismatch"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrOutOfWindow):
		return "out_of_window"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "internal"
	}
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
