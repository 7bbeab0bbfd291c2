package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for classification. Every error returned by this module
// wraps exactly one of them; use errors.Is to branch on the kind.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("auth error")
	ErrNotFound   = errors.New("not found")
	ErrServer     = errors.New("server error")
	ErrTransport  = errors.New("transport error")
	ErrCancelled  = errors.New("cancelled")
	ErrConfig     = errors.New("config error")
	ErrDecode     = errors.New("decode error")
)

// APIError describes a failed call with as much context as is known.
type APIError struct {
	Op        string // logical operation, e.g. "catalog.get"
	Status    int    // HTTP status, 0 for connection-level failures
	Code      string
	Message   string
	RequestID string
	Attempts  int
	Err       error // one of the sentinels above
	Cause     error // underlying transport or decode error, if any
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Status != 0 || e.Code != "" {
		fmt.Fprintf(&b, " (status=%d, code=%s", e.Status, e.Code)
		if e.RequestID != "" {
			fmt.Fprintf(&b, ", request_id=%s", e.RequestID)
		}
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// ValidationError reports a request rejected locally before dispatch.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Kind returns a short stable name for the error's class, suitable for
// metric labels and log fields. It returns "" for nil.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrServer):
		return "server"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "unknown"
	}
}
