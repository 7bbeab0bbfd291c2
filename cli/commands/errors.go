package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/petal-labs/showroom/core"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitAPI        = 2
	ExitNetwork    = 3
	ExitAuth       = 4
	ExitNotFound   = 5
)

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCodeFor maps an error to its exit code. An explicit exitError wins.
func exitCodeFor(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrConfig):
		return ExitValidation
	case errors.Is(err, core.ErrAuth):
		return ExitAuth
	case errors.Is(err, core.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, core.ErrTransport), errors.Is(err, core.ErrCancelled):
		return ExitNetwork
	case errors.Is(err, core.ErrServer), errors.Is(err, core.ErrDecode):
		return ExitAPI
	default:
		// Cobra flag and argument errors.
		return ExitValidation
	}
}

// reportError prints err on stderr and returns it with its exit code.
func (a *App) reportError(err error) error {
	code := exitCodeFor(err)

	if a.jsonOutput {
		out := map[string]any{
			"type":    errorType(err),
			"message": err.Error(),
		}
		var apiErr *core.APIError
		if errors.As(err, &apiErr) {
			out["message"] = apiErr.Message
			if apiErr.Status != 0 {
				out["status"] = apiErr.Status
			}
			if apiErr.Code != "" {
				out["code"] = apiErr.Code
			}
			if apiErr.RequestID != "" {
				out["request_id"] = apiErr.RequestID
			}
		}
		enc := json.NewEncoder(a.stderr)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"error": out})
	} else {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee
	}
	return exitWithCode(code, err)
}

func errorType(err error) string {
	if kind := core.Kind(err); kind != "unknown" {
		return kind
	}
	return "error"
}
