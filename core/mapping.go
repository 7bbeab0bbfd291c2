package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// errorEnvelope matches both error body shapes the API returns:
//
//	{"error": "message"}
//	{"error": {"status": 404, "code": "not_found", "message": "..."}}
type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

type errorObject struct {
	Status  json.RawMessage `json:"status"`
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

// MapResponse converts a non-2xx response into a classified *APIError.
func MapResponse(op string, status int, body []byte, requestID string) error {
	code, message := parseErrorBody(status, body)
	return &APIError{
		Op:        op,
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Err:       SentinelForStatus(status),
	}
}

// MapTransportError classifies a connection-level failure. Caller
// cancellation of ctx becomes ErrCancelled; everything else, timeouts
// included, becomes ErrTransport.
func MapTransportError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || (ctx != nil && errors.Is(ctx.Err(), context.Canceled)) {
		return &APIError{Op: op, Code: "cancelled", Message: "request cancelled", Err: ErrCancelled, Cause: err}
	}
	code := "network_error"
	if errors.Is(err, context.DeadlineExceeded) {
		code = "timeout"
	}
	return &APIError{Op: op, Code: code, Message: err.Error(), Err: ErrTransport, Cause: err}
}

// DecodeError wraps a failure to interpret a successful response.
func DecodeError(op string, err error) error {
	return &APIError{Op: op, Code: "decode_error", Message: err.Error(), Err: ErrDecode, Cause: err}
}

// SentinelForStatus maps an HTTP status to its error class.
// 429 is grouped with server errors because it is transient.
func SentinelForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrServer
	case status >= 500:
		return ErrServer
	case status >= 400:
		return ErrValidation
	default:
		return ErrServer
	}
}

func parseErrorBody(status int, body []byte) (code, message string) {
	fallbackCode := "http_" + strconv.Itoa(status)
	fallbackMessage := statusLine(status)

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return fallbackCode, fallbackMessage
	}

	raw := bytes.TrimSpace(env.Error)
	switch {
	case len(raw) > 0 && raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return fallbackCode, fallbackMessage
		}
		return fallbackCode, s
	case len(raw) > 0 && raw[0] == '{':
		var obj errorObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return fallbackCode, fallbackMessage
		}
		code = rawString(obj.Code)
		if code == "" {
			code = fallbackCode
		}
		message = obj.Message
		if message == "" {
			message = fallbackMessage
		}
		return code, message
	default:
		return fallbackCode, fallbackMessage
	}
}

// rawString renders a JSON scalar as text: strings are unquoted, numbers
// kept as written, null and absent become "".
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func statusLine(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("HTTP %d", status)
	}
	return fmt.Sprintf("%d %s", status, text)
}
