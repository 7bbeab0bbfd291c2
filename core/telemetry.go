package core

import (
	"context"
	"time"
)

// TelemetryHook receives notifications about request lifecycle events.
// Implementations can use this for logging, metrics, tracing, etc.
//
// Events never carry credentials, request bodies, search queries or chat
// text; only operational metadata is exposed.
type TelemetryHook interface {
	// OnRequestStart is called before the first attempt of a call.
	OnRequestStart(e RequestStartEvent)

	// OnRequestEnd is called once the call has succeeded or given up.
	// For streams it is called when the stream body is closed.
	OnRequestEnd(e RequestEndEvent)
}

// RetryObserver is optionally implemented by a TelemetryHook that wants to
// be told about each scheduled retry.
type RetryObserver interface {
	OnRetry(e RetryEvent)
}

// RequestStartEvent contains metadata about a starting call.
// Context is the caller's context; hooks may read values such as the
// active trace span from it but must not retain it past the call.
type RequestStartEvent struct {
	Context context.Context
	CallID  string // unique per logical call, shared with the end event
	Op      string
	Method  string
	Path    string
	Start   time.Time
}

// RequestEndEvent contains metadata about a completed call.
type RequestEndEvent struct {
	CallID   string
	Op       string
	Method   string
	Path     string
	Status   int // last HTTP status seen, 0 if none
	Attempts int
	Stream   bool
	Start    time.Time
	End      time.Time
	Err      error
}

// Duration returns the elapsed time for the call.
func (e RequestEndEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// NoopTelemetryHook is a no-op implementation of TelemetryHook.
type NoopTelemetryHook struct{}

// OnRequestStart does nothing.
func (NoopTelemetryHook) OnRequestStart(RequestStartEvent) {}

// OnRequestEnd does nothing.
func (NoopTelemetryHook) OnRequestEnd(RequestEndEvent) {}

var _ TelemetryHook = NoopTelemetryHook{}

// MultiHook fans events out to several hooks in order.
type MultiHook []TelemetryHook

// OnRequestStart forwards to every hook.
func (m MultiHook) OnRequestStart(e RequestStartEvent) {
	for _, h := range m {
		h.OnRequestStart(e)
	}
}

// OnRequestEnd forwards to every hook.
func (m MultiHook) OnRequestEnd(e RequestEndEvent) {
	for _, h := range m {
		h.OnRequestEnd(e)
	}
}

// OnRetry forwards to every hook that observes retries.
func (m MultiHook) OnRetry(e RetryEvent) {
	for _, h := range m {
		if o, ok := h.(RetryObserver); ok {
			o.OnRetry(e)
		}
	}
}
