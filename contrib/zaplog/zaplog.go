// Package zaplog provides a core.TelemetryHook that writes structured zap
// logs for every API call.
package zaplog

import (
	"go.uber.org/zap"

	"github.com/petal-labs/showroom/core"
)

// Hook logs call lifecycle events.
type Hook struct {
	logger *zap.Logger
}

var (
	_ core.TelemetryHook = (*Hook)(nil)
	_ core.RetryObserver = (*Hook)(nil)
)

// New returns a Hook writing to logger. A nil logger discards everything.
func New(logger *zap.Logger) *Hook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hook{logger: logger.With(zap.String("component", "showroom"))}
}

// OnRequestStart logs at debug level.
func (h *Hook) OnRequestStart(e core.RequestStartEvent) {
	h.logger.Debug("call started",
		zap.String("call_id", e.CallID),
		zap.String("op", e.Op),
		zap.String("method", e.Method),
		zap.String("path", e.Path),
	)
}

// OnRequestEnd logs successful calls at info level and failures at warn.
func (h *Hook) OnRequestEnd(e core.RequestEndEvent) {
	fields := []zap.Field{
		zap.String("call_id", e.CallID),
		zap.String("op", e.Op),
		zap.String("method", e.Method),
		zap.String("path", e.Path),
		zap.Int("status", e.Status),
		zap.Int("attempts", e.Attempts),
		zap.Duration("duration", e.Duration()),
	}
	if e.Stream {
		fields = append(fields, zap.Bool("stream", true))
	}
	if e.Err != nil {
		h.logger.Warn("call failed", append(fields,
			zap.String("error_kind", core.Kind(e.Err)),
			zap.Error(e.Err),
		)...)
		return
	}
	h.logger.Info("call completed", fields...)
}

// OnRetry logs each scheduled retry.
func (h *Hook) OnRetry(e core.RetryEvent) {
	h.logger.Info("retrying call",
		zap.String("call_id", e.CallID),
		zap.String("op", e.Op),
		zap.Int("attempt", e.Attempt),
		zap.Duration("delay", e.Delay),
		zap.String("error_kind", core.Kind(e.Err)),
	)
}
