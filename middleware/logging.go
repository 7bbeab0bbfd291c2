package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/petal-labs/showroom/core"
)

// WithLogging logs every HTTP exchange at debug level, and failed ones at
// warn. Only the method, path, status, duration and request id are logged;
// query strings, headers and bodies never are.
func WithLogging(logger *zap.Logger) core.Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next core.RoundTripFunc) core.RoundTripFunc {
		return func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next(req)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Duration("duration", time.Since(start)),
			}
			switch {
			case err != nil:
				logger.Warn("http request failed", append(fields, zap.Error(err))...)
			case resp.StatusCode >= 400:
				logger.Warn("http request",
					append(fields,
						zap.Int("status", resp.StatusCode),
						zap.String("request_id", resp.Header.Get("x-request-id")),
					)...)
			default:
				logger.Debug("http request",
					append(fields,
						zap.Int("status", resp.StatusCode),
						zap.String("request_id", resp.Header.Get("x-request-id")),
					)...)
			}
			return resp, err
		}
	}
}
