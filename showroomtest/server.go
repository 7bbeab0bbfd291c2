package showroomtest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/petal-labs/showroom/core"
)

// Server is a Fake listening on a local HTTP server that is shut down when
// the test ends.
type Server struct {
	*Fake
	URL string

	srv *httptest.Server
}

// NewServer starts a Fake for the duration of tb.
func NewServer(tb testing.TB, opts ...Option) *Server {
	tb.Helper()
	f := New(opts...)
	srv := httptest.NewServer(f)
	tb.Cleanup(srv.Close)
	return &Server{Fake: f, URL: srv.URL, srv: srv}
}

// Client returns a core.Client authenticated against s. Retry backoff does
// not sleep; opts are applied last.
func (s *Server) Client(tb testing.TB, opts ...core.ClientOption) *core.Client {
	tb.Helper()
	s.mu.Lock()
	apiKey, tenantID := s.apiKey, s.tenantID
	s.mu.Unlock()

	auth, err := core.NewAuthContext(apiKey, tenantID)
	if err != nil {
		tb.Fatalf("showroomtest: %v", err)
	}
	base := []core.ClientOption{
		core.WithBaseURL(s.URL),
		core.WithHTTPClient(s.srv.Client()),
		core.WithSleepFunc(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	}
	c, err := core.NewClient(auth, append(base, opts...)...)
	if err != nil {
		tb.Fatalf("showroomtest: %v", err)
	}
	return c
}
