package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults applied by NewClient.
const (
	DefaultBaseURL       = "http://localhost:8787"
	DefaultTimeout       = 60 * time.Second
	DefaultStreamTimeout = 5 * time.Minute
	DefaultUserAgent     = "showroom-go"
)

// Environment variables read by NewClientFromEnv.
const (
	EnvAPIKey   = "SHOWROOM_API_KEY"
	EnvTenantID = "SHOWROOM_TENANT_ID"
	EnvBaseURL  = "SHOWROOM_BASE_URL"
)

// Config holds transport settings for a Client.
type Config struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string

	// HTTPClient is the HTTP client to use. Its own Timeout should be zero;
	// deadlines are applied per call through contexts so streams are not cut.
	HTTPClient *http.Client

	// Headers contains optional extra headers. Credential headers set here
	// are ignored.
	Headers http.Header

	UserAgent string

	// Timeout bounds each attempt of a standard call.
	Timeout time.Duration

	// StreamTimeout bounds a whole stream, measured from connection start.
	StreamTimeout time.Duration
}

// Client executes authenticated calls against the API. It holds the
// AuthContext and configuration; resource clients (catalog, discovery,
// chat) are built on top of it. Client is safe for concurrent use.
type Client struct {
	auth       *AuthContext
	cfg        Config
	transport  *Transport
	middleware []Middleware
	retry      RetryPolicy
	telemetry  TelemetryHook
	sleep      SleepFunc
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a Client. It fails with ErrConfig when auth is nil or
// the base URL is not absolute.
func NewClient(auth *AuthContext, opts ...ClientOption) (*Client, error) {
	if auth == nil {
		return nil, fmt.Errorf("%w: auth context is required", ErrConfig)
	}
	c := &Client{
		auth: auth,
		cfg: Config{
			BaseURL:       DefaultBaseURL,
			HTTPClient:    http.DefaultClient,
			UserAgent:     DefaultUserAgent,
			Timeout:       DefaultTimeout,
			StreamTimeout: DefaultStreamTimeout,
		},
		retry:     DefaultRetryPolicy(),
		telemetry: NoopTelemetryHook{},
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base url %q must be absolute", ErrConfig, c.cfg.BaseURL)
	}

	c.transport = NewTransport(c.cfg.BaseURL, c.cfg.HTTPClient, c.middleware...)
	return c, nil
}

// NewClientFromEnv creates a Client from SHOWROOM_API_KEY,
// SHOWROOM_TENANT_ID and, if set, SHOWROOM_BASE_URL. Options passed in
// take precedence over the environment.
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	auth, err := NewAuthContext(os.Getenv(EnvAPIKey), os.Getenv(EnvTenantID))
	if err != nil {
		return nil, fmt.Errorf("%w (set %s and %s)", err, EnvAPIKey, EnvTenantID)
	}
	if base := os.Getenv(EnvBaseURL); base != "" {
		opts = append([]ClientOption{WithBaseURL(base)}, opts...)
	}
	return NewClient(auth, opts...)
}

// WithBaseURL sets the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.cfg.BaseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.cfg.HTTPClient = hc
		}
	}
}

// WithHeader adds an extra header to every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		if c.cfg.Headers == nil {
			c.cfg.Headers = make(http.Header)
		}
		c.cfg.Headers.Set(key, value)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.cfg.UserAgent = ua
	}
}

// WithTimeout sets the per-attempt deadline for standard calls.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.cfg.Timeout = d
		}
	}
}

// WithStreamTimeout sets the whole-stream deadline.
func WithStreamTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.cfg.StreamTimeout = d
		}
	}
}

// WithRetryPolicy sets the retry policy for the client.
func WithRetryPolicy(r RetryPolicy) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.retry = r
		}
	}
}

// WithTelemetry sets the telemetry hook for the client.
func WithTelemetry(h TelemetryHook) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.telemetry = h
		}
	}
}

// WithMiddleware appends HTTP middleware around every exchange.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithSleepFunc replaces the backoff wait, mainly for tests.
func WithSleepFunc(fn SleepFunc) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// Auth returns the client's credentials.
func (c *Client) Auth() *AuthContext {
	return c.auth
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Do executes req with credentials, per-attempt timeout and retry, and
// returns the 2xx response or a classified error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	callID, start := c.begin(ctx, req)
	header := c.headers(req)
	r := c.newRetrier(callID, req.Op)

	var lastStatus int
	resp, err := Execute(ctx, r, func(ctx context.Context) (*Response, error) {
		actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		resp, err := c.transport.Send(actx, req, header)
		if err != nil {
			return nil, err
		}
		lastStatus = resp.Status
		if !resp.OK() {
			return nil, MapResponse(req.Op, resp.Status, resp.Body, resp.RequestID())
		}
		return resp, nil
	})
	err = annotate(err, req.Op, r.Attempts())

	c.telemetry.OnRequestEnd(RequestEndEvent{
		CallID:   callID,
		Op:       req.Op,
		Method:   req.Method,
		Path:     req.Path,
		Status:   lastStatus,
		Attempts: r.Attempts(),
		Start:    start,
		End:      time.Now(),
		Err:      err,
	})
	return resp, err
}

// DoJSON executes req and decodes the response body into out.
func (c *Client) DoJSON(ctx context.Context, req *Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return DecodeError(req.Op, err)
	}
	return nil
}

// OpenStream executes req and returns a response whose Stream is open.
// Only the connection phase is retried. The stream is bounded by
// StreamTimeout from the moment the first attempt starts; closing
// Response.Stream releases the connection.
func (c *Client) OpenStream(ctx context.Context, req *Request) (*Response, error) {
	sreq := *req
	sreq.Stream = true

	callID, start := c.begin(ctx, &sreq)
	header := c.headers(&sreq)
	header.Set("Accept", "text/event-stream")
	r := c.newRetrier(callID, sreq.Op)

	sctx, cancel := context.WithTimeout(ctx, c.cfg.StreamTimeout)
	var lastStatus int
	resp, err := Execute(sctx, r, func(ctx context.Context) (*Response, error) {
		resp, err := c.transport.Send(ctx, &sreq, header)
		if err != nil {
			return nil, err
		}
		lastStatus = resp.Status
		if !resp.OK() {
			return nil, MapResponse(sreq.Op, resp.Status, resp.Body, resp.RequestID())
		}
		return resp, nil
	})
	if err != nil {
		cancel()
		err = annotate(err, sreq.Op, r.Attempts())
		c.telemetry.OnRequestEnd(RequestEndEvent{
			CallID: callID, Op: sreq.Op, Method: sreq.Method, Path: sreq.Path,
			Status: lastStatus, Attempts: r.Attempts(), Stream: true,
			Start: start, End: time.Now(), Err: err,
		})
		return nil, err
	}

	attempts := r.Attempts()
	resp.Stream = &streamBody{
		body:   resp.Stream,
		cancel: cancel,
		onClose: func(streamErr, readErr error) {
			if streamErr == nil {
				streamErr = MapTransportError(ctx, sreq.Op, readErr)
			}
			c.telemetry.OnRequestEnd(RequestEndEvent{
				CallID: callID, Op: sreq.Op, Method: sreq.Method, Path: sreq.Path,
				Status: lastStatus, Attempts: attempts, Stream: true,
				Start: start, End: time.Now(), Err: streamErr,
			})
		},
	}
	return resp, nil
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
}

// Health checks service liveness. It sends no credentials.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	err := c.DoJSON(ctx, &Request{
		Op:     "health",
		Method: http.MethodGet,
		Path:   "/health",
		NoAuth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) begin(ctx context.Context, req *Request) (string, time.Time) {
	callID := uuid.NewString()
	start := time.Now()
	c.telemetry.OnRequestStart(RequestStartEvent{
		Context: ctx,
		CallID:  callID,
		Op:      req.Op,
		Method:  req.Method,
		Path:    req.Path,
		Start:   start,
	})
	return callID, start
}

func (c *Client) newRetrier(callID, op string) *Retrier {
	r := NewRetrier(c.retry, c.sleep)
	if obs, ok := c.telemetry.(RetryObserver); ok {
		r.onRetry = func(e RetryEvent) {
			e.CallID = callID
			e.Op = op
			obs.OnRetry(e)
		}
	}
	return r
}

// headers merges credentials first, then configured and request headers.
// Credential headers cannot be overridden.
func (c *Client) headers(req *Request) http.Header {
	h := make(http.Header)
	if !req.NoAuth {
		for key, values := range c.auth.Headers() {
			h[key] = values
		}
	}
	for _, extra := range []http.Header{c.cfg.Headers, req.Header} {
		for key, values := range extra {
			if isAuthHeader(key) {
				continue
			}
			for _, v := range values {
				h.Add(key, v)
			}
		}
	}
	if c.cfg.UserAgent != "" {
		h.Set("User-Agent", c.cfg.UserAgent)
	}
	if h.Get("Accept") == "" {
		h.Set("Accept", "application/json")
	}
	return h
}

func annotate(err error, op string, attempts int) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Op == "" {
			apiErr.Op = op
		}
		apiErr.Attempts = attempts
	}
	return err
}

// StreamCloser is implemented by Response.Stream for streams opened with
// OpenStream. CloseWithError closes the stream and reports err as the
// outcome of the call, in place of any read failure seen.
type StreamCloser interface {
	io.ReadCloser
	CloseWithError(err error) error
}

// streamBody releases the stream context and reports telemetry on Close.
type streamBody struct {
	body    io.ReadCloser
	cancel  context.CancelFunc
	onClose func(streamErr, readErr error)

	mu      sync.Mutex
	readErr error
	once    sync.Once
}

func (b *streamBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if err != nil && err != io.EOF {
		b.mu.Lock()
		if b.readErr == nil {
			b.readErr = err
		}
		b.mu.Unlock()
	}
	return n, err
}

func (b *streamBody) Close() error {
	return b.CloseWithError(nil)
}

func (b *streamBody) CloseWithError(streamErr error) error {
	var err error
	b.once.Do(func() {
		err = b.body.Close()
		b.cancel()
		b.mu.Lock()
		readErr := b.readErr
		b.mu.Unlock()
		b.onClose(streamErr, readErr)
	})
	return err
}

var _ StreamCloser = (*streamBody)(nil)
