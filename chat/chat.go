// Package chat talks to the product assistant, either one reply at a time
// or as a stream of server-sent events.
package chat

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/petal-labs/showroom/core"
	"github.com/petal-labs/showroom/internal/sse"
)

// Request limits enforced before dispatch.
const (
	MaxMessageLength   = 2000
	MaxSessionIDLength = 100
	MaxProductLimit    = 20
)

const (
	sendPath   = "/api/products-chat"
	streamPath = "/api/products-chat/stream"
)

// Client is the chat resource client. It is safe for concurrent use.
type Client struct {
	client   *core.Client
	maxFrame int
}

// Option configures a chat Client.
type Option func(*Client)

// WithMaxFrameSize bounds a single stream frame. Larger frames end the
// stream with ErrDecode.
func WithMaxFrameSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxFrame = n
		}
	}
}

// New returns a chat client backed by c.
func New(c *core.Client, opts ...Option) *Client {
	cc := &Client{client: c, maxFrame: sse.DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

// Send asks the assistant a single question and returns its reply.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	if err := validateMessage(message); err != nil {
		return "", err
	}

	var reply string
	err := c.client.DoJSON(ctx, &core.Request{
		Op:     "chat.send",
		Method: http.MethodPost,
		Path:   sendPath,
		JSON:   sendRequest{Message: message},
	}, &reply)
	if err != nil {
		return "", err
	}
	return reply, nil
}

type sendRequest struct {
	Message string `json:"message"`
}

// StreamRequest is the body of a streaming chat turn.
type StreamRequest struct {
	Message         string             `json:"message"`
	SessionID       string             `json:"sessionId"`
	ChatHistory     []core.ChatMessage `json:"chatHistory,omitempty"`
	UserID          string             `json:"userId,omitempty"`
	TenantID        string             `json:"tenantId,omitempty"`
	IncludeProducts *bool              `json:"includeProducts,omitempty"`
	ProductLimit    *int               `json:"productLimit,omitempty"`
}

// Validate checks the request locally.
func (r *StreamRequest) Validate() error {
	if r == nil {
		return core.Invalid("request", "must not be nil")
	}
	if err := validateMessage(r.Message); err != nil {
		return err
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return core.Invalid("sessionId", "must not be empty")
	}
	if n := utf8.RuneCountInString(r.SessionID); n > MaxSessionIDLength {
		return core.Invalid("sessionId", "must be at most %d characters, got %d", MaxSessionIDLength, n)
	}
	if r.ProductLimit != nil && (*r.ProductLimit < 1 || *r.ProductLimit > MaxProductLimit) {
		return core.Invalid("productLimit", "must be between 1 and %d, got %d", MaxProductLimit, *r.ProductLimit)
	}
	return core.ValidateHistory("chatHistory", r.ChatHistory)
}

// Stream starts a streaming turn. The returned Stream must be closed, or
// drained through Events or Collect. Only connecting is retried; a stream
// that fails midway is not restarted. Calling Stream again starts a new
// turn.
func (c *Client) Stream(ctx context.Context, req *StreamRequest) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.client.OpenStream(ctx, &core.Request{
		Op:     "chat.stream",
		Method: http.MethodPost,
		Path:   streamPath,
		JSON:   req,
	})
	if err != nil {
		return nil, err
	}
	return newStream(ctx, "chat.stream", resp.Stream, c.maxFrame), nil
}

func validateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return core.Invalid("message", "must not be empty")
	}
	if n := utf8.RuneCountInString(message); n > MaxMessageLength {
		return core.Invalid("message", "must be at most %d characters, got %d", MaxMessageLength, n)
	}
	return nil
}
