// Package discovery runs semantic product searches, optionally guided by a
// filter and an image.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/petal-labs/showroom/core"
)

const searchPath = "/api/discovery"

// Result count limits.
const (
	DefaultTopN = 10
	MaxTopN     = 100
)

// Client is the discovery resource client. It is safe for concurrent use.
type Client struct {
	client *core.Client
}

// New returns a discovery client backed by c.
func New(c *core.Client) *Client {
	return &Client{client: c}
}

// SearchRequest describes one search. Zero TopN means DefaultTopN and a nil
// IncludeConfidenceMessage means true.
type SearchRequest struct {
	Query                    string
	Filter                   core.Filter
	Image                    *Image
	ChatHistory              []core.ChatMessage
	Context                  json.RawMessage
	TopN                     int
	IncludeConfidenceMessage *bool
}

// Validate checks the request locally.
func (r *SearchRequest) Validate() error {
	if r == nil {
		return core.Invalid("request", "must not be nil")
	}
	if strings.TrimSpace(r.Query) == "" {
		return core.Invalid("query", "must not be empty")
	}
	if r.TopN < 0 || r.TopN > MaxTopN {
		return core.Invalid("top_n", "must be between 1 and %d, got %d", MaxTopN, r.TopN)
	}
	if err := r.Filter.Validate(); err != nil {
		return err
	}
	if err := core.ValidateHistory("chatHistory", r.ChatHistory); err != nil {
		return err
	}
	if len(r.Context) > 0 && !json.Valid(r.Context) {
		return core.Invalid("context", "must be valid JSON")
	}
	if r.Image != nil {
		return r.Image.Validate()
	}
	return nil
}

func (r *SearchRequest) topN() int {
	if r.TopN == 0 {
		return DefaultTopN
	}
	return r.TopN
}

func (r *SearchRequest) includeConfidence() bool {
	return r.IncludeConfidenceMessage == nil || *r.IncludeConfidenceMessage
}

// Result is a product with its similarity to the query.
type Result struct {
	core.Product
	Similarity float64 `json:"similarity"`
}

// SearchResult holds results in server order.
type SearchResult struct {
	Items             []Result `json:"items"`
	ConfidenceMessage *string  `json:"confidenceMessage"`
}

// Confidence returns the confidence message, or "" when none was sent.
func (r *SearchResult) Confidence() string {
	if r.ConfidenceMessage == nil {
		return ""
	}
	return *r.ConfidenceMessage
}

func (r *SearchResult) validate() error {
	for i, item := range r.Items {
		if err := item.Product.Validate(); err != nil {
			return fmt.Errorf("items[%d]: %w", i, err)
		}
		if item.Similarity < 0 || item.Similarity > 1 {
			return fmt.Errorf("items[%d]: similarity %v outside [0, 1]", i, item.Similarity)
		}
	}
	return nil
}

// Search runs a semantic search. A request whose Image holds raw bytes is
// sent as multipart/form-data; otherwise the body is JSON. Results are
// returned in the order the server ranked them.
func (c *Client) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	creq := &core.Request{
		Op:     "discovery.search",
		Method: http.MethodPost,
		Path:   searchPath,
	}
	if req.Image != nil && req.Image.IsBinary() {
		form, err := formFields(req)
		if err != nil {
			return nil, err
		}
		creq.Form = form
	} else {
		creq.JSON = jsonBody(req)
	}

	var out SearchResult
	if err := c.client.DoJSON(ctx, creq, &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, core.DecodeError(creq.Op, err)
	}
	return &out, nil
}

type searchBody struct {
	Query                    string             `json:"query"`
	Filter                   core.Filter        `json:"filter,omitempty"`
	Image                    string             `json:"image,omitempty"`
	ChatHistory              []core.ChatMessage `json:"chatHistory,omitempty"`
	Context                  json.RawMessage    `json:"context,omitempty"`
	TopN                     int                `json:"top_n"`
	IncludeConfidenceMessage bool               `json:"includeConfidenceMessage"`
}

func jsonBody(req *SearchRequest) searchBody {
	b := searchBody{
		Query:                    req.Query,
		Filter:                   req.Filter,
		ChatHistory:              req.ChatHistory,
		Context:                  req.Context,
		TopN:                     req.topN(),
		IncludeConfidenceMessage: req.includeConfidence(),
	}
	if req.Image != nil {
		b.Image = req.Image.DataURL
	}
	return b
}

func formFields(req *SearchRequest) ([]core.FormField, error) {
	fields := []core.FormField{
		core.TextField("query", req.Query),
		core.TextField("includeConfidenceMessage", strconv.FormatBool(req.includeConfidence())),
		core.TextField("top_n", strconv.Itoa(req.topN())),
	}
	if len(req.Filter) > 0 {
		data, err := json.Marshal(req.Filter)
		if err != nil {
			return nil, core.Invalid("filter", "cannot encode: %v", err)
		}
		fields = append(fields, core.TextField("filter", string(data)))
	}
	if len(req.ChatHistory) > 0 {
		data, err := json.Marshal(req.ChatHistory)
		if err != nil {
			return nil, core.Invalid("chatHistory", "cannot encode: %v", err)
		}
		fields = append(fields, core.TextField("chatHistory", string(data)))
	}
	if len(req.Context) > 0 {
		fields = append(fields, core.TextField("context", string(req.Context)))
	}
	img := req.Image
	return append(fields, core.FileField("image", img.filename(), img.MediaType, img.Data)), nil
}
