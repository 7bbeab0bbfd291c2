// Package catalog lists and fetches products.
package catalog

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/petal-labs/showroom/core"
)

const productsPath = "/api/catalog/products"

// Paging defaults and limits.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// SortOrder is the direction of a sorted listing.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListParams selects a page of products. Zero Page and Limit take the
// defaults; empty strings are not sent.
type ListParams struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortOrder
	Search    string
}

// Validate checks the parameters locally.
func (p ListParams) Validate() error {
	if p.Page < 0 {
		return core.Invalid("page", "must be at least 1, got %d", p.Page)
	}
	if p.Limit < 0 || p.Limit > MaxLimit {
		return core.Invalid("limit", "must be between 1 and %d, got %d", MaxLimit, p.Limit)
	}
	if p.SortOrder != "" && p.SortOrder != SortAsc && p.SortOrder != SortDesc {
		return core.Invalid("sort_order", "must be %q or %q, got %q", SortAsc, SortDesc, p.SortOrder)
	}
	return nil
}

func (p ListParams) withDefaults() ListParams {
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	return p
}

func (p ListParams) query() url.Values {
	return url.Values{
		"page":       {strconv.Itoa(p.Page)},
		"limit":      {strconv.Itoa(p.Limit)},
		"sort_by":    {p.SortBy},
		"sort_order": {string(p.SortOrder)},
		"search":     {p.Search},
	}
}

// Client is the catalog resource client. It is safe for concurrent use.
type Client struct {
	client *core.Client
	cache  *expirable.LRU[uuid.UUID, core.Product]
}

// Option configures a catalog Client.
type Option func(*Client)

// WithProductCache keeps up to size products fetched by Get for ttl.
// Only successful lookups are cached.
func WithProductCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		if size > 0 {
			c.cache = expirable.NewLRU[uuid.UUID, core.Product](size, nil, ttl)
		}
	}
}

// New returns a catalog client backed by c.
func New(c *core.Client, opts ...Option) *Client {
	cc := &Client{client: c}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

// List returns one page of products. The page is checked against the
// pagination invariants; a page that breaks them is reported as ErrDecode.
func (c *Client) List(ctx context.Context, params ListParams) (*core.Page[core.Product], error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params = params.withDefaults()

	const op = "catalog.list"
	var page core.Page[core.Product]
	err := c.client.DoJSON(ctx, &core.Request{
		Op:     op,
		Method: http.MethodGet,
		Path:   productsPath,
		Query:  params.query(),
	}, &page)
	if err != nil {
		return nil, err
	}

	if err := page.Pagination.Validate(len(page.Items)); err != nil {
		return nil, core.DecodeError(op, err)
	}
	for _, p := range page.Items {
		if err := p.Validate(); err != nil {
			return nil, core.DecodeError(op, err)
		}
	}
	return &page, nil
}

// All walks every page starting at params.Page, fetching the next page only
// when the previous one is exhausted. Iteration stops after the first
// error, which is yielded with a zero Product.
func (c *Client) All(ctx context.Context, params ListParams) iter.Seq2[core.Product, error] {
	return func(yield func(core.Product, error) bool) {
		p := params.withDefaults()
		for {
			page, err := c.List(ctx, p)
			if err != nil {
				yield(core.Product{}, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
			if !page.Pagination.HasMore {
				return
			}
			p.Page = page.Pagination.Page + 1
		}
	}
}

// Get fetches one product. A product the server does not know is reported
// as ErrNotFound. Cached products are returned as deep copies.
func (c *Client) Get(ctx context.Context, id uuid.UUID) (*core.Product, error) {
	if id == uuid.Nil {
		return nil, core.Invalid("id", "must not be the nil UUID")
	}
	if c.cache != nil {
		if p, ok := c.cache.Get(id); ok {
			p = p.Clone()
			return &p, nil
		}
	}

	const op = "catalog.get"
	var p core.Product
	err := c.client.DoJSON(ctx, &core.Request{
		Op:     op,
		Method: http.MethodGet,
		Path:   productsPath + "/" + url.PathEscape(id.String()),
	}, &p)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, core.DecodeError(op, err)
	}
	if p.ID != id {
		return nil, core.DecodeError(op, fmt.Errorf("requested product %s, got %s", id, p.ID))
	}

	if c.cache != nil {
		c.cache.Add(id, p.Clone())
	}
	return &p, nil
}
