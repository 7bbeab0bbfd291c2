// Package showroomtest provides an in-memory implementation of the
// products API for tests and local development.
//
// The fake serves the same routes, headers, error shapes and event stream
// as the real service. It also records calls and can fail the next N
// requests to a route.
package showroomtest

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/petal-labs/showroom/core"
)

// Credentials accepted by a Fake unless WithCredentials is used.
const (
	DefaultAPIKey   = "test-key"
	DefaultTenantID = "test-tenant"
)

// Route names a fake endpoint for fault injection and call counting.
type Route string

const (
	RouteHealth    Route = "health"
	RouteList      Route = "catalog.list"
	RouteGet       Route = "catalog.get"
	RouteDiscovery Route = "discovery"
	RouteChat      Route = "chat"
	RouteStream    Route = "chat.stream"
)

// Hit is a discovery result served by the fake.
type Hit struct {
	Product    core.Product
	Similarity float64
}

// Fake is an http.Handler implementing the products API. It is safe for
// concurrent use.
type Fake struct {
	router chi.Router

	mu         sync.Mutex
	apiKey     string
	tenantID   string
	products   []core.Product
	hits       []Hit
	confidence *string
	reply      func(message string) string
	script     []string
	chunkDelay time.Duration
	faults     map[Route][]int
	calls      map[Route]int

	lastDiscovery *DiscoveryCall
	lastStream    *StreamCall
}

// Option configures a Fake.
type Option func(*Fake)

// WithCredentials sets the only accepted api key and tenant id.
func WithCredentials(apiKey, tenantID string) Option {
	return func(f *Fake) {
		f.apiKey = apiKey
		f.tenantID = tenantID
	}
}

// WithProducts replaces the catalog. The default is SampleProducts.
func WithProducts(products ...core.Product) Option {
	return func(f *Fake) {
		f.products = append([]core.Product(nil), products...)
	}
}

// WithDiscoveryResults makes every search return hits, in order, with the
// given confidence message. Without it results are ranked from the catalog.
func WithDiscoveryResults(confidence *string, hits ...Hit) Option {
	return func(f *Fake) {
		f.hits = append([]Hit{}, hits...)
		f.confidence = confidence
	}
}

// WithChatReply sets how the assistant answers a message.
func WithChatReply(fn func(message string) string) Option {
	return func(f *Fake) {
		if fn != nil {
			f.reply = fn
		}
	}
}

// WithStreamScript makes the stream route write frames verbatim, each
// followed by a flush, instead of generating events from the chat reply.
func WithStreamScript(frames ...string) Option {
	return func(f *Fake) {
		f.script = frames
	}
}

// WithChunkDelay pauses between stream frames.
func WithChunkDelay(d time.Duration) Option {
	return func(f *Fake) {
		f.chunkDelay = d
	}
}

// New returns a Fake seeded with SampleProducts.
func New(opts ...Option) *Fake {
	f := &Fake{
		apiKey:   DefaultAPIKey,
		tenantID: DefaultTenantID,
		products: SampleProducts(),
		reply:    defaultReply,
		faults:   make(map[Route][]int),
		calls:    make(map[Route]int),
	}
	for _, opt := range opts {
		opt(f)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestIDHeader)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", f.route(RouteHealth, false, f.health))
	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog/products", f.route(RouteList, true, f.listProducts))
		r.Get("/catalog/products/{id}", f.route(RouteGet, true, f.getProduct))
		r.Post("/discovery", f.route(RouteDiscovery, true, f.discover))
		r.Post("/products-chat", f.route(RouteChat, true, f.chat))
		r.Post("/products-chat/stream", f.route(RouteStream, true, f.chatStream))
	})
	f.router = r
	return f
}

// ServeHTTP implements http.Handler.
func (f *Fake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.router.ServeHTTP(w, r)
}

// AddProduct appends p to the catalog.
func (f *Fake) AddProduct(p core.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = append(f.products, p)
}

// Products returns a copy of the catalog.
func (f *Fake) Products() []core.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Product(nil), f.products...)
}

// FailNext makes the next times requests to route fail with status.
func (f *Fake) FailNext(route Route, status, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < times; i++ {
		f.faults[route] = append(f.faults[route], status)
	}
}

// Calls returns how many requests reached route, including failed ones.
func (f *Fake) Calls(route Route) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// LastDiscovery returns the most recent search request, or nil.
func (f *Fake) LastDiscovery() *DiscoveryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastDiscovery
}

// LastStream returns the most recent stream request, or nil.
func (f *Fake) LastStream() *StreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastStream
}

// route counts the call, applies injected faults and checks credentials
// before running h.
func (f *Fake) route(name Route, authenticated bool, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[name]++
		status := 0
		if queue := f.faults[name]; len(queue) > 0 {
			status, f.faults[name] = queue[0], queue[1:]
		}
		apiKey, tenantID := f.apiKey, f.tenantID
		f.mu.Unlock()

		if status != 0 {
			writeAPIError(w, status, "injected_fault", http.StatusText(status))
			return
		}
		if authenticated {
			if r.Header.Get(core.HeaderAPIKey) != apiKey {
				writeAPIError(w, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
				return
			}
			if r.Header.Get(core.HeaderTenantID) != tenantID {
				writeAPIError(w, http.StatusForbidden, "tenant_forbidden", "Tenant access denied")
				return
			}
		}
		h(w, r)
	}
}

func (f *Fake) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.HealthStatus{Status: "ok"})
}

func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			w.Header().Set("x-request-id", id)
		}
		next.ServeHTTP(w, r)
	})
}
