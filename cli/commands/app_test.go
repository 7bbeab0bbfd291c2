package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/petal-labs/showroom/cli/config"
	"github.com/petal-labs/showroom/cli/keystore"
	"github.com/petal-labs/showroom/core"
	"github.com/petal-labs/showroom/showroomtest"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type memKeystore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemKeystore(kv ...string) *memKeystore {
	ks := &memKeystore{keys: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		ks.keys[kv[i]] = kv[i+1]
	}
	return ks
}

func (m *memKeystore) Set(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[name] = value
	return nil
}

func (m *memKeystore) Get(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.keys[name]
	if !ok {
		return "", &keystore.ErrKeyNotFound{Name: name}
	}
	return v, nil
}

func (m *memKeystore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[name]; !ok {
		return &keystore.ErrKeyNotFound{Name: name}
	}
	delete(m.keys, name)
	return nil
}

func (m *memKeystore) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for k := range m.keys {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

type harness struct {
	cfg   *config.Config
	ks    *memKeystore
	stdin string
}

type result struct {
	stdout string
	stderr string
	err    error
}

func (r result) code() int {
	if r.err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(r.err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(core.EnvAPIKey, "")
	t.Setenv(core.EnvTenantID, "")
	t.Setenv(core.EnvBaseURL, "")
}

// newHarness points the default profile at srv with valid credentials.
func newHarness(t *testing.T, baseURL string) *harness {
	t.Helper()
	clearEnv(t)
	return &harness{
		cfg: &config.Config{Profiles: map[string]config.Profile{
			"default": {BaseURL: baseURL, TenantID: showroomtest.DefaultTenantID},
		}},
		ks: newMemKeystore("default", showroomtest.DefaultAPIKey),
	}
}

func (h *harness) run(t *testing.T, args ...string) result {
	t.Helper()
	return h.runContext(context.Background(), t, args...)
}

func (h *harness) runContext(ctx context.Context, t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := NewApp(
		WithIO(strings.NewReader(h.stdin), &stdout, &stderr),
		WithConfigLoader(func(string) (*config.Config, error) { return h.cfg, nil }),
		WithKeystoreFactory(func() (keystore.Keystore, error) { return h.ks, nil }),
		WithEnvFiles(),
		WithClientOptions(core.WithSleepFunc(func(ctx context.Context, d time.Duration) error { return ctx.Err() })),
	)
	app.SetArgs(args)
	err := app.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

func TestProductsList(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "products", "list")
	if r.err != nil {
		t.Fatalf("err = %v, stderr = %s", r.err, r.stderr)
	}
	for _, want := range []string{"SKU", "Oak Dining Chair", "deleted", "page 1 of 1 (6 products)"} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, r.stdout)
		}
	}
}

func TestProductsListJSON(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "--json", "products", "list", "--limit", "4", "--page", "2")
	if r.err != nil {
		t.Fatal(r.err)
	}
	var page core.Page[core.Product]
	if err := json.Unmarshal([]byte(r.stdout), &page); err != nil {
		t.Fatalf("stdout is not a page: %v\n%s", err, r.stdout)
	}
	if len(page.Items) != 2 || page.Pagination.Page != 2 || page.Pagination.HasMore {
		t.Errorf("page = %+v", page.Pagination)
	}
}

func TestProductsListAll(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "--json", "products", "list", "--all", "--limit", "2")
	if r.err != nil {
		t.Fatal(r.err)
	}
	var items []core.Product
	if err := json.Unmarshal([]byte(r.stdout), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 6 {
		t.Errorf("items = %d, want 6", len(items))
	}
	if n := srv.Calls(showroomtest.RouteList); n != 3 {
		t.Errorf("list calls = %d, want 3", n)
	}
}

func TestProductsListInvalidFlags(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "products", "list", "--sort-order", "sideways")
	if r.code() != ExitValidation {
		t.Errorf("exit = %d, want %d", r.code(), ExitValidation)
	}
	if n := srv.Calls(showroomtest.RouteList); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestProductsGet(t *testing.T) {
	srv := showroomtest.NewServer(t)
	h := newHarness(t, srv.URL)

	r := h.run(t, "products", "get", showroomtest.GlassDoorID.String())
	if r.err != nil {
		t.Fatal(r.err)
	}
	if !strings.Contains(r.stdout, showroomtest.GlassDoorID.String()) || !strings.Contains(r.stdout, "active") {
		t.Errorf("stdout = %s", r.stdout)
	}

	if r := h.run(t, "products", "get", "not-a-uuid"); r.code() != ExitValidation {
		t.Errorf("bad id exit = %d, want %d", r.code(), ExitValidation)
	}
	if n := srv.Calls(showroomtest.RouteGet); n != 1 {
		t.Errorf("calls = %d, bad id should not reach the server", n)
	}

	r = h.run(t, "products", "get", "00000000-0000-4000-8000-000000000001")
	if r.code() != ExitNotFound {
		t.Errorf("unknown id exit = %d, want %d", r.code(), ExitNotFound)
	}
}

// ---------------------------------------------------------------------------
// Discovery
// ---------------------------------------------------------------------------

func TestDiscover(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "discover", "modern", "glass", "door", "--filter", `{"in_stock": true}`, "--top-n", "3")
	if r.err != nil {
		t.Fatalf("err = %v, stderr = %s", r.err, r.stderr)
	}
	if !strings.Contains(r.stdout, "GD-PIV-01") || strings.Contains(r.stdout, "GD-SLD-02") {
		t.Errorf("stdout = %s", r.stdout)
	}
	call := srv.LastDiscovery()
	if call == nil || call.Query != "modern glass door" || call.TopN != 3 {
		t.Errorf("LastDiscovery() = %+v", call)
	}
}

func TestDiscoverJSONAndNoConfidence(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "--json", "discover", "lamp", "--no-confidence")
	if r.err != nil {
		t.Fatal(r.err)
	}
	var out struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal([]byte(r.stdout), &out); err != nil {
		t.Fatal(err)
	}
	if call := srv.LastDiscovery(); call == nil || call.IncludeConfidenceMessage {
		t.Errorf("LastDiscovery() = %+v", call)
	}
}

func TestDiscoverBadFilter(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "discover", "door", "--filter", `[{"key":"x","operator":"~","value":1}]`)
	if r.code() != ExitValidation {
		t.Errorf("exit = %d, want %d", r.code(), ExitValidation)
	}
	if srv.Calls(showroomtest.RouteDiscovery) != 0 {
		t.Error("invalid filter should not reach the server")
	}
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

func TestChat(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "chat", "oak", "chairs")
	if r.err != nil {
		t.Fatal(r.err)
	}
	if got := strings.TrimSpace(r.stdout); got != "Here are some products related to: oak chairs" {
		t.Errorf("stdout = %q", got)
	}
}

func TestChatStream(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "chat", "--stream", "--session", "s-42", "--product-limit", "3", "lamps")
	if r.err != nil {
		t.Fatalf("err = %v, stderr = %s", r.err, r.stderr)
	}
	if r.stdout != "Here are some products related to: lamps\n" {
		t.Errorf("stdout = %q", r.stdout)
	}
	call := srv.LastStream()
	if call == nil || call.SessionID != "s-42" {
		t.Errorf("LastStream() = %+v", call)
	}
}

func TestChatStreamJSON(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "--json", "chat", "--stream", "sofas")
	if r.err != nil {
		t.Fatal(r.err)
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(r.stdout), &out); err != nil {
		t.Fatal(err)
	}
	if out["sessionId"] == "" || out["reply"] != "Here are some products related to: sofas" {
		t.Errorf("out = %v", out)
	}
}

func TestChatStreamServerError(t *testing.T) {
	srv := showroomtest.NewServer(t, showroomtest.WithStreamScript(
		`data: {"type":"connected"}`+"\n\n",
		`data: {"type":"error","error":"model unavailable"}`+"\n\n",
	))
	r := newHarness(t, srv.URL).run(t, "chat", "--stream", "hi")
	if r.code() != ExitAPI {
		t.Errorf("exit = %d, want %d (stderr %s)", r.code(), ExitAPI, r.stderr)
	}
}

// ---------------------------------------------------------------------------
// Errors and credentials
// ---------------------------------------------------------------------------

func TestMissingAPIKey(t *testing.T) {
	srv := showroomtest.NewServer(t)
	h := newHarness(t, srv.URL)
	h.ks = newMemKeystore()

	r := h.run(t, "products", "list")
	if r.code() != ExitAuth {
		t.Errorf("exit = %d, want %d", r.code(), ExitAuth)
	}
	if !strings.Contains(r.stderr, "showroom keys set default") {
		t.Errorf("stderr = %s", r.stderr)
	}
}

func TestAPIKeyFromEnvAndKeyRef(t *testing.T) {
	srv := showroomtest.NewServer(t)
	h := newHarness(t, srv.URL)
	h.ks = newMemKeystore("acme", showroomtest.DefaultAPIKey)
	h.cfg.Profiles["default"] = config.Profile{BaseURL: srv.URL, TenantID: showroomtest.DefaultTenantID, APIKeyRef: "acme"}

	if r := h.run(t, "products", "list"); r.err != nil {
		t.Errorf("api_key_ref: %v", r.err)
	}

	h.ks = newMemKeystore()
	t.Setenv(core.EnvAPIKey, showroomtest.DefaultAPIKey)
	if r := h.run(t, "products", "list"); r.err != nil {
		t.Errorf("env key: %v", r.err)
	}
}

func TestWrongCredentials(t *testing.T) {
	srv := showroomtest.NewServer(t)
	h := newHarness(t, srv.URL)

	h.ks = newMemKeystore("default", "wrong")
	if r := h.run(t, "products", "list"); r.code() != ExitAuth {
		t.Errorf("bad key exit = %d, want %d", r.code(), ExitAuth)
	}

	h.ks = newMemKeystore("default", showroomtest.DefaultAPIKey)
	if r := h.run(t, "--tenant", "other", "products", "list"); r.code() != ExitAuth {
		t.Errorf("bad tenant exit = %d, want %d", r.code(), ExitAuth)
	}
}

func TestServerErrorsExhaustRetries(t *testing.T) {
	srv := showroomtest.NewServer(t)
	srv.FailNext(showroomtest.RouteList, http.StatusServiceUnavailable, 3)

	r := newHarness(t, srv.URL).run(t, "products", "list")
	if r.code() != ExitAPI {
		t.Errorf("exit = %d, want %d", r.code(), ExitAPI)
	}
	if n := srv.Calls(showroomtest.RouteList); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestNetworkError(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	r := newHarness(t, url).run(t, "products", "list")
	if r.code() != ExitNetwork {
		t.Errorf("exit = %d, want %d (stderr %s)", r.code(), ExitNetwork, r.stderr)
	}
}

func TestJSONErrorOutput(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "--json", "products", "get", "00000000-0000-4000-8000-000000000001")
	if r.code() != ExitNotFound {
		t.Fatalf("exit = %d", r.code())
	}
	var out struct {
		Error struct {
			Type      string `json:"type"`
			Status    int    `json:"status"`
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(r.stderr), &out); err != nil {
		t.Fatalf("stderr is not JSON: %v\n%s", err, r.stderr)
	}
	if out.Error.Type != "not_found" || out.Error.Status != 404 || out.Error.Code != "product_not_found" || out.Error.RequestID == "" {
		t.Errorf("error = %+v", out.Error)
	}
}

func TestUnknownProfile(t *testing.T) {
	srv := showroomtest.NewServer(t)
	r := newHarness(t, srv.URL).run(t, "--profile", "missing", "products", "list")
	if r.code() != ExitValidation {
		t.Errorf("exit = %d, want %d", r.code(), ExitValidation)
	}
}

func TestHealth(t *testing.T) {
	srv := showroomtest.NewServer(t)
	h := newHarness(t, srv.URL)
	h.ks = newMemKeystore()

	r := h.run(t, "health")
	if r.err != nil {
		t.Fatal(r.err)
	}
	if !strings.Contains(r.stdout, "ok") {
		t.Errorf("stdout = %s", r.stdout)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{core.Invalid("limit", "too big"), ExitValidation},
		{&core.APIError{Status: 401, Err: core.ErrAuth}, ExitAuth},
		{&core.APIError{Status: 404, Err: core.ErrNotFound}, ExitNotFound},
		{&core.APIError{Err: core.ErrTransport}, ExitNetwork},
		{&core.APIError{Err: core.ErrCancelled}, ExitNetwork},
		{&core.APIError{Status: 500, Err: core.ErrServer}, ExitAPI},
		{&core.APIError{Err: core.ErrDecode}, ExitAPI},
		{exitWithCode(ExitNotFound, errors.New("x")), ExitNotFound},
		{errors.New("unknown flag: --nope"), ExitValidation},
	}
	for _, tt := range tests {
		if got := exitCodeFor(tt.err); got != tt.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
