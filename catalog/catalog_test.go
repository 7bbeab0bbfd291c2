package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/petal-labs/showroom/core"
	"github.com/petal-labs/showroom/showroomtest"
)

func manyProducts(n int) []core.Product {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]core.Product, n)
	for i := range out {
		out[i] = core.Product{
			ID:        uuid.New(),
			Name:      fmt.Sprintf("Product %03d", i),
			SKU:       fmt.Sprintf("SKU-%03d", i),
			Price:     decimal.NewFromInt(int64(10 + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestListPaginationInvariants(t *testing.T) {
	srv := showroomtest.NewServer(t, showroomtest.WithProducts(manyProducts(45)...))
	c := New(srv.Client(t))

	tests := []struct {
		page, limit int
		wantItems   int
		wantPages   int
		wantMore    bool
	}{
		{1, 20, 20, 3, true},
		{3, 20, 5, 3, false},
		{1, 100, 45, 1, false},
		{2, 1, 1, 45, true},
		{9, 10, 0, 5, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page=%d limit=%d", tt.page, tt.limit), func(t *testing.T) {
			page, err := c.List(context.Background(), ListParams{Page: tt.page, Limit: tt.limit})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			p := page.Pagination
			if len(page.Items) != tt.wantItems || p.Pages != tt.wantPages || p.HasMore != tt.wantMore {
				t.Errorf("got %d items, %+v", len(page.Items), p)
			}
			if p.Pages != (p.Total+p.Limit-1)/p.Limit || len(page.Items) > p.Limit {
				t.Errorf("invariants broken: %+v", p)
			}
		})
	}
}

func TestListDefaultsAndQuery(t *testing.T) {
	srv := showroomtest.NewServer(t)
	c := New(srv.Client(t))

	page, err := c.List(context.Background(), ListParams{SortBy: "price", SortOrder: SortDesc})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Pagination.Page != DefaultPage || page.Pagination.Limit != DefaultLimit {
		t.Errorf("pagination = %+v, want defaults", page.Pagination)
	}
	for i := 1; i < len(page.Items); i++ {
		if page.Items[i-1].Price.LessThan(page.Items[i].Price) {
			t.Fatalf("items not sorted by price desc at %d", i)
		}
	}

	page, err = c.List(context.Background(), ListParams{Search: "door"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Pagination.Total != 2 {
		t.Errorf("search total = %d, want 2", page.Pagination.Total)
	}
}

func TestListIncludesSoftDeleted(t *testing.T) {
	srv := showroomtest.NewServer(t)
	c := New(srv.Client(t))

	page, err := c.List(context.Background(), ListParams{Search: "velvet"})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %d", len(page.Items))
	}
	if page.Items[0].IsActive() || page.Items[0].DeletedAt == nil {
		t.Error("soft-deleted product should be inactive with its data retained")
	}
}

func TestListValidationIssuesNoRequest(t *testing.T) {
	srv := showroomtest.NewServer(t)
	c := New(srv.Client(t))

	for _, p := range []ListParams{
		{Page: -1},
		{Limit: -5},
		{Limit: MaxLimit + 1},
		{SortOrder: "sideways"},
	} {
		if _, err := c.List(context.Background(), p); !errors.Is(err, core.ErrValidation) {
			t.Errorf("List(%+v) error = %v, want ErrValidation", p, err)
		}
	}
	if n := srv.Calls(showroomtest.RouteList); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestListRejectsInconsistentPage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrong pages", `{"items":[],"pagination":{"total":45,"pages":2,"page":1,"limit":20,"hasMore":true}}`},
		{"wrong hasMore", `{"items":[],"pagination":{"total":5,"pages":1,"page":1,"limit":20,"hasMore":true}}`},
		{"too many items", `{"items":[{"id":"7f1c2a9e-3b4d-4e5f-8a6b-9c0d1e2f3a4b"},{"id":"0b4c5d6e-7f80-4a1b-9c2d-3e4f5a6b7c8d"}],"pagination":{"total":2,"pages":2,"page":1,"limit":1,"hasMore":true}}`},
		{"item without id", `{"items":[{"name":"x"}],"pagination":{"total":1,"pages":1,"page":1,"limit":20,"hasMore":false}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			auth, _ := core.NewAuthContext("k", "t")
			cc, _ := core.NewClient(auth, core.WithBaseURL(server.URL))
			if _, err := New(cc).List(context.Background(), ListParams{}); !errors.Is(err, core.ErrDecode) {
				t.Errorf("err = %v, want ErrDecode", err)
			}
		})
	}
}

func TestAllWalksEveryPage(t *testing.T) {
	srv := showroomtest.NewServer(t, showroomtest.WithProducts(manyProducts(45)...))
	c := New(srv.Client(t))

	seen := map[uuid.UUID]bool{}
	for p, err := range c.All(context.Background(), ListParams{Limit: 10}) {
		if err != nil {
			t.Fatalf("All() error = %v", err)
		}
		seen[p.ID] = true
	}
	if len(seen) != 45 {
		t.Errorf("saw %d products, want 45", len(seen))
	}
	if n := srv.Calls(showroomtest.RouteList); n != 5 {
		t.Errorf("list calls = %d, want 5", n)
	}
}

func TestAllStopsEarly(t *testing.T) {
	srv := showroomtest.NewServer(t, showroomtest.WithProducts(manyProducts(45)...))
	c := New(srv.Client(t))

	n := 0
	for _, err := range c.All(context.Background(), ListParams{Limit: 10}) {
		if err != nil {
			t.Fatal(err)
		}
		n++
		if n == 12 {
			break
		}
	}
	if calls := srv.Calls(showroomtest.RouteList); calls != 2 {
		t.Errorf("list calls = %d, want 2", calls)
	}
}

func TestAllYieldsError(t *testing.T) {
	srv := showroomtest.NewServer(t)
	srv.FailNext(showroomtest.RouteList, http.StatusUnauthorized, 1)
	c := New(srv.Client(t))

	var errs []error
	for _, err := range c.All(context.Background(), ListParams{}) {
		errs = append(errs, err)
	}
	if len(errs) != 1 || !errors.Is(errs[0], core.ErrAuth) {
		t.Errorf("errs = %v, want one ErrAuth", errs)
	}
}

func TestGet(t *testing.T) {
	srv := showroomtest.NewServer(t)
	c := New(srv.Client(t))

	p, err := c.Get(context.Background(), showroomtest.OakChairID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.ID != showroomtest.OakChairID || p.Name != "Oak Dining Chair" {
		t.Errorf("product = %+v", p)
	}
}

func TestGetUnknownIsNotFoundAndNotRetried(t *testing.T) {
	srv := showroomtest.NewServer(t)
	c := New(srv.Client(t))

	_, err := c.Get(context.Background(), uuid.New())
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := srv.Calls(showroomtest.RouteGet); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestGetNilUUID(t *testing.T) {
	srv := showroomtest.NewServer(t)
	c := New(srv.Client(t))

	if _, err := c.Get(context.Background(), uuid.Nil); !errors.Is(err, core.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if n := srv.Calls(showroomtest.RouteGet); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	srv := showroomtest.NewServer(t)
	srv.FailNext(showroomtest.RouteGet, http.StatusServiceUnavailable, 2)
	c := New(srv.Client(t))

	if _, err := c.Get(context.Background(), showroomtest.GlassDoorID); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if n := srv.Calls(showroomtest.RouteGet); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestGetMismatchedID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"7f1c2a9e-3b4d-4e5f-8a6b-9c0d1e2f3a4b","name":"x"}`))
	}))
	defer server.Close()

	auth, _ := core.NewAuthContext("k", "t")
	cc, _ := core.NewClient(auth, core.WithBaseURL(server.URL))
	if _, err := New(cc).Get(context.Background(), uuid.New()); !errors.Is(err, core.ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestProductCache(t *testing.T) {
	srv := showroomtest.NewServer(t)
	c := New(srv.Client(t), WithProductCache(8, time.Minute))

	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), showroomtest.FloorLampID); err != nil {
			t.Fatal(err)
		}
	}
	if n := srv.Calls(showroomtest.RouteGet); n != 1 {
		t.Errorf("calls = %d, want 1 with cache", n)
	}

	missing := uuid.New()
	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background(), missing); !errors.Is(err, core.ErrNotFound) {
			t.Fatal(err)
		}
	}
	if n := srv.Calls(showroomtest.RouteGet); n != 3 {
		t.Errorf("calls = %d, failures must not be cached", n)
	}
}

func TestAllCanBeRangedTwice(t *testing.T) {
	srv := showroomtest.NewServer(t, showroomtest.WithProducts(manyProducts(25)...))
	c := New(srv.Client(t))

	seq := c.All(context.Background(), ListParams{Limit: 10})
	for pass := 1; pass <= 2; pass++ {
		n := 0
		for _, err := range seq {
			if err != nil {
				t.Fatalf("pass %d: All() error = %v", pass, err)
			}
			n++
		}
		if n != 25 {
			t.Errorf("pass %d saw %d products, want 25", pass, n)
		}
	}
	if calls := srv.Calls(showroomtest.RouteList); calls != 6 {
		t.Errorf("list calls = %d, want 6", calls)
	}
}

func TestProductCacheReturnsIsolatedCopies(t *testing.T) {
	srv := showroomtest.NewServer(t)
	c := New(srv.Client(t), WithProductCache(8, time.Minute))

	first, err := c.Get(context.Background(), showroomtest.OakChairID)
	if err != nil {
		t.Fatal(err)
	}
	wantURL := *first.ImageURL
	wantMeta := string(first.Metadata)

	*first.ImageURL = "https://evil.example.com/x.jpg"
	first.Metadata[0] = '['

	second, err := c.Get(context.Background(), showroomtest.OakChairID)
	if err != nil {
		t.Fatal(err)
	}
	if *second.ImageURL != wantURL || string(second.Metadata) != wantMeta {
		t.Errorf("cached product changed: imageUrl=%q metadata=%s", *second.ImageURL, second.Metadata)
	}

	*second.ImageURL = "changed"
	third, _ := c.Get(context.Background(), showroomtest.OakChairID)
	if *third.ImageURL != wantURL {
		t.Errorf("cache hit aliases the cached entry: %q", *third.ImageURL)
	}
}
