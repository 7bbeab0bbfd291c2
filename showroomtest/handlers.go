package showroomtest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petal-labs/showroom/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the {"error": "message"} shape.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAPIError writes the {"error": {status, code, message}} shape.
func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"status": status, "code": code, "message": message},
	})
}

var sortFields = map[string]func(a, b core.Product) int{
	"name":      func(a, b core.Product) int { return strings.Compare(a.Name, b.Name) },
	"sku":       func(a, b core.Product) int { return strings.Compare(a.SKU, b.SKU) },
	"price":     func(a, b core.Product) int { return a.Price.Cmp(b.Price) },
	"createdAt": func(a, b core.Product) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updatedAt": func(a, b core.Product) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
}

func (f *Fake) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 1)
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	limit, err := intParam(q.Get("limit"), 20)
	if err != nil || limit < 1 || limit > 100 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	sortBy, order := q.Get("sort_by"), q.Get("sort_order")
	cmp, ok := sortFields[sortBy]
	if sortBy != "" && !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("cannot sort by %q", sortBy))
		return
	}
	if order != "" && order != "asc" && order != "desc" {
		writeError(w, http.StatusBadRequest, "sort_order must be asc or desc")
		return
	}

	search := strings.ToLower(strings.TrimSpace(q.Get("search")))
	var matched []core.Product
	for _, p := range f.Products() {
		if search == "" || strings.Contains(searchText(p), search) {
			matched = append(matched, p)
		}
	}
	if cmp != nil {
		sort.SliceStable(matched, func(i, j int) bool {
			c := cmp(matched[i], matched[j])
			if order == "desc" {
				return c > 0
			}
			return c < 0
		})
	}

	total := len(matched)
	pages := (total + limit - 1) / limit
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	writeJSON(w, http.StatusOK, core.Page[core.Product]{
		Items: append([]core.Product{}, matched[start:end]...),
		Pagination: core.Pagination{
			Total:   total,
			Pages:   pages,
			Page:    page,
			Limit:   limit,
			HasMore: page < pages,
		},
	})
}

func (f *Fake) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}
	for _, p := range f.Products() {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeAPIError(w, http.StatusNotFound, "product_not_found", "Product not found")
}

// DiscoveryCall records what the fake received on the discovery route.
type DiscoveryCall struct {
	Multipart                bool
	Query                    string
	Filter                   json.RawMessage
	TopN                     int
	IncludeConfidenceMessage bool
	ChatHistory              json.RawMessage
	Context                  json.RawMessage
	Image                    string // data URL sent in a JSON body
	ImageData                []byte // file part of a multipart body
	ImageType                string
	ImageName                string
}

type discoveryBody struct {
	Query                    string          `json:"query"`
	Filter                   json.RawMessage `json:"filter"`
	Image                    string          `json:"image"`
	ChatHistory              json.RawMessage `json:"chatHistory"`
	Context                  json.RawMessage `json:"context"`
	TopN                     *int            `json:"top_n"`
	IncludeConfidenceMessage *bool           `json:"includeConfidenceMessage"`
}

func (f *Fake) discover(w http.ResponseWriter, r *http.Request) {
	call, err := readDiscovery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.mu.Lock()
	f.lastDiscovery = call
	f.mu.Unlock()

	if strings.TrimSpace(call.Query) == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	var filter core.Filter
	if len(call.Filter) > 0 {
		if err := json.Unmarshal(call.Filter, &filter); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}
		if err := filter.Validate(); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}
	}

	f.mu.Lock()
	hits, confidence := f.hits, f.confidence
	f.mu.Unlock()
	if hits == nil {
		hits = rank(f.Products(), call.Query, filter)
		msg := fmt.Sprintf("I found %d products matching %q.", len(hits), call.Query)
		confidence = &msg
	}
	if len(hits) > call.TopN {
		hits = hits[:call.TopN]
	}

	type item struct {
		core.Product
		Similarity float64 `json:"similarity"`
	}
	items := make([]item, 0, len(hits))
	for _, h := range hits {
		items = append(items, item{Product: h.Product, Similarity: h.Similarity})
	}
	if !call.IncludeConfidenceMessage {
		confidence = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "confidenceMessage": confidence})
}

func readDiscovery(r *http.Request) (*DiscoveryCall, error) {
	call := &DiscoveryCall{TopN: 10, IncludeConfidenceMessage: true}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			return nil, fmt.Errorf("invalid multipart body: %v", err)
		}
		call.Multipart = true
		call.Query = r.FormValue("query")
		if v := r.FormValue("filter"); v != "" {
			call.Filter = json.RawMessage(v)
		}
		if v := r.FormValue("chatHistory"); v != "" {
			call.ChatHistory = json.RawMessage(v)
		}
		if v := r.FormValue("context"); v != "" {
			call.Context = json.RawMessage(v)
		}
		if v := r.FormValue("top_n"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("top_n must be an integer")
			}
			call.TopN = n
		}
		if v := r.FormValue("includeConfidenceMessage"); v != "" {
			call.IncludeConfidenceMessage = v == "true"
		}
		if file, header, err := r.FormFile("image"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return nil, err
			}
			call.ImageData = data
			call.ImageType = header.Header.Get("Content-Type")
			call.ImageName = header.Filename
		}
		return call, nil
	}

	var body discoveryBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON body")
	}
	call.Query = body.Query
	call.Filter = body.Filter
	call.Image = body.Image
	call.ChatHistory = body.ChatHistory
	call.Context = body.Context
	if body.TopN != nil {
		call.TopN = *body.TopN
	}
	if body.IncludeConfidenceMessage != nil {
		call.IncludeConfidenceMessage = *body.IncludeConfidenceMessage
	}
	return call, nil
}

// rank scores active products by the share of query terms they contain.
func rank(products []core.Product, query string, filter core.Filter) []Hit {
	terms := strings.Fields(strings.ToLower(query))
	var hits []Hit
	for _, p := range products {
		if !p.IsActive() || !matches(p, filter) {
			continue
		}
		text := searchText(p)
		n := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		score := math.Round(float64(n)/float64(len(terms))*100) / 100
		hits = append(hits, Hit{Product: p, Similarity: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	return hits
}

func searchText(p core.Product) string {
	return strings.ToLower(p.Name + " " + p.SKU + " " + p.Description)
}

// matches evaluates clauses against metadata fields, with price and name
// available as well. A clause on a field the product lacks does not match.
func matches(p core.Product, filter core.Filter) bool {
	if len(filter) == 0 {
		return true
	}
	fields := map[string]any{}
	p.DecodeMetadata(&fields)
	fields["name"] = p.Name
	fields["sku"] = p.SKU
	fields["price"], _ = p.Price.Float64()

	for _, c := range filter {
		v, ok := fields[c.Key]
		if !ok || !compare(v, c.Operator, c.Value) {
			return false
		}
	}
	return true
}

func compare(have any, op core.Operator, want any) bool {
	switch op {
	case core.OpEq:
		return fmt.Sprint(have) == fmt.Sprint(want)
	case core.OpIn:
		list, ok := want.([]any)
		if !ok {
			return false
		}
		for _, w := range list {
			if fmt.Sprint(have) == fmt.Sprint(w) {
				return true
			}
		}
		return false
	}

	h, ok1 := have.(float64)
	w, ok2 := want.(float64)
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case core.OpGt:
		return h > w
	case core.OpGte:
		return h >= w
	case core.OpLt:
		return h < w
	case core.OpLte:
		return h <= w
	}
	return false
}

type chatBody struct {
	Message string `json:"message"`
}

func (f *Fake) chat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	writeJSON(w, http.StatusOK, f.reply(body.Message))
}

// StreamCall records what the fake received on the stream route.
type StreamCall struct {
	Message         string             `json:"message"`
	SessionID       string             `json:"sessionId"`
	ChatHistory     []core.ChatMessage `json:"chatHistory"`
	UserID          string             `json:"userId"`
	TenantID        string             `json:"tenantId"`
	IncludeProducts *bool              `json:"includeProducts"`
	ProductLimit    *int               `json:"productLimit"`
}

func (f *Fake) chatStream(w http.ResponseWriter, r *http.Request) {
	var call StreamCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	f.mu.Lock()
	f.lastStream = &call
	script, delay := f.script, f.chunkDelay
	f.mu.Unlock()

	if strings.TrimSpace(call.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if strings.TrimSpace(call.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if script == nil {
		script = eventFrames(f.reply(call.Message))
	}
	for i, frame := range script {
		if i > 0 && delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(delay):
			}
		}
		if _, err := io.WriteString(w, frame); err != nil {
			return
		}
		flusher.Flush()
	}
}

// eventFrames renders a reply as connected, one chunk per word, and end.
func eventFrames(reply string) []string {
	frames := []string{sseFrame(map[string]string{"type": "connected", "message": "Connected to chat stream"})}
	for _, word := range strings.SplitAfter(reply, " ") {
		if word == "" {
			continue
		}
		frames = append(frames, sseFrame(map[string]string{"type": "response-chunk", "data": word}))
	}
	return append(frames, sseFrame(map[string]string{"type": "end"}))
}

func sseFrame(v any) string {
	data, _ := json.Marshal(v)
	return "data: " + string(data) + "\n\n"
}

func defaultReply(message string) string {
	return "Here are some products related to: " + message
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
