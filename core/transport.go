package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// FormField is one multipart/form-data entry. A field with Data set is sent
// as a binary part carrying ContentType; otherwise Value is sent as text.
type FormField struct {
	Name        string
	Value       string
	Data        []byte
	Filename    string
	ContentType string
}

// TextField returns a text form field.
func TextField(name, value string) FormField {
	return FormField{Name: name, Value: value}
}

// FileField returns a binary form field.
func FileField(name, filename, contentType string, data []byte) FormField {
	return FormField{Name: name, Filename: filename, ContentType: contentType, Data: data}
}

// IsFile reports whether the field is a binary part.
func (f FormField) IsFile() bool {
	return f.Data != nil
}

// Request describes one API call independent of encoding.
type Request struct {
	Op     string // logical operation name, used for errors and telemetry
	Method string
	Path   string
	Header http.Header
	Query  url.Values
	JSON   any
	Form   []FormField
	Stream bool // keep the body open instead of reading it
	NoAuth bool // skip credential headers (health checks)
}

// Response is the raw outcome of a request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte        // set when the request was not a stream, or on non-2xx
	Stream io.ReadCloser // set for successful stream requests; caller closes
}

// RequestID returns the server request id, if one was sent.
func (r *Response) RequestID() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("x-request-id")
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// RoundTripFunc executes one HTTP exchange.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// Middleware wraps a RoundTripFunc to add behavior around each exchange.
type Middleware func(next RoundTripFunc) RoundTripFunc

// Chain combines middleware; the first one is outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next RoundTripFunc) RoundTripFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Transport issues single requests. It never retries and never fails for
// non-2xx statuses; those are returned for the caller to classify.
type Transport struct {
	baseURL string
	do      RoundTripFunc
}

// NewTransport builds a Transport rooted at baseURL.
func NewTransport(baseURL string, httpClient *http.Client, middlewares ...Middleware) *Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		do:      Chain(middlewares...)(httpClient.Do),
	}
}

// Send executes req with the given headers. Connection-level failures are
// returned as ErrTransport (or ErrCancelled when ctx was cancelled).
func (t *Transport) Send(ctx context.Context, req *Request, header http.Header) (*Response, error) {
	if req.JSON != nil && len(req.Form) > 0 {
		return nil, Invalid("request body", "only one of JSON or form fields may be set")
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	target := t.baseURL + req.Path
	if q := encodeQuery(req.Query); q != "" {
		target += "?" + q
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &APIError{Op: req.Op, Code: "bad_url", Message: err.Error(), Err: ErrConfig, Cause: err}
	}
	for key, values := range header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := t.do(httpReq)
	if err != nil {
		return nil, MapTransportError(ctx, req.Op, err)
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header}
	if req.Stream && out.OK() {
		out.Stream = resp.Body
		return out, nil
	}

	defer resp.Body.Close()
	out.Body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, MapTransportError(ctx, req.Op, err)
	}
	return out, nil
}

// encodeQuery drops empty values so omitted optional parameters are not sent.
func encodeQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	clean := make(url.Values, len(q))
	for key, values := range q {
		for _, v := range values {
			if v != "" {
				clean.Add(key, v)
			}
		}
	}
	return clean.Encode()
}

func encodeBody(req *Request) (io.Reader, string, error) {
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", Invalid("request body", "cannot encode JSON: %v", err)
		}
		return bytes.NewReader(data), "application/json", nil
	case len(req.Form) > 0:
		return encodeMultipart(req.Form)
	default:
		return nil, "", nil
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMultipart(fields []FormField) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if !f.IsFile() {
			if err := w.WriteField(f.Name, f.Value); err != nil {
				return nil, "", fmt.Errorf("failed to write %s field: %w", f.Name, err)
			}
			continue
		}

		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		filename := f.Filename
		if filename == "" {
			filename = f.Name
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.Name), quoteEscaper.Replace(filename)))
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create %s part: %w", f.Name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write %s part: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
