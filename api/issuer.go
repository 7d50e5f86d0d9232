package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Issuer performs a single remote call.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: Issue must honor cancellation/deadlines.
//   - Errors: non-2xx responses and transport failures are returned as *Error.
//     On error the returned Response may be nil.
type Issuer interface {
	Issue(ctx context.Context, req *Request) (*Response, error)
}

// IssuerFunc adapts a function to Issuer.
type IssuerFunc func(ctx context.Context, req *Request) (*Response, error)

// Issue calls f.
func (f IssuerFunc) Issue(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Request is a transport-neutral remote call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// NewRequest builds a request with an empty header set.
func NewRequest(method, path string, body any) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Body:   body,
		Header: make(http.Header),
	}
}

// Clone returns a copy whose Header and Query can be modified independently.
// Body is shared; issuers treat it as read-only.
func (r *Request) Clone() *Request {
	c := *r
	if r.Header != nil {
		c.Header = r.Header.Clone()
	} else {
		c.Header = make(http.Header)
	}
	if r.Query != nil {
		c.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	return &c
}

// String returns "METHOD path".
func (r *Request) String() string {
	return r.Method + " " + r.Path
}

// Response is a completed remote call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return fmt.Errorf("api: empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}
