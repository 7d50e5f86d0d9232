package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultUserAgent = "storesync/0.1"
	defaultTimeout   = 30 * time.Second
	maxErrorBody     = 64 << 10
)

// HTTPConfig configures an HTTPIssuer.
type HTTPConfig struct {
	// BaseURL is the storefront API root, e.g. "http://10.0.0.2:8080".
	BaseURL string

	// HTTPClient is the client used for requests.
	// If nil, a client with Timeout is used.
	HTTPClient *http.Client

	// Timeout applies only to the default client. Default: 30s.
	Timeout time.Duration

	// UserAgent header value. Default: "storesync/0.1".
	UserAgent string
}

// HTTPIssuer issues requests over net/http and classifies failures.
type HTTPIssuer struct {
	baseURL   *url.URL
	client    *http.Client
	userAgent string
}

// NewHTTPIssuer creates an issuer for cfg.BaseURL.
func NewHTTPIssuer(cfg HTTPConfig) (*HTTPIssuer, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &HTTPIssuer{
		baseURL:   base,
		client:    cfg.HTTPClient,
		userAgent: cfg.UserAgent,
	}, nil
}

// Issue performs req. Every attempt carries a fresh X-Request-ID.
func (h *HTTPIssuer) Issue(ctx context.Context, req *Request) (*Response, error) {
	reqURL := h.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		reqURL.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s body: %w", req, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("api: create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", h.userAgent)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Method: req.Method, Path: req.Path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Method: req.Method, Path: req.Path, Err: fmt.Errorf("read body: %w", err)}
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
	if kind := Classify(resp.StatusCode); kind != 0 {
		return out, &Error{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.Path,
			Message:    errorMessage(data),
		}
	}
	return out, nil
}

// errorMessage extracts the "message" or "error" field the storefront API
// puts in failure bodies.
func errorMessage(body []byte) string {
	if len(body) == 0 || len(body) > maxErrorBody {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch {
	case payload.Message != "" && payload.Error != "":
		return payload.Message + ": " + payload.Error
	case payload.Message != "":
		return payload.Message
	default:
		return payload.Error
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("api: base URL is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL %q: %w", raw, err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

var _ Issuer = (*HTTPIssuer)(nil)
