package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonwraymond/storesync/api"
	"github.com/jonwraymond/storesync/session"
)

// DefaultRefreshPath is the storefront renewal endpoint.
const DefaultRefreshPath = "/auth/refresh"

// Renewer exchanges a refresh token for a new token pair.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Renew must honor cancellation/deadlines.
// - Errors: any error is treated as a terminal renewal failure.
type Renewer interface {
	Renew(ctx context.Context, refreshToken string) (session.Tokens, error)
}

// RenewerFunc adapts a function to Renewer.
type RenewerFunc func(ctx context.Context, refreshToken string) (session.Tokens, error)

// Renew calls f.
func (f RenewerFunc) Renew(ctx context.Context, refreshToken string) (session.Tokens, error) {
	return f(ctx, refreshToken)
}

// HTTPRenewerConfig configures an HTTPRenewer.
type HTTPRenewerConfig struct {
	// Issuer sends the renewal request. It must not be the authenticated
	// client, or a 401 from the renewal endpoint would recurse. Required.
	Issuer api.Issuer

	// Path is the renewal endpoint. Default: "/auth/refresh".
	Path string
}

// HTTPRenewer calls the storefront renewal endpoint with the refresh token
// as its bearer credential.
type HTTPRenewer struct {
	issuer api.Issuer
	path   string
}

// NewHTTPRenewer creates an HTTPRenewer.
func NewHTTPRenewer(cfg HTTPRenewerConfig) (*HTTPRenewer, error) {
	if cfg.Issuer == nil {
		return nil, fmt.Errorf("%w: renewer issuer", ErrMissingDependency)
	}
	if cfg.Path == "" {
		cfg.Path = DefaultRefreshPath
	}
	return &HTTPRenewer{issuer: cfg.Issuer, path: cfg.Path}, nil
}

type renewResponse struct {
	Message string         `json:"message"`
	Tokens  session.Tokens `json:"tokens"`
}

// Renew performs GET <path> with Authorization: Bearer <refreshToken>.
func (r *HTTPRenewer) Renew(ctx context.Context, refreshToken string) (session.Tokens, error) {
	req := api.NewRequest(http.MethodGet, r.path, nil)
	req.Header.Set("Authorization", "Bearer "+refreshToken)

	resp, err := r.issuer.Issue(ctx, req)
	if err != nil {
		return session.Tokens{}, err
	}

	var out renewResponse
	if err := resp.Decode(&out); err != nil {
		return session.Tokens{}, fmt.Errorf("auth: renewal response: %w", err)
	}
	if err := out.Tokens.Validate(); err != nil {
		return session.Tokens{}, fmt.Errorf("auth: renewal response: %w", err)
	}
	return out.Tokens, nil
}

var _ Renewer = (*HTTPRenewer)(nil)
