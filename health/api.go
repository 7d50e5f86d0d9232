package health

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonwraymond/storesync/api"
)

// DefaultPingPath is the backend's unauthenticated liveness route.
const DefaultPingPath = "/ping"

// APICheckerConfig configures an APIChecker.
type APICheckerConfig struct {
	// Path is requested with GET. Default: DefaultPingPath
	Path string
}

// APIChecker reports whether the backend answers.
type APIChecker struct {
	issuer api.Issuer
	path   string
}

// NewAPIChecker creates an APIChecker over issuer.
func NewAPIChecker(issuer api.Issuer, cfg APICheckerConfig) *APIChecker {
	if cfg.Path == "" {
		cfg.Path = DefaultPingPath
	}
	return &APIChecker{issuer: issuer, path: cfg.Path}
}

// Name returns "api".
func (c *APIChecker) Name() string { return "api" }

// Check is unhealthy on network and server errors and degraded when the
// backend rejects the ping.
func (c *APIChecker) Check(ctx context.Context) Result {
	resp, err := c.issuer.Issue(ctx, api.NewRequest(http.MethodGet, c.path, nil))
	switch {
	case err == nil:
		return Healthy("backend reachable").WithDetails(map[string]any{"status_code": resp.StatusCode})
	case errors.Is(err, api.ErrNetwork), errors.Is(err, api.ErrServer):
		return Unhealthy("backend unreachable", err)
	case ctx.Err() != nil:
		return Unhealthy("backend unreachable", err)
	default:
		r := Degraded("backend rejected ping")
		r.Error = err
		return r
	}
}
