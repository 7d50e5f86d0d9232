package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/storesync/api"
	"github.com/jonwraymond/storesync/observe"
	"github.com/jonwraymond/storesync/session"
)

// Refresher produces a renewed session for a stale access token.
// *Coordinator implements it.
type Refresher interface {
	Refresh(ctx context.Context, staleToken string) (session.Session, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Issuer sends requests. Required.
	Issuer api.Issuer

	// Holder supplies the live access token. Required.
	Holder *session.Holder

	// Refresher renews on 401. Required.
	Refresher Refresher

	// Logger records replays. Default: no-op.
	Logger observe.Logger
}

// Client is an api.Issuer that authenticates every request and replays it
// once after a successful renewal.
type Client struct {
	issuer    api.Issuer
	holder    *session.Holder
	refresher Refresher
	logger    observe.Logger
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	switch {
	case cfg.Issuer == nil:
		return nil, fmt.Errorf("%w: issuer", ErrMissingDependency)
	case cfg.Holder == nil:
		return nil, fmt.Errorf("%w: session holder", ErrMissingDependency)
	case cfg.Refresher == nil:
		return nil, fmt.Errorf("%w: refresher", ErrMissingDependency)
	}
	return &Client{
		issuer:    cfg.Issuer,
		holder:    cfg.Holder,
		refresher: cfg.Refresher,
		logger:    observe.LoggerOr(cfg.Logger),
	}, nil
}

// Issue sends req with the live access token.
//
// On a 401 the request is marked retried, the session is renewed and req is
// replayed once with the new token. A 401 on the replay is returned as is.
// Requests sent without a session are never renewed.
func (c *Client) Issue(ctx context.Context, req *api.Request) (*api.Response, error) {
	token := c.holder.AccessToken()
	resp, err := c.send(ctx, req, token)
	if token == "" || api.KindOf(err) != api.KindAuth {
		return resp, err
	}

	renewed, rerr := c.refresher.Refresh(ctx, token)
	if rerr != nil {
		var ended *SessionEndedError
		if errors.As(rerr, &ended) {
			return nil, &SessionEndedError{Cause: err, RefreshErr: ended.RefreshErr}
		}
		return nil, errors.Join(err, rerr)
	}

	c.logger.Debug(ctx, "replaying request after renewal", observe.F("request", req.String()))
	return c.send(ctx, req, renewed.AccessToken)
}

func (c *Client) send(ctx context.Context, req *api.Request, token string) (*api.Response, error) {
	attempt := req.Clone()
	if token != "" {
		attempt.Header.Set("Authorization", "Bearer "+token)
	} else {
		attempt.Header.Del("Authorization")
	}
	return c.issuer.Issue(ctx, attempt)
}

var (
	_ api.Issuer = (*Client)(nil)
	_ Refresher  = (*Coordinator)(nil)
)
