package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/storesync/observe"
	"github.com/jonwraymond/storesync/session"
)

// DefaultRenewTimeout bounds one renewal when CoordinatorConfig.Timeout is
// unset.
const DefaultRenewTimeout = 30 * time.Second

// State is the renewal state.
type State int32

const (
	StateIdle State = iota
	StateRefreshing
)

func (s State) String() string {
	if s == StateRefreshing {
		return "refreshing"
	}
	return "idle"
}

// Policy decides what a 401 that arrives mid-renewal does.
type Policy int

const (
	// PolicyFailFast rejects late arrivals with ErrRefreshInProgress.
	PolicyFailFast Policy = iota
	// PolicyAwait has late arrivals wait for and share the in-flight result.
	PolicyAwait
)

func (p Policy) String() string {
	if p == PolicyAwait {
		return "await"
	}
	return "fail-fast"
}

// ParsePolicy parses "fail-fast" (or "") and "await".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast":
		return PolicyFailFast, nil
	case "await":
		return PolicyAwait, nil
	default:
		return PolicyFailFast, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	// Holder is the live session. Required.
	Holder *session.Holder

	// Store is read for the refresh token and written on renewal. Required.
	Store session.CredentialStore

	// Renewer calls the renewal endpoint. Required.
	Renewer Renewer

	// Policy for 401s that arrive mid-renewal. Default: PolicyFailFast.
	Policy Policy

	// Timeout bounds one renewal. Default: DefaultRenewTimeout.
	Timeout time.Duration

	// Middleware instruments renewals. Default: none.
	Middleware *observe.Middleware

	// OnSessionEnded runs after a failed renewal has cleared the session.
	OnSessionEnded func(ctx context.Context, cause error)
}

// Stats counts renewal outcomes.
type Stats struct {
	// Attempts is the number of Renewer calls.
	Attempts int64
	// Succeeded renewals.
	Succeeded int64
	// Failed renewals, including missing stored credentials.
	Failed int64
	// Rejected 401s that hit StateRefreshing under PolicyFailFast.
	Rejected int64
	// Superseded refreshes answered with an already renewed session.
	Superseded int64
}

// Coordinator guarantees at most one credential renewal in flight.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: a renewal is detached from the triggering caller and bounded
//     by Timeout; a caller giving up never ends the session.
//   - Errors: a failed renewal returns *SessionEndedError and is never retried.
//     A renewal that finishes after the session was ended or replaced installs
//     and persists nothing and returns *SessionEndedError wrapping
//     ErrSessionReplaced.
type Coordinator struct {
	holder  *session.Holder
	store   session.CredentialStore
	renewer Renewer
	policy  Policy
	timeout time.Duration
	mw      *observe.Middleware
	onEnded func(ctx context.Context, cause error)

	state  atomic.Int32
	flight singleflight.Group

	attempts   atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	rejected   atomic.Int64
	superseded atomic.Int64
}

// NewCoordinator creates a Coordinator in StateIdle.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	switch {
	case cfg.Holder == nil:
		return nil, fmt.Errorf("%w: session holder", ErrMissingDependency)
	case cfg.Store == nil:
		return nil, fmt.Errorf("%w: credential store", ErrMissingDependency)
	case cfg.Renewer == nil:
		return nil, fmt.Errorf("%w: renewer", ErrMissingDependency)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRenewTimeout
	}
	return &Coordinator{
		holder:  cfg.Holder,
		store:   cfg.Store,
		renewer: cfg.Renewer,
		policy:  cfg.Policy,
		timeout: cfg.Timeout,
		mw:      cfg.Middleware,
		onEnded: cfg.OnSessionEnded,
	}, nil
}

// State returns the current renewal state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Policy returns the configured policy.
func (c *Coordinator) Policy() Policy { return c.policy }

// Stats returns a snapshot of the renewal counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Attempts:   c.attempts.Load(),
		Succeeded:  c.succeeded.Load(),
		Failed:     c.failed.Load(),
		Rejected:   c.rejected.Load(),
		Superseded: c.superseded.Load(),
	}
}

// Refresh returns a session whose access token differs from staleToken,
// renewing it if needed.
//
// If the live session already carries a different token, a renewal finished
// after the caller's request was sent and that session is returned as is.
func (c *Coordinator) Refresh(ctx context.Context, staleToken string) (session.Session, error) {
	if s, ok := c.superseding(staleToken); ok {
		return s, nil
	}

	if c.policy == PolicyAwait {
		v, err, shared := c.flight.Do("renew", func() (any, error) {
			return c.transition(ctx, staleToken)
		})
		if shared {
			c.mw.Logger().Debug(ctx, "joined in-flight renewal")
		}
		if err != nil {
			return session.Session{}, err
		}
		return v.(session.Session), nil
	}

	return c.transition(ctx, staleToken)
}

// transition performs IDLE -> REFRESHING -> IDLE around one renewal.
func (c *Coordinator) transition(ctx context.Context, staleToken string) (session.Session, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRefreshing)) {
		c.rejected.Add(1)
		c.mw.Logger().Info(ctx, "renewal already in flight, rejecting")
		return session.Session{}, ErrRefreshInProgress
	}
	defer c.state.Store(int32(StateIdle))

	// A renewal may have completed between the first check and the CAS.
	if s, ok := c.superseding(staleToken); ok {
		return s, nil
	}
	current, ok := c.holder.Current()
	if !ok {
		return session.Session{}, &SessionEndedError{RefreshErr: session.ErrNoCredentials}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	var renewed session.Session
	meta := observe.OpMeta{Kind: observe.KindRefresh, Name: "session.renew"}
	err := c.mw.Run(ctx, meta, func(ctx context.Context) error {
		var err error
		renewed, err = c.renew(ctx, current.AccessToken)
		return err
	})
	if err != nil && !errors.Is(err, ErrSessionReplaced) && c.holder.AccessToken() != current.AccessToken {
		// A logout or login during the renewal owns the session now.
		err = fmt.Errorf("%w: %w", ErrSessionReplaced, err)
	}
	if errors.Is(err, ErrSessionReplaced) {
		c.mw.Logger().Info(ctx, "session changed during renewal, discarding renewed tokens")
		return session.Session{}, &SessionEndedError{RefreshErr: err}
	}
	if err != nil {
		return session.Session{}, c.endSession(ctx, err)
	}
	return renewed, nil
}

func (c *Coordinator) renew(ctx context.Context, expected string) (session.Session, error) {
	tokens, _, ok, err := c.store.Load(ctx)
	if err != nil {
		return session.Session{}, fmt.Errorf("read credentials: %w", err)
	}
	if !ok || tokens.RefreshToken == "" {
		return session.Session{}, ErrNoRefreshToken
	}

	c.attempts.Add(1)
	next, err := c.renewer.Renew(ctx, tokens.RefreshToken)
	if err != nil {
		return session.Session{}, err
	}
	s := session.New(next)
	installed, err := c.holder.InstallIf(expected, s, func() error {
		return c.store.SaveTokens(ctx, next)
	})
	if err != nil {
		return session.Session{}, fmt.Errorf("persist credentials: %w", err)
	}
	if !installed {
		return session.Session{}, ErrSessionReplaced
	}
	c.succeeded.Add(1)
	c.mw.Logger().Info(ctx, "session renewed", observe.F("expires_hint", s.ExpiresHint))
	return s, nil
}

// endSession tears the session down after a failed renewal.
func (c *Coordinator) endSession(ctx context.Context, cause error) error {
	c.failed.Add(1)
	logger := c.mw.Logger()

	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		logger.Error(ctx, "clear credentials after failed renewal", observe.F("error", err))
	}
	c.holder.Clear()
	logger.Warn(ctx, "renewal failed, session ended", observe.F("error", cause))

	if c.onEnded != nil {
		c.onEnded(ctx, cause)
	}
	return &SessionEndedError{RefreshErr: cause}
}

func (c *Coordinator) superseding(staleToken string) (session.Session, bool) {
	s, ok := c.holder.Current()
	if !ok || s.AccessToken == staleToken {
		return session.Session{}, false
	}
	c.superseded.Add(1)
	return s, true
}

// IsSessionEnded reports whether err is a forced logout.
func IsSessionEnded(err error) bool {
	return errors.Is(err, ErrSessionEnded)
}
