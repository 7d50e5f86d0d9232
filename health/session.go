package health

import (
	"context"

	"github.com/jonwraymond/storesync/auth"
	"github.com/jonwraymond/storesync/session"
)

// RefreshState reports the renewal state machine. *auth.Coordinator
// implements it.
type RefreshState interface {
	State() auth.State
}

// SessionChecker reports whether a session is installed and usable.
type SessionChecker struct {
	holder  *session.Holder
	refresh RefreshState
}

// NewSessionChecker creates a SessionChecker. refresh may be nil.
func NewSessionChecker(holder *session.Holder, refresh RefreshState) *SessionChecker {
	return &SessionChecker{holder: holder, refresh: refresh}
}

// Name returns "session".
func (c *SessionChecker) Name() string { return "session" }

// Check is unhealthy without a session and degraded while a renewal is
// in flight, since concurrent 401s may be rejected until it finishes.
func (c *SessionChecker) Check(context.Context) Result {
	s, ok := c.holder.Current()
	if !ok {
		return Unhealthy("logged out", ErrLoggedOut)
	}

	details := map[string]any{}
	if !s.ExpiresHint.IsZero() {
		details["expires"] = s.ExpiresHint
	}
	if p, ok := c.holder.Profile(); ok {
		details["user_id"] = p.ID
	}

	if c.refresh != nil {
		state := c.refresh.State()
		details["refresh"] = state.String()
		if state == auth.StateRefreshing {
			return Degraded("credential renewal in flight").WithDetails(details)
		}
	}
	return Healthy("session active").WithDetails(details)
}
