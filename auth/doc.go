// Package auth provides the authenticated request path.
//
// Coordinator is the credential renewal state machine. It moves between
// StateIdle and StateRefreshing with a compare-and-set, so at most one
// renewal is in flight at any time. A late 401 either fails fast with
// ErrRefreshInProgress (PolicyFailFast, the default) or joins the in-flight
// renewal and shares its result (PolicyAwait).
//
// Client wraps an api.Issuer. It attaches the live access token to every
// attempt and, on a 401, asks the Coordinator for a renewed session and
// replays the request exactly once.
//
// A failed renewal is terminal: stored credentials and the live session are
// cleared and callers receive a *SessionEndedError. Renewal is never retried
// automatically.
package auth
