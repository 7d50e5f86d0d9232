package auth

import (
	"errors"
	"strings"
)

// Sentinel errors for the renewal path.
var (
	// ErrRefreshInProgress is returned to a 401'd request that arrived while
	// another renewal was in flight under PolicyFailFast. The caller may
	// retry once the renewal resolves.
	ErrRefreshInProgress = errors.New("auth: refresh already in progress")

	// ErrSessionEnded indicates renewal failed and the session was torn down.
	ErrSessionEnded = errors.New("auth: session ended")

	// ErrSessionReplaced indicates the session was logged out or replaced
	// while a renewal was in flight; the renewed tokens were discarded.
	ErrSessionReplaced = errors.New("auth: session changed during renewal")

	// ErrNoRefreshToken indicates the credential store held no refresh token.
	ErrNoRefreshToken = errors.New("auth: no stored refresh token")

	// ErrInvalidPolicy indicates an unknown refresh policy name.
	ErrInvalidPolicy = errors.New("auth: invalid refresh policy")

	// ErrMissingDependency indicates a required collaborator was not configured.
	ErrMissingDependency = errors.New("auth: missing dependency")
)

// SessionEndedError reports a forced logout.
//
// It matches ErrSessionEnded, the request's original error (Cause, usually
// an api.ErrAuth) and the renewal failure (RefreshErr) through errors.Is.
type SessionEndedError struct {
	Cause      error
	RefreshErr error
}

func (e *SessionEndedError) Error() string {
	var b strings.Builder
	b.WriteString(ErrSessionEnded.Error())
	if e.RefreshErr != nil {
		b.WriteString(": renewal failed: ")
		b.WriteString(e.RefreshErr.Error())
	}
	if e.Cause != nil {
		b.WriteString(" (after ")
		b.WriteString(e.Cause.Error())
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns ErrSessionEnded and every non-nil underlying error.
func (e *SessionEndedError) Unwrap() []error {
	errs := []error{ErrSessionEnded}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.RefreshErr != nil {
		errs = append(errs, e.RefreshErr)
	}
	return errs
}
