package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens is the persisted token pair.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Validate reports ErrEmptyToken when either token is missing.
func (t Tokens) Validate() error {
	if t.AccessToken == "" || t.RefreshToken == "" {
		return ErrEmptyToken
	}
	return nil
}

// Profile is the persisted user profile.
type Profile struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// LoginResult is what the login endpoint returns.
type LoginResult struct {
	Message string  `json:"message,omitempty"`
	Tokens  Tokens  `json:"tokens"`
	User    Profile `json:"user"`
}

// Session is the live credential state shared by the request path and the
// refresh coordinator.
type Session struct {
	AccessToken  string
	RefreshToken string

	// ExpiresHint is the access token's exp claim, or zero when unknown.
	// It is advisory: the server's 401 is authoritative.
	ExpiresHint time.Time
}

// New builds a Session from tokens, deriving the expiry hint from the
// access token.
func New(t Tokens) Session {
	return Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresHint:  ExpiryHint(t.AccessToken),
	}
}

// Tokens returns the session's token pair.
func (s Session) Tokens() Tokens {
	return Tokens{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
}

// ExpiredAt reports whether the hint says the access token is expired at now.
// A session without a hint is never considered expired.
func (s Session) ExpiredAt(now time.Time) bool {
	return !s.ExpiresHint.IsZero() && !now.Before(s.ExpiresHint)
}

// ExpiryHint returns the exp claim of a JWT access token without verifying
// its signature. Opaque or malformed tokens yield the zero time.
func ExpiryHint(accessToken string) time.Time {
	if accessToken == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
