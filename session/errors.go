package session

import "errors"

// Sentinel errors.
var (
	// ErrNoCredentials indicates the store holds no complete token/profile pair.
	ErrNoCredentials = errors.New("session: no stored credentials")

	// ErrEmptyToken indicates a login or renewal produced an empty token.
	ErrEmptyToken = errors.New("session: empty token")

	// ErrStoreClosed indicates the credential store has been closed.
	ErrStoreClosed = errors.New("session: store closed")
)
