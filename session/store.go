package session

import (
	"context"
	"sync"
)

// Storage keys for the persisted pair.
const (
	TokenKey   = "@token_user"
	ProfileKey = "@user_user"
)

// CredentialStore persists the current session's tokens and profile.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: blocking operations must honor cancellation.
// - Atomicity: Save and Clear write or remove both keys together.
// - Load reports ok=false unless both keys are present.
type CredentialStore interface {
	Load(ctx context.Context) (Tokens, Profile, bool, error)
	Save(ctx context.Context, tokens Tokens, profile Profile) error

	// SaveTokens rewrites the token key only; used after a renewal.
	SaveTokens(ctx context.Context, tokens Tokens) error

	Clear(ctx context.Context) error
}

// MemoryStore is an in-process CredentialStore.
type MemoryStore struct {
	mu       sync.Mutex
	tokens   *Tokens
	profile  *Profile
	failNext error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored pair.
func (s *MemoryStore) Load(ctx context.Context) (Tokens, Profile, bool, error) {
	if err := ctx.Err(); err != nil {
		return Tokens{}, Profile{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return Tokens{}, Profile{}, false, err
	}
	if s.tokens == nil || s.profile == nil {
		return Tokens{}, Profile{}, false, nil
	}
	return *s.tokens, *s.profile, true, nil
}

// Save stores both keys.
func (s *MemoryStore) Save(ctx context.Context, tokens Tokens, profile Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.tokens = &tokens
	s.profile = &profile
	return nil
}

// SaveTokens stores the token key only.
func (s *MemoryStore) SaveTokens(ctx context.Context, tokens Tokens) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.tokens = &tokens
	return nil
}

// Clear removes both keys.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.tokens = nil
	s.profile = nil
	return nil
}

// FailNext makes the next store operation return err.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

func (s *MemoryStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

var _ CredentialStore = (*MemoryStore)(nil)
