package session

import (
	"context"
	"fmt"

	"github.com/jonwraymond/storesync/observe"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Holder is the live session. Required.
	Holder *Holder

	// Store persists credentials. Default: a new MemoryStore.
	Store CredentialStore

	// Logger receives login/logout events. Default: no-op.
	Logger observe.Logger
}

// Manager runs the login, logout and restore flows.
type Manager struct {
	holder *Holder
	store  CredentialStore
	logger observe.Logger
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Holder == nil {
		cfg.Holder = NewHolder()
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	return &Manager{
		holder: cfg.Holder,
		store:  cfg.Store,
		logger: observe.LoggerOr(cfg.Logger),
	}
}

// Holder returns the live session holder.
func (m *Manager) Holder() *Holder { return m.holder }

// Store returns the credential store.
func (m *Manager) Store() CredentialStore { return m.store }

// Login persists the pair, then installs the session.
// Nothing is installed if persisting fails.
func (m *Manager) Login(ctx context.Context, res LoginResult) error {
	if err := res.Tokens.Validate(); err != nil {
		return err
	}
	if err := m.store.Save(ctx, res.Tokens, res.User); err != nil {
		return fmt.Errorf("session: login: %w", err)
	}
	m.holder.Establish(New(res.Tokens), res.User)
	m.logger.Info(ctx, "session established", observe.F("user_id", res.User.ID))
	return nil
}

// Logout clears the live session, then the stored pair. The live session
// is cleared even when the store fails; the store error is returned.
//
// Clearing the holder first makes a renewal still in flight fail its
// InstallIf, so it never writes tokens back after the store is cleared.
func (m *Manager) Logout(ctx context.Context) error {
	m.holder.Clear()
	err := m.store.Clear(ctx)
	if err != nil {
		m.logger.Error(ctx, "clear credentials failed", observe.F("error", err))
		return fmt.Errorf("session: logout: %w", err)
	}
	m.logger.Info(ctx, "session ended")
	return nil
}

// Restore installs the stored session at app start. It returns false when
// no complete pair is stored.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	tokens, profile, ok, err := m.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("session: restore: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := tokens.Validate(); err != nil {
		m.logger.Warn(ctx, "stored tokens incomplete, staying logged out")
		return false, nil
	}
	m.holder.Establish(New(tokens), profile)
	m.logger.Info(ctx, "session restored", observe.F("user_id", profile.ID))
	return true, nil
}

// LoggedIn reports whether a session is installed.
func (m *Manager) LoggedIn() bool {
	_, ok := m.holder.Current()
	return ok
}
