package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/storesync/session"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyFailFast, false},
		{"fail-fast", PolicyFailFast, false},
		{"AWAIT", PolicyAwait, false},
		{"queue", PolicyFailFast, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePolicy(%q) error = %v", tt.in, err)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("error = %v, want ErrInvalidPolicy", err)
			}
			if got != tt.want {
				t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewCoordinator_MissingDependency(t *testing.T) {
	_, err := NewCoordinator(CoordinatorConfig{Holder: session.NewHolder()})
	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("err = %v, want ErrMissingDependency", err)
	}
}

func TestCoordinator_Refresh_RenewsAndPersists(t *testing.T) {
	f := newFixture(t, PolicyFailFast)
	ctx := context.Background()

	s, err := f.coord.Refresh(ctx, oldTokens.AccessToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.AccessToken != newTokens.AccessToken {
		t.Errorf("AccessToken = %q", s.AccessToken)
	}
	if got := f.renewer.gotRT.Load(); got != oldTokens.RefreshToken {
		t.Errorf("renewer got refresh token %v, want %q", got, oldTokens.RefreshToken)
	}
	if f.holder.AccessToken() != newTokens.AccessToken {
		t.Error("renewed session not installed")
	}
	stored, profile, ok, _ := f.store.Load(ctx)
	if !ok || stored != newTokens || profile.ID != 1 {
		t.Errorf("stored = %+v %+v %v", stored, profile, ok)
	}
	if f.coord.State() != StateIdle {
		t.Errorf("State = %v after renewal", f.coord.State())
	}
	if st := f.coord.Stats(); st.Attempts != 1 || st.Succeeded != 1 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestCoordinator_Refresh_ReadsRefreshTokenFromStore(t *testing.T) {
	f := newFixture(t, PolicyFailFast)
	ctx := context.Background()

	// The live session may carry an outdated refresh token; the store wins.
	if err := f.store.SaveTokens(ctx, session.Tokens{AccessToken: "a1", RefreshToken: "r-stored"}); err != nil {
		t.Fatalf("SaveTokens: %v", err)
	}
	if _, err := f.coord.Refresh(ctx, oldTokens.AccessToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := f.renewer.gotRT.Load(); got != "r-stored" {
		t.Errorf("renewer got %v, want r-stored", got)
	}
}

func TestCoordinator_Refresh_AlreadyRenewed(t *testing.T) {
	f := newFixture(t, PolicyFailFast)
	f.holder.InstallIf(oldTokens.AccessToken, session.New(newTokens), nil)

	s, err := f.coord.Refresh(context.Background(), oldTokens.AccessToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.AccessToken != newTokens.AccessToken {
		t.Errorf("AccessToken = %q", s.AccessToken)
	}
	if n := f.renewer.calls.Load(); n != 0 {
		t.Errorf("renewer called %d times, want 0", n)
	}
	if f.coord.Stats().Superseded != 1 {
		t.Errorf("Superseded = %d", f.coord.Stats().Superseded)
	}
}

func TestCoordinator_FailFast_RejectsWhileRefreshing(t *testing.T) {
	f := newFixture(t, PolicyFailFast)
	f.renewer.gate = make(chan struct{})
	f.renewer.started = make(chan struct{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.coord.Refresh(ctx, oldTokens.AccessToken)
		done <- err
	}()

	<-f.renewer.started
	if f.coord.State() != StateRefreshing {
		t.Fatalf("State = %v during renewal", f.coord.State())
	}

	_, err := f.coord.Refresh(ctx, oldTokens.AccessToken)
	if !errors.Is(err, ErrRefreshInProgress) {
		t.Fatalf("concurrent Refresh = %v, want ErrRefreshInProgress", err)
	}

	close(f.renewer.gate)
	if err := <-done; err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if n := f.renewer.calls.Load(); n != 1 {
		t.Errorf("renewer called %d times, want 1", n)
	}
	if st := f.coord.Stats(); st.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", st.Rejected)
	}
	if f.coord.State() != StateIdle {
		t.Errorf("State = %v, want idle", f.coord.State())
	}
}

func TestCoordinator_Await_SharesSingleRenewal(t *testing.T) {
	f := newFixture(t, PolicyAwait)
	f.renewer.gate = make(chan struct{})
	f.renewer.started = make(chan struct{})
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	results := make([]session.Session, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.coord.Refresh(ctx, oldTokens.AccessToken)
		}(i)
	}

	<-f.renewer.started
	close(f.renewer.gate)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].AccessToken != newTokens.AccessToken {
			t.Errorf("caller %d got %q", i, results[i].AccessToken)
		}
	}
	if got := f.renewer.calls.Load(); got != 1 {
		t.Fatalf("renewer called %d times, want 1", got)
	}
}

func TestCoordinator_FailureEndsSession(t *testing.T) {
	f := newFixture(t, PolicyFailFast)
	boom := errors.New("refresh token revoked")
	f.renewer.err = boom
	ctx := context.Background()

	_, err := f.coord.Refresh(ctx, oldTokens.AccessToken)
	if !errors.Is(err, ErrSessionEnded) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrSessionEnded wrapping cause", err)
	}
	var ended *SessionEndedError
	if !errors.As(err, &ended) {
		t.Fatalf("expected *SessionEndedError, got %T", err)
	}
	if _, ok := f.holder.Current(); ok {
		t.Error("live session not cleared")
	}
	if _, _, ok, _ := f.store.Load(ctx); ok {
		t.Error("stored credentials not cleared")
	}
	if f.ended.Load() != 1 {
		t.Errorf("OnSessionEnded called %d times", f.ended.Load())
	}
	if f.coord.State() != StateIdle {
		t.Errorf("State = %v", f.coord.State())
	}
	if f.renewer.calls.Load() != 1 {
		t.Errorf("renewal must not be retried, calls = %d", f.renewer.calls.Load())
	}
}

func TestCoordinator_MissingStoredCredentials(t *testing.T) {
	f := newFixture(t, PolicyFailFast)
	ctx := context.Background()
	if err := f.store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	_, err := f.coord.Refresh(ctx, oldTokens.AccessToken)
	if !errors.Is(err, ErrNoRefreshToken) || !IsSessionEnded(err) {
		t.Fatalf("err = %v", err)
	}
	if f.renewer.calls.Load() != 0 {
		t.Error("renewer must not be called without a stored refresh token")
	}
	if _, ok := f.holder.Current(); ok {
		t.Error("live session not cleared")
	}
}

func TestCoordinator_PersistFailureEndsSession(t *testing.T) {
	f := newFixture(t, PolicyFailFast)
	ctx := context.Background()

	// Load succeeds, SaveTokens fails.
	store := &failingSaveStore{MemoryStore: f.store, err: errors.New("disk full")}
	coord, err := NewCoordinator(CoordinatorConfig{Holder: f.holder, Store: store, Renewer: f.renewer})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	_, err = coord.Refresh(ctx, oldTokens.AccessToken)
	if !errors.Is(err, store.err) || !IsSessionEnded(err) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := f.holder.Current(); ok {
		t.Error("live session not cleared")
	}
}

type failingSaveStore struct {
	*session.MemoryStore
	err error
}

func (s *failingSaveStore) SaveTokens(context.Context, session.Tokens) error { return s.err }

func TestCoordinator_CallerCancelDoesNotEndSession(t *testing.T) {
	for _, policy := range []Policy{PolicyFailFast, PolicyAwait} {
		t.Run(policy.String(), func(t *testing.T) {
			f := newFixture(t, policy)
			f.renewer.gate = make(chan struct{})
			f.renewer.started = make(chan struct{})

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				_, err := f.coord.Refresh(ctx, oldTokens.AccessToken)
				done <- err
			}()

			<-f.renewer.started
			cancel()
			close(f.renewer.gate)

			if err := <-done; err != nil {
				t.Fatalf("Refresh after caller cancel = %v, want the renewed session", err)
			}
			if got := f.holder.AccessToken(); got != newTokens.AccessToken {
				t.Errorf("AccessToken = %q, want %q", got, newTokens.AccessToken)
			}
			if f.ended.Load() != 0 {
				t.Errorf("OnSessionEnded called %d times, want 0", f.ended.Load())
			}
			if st := f.coord.Stats(); st.Succeeded != 1 || st.Failed != 0 {
				t.Errorf("Stats = %+v", st)
			}
		})
	}
}

func TestCoordinator_TimeoutEndsSession(t *testing.T) {
	f := newFixture(t, PolicyFailFast)
	f.renewer.gate = make(chan struct{}) // never released
	coord, err := NewCoordinator(CoordinatorConfig{
		Holder:  f.holder,
		Store:   f.store,
		Renewer: f.renewer,
		Timeout: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	_, err = coord.Refresh(context.Background(), oldTokens.AccessToken)
	if !IsSessionEnded(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want session ended by deadline", err)
	}
	if _, ok := f.holder.Current(); ok {
		t.Error("live session not cleared")
	}
}

func TestCoordinator_LogoutDuringRenewal(t *testing.T) {
	tests := []struct {
		name     string
		renewErr error
	}{
		{"renewal succeeds", nil},
		{"renewal fails", errors.New("refresh token revoked")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, PolicyFailFast)
			f.renewer.err = tt.renewErr
			f.renewer.gate = make(chan struct{})
			f.renewer.started = make(chan struct{})
			ctx := context.Background()

			store := &recordingStore{MemoryStore: f.store}
			coord, err := NewCoordinator(CoordinatorConfig{
				Holder:         f.holder,
				Store:          store,
				Renewer:        f.renewer,
				OnSessionEnded: func(context.Context, error) { f.ended.Add(1) },
			})
			if err != nil {
				t.Fatalf("NewCoordinator: %v", err)
			}

			done := make(chan error, 1)
			go func() {
				_, err := coord.Refresh(ctx, oldTokens.AccessToken)
				done <- err
			}()

			<-f.renewer.started
			manager := session.NewManager(session.ManagerConfig{Holder: f.holder, Store: f.store})
			if err := manager.Logout(ctx); err != nil {
				t.Fatalf("Logout: %v", err)
			}
			close(f.renewer.gate)

			err = <-done
			if !IsSessionEnded(err) || !errors.Is(err, ErrSessionReplaced) {
				t.Fatalf("Refresh = %v, want session replaced", err)
			}
			if s, ok := f.holder.Current(); ok {
				t.Errorf("session %q reinstalled after logout", s.AccessToken)
			}
			if n := store.tokenWrites.Load(); n != 0 {
				t.Errorf("renewed tokens persisted %d times after logout", n)
			}
			if _, _, ok, _ := f.store.Load(ctx); ok {
				t.Error("store holds a session after logout")
			}
			if f.ended.Load() != 0 {
				t.Errorf("OnSessionEnded called %d times for a user logout", f.ended.Load())
			}
			if coord.State() != StateIdle {
				t.Errorf("State = %v", coord.State())
			}
		})
	}
}

// recordingStore counts token writes.
type recordingStore struct {
	*session.MemoryStore
	tokenWrites atomic.Int64
}

func (s *recordingStore) SaveTokens(ctx context.Context, tokens session.Tokens) error {
	s.tokenWrites.Add(1)
	return s.MemoryStore.SaveTokens(ctx, tokens)
}
