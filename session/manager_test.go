package session

import (
	"context"
	"errors"
	"testing"
)

func TestManager_LoginLogout(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	holder := NewHolder()
	m := NewManager(ManagerConfig{Holder: holder, Store: store})

	var events []EventKind
	unsubscribe := holder.Subscribe(func(ev Event) { events = append(events, ev.Kind) })
	defer unsubscribe()

	res := LoginResult{
		Tokens: Tokens{AccessToken: "a", RefreshToken: "r"},
		User:   Profile{ID: 5, Name: "Lin"},
	}
	if err := m.Login(ctx, res); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !m.LoggedIn() || holder.AccessToken() != "a" {
		t.Fatal("expected live session after login")
	}
	if p, ok := holder.Profile(); !ok || p.ID != 5 {
		t.Fatalf("Profile = %+v, %v", p, ok)
	}
	if _, _, ok, _ := store.Load(ctx); !ok {
		t.Fatal("expected stored pair after login")
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if m.LoggedIn() {
		t.Fatal("expected no session after logout")
	}
	if _, _, ok, _ := store.Load(ctx); ok {
		t.Fatal("expected store cleared after logout")
	}

	want := []EventKind{EventEstablished, EventEnded}
	if len(events) != len(want) || events[0] != want[0] || events[1] != want[1] {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestManager_LoginStoreFailure(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(ManagerConfig{Holder: NewHolder(), Store: store})
	boom := errors.New("write failed")
	store.FailNext(boom)

	err := m.Login(context.Background(), LoginResult{Tokens: Tokens{AccessToken: "a", RefreshToken: "r"}})
	if !errors.Is(err, boom) {
		t.Fatalf("Login = %v, want %v", err, boom)
	}
	if m.LoggedIn() {
		t.Fatal("session must not be installed when persisting fails")
	}
}

func TestManager_LoginRejectsEmptyTokens(t *testing.T) {
	m := NewManager(ManagerConfig{})
	err := m.Login(context.Background(), LoginResult{Tokens: Tokens{AccessToken: "a"}})
	if !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("Login = %v, want ErrEmptyToken", err)
	}
}

func TestManager_LogoutClearsHolderOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(ManagerConfig{Holder: NewHolder(), Store: store})
	if err := m.Login(ctx, LoginResult{Tokens: Tokens{AccessToken: "a", RefreshToken: "r"}}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	store.FailNext(errors.New("locked"))
	if err := m.Logout(ctx); err == nil {
		t.Fatal("expected store error from Logout")
	}
	if m.LoggedIn() {
		t.Fatal("live session must be cleared even when the store fails")
	}
}

func TestManager_Restore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(s *MemoryStore)
		want  bool
	}{
		{
			name: "complete pair",
			setup: func(s *MemoryStore) {
				_ = s.Save(ctx, Tokens{AccessToken: "a", RefreshToken: "r"}, Profile{ID: 1})
			},
			want: true,
		},
		{
			name:  "nothing stored",
			setup: func(*MemoryStore) {},
			want:  false,
		},
		{
			name: "tokens only",
			setup: func(s *MemoryStore) {
				_ = s.SaveTokens(ctx, Tokens{AccessToken: "a", RefreshToken: "r"})
			},
			want: false,
		},
		{
			name: "empty refresh token",
			setup: func(s *MemoryStore) {
				_ = s.Save(ctx, Tokens{AccessToken: "a"}, Profile{ID: 1})
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			tt.setup(store)
			m := NewManager(ManagerConfig{Holder: NewHolder(), Store: store})

			got, err := m.Restore(ctx)
			if err != nil {
				t.Fatalf("Restore: %v", err)
			}
			if got != tt.want || m.LoggedIn() != tt.want {
				t.Errorf("Restore = %v, LoggedIn = %v, want %v", got, m.LoggedIn(), tt.want)
			}
		})
	}
}

func TestHolder_InstallIfKeepsProfile(t *testing.T) {
	h := NewHolder()
	h.Establish(New(Tokens{AccessToken: "a1", RefreshToken: "r1"}), Profile{ID: 3})

	var got Event
	h.Subscribe(func(ev Event) { got = ev })
	h.InstallIf("a1", New(Tokens{AccessToken: "a2", RefreshToken: "r2"}), nil)

	if got.Kind != EventRenewed || got.Session.AccessToken != "a2" {
		t.Fatalf("event = %+v", got)
	}
	if h.AccessToken() != "a2" {
		t.Fatalf("AccessToken = %q", h.AccessToken())
	}
	if p, ok := h.Profile(); !ok || p.ID != 3 {
		t.Fatalf("profile lost on InstallIf: %+v %v", p, ok)
	}
}

func TestHolder_InstallIf(t *testing.T) {
	renewed := New(Tokens{AccessToken: "a2", RefreshToken: "r2"})
	boom := errors.New("disk full")

	tests := []struct {
		name      string
		loggedIn  bool
		expected  string
		persist   error
		wantOK    bool
		wantErr   error
		wantToken string
	}{
		{"current token", true, "a1", nil, true, nil, "a2"},
		{"token replaced", true, "a0", nil, false, nil, "a1"},
		{"logged out", false, "a1", nil, false, nil, ""},
		{"persist fails", true, "a1", boom, false, boom, "a1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHolder()
			if tt.loggedIn {
				h.Establish(New(Tokens{AccessToken: "a1", RefreshToken: "r1"}), Profile{ID: 3})
			}
			persisted := false
			ok, err := h.InstallIf(tt.expected, renewed, func() error {
				persisted = true
				return tt.persist
			})
			if ok != tt.wantOK || !errors.Is(err, tt.wantErr) {
				t.Fatalf("InstallIf = %v, %v; want %v, %v", ok, err, tt.wantOK, tt.wantErr)
			}
			if got := h.AccessToken(); got != tt.wantToken {
				t.Errorf("AccessToken = %q, want %q", got, tt.wantToken)
			}
			matched := tt.loggedIn && tt.expected == "a1"
			if persisted != matched {
				t.Errorf("persist ran = %v, want %v", persisted, matched)
			}
		})
	}
}

func TestHolder_Unsubscribe(t *testing.T) {
	h := NewHolder()
	calls := 0
	unsubscribe := h.Subscribe(func(Event) { calls++ })
	h.Clear()
	unsubscribe()
	unsubscribe()
	h.Clear()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
