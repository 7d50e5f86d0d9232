package auth

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/storesync/api"
	"github.com/jonwraymond/storesync/session"
)

// fakeAPI accepts only the currently valid bearer token.
type fakeAPI struct {
	mu     sync.Mutex
	valid  string
	seen   []string
	onAuth func(token string) // called before a 401 is returned
}

func (f *fakeAPI) Issue(_ context.Context, req *api.Request) (*api.Response, error) {
	header := req.Header.Get("Authorization")
	f.mu.Lock()
	f.seen = append(f.seen, header)
	valid := f.valid
	hook := f.onAuth
	f.mu.Unlock()

	if header != "Bearer "+valid {
		if hook != nil {
			hook(header)
		}
		return &api.Response{StatusCode: http.StatusUnauthorized},
			&api.Error{Kind: api.KindAuth, StatusCode: http.StatusUnauthorized, Method: req.Method, Path: req.Path}
	}
	return &api.Response{StatusCode: http.StatusOK, Body: []byte(`{"ok":true}`)}, nil
}

func (f *fakeAPI) setValid(token string) {
	f.mu.Lock()
	f.valid = token
	f.mu.Unlock()
}

func (f *fakeAPI) headers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

// countingRenewer hands out a fixed token pair and counts calls.
type countingRenewer struct {
	calls   atomic.Int64
	next    session.Tokens
	err     error
	gate    chan struct{} // if non-nil, Renew blocks until closed
	started chan struct{} // closed on the first call
	once    sync.Once
	gotRT   atomic.Value
}

func (r *countingRenewer) Renew(ctx context.Context, refreshToken string) (session.Tokens, error) {
	r.calls.Add(1)
	r.gotRT.Store(refreshToken)
	if r.started != nil {
		r.once.Do(func() { close(r.started) })
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return session.Tokens{}, ctx.Err()
		}
	}
	if r.err != nil {
		return session.Tokens{}, r.err
	}
	return r.next, nil
}

type fixture struct {
	holder  *session.Holder
	store   *session.MemoryStore
	api     *fakeAPI
	renewer *countingRenewer
	coord   *Coordinator
	client  *Client
	ended   atomic.Int64
}

var (
	oldTokens = session.Tokens{AccessToken: "a1", RefreshToken: "r1"}
	newTokens = session.Tokens{AccessToken: "a2", RefreshToken: "r2"}
)

// newFixture logs in with oldTokens while the server already only accepts
// newTokens, i.e. the access token has expired.
func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		holder:  session.NewHolder(),
		store:   session.NewMemoryStore(),
		api:     &fakeAPI{valid: newTokens.AccessToken},
		renewer: &countingRenewer{next: newTokens},
	}
	profile := session.Profile{ID: 1, Name: "Kim"}
	if err := f.store.Save(ctx, oldTokens, profile); err != nil {
		t.Fatalf("Save: %v", err)
	}
	f.holder.Establish(session.New(oldTokens), profile)

	coord, err := NewCoordinator(CoordinatorConfig{
		Holder:  f.holder,
		Store:   f.store,
		Renewer: f.renewer,
		Policy:  policy,
		OnSessionEnded: func(context.Context, error) {
			f.ended.Add(1)
		},
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	f.coord = coord

	client, err := NewClient(ClientConfig{Issuer: f.api, Holder: f.holder, Refresher: coord})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	f.client = client
	return f
}
