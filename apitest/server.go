package apitest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jonwraymond/storesync/session"
	"github.com/jonwraymond/storesync/storefront"
)

// User is an account the server accepts at login.
type User struct {
	ID       uint
	Name     string
	Email    string
	Password string
	Role     string
}

// DefaultUser is the account every server starts with.
var DefaultUser = User{ID: 1, Name: "Kim Lee", Email: "kim@example.com", Password: "secret", Role: "customer"}

// DefaultCatalog is the product catalog every server starts with.
func DefaultCatalog() []storefront.Product {
	return []storefront.Product{
		{ID: 3, Name: "Desk Lamp", Description: "Adjustable LED lamp", Price: 20, Category: "Home", Stock: 10},
		{ID: 7, Name: "Headphones", Description: "Wireless over-ear", Price: 45.5, Category: "Electronics", Stock: 4},
		{ID: 9, Name: "Monitor", Description: "27 inch 4K", Price: 150, Category: "Electronics", Stock: 2},
	}
}

// Options configures a Server.
type Options struct {
	// Users replaces the default account list.
	Users []User

	// Catalog replaces DefaultCatalog.
	Catalog []storefront.Product

	// AccessTTL is the exp of access tokens. Default: 1h
	AccessTTL time.Duration

	// RefreshTTL is the exp of refresh tokens. Default: 24h
	RefreshTTL time.Duration
}

// Server is a running fake backend.
//
// Contract:
//   - Concurrency: control methods are safe to call while requests are in
//     flight.
type Server struct {
	*httptest.Server

	opts   Options
	secret []byte
	router *mux.Router

	mu        sync.Mutex
	users     map[string]User
	catalog   map[uint]storefront.Product
	access    map[string]uint // valid access token id -> user id
	carts     map[uint]*storefront.Cart
	wishlists map[uint][]storefront.WishlistEntry
	nextID    uint

	requests    map[string]int
	refreshes   int
	failRefresh int
	inject      map[string]int
	refreshGate chan struct{}
	refreshHeld chan struct{}
}

// NewServer starts a Server on a loopback port.
func NewServer(opts Options) *Server {
	s := newServer(opts)
	s.Server = httptest.NewServer(s.router)
	return s
}

func newServer(opts Options) *Server {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if opts.Users == nil {
		opts.Users = []User{DefaultUser}
	}
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}

	s := &Server{
		opts:      opts,
		secret:    []byte(uuid.NewString()),
		users:     make(map[string]User, len(opts.Users)),
		catalog:   make(map[uint]storefront.Product, len(opts.Catalog)),
		access:    make(map[string]uint),
		carts:     make(map[uint]*storefront.Cart),
		wishlists: make(map[uint][]storefront.WishlistEntry),
		nextID:    100,
		requests:  make(map[string]int),
		inject:    make(map[string]int),
	}
	for _, u := range opts.Users {
		s.users[u.Email] = u
	}
	for _, p := range opts.Catalog {
		s.catalog[p.ID] = p
	}
	s.router = s.routes()
	return s
}

// Handler returns the server's router, for use without a listener.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.countRequests)

	r.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodGet)
	r.HandleFunc("/products/{id:[0-9]+}", s.handleProduct).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.requireAuth, s.injectFailures)
	authed.HandleFunc("/cart", s.handleGetCart).Methods(http.MethodGet)
	authed.HandleFunc("/cart/items", s.handleAddToCart).Methods(http.MethodPost)
	authed.HandleFunc("/cart/items/{id:[0-9]+}", s.handleUpdateCartItem).Methods(http.MethodPut)
	authed.HandleFunc("/cart/items/{id:[0-9]+}", s.handleRemoveCartItem).Methods(http.MethodDelete)
	authed.HandleFunc("/wishlist", s.handleGetWishlist).Methods(http.MethodGet)
	authed.HandleFunc("/wishlist", s.handleAddToWishlist).Methods(http.MethodPost)
	authed.HandleFunc("/wishlist/{product_id:[0-9]+}", s.handleCheckWishlist).Methods(http.MethodGet)
	authed.HandleFunc("/wishlist/{product_id:[0-9]+}", s.handleRemoveFromWishlist).Methods(http.MethodDelete)
	return r
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	clear(s.access)
	s.mu.Unlock()
}

// FailRefresh makes the next n renewals answer 401.
func (s *Server) FailRefresh(n int) {
	s.mu.Lock()
	s.failRefresh = n
	s.mu.Unlock()
}

// HoldRefresh blocks renewals until release is called. held receives once
// per blocked renewal.
func (s *Server) HoldRefresh() (held <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.refreshGate = gate
	s.refreshHeld = make(chan struct{}, 16)
	var once sync.Once
	return s.refreshHeld, func() {
		once.Do(func() {
			s.mu.Lock()
			s.refreshGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// FailNext makes the next authenticated request to route answer status.
// route is "METHOD template", e.g. "PUT /cart/items/{id}".
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	s.inject[normalizeRoute(route)] = status
	s.mu.Unlock()
}

// Refreshes returns the number of renewal requests received.
func (s *Server) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// Requests returns the number of requests received for route.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[normalizeRoute(route)]
}

// SeedCart adds quantity of productID to the user's cart directly.
func (s *Server) SeedCart(userID, productID uint, quantity int) storefront.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, _ := s.addItemLocked(userID, productID, quantity)
	return it
}

// Login mints a token pair for the user with email, bypassing passwords.
func (s *Server) Login(email string) (session.LoginResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return session.LoginResult{}, false
	}
	tokens, err := s.mintLocked(u)
	if err != nil {
		return session.LoginResult{}, false
	}
	return loginResponse(u, tokens), true
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[routeKey(r)]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := routeKey(r)
		s.mu.Lock()
		status, ok := s.inject[key]
		delete(s.inject, key)
		s.mu.Unlock()
		if ok {
			writeError(w, status, "Injected failure", key)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authorization header not found", "")
			return
		}
		c, err := s.parse(raw, tokenAccess)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid access token", err.Error())
			return
		}
		s.mu.Lock()
		_, valid := s.access[c.ID]
		s.mu.Unlock()
		if !valid {
			writeError(w, http.StatusUnauthorized, "Invalid access token", "token expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, c.UserID)))
	})
}

func userID(r *http.Request) uint {
	id, _ := r.Context().Value(ctxKey{}).(uint)
	return id
}
