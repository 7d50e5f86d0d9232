package storesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonwraymond/storesync/api"
	"github.com/jonwraymond/storesync/auth"
	"github.com/jonwraymond/storesync/cache"
	"github.com/jonwraymond/storesync/config"
	"github.com/jonwraymond/storesync/health"
	"github.com/jonwraymond/storesync/mutation"
	"github.com/jonwraymond/storesync/observe"
	"github.com/jonwraymond/storesync/resilience"
	"github.com/jonwraymond/storesync/session"
	"github.com/jonwraymond/storesync/storefront"
)

// LoginPath is the backend's login route.
const LoginPath = "/auth/login"

// Options carries runtime collaborators that do not belong in a file.
type Options struct {
	// HTTPClient sends every request. Default: a client with the
	// configured request timeout.
	HTTPClient *http.Client

	// CredentialStore overrides the store selected by the configuration.
	// The caller keeps ownership; Close does not close it.
	CredentialStore session.CredentialStore

	// Output receives logs and stdout exporter output. Default: stderr for
	// logs and stdout for exporters.
	Output io.Writer

	// OnSessionEnded runs after a failed renewal forced a logout.
	OnSessionEnded func(ctx context.Context, cause error)

	// OnSettled observes every settled mutation.
	OnSettled func(p mutation.Pending)
}

// Client is one storefront session's wiring.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Lifecycle: Close releases the observer and any credential store Open
//     created. A Client is not reusable after Close.
type Client struct {
	// Cart and Wishlist are the mutation entry points.
	Cart     *storefront.CartService
	Wishlist *storefront.WishlistService

	cfg       config.Config
	obs       observe.Observer
	logger    observe.Logger
	raw       *api.HTTPIssuer
	manager   *session.Manager
	refresh   *auth.Coordinator
	authed    *auth.Client
	store     *cache.Store
	mutations *mutation.Coordinator
	health    *health.Aggregator

	closers []func(ctx context.Context) error
}

// Open builds a Client from cfg. It does not restore or create a session;
// call Restore or Login next.
func Open(ctx context.Context, cfg config.Config, opts Options) (_ *Client, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}
	defer func() {
		if err != nil {
			_ = c.Close(context.WithoutCancel(ctx))
		}
	}()

	obsCfg := cfg.Observe
	obsCfg.Output = opts.Output
	c.obs, err = observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("storesync: observer: %w", err)
	}
	c.closers = append(c.closers, c.obs.Shutdown)
	c.logger = c.obs.Logger()

	mw, err := observe.MiddlewareFromObserver(c.obs)
	if err != nil {
		return nil, fmt.Errorf("storesync: metrics: %w", err)
	}

	creds := opts.CredentialStore
	if creds == nil {
		creds, err = c.openCredentials(cfg.Credentials)
		if err != nil {
			return nil, err
		}
	}

	c.raw, err = api.NewHTTPIssuer(api.HTTPConfig{
		BaseURL:    cfg.BaseURL,
		HTTPClient: opts.HTTPClient,
		Timeout:    cfg.RequestTimeout,
		UserAgent:  cfg.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("storesync: %w", err)
	}

	holder := session.NewHolder()
	c.manager = session.NewManager(session.ManagerConfig{Holder: holder, Store: creds, Logger: c.logger})

	renewer, err := auth.NewHTTPRenewer(auth.HTTPRenewerConfig{Issuer: c.raw, Path: cfg.Refresh.Path})
	if err != nil {
		return nil, err
	}
	c.refresh, err = auth.NewCoordinator(auth.CoordinatorConfig{
		Holder:         holder,
		Store:          creds,
		Renewer:        renewer,
		Policy:         cfg.Refresh.Policy,
		Timeout:        cfg.Refresh.Timeout,
		Middleware:     mw,
		OnSessionEnded: opts.OnSessionEnded,
	})
	if err != nil {
		return nil, err
	}
	c.authed, err = auth.NewClient(auth.ClientConfig{
		Issuer:    c.raw,
		Holder:    holder,
		Refresher: c.refresh,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, err
	}

	c.store = cache.New(cache.Config{
		Policy:     cache.Policy{StaleTime: cfg.Cache.StaleTime},
		Retry:      c.fetchRetry(cfg.Fetch),
		Middleware: mw,
	})
	c.closers = append(c.closers, func(context.Context) error {
		c.store.Close()
		return nil
	})

	// Whatever ends the session, the next user must not see this one's data.
	unsubscribe := holder.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventEnded {
			c.store.Clear()
		}
	})
	c.closers = append(c.closers, func(context.Context) error {
		unsubscribe()
		return nil
	})

	c.mutations, err = mutation.New(mutation.Config{Store: c.store, Middleware: mw, OnSettled: opts.OnSettled})
	if err != nil {
		return nil, err
	}

	remote := storefront.NewRemote(c.authed)
	storefront.RegisterLoaders(c.store, remote)
	c.Cart = storefront.NewCartService(c.mutations, remote)
	c.Wishlist = storefront.NewWishlistService(c.mutations, remote)

	c.health = health.NewAggregator(health.AggregatorConfig{Timeout: cfg.Health.Timeout, Logger: c.logger})
	c.health.Register("session", health.NewSessionChecker(holder, c.refresh))
	c.health.Register("api", health.NewAPIChecker(c.raw, health.APICheckerConfig{Path: cfg.Health.PingPath}))

	c.logger.Info(ctx, "storesync opened",
		observe.F("base_url", cfg.BaseURL),
		observe.F("refresh_policy", cfg.Refresh.Policy.String()),
	)
	return c, nil
}

func (c *Client) openCredentials(cfg config.CredentialsConfig) (session.CredentialStore, error) {
	if cfg.Path == "" {
		return session.NewMemoryStore(), nil
	}
	db, err := session.OpenLevelDBStore(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("storesync: credentials: %w", err)
	}
	c.closers = append(c.closers, func(context.Context) error { return db.Close() })
	return db, nil
}

func (c *Client) fetchRetry(cfg config.FetchConfig) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Jitter:       true,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.logger.Debug(context.Background(), "retrying fetch",
				observe.F("attempt", attempt),
				observe.F("delay_ms", delay.Milliseconds()),
				observe.F("error", err),
			)
		},
	}
}

// Login authenticates with email and password and establishes the session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	req := api.NewRequest(http.MethodPost, LoginPath, map[string]string{
		"email":    email,
		"password": password,
	})
	resp, err := c.raw.Issue(ctx, req)
	if err != nil {
		return err
	}
	var res session.LoginResult
	if err := resp.Decode(&res); err != nil {
		return fmt.Errorf("storesync: login: %w", err)
	}
	c.store.Clear()
	return c.manager.Login(ctx, res)
}

// Restore installs the stored session, if any, and reports whether one was
// found.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	return c.manager.Restore(ctx)
}

// Logout clears the stored credentials, the live session and the cache.
func (c *Client) Logout(ctx context.Context) error {
	return c.manager.Logout(ctx)
}

// LoggedIn reports whether a session is installed.
func (c *Client) LoggedIn() bool { return c.manager.LoggedIn() }

// Profile returns the logged-in user's profile.
func (c *Client) Profile() (session.Profile, bool) {
	return c.manager.Holder().Profile()
}

// Issuer returns the authenticated request path, for calls the storefront
// package does not cover.
func (c *Client) Issuer() api.Issuer { return c.authed }

// Store returns the collection cache.
func (c *Client) Store() *cache.Store { return c.store }

// Mutations returns the mutation coordinator.
func (c *Client) Mutations() *mutation.Coordinator { return c.mutations }

// Refresh returns the renewal coordinator.
func (c *Client) Refresh() *auth.Coordinator { return c.refresh }

// Health runs every health check.
func (c *Client) Health(ctx context.Context) health.Report {
	return c.health.Report(ctx)
}

// Close releases everything Open created, in reverse order.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
