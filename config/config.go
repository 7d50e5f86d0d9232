package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/jonwraymond/storesync/auth"
	"github.com/jonwraymond/storesync/cache"
	"github.com/jonwraymond/storesync/health"
	"github.com/jonwraymond/storesync/observe"
)

// Defaults.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultServiceName    = "storesync"
	DefaultMaxAttempts    = 3
	DefaultInitialDelay   = time.Second
	DefaultMaxDelay       = 30 * time.Second
)

// Config is the resolved storesync configuration.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	UserAgent      string

	Credentials CredentialsConfig
	Refresh     RefreshConfig
	Cache       CacheConfig
	Fetch       FetchConfig
	Health      HealthConfig
	Observe     observe.Config
}

// CredentialsConfig selects the credential store.
type CredentialsConfig struct {
	// Path is the LevelDB directory. Empty keeps credentials in memory.
	Path string
}

// RefreshConfig configures credential renewal.
type RefreshConfig struct {
	Path    string
	Policy  auth.Policy
	Timeout time.Duration
}

// CacheConfig configures the collection cache.
type CacheConfig struct {
	StaleTime time.Duration
}

// FetchConfig configures retries of collection fetches.
type FetchConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// HealthConfig configures health checks.
type HealthConfig struct {
	PingPath string
	Timeout  time.Duration
}

// Default returns the configuration used for missing values. BaseURL has
// no default.
func Default() Config {
	return Config{
		RequestTimeout: DefaultRequestTimeout,
		Refresh:        RefreshConfig{Path: auth.DefaultRefreshPath, Policy: auth.PolicyFailFast, Timeout: auth.DefaultRenewTimeout},
		Cache:          CacheConfig{StaleTime: cache.DefaultStaleTime},
		Fetch: FetchConfig{
			MaxAttempts:  DefaultMaxAttempts,
			InitialDelay: DefaultInitialDelay,
			MaxDelay:     DefaultMaxDelay,
		},
		Health: HealthConfig{PingPath: health.DefaultPingPath, Timeout: health.DefaultCheckTimeout},
		Observe: observe.Config{
			ServiceName: DefaultServiceName,
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

type fileConfig struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout string `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`

	Credentials struct {
		Path string `toml:"path"`
	} `toml:"credentials"`

	Refresh struct {
		Path    string `toml:"path"`
		Policy  string `toml:"policy"`
		Timeout string `toml:"timeout"`
	} `toml:"refresh"`

	Cache struct {
		StaleTime string `toml:"stale_time"`
	} `toml:"cache"`

	Fetch struct {
		MaxAttempts  int    `toml:"max_attempts"`
		InitialDelay string `toml:"initial_delay"`
		MaxDelay     string `toml:"max_delay"`
	} `toml:"fetch"`

	Health struct {
		PingPath string `toml:"ping_path"`
		Timeout  string `toml:"timeout"`
	} `toml:"health"`

	Observe struct {
		ServiceName     string   `toml:"service_name"`
		Version         string   `toml:"version"`
		LogLevel        string   `toml:"log_level"`
		Logging         *bool    `toml:"logging"`
		TracingExporter string   `toml:"tracing_exporter"`
		SamplePct       *float64 `toml:"sample_pct"`
		MetricsExporter string   `toml:"metrics_exporter"`
	} `toml:"observe"`
}

// Load reads and resolves the TOML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse resolves a TOML document.
func Parse(data []byte) (Config, error) {
	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := expandAll(
		&raw.BaseURL, &raw.UserAgent, &raw.Credentials.Path, &raw.Refresh.Path,
		&raw.Health.PingPath, &raw.Observe.ServiceName, &raw.Observe.Version,
	); err != nil {
		return Config{}, err
	}

	cfg := Default()
	var errs []error
	setString := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, name, v string) {
		if v = strings.TrimSpace(v); v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalid, name, err))
			return
		}
		*dst = d
	}

	cfg.BaseURL = strings.TrimSpace(raw.BaseURL)
	setDuration(&cfg.RequestTimeout, "request_timeout", raw.RequestTimeout)
	setString(&cfg.UserAgent, raw.UserAgent)

	credPath, err := expandPath(raw.Credentials.Path)
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: credentials.path: %w", ErrInvalid, err))
	}
	cfg.Credentials.Path = credPath

	setString(&cfg.Refresh.Path, raw.Refresh.Path)
	if p, err := auth.ParsePolicy(raw.Refresh.Policy); err != nil {
		errs = append(errs, fmt.Errorf("%w: refresh.policy: %w", ErrInvalid, err))
	} else {
		cfg.Refresh.Policy = p
	}
	setDuration(&cfg.Refresh.Timeout, "refresh.timeout", raw.Refresh.Timeout)

	setDuration(&cfg.Cache.StaleTime, "cache.stale_time", raw.Cache.StaleTime)

	if raw.Fetch.MaxAttempts != 0 {
		cfg.Fetch.MaxAttempts = raw.Fetch.MaxAttempts
	}
	setDuration(&cfg.Fetch.InitialDelay, "fetch.initial_delay", raw.Fetch.InitialDelay)
	setDuration(&cfg.Fetch.MaxDelay, "fetch.max_delay", raw.Fetch.MaxDelay)

	setString(&cfg.Health.PingPath, raw.Health.PingPath)
	setDuration(&cfg.Health.Timeout, "health.timeout", raw.Health.Timeout)

	o := raw.Observe
	setString(&cfg.Observe.ServiceName, o.ServiceName)
	cfg.Observe.Version = strings.TrimSpace(o.Version)
	setString(&cfg.Observe.Logging.Level, strings.ToLower(o.LogLevel))
	if o.Logging != nil {
		cfg.Observe.Logging.Enabled = *o.Logging
	}
	if e := strings.ToLower(strings.TrimSpace(o.TracingExporter)); e != "" && e != "none" {
		cfg.Observe.Tracing = observe.TracingConfig{Enabled: true, Exporter: e, SamplePct: 1.0}
	}
	if o.SamplePct != nil {
		cfg.Observe.Tracing.SamplePct = *o.SamplePct
	}
	if e := strings.ToLower(strings.TrimSpace(o.MetricsExporter)); e != "" && e != "none" {
		cfg.Observe.Metrics = observe.MetricsConfig{Enabled: true, Exporter: e}
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks a resolved configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, fmt.Errorf("%w: base_url is required", ErrInvalid))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: request_timeout must not be negative", ErrInvalid))
	}
	if !strings.HasPrefix(c.Refresh.Path, "/") {
		errs = append(errs, fmt.Errorf("%w: refresh.path must start with /", ErrInvalid))
	}
	if c.Refresh.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: refresh.timeout must not be negative", ErrInvalid))
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("%w: fetch.max_attempts must be at least 1", ErrInvalid))
	}
	if c.Fetch.InitialDelay < 0 || c.Fetch.MaxDelay < 0 {
		errs = append(errs, fmt.Errorf("%w: fetch delays must not be negative", ErrInvalid))
	}
	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

func expandAll(fields ...*string) error {
	for _, f := range fields {
		v, err := ExpandEnvStrict(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}
