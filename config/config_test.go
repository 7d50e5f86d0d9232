package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/storesync/auth"
	"github.com/jonwraymond/storesync/cache"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storesync.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `base_url = "http://localhost:8080"`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.Credentials.Path != "" {
		t.Errorf("Credentials.Path = %q, want memory store", cfg.Credentials.Path)
	}
	if cfg.Refresh.Path != auth.DefaultRefreshPath || cfg.Refresh.Policy != auth.PolicyFailFast || cfg.Refresh.Timeout != auth.DefaultRenewTimeout {
		t.Errorf("Refresh = %+v", cfg.Refresh)
	}
	if cfg.Cache.StaleTime != cache.DefaultStaleTime {
		t.Errorf("StaleTime = %v", cfg.Cache.StaleTime)
	}
	if cfg.Fetch.MaxAttempts != DefaultMaxAttempts || cfg.Fetch.InitialDelay != DefaultInitialDelay {
		t.Errorf("Fetch = %+v", cfg.Fetch)
	}
	if cfg.Observe.ServiceName != DefaultServiceName || cfg.Observe.Tracing.Enabled || cfg.Observe.Metrics.Enabled {
		t.Errorf("Observe = %+v", cfg.Observe)
	}
}

func TestLoad_ParsesEverySection(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SHOP_HOST", "shop.example.com")

	cfg, err := Load(writeConfig(t, `
base_url = "https://${SHOP_HOST}/api/v1"
request_timeout = "15s"
user_agent = "storefront-app/2.1"

[credentials]
path = "~/.storesync/creds"

[refresh]
path = "/auth/renew"
policy = "await"
timeout = "5s"

[cache]
stale_time = "90s"

[fetch]
max_attempts = 5
initial_delay = "250ms"
max_delay = "4s"

[health]
ping_path = "/healthz"
timeout = "2s"

[observe]
service_name = "storefront-app"
log_level = "DEBUG"
tracing_exporter = "stdout"
sample_pct = 0.5
metrics_exporter = "prometheus"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BaseURL != "https://shop.example.com/api/v1" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.RequestTimeout != 15*time.Second || cfg.UserAgent != "storefront-app/2.1" {
		t.Errorf("request settings = %v %q", cfg.RequestTimeout, cfg.UserAgent)
	}
	if cfg.Credentials.Path != filepath.Join(home, ".storesync/creds") {
		t.Errorf("Credentials.Path = %q", cfg.Credentials.Path)
	}
	if cfg.Refresh.Path != "/auth/renew" || cfg.Refresh.Policy != auth.PolicyAwait || cfg.Refresh.Timeout != 5*time.Second {
		t.Errorf("Refresh = %+v", cfg.Refresh)
	}
	if cfg.Cache.StaleTime != 90*time.Second {
		t.Errorf("StaleTime = %v", cfg.Cache.StaleTime)
	}
	if cfg.Fetch != (FetchConfig{MaxAttempts: 5, InitialDelay: 250 * time.Millisecond, MaxDelay: 4 * time.Second}) {
		t.Errorf("Fetch = %+v", cfg.Fetch)
	}
	if cfg.Health != (HealthConfig{PingPath: "/healthz", Timeout: 2 * time.Second}) {
		t.Errorf("Health = %+v", cfg.Health)
	}
	o := cfg.Observe
	if o.ServiceName != "storefront-app" || o.Logging.Level != "debug" {
		t.Errorf("Observe = %+v", o)
	}
	if !o.Tracing.Enabled || o.Tracing.Exporter != "stdout" || o.Tracing.SamplePct != 0.5 {
		t.Errorf("Tracing = %+v", o.Tracing)
	}
	if !o.Metrics.Enabled || o.Metrics.Exporter != "prometheus" {
		t.Errorf("Metrics = %+v", o.Metrics)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "missing base url", body: `request_timeout = "1s"`, wantErr: ErrInvalid, wantMsg: "base_url"},
		{name: "missing env var", body: `base_url = "https://${STORESYNC_UNSET_HOST}"`, wantErr: ErrMissingEnv, wantMsg: "STORESYNC_UNSET_HOST"},
		{name: "bad duration", body: "base_url = \"http://x\"\n[cache]\nstale_time = \"soon\"", wantErr: ErrInvalid, wantMsg: "cache.stale_time"},
		{name: "bad policy", body: "base_url = \"http://x\"\n[refresh]\npolicy = \"queue\"", wantErr: auth.ErrInvalidPolicy, wantMsg: "refresh.policy"},
		{name: "bad attempts", body: "base_url = \"http://x\"\n[fetch]\nmax_attempts = -1", wantErr: ErrInvalid, wantMsg: "max_attempts"},
		{name: "bad exporter", body: "base_url = \"http://x\"\n[observe]\ntracing_exporter = \"jaeger\"", wantErr: ErrInvalid, wantMsg: "observe"},
		{name: "bad toml", body: `base_url = `, wantMsg: "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("PRESENT", "ok")
	t.Setenv("X", "y")

	tests := []struct {
		in      string
		want    string
		wantErr string
	}{
		{in: "plain", want: "plain"},
		{in: "a=${PRESENT}", want: "a=ok"},
		{in: "$$${X}", want: "$y"},
		{in: "a=${PRESENT} b=${MISSING_B} c=${MISSING_A} d=${MISSING_B}", wantErr: "MISSING_A, MISSING_B"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandEnvStrict(tt.in)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrMissingEnv) || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ExpandEnvStrict(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
			}
		})
	}
}
