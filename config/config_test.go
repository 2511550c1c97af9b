package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/toolscope/interceptor"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := &Config{
		Listen: ":8080",
		Proxy:  ProxyConfig{MaxBodyBytes: interceptor.DefaultMaxBodyBytes},
		Limits: LimitsConfig{Timeout: 30 * time.Second},
		Observe: ObserveConfig{
			ServiceName: "toolscope",
			Tracing:     TracingConfig{Exporter: "none", SamplePct: 1.0},
			Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
			Logging:     LoggingConfig{Level: "info"},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if cfg.ProxyEnabled() {
		t.Error("ProxyEnabled() = true without upstream")
	}
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "toolscope.yaml", `
listen: 127.0.0.1:9090
upstream: http://mcp.internal:3000/mcp
permissions:
  file: /etc/toolscope/permissions.yaml
proxy:
  enforceCalls: true
limits:
  rate: 50
  burst: 20
  maxConcurrent: 8
  maxWait: 250ms
  timeout: 5s
observe:
  logging:
    level: debug
`)

	cfg, err := Load(NewViper(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Listen != "127.0.0.1:9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if !cfg.ProxyEnabled() || !cfg.Proxy.EnforceCalls {
		t.Errorf("proxy settings = %+v upstream=%q", cfg.Proxy, cfg.Upstream)
	}
	wantLimits := LimitsConfig{Rate: 50, Burst: 20, MaxConcurrent: 8, MaxWait: 250 * time.Millisecond, Timeout: 5 * time.Second}
	if diff := cmp.Diff(wantLimits, cfg.Limits); diff != "" {
		t.Errorf("Limits mismatch (-want +got):\n%s", diff)
	}
	if cfg.Permissions.File != "/etc/toolscope/permissions.yaml" {
		t.Errorf("Permissions.File = %q", cfg.Permissions.File)
	}
	if cfg.Observe.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Observe.Logging.Level)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "toolscope.yaml", "listen: \":9000\"\n")
	t.Setenv("TOOLSCOPE_LISTEN", ":9100")
	t.Setenv("TOOLSCOPE_LIMITS_MAXCONCURRENT", "4")

	cfg, err := Load(NewViper(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != ":9100" {
		t.Errorf("Listen = %q, want :9100", cfg.Listen)
	}
	if cfg.Limits.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d, want 4", cfg.Limits.MaxConcurrent)
	}
}

func TestLoad_InlinePermissionsEnv(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"legacy", LegacyPermissionsEnv},
		{"prefixed", "TOOLSCOPE_PERMISSIONS_INLINE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, `{"guest":["list"]}`)

			cfg, err := Load(NewViper(), "")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Permissions.Inline != `{"guest":["list"]}` {
				t.Errorf("Permissions.Inline = %q", cfg.Permissions.Inline)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrReadConfig) {
		t.Errorf("Load() error = %v, want ErrReadConfig", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(NewViper(), "")
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"listen without port", func(c *Config) { c.Listen = "localhost" }},
		{"listen with bad port", func(c *Config) { c.Listen = ":http-alt" }},
		{"unbracketed ipv6 listen", func(c *Config) { c.Listen = "::1:8080" }},
		{"bad upstream", func(c *Config) { c.Upstream = "not a url" }},
		{"negative rate", func(c *Config) { c.Limits.Rate = -1 }},
		{"negative timeout", func(c *Config) { c.Limits.Timeout = -time.Second }},
		{"bad exporter", func(c *Config) { c.Observe.Metrics.Exporter = "statsd" }},
		{"bad sample pct", func(c *Config) { c.Observe.Tracing.SamplePct = 1.5 }},
		{"bad log level", func(c *Config) { c.Observe.Logging.Level = "trace" }},
		{"missing service name", func(c *Config) { c.Observe.ServiceName = "" }},
		{"enforce without upstream", func(c *Config) { c.Proxy.EnforceCalls = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestValidate_ListenAddresses(t *testing.T) {
	for _, addr := range []string{":8080", "127.0.0.1:9090", "[::]:8080", "[::1]:0", "localhost:8443"} {
		cfg, err := Load(NewViper(), "")
		if err != nil {
			t.Fatal(err)
		}
		cfg.Listen = addr
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate(listen %q) error = %v", addr, err)
		}
	}
}

func TestObserverConfig(t *testing.T) {
	cfg, err := Load(NewViper(), "")
	if err != nil {
		t.Fatal(err)
	}

	oc := cfg.Observe.ObserverConfig("1.2.3")
	if oc.ServiceName != "toolscope" || oc.Version != "1.2.3" {
		t.Errorf("ObserverConfig() = %+v", oc)
	}
	if !oc.Logging.Enabled || oc.Logging.Level != "info" {
		t.Errorf("Logging = %+v", oc.Logging)
	}
	if err := oc.Validate(); err != nil {
		t.Errorf("ObserverConfig().Validate() error = %v", err)
	}
}
