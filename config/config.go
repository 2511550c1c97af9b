package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jonwraymond/toolscope/interceptor"
	"github.com/jonwraymond/toolscope/observe"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TOOLSCOPE"

// LegacyPermissionsEnv holds an inline permission document.
const LegacyPermissionsEnv = "TOOL_PERMISSIONS"

// Config is the complete toolscope configuration.
type Config struct {
	// Listen is the address the HTTP server binds.
	Listen string `mapstructure:"listen" validate:"required"`

	// Upstream is the MCP server URL for reverse-proxy mode. Empty disables
	// the proxy.
	Upstream string `mapstructure:"upstream" validate:"omitempty,http_url"`

	Permissions PermissionsConfig `mapstructure:"permissions"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	Observe     ObserveConfig     `mapstructure:"observe"`
}

// PermissionsConfig locates the permission document. Inline wins over File.
type PermissionsConfig struct {
	File   string `mapstructure:"file"`
	Inline string `mapstructure:"inline"`
}

// ProxyConfig configures reverse-proxy mode.
type ProxyConfig struct {
	EnforceCalls bool  `mapstructure:"enforceCalls"`
	MaxBodyBytes int64 `mapstructure:"maxBodyBytes" validate:"gte=0"`
}

// LimitsConfig configures admission control. A zero Rate disables rate
// limiting and a zero MaxConcurrent disables the bulkhead.
type LimitsConfig struct {
	Rate          float64       `mapstructure:"rate" validate:"gte=0"`
	Burst         int           `mapstructure:"burst" validate:"gte=0"`
	MaxConcurrent int           `mapstructure:"maxConcurrent" validate:"gte=0"`
	MaxWait       time.Duration `mapstructure:"maxWait" validate:"gte=0"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	ServiceName string        `mapstructure:"serviceName" validate:"required"`
	Tracing     TracingConfig `mapstructure:"tracing"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// TracingConfig configures tracing.
type TracingConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Exporter  string  `mapstructure:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint  string  `mapstructure:"endpoint"`
	SamplePct float64 `mapstructure:"samplePct" validate:"gte=0,lte=1"`
}

// MetricsConfig configures metrics.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter" validate:"omitempty,oneof=otlp prometheus stdout none"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

var defaults = map[string]any{
	"listen":                    ":8080",
	"upstream":                  "",
	"permissions.file":          "",
	"permissions.inline":        "",
	"proxy.enforceCalls":        false,
	"proxy.maxBodyBytes":        interceptor.DefaultMaxBodyBytes,
	"limits.rate":               0.0,
	"limits.burst":              0,
	"limits.maxConcurrent":      0,
	"limits.maxWait":            time.Duration(0),
	"limits.timeout":            30 * time.Second,
	"observe.serviceName":       "toolscope",
	"observe.tracing.enabled":   false,
	"observe.tracing.exporter":  "none",
	"observe.tracing.endpoint":  "",
	"observe.tracing.samplePct": 1.0,
	"observe.metrics.enabled":   true,
	"observe.metrics.exporter":  "prometheus",
	"observe.metrics.endpoint":  "",
	"observe.logging.level":     "info",
}

// NewViper returns a viper instance with toolscope defaults and environment
// bindings. Callers may bind flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("permissions.inline", EnvPrefix+"_PERMISSIONS_INLINE", LegacyPermissionsEnv)
	return v
}

// Load reads the config file named by path (if any) into v, then decodes
// and validates the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrReadConfig, path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := checkListen(c.Listen); err != nil {
		return fmt.Errorf("%w: listen %q: %v", ErrInvalidConfig, c.Listen, err)
	}
	if c.Proxy.EnforceCalls && c.Upstream == "" {
		return fmt.Errorf("%w: proxy.enforceCalls requires upstream", ErrInvalidConfig)
	}
	return nil
}

// checkListen accepts host:port addresses as net.Listen takes them, with
// an optional host and IPv6 hosts in brackets.
func checkListen(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

// ProxyEnabled reports whether reverse-proxy mode is configured.
func (c *Config) ProxyEnabled() bool {
	return c.Upstream != ""
}

// ObserverConfig converts the telemetry settings for observe.NewObserver.
func (c ObserveConfig) ObserverConfig(version string) observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Tracing.Enabled,
			Exporter:  c.Tracing.Exporter,
			Endpoint:  c.Tracing.Endpoint,
			SamplePct: c.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Metrics.Enabled,
			Exporter: c.Metrics.Exporter,
			Endpoint: c.Metrics.Endpoint,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Logging.Level,
		},
	}
}
