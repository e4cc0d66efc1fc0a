package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HTTPConfig holds the listener settings of the console API.
type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// UpstreamConfig points at the platform REST API the console talks to.
type UpstreamConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig controls console session lifetime.
type SessionConfig struct {
	CookieName    string        `yaml:"cookie_name"`
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SecureCookie  bool          `yaml:"secure_cookie"`
}

// Config is the root configuration structure
type Config struct {
	LogLevel    string         `yaml:"log_level"`
	DatabaseURL string         `yaml:"database_url"` // Optional: sessions are kept in memory without it
	RoutePrefix string         `yaml:"route_prefix"`
	HTTP        HTTPConfig     `yaml:"http"`
	Upstream    UpstreamConfig `yaml:"upstream"`
	Session     SessionConfig  `yaml:"session"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:           ":8082",
			RequestTimeout: 15 * time.Second,
		},
		Upstream: UpstreamConfig{
			URL:     "http://127.0.0.1:22900/api",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			CookieName:    "console_session",
			IdleTTL:       8 * time.Hour,
			SweepInterval: time.Minute,
		},
	}
}

// Load reads a YAML file on top of the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides file values with environment variables. lookup is os.LookupEnv in
// production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.LogLevel)
	str("DATABASE_URL", &c.DatabaseURL)
	str("UPSTREAM_URL", &c.Upstream.URL)
	str("ROUTE_PREFIX", &c.RoutePrefix)

	if err := dur("UPSTREAM_TIMEOUT", &c.Upstream.Timeout); err != nil {
		return err
	}
	if err := dur("SESSION_IDLE_TTL", &c.Session.IdleTTL); err != nil {
		return err
	}
	return dur("SWEEP_INTERVAL", &c.Session.SweepInterval)
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr must be set"))
	}
	u, err := url.Parse(c.Upstream.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("upstream.url %q is not an http(s) URL", c.Upstream.URL))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		errs = append(errs, errors.New("session.cookie_name must be set"))
	}
	if c.Session.IdleTTL <= 0 {
		errs = append(errs, errors.New("session.idle_ttl must be positive"))
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("session.sweep_interval must be positive"))
	}
	if c.RoutePrefix != "" && !strings.HasPrefix(c.RoutePrefix, "/") {
		errs = append(errs, fmt.Errorf("route_prefix %q must start with /", c.RoutePrefix))
	}
	return errors.Join(errs...)
}
