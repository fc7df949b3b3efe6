// Package config loads the monitor configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables. Command-line flags are applied last by the caller.
//
// Example file:
//
//	urls:
//	  - https://example.com
//	  - https://api.example.com/health
//	interval: 5
//	slack:
//	  url: ${SLACK_WEBHOOK}
//	  channel: "#ops"
//	log_file: /var/log/pingzy.log
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultIntervalMinutes = 5
	DefaultTmpDir          = ".tmp"
	DefaultUsername        = "Pingzy"
	DefaultAPIRPM          = 120
	DefaultAPIBurst        = 60
)

type Config struct {
	// URLs to probe. Required.
	URLs []string `yaml:"urls"`
	// Interval between check cycles, in minutes.
	Interval int `yaml:"interval"`

	Slack Slack `yaml:"slack"`

	// TmpDir is created at startup; the monitor itself writes nothing there.
	TmpDir  string `yaml:"tmp"`
	Verbose bool   `yaml:"verbose"`
	// LogFile adds a rotated file sink next to stderr.
	LogFile string `yaml:"log_file"`

	API API `yaml:"api"`

	// DatabaseURL switches the check history from memory to Postgres.
	DatabaseURL string `yaml:"database_url"`
	// MaxConcurrentChecks bounds probes in flight per cycle; 0 = one per URL.
	MaxConcurrentChecks int `yaml:"max_concurrent_checks"`
}

// Slack is the notification channel. An empty URL disables notifications.
type Slack struct {
	URL      string `yaml:"url"`
	Channel  string `yaml:"channel"`
	Username string `yaml:"username"`
	Icon     string `yaml:"icon"`
}

// API is the optional read-only status server. Empty Addr disables it.
type API struct {
	Addr       string   `yaml:"addr"`
	PublicKeys []string `yaml:"public_keys"`
	AdminKeys  []string `yaml:"admin_keys"`
	RPM        int      `yaml:"rpm"`
	Burst      int      `yaml:"burst"`
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func Default() Config {
	return Config{
		Interval: DefaultIntervalMinutes,
		TmpDir:   DefaultTmpDir,
		Slack:    Slack{Username: DefaultUsername},
		API:      API{RPM: DefaultAPIRPM, Burst: DefaultAPIBurst},
	}
}

// CheckInterval is Interval as a duration.
func (c Config) CheckInterval() time.Duration {
	return time.Duration(c.Interval) * time.Minute
}

// Load reads path (if non-empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and expands ${VAR} / ${VAR:-default}
// in URLs and the webhook.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse YAML: %w", err)
	}
	if cfg.Slack.Username == "" {
		cfg.Slack.Username = DefaultUsername
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = DefaultTmpDir
	}
	var err error
	for i, u := range cfg.URLs {
		if cfg.URLs[i], err = expandEnvVars(u); err != nil {
			return cfg, fmt.Errorf("urls[%d]: %w", i, err)
		}
	}
	if cfg.Slack.URL, err = expandEnvVars(cfg.Slack.URL); err != nil {
		return cfg, fmt.Errorf("slack.url: %w", err)
	}
	if cfg.DatabaseURL, err = expandEnvVars(cfg.DatabaseURL); err != nil {
		return cfg, fmt.Errorf("database_url: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from PINGZY_* (and a few shared) variables.
func (c *Config) ApplyEnv() error {
	var errs error

	if v := os.Getenv("PINGZY_URLS"); v != "" {
		c.URLs = splitList(v)
	}
	if v := os.Getenv("PINGZY_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("PINGZY_INTERVAL: %w", err))
		} else {
			c.Interval = n
		}
	}
	setString(&c.Slack.URL, "PINGZY_SLACK_URL")
	setString(&c.Slack.Channel, "PINGZY_SLACK_CHANNEL")
	setString(&c.Slack.Username, "PINGZY_SLACK_USERNAME")
	setString(&c.Slack.Icon, "PINGZY_SLACK_ICON")
	setString(&c.TmpDir, "PINGZY_TMP")
	setString(&c.LogFile, "PINGZY_LOG_FILE")
	setString(&c.API.Addr, "PINGZY_API_ADDR")
	setString(&c.DatabaseURL, "DATABASE_URL")
	if v := os.Getenv("PINGZY_VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("PINGZY_VERBOSE: %w", err))
		} else {
			c.Verbose = b
		}
	}
	if v := os.Getenv("PUBLIC_API_KEYS"); v != "" {
		c.API.PublicKeys = splitList(v)
	}
	if v := os.Getenv("ADMIN_API_KEYS"); v != "" {
		c.API.AdminKeys = splitList(v)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.API.AllowedOrigins = splitList(v)
	}
	for name, dst := range map[string]*int{
		"PINGZY_API_RPM":               &c.API.RPM,
		"PINGZY_API_BURST":             &c.API.Burst,
		"PINGZY_MAX_CONCURRENT_CHECKS": &c.MaxConcurrentChecks,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		*dst = n
	}
	return errs
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs error
	if len(c.URLs) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("urls: at least one url is required"))
	}
	for i, u := range c.URLs {
		if err := validateHTTPURL(u); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("urls[%d]: %w", i, err))
		}
	}
	if c.Interval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("interval: must be a positive number of minutes, got %d", c.Interval))
	}
	if c.Slack.URL != "" {
		if err := validateHTTPURL(c.Slack.URL); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("slack.url: %w", err))
		}
	}
	if c.TmpDir == "" {
		errs = multierr.Append(errs, fmt.Errorf("tmp: must not be empty"))
	}
	if c.MaxConcurrentChecks < 0 {
		errs = multierr.Append(errs, fmt.Errorf("max_concurrent_checks: must not be negative"))
	}
	if c.API.Addr != "" && c.API.RPM < 0 {
		errs = multierr.Append(errs, fmt.Errorf("api.rpm: must not be negative"))
	}
	return errs
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q: missing host", raw)
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func expandEnvVars(s string) (string, error) {
	var firstErr error
	out := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		sub := envVarPattern.FindStringSubmatch(match)
		name, hasDefault, def := sub[1], sub[2] != "", sub[3]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if hasDefault {
			return def
		}
		firstErr = fmt.Errorf("environment variable %q is not set", name)
		return match
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
