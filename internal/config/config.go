// Package config loads, validates, and persists the freta client
// configuration. The on-disk format is TOML; environment variables and CLI
// flags override file values.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Default values for the public service.
const (
	defaultAPIURL       = "https://freta.microsoft.com/"
	defaultClientID     = "574efb07-14a8-4232-a200-89714a0324c9"
	defaultTenantID     = "common"
	defaultScope        = "api://a934fc14-92d7-4127-aecd-bddab35935da/.default"
	defaultAuthorityURL = "https://login.microsoftonline.com"
	defaultLogLevel     = "info"
	defaultTimeout      = "5m"
)

// LocalDevelopmentURL is the api_url of a locally running backend. Requests
// against it carry no credentials.
const LocalDevelopmentURL = "http://localhost:7071"

// Config is the root configuration structure.
type Config struct {
	APIURL       string `toml:"api_url"`
	ClientID     string `toml:"client_id"`
	TenantID     string `toml:"tenant_id"`
	ClientSecret Secret `toml:"client_secret,omitempty"`
	Scope        string `toml:"scope,omitempty"`
	AuthorityURL string `toml:"authority_url"`
	NoLoginCache bool   `toml:"no_login_cache"`

	Logging   LoggingConfig   `toml:"logging"`
	Transfers TransfersConfig `toml:"transfers"`
	Network   NetworkConfig   `toml:"network"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}

// TransfersConfig controls blob transfers.
type TransfersConfig struct {
	BandwidthLimit string `toml:"bandwidth_limit"`
}

// NetworkConfig controls the HTTP client.
type NetworkConfig struct {
	Timeout string `toml:"timeout"`
}

// CLIOverrides holds values from command-line flags. Empty means "not set".
type CLIOverrides struct {
	ConfigPath string
	APIURL     string
}

// Secret is a string that never appears in logs or formatted output.
type Secret string

const redacted = "[REDACTED]"

// String implements fmt.Stringer.
func (s Secret) String() string {
	if s == "" {
		return ""
	}

	return redacted
}

// GoString keeps %#v from leaking the value.
func (s Secret) GoString() string {
	return s.String()
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// Reveal returns the underlying value. Only the token exchange should call it.
func (s Secret) Reveal() string {
	return string(s)
}

// DefaultConfig returns a Config populated with the public service defaults.
func DefaultConfig() *Config {
	return &Config{
		APIURL:       defaultAPIURL,
		ClientID:     defaultClientID,
		TenantID:     defaultTenantID,
		AuthorityURL: defaultAuthorityURL,
		Logging: LoggingConfig{
			LogLevel: defaultLogLevel,
		},
		Network: NetworkConfig{
			Timeout: defaultTimeout,
		},
	}
}

// ResolvedScope returns the OAuth scope to request. An explicit scope wins.
// Otherwise the default service keeps its published scope and any other
// api_url derives one: the path becomes ".default" and the https scheme
// becomes "api".
func (c *Config) ResolvedScope() (string, error) {
	if c.Scope != "" {
		return c.Scope, nil
	}

	if c.APIURL == defaultAPIURL {
		return defaultScope, nil
	}

	u, err := url.Parse(c.APIURL)
	if err != nil {
		return "", fmt.Errorf("config: parsing api_url: %w", err)
	}

	u.Path = "/.default"
	u.RawQuery = ""
	u.Fragment = ""

	return strings.Replace(u.String(), "https://", "api://", 1), nil
}

// BandwidthBytes returns the transfer limit in bytes per second (0 = none).
func (c *Config) BandwidthBytes() (int64, error) {
	return parseBandwidth(c.Transfers.BandwidthLimit)
}

// LogValue implements slog.LogValuer so a whole Config can be logged safely.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_url", c.APIURL),
		slog.String("client_id", c.ClientID),
		slog.String("tenant_id", c.TenantID),
		slog.Any("client_secret", c.ClientSecret),
		slog.String("scope", c.Scope),
		slog.Bool("no_login_cache", c.NoLoginCache),
	)
}
