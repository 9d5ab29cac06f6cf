package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

const minTimeout = time.Second

// Validate checks all configuration values and returns every error found.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateEndpoints(cfg)...)
	errs = append(errs, validateIdentity(cfg)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateTransfers(&cfg.Transfers)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

func validateEndpoints(cfg *Config) []error {
	var errs []error

	endpoints := []struct{ name, raw string }{
		{"api_url", cfg.APIURL},
		{"authority_url", cfg.AuthorityURL},
	}

	for _, ep := range endpoints {
		u, err := url.Parse(ep.raw)
		if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
			errs = append(errs, fmt.Errorf("%s: %q is not an absolute http(s) URL", ep.name, ep.raw))
		}
	}

	return errs
}

func validateIdentity(cfg *Config) []error {
	var errs []error

	if _, err := uuid.Parse(cfg.ClientID); err != nil {
		errs = append(errs, fmt.Errorf("client_id: %q is not a UUID", cfg.ClientID))
	}

	if strings.TrimSpace(cfg.TenantID) == "" {
		errs = append(errs, errors.New("tenant_id: must not be empty"))
	}

	return errs
}

func validateLogging(c *LoggingConfig) []error {
	if !validLogLevels[c.LogLevel] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", c.LogLevel)}
	}

	return nil
}

func validateTransfers(c *TransfersConfig) []error {
	if _, err := parseBandwidth(c.BandwidthLimit); err != nil {
		return []error{fmt.Errorf("bandwidth_limit: %w", err)}
	}

	return nil
}

func validateNetwork(c *NetworkConfig) []error {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return []error{fmt.Errorf("timeout: invalid duration %q: %w", c.Timeout, err)}
	}

	if d < minTimeout {
		return []error{fmt.Errorf("timeout: must be at least %s, got %s", minTimeout, d)}
	}

	return nil
}

// TimeoutDuration returns the parsed network timeout. Validate guarantees it
// parses.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Network.Timeout)
	if err != nil {
		return 0
	}

	return d
}
