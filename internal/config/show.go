package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration to w as annotated TOML.
// The client secret is shown redacted.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration\n")

	if r.Path != "" {
		ew.printf("# file: %s\n", r.Path)
	}

	cache := r.CachePath
	if cache == "" {
		cache = "(disabled)"
	}

	ew.printf("# login cache: %s\n\n", cache)

	ew.printf("api_url = %q\n", r.APIURL)
	ew.printf("client_id = %q\n", r.ClientID)
	ew.printf("tenant_id = %q\n", r.TenantID)

	if r.ClientSecret != "" {
		ew.printf("client_secret = %q\n", r.ClientSecret.String())
	}

	scope, err := r.ResolvedScope()
	if err != nil {
		return err
	}

	if r.Scope == "" {
		ew.printf("# scope = %q (derived)\n", scope)
	} else {
		ew.printf("scope = %q\n", scope)
	}

	ew.printf("authority_url = %q\n", r.AuthorityURL)
	ew.printf("no_login_cache = %t\n", r.NoLoginCache)

	ew.printf("\n[logging]\nlog_level = %q\n", r.Logging.LogLevel)
	ew.printf("\n[transfers]\nbandwidth_limit = %q\n", r.Transfers.BandwidthLimit)
	ew.printf("\n[network]\ntimeout = %q\n", r.Network.Timeout)

	return ew.err
}

// errWriter keeps the first write error so printf calls can be chained.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
