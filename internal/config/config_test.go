package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, Validate(cfg))
	assert.Equal(t, "https://freta.microsoft.com/", cfg.APIURL)
	assert.Equal(t, "common", cfg.TenantID)
	assert.Empty(t, cfg.ClientSecret)
}

func TestResolvedScope(t *testing.T) {
	tests := []struct {
		name   string
		apiURL string
		scope  string
		want   string
	}{
		{"explicit scope wins", "https://example.com/", "custom/.default", "custom/.default"},
		{"default service", defaultAPIURL, "", defaultScope},
		{"derived from host", "https://example.com/", "", "api://example.com/.default"},
		{"derived drops path", "https://example.com/some/path?x=1", "", "api://example.com/.default"},
		{"derived keeps port", "https://example.com:8443/", "", "api://example.com:8443/.default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.APIURL = tt.apiURL
			cfg.Scope = tt.scope

			got, err := cfg.ResolvedScope()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecret_NeverFormatted(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
	assert.Equal(t, "hunter2", s.Reveal())
	assert.Empty(t, Secret("").String())
}

func TestConfig_LogValueRedactsSecret(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := DefaultConfig()
	cfg.ClientSecret = "hunter2"
	logger.Info("loaded", slog.Any("config", cfg))

	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "config.client_secret=[REDACTED]")
}

func TestBandwidthBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"1000", 1000, false},
		{"10MB/s", 10_000_000, false},
		{"512KiB/s", 512 * 1024, false},
		{"1.5GB", 1_500_000_000, false},
		{"fast", 0, true},
		{"-5MB/s", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Transfers.BandwidthLimit = tt.in

			got, err := cfg.BandwidthBytes()
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
