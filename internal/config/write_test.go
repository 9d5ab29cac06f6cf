package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cli.toml")

	cfg := DefaultConfig()
	cfg.TenantID = "contoso"
	cfg.ClientSecret = "s3cret"
	cfg.Transfers.BandwidthLimit = "5MB/s"

	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(configFilePermissions), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSave_OverwritesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cli.toml")

	first := DefaultConfig()
	first.TenantID = "one"
	require.NoError(t, Save(path, first))

	second := DefaultConfig()
	second.TenantID = "two"
	require.NoError(t, Save(path, second))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "two", loaded.TenantID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cli.toml", entries[0].Name())
}

func TestSave_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.toml")

	cfg := DefaultConfig()
	cfg.Logging.LogLevel = "loud"

	require.Error(t, Save(path, cfg))
	assert.NoFileExists(t, path)
}
