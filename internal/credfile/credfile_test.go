package credfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileNotFound(t *testing.T) {
	f, err := Load("/nonexistent/path/login.cache")
	assert.Nil(t, f)
	assert.NoError(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.cache")

	expires := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	original := &File{
		ClientID:     "client-1",
		Kind:         KindDeviceCode,
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		ExpiresOn:    expires,
	}

	require.NoError(t, Save(path, original))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "client-1", loaded.ClientID)
	assert.Equal(t, KindDeviceCode, loaded.Kind)
	assert.Equal(t, "access-123", loaded.AccessToken)
	assert.Equal(t, "refresh-456", loaded.RefreshToken)
	assert.Empty(t, loaded.ClientSecret)
	assert.True(t, loaded.ExpiresOn.Equal(expires))
}

func TestSave_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "login.cache")

	require.NoError(t, Save(path, &File{Kind: KindNone}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(DirPerms), dirInfo.Mode().Perm())
}

func TestSave_OverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "login.cache")

	require.NoError(t, Save(path, &File{Kind: KindClientCredentials, AccessToken: "one"}))
	require.NoError(t, Save(path, &File{Kind: KindClientCredentials, AccessToken: "two"}))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "two", loaded.AccessToken)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.cache")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	f, err := Load(path)
	assert.Nil(t, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}

func TestLoad_MissingKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.cache")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"x"}`), 0o600))

	f, err := Load(path)
	assert.Nil(t, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing kind")
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.cache")
	require.NoError(t, Save(path, &File{Kind: KindNone}))

	require.NoError(t, Delete(path))
	assert.NoFileExists(t, path)

	// Second delete is a no-op.
	require.NoError(t, Delete(path))
}
