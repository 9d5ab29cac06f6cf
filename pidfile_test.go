package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockJournal_WritesPID(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "events.db")

	release, err := lockJournal(journal)
	require.NoError(t, err)

	defer release()

	data, err := os.ReadFile(journal + ".pid")
	require.NoError(t, err)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestLockJournal_SecondListenerRefused(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "events.db")

	release, err := lockJournal(journal)
	require.NoError(t, err)

	defer release()

	again, err := lockJournal(journal)
	require.Error(t, err)
	assert.Nil(t, again)
	assert.Contains(t, err.Error(), "in use by another listener")
}

func TestLockJournal_ReleaseAllowsRelock(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "nested", "events.db")

	release, err := lockJournal(journal)
	require.NoError(t, err)
	release()

	_, err = os.Stat(journal + ".pid")
	assert.True(t, os.IsNotExist(err))

	release, err = lockJournal(journal)
	require.NoError(t, err)
	release()
}
