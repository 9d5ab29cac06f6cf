package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const pidFilePermissions = 0o600

// lockJournal takes an exclusive lock on "<journal>.pid" and records the
// listener's PID in it, so only one listener writes a journal at a time.
// The returned release func removes the file.
func lockJournal(journalPath string) (release func(), err error) {
	path := journalPath + ".pid"

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, pidFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening journal lock: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		return nil, fmt.Errorf("journal %s is in use by another listener", journalPath)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()

		return nil, fmt.Errorf("truncating journal lock: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()

		return nil, fmt.Errorf("writing journal lock: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}
