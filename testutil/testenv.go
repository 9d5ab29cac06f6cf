// Package testutil provides environment helpers for the end-to-end tests,
// which run the built binary and so cannot import internal/.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file. A missing file is not
// an error. Variables already set in the environment win.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// RequireEnv returns the values of the named variables, exiting the process
// with a list of the missing ones if any is unset.
func RequireEnv(names ...string) map[string]string {
	values := make(map[string]string, len(names))

	var missing []string

	for _, n := range names {
		v := os.Getenv(n)
		if v == "" {
			missing = append(missing, n)
		}

		values[n] = v
	}

	if len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "FATAL: missing environment: %s\n", strings.Join(missing, ", "))
		fmt.Fprintln(os.Stderr, "Set them in .env or in the environment.")
		os.Exit(1)
	}

	return values
}

// FindModuleRoot walks up from the working directory to the directory
// holding go.mod, or returns fallback.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
