package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

const (
	appName        = "freta"
	configFileName = "cli.toml"
	loginCacheName = "login.cache"
)

// DefaultConfigDir returns the per-user directory holding cli.toml and the
// credential cache. Linux honors XDG_CONFIG_HOME; macOS uses
// ~/Library/Application Support.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxConfigDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

func linuxConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".config", appName)
}

// DefaultConfigPath returns the config file path used when neither
// FRETA_CONFIG nor --config is given.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// LoginCachePath returns the credential cache path next to the config file.
func LoginCachePath(configPath string) string {
	if configPath == "" {
		return ""
	}

	return filepath.Join(filepath.Dir(configPath), loginCacheName)
}
