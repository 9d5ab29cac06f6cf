package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig       = "FRETA_CONFIG"
	EnvAPIURL       = "FRETA_API_URL"
	EnvClientSecret = "FRETA_CLIENT_SECRET"
)

// EnvOverrides holds values read from the environment.
type EnvOverrides struct {
	ConfigPath   string
	APIURL       string
	ClientSecret Secret
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		APIURL:       os.Getenv(EnvAPIURL),
		ClientSecret: Secret(os.Getenv(EnvClientSecret)),
	}
}
