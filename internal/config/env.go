package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names for overrides.
const (
	EnvConfig   = "CLOUDBOSS_CONFIG"
	EnvProvider = "CLOUDBOSS_PROVIDER"
	envTokenFmt = "CLOUDBOSS_TOKEN_%s"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // CLOUDBOSS_CONFIG: override config file path
	Provider   string // CLOUDBOSS_PROVIDER: active provider
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Provider:   os.Getenv(EnvProvider),
	}
}

// TokenEnvName returns the default environment variable holding the token
// for a provider, e.g. CLOUDBOSS_TOKEN_YANDEX.
func TokenEnvName(provider string) string {
	return fmt.Sprintf(envTokenFmt, strings.ToUpper(provider))
}

// LoadDotEnv loads KEY=VALUE pairs from each existing file into the process
// environment. Variables already set are never overridden, so the real
// environment always wins over .env files. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}

		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading env file %s: %w", p, err)
		}
	}

	return nil
}
