package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// CLIOverrides holds values from command-line flags. Empty strings mean
// "not specified".
type CLIOverrides struct {
	ConfigPath string
	Provider   string
}

// Load decodes the TOML file at path over the defaults and validates the
// result. Unknown keys are errors.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve builds the effective configuration. Each layer overrides the one
// before it: defaults, config file, .env files, environment, CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*ResolvedConfig, error) {
	cfgPath := cmp.Or(cli.ConfigPath, env.ConfigPath, DefaultConfigPath())

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// .env beside the config file first, then the working directory. The
	// real environment keeps precedence over both.
	if err := LoadDotEnv(filepath.Join(filepath.Dir(cfgPath), ".env"), ".env"); err != nil {
		return nil, err
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cmp.Or(cli.Provider, env.Provider, cfg.Provider)))

	rc := &ResolvedConfig{Config: *cfg, ConfigPath: cfgPath}
	if err := ValidateResolved(rc); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	if name := rc.TokenEnv(); name != "" {
		rc.Token = os.Getenv(name)
	}

	return rc, nil
}

// TokenEnv returns the environment variable holding the active provider's
// token, or "" for providers that authenticate with key pairs.
func (rc *ResolvedConfig) TokenEnv() string {
	switch rc.Provider {
	case ProviderYandex:
		return rc.Yandex.TokenEnv
	case ProviderDropbox:
		return rc.Dropbox.TokenEnv
	case ProviderGDrive:
		return rc.GDrive.TokenEnv
	case ProviderOneDrive:
		return rc.OneDrive.TokenEnv
	default:
		return ""
	}
}
