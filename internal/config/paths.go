package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName        = "cloudboss"
	configFileName = "config.toml"
)

// appDir resolves a per-user directory for cloudboss. macOS keeps both
// config and data under Application Support; elsewhere the XDG variable
// wins over the conventional fallback below $HOME.
func appDir(xdgVar string, fallback ...string) string {
	if runtime.GOOS != "darwin" {
		if xdg := os.Getenv(xdgVar); xdg != "" {
			return filepath.Join(xdg, appName)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", appName)
	}

	return filepath.Join(append(append([]string{home}, fallback...), appName)...)
}

// DefaultConfigDir is where config.toml lives, ~/.config/cloudboss by
// default.
func DefaultConfigDir() string {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir holds saved tokens, ~/.local/share/cloudboss by default.
func DefaultDataDir() string {
	return appDir("XDG_DATA_HOME", ".local", "share")
}

// DefaultConfigPath returns the full path to the default config file.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return configFileName
	}

	return filepath.Join(dir, configFileName)
}

// TokenPath returns the saved-token file for a provider, or "" if the data
// directory cannot be determined.
func TokenPath(provider string) string {
	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, "tokens", provider+".json")
}
