package config

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Validation range constants.
const (
	minTransferWorkers = 1
	maxTransferWorkers = 64
	minHTTPTimeout     = 1 * time.Second
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Providers lists every supported provider identifier.
var Providers = []string{ProviderYandex, ProviderDropbox, ProviderGDrive, ProviderS3, ProviderOneDrive}

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Provider != "" && !slices.Contains(Providers, cfg.Provider) {
		errs = append(errs, fmt.Errorf("provider: must be one of %v, got %q", Providers, cfg.Provider))
	}

	errs = append(errs, validateTransfers(&cfg.TransfersConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints on the final merged configuration.
func ValidateResolved(rc *ResolvedConfig) error {
	var errs []error

	if !slices.Contains(Providers, rc.Provider) {
		errs = append(errs, fmt.Errorf("provider: must be one of %v, got %q", Providers, rc.Provider))
	}

	if rc.Provider == ProviderS3 && rc.S3.Bucket == "" {
		errs = append(errs, errors.New("s3.bucket: required when provider is s3"))
	}

	return errors.Join(errs...)
}

func validateTransfers(t *TransfersConfig) []error {
	var errs []error

	if t.ParallelUploads < minTransferWorkers || t.ParallelUploads > maxTransferWorkers {
		errs = append(errs, fmt.Errorf("parallel_uploads: must be between %d and %d, got %d",
			minTransferWorkers, maxTransferWorkers, t.ParallelUploads))
	}

	if t.ParallelDownloads < minTransferWorkers || t.ParallelDownloads > maxTransferWorkers {
		errs = append(errs, fmt.Errorf("parallel_downloads: must be between %d and %d, got %d",
			minTransferWorkers, maxTransferWorkers, t.ParallelDownloads))
	}

	if _, err := ParseRate(t.BandwidthLimit); err != nil {
		errs = append(errs, fmt.Errorf("bandwidth_limit: %w", err))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	if !slices.Contains(validLogLevels, l.LogLevel) {
		return []error{fmt.Errorf("log_level: must be one of %v, got %q", validLogLevels, l.LogLevel)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	d, err := time.ParseDuration(n.HTTPTimeout)
	if err != nil {
		errs = append(errs, fmt.Errorf("http_timeout: %w", err))
	} else if d < minHTTPTimeout {
		errs = append(errs, fmt.Errorf("http_timeout: must be at least %s, got %s", minHTTPTimeout, d))
	}

	if n.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second: must be non-negative, got %g", n.RequestsPerSecond))
	}

	return errs
}

// HTTPTimeoutDuration returns the parsed http_timeout, falling back to the
// default when the value does not parse.
func (n *NetworkConfig) HTTPTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(n.HTTPTimeout)
	if err != nil {
		d, _ = time.ParseDuration(defaultHTTPTimeout)
	}

	return d
}
