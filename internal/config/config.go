// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for cloudboss. It supports a four-layer
// override chain (defaults -> config file -> .env/environment -> CLI flags).
package config

// Supported provider identifiers.
const (
	ProviderYandex   = "yandex"
	ProviderDropbox  = "dropbox"
	ProviderGDrive   = "gdrive"
	ProviderS3       = "s3"
	ProviderOneDrive = "onedrive"
)

// Config is the top-level configuration structure parsed from a TOML file.
// Flat top-level keys hold transfer and logging settings; each provider has
// its own table.
type Config struct {
	Provider string `toml:"provider"`

	TransfersConfig
	LoggingConfig
	NetworkConfig

	Yandex   YandexConfig   `toml:"yandex"`
	Dropbox  DropboxConfig  `toml:"dropbox"`
	GDrive   GDriveConfig   `toml:"gdrive"`
	S3       S3Config       `toml:"s3"`
	OneDrive OneDriveConfig `toml:"onedrive"`
}

// TransfersConfig controls worker counts, bandwidth, and the folder
// download strategy.
type TransfersConfig struct {
	ParallelUploads   int    `toml:"parallel_uploads"`
	ParallelDownloads int    `toml:"parallel_downloads"`
	BandwidthLimit    string `toml:"bandwidth_limit"`
	PreferArchive     bool   `toml:"prefer_archive"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}

// NetworkConfig controls HTTP behavior shared by all REST providers.
type NetworkConfig struct {
	HTTPTimeout       string  `toml:"http_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	UserAgent         string  `toml:"user_agent"`
}

// YandexConfig holds Yandex.Disk settings.
type YandexConfig struct {
	BaseURL  string `toml:"base_url"`
	TokenEnv string `toml:"token_env"`
}

// DropboxConfig holds Dropbox settings. Dropbox splits RPC and content
// endpoints across two hosts.
type DropboxConfig struct {
	APIURL     string `toml:"api_url"`
	ContentURL string `toml:"content_url"`
	TokenEnv   string `toml:"token_env"`
}

// GDriveConfig holds Google Drive settings. When client_id is set the saved
// token is treated as a refresh token and exchanged at token_url.
type GDriveConfig struct {
	BaseURL         string `toml:"base_url"`
	UploadURL       string `toml:"upload_url"`
	TokenURL        string `toml:"token_url"`
	TokenEnv        string `toml:"token_env"`
	ClientID        string `toml:"client_id"`
	ClientSecretEnv string `toml:"client_secret_env"`
	DeviceAuthURL   string `toml:"device_auth_url"`
}

// S3Config holds settings for any S3-compatible object store.
type S3Config struct {
	Endpoint     string `toml:"endpoint"`
	Region       string `toml:"region"`
	Bucket       string `toml:"bucket"`
	AccessKeyEnv string `toml:"access_key_env"`
	SecretKeyEnv string `toml:"secret_key_env"`
}

// OneDriveConfig holds Microsoft OneDrive (Graph API) settings. With
// client_id set, `login --device` runs the device code flow against the
// tenant and saved refresh tokens are renewed automatically. token_url and
// device_auth_url override the endpoints derived from tenant.
type OneDriveConfig struct {
	BaseURL       string `toml:"base_url"`
	Tenant        string `toml:"tenant"`
	ClientID      string `toml:"client_id"`
	TokenURL      string `toml:"token_url"`
	DeviceAuthURL string `toml:"device_auth_url"`
	TokenEnv      string `toml:"token_env"`
}

// ResolvedConfig is the effective configuration after all override layers
// are applied. Provider is always one of the supported identifiers.
type ResolvedConfig struct {
	Config

	// ConfigPath is the file the configuration was read from (which may
	// not exist when running on defaults).
	ConfigPath string

	// Token is an explicit credential from the environment. Empty means the
	// caller falls back to the saved token file.
	Token string
}
