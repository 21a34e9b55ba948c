package config

// Default values for configuration options. These represent "layer 0" of
// the override chain.
const (
	defaultProvider          = ProviderYandex
	defaultParallelUploads   = 8
	defaultParallelDownloads = 8
	defaultBandwidthLimit    = "0"
	defaultLogLevel          = "info"
	defaultHTTPTimeout       = "60s"
	defaultUserAgent         = "cloudboss/0.1"

	defaultYandexURL         = "https://cloud-api.yandex.net/v1/disk"
	defaultDropboxAPIURL     = "https://api.dropboxapi.com/2"
	defaultDropboxContentURL = "https://content.dropboxapi.com/2"
	defaultGDriveURL         = "https://www.googleapis.com/drive/v3"
	defaultGDriveUploadURL   = "https://www.googleapis.com/upload/drive/v3"
	defaultGDriveTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGDriveDeviceURL   = "https://oauth2.googleapis.com/device/code"
	defaultOneDriveURL       = "https://graph.microsoft.com/v1.0"
	defaultOneDriveTenant    = "common"
	defaultS3Region          = "us-east-1"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Provider: defaultProvider,
		TransfersConfig: TransfersConfig{
			ParallelUploads:   defaultParallelUploads,
			ParallelDownloads: defaultParallelDownloads,
			BandwidthLimit:    defaultBandwidthLimit,
			PreferArchive:     true,
		},
		LoggingConfig: LoggingConfig{LogLevel: defaultLogLevel},
		NetworkConfig: NetworkConfig{
			HTTPTimeout: defaultHTTPTimeout,
			UserAgent:   defaultUserAgent,
		},
		Yandex: YandexConfig{
			BaseURL:  defaultYandexURL,
			TokenEnv: TokenEnvName(ProviderYandex),
		},
		Dropbox: DropboxConfig{
			APIURL:     defaultDropboxAPIURL,
			ContentURL: defaultDropboxContentURL,
			TokenEnv:   TokenEnvName(ProviderDropbox),
		},
		GDrive: GDriveConfig{
			BaseURL:         defaultGDriveURL,
			UploadURL:       defaultGDriveUploadURL,
			TokenURL:        defaultGDriveTokenURL,
			TokenEnv:        TokenEnvName(ProviderGDrive),
			DeviceAuthURL:   defaultGDriveDeviceURL,
			ClientSecretEnv: "CLOUDBOSS_GDRIVE_CLIENT_SECRET",
		},
		OneDrive: OneDriveConfig{
			BaseURL:  defaultOneDriveURL,
			Tenant:   defaultOneDriveTenant,
			TokenEnv: TokenEnvName(ProviderOneDrive),
		},
		S3: S3Config{
			Region:       defaultS3Region,
			AccessKeyEnv: "AWS_ACCESS_KEY_ID",
			SecretKeyEnv: "AWS_SECRET_ACCESS_KEY",
		},
	}
}
