package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/cloudboss/cloudboss/internal/config"
)

// Scopes requested by the device code flow.
var (
	gdriveScopes   = []string{"https://www.googleapis.com/auth/drive.file"}
	onedriveScopes = []string{"offline_access", "Files.ReadWrite.All", "User.Read"}
)

// OAuthConfig returns the OAuth2 client for providers that can refresh
// tokens and run the device code flow, or nil when the provider has no
// such flow or no client_id is configured.
func OAuthConfig(rc *config.ResolvedConfig) *oauth2.Config {
	switch rc.Provider {
	case config.ProviderGDrive:
		if rc.GDrive.ClientID == "" {
			return nil
		}

		return &oauth2.Config{
			ClientID:     rc.GDrive.ClientID,
			ClientSecret: os.Getenv(rc.GDrive.ClientSecretEnv),
			Endpoint: oauth2.Endpoint{
				TokenURL:      rc.GDrive.TokenURL,
				DeviceAuthURL: rc.GDrive.DeviceAuthURL,
			},
			Scopes: gdriveScopes,
		}
	case config.ProviderOneDrive:
		if rc.OneDrive.ClientID == "" {
			return nil
		}

		ep := microsoft.AzureADEndpoint(rc.OneDrive.Tenant)
		if rc.OneDrive.TokenURL != "" {
			ep.TokenURL = rc.OneDrive.TokenURL
		}

		if rc.OneDrive.DeviceAuthURL != "" {
			ep.DeviceAuthURL = rc.OneDrive.DeviceAuthURL
		}

		return &oauth2.Config{
			ClientID: rc.OneDrive.ClientID,
			Endpoint: ep,
			Scopes:   onedriveScopes,
		}
	default:
		return nil
	}
}

// DeviceCode holds the fields the CLI shows the user during device login.
type DeviceCode struct {
	UserCode        string
	VerificationURI string
}

// DeviceLogin runs the OAuth2 device code flow: it requests a device code,
// hands it to display, then polls until the user approves or ctx ends.
func DeviceLogin(
	ctx context.Context,
	cfg *oauth2.Config,
	httpClient *http.Client,
	display func(DeviceCode),
	logger *slog.Logger,
) (*oauth2.Token, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	logger.Info("starting device code flow", slog.String("endpoint", cfg.Endpoint.DeviceAuthURL))

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device authorization request failed: %w", err)
	}

	display(DeviceCode{UserCode: da.UserCode, VerificationURI: da.VerificationURI})

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("device code authorization failed: %w", err)
	}

	logger.Info("device code authorized", slog.Time("expiry", tok.Expiry))

	return tok, nil
}
