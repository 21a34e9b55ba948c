// Package provider builds the configured cloud.Provider adapter together
// with its credentials.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"

	"github.com/cloudboss/cloudboss/internal/bandwidth"
	"github.com/cloudboss/cloudboss/internal/cloud"
	"github.com/cloudboss/cloudboss/internal/config"
	"github.com/cloudboss/cloudboss/internal/provider/dropbox"
	"github.com/cloudboss/cloudboss/internal/provider/gdrive"
	"github.com/cloudboss/cloudboss/internal/provider/onedrive"
	"github.com/cloudboss/cloudboss/internal/provider/s3"
	"github.com/cloudboss/cloudboss/internal/provider/yandex"
	"github.com/cloudboss/cloudboss/internal/rest"
	"github.com/cloudboss/cloudboss/internal/tokenfile"
)

// Deps carries process-wide collaborators shared by every adapter.
type Deps struct {
	HTTPClient *http.Client
	Bandwidth  *bandwidth.Limiter
	Logger     *slog.Logger

	// TokenPath overrides the saved-token location. Empty uses
	// config.TokenPath for the active provider.
	TokenPath string
}

func (d *Deps) tokenPath(providerName string) string {
	if d.TokenPath != "" {
		return d.TokenPath
	}

	return config.TokenPath(providerName)
}

// New builds the adapter for rc.Provider. It does not contact the
// provider; call Authenticate on the result before use.
func New(ctx context.Context, rc *config.ResolvedConfig, deps Deps) (cloud.Provider, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if rc.Provider == config.ProviderS3 {
		c, err := s3.New(ctx, s3.Options{
			Endpoint:    rc.S3.Endpoint,
			Region:      rc.S3.Region,
			Bucket:      rc.S3.Bucket,
			AccessKey:   os.Getenv(rc.S3.AccessKeyEnv),
			SecretKey:   os.Getenv(rc.S3.SecretKeyEnv),
			HTTPTimeout: rc.HTTPTimeoutDuration(),
			Bandwidth:   deps.Bandwidth,
			Logger:      deps.Logger,
		})
		if err != nil {
			return nil, err
		}

		return c, nil
	}

	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: rc.HTTPTimeoutDuration()}
	}

	src, err := TokenSource(ctx, rc, deps)
	if err != nil {
		return nil, err
	}

	opts := rest.Options{
		HTTPClient:        deps.HTTPClient,
		Token:             src,
		UserAgent:         rc.UserAgent,
		RequestsPerSecond: rc.RequestsPerSecond,
		Bandwidth:         deps.Bandwidth,
		Logger:            deps.Logger,
	}

	switch rc.Provider {
	case config.ProviderYandex:
		opts.BaseURL = rc.Yandex.BaseURL
		return yandex.New(opts), nil
	case config.ProviderDropbox:
		opts.BaseURL = rc.Dropbox.APIURL
		return dropbox.New(opts, rc.Dropbox.ContentURL), nil
	case config.ProviderGDrive:
		opts.BaseURL = rc.GDrive.BaseURL
		return gdrive.New(opts, rc.GDrive.UploadURL), nil
	case config.ProviderOneDrive:
		opts.BaseURL = rc.OneDrive.BaseURL
		return onedrive.New(opts), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", rc.Provider)
	}
}

// TokenSource returns the credentials for a token-based provider: the
// token from the environment when set, otherwise the saved token file.
// A saved token with a refresh token is renewed automatically when the
// provider has an OAuth client configured (see OAuthConfig), and renewed
// tokens are written back to the token file.
func TokenSource(ctx context.Context, rc *config.ResolvedConfig, deps Deps) (oauth2.TokenSource, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if rc.Token != "" {
		deps.Logger.Debug("using token from environment", slog.String("var", rc.TokenEnv()))

		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: rc.Token}), nil
	}

	path := deps.tokenPath(rc.Provider)

	tf, err := tokenfile.Load(path)
	if err != nil {
		return nil, err
	}

	if tf == nil {
		return nil, cloud.NewError(cloud.CodeAuth, fmt.Sprintf(
			"not logged in to %s: run 'cloudboss login' or set %s", rc.Provider, rc.TokenEnv()))
	}

	cfg := OAuthConfig(rc)
	if cfg == nil || tf.Token.RefreshToken == "" {
		return oauth2.StaticTokenSource(tf.Token), nil
	}

	if deps.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, deps.HTTPClient)
	}

	return &persistingSource{
		src:    cfg.TokenSource(ctx, tf.Token),
		last:   tf.Token.AccessToken,
		file:   tf,
		path:   path,
		logger: deps.Logger,
	}, nil
}

// persistingSource saves the token file whenever the wrapped source hands
// out a new access token, so refreshes survive the process.
type persistingSource struct {
	src    oauth2.TokenSource
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last string
	file *tokenfile.File
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken == p.last {
		return tok, nil
	}

	p.last = tok.AccessToken
	p.file.Token = tok

	if err := tokenfile.Save(p.path, p.file); err != nil {
		p.logger.Warn("failed to persist refreshed token",
			slog.String("path", p.path),
			slog.String("error", err.Error()),
		)

		return tok, nil
	}

	p.logger.Info("persisted refreshed token",
		slog.String("path", p.path),
		slog.Time("expiry", tok.Expiry),
	)

	return tok, nil
}
