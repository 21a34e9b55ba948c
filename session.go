package main

import (
	"context"
	"log/slog"

	"github.com/cloudboss/cloudboss/internal/bandwidth"
	"github.com/cloudboss/cloudboss/internal/cloud"
	"github.com/cloudboss/cloudboss/internal/config"
	"github.com/cloudboss/cloudboss/internal/provider"
	"github.com/cloudboss/cloudboss/internal/transfer"
)

// Session holds an authenticated provider and the transfer manager built
// on top of it for a single command invocation.
type Session struct {
	Provider cloud.Provider
	Manager  *transfer.Manager
	Resolved *config.ResolvedConfig
}

// sessionOptions adjusts the manager for one command.
type sessionOptions struct {
	noArchive bool
}

// newProvider builds the configured adapter and verifies its credentials.
func newProvider(ctx context.Context, rc *config.ResolvedConfig, bw *bandwidth.Limiter, logger *slog.Logger) (cloud.Provider, error) {
	p, err := provider.New(ctx, rc, provider.Deps{Bandwidth: bw, Logger: logger})
	if err != nil {
		return nil, err
	}

	if err := p.Authenticate(ctx); err != nil {
		return nil, err
	}

	logger.Debug("authenticated", slog.String("provider", p.Name()))

	return p, nil
}

// NewSession authenticates against the configured provider and prepares a
// transfer manager with the configured workers and bandwidth limit.
func NewSession(ctx context.Context, cc *CLIContext, opts sessionOptions) (*Session, error) {
	rc := cc.Cfg

	bw, err := bandwidth.New(rc.BandwidthLimit, cc.Logger)
	if err != nil {
		return nil, err
	}

	p, err := newProvider(ctx, rc, bw, cc.Logger)
	if err != nil {
		return nil, err
	}

	mgr := transfer.NewManager(p, transfer.Options{
		UploadWorkers:   rc.ParallelUploads,
		DownloadWorkers: rc.ParallelDownloads,
		DisableArchive:  opts.noArchive || !rc.PreferArchive,
		Limiter:         bw,
	}, cc.Logger)

	return &Session{Provider: p, Manager: mgr, Resolved: rc}, nil
}
