// Package transfer implements the provider-agnostic folder orchestrators:
// whole-tree upload and download built from the single-object primitives
// of cloud.Provider, with bounded concurrency, parent-before-child
// directory creation and aggregate failure reporting.
package transfer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cloudboss/cloudboss/internal/bandwidth"
	"github.com/cloudboss/cloudboss/internal/cloud"
)

// Default worker counts when no options are provided.
const (
	defaultDownloadWorkers = 8
	defaultUploadWorkers   = 8
)

// Options configures a Manager. Zero values select the defaults.
type Options struct {
	UploadWorkers   int
	DownloadWorkers int

	// DisableArchive forces the enumeration strategy even when the
	// provider can package a folder as one archive.
	DisableArchive bool

	// Limiter caps download throughput. Uploads are limited inside the
	// provider adapter, which owns the request body.
	Limiter *bandwidth.Limiter
}

// Manager runs single-object and whole-tree transfers against one
// provider. It is safe for concurrent use.
type Manager struct {
	provider        cloud.Provider
	uploadWorkers   int
	downloadWorkers int
	disableArchive  bool
	limiter         *bandwidth.Limiter
	logger          *slog.Logger
}

// NewManager creates a Manager for an authenticated provider.
func NewManager(p cloud.Provider, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		provider:        p,
		uploadWorkers:   cmp.Or(opts.UploadWorkers, defaultUploadWorkers),
		downloadWorkers: cmp.Or(opts.DownloadWorkers, defaultDownloadWorkers),
		disableArchive:  opts.DisableArchive,
		limiter:         opts.Limiter,
		logger:          logger,
	}

	logger.Debug("transfer: manager created",
		slog.String("provider", p.Name()),
		slog.Int("upload_workers", m.uploadWorkers),
		slog.Int("download_workers", m.downloadWorkers),
		slog.Bool("archive_disabled", m.disableArchive),
		slog.Bool("bandwidth_limited", m.limiter != nil),
	)

	return m
}

// List returns the children of a remote folder, folders first, then by name.
func (m *Manager) List(ctx context.Context, remote string) ([]cloud.Entry, error) {
	entries, err := m.provider.ListDirectory(ctx, CleanRemote(remote))
	if err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b cloud.Entry) int {
		if a.IsDir() != b.IsDir() {
			if a.IsDir() {
				return -1
			}

			return 1
		}

		return strings.Compare(a.Name, b.Name)
	})

	return entries, nil
}

// CreateFolder creates one remote folder. Provider errors are returned
// unmodified, including ErrFolderConflict.
func (m *Manager) CreateFolder(ctx context.Context, remote string) error {
	return m.provider.CreateDirectory(ctx, CleanRemote(remote))
}

// UploadFile stores one local file. An empty remote uploads to the root
// under the local base name; a remote ending in "/" names the target folder.
// Returns the remote path written.
func (m *Manager) UploadFile(ctx context.Context, local, remote string) (string, error) {
	base := filepath.Base(local)

	switch {
	case remote == "":
		remote = RemoteJoin("/", base)
	case strings.HasSuffix(remote, "/"):
		remote = RemoteJoin(remote, base)
	default:
		remote = CleanRemote(remote)
	}

	m.logger.Debug("transfer: uploading file",
		slog.String("local", local),
		slog.String("remote", remote),
	)

	if err := m.provider.StoreFile(ctx, local, remote); err != nil {
		return "", err
	}

	return remote, nil
}

// DownloadFile fetches one remote file. An empty local writes to the
// remote base name in the working directory; an existing local directory
// receives the file under its remote base name. The content is written to
// a .partial file and renamed into place on success. Returns the local
// path and the number of bytes written.
func (m *Manager) DownloadFile(ctx context.Context, remote, local string) (string, int64, error) {
	remote = CleanRemote(remote)

	base := RemoteBase(remote)
	if base == "" {
		return "", 0, cloud.NewError(cloud.CodeNotAFile, fmt.Sprintf("not a file: %s", remote))
	}

	if local == "" {
		local = base
	} else if fi, err := os.Stat(local); err == nil && fi.IsDir() {
		local = filepath.Join(local, base)
	}

	n, err := m.fetchToFile(ctx, remote, local)
	if err != nil {
		return "", 0, err
	}

	return local, n, nil
}

// fetchToFile streams remote into target via target.partial. Provider errors
// are returned unwrapped; local filesystem errors carry context.
func (m *Manager) fetchToFile(ctx context.Context, remote, target string) (int64, error) {
	partial := target + ".partial"

	f, err := os.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerms)
	if err != nil {
		return 0, fmt.Errorf("creating partial file %s: %w", partial, err)
	}

	n, err := m.provider.FetchFile(ctx, remote, m.limiter.WrapWriter(ctx, f))
	if err != nil {
		f.Close()
		os.Remove(partial)

		return 0, err
	}

	if err := f.Close(); err != nil {
		os.Remove(partial)
		return 0, fmt.Errorf("closing partial file %s: %w", partial, err)
	}

	if err := os.Rename(partial, target); err != nil {
		os.Remove(partial)
		return 0, fmt.Errorf("renaming partial to %s: %w", target, err)
	}

	m.logger.Debug("transfer: file downloaded",
		slog.String("remote", remote),
		slog.String("local", target),
		slog.Int64("size", n),
	)

	return n, nil
}

// CheckLocalDir verifies that a download destination exists and is a
// directory, returning its absolute path.
func CheckLocalDir(local string) (string, error) {
	abs, err := filepath.Abs(local)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", local, err)
	}

	fi, err := os.Stat(abs)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}

	if err != nil || !fi.IsDir() {
		return "", cloud.NewError(cloud.CodeFileNotFound, fmt.Sprintf("local folder not found: %s", abs))
	}

	return abs, nil
}
