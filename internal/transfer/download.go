package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

// DownloadFolder mirrors the remote tree at remoteRoot into the existing
// local directory localRoot.
//
// Providers that implement cloud.ArchiveFetcher deliver the whole subtree
// as one zip archive unless archives are disabled. Otherwise the tree is
// listed level by level, each local directory is created before its
// children are listed, and all files are then fetched concurrently.
func (m *Manager) DownloadFolder(ctx context.Context, remoteRoot, localRoot string) (cloud.Result, error) {
	remoteRoot = CleanRemote(remoteRoot)

	dest, err := CheckLocalDir(localRoot)
	if err != nil {
		return cloud.Result{}, err
	}

	if fetcher, ok := m.provider.(cloud.ArchiveFetcher); ok && !m.disableArchive {
		return m.downloadArchive(ctx, fetcher, remoteRoot, dest)
	}

	return m.downloadTree(ctx, remoteRoot, dest)
}

// downloadArchive fetches remoteRoot as a zip into a temporary file inside
// dest and extracts it there. The temporary file is always removed.
func (m *Manager) downloadArchive(
	ctx context.Context, fetcher cloud.ArchiveFetcher, remoteRoot, dest string,
) (cloud.Result, error) {
	tmp := filepath.Join(dest, ".cloudboss-"+uuid.NewString()+".zip")

	m.logger.Info("transfer: downloading folder archive",
		slog.String("remote", remoteRoot),
		slog.String("local", dest),
	)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerms)
	if err != nil {
		return cloud.Result{}, fmt.Errorf("creating archive file: %w", err)
	}

	defer func() {
		if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
			m.logger.Warn("transfer: failed to remove archive file",
				slog.String("path", tmp),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	size, err := fetcher.FetchArchive(ctx, remoteRoot, m.limiter.WrapWriter(ctx, f))
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing archive file: %w", closeErr)
	}

	if err != nil {
		return cloud.Result{}, err
	}

	n, err := extractZip(ctx, tmp, dest, RemoteBase(remoteRoot))
	if err != nil {
		return cloud.Result{}, fmt.Errorf("extracting archive of %s: %w", remoteRoot, err)
	}

	m.logger.Info("transfer: folder archive extracted",
		slog.String("remote", remoteRoot),
		slog.Int64("archive_bytes", size),
		slog.Int("files", n),
	)

	return cloud.OK, nil
}

// dirTask pairs a remote folder with its local mirror.
type dirTask struct {
	remote string
	local  string
}

// listing is the result slot of one ListDirectory call.
type listing struct {
	dir     dirTask
	entries []cloud.Entry
}

// downloadTree mirrors remoteRoot by listing it level by level.
func (m *Manager) downloadTree(ctx context.Context, remoteRoot, dest string) (cloud.Result, error) {
	m.logger.Info("transfer: downloading folder",
		slog.String("remote", remoteRoot),
		slog.String("local", dest),
	)

	var files []fileTask

	current := []dirTask{{remote: remoteRoot, local: dest}}

	for len(current) > 0 {
		listings := make([]*listing, len(current))
		for i, dir := range current {
			listings[i] = &listing{dir: dir}
		}

		errs := runBatch(ctx, m.downloadWorkers, listings, func(ctx context.Context, l *listing) error {
			entries, err := m.provider.ListDirectory(ctx, l.dir.remote)
			if err != nil {
				return fmt.Errorf("listing %s: %w", l.dir.remote, err)
			}

			l.entries = entries

			return nil
		})

		if err := batchError("list", len(current), errs); err != nil {
			return cloud.Result{}, err
		}

		var next []dirTask

		for _, l := range listings {
			dir := l.dir
			for _, e := range l.entries {
				if err := checkEntryName(dir.remote, e.Name); err != nil {
					return cloud.Result{}, err
				}

				child := dirTask{remote: path.Join(dir.remote, e.Name), local: filepath.Join(dir.local, e.Name)}

				if !e.IsDir() {
					files = append(files, fileTask{local: child.local, remote: child.remote})
					continue
				}

				if err := os.MkdirAll(child.local, dirPerms); err != nil {
					return cloud.Result{}, fmt.Errorf("creating %s: %w", child.local, err)
				}

				next = append(next, child)
			}
		}

		current = next
	}

	errs := runBatch(ctx, m.downloadWorkers, files, func(ctx context.Context, t fileTask) error {
		if _, err := m.fetchToFile(ctx, t.remote, t.local); err != nil {
			return fmt.Errorf("downloading %s: %w", t.remote, err)
		}

		return nil
	})

	if err := batchError("download", len(files), errs); err != nil {
		m.logger.Warn("transfer: folder download incomplete",
			slog.String("remote", remoteRoot),
			slog.Int("failed", len(errs)),
			slog.Int("total", len(files)),
		)

		return cloud.Result{}, err
	}

	m.logger.Info("transfer: folder downloaded",
		slog.String("remote", remoteRoot),
		slog.Int("files", len(files)),
	)

	return cloud.OK, nil
}
