package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

type fileTask struct {
	local  string
	remote string
}

// UploadFolder mirrors the local tree at localRoot under remoteRoot.
//
// The remote root is created first, then every level of subdirectories as
// one concurrent batch, so no folder is requested before its parent exists.
// Folders that already exist are accepted. Once the skeleton is complete
// all files are stored concurrently. Any failure other than an existing
// folder fails the call with a *BatchError after the batch has drained;
// work already done is kept.
func (m *Manager) UploadFolder(ctx context.Context, localRoot, remoteRoot string) (cloud.Result, error) {
	remoteRoot = CleanRemote(remoteRoot)

	tree, err := Walk(localRoot)
	if err != nil {
		return cloud.Result{}, err
	}

	m.logger.Info("transfer: uploading folder",
		slog.String("local", localRoot),
		slog.String("remote", remoteRoot),
		slog.Int("dirs", tree.Dirs()),
		slog.Int("files", len(tree.Files)),
	)

	if err := m.ensureFolder(ctx, remoteRoot); err != nil {
		return cloud.Result{}, err
	}

	for depth, level := range tree.Levels {
		errs := runBatch(ctx, m.uploadWorkers, level, func(ctx context.Context, rel string) error {
			return m.ensureFolder(ctx, RemoteJoin(remoteRoot, rel))
		})

		if err := batchError("create folders", len(level), errs); err != nil {
			m.logger.Warn("transfer: folder creation failed",
				slog.Int("depth", depth),
				slog.Int("failed", len(errs)),
			)

			return cloud.Result{}, err
		}
	}

	tasks := make([]fileTask, len(tree.Files))
	for i, rel := range tree.Files {
		tasks[i] = fileTask{
			local:  filepath.Join(localRoot, rel),
			remote: RemoteJoin(remoteRoot, rel),
		}
	}

	errs := runBatch(ctx, m.uploadWorkers, tasks, func(ctx context.Context, t fileTask) error {
		if err := m.provider.StoreFile(ctx, t.local, t.remote); err != nil {
			return fmt.Errorf("uploading %s: %w", t.remote, err)
		}

		return nil
	})

	if err := batchError("upload", len(tasks), errs); err != nil {
		m.logger.Warn("transfer: folder upload incomplete",
			slog.String("remote", remoteRoot),
			slog.Int("failed", len(errs)),
			slog.Int("total", len(tasks)),
		)

		return cloud.Result{}, err
	}

	m.logger.Info("transfer: folder uploaded",
		slog.String("remote", remoteRoot),
		slog.Int("files", len(tasks)),
	)

	return cloud.OK, nil
}

// ensureFolder creates remote, treating an existing folder as success.
func (m *Manager) ensureFolder(ctx context.Context, remote string) error {
	err := m.provider.CreateDirectory(ctx, remote)
	if err == nil || errors.Is(err, cloud.ErrFolderConflict) {
		return nil
	}

	return fmt.Errorf("creating folder %s: %w", remote, err)
}
