package transfer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// File and directory permissions for downloaded content.
const (
	filePerms = 0o644
	dirPerms  = 0o755
)

// extractZip unpacks the archive at zipPath into dest. When every entry
// sits under a single top-level directory named prefix, that directory is
// stripped so the subtree lands directly in dest. Entries that would land
// outside dest are rejected.
func extractZip(ctx context.Context, zipPath, dest, prefix string) (int, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	strip := ""
	if prefix != "" && allUnder(zr.File, prefix) {
		strip = prefix + "/"
	}

	extracted := 0

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return extracted, err
		}

		name := strings.TrimPrefix(strings.ReplaceAll(f.Name, `\`, "/"), strip)
		if name == "" || name == "/" {
			continue
		}

		target, err := safeJoin(dest, name)
		if err != nil {
			return extracted, err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, dirPerms); err != nil {
				return extracted, fmt.Errorf("creating %s: %w", target, err)
			}

			continue
		}

		if err := extractFile(f, target); err != nil {
			return extracted, err
		}

		extracted++
	}

	return extracted, nil
}

// allUnder reports whether every entry is prefix itself or lies below it.
func allUnder(files []*zip.File, prefix string) bool {
	if len(files) == 0 {
		return false
	}

	for _, f := range files {
		name := strings.TrimSuffix(f.Name, "/")
		if name != prefix && !strings.HasPrefix(name, prefix+"/") {
			return false
		}
	}

	return true
}

// safeJoin resolves an archive entry name under dest, rejecting absolute
// names and names that climb out of dest.
func safeJoin(dest, name string) (string, error) {
	if path.IsAbs(name) || filepath.IsAbs(name) {
		return "", fmt.Errorf("archive entry %q: absolute path", name)
	}

	target := filepath.Join(dest, filepath.FromSlash(name))

	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}

	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), dirPerms); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("reading archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerms)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec // archive comes from the user's own account
		out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", target, err)
	}

	return nil
}
