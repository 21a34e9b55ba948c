package cloud

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// OpenLocalFile opens a local upload source after checking the StoreFile
// preconditions: a missing path yields ErrFileNotFound and a directory
// yields ErrNotAFile. The caller closes the returned file.
func OpenLocalFile(path string) (*os.File, os.FileInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	fi, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, NewError(CodeFileNotFound, fmt.Sprintf("file not found: %s", path))
	}

	if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", abs, err)
	}

	if fi.IsDir() {
		return nil, nil, NewError(CodeNotAFile, fmt.Sprintf("upload source is not a file: %s", path))
	}

	f, err := os.Open(abs)
	if errors.Is(err, fs.ErrNotExist) {
		// Removed between stat and open.
		return nil, nil, NewError(CodeFileNotFound, fmt.Sprintf("file not found: %s", path))
	}

	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", abs, err)
	}

	return f, fi, nil
}
