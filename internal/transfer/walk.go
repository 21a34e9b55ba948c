package transfer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

// Tree is a local directory tree flattened for upload. Paths are relative to
// the walked root and use host separators.
type Tree struct {
	// Levels groups directories by depth: Levels[0] holds the root's
	// immediate subdirectories, Levels[1] their children, and so on. Every
	// directory's parent appears in an earlier level.
	Levels [][]string
	Files  []string
}

// Dirs returns the number of directories in the tree, excluding the root.
func (t *Tree) Dirs() int {
	n := 0
	for _, level := range t.Levels {
		n += len(level)
	}

	return n
}

// Walk scans root breadth-first. Regular files, symlinks to regular files
// and directories are included. Symlinked directories are not descended
// into, and dangling links and special files are skipped. A missing root
// yields ErrFileNotFound and a root that is not a directory yields
// ErrNotAFolder.
func Walk(root string) (*Tree, error) {
	fi, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, cloud.NewError(cloud.CodeFileNotFound, fmt.Sprintf("local folder not found: %s", root))
	}

	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	if !fi.IsDir() {
		return nil, cloud.NewError(cloud.CodeNotAFolder, fmt.Sprintf("local path is not a folder: %s", root))
	}

	tree := &Tree{}
	current := []string{""}

	for len(current) > 0 {
		var next []string

		for _, rel := range current {
			entries, err := os.ReadDir(filepath.Join(root, rel))
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", filepath.Join(root, rel), err)
			}

			for _, e := range entries {
				child := filepath.Join(rel, e.Name())

				switch {
				case e.IsDir():
					next = append(next, child)
				case e.Type().IsRegular(), linksToFile(filepath.Join(root, child), e):
					tree.Files = append(tree.Files, child)
				}
			}
		}

		if len(next) > 0 {
			slices.Sort(next)
			tree.Levels = append(tree.Levels, next)
		}

		current = next
	}

	return tree, nil
}

func linksToFile(path string, e fs.DirEntry) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}

	fi, err := os.Stat(path)

	return err == nil && fi.Mode().IsRegular()
}
