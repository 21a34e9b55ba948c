package transfer

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanRemote normalizes a remote path: forward slashes, NFC, a leading
// slash and no trailing slash. The empty path is the root "/".
func CleanRemote(remote string) string {
	remote = norm.NFC.String(strings.ReplaceAll(remote, `\`, "/"))
	if !strings.HasPrefix(remote, "/") {
		remote = "/" + remote
	}

	return path.Clean(remote)
}

// RemoteJoin maps a local path relative to a walked root onto the remote
// tree rooted at remoteRoot. Host separators become forward slashes and
// names are NFC-normalized, so macOS (NFD) trees upload under the same
// names other platforms see.
func RemoteJoin(remoteRoot, rel string) string {
	rel = norm.NFC.String(filepath.ToSlash(rel))

	return path.Join(CleanRemote(remoteRoot), rel)
}

// RemoteBase returns the last element of a remote path, or "" for the root.
func RemoteBase(remote string) string {
	remote = CleanRemote(remote)
	if remote == "/" {
		return ""
	}

	return path.Base(remote)
}

// checkEntryName rejects listing entries that cannot be mirrored locally
// without escaping their parent directory.
func checkEntryName(dir, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("listing %s: refusing unsafe entry name %q", dir, name)
	}

	return nil
}
