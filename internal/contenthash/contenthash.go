// Package contenthash computes the content digests that providers report
// for stored files, so an upload can be checked against the local copy.
package contenthash

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

// Func digests everything r yields into the string form a provider uses.
type Func func(r io.Reader) (string, error)

// QuickXor returns the base64 QuickXorHash of r, as OneDrive reports it in
// file.hashes.quickXorHash.
func QuickXor(r io.Reader) (string, error) {
	sum, err := sum(NewQuickXor(), r)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(sum), nil
}

// Dropbox returns the hex content_hash of r.
func Dropbox(r io.Reader) (string, error) {
	sum, err := sum(NewDropbox(), r)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(sum), nil
}

func sum(h hash.Hash, r io.Reader) ([]byte, error) {
	if _, err := io.Copy(h, r); err != nil {
		return nil, fmt.Errorf("hashing content: %w", err)
	}

	return h.Sum(nil), nil
}

// Verify checks the digest a provider reported for remote against the
// local content. An empty reported digest is accepted: not every account
// type returns one.
func Verify(remote, reported string, local io.Reader, digest Func) error {
	if reported == "" {
		return nil
	}

	got, err := digest(local)
	if err != nil {
		return err
	}

	if got != reported {
		return cloud.NewError(cloud.CodeGeneric, fmt.Sprintf(
			"content hash mismatch for %s: provider reported %s, local file hashes to %s",
			remote, reported, got))
	}

	return nil
}
