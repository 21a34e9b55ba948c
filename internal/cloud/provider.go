// Package cloud defines the capability interface every storage provider
// adapter implements, the normalized error shape shared by all of them,
// and the small value types that cross the adapter boundary.
//
// The transfer orchestrators are written once against Provider and never
// specialized per vendor. Optional capabilities (ArchiveFetcher) are
// discovered by type assertion.
package cloud

import (
	"context"
	"io"
)

// QuotaUnknown is the AccountInfo.TotalBytes sentinel for providers that do
// not report a storage quota.
const QuotaUnknown int64 = -1

// EntryKind distinguishes files from directories in a listing.
type EntryKind int

// Entry kinds.
const (
	KindFile EntryKind = iota
	KindDir
)

func (k EntryKind) String() string {
	if k == KindDir {
		return "dir"
	}

	return "file"
}

// Entry is one child of a listed remote directory. Providers return
// entries in no particular order.
type Entry struct {
	Name string
	Kind EntryKind
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// AccountInfo describes the authenticated account and its storage usage.
type AccountInfo struct {
	Login       string
	DisplayName string
	UsedBytes   int64
	TotalBytes  int64 // QuotaUnknown when not reported
}

// Result is returned by whole-tree operations that fully succeeded.
type Result struct {
	Status string `json:"status"`
}

// OK is the only Result value ever returned.
var OK = Result{Status: "ok"}

// Provider is the capability interface consumed by the transfer
// orchestrators. Remote paths always use forward slashes. Every method
// that talks to the provider funnels failures through the adapter's
// Normalizer, so callers only ever see *Error for provider failures.
// Implementations must be safe for concurrent use once authenticated.
type Provider interface {
	// Name returns the provider identifier ("yandex", "dropbox", ...).
	Name() string

	// Authenticate verifies the configured credentials. It must succeed
	// before any other method is called; failure yields ErrAuth.
	Authenticate(ctx context.Context) error

	// AccountInfo returns the account identity and quota.
	AccountInfo(ctx context.Context) (*AccountInfo, error)

	// ListDirectory returns the immediate children of remote.
	// Fails with ErrNotFound or ErrNotAFolder.
	ListDirectory(ctx context.Context, remote string) ([]Entry, error)

	// FetchFile streams the content of remote into w and returns the
	// number of bytes written. Fails with ErrNotAFile for directories.
	FetchFile(ctx context.Context, remote string, w io.Writer) (int64, error)

	// StoreFile uploads the local file at local to remote. Fails with
	// ErrNotAFile if local is a directory and ErrFileNotFound if it does
	// not exist.
	StoreFile(ctx context.Context, local, remote string) error

	// CreateDirectory creates a single remote directory whose parent
	// already exists. Fails with ErrFolderConflict if remote exists.
	CreateDirectory(ctx context.Context, remote string) error
}

// ArchiveFetcher is implemented by providers that can package a whole
// remote subtree into one zip archive.
type ArchiveFetcher interface {
	FetchArchive(ctx context.Context, remote string, w io.Writer) (int64, error)
}
