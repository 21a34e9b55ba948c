// Package gdrive implements cloud.Provider for the Google Drive v3 API.
//
// Drive addresses items by ID, so remote paths are resolved one component
// at a time through folder queries and the results are cached for the
// lifetime of the client. Drive has no archive endpoint; folder downloads
// use enumeration.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudboss/cloudboss/internal/cloud"
	"github.com/cloudboss/cloudboss/internal/rest"
)

// Default endpoints.
const (
	DefaultBaseURL   = "https://www.googleapis.com/drive/v3"
	DefaultUploadURL = "https://www.googleapis.com/upload/drive/v3"
	DefaultTokenURL  = "https://oauth2.googleapis.com/token"
)

// Name is the provider identifier.
const Name = "gdrive"

const (
	folderMime    = "application/vnd.google-apps.folder"
	workspaceMime = "application/vnd.google-apps."
	rootID        = "root"
	pageSize      = 1000
)

// item is the subset of Drive file metadata the adapter needs.
type item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

func (it *item) isFolder() bool { return it.MimeType == folderMime }

// Client talks to Google Drive. It is safe for concurrent use.
type Client struct {
	api       *rest.Client
	uploadURL string
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]*item // remote path -> item
}

// New creates a Drive client. opts.BaseURL defaults to DefaultBaseURL and
// uploadURL to DefaultUploadURL.
func New(opts rest.Options, uploadURL string) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	opts.AuthScheme = "Bearer"
	opts.Normalizer = Normalizer

	return &Client{
		api:       rest.New(opts),
		uploadURL: uploadURL,
		logger:    opts.Logger,
		cache:     map[string]*item{"/": {ID: rootID, Name: "", MimeType: folderMime}},
	}
}

// Name implements cloud.Provider.
func (c *Client) Name() string { return Name }

type about struct {
	User struct {
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	} `json:"user"`
	StorageQuota struct {
		Limit string `json:"limit"`
		Usage string `json:"usage"`
	} `json:"storageQuota"`
}

func (c *Client) about(ctx context.Context, fields string) (*about, error) {
	var a about

	err := c.api.DoJSON(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   "/about",
		Query:  url.Values{"fields": {fields}},
	}, &a)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// Authenticate implements cloud.Provider.
func (c *Client) Authenticate(ctx context.Context) error {
	if _, err := c.about(ctx, "user(emailAddress)"); err != nil {
		c.logger.Debug("gdrive: authentication failed", slog.String("error", err.Error()))

		return cloud.NewError(cloud.CodeAuth, "Google Drive authorization failed, check or refresh the token")
	}

	return nil
}

// AccountInfo implements cloud.Provider. Accounts without a storage limit
// report QuotaUnknown.
func (c *Client) AccountInfo(ctx context.Context) (*cloud.AccountInfo, error) {
	a, err := c.about(ctx, "user(displayName,emailAddress),storageQuota(limit,usage)")
	if err != nil {
		return nil, err
	}

	info := &cloud.AccountInfo{
		Login:       a.User.EmailAddress,
		DisplayName: a.User.DisplayName,
		TotalBytes:  cloud.QuotaUnknown,
	}

	if n, err := strconv.ParseInt(a.StorageQuota.Usage, 10, 64); err == nil {
		info.UsedBytes = n
	}

	if n, err := strconv.ParseInt(a.StorageQuota.Limit, 10, 64); err == nil {
		info.TotalBytes = n
	}

	return info, nil
}

// quote escapes a name for use inside a Drive query string literal.
func quote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

type fileList struct {
	Files         []item `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

// query returns every non-trashed item matching q, following pagination.
func (c *Client) query(ctx context.Context, q string) ([]item, error) {
	var items []item

	params := url.Values{
		"q":        {q + " and trashed = false"},
		"fields":   {"nextPageToken,files(id,name,mimeType)"},
		"pageSize": {strconv.Itoa(pageSize)},
	}

	for {
		var page fileList
		if err := c.api.DoJSON(ctx, &rest.Request{Method: http.MethodGet, Path: "/files", Query: params}, &page); err != nil {
			return nil, err
		}

		items = append(items, page.Files...)

		if page.NextPageToken == "" {
			return items, nil
		}

		params.Set("pageToken", page.NextPageToken)
	}
}

// child looks up a direct child of parent by name. Returns nil when absent.
func (c *Client) child(ctx context.Context, parentID, name string) (*item, error) {
	items, err := c.query(ctx, fmt.Sprintf("%s in parents and name = %s", quote(parentID), quote(name)))
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, nil //nolint:nilnil // absent child is not an error
	}

	// Drive allows duplicate names; prefer a folder so traversal works.
	for i := range items {
		if items[i].isFolder() {
			return &items[i], nil
		}
	}

	return &items[0], nil
}

func (c *Client) cached(remote string) *item {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cache[remote]
}

func (c *Client) remember(remote string, it *item) {
	c.mu.Lock()
	c.cache[remote] = it
	c.mu.Unlock()
}

// resolve maps a remote path to its Drive item, failing with ErrNotFound
// when any component is missing.
func (c *Client) resolve(ctx context.Context, remote string) (*item, error) {
	remote = path.Clean("/" + remote)
	if it := c.cached(remote); it != nil {
		return it, nil
	}

	parent, err := c.resolve(ctx, path.Dir(remote))
	if err != nil {
		return nil, err
	}

	if !parent.isFolder() {
		return nil, cloud.NewError(cloud.CodeNotFound, fmt.Sprintf("not found: %s", remote))
	}

	it, err := c.child(ctx, parent.ID, path.Base(remote))
	if err != nil {
		return nil, err
	}

	if it == nil {
		return nil, cloud.NewError(cloud.CodeNotFound, fmt.Sprintf("not found: %s", remote))
	}

	c.remember(remote, it)

	return it, nil
}

// ListDirectory implements cloud.Provider.
func (c *Client) ListDirectory(ctx context.Context, remote string) ([]cloud.Entry, error) {
	dir, err := c.resolve(ctx, remote)
	if err != nil {
		return nil, err
	}

	if !dir.isFolder() {
		return nil, cloud.NewError(cloud.CodeNotAFolder, fmt.Sprintf("not a folder: %s", remote))
	}

	items, err := c.query(ctx, quote(dir.ID)+" in parents")
	if err != nil {
		return nil, err
	}

	entries := make([]cloud.Entry, 0, len(items))

	for i := range items {
		kind := cloud.KindFile
		if items[i].isFolder() {
			kind = cloud.KindDir
		}

		entries = append(entries, cloud.Entry{Name: items[i].Name, Kind: kind})
		c.remember(path.Join(path.Clean("/"+remote), items[i].Name), &items[i])
	}

	return entries, nil
}

// FetchFile implements cloud.Provider. Google Workspace documents have no
// binary content and are reported as not a file.
func (c *Client) FetchFile(ctx context.Context, remote string, w io.Writer) (int64, error) {
	it, err := c.resolve(ctx, remote)
	if err != nil {
		return 0, err
	}

	if it.isFolder() || strings.HasPrefix(it.MimeType, workspaceMime) {
		return 0, cloud.NewError(cloud.CodeNotAFile, fmt.Sprintf("not a file: %s", remote))
	}

	return c.api.Stream(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   "/files/" + url.PathEscape(it.ID),
		Query:  url.Values{"alt": {"media"}},
	}, w)
}

// parentFolder resolves the folder that will contain remote.
func (c *Client) parentFolder(ctx context.Context, remote string) (*item, error) {
	parent, err := c.resolve(ctx, path.Dir(remote))
	if err != nil {
		return nil, err
	}

	if !parent.isFolder() {
		return nil, cloud.NewError(cloud.CodeNotAFolder, fmt.Sprintf("not a folder: %s", path.Dir(remote)))
	}

	return parent, nil
}

// create adds a metadata-only item under parent.
func (c *Client) create(ctx context.Context, parent *item, name, mime string) (*item, error) {
	meta := map[string]any{"name": name, "parents": []string{parent.ID}}
	if mime != "" {
		meta["mimeType"] = mime
	}

	body, err := rest.JSONBody(meta)
	if err != nil {
		return nil, err
	}

	var it item

	err = c.api.DoJSON(ctx, &rest.Request{
		Method:      http.MethodPost,
		Path:        "/files",
		Query:       url.Values{"fields": {"id,name,mimeType"}},
		Body:        body,
		ContentType: "application/json",
	}, &it)
	if err != nil {
		return nil, err
	}

	return &it, nil
}

// CreateDirectory implements cloud.Provider. Drive itself allows duplicate
// names, so an existing child of the same name is reported as a conflict.
func (c *Client) CreateDirectory(ctx context.Context, remote string) error {
	remote = path.Clean("/" + remote)

	parent, err := c.parentFolder(ctx, remote)
	if err != nil {
		return err
	}

	name := path.Base(remote)

	existing, err := c.child(ctx, parent.ID, name)
	if err != nil {
		return err
	}

	if existing != nil {
		c.remember(remote, existing)

		return cloud.NewError(cloud.CodeFolderConflict, fmt.Sprintf("already exists: %s", remote))
	}

	it, err := c.create(ctx, parent, name, folderMime)
	if err != nil {
		return err
	}

	c.remember(remote, it)

	return nil
}

// StoreFile implements cloud.Provider. An existing file of the same name
// gets new content; otherwise the file is created first and its content
// uploaded in a second request.
func (c *Client) StoreFile(ctx context.Context, local, remote string) error {
	f, fi, err := cloud.OpenLocalFile(local)
	if err != nil {
		return err
	}
	defer f.Close()

	remote = path.Clean("/" + remote)

	parent, err := c.parentFolder(ctx, remote)
	if err != nil {
		return err
	}

	name := path.Base(remote)

	target, err := c.child(ctx, parent.ID, name)
	if err != nil {
		return err
	}

	if target != nil && target.isFolder() {
		return cloud.NewError(cloud.CodeNotAFile, fmt.Sprintf("remote path is a folder: %s", remote))
	}

	if target == nil {
		if target, err = c.create(ctx, parent, name, ""); err != nil {
			return err
		}
	}

	resp, err := c.api.Do(ctx, &rest.Request{
		Method:        http.MethodPatch,
		URL:           c.uploadURL + "/files/" + url.PathEscape(target.ID),
		Query:         url.Values{"uploadType": {"media"}},
		Body:          f,
		ContentLength: fi.Size(),
		ContentType:   "application/octet-stream",
	})
	if err != nil {
		return err
	}

	resp.Body.Close()
	c.remember(remote, target)

	c.logger.Debug("gdrive: file stored",
		slog.String("remote", remote),
		slog.String("id", target.ID),
		slog.Int64("size", fi.Size()),
	)

	return nil
}
