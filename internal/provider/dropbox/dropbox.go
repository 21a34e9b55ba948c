// Package dropbox implements cloud.Provider for the Dropbox API v2,
// including whole-folder download through files/download_zip.
package dropbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/cloudboss/cloudboss/internal/cloud"
	"github.com/cloudboss/cloudboss/internal/rest"
)

// Default endpoints.
const (
	DefaultAPIURL     = "https://api.dropboxapi.com/2"
	DefaultContentURL = "https://content.dropboxapi.com/2"
)

// Name is the provider identifier.
const Name = "dropbox"

// Files above singleUploadLimit go through an upload session in chunks.
const (
	singleUploadLimit = 150 << 20
	defaultChunkSize  = 64 << 20
)

const (
	tagFolder  = "folder"
	tagFile    = "file"
	tagDeleted = "deleted"
)

// Client talks to Dropbox. It is safe for concurrent use.
type Client struct {
	api         *rest.Client
	contentURL  string
	singleLimit int64
	chunkSize   int64
	logger      *slog.Logger
}

// New creates a Dropbox client. opts.BaseURL is the RPC endpoint root
// (DefaultAPIURL when empty); contentURL is the content endpoint root
// (DefaultContentURL when empty).
func New(opts rest.Options, contentURL string) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPIURL
	}

	if contentURL == "" {
		contentURL = DefaultContentURL
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	opts.AuthScheme = "Bearer"
	opts.Normalizer = Normalizer

	return &Client{
		api:         rest.New(opts),
		contentURL:  contentURL,
		singleLimit: singleUploadLimit,
		chunkSize:   defaultChunkSize,
		logger:      opts.Logger,
	}
}

// Name implements cloud.Provider.
func (c *Client) Name() string { return Name }

// apiPath converts a remote path to the Dropbox form, where the root is "".
func apiPath(remote string) string {
	if remote == "/" {
		return ""
	}

	return remote
}

// rpc calls an RPC-style endpoint with a JSON argument and decodes the
// JSON result into out. A nil in sends an empty body.
func (c *Client) rpc(ctx context.Context, endpoint string, in, out any) error {
	req := &rest.Request{Method: http.MethodPost, Path: endpoint}

	if in != nil {
		body, err := rest.JSONBody(in)
		if err != nil {
			return err
		}

		req.Body = body
		req.ContentType = "application/json"
	}

	return c.api.DoJSON(ctx, req, out)
}

// content builds a content-endpoint request carrying arg in the
// Dropbox-API-Arg header.
func (c *Client) content(endpoint string, arg any, body io.ReadSeeker, size int64) (*rest.Request, error) {
	header, err := apiArg(arg)
	if err != nil {
		return nil, err
	}

	req := &rest.Request{
		Method: http.MethodPost,
		URL:    c.contentURL + endpoint,
		Header: http.Header{"Dropbox-Api-Arg": {header}},
	}

	if body != nil {
		req.Body = body
		req.ContentLength = size
		req.ContentType = "application/octet-stream"
	}

	return req, nil
}

type account struct {
	Email string `json:"email"`
	Name  struct {
		DisplayName string `json:"display_name"`
	} `json:"name"`
}

// Authenticate implements cloud.Provider.
func (c *Client) Authenticate(ctx context.Context) error {
	var acc account
	if err := c.rpc(ctx, "/users/get_current_account", nil, &acc); err != nil {
		c.logger.Debug("dropbox: authentication failed", slog.String("error", err.Error()))

		return cloud.NewError(cloud.CodeAuth, "Dropbox authorization failed, check or refresh the token")
	}

	return nil
}

type spaceUsage struct {
	Used       int64 `json:"used"`
	Allocation struct {
		Tag       string `json:".tag"`
		Allocated int64  `json:"allocated"`
	} `json:"allocation"`
}

// AccountInfo implements cloud.Provider. TotalBytes is the allocation when
// Dropbox reports one, QuotaUnknown otherwise.
func (c *Client) AccountInfo(ctx context.Context) (*cloud.AccountInfo, error) {
	var usage spaceUsage
	if err := c.rpc(ctx, "/users/get_space_usage", nil, &usage); err != nil {
		return nil, err
	}

	var acc account
	if err := c.rpc(ctx, "/users/get_current_account", nil, &acc); err != nil {
		return nil, err
	}

	total := cloud.QuotaUnknown
	if usage.Allocation.Allocated > 0 {
		total = usage.Allocation.Allocated
	}

	return &cloud.AccountInfo{
		Login:       acc.Email,
		DisplayName: acc.Name.DisplayName,
		UsedBytes:   usage.Used,
		TotalBytes:  total,
	}, nil
}

type pathArg struct {
	Path string `json:"path"`
}

type metadata struct {
	Tag  string `json:".tag"`
	Name string `json:"name"`
}

// kind returns the metadata tag ("file" or "folder") of remote.
func (c *Client) kind(ctx context.Context, remote string) (string, error) {
	if apiPath(remote) == "" {
		return tagFolder, nil
	}

	var md metadata
	if err := c.rpc(ctx, "/files/get_metadata", pathArg{Path: remote}, &md); err != nil {
		return "", err
	}

	return md.Tag, nil
}

type listFolderArg struct {
	Path           string `json:"path"`
	Recursive      bool   `json:"recursive"`
	IncludeDeleted bool   `json:"include_deleted"`
	Limit          int    `json:"limit,omitempty"`
}

type listFolderResult struct {
	Entries []metadata `json:"entries"`
	Cursor  string     `json:"cursor"`
	HasMore bool       `json:"has_more"`
}

// ListDirectory implements cloud.Provider.
func (c *Client) ListDirectory(ctx context.Context, remote string) ([]cloud.Entry, error) {
	tag, err := c.kind(ctx, remote)
	if err != nil {
		return nil, err
	}

	if tag != tagFolder {
		return nil, cloud.NewError(cloud.CodeNotAFolder, fmt.Sprintf("not a folder: %s", remote))
	}

	var page listFolderResult
	if err := c.rpc(ctx, "/files/list_folder", listFolderArg{Path: apiPath(remote), Limit: 2000}, &page); err != nil {
		return nil, err
	}

	var entries []cloud.Entry

	for {
		for _, md := range page.Entries {
			switch md.Tag {
			case tagFolder:
				entries = append(entries, cloud.Entry{Name: md.Name, Kind: cloud.KindDir})
			case tagFile:
				entries = append(entries, cloud.Entry{Name: md.Name, Kind: cloud.KindFile})
			}
		}

		if !page.HasMore {
			return entries, nil
		}

		cursor := page.Cursor
		page = listFolderResult{}

		if err := c.rpc(ctx, "/files/list_folder/continue", map[string]string{"cursor": cursor}, &page); err != nil {
			return nil, err
		}
	}
}

// FetchFile implements cloud.Provider.
func (c *Client) FetchFile(ctx context.Context, remote string, w io.Writer) (int64, error) {
	tag, err := c.kind(ctx, remote)
	if err != nil {
		return 0, err
	}

	if tag == tagFolder {
		return 0, cloud.NewError(cloud.CodeNotAFile, fmt.Sprintf("not a file: %s", remote))
	}

	req, err := c.content("/files/download", pathArg{Path: remote}, nil, 0)
	if err != nil {
		return 0, err
	}

	return c.api.Stream(ctx, req, w)
}

// FetchArchive implements cloud.ArchiveFetcher.
func (c *Client) FetchArchive(ctx context.Context, remote string, w io.Writer) (int64, error) {
	tag, err := c.kind(ctx, remote)
	if err != nil {
		return 0, err
	}

	if tag != tagFolder {
		return 0, cloud.NewError(cloud.CodeNotAFolder, fmt.Sprintf("not a folder: %s", remote))
	}

	req, err := c.content("/files/download_zip", pathArg{Path: apiPath(remote)}, nil, 0)
	if err != nil {
		return 0, err
	}

	return c.api.Stream(ctx, req, w)
}

// CreateDirectory implements cloud.Provider. An existing folder yields
// ErrFolderConflict and a file in the way ErrNotAFolder, both through the
// normalizer.
func (c *Client) CreateDirectory(ctx context.Context, remote string) error {
	arg := struct {
		Path       string `json:"path"`
		Autorename bool   `json:"autorename"`
	}{Path: remote}

	return c.rpc(ctx, "/files/create_folder_v2", arg, nil)
}
