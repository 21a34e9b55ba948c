// Package onedrive implements cloud.Provider for Microsoft OneDrive over
// the Graph API v1.0. Items are addressed by path relative to the drive
// root; OneDrive has no archive download.
package onedrive

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

	"github.com/cloudboss/cloudboss/internal/cloud"
	"github.com/cloudboss/cloudboss/internal/rest"
)

// DefaultBaseURL is the Graph API root.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Name is the provider identifier.
const Name = "onedrive"

// pageSize is the $top value for children listings; 200 is the Graph maximum.
const pageSize = 200

// Client talks to the signed-in user's default drive. It is safe for
// concurrent use.
type Client struct {
	api    *rest.Client
	logger *slog.Logger
}

// New creates a OneDrive client. BaseURL defaults to DefaultBaseURL.
func New(opts rest.Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	opts.Normalizer = Normalizer

	return &Client{api: rest.New(opts), logger: opts.Logger}
}

// Name implements cloud.Provider.
func (c *Client) Name() string { return Name }

// encodePathSegments escapes each segment of a slash-separated path so
// characters like #, ? and % survive interpolation into the URL.
func encodePathSegments(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// itemPath addresses remote by path; action, when set, names a
// sub-resource such as "children" or "content".
func itemPath(remote, action string) string {
	var p string
	if remote == "/" || remote == "" {
		p = "/me/drive/root"
		if action != "" {
			p += "/" + action
		}

		return p
	}

	p = "/me/drive/root:" + encodePathSegments(remote) + ":"
	if action != "" {
		p += "/" + action
	}

	return p
}

type driveItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Folder      *struct{} `json:"folder"`
	File        *struct {
		Hashes struct {
			QuickXorHash string `json:"quickXorHash"`
		} `json:"hashes"`
	} `json:"file"`
	DownloadURL string `json:"@microsoft.graph.downloadUrl"` //nolint:tagliatelle // Graph API annotation key
}

// quickXorHash returns the reported content hash, or "" when the item
// carries none.
func (it *driveItem) quickXorHash() string {
	if it.File == nil {
		return ""
	}

	return it.File.Hashes.QuickXorHash
}

func (c *Client) item(ctx context.Context, remote string) (*driveItem, error) {
	var it driveItem
	if err := c.api.DoJSON(ctx, &rest.Request{Method: http.MethodGet, Path: itemPath(remote, "")}, &it); err != nil {
		return nil, err
	}

	return &it, nil
}

type driveInfo struct {
	Quota *struct {
		Used  int64 `json:"used"`
		Total int64 `json:"total"`
	} `json:"quota"`
}

// Authenticate implements cloud.Provider.
func (c *Client) Authenticate(ctx context.Context) error {
	err := c.api.DoJSON(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   "/me/drive",
		Query:  url.Values{"$select": {"id"}},
	}, nil)
	if err != nil {
		c.logger.Debug("onedrive: authentication failed", slog.String("error", err.Error()))

		return cloud.NewError(cloud.CodeAuth, "OneDrive authorization failed, check or refresh the token")
	}

	return nil
}

// AccountInfo implements cloud.Provider. Personal accounts often leave
// mail empty, so the user principal name stands in as the login.
func (c *Client) AccountInfo(ctx context.Context) (*cloud.AccountInfo, error) {
	var me struct {
		DisplayName string `json:"displayName"`
		Mail        string `json:"mail"`
		UPN         string `json:"userPrincipalName"`
	}

	if err := c.api.DoJSON(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   "/me",
		Query:  url.Values{"$select": {"displayName,mail,userPrincipalName"}},
	}, &me); err != nil {
		return nil, err
	}

	var drive driveInfo
	if err := c.api.DoJSON(ctx, &rest.Request{
		Method: http.MethodGet,
		Path:   "/me/drive",
		Query:  url.Values{"$select": {"quota"}},
	}, &drive); err != nil {
		return nil, err
	}

	info := &cloud.AccountInfo{
		Login:       me.Mail,
		DisplayName: me.DisplayName,
		TotalBytes:  cloud.QuotaUnknown,
	}

	if info.Login == "" {
		info.Login = me.UPN
	}

	if drive.Quota != nil {
		info.UsedBytes = drive.Quota.Used
		if drive.Quota.Total > 0 {
			info.TotalBytes = drive.Quota.Total
		}
	}

	return info, nil
}

type childrenPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

// ListDirectory implements cloud.Provider. It follows @odata.nextLink
// until the listing is exhausted.
func (c *Client) ListDirectory(ctx context.Context, remote string) ([]cloud.Entry, error) {
	it, err := c.item(ctx, remote)
	if err != nil {
		return nil, err
	}

	if it.Folder == nil {
		return nil, cloud.NewError(cloud.CodeNotAFolder, fmt.Sprintf("not a folder: %s", remote))
	}

	req := &rest.Request{
		Method: http.MethodGet,
		Path:   itemPath(remote, "children"),
		Query:  url.Values{"$top": {strconv.Itoa(pageSize)}, "$select": {"name,folder"}},
	}

	var entries []cloud.Entry

	for page := 1; ; page++ {
		var p childrenPage
		if err := c.api.DoJSON(ctx, req, &p); err != nil {
			return nil, err
		}

		for _, child := range p.Value {
			kind := cloud.KindFile
			if child.Folder != nil {
				kind = cloud.KindDir
			}

			entries = append(entries, cloud.Entry{Name: child.Name, Kind: kind})
		}

		c.logger.Debug("onedrive: fetched children page",
			slog.String("remote", remote),
			slog.Int("page", page),
			slog.Int("count", len(p.Value)),
		)

		if p.NextLink == "" {
			break
		}

		// nextLink already carries the query.
		req = &rest.Request{Method: http.MethodGet, URL: p.NextLink}
	}

	return entries, nil
}

// FetchFile implements cloud.Provider. The pre-authenticated download URL
// is fetched without the Authorization header and is never logged.
func (c *Client) FetchFile(ctx context.Context, remote string, w io.Writer) (int64, error) {
	it, err := c.item(ctx, remote)
	if err != nil {
		return 0, err
	}

	if it.Folder != nil {
		return 0, cloud.NewError(cloud.CodeNotAFile, fmt.Sprintf("not a file: %s", remote))
	}

	if it.DownloadURL != "" {
		return c.api.Stream(ctx, &rest.Request{Method: http.MethodGet, URL: it.DownloadURL, NoAuth: true}, w)
	}

	return c.api.Stream(ctx, &rest.Request{Method: http.MethodGet, Path: itemPath(remote, "content")}, w)
}

type createFolderRequest struct {
	Name             string   `json:"name"`
	Folder           struct{} `json:"folder"`
	ConflictBehavior string   `json:"@microsoft.graph.conflictBehavior"` //nolint:tagliatelle // Graph API annotation key
}

// CreateDirectory implements cloud.Provider. conflictBehavior "fail" makes
// an existing name a 409 nameAlreadyExists.
func (c *Client) CreateDirectory(ctx context.Context, remote string) error {
	if remote == "/" || remote == "" {
		return cloud.NewError(cloud.CodeFolderConflict, "the root folder already exists")
	}

	body, err := rest.JSONBody(createFolderRequest{Name: path.Base(remote), ConflictBehavior: "fail"})
	if err != nil {
		return err
	}

	return c.api.DoJSON(ctx, &rest.Request{
		Method:      http.MethodPost,
		Path:        itemPath(path.Dir(remote), "children"),
		Body:        body,
		ContentType: "application/json",
	}, nil)
}
