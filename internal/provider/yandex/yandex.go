// Package yandex implements cloud.Provider for Yandex.Disk REST API v1,
// including whole-folder download as a zip archive.
package yandex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cloudboss/cloudboss/internal/cloud"
	"github.com/cloudboss/cloudboss/internal/rest"
)

// DefaultBaseURL is the Yandex.Disk REST API root.
const DefaultBaseURL = "https://cloud-api.yandex.net/v1/disk"

// Name is the provider identifier.
const Name = "yandex"

// pageSize is the number of listing entries requested per page.
const pageSize = 1000

const (
	typeDir  = "dir"
	typeFile = "file"
)

// Client talks to Yandex.Disk. It is safe for concurrent use.
type Client struct {
	api    *rest.Client
	logger *slog.Logger
}

// New creates a Yandex.Disk client. Authentication uses the "OAuth"
// scheme; BaseURL defaults to DefaultBaseURL.
func New(opts rest.Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	opts.AuthScheme = "OAuth"
	opts.Normalizer = Normalizer

	return &Client{api: rest.New(opts), logger: opts.Logger}
}

// Name implements cloud.Provider.
func (c *Client) Name() string { return Name }

type diskInfo struct {
	TotalSpace int64 `json:"total_space"`
	UsedSpace  int64 `json:"used_space"`
	User       struct {
		Login       string `json:"login"`
		DisplayName string `json:"display_name"`
	} `json:"user"`
}

func (c *Client) disk(ctx context.Context, fields string) (*diskInfo, error) {
	var info diskInfo

	err := c.api.DoJSON(ctx, &rest.Request{
		Method: http.MethodGet,
		Query:  url.Values{"fields": {fields}},
	}, &info)
	if err != nil {
		return nil, err
	}

	return &info, nil
}

// Authenticate implements cloud.Provider.
func (c *Client) Authenticate(ctx context.Context) error {
	if _, err := c.disk(ctx, "user.login"); err != nil {
		c.logger.Debug("yandex: authentication failed", slog.String("error", err.Error()))

		return cloud.NewError(cloud.CodeAuth, "Yandex.Disk authorization failed, check or refresh the token")
	}

	return nil
}

// AccountInfo implements cloud.Provider.
func (c *Client) AccountInfo(ctx context.Context) (*cloud.AccountInfo, error) {
	info, err := c.disk(ctx, "user.login,user.display_name,total_space,used_space")
	if err != nil {
		return nil, err
	}

	return &cloud.AccountInfo{
		Login:       info.User.Login,
		DisplayName: info.User.DisplayName,
		UsedBytes:   info.UsedSpace,
		TotalBytes:  info.TotalSpace,
	}, nil
}

type resource struct {
	Type     string `json:"type"`
	Embedded *struct {
		Items []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"items"`
		Total int `json:"total"`
	} `json:"_embedded"`
}

func (c *Client) resource(ctx context.Context, remote, fields string, offset int) (*resource, error) {
	q := url.Values{"path": {remote}, "fields": {fields}}
	if offset >= 0 {
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))
	}

	var r resource
	if err := c.api.DoJSON(ctx, &rest.Request{Method: http.MethodGet, Path: "/resources", Query: q}, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// resourceType returns "dir" or "file" for remote.
func (c *Client) resourceType(ctx context.Context, remote string) (string, error) {
	r, err := c.resource(ctx, remote, "type", -1)
	if err != nil {
		return "", err
	}

	return r.Type, nil
}

// ListDirectory implements cloud.Provider.
func (c *Client) ListDirectory(ctx context.Context, remote string) ([]cloud.Entry, error) {
	const fields = "type,_embedded.items.name,_embedded.items.type,_embedded.total"

	var entries []cloud.Entry

	for offset := 0; ; {
		r, err := c.resource(ctx, remote, fields, offset)
		if err != nil {
			return nil, err
		}

		if r.Type != typeDir || r.Embedded == nil {
			return nil, cloud.NewError(cloud.CodeNotAFolder, fmt.Sprintf("not a folder: %s", remote))
		}

		for _, item := range r.Embedded.Items {
			kind := cloud.KindFile
			if item.Type == typeDir {
				kind = cloud.KindDir
			}

			entries = append(entries, cloud.Entry{Name: item.Name, Kind: kind})
		}

		offset += len(r.Embedded.Items)
		if len(r.Embedded.Items) == 0 || offset >= r.Embedded.Total {
			break
		}
	}

	return entries, nil
}

type link struct {
	Href   string `json:"href"`
	Method string `json:"method"`
}

func (c *Client) link(ctx context.Context, path string, q url.Values) (*link, error) {
	var l link
	if err := c.api.DoJSON(ctx, &rest.Request{Method: http.MethodGet, Path: path, Query: q}, &l); err != nil {
		return nil, err
	}

	if l.Href == "" {
		return nil, cloud.NewError(cloud.CodeGeneric, "empty link in response")
	}

	return &l, nil
}

// download streams the content behind a /resources/download link into w.
// For folders Yandex.Disk serves a zip archive.
func (c *Client) download(ctx context.Context, remote string, w io.Writer) (int64, error) {
	l, err := c.link(ctx, "/resources/download", url.Values{"path": {remote}})
	if err != nil {
		return 0, err
	}

	return c.api.Stream(ctx, &rest.Request{Method: http.MethodGet, URL: l.Href}, w)
}

// FetchFile implements cloud.Provider.
func (c *Client) FetchFile(ctx context.Context, remote string, w io.Writer) (int64, error) {
	typ, err := c.resourceType(ctx, remote)
	if err != nil {
		return 0, err
	}

	if typ != typeFile {
		return 0, cloud.NewError(cloud.CodeNotAFile, fmt.Sprintf("not a file: %s", remote))
	}

	return c.download(ctx, remote, w)
}

// FetchArchive implements cloud.ArchiveFetcher.
func (c *Client) FetchArchive(ctx context.Context, remote string, w io.Writer) (int64, error) {
	typ, err := c.resourceType(ctx, remote)
	if err != nil {
		return 0, err
	}

	if typ != typeDir {
		return 0, cloud.NewError(cloud.CodeNotAFolder, fmt.Sprintf("not a folder: %s", remote))
	}

	return c.download(ctx, remote, w)
}

// StoreFile implements cloud.Provider. Existing files are overwritten.
func (c *Client) StoreFile(ctx context.Context, local, remote string) error {
	f, fi, err := cloud.OpenLocalFile(local)
	if err != nil {
		return err
	}
	defer f.Close()

	l, err := c.link(ctx, "/resources/upload", url.Values{
		"path":      {remote},
		"overwrite": {"true"},
	})
	if err != nil {
		return err
	}

	method := l.Method
	if method == "" {
		method = http.MethodPut
	}

	resp, err := c.api.Do(ctx, &rest.Request{
		Method:        method,
		URL:           l.Href,
		Body:          f,
		ContentLength: fi.Size(),
		ContentType:   "application/octet-stream",
	})
	if err != nil {
		return err
	}

	resp.Body.Close()

	c.logger.Debug("yandex: file stored",
		slog.String("remote", remote),
		slog.Int64("size", fi.Size()),
	)

	return nil
}

// CreateDirectory implements cloud.Provider.
func (c *Client) CreateDirectory(ctx context.Context, remote string) error {
	return c.api.DoJSON(ctx, &rest.Request{
		Method: http.MethodPut,
		Path:   "/resources",
		Query:  url.Values{"path": {remote}},
	}, nil)
}
