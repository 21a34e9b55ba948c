package onedrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/cloudboss/cloudboss/internal/cloud"
	"github.com/cloudboss/cloudboss/internal/contenthash"
	"github.com/cloudboss/cloudboss/internal/rest"
)

// chunkAlignment is the required alignment for upload session chunks
// (320 KiB). Every chunk except the last must be a multiple of it.
const chunkAlignment = 320 * 1024

// simpleUploadMaxSize is the largest file sent in a single PUT (4 MiB).
const simpleUploadMaxSize = 4 * 1024 * 1024

// defaultChunkSize is 10 MiB, a multiple of chunkAlignment.
const defaultChunkSize = 32 * chunkAlignment

type uploadSessionRequest struct {
	Item struct {
		ConflictBehavior string `json:"@microsoft.graph.conflictBehavior"` //nolint:tagliatelle // Graph API annotation key
	} `json:"item"`
}

type uploadSession struct {
	UploadURL string `json:"uploadUrl"`
}

// StoreFile implements cloud.Provider. Existing files are replaced, and the
// stored item's QuickXorHash is checked against the local file.
func (c *Client) StoreFile(ctx context.Context, local, remote string) error {
	f, fi, err := cloud.OpenLocalFile(local)
	if err != nil {
		return err
	}
	defer f.Close()

	var item *driveItem
	if fi.Size() <= simpleUploadMaxSize {
		item, err = c.simpleUpload(ctx, f, fi.Size(), remote)
	} else {
		item, err = c.sessionUpload(ctx, f, fi.Size(), remote, defaultChunkSize)
	}

	if err != nil {
		return err
	}

	err = contenthash.Verify(remote, item.quickXorHash(), io.NewSectionReader(f, 0, fi.Size()), contenthash.QuickXor)
	if err != nil {
		return err
	}

	c.logger.Debug("onedrive: file stored",
		slog.String("remote", remote),
		slog.Int64("size", fi.Size()),
	)

	return nil
}

func (c *Client) simpleUpload(ctx context.Context, f *os.File, size int64, remote string) (*driveItem, error) {
	var item driveItem
	if err := c.api.DoJSON(ctx, &rest.Request{
		Method:        http.MethodPut,
		Path:          itemPath(remote, "content"),
		Body:          f,
		ContentLength: size,
		ContentType:   "application/octet-stream",
	}, &item); err != nil {
		return nil, err
	}

	return &item, nil
}

// sessionUpload sends f through a resumable upload session. The session
// URL is pre-authenticated, so chunks go out without the Authorization
// header. Intermediate chunks answer 202; the last answers 200 or 201 with
// the stored item.
func (c *Client) sessionUpload(ctx context.Context, f io.ReaderAt, size int64, remote string, chunkSize int64) (*driveItem, error) {
	var req uploadSessionRequest
	req.Item.ConflictBehavior = "replace"

	body, err := rest.JSONBody(req)
	if err != nil {
		return nil, err
	}

	var sess uploadSession
	if err := c.api.DoJSON(ctx, &rest.Request{
		Method:      http.MethodPost,
		Path:        itemPath(remote, "createUploadSession"),
		Body:        body,
		ContentType: "application/json",
	}, &sess); err != nil {
		return nil, err
	}

	if sess.UploadURL == "" {
		return nil, cloud.NewError(cloud.CodeGeneric, "empty upload URL in session response")
	}

	var item driveItem

	for offset := int64(0); offset < size; offset += chunkSize {
		n := min(chunkSize, size-offset)

		resp, err := c.api.Do(ctx, &rest.Request{
			Method:        http.MethodPut,
			URL:           sess.UploadURL,
			NoAuth:        true,
			Body:          io.NewSectionReader(f, offset, n),
			ContentLength: n,
			ContentType:   "application/octet-stream",
			Header: http.Header{
				"Content-Range": {fmt.Sprintf("bytes %d-%d/%d", offset, offset+n-1, size)},
			},
		})
		if err != nil {
			return nil, err
		}

		if offset+n == size {
			err = json.NewDecoder(resp.Body).Decode(&item)
		}

		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		resp.Body.Close()

		if err != nil {
			return nil, fmt.Errorf("decoding uploaded item: %w", err)
		}

		c.logger.Debug("onedrive: chunk uploaded",
			slog.Int64("offset", offset),
			slog.Int64("length", n),
			slog.Int64("total", size),
			slog.Int("status", resp.StatusCode),
		)
	}

	return &item, nil
}
