package dropbox

import (
	"context"
	"io"
	"log/slog"

	"github.com/cloudboss/cloudboss/internal/cloud"
	"github.com/cloudboss/cloudboss/internal/contenthash"
)

// commitInfo says where and how an uploaded file lands. Existing files are
// overwritten so that repeated uploads converge on the same tree.
type commitInfo struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Autorename bool   `json:"autorename"`
	Mute       bool   `json:"mute"`
}

// storedFile is the part of the file metadata answered for a finished
// upload that is checked against the local copy.
type storedFile struct {
	ContentHash string `json:"content_hash"`
}

type sessionCursor struct {
	SessionID string `json:"session_id"`
	Offset    int64  `json:"offset"`
}

// StoreFile implements cloud.Provider. Files up to the single-request limit
// are sent in one call; larger files go through an upload session. The
// reported content hash is checked against the local file.
func (c *Client) StoreFile(ctx context.Context, local, remote string) error {
	f, fi, err := cloud.OpenLocalFile(local)
	if err != nil {
		return err
	}
	defer f.Close()

	commit := commitInfo{Path: remote, Mode: "overwrite", Mute: true}
	size := fi.Size()

	var stored storedFile
	if size <= c.singleLimit {
		stored, err = c.upload(ctx, commit, f, size)
	} else {
		stored, err = c.uploadSession(ctx, commit, f, size)
	}

	if err != nil {
		return err
	}

	err = contenthash.Verify(remote, stored.ContentHash, io.NewSectionReader(f, 0, size), contenthash.Dropbox)
	if err != nil {
		return err
	}

	c.logger.Debug("dropbox: file stored",
		slog.String("remote", remote),
		slog.Int64("size", size),
	)

	return nil
}

func (c *Client) upload(ctx context.Context, commit commitInfo, body io.ReadSeeker, size int64) (storedFile, error) {
	var stored storedFile

	req, err := c.content("/files/upload", commit, body, size)
	if err != nil {
		return stored, err
	}

	err = c.api.DoJSON(ctx, req, &stored)

	return stored, err
}

// uploadSession sends f in chunkSize pieces: start with the first chunk,
// append the middle ones and finish with the last chunk plus the commit.
func (c *Client) uploadSession(ctx context.Context, commit commitInfo, f io.ReaderAt, size int64) (storedFile, error) {
	var stored storedFile

	chunk := func(off int64) (*io.SectionReader, int64) {
		n := min(c.chunkSize, size-off)

		return io.NewSectionReader(f, off, n), n
	}

	first, n := chunk(0)

	req, err := c.content("/files/upload_session/start", map[string]bool{"close": false}, first, n)
	if err != nil {
		return stored, err
	}

	var started struct {
		SessionID string `json:"session_id"`
	}
	if err := c.api.DoJSON(ctx, req, &started); err != nil {
		return stored, err
	}

	cursor := sessionCursor{SessionID: started.SessionID, Offset: n}

	c.logger.Debug("dropbox: upload session started",
		slog.String("remote", commit.Path),
		slog.Int64("size", size),
	)

	for size-cursor.Offset > c.chunkSize {
		body, n := chunk(cursor.Offset)

		arg := struct {
			Cursor sessionCursor `json:"cursor"`
			Close  bool          `json:"close"`
		}{Cursor: cursor}

		req, err := c.content("/files/upload_session/append_v2", arg, body, n)
		if err != nil {
			return stored, err
		}

		if err := c.api.DoJSON(ctx, req, nil); err != nil {
			return stored, err
		}

		cursor.Offset += n
	}

	last, n := chunk(cursor.Offset)

	arg := struct {
		Cursor sessionCursor `json:"cursor"`
		Commit commitInfo    `json:"commit"`
	}{Cursor: cursor, Commit: commit}

	req, err = c.content("/files/upload_session/finish", arg, last, n)
	if err != nil {
		return stored, err
	}

	err = c.api.DoJSON(ctx, req, &stored)

	return stored, err
}
