package transfer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

// call records one provider primitive invocation, in order.
type call struct {
	op     string
	remote string
}

// fakeProvider is an in-memory cloud.Provider. Folders are keys with a nil
// value in files; every parent must exist before a child is created.
type fakeProvider struct {
	mu      sync.Mutex
	dirs    map[string]bool
	files   map[string][]byte
	calls   []call
	failOn  map[string]error // remote path -> error returned by any primitive
	parents bool             // enforce parent existence on create/store
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		dirs:    map[string]bool{"/": true},
		files:   map[string][]byte{},
		failOn:  map[string]error{},
		parents: true,
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Authenticate(context.Context) error { return nil }

func (p *fakeProvider) AccountInfo(context.Context) (*cloud.AccountInfo, error) {
	return &cloud.AccountInfo{Login: "fake", TotalBytes: cloud.QuotaUnknown}, nil
}

func (p *fakeProvider) record(op, remote string) error {
	p.calls = append(p.calls, call{op: op, remote: remote})

	return p.failOn[remote]
}

func (p *fakeProvider) ListDirectory(_ context.Context, remote string) ([]cloud.Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record("list", remote); err != nil {
		return nil, err
	}

	if _, ok := p.files[remote]; ok {
		return nil, cloud.NewError(cloud.CodeNotAFolder, remote)
	}

	if !p.dirs[remote] {
		return nil, cloud.NewError(cloud.CodeNotFound, remote)
	}

	var entries []cloud.Entry

	for d := range p.dirs {
		if d != "/" && path.Dir(d) == remote {
			entries = append(entries, cloud.Entry{Name: path.Base(d), Kind: cloud.KindDir})
		}
	}

	for f := range p.files {
		if path.Dir(f) == remote {
			entries = append(entries, cloud.Entry{Name: path.Base(f), Kind: cloud.KindFile})
		}
	}

	return entries, nil
}

func (p *fakeProvider) FetchFile(_ context.Context, remote string, w io.Writer) (int64, error) {
	p.mu.Lock()
	data, ok := p.files[remote]
	isDir := p.dirs[remote]
	err := p.record("fetch", remote)
	p.mu.Unlock()

	if err != nil {
		return 0, err
	}

	if isDir {
		return 0, cloud.NewError(cloud.CodeNotAFile, remote)
	}

	if !ok {
		return 0, cloud.NewError(cloud.CodeNotFound, remote)
	}

	n, err := w.Write(data)

	return int64(n), err
}

func (p *fakeProvider) StoreFile(_ context.Context, local, remote string) error {
	f, _, err := cloud.OpenLocalFile(local)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record("store", remote); err != nil {
		return err
	}

	if p.parents && !p.dirs[path.Dir(remote)] {
		return cloud.NewError(cloud.CodeNotFound, "parent missing: "+remote)
	}

	p.files[remote] = data

	return nil
}

func (p *fakeProvider) CreateDirectory(_ context.Context, remote string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.record("mkdir", remote); err != nil {
		return err
	}

	if p.dirs[remote] {
		return cloud.NewError(cloud.CodeFolderConflict, remote)
	}

	if p.parents && !p.dirs[path.Dir(remote)] {
		return cloud.NewError(cloud.CodeNotFound, "parent missing: "+remote)
	}

	p.dirs[remote] = true

	return nil
}

// callsOf returns the remote paths of recorded calls with the given op.
func (p *fakeProvider) callsOf(op string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string

	for _, c := range p.calls {
		if c.op == op {
			out = append(out, c.remote)
		}
	}

	return out
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.calls)
}

// archiveProvider adds ArchiveFetcher to fakeProvider. The archive wraps
// the subtree in a top-level folder named after the requested path, the way
// real providers do.
type archiveProvider struct {
	*fakeProvider
	archives int
	fixed    []byte // when set, returned instead of a generated archive
}

func (p *archiveProvider) FetchArchive(_ context.Context, remote string, w io.Writer) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.archives++

	if err := p.record("archive", remote); err != nil {
		return 0, err
	}

	data := p.fixed
	if data == nil {
		var err error
		if data, err = p.buildZip(remote); err != nil {
			return 0, err
		}
	}

	n, err := w.Write(data)

	return int64(n), err
}

func (p *archiveProvider) buildZip(remote string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	prefix := path.Base(remote)

	var names []string
	for f := range p.files {
		if strings.HasPrefix(f, remote+"/") {
			names = append(names, f)
		}
	}

	slices.Sort(names)

	for _, f := range names {
		w, err := zw.Create(prefix + strings.TrimPrefix(f, remote))
		if err != nil {
			return nil, err
		}

		if _, err := w.Write(p.files[f]); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// zipOf builds an archive from name -> content; names ending in "/" are
// directory entries.
func zipOf(entries map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}

		if _, err := w.Write([]byte(entries[name])); err != nil {
			panic(err)
		}
	}

	if err := zw.Close(); err != nil {
		panic(err)
	}

	return buf.Bytes()
}

// writeTree creates files (and their parents) under root. Keys ending in
// "/" create empty directories.
func writeTree(root string, entries map[string]string) {
	for name, content := range entries {
		full := root + "/" + name
		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(full, 0o755); err != nil {
				panic(err)
			}

			continue
		}

		if err := os.MkdirAll(path.Dir(full), 0o755); err != nil {
			panic(err)
		}

		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			panic(err)
		}
	}
}

// readTree returns every regular file under root as relative path -> content.
func readTree(root string) map[string]string {
	out := map[string]string{}

	var walk func(dir, rel string)
	walk = func(dir, rel string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			panic(err)
		}

		for _, e := range entries {
			childRel := path.Join(rel, e.Name())
			if e.IsDir() {
				walk(dir+"/"+e.Name(), childRel)
				continue
			}

			data, err := os.ReadFile(dir + "/" + e.Name())
			if err != nil {
				panic(fmt.Sprintf("reading %s: %v", childRel, err))
			}

			out[childRel] = string(data)
		}
	}

	walk(root, "")

	return out
}
