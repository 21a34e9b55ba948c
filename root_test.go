package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/cloudboss/cloudboss/internal/cloud"
	"github.com/cloudboss/cloudboss/internal/config"
	"github.com/cloudboss/cloudboss/internal/tokenfile"
)

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the global flag variables to their zero values on every call.
// Tests go through cmd.SetArgs() + cmd.Execute() so Cobra parses the flags.

const goodToken = "good-token"

// fakeYandex serves the subset of the Yandex.Disk API the CLI commands use.
type fakeYandex struct {
	mu      sync.Mutex
	folders map[string][]string // folder -> child names; "/" is the root
	files   map[string]string

	requests atomic.Int32
}

func newFakeYandex(t *testing.T) (*fakeYandex, string) {
	t.Helper()

	fy := &fakeYandex{
		folders: map[string][]string{"/": {"notes.txt", "docs"}, "/docs": nil},
		files:   map[string]string{"/notes.txt": "hello"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/disk", fy.disk)
	mux.HandleFunc("GET /v1/disk/resources", fy.resource)
	mux.HandleFunc("PUT /v1/disk/resources", fy.mkdir)
	mux.HandleFunc("GET /v1/disk/resources/download", fy.link("/dl"))
	mux.HandleFunc("GET /v1/disk/resources/upload", fy.link("/ul"))
	mux.HandleFunc("GET /dl", fy.serveFile)
	mux.HandleFunc("PUT /ul", fy.storeFile)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fy.requests.Add(1)

		if r.Header.Get("Authorization") != "OAuth "+goodToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "UnauthorizedError", "message": "bad token"})
			return
		}

		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return fy, srv.URL + "/v1/disk"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (fy *fakeYandex) disk(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"total_space": 10 << 30,
		"used_space":  5 << 20,
		"user":        map[string]string{"login": "alice", "display_name": "Alice"},
	})
}

func (fy *fakeYandex) resource(w http.ResponseWriter, r *http.Request) {
	fy.mu.Lock()
	defer fy.mu.Unlock()

	p := r.URL.Query().Get("path")

	if _, ok := fy.files[p]; ok {
		writeJSON(w, http.StatusOK, map[string]any{"type": "file"})
		return
	}

	children, ok := fy.folders[p]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "DiskNotFoundError", "message": "not found"})
		return
	}

	items := make([]map[string]string, 0, len(children))
	for _, name := range children {
		typ := "file"
		if _, dir := fy.folders[strings.TrimSuffix(p, "/")+"/"+name]; dir {
			typ = "dir"
		}

		items = append(items, map[string]string{"name": name, "type": typ})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"type":      "dir",
		"_embedded": map[string]any{"items": items, "total": len(items)},
	})
}

// file returns the stored content of p under the lock.
func (fy *fakeYandex) file(p string) string {
	fy.mu.Lock()
	defer fy.mu.Unlock()

	return fy.files[p]
}

func (fy *fakeYandex) link(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		href := "http://" + r.Host + target + "?path=" + url.QueryEscape(r.URL.Query().Get("path"))
		writeJSON(w, http.StatusOK, map[string]string{"href": href, "method": http.MethodPut})
	}
}

func (fy *fakeYandex) serveFile(w http.ResponseWriter, r *http.Request) {
	fy.mu.Lock()
	data, ok := fy.files[r.URL.Query().Get("path")]
	fy.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	_, _ = io.WriteString(w, data)
}

func (fy *fakeYandex) storeFile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fy.mu.Lock()
	defer fy.mu.Unlock()

	p := r.URL.Query().Get("path")
	if _, ok := fy.files[p]; !ok {
		parent := path.Dir(p)
		fy.folders[parent] = append(fy.folders[parent], path.Base(p))
	}

	fy.files[p] = string(body)
	w.WriteHeader(http.StatusCreated)
}

func (fy *fakeYandex) mkdir(w http.ResponseWriter, r *http.Request) {
	fy.mu.Lock()
	defer fy.mu.Unlock()

	p := r.URL.Query().Get("path")
	if _, ok := fy.folders[p]; ok {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "DiskPathPointsToExistentDirectoryError", "message": "exists",
		})

		return
	}

	fy.folders[p] = nil
	parent := path.Dir(p)
	fy.folders[parent] = append(fy.folders[parent], path.Base(p))
	writeJSON(w, http.StatusCreated, map[string]string{"href": "x"})
}

// cliEnv points the CLI at a temporary config, data directory and fake
// Yandex.Disk server. It returns the config path and the server state.
func cliEnv(t *testing.T) (string, *fakeYandex) {
	t.Helper()

	fy, base := newFakeYandex(t)
	dir := t.TempDir()

	t.Setenv("HOME", dir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvProvider, "")
	t.Setenv(config.TokenEnvName(config.ProviderYandex), goodToken)

	cfgPath := filepath.Join(dir, "config.toml")
	cfg := "provider = \"yandex\"\n\n[yandex]\nbase_url = \"" + base + "\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	return cfgPath, fy
}

// runCLI executes the root command with args and returns what it wrote to
// stdout.
func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = w

	t.Cleanup(func() { os.Stdout = old })

	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", cfgPath, "-q"}, args...))

	runErr := cmd.ExecuteContext(context.Background())

	w.Close()
	os.Stdout = old

	out, err := io.ReadAll(r)
	require.NoError(t, err)

	return string(out), runErr
}

func TestBuildLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		flags   CLIFlags
		enabled slog.Level
		hidden  slog.Level
	}{
		{"default info", "info", CLIFlags{}, slog.LevelInfo, slog.LevelDebug},
		{"config debug", "debug", CLIFlags{}, slog.LevelDebug, slog.LevelDebug - 1},
		{"config error", "error", CLIFlags{}, slog.LevelError, slog.LevelWarn},
		{"verbose wins", "error", CLIFlags{Verbose: true}, slog.LevelDebug, slog.LevelDebug - 1},
		{"quiet wins", "debug", CLIFlags{Quiet: true}, slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &config.ResolvedConfig{Config: config.Config{LoggingConfig: config.LoggingConfig{LogLevel: tt.level}}}
			h := buildLogger(rc, tt.flags).Handler()

			assert.True(t, h.Enabled(context.Background(), tt.enabled))
			assert.False(t, h.Enabled(context.Background(), tt.hidden))
		})
	}
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"login", "logout", "info", "config", "ls", "get", "put", "mkdir", "push", "pull"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_InvalidProvider(t *testing.T) {
	cfgPath, _ := cliEnv(t)

	_, err := runCLI(t, cfgPath, "--provider", "ftp", "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestLs_JSONFoldersFirst(t *testing.T) {
	cfgPath, _ := cliEnv(t)

	out, err := runCLI(t, cfgPath, "--json", "ls", "/")
	require.NoError(t, err)

	var items []lsJSONItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	assert.Equal(t, []lsJSONItem{
		{Name: "docs", IsFolder: true},
		{Name: "notes.txt", IsFolder: false},
	}, items)
}

func TestLs_Table(t *testing.T) {
	cfgPath, _ := cliEnv(t)

	out, err := runCLI(t, cfgPath, "ls")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "docs/"))
	assert.True(t, strings.HasPrefix(lines[2], "notes.txt"))
}

func TestLs_NotAFolderPropagates(t *testing.T) {
	cfgPath, _ := cliEnv(t)

	_, err := runCLI(t, cfgPath, "ls", "/notes.txt")
	require.ErrorIs(t, err, cloud.ErrNotAFolder)
}

func TestInfo_JSON(t *testing.T) {
	cfgPath, _ := cliEnv(t)

	out, err := runCLI(t, cfgPath, "--json", "info")
	require.NoError(t, err)

	var got infoOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "yandex", got.Provider)
	assert.Equal(t, "alice", got.Login)
	assert.Equal(t, int64(5<<20), got.UsedBytes)
	require.NotNil(t, got.TotalBytes)
	assert.Equal(t, int64(10<<30), *got.TotalBytes)
}

func TestInfo_BadTokenIsAuthError(t *testing.T) {
	cfgPath, _ := cliEnv(t)
	t.Setenv(config.TokenEnvName(config.ProviderYandex), "wrong")

	_, err := runCLI(t, cfgPath, "info")
	require.ErrorIs(t, err, cloud.ErrAuth)
	assert.True(t, strings.HasPrefix(err.Error(), "AuthError. "))
}

func TestMkdir_ConflictPropagates(t *testing.T) {
	cfgPath, _ := cliEnv(t)

	_, err := runCLI(t, cfgPath, "mkdir", "/new")
	require.NoError(t, err)

	_, err = runCLI(t, cfgPath, "mkdir", "/docs")
	require.ErrorIs(t, err, cloud.ErrFolderConflict)
}

func TestLoginLogout_RoundTrip(t *testing.T) {
	cfgPath, _ := cliEnv(t)
	t.Setenv(config.TokenEnvName(config.ProviderYandex), "")

	_, err := runCLI(t, cfgPath, "info")
	require.ErrorIs(t, err, cloud.ErrAuth, "no saved token yet")

	out, err := runCLI(t, cfgPath, "--json", "login", "--token", goodToken)
	require.NoError(t, err)
	assert.Contains(t, out, `"login": "alice"`)

	tf, err := tokenfile.Load(config.TokenPath(config.ProviderYandex))
	require.NoError(t, err)
	require.NotNil(t, tf)
	assert.Equal(t, goodToken, tf.Token.AccessToken)
	assert.Equal(t, "Alice", tf.Meta[metaName])

	// Later commands use the saved token.
	_, err = runCLI(t, cfgPath, "info")
	require.NoError(t, err)

	out, err = runCLI(t, cfgPath, "--json", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, `"removed": true`)

	out, err = runCLI(t, cfgPath, "--json", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, `"removed": false`)
}

func TestInfo_RefreshesSavedAccountDetails(t *testing.T) {
	cfgPath, _ := cliEnv(t)
	t.Setenv(config.TokenEnvName(config.ProviderYandex), "")

	path := config.TokenPath(config.ProviderYandex)
	require.NoError(t, tokenfile.Save(path, &tokenfile.File{
		Provider: config.ProviderYandex,
		Token:    &oauth2.Token{AccessToken: goodToken},
		Meta:     map[string]string{metaLogin: "alice", metaName: "Old Name", "extra": "kept"},
	}))

	_, err := runCLI(t, cfgPath, "info")
	require.NoError(t, err)

	tf, err := tokenfile.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Alice", tf.Meta[metaName])
	assert.Equal(t, "kept", tf.Meta["extra"])
	assert.Equal(t, goodToken, tf.Token.AccessToken)
}

func TestLogin_RejectsBadToken(t *testing.T) {
	cfgPath, _ := cliEnv(t)

	_, err := runCLI(t, cfgPath, "login", "--token", "wrong")
	require.ErrorIs(t, err, cloud.ErrAuth)

	tf, err := tokenfile.Load(config.TokenPath(config.ProviderYandex))
	require.NoError(t, err)
	assert.Nil(t, tf)
}

func TestLogin_S3HasNoLogin(t *testing.T) {
	cfgPath, _ := cliEnv(t)

	f, err := os.OpenFile(cfgPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("\n[s3]\nbucket = \"photos\"\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = runCLI(t, cfgPath, "--provider", "s3", "login", "--token", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to log in")
}

func TestLogin_DeviceNeedsClientID(t *testing.T) {
	cfgPath, _ := cliEnv(t)

	_, err := runCLI(t, cfgPath, "--provider", "gdrive", "login", "--device")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id in the [gdrive] config table")
}

func TestLogin_DeviceUnsupportedProvider(t *testing.T) {
	cfgPath, _ := cliEnv(t)

	_, err := runCLI(t, cfgPath, "login", "--device")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[yandex]")
}

func TestConfigShow_TOML(t *testing.T) {
	cfgPath, _ := cliEnv(t)

	out, err := runCLI(t, cfgPath, "config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "# config file: "+cfgPath)
	assert.Contains(t, out, "# token: from CLOUDBOSS_TOKEN_YANDEX")
	assert.Contains(t, out, `provider = "yandex"`)
	assert.Contains(t, out, "[yandex]")
	assert.NotContains(t, out, goodToken)
}

func TestPushPull_RoundTrip(t *testing.T) {
	cfgPath, fy := cliEnv(t)

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("B"), 0o644))

	out, err := runCLI(t, cfgPath, "--json", "push", src, "/docs/backup")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ok"`)

	assert.Equal(t, "A", fy.file("/docs/backup/a.txt"))
	assert.Equal(t, "B", fy.file("/docs/backup/sub/b.txt"))

	dest := t.TempDir()

	out, err = runCLI(t, cfgPath, "--json", "pull", "--no-archive", "/docs/backup", dest)
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ok"`)

	data, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "B", string(data))
}

func TestPull_MissingLocalFolder(t *testing.T) {
	cfgPath, fy := cliEnv(t)

	missing := filepath.Join(t.TempDir(), "missing")

	_, err := runCLI(t, cfgPath, "pull", "/docs", missing)
	require.ErrorIs(t, err, cloud.ErrFileNotFound)
	assert.Contains(t, err.Error(), missing)
	assert.Zero(t, fy.requests.Load(), "no request before the destination is checked")
}

func TestGetPut_SingleFile(t *testing.T) {
	cfgPath, fy := cliEnv(t)

	dest := t.TempDir()

	out, err := runCLI(t, cfgPath, "--json", "get", "/notes.txt", dest)
	require.NoError(t, err)
	assert.Contains(t, out, `"bytes": 5`)

	data, err := os.ReadFile(filepath.Join(dest, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	local := filepath.Join(dest, "up.txt")
	require.NoError(t, os.WriteFile(local, []byte("up"), 0o644))

	out, err = runCLI(t, cfgPath, "--json", "put", local, "/docs/")
	require.NoError(t, err)
	assert.Contains(t, out, `"remote": "/docs/up.txt"`)
	assert.Equal(t, "up", fy.file("/docs/up.txt"))

	_, err = runCLI(t, cfgPath, "get", "/docs", dest)
	require.ErrorIs(t, err, cloud.ErrNotAFile)
}
