package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("NVIDIA_API_KEY", "")

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
storage_dir = %q
log_dir = %q
inbox_dir = %q
api_bind = "127.0.0.1:0"

[store]
backend = "json"
`, filepath.Join(base, "storage"), filepath.Join(base, "logs"), filepath.Join(base, "inbox"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{baseDir: base, configPath: configPath}
}

// runCLI executes the root command with --config and, when apiURL is set,
// --api prepended.
func runCLI(t *testing.T, env *cliTestEnv, apiURL string, args ...string) (string, string, error) {
	t.Helper()

	full := []string{"--config", env.configPath}
	if apiURL != "" {
		full = append(full, "--api", apiURL)
	}
	full = append(full, args...)

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(full)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n---\n%s", needle, haystack)
	}
}

// fakeDaemon answers API routes from a table keyed by "METHOD /path".
type fakeDaemon struct {
	t        *testing.T
	server   *httptest.Server
	routes   map[string]http.HandlerFunc
	requests []*recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	fd := &fakeDaemon{t: t, routes: map[string]http.HandlerFunc{}}
	fd.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		_, _ = body.ReadFrom(r.Body)
		fd.requests = append(fd.requests, &recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   body.Bytes(),
		})
		handler, ok := fd.routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"task not found","kind":"not_found"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(fd.server.Close)
	return fd
}

func (fd *fakeDaemon) handleJSON(route string, status int, payload any) {
	fd.routes[route] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (fd *fakeDaemon) lastRequest(method, path string) *recordedRequest {
	for i := len(fd.requests) - 1; i >= 0; i-- {
		if fd.requests[i].Method == method && fd.requests[i].Path == path {
			return fd.requests[i]
		}
	}
	fd.t.Fatalf("no %s %s request recorded", method, path)
	return nil
}

func closedAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	return addr
}
