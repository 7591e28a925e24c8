package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"lecturenote/internal/api"
)

func TestNewClientNormalizesBindAddress(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:8080":       "http://127.0.0.1:8080",
		"0.0.0.0:9000":         "http://127.0.0.1:9000",
		"https://notes.local/": "https://notes.local",
		"  localhost:7487/   ": "http://localhost:7487",
	}
	for in, want := range cases {
		if got := api.NewClient(in, nil).BaseURL(); got != want {
			t.Fatalf("NewClient(%q).BaseURL() = %q, want %q", in, got, want)
		}
	}
}

func TestClientListSendsStatusFilter(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/videos/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("status")
		_ = json.NewEncoder(w).Encode(api.TaskListResponse{Tasks: []api.TaskStatusResponse{{TaskID: "a", Status: "completed"}}})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, srv.Client())
	list, err := client.List(context.Background(), []string{"completed", "failed"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotQuery != "completed,failed" {
		t.Fatalf("expected status filter, got %q", gotQuery)
	}
	if len(list) != 1 || list[0].TaskID != "a" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestClientDecodesErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Detail: "task is not completed", Kind: "invalid_state"})
	}))
	defer srv.Close()

	_, err := api.NewClient(srv.URL, srv.Client()).Note(context.Background(), "abc")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %T %v", err, err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Detail != "task is not completed" || apiErr.Kind != "invalid_state" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if api.IsNotFound(err) {
		t.Fatal("409 must not be reported as not found")
	}
}

func TestClientReportsUnavailableDaemon(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	_, err = api.NewClient(addr, nil).Status(context.Background())
	if !errors.Is(err, api.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := api.NewClient("", nil).Status(context.Background()); !errors.Is(err, api.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty address, got %v", err)
	}
}

func TestClientUploadSendsMultipartFile(t *testing.T) {
	video := filepath.Join(t.TempDir(), "week1.mp4")
	if err := os.WriteFile(video, []byte("video-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/videos/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "week1.mp4" || !bytes.Equal(data, []byte("video-bytes")) {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		if title := r.FormValue("title"); title != "Week 1" {
			t.Errorf("unexpected title %q", title)
		}
		_ = json.NewEncoder(w).Encode(api.UploadResponse{TaskID: "t1", Status: "uploaded", SizeBytes: int64(len(data))})
	}))
	defer srv.Close()

	resp, err := api.NewClient(srv.URL, srv.Client()).Upload(context.Background(), video, "Week 1")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.TaskID != "t1" || resp.SizeBytes != int64(len("video-bytes")) {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestClientDownloadResolvesRelativeLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/objects/outputs/t1/note.md" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("# Note"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	n, err := api.NewClient(srv.URL, srv.Client()).Download(context.Background(), "/objects/outputs/t1/note.md?sig=x", &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n != 6 || buf.String() != "# Note" {
		t.Fatalf("unexpected download %d %q", n, buf.String())
	}
}
