package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lecturenote/internal/config"
	"lecturenote/internal/services/llm"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got: %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, ^uint64(0))
	if result.Passed {
		t.Fatal("expected failure for impossible minimum")
	}
	if !strings.Contains(result.Detail, "need") {
		t.Fatalf("expected shortfall detail, got %q", result.Detail)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckReadableFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(f, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if result := CheckReadableFile("creds", f); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckReadableFile("creds", filepath.Dir(f)); result.Passed {
		t.Fatal("expected failure for directory")
	}
}

func TestCheckLLM_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), "LLM", llm.Config{
		Provider: llm.ProviderOpenAI,
		APIKey:   "good-key",
		BaseURL:  srv.URL,
		Model:    "test-model",
	})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "test-model") {
		t.Fatalf("expected model in detail, got %q", result.Detail)
	}
}

func TestCheckLLM_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), "LLM", llm.Config{
		Provider: llm.ProviderOpenAI,
		APIKey:   "bad-key",
		BaseURL:  srv.URL,
		Model:    "test-model",
	})
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "LLM", llm.Config{Model: "m"})
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("expected missing key failure, got %+v", result)
	}
}

func TestRequirementsMarkYTDLPOptional(t *testing.T) {
	cfg := config.Default()
	reqs := Requirements(&cfg)
	if len(reqs) != 4 {
		t.Fatalf("expected 4 requirements, got %d", len(reqs))
	}
	for _, req := range reqs {
		if req.Command == "yt-dlp" && !req.Optional {
			t.Fatal("expected yt-dlp to be optional")
		}
		if req.Command == "ffmpeg" && req.Optional {
			t.Fatal("expected ffmpeg to be required")
		}
	}
	if statuses := CheckSystemDeps(&cfg); len(statuses) != len(reqs) {
		t.Fatalf("expected %d statuses, got %d", len(reqs), len(statuses))
	}
}

func TestLLMConfigSelectsVisionModel(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Model = "text"
	cfg.LLM.VisionModel = "vision"
	if got := LLMConfig(&cfg, false).Model; got != "text" {
		t.Fatalf("expected text model, got %q", got)
	}
	if got := LLMConfig(&cfg, true).Model; got != "vision" {
		t.Fatalf("expected vision model, got %q", got)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil, Options{})
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StorageDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Ingest.WatchEnabled = false
	cfg.Drive.Enabled = false

	results := RunAll(context.Background(), &cfg, Options{SkipLLM: true})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Name == "Storage free space" {
			continue
		}
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_IncludesInboxAndLLM(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StorageDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.InboxDir = filepath.Join(t.TempDir(), "missing")
	cfg.Ingest.WatchEnabled = true
	cfg.LLM.APIKey = ""
	cfg.LLM.VisionModel = cfg.LLM.Model

	results := RunAll(context.Background(), &cfg, Options{})
	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	inbox, ok := byName["Inbox directory"]
	if !ok || inbox.Passed {
		t.Fatalf("expected failing inbox check, got %+v", inbox)
	}
	note, ok := byName["Note LLM"]
	if !ok || note.Passed {
		t.Fatalf("expected failing LLM check without key, got %+v", note)
	}
	if _, ok := byName["Vision LLM"]; ok {
		t.Fatal("vision check should be skipped when models match")
	}
}
