package config_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"lecturenote/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndUsesProviderDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("NVIDIA_API_KEY", "nv-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStorage := filepath.Join(tempHome, ".local", "share", "lecturenote", "storage")
	if cfg.Paths.StorageDir != wantStorage {
		t.Fatalf("unexpected storage dir: got %q want %q", cfg.Paths.StorageDir, wantStorage)
	}
	if cfg.Store.Backend != config.StoreBackendSQLite {
		t.Fatalf("unexpected store backend: %q", cfg.Store.Backend)
	}
	if cfg.LLM.Provider != config.ProviderNVIDIA {
		t.Fatalf("unexpected provider: %q", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey != "nv-key" {
		t.Fatalf("expected api key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != "https://integrate.api.nvidia.com/v1" {
		t.Fatalf("unexpected base url: %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.VisionModel != "meta/llama-3.2-90b-vision-instruct" {
		t.Fatalf("unexpected vision model: %q", cfg.LLM.VisionModel)
	}
	if cfg.Detection.SimilarityThreshold != 0.85 || cfg.Detection.InfoChangeRatio != 1.2 {
		t.Fatalf("unexpected detection defaults: %+v", cfg.Detection)
	}
	if cfg.Alignment.PaddingSec != 5 {
		t.Fatalf("unexpected padding: %v", cfg.Alignment.PaddingSec)
	}
	if cfg.TaskStorePath() != filepath.Join(wantStorage, "tasks.db") {
		t.Fatalf("unexpected task store path: %q", cfg.TaskStorePath())
	}
}

func TestLoadCustomConfigOverridesValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	cfg := config.Default()
	cfg.Paths.StorageDir = filepath.Join(dir, "storage")
	cfg.Store.Backend = "JSON"
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "sk-test"
	cfg.Detection.SimilarityThreshold = 0.9
	cfg.Logging.Format = "JSON"

	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected explicit config to be used, got %q exists=%v", resolved, exists)
	}
	if loaded.Store.Backend != config.StoreBackendJSON {
		t.Fatalf("expected backend normalized to json, got %q", loaded.Store.Backend)
	}
	if loaded.LLM.Model != "gpt-4o" {
		t.Fatalf("expected openai default model, got %q", loaded.LLM.Model)
	}
	if loaded.Detection.SimilarityThreshold != 0.9 {
		t.Fatalf("unexpected threshold: %v", loaded.Detection.SimilarityThreshold)
	}
	if loaded.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", loaded.Logging.Format)
	}
}

func TestValidateRejectsOutOfRangeDetection(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"threshold above one", func(c *config.Config) { c.Detection.SimilarityThreshold = 1.5 }, "similarity_threshold"},
		{"threshold negative", func(c *config.Config) { c.Detection.SimilarityThreshold = -0.1 }, "similarity_threshold"},
		{"threshold not a number", func(c *config.Config) { c.Detection.SimilarityThreshold = math.NaN() }, "similarity_threshold"},
		{"ratio not a number", func(c *config.Config) { c.Detection.InfoChangeRatio = math.NaN() }, "info_change_ratio"},
		{"ratio not above one", func(c *config.Config) { c.Detection.InfoChangeRatio = 1 }, "info_change_ratio"},
		{"interval too small", func(c *config.Config) { c.Detection.FrameIntervalSec = 0.01 }, "frame_interval_sec"},
		{"negative padding", func(c *config.Config) { c.Alignment.PaddingSec = -1 }, "padding_sec"},
		{"unknown provider", func(c *config.Config) { c.LLM.Provider = "llamafile" }, "llm.provider"},
		{"unknown backend", func(c *config.Config) { c.Store.Backend = "postgres" }, "store.backend"},
		{"drive without credentials", func(c *config.Config) { c.Drive.Enabled = true }, "drive.credentials_file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validDefault()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

// validDefault is Default with the provider base URL that Load would fill in.
func validDefault() config.Config {
	cfg := config.Default()
	cfg.LLM.BaseURL = "https://integrate.api.nvidia.com/v1"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validDefault()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}

func TestValidateAcceptsBoundaryThresholds(t *testing.T) {
	for _, threshold := range []float64{0, 1} {
		cfg := validDefault()
		cfg.Detection.SimilarityThreshold = threshold
		if err := cfg.Validate(); err != nil {
			t.Fatalf("threshold %v rejected: %v", threshold, err)
		}
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if len(cfg.API.CORSOrigins) != 3 {
		t.Fatalf("expected three cors origins, got %v", cfg.API.CORSOrigins)
	}
}
