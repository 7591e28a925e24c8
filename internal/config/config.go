package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StorageDir string `toml:"storage_dir"`
	LogDir     string `toml:"log_dir"`
	InboxDir   string `toml:"inbox_dir"`
	APIBind    string `toml:"api_bind"`
	BaseURL    string `toml:"base_url"`
}

// Store selects the durable task store backend.
type Store struct {
	Backend string `toml:"backend"`
}

// Detection contains slide boundary detection parameters.
type Detection struct {
	FrameIntervalSec    float64 `toml:"frame_interval_sec"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	InfoChangeRatio     float64 `toml:"info_change_ratio"`
	AnalysisWidth       int     `toml:"analysis_width"`
}

// Alignment contains transcript alignment parameters.
type Alignment struct {
	PaddingSec float64 `toml:"padding_sec"`
}

// LLM contains the language model provider used for slide text extraction and
// note synthesis.
type LLM struct {
	Provider       string  `toml:"provider"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	VisionModel    string  `toml:"vision_model"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
}

// Transcription contains WhisperX settings for the audio phase.
type Transcription struct {
	Model       string `toml:"model"`
	Language    string `toml:"language"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
}

// Notes contains note rendering options.
type Notes struct {
	DocxEnabled  bool   `toml:"docx_enabled"`
	DefaultTitle string `toml:"default_title"`
}

// Drive contains the optional Google Drive export settings.
type Drive struct {
	Enabled         bool   `toml:"enabled"`
	CredentialsFile string `toml:"credentials_file"`
	TokenFile       string `toml:"token_file"`
	FolderName      string `toml:"folder_name"`
}

// Events contains the optional Redis task event publisher and ntfy push
// notification settings.
type Events struct {
	RedisEnabled  bool   `toml:"redis_enabled"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Channel       string `toml:"channel"`
	SnapshotTTL   int    `toml:"snapshot_ttl_seconds"`
	NtfyTopic     string `toml:"ntfy_topic"`
	NtfyTimeout   int    `toml:"ntfy_timeout_seconds"`
}

// Ingest contains inbox watcher settings.
type Ingest struct {
	WatchEnabled bool `toml:"watch_enabled"`
	AutoProcess  bool `toml:"auto_process"`
}

// API contains HTTP server settings.
type API struct {
	CORSOrigins      []string `toml:"cors_origins"`
	URLExpirySeconds int      `toml:"url_expiry_seconds"`
	BodyLimitMB      int      `toml:"body_limit_mb"`
	SigningKey       string   `toml:"signing_key"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string `toml:"format"`
	Level          string `toml:"level"`
	StreamCapacity int    `toml:"stream_capacity"`
}

// Config encapsulates all configuration values for LectureNote.
//
// Configuration sections by subsystem:
//   - Paths: storage, logs, inbox, API bind address and public base URL
//   - Store: task store backend (sqlite or json)
//   - Detection / Alignment: slide boundary and transcript alignment tuning
//   - LLM: provider for slide text extraction and note synthesis
//   - Transcription: WhisperX model and runtime flags
//   - Notes / Drive: output formats and optional Google Drive export
//   - Events / Ingest / API: task event fan-out, inbox watcher, HTTP server
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Detection     Detection     `toml:"detection"`
	Alignment     Alignment     `toml:"alignment"`
	LLM           LLM           `toml:"llm"`
	Transcription Transcription `toml:"transcription"`
	Notes         Notes         `toml:"notes"`
	Drive         Drive         `toml:"drive"`
	Events        Events        `toml:"events"`
	Ingest        Ingest        `toml:"ingest"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lecturenote/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("lecturenote.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StorageDir, c.Paths.LogDir}
	if c.Ingest.WatchEnabled && c.Paths.InboxDir != "" {
		dirs = append(dirs, c.Paths.InboxDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TaskStorePath returns the SQLite database location for the sqlite backend.
func (c *Config) TaskStorePath() string {
	return filepath.Join(c.Paths.StorageDir, "tasks.db")
}

// TaskRecordDir returns the directory holding one JSON file per task for the json backend.
func (c *Config) TaskRecordDir() string {
	return filepath.Join(c.Paths.StorageDir, "tasks")
}

// ObjectDir returns the root of the local object store (videos, slides, outputs).
func (c *Config) ObjectDir() string {
	return filepath.Join(c.Paths.StorageDir, "objects")
}

// WorkDir returns the scratch directory used while analysing a task.
func (c *Config) WorkDir() string {
	return filepath.Join(c.Paths.StorageDir, "work")
}

// LockPath returns the single-writer lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "lecturenote.lock")
}

// PIDPath returns the file the running daemon records its process id in.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "lecturenote.pid")
}

// FFmpegBinary returns the ffmpeg executable name used for sampling and audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// YTDLPBinary returns the yt-dlp executable name used for remote fetches.
func (c *Config) YTDLPBinary() string {
	return "yt-dlp"
}

// UVXBinary returns the uvx launcher used to run WhisperX.
func (c *Config) UVXBinary() string {
	return "uvx"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
