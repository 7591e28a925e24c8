package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	langpkg "lecturenote/internal/language"
	"lecturenote/internal/transcript"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	commandRunner CommandRunner
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.UVXBinary == "" {
		cfg.UVXBinary = UVXCommand
	}
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = FFmpegCommand
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

// UVXBinary returns the launcher executable.
func (s *Service) UVXBinary() string {
	return s.cfg.UVXBinary
}

// ExtractAudio writes the chosen audio stream of source to dest as WAV.
func (s *Service) ExtractAudio(ctx context.Context, source string, audioIndex int, dest string) error {
	args, err := extractArgs(source, audioIndex, dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("extract audio: ensure dir: %w", err)
	}
	if err := s.run(ctx, s.cfg.FFmpegBinary, args...); err != nil {
		return fmt.Errorf("ffmpeg extract: %w", err)
	}
	return nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// TranscribeFile transcribes a WAV file and returns the parsed transcript.
// outputDir receives WhisperX's JSON output; it defaults to the source's directory.
func (s *Service) TranscribeFile(ctx context.Context, source, outputDir string) (transcript.Transcript, error) {
	if source == "" {
		return transcript.Transcript{}, fmt.Errorf("transcribe: source path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return transcript.Transcript{}, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	if err := s.run(ctx, s.cfg.UVXBinary, s.buildArgs(source, outputDir)...); err != nil {
		return transcript.Transcript{}, fmt.Errorf("whisperx: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	payload, err := LoadPayload(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return transcript.Transcript{}, err
	}
	language := payload.Language
	if language == "" {
		language = s.cfg.Language
	}
	return transcript.New(payload.Spans(), langpkg.ToISO2(language)), nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 32)
	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.cfg.Model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Payload is the JSON document WhisperX writes.
type Payload struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Spans converts the segments to transcript spans.
func (p Payload) Spans() []transcript.Span {
	spans := make([]transcript.Span, 0, len(p.Segments))
	for _, seg := range p.Segments {
		spans = append(spans, transcript.Span{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return spans
}

// LoadPayload reads a WhisperX JSON output file.
func LoadPayload(jsonPath string) (Payload, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Payload{}, fmt.Errorf("read whisperx json: %w", err)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload, nil
}
