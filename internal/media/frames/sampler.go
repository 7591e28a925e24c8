package frames

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"lecturenote/internal/boundary"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Pattern is the file name template ffmpeg writes sampled frames with.
const Pattern = "frame_%06d.jpg"

// Sampler extracts frames with ffmpeg.
type Sampler struct {
	binary string
	runner CommandRunner
}

// NewSampler returns a sampler using the given ffmpeg executable.
func NewSampler(binary string) *Sampler {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Sampler{binary: binary}
}

// WithCommandRunner replaces the ffmpeg invocation (for testing).
func (s *Sampler) WithCommandRunner(runner CommandRunner) {
	s.runner = runner
}

// Sample writes one JPEG per interval seconds of video into dir and returns
// the frames ordered by ordinal. Frame i is stamped i*interval seconds.
func (s *Sampler) Sample(ctx context.Context, video, dir string, interval float64) ([]boundary.Frame, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sample frames: interval must be positive, got %v", interval)
	}
	if strings.TrimSpace(video) == "" {
		return nil, errors.New("sample frames: video path required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sample frames: ensure dir: %w", err)
	}
	if err := s.run(ctx, buildArgs(video, dir, interval)...); err != nil {
		return nil, fmt.Errorf("sample frames: %w", err)
	}
	return Collect(dir, interval)
}

// Collect lists previously sampled frames in dir.
func Collect(dir string, interval float64) ([]boundary.Frame, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	sort.Strings(paths)
	frames := make([]boundary.Frame, 0, len(paths))
	for i, path := range paths {
		frames = append(frames, boundary.Frame{
			Ordinal:   i,
			Timestamp: float64(i) * interval,
			Path:      path,
		})
	}
	return frames, nil
}

func buildArgs(video, dir string, interval float64) []string {
	rate := strconv.FormatFloat(1/interval, 'f', -1, 64)
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", video,
		"-vf", "fps=" + rate,
		"-q:v", "3",
		filepath.Join(dir, Pattern),
	}
}

func (s *Sampler) run(ctx context.Context, args ...string) error {
	if s.runner != nil {
		return s.runner(ctx, s.binary, args...)
	}
	cmd := exec.CommandContext(ctx, s.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w: %s", s.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}
