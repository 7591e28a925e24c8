package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"lecturenote/internal/services"
	"lecturenote/internal/stage"
)

// Command is the default yt-dlp executable name.
const Command = "yt-dlp"

// outputStem is the file name (without extension) downloads are written to.
const outputStem = "source"

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Fetcher downloads a single video per call.
type Fetcher struct {
	binary string
	runner CommandRunner
}

// NewFetcher returns a fetcher using the given yt-dlp executable.
func NewFetcher(binary string) *Fetcher {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = Command
	}
	return &Fetcher{binary: binary}
}

// WithCommandRunner replaces the yt-dlp invocation (for testing).
func (f *Fetcher) WithCommandRunner(runner CommandRunner) {
	f.runner = runner
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return services.Wrap(services.ErrValidation, "fetch", "parse url", "invalid video url", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return services.Wrap(services.ErrValidation, "fetch", "parse url", fmt.Sprintf("unsupported scheme %q", parsed.Scheme), nil)
	}
	if parsed.Host == "" {
		return services.Wrap(services.ErrValidation, "fetch", "parse url", "url has no host", nil)
	}
	return nil
}

// Fetch downloads videoURL into destDir and returns the merged file path.
func (f *Fetcher) Fetch(ctx context.Context, videoURL, destDir string) (string, error) {
	if err := ValidateURL(videoURL); err != nil {
		return "", err
	}
	if strings.TrimSpace(destDir) == "" {
		return "", errors.New("fetch: output directory is required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("fetch: ensure dir: %w", err)
	}
	if err := f.run(ctx, buildArgs(videoURL, destDir)...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "fetch", "yt-dlp", "download failed", err)
	}
	path, err := locateOutput(destDir)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "fetch", "yt-dlp", "download produced no file", err)
	}
	return path, nil
}

func buildArgs(videoURL, destDir string) []string {
	return []string{
		"--no-playlist",
		"--quiet",
		"--no-progress",
		"-f", "bv*+ba/b",
		"--merge-output-format", "mp4",
		"-o", filepath.Join(destDir, outputStem+".%(ext)s"),
		videoURL,
	}
}

// locateOutput picks the merged download, ignoring yt-dlp's partial and
// per-format leftovers.
func locateOutput(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, outputStem+".*"))
	if err != nil {
		return "", err
	}
	candidates := make([]string, 0, len(matches))
	for _, match := range matches {
		base := filepath.Base(match)
		if strings.HasSuffix(base, ".part") || strings.HasSuffix(base, ".ytdl") {
			continue
		}
		if strings.Count(base, ".") > 1 {
			continue
		}
		candidates = append(candidates, match)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no %s.* file in %s", outputStem, dir)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return preferMP4(candidates[i]) && !preferMP4(candidates[j])
	})
	return candidates[0], nil
}

func preferMP4(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp4")
}

func (f *Fetcher) run(ctx context.Context, args ...string) error {
	if f.runner != nil {
		return f.runner(ctx, f.binary, args...)
	}
	cmd := exec.CommandContext(ctx, f.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w: %s", f.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// HealthCheck reports whether the yt-dlp executable can be found.
func (f *Fetcher) HealthCheck(context.Context) stage.Health {
	if f == nil {
		return stage.Unhealthy("fetcher", "not configured")
	}
	if _, err := exec.LookPath(f.binary); err != nil {
		return stage.Unhealthy("fetcher", fmt.Sprintf("%s not found on PATH", f.binary))
	}
	return stage.Healthy("fetcher")
}
