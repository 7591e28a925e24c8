package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"lecturenote/internal/logging"
	"lecturenote/internal/media/audio"
	"lecturenote/internal/media/ffprobe"
	"lecturenote/internal/services"
	"lecturenote/internal/stage"
	"lecturenote/internal/tasks"
	"lecturenote/internal/transcript"
)

// Transcriber isolates and transcribes audio.
type Transcriber interface {
	ExtractAudio(ctx context.Context, source string, audioIndex int, dest string) error
	TranscribeFile(ctx context.Context, source, outputDir string) (transcript.Transcript, error)
}

// Input describes one audio run. Streams come from a prior ffprobe of the video.
type Input struct {
	TaskID    string
	VideoPath string
	Streams   []ffprobe.Stream
}

// Phase transcribes lecture audio.
type Phase struct {
	transcriber Transcriber
	language    string
	workDir     string
	logger      *slog.Logger
}

// NewPhase builds an audio phase. A nil transcriber makes every run return an
// empty transcript.
func NewPhase(transcriber Transcriber, language, workDir string, logger *slog.Logger) *Phase {
	return &Phase{
		transcriber: transcriber,
		language:    language,
		workDir:     workDir,
		logger:      logging.NewComponentLogger(logger, "speech"),
	}
}

// Available reports whether a transcription provider is configured.
func (p *Phase) Available() bool {
	return p.transcriber != nil
}

// Run selects, isolates and transcribes the audio track.
func (p *Phase) Run(ctx context.Context, in Input, progress tasks.ProgressFunc) (transcript.Transcript, error) {
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()
	report := func(v float64) {
		if progress != nil {
			progress(v)
		}
	}

	if p.transcriber == nil {
		logging.WarnWithContext(logger, "transcription provider unavailable; continuing with empty transcript", "transcriber_unavailable",
			logging.String(logging.FieldErrorHint, "install uv (uvx) to enable WhisperX transcription"),
			logging.String(logging.FieldImpact, "notes are generated from slide text only"),
		)
		report(1)
		return transcript.New(nil, ""), nil
	}

	selection := audio.Select(in.Streams, p.language)
	if !selection.Found() {
		logger.Info("no audio stream; continuing with empty transcript",
			logging.String(logging.FieldEventType, "audio_missing"),
		)
		report(1)
		return transcript.New(nil, ""), nil
	}

	logger.Info("phase started",
		logging.String(logging.FieldEventType, "phase_started"),
		logging.Int("audio_stream", selection.Index),
		logging.String("audio_label", selection.Label()),
		logging.String("selection_reason", selection.Reason),
	)

	dir := filepath.Join(p.workDir, in.TaskID, "audio")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return transcript.Transcript{}, fmt.Errorf("speech: ensure work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	wav := filepath.Join(dir, "audio.wav")
	if err := p.transcriber.ExtractAudio(ctx, in.VideoPath, selection.Index, wav); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transcript.Transcript{}, ctxErr
		}
		return transcript.Transcript{}, services.Wrap(services.ErrExternalTool, "audio", "isolate", "", err)
	}
	report(0.2)

	result, err := p.transcriber.TranscribeFile(ctx, wav, dir)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transcript.Transcript{}, ctxErr
		}
		return transcript.Transcript{}, services.Wrap(services.ErrExternalTool, "audio", "transcribe", "", err)
	}
	report(1)
	logger.Info("phase completed",
		logging.String(logging.FieldEventType, "phase_completed"),
		logging.Int("spans", len(result.Spans)),
		logging.String("language", result.Language),
		logging.Float64("duration_sec", result.DurationSec),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// HealthCheck reports whether transcription will run or be skipped.
func (p *Phase) HealthCheck(context.Context) stage.Health {
	if p == nil || p.transcriber == nil {
		return stage.Unhealthy("audio", "transcription provider unavailable; transcripts will be empty")
	}
	return stage.Healthy("audio")
}
