package vision

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"lecturenote/internal/blobstore"
	"lecturenote/internal/boundary"
	"lecturenote/internal/logging"
	"lecturenote/internal/tasks"
)

// Sampler extracts frames from a video at a fixed interval.
type Sampler interface {
	Sample(ctx context.Context, video, dir string, interval float64) ([]boundary.Frame, error)
}

// ObjectWriter stores slide images.
type ObjectWriter interface {
	PutBytes(ctx context.Context, key string, data []byte) error
}

// Input describes one vision run.
type Input struct {
	TaskID      string
	VideoPath   string
	DurationSec float64
	Options     tasks.Options
}

// Phase wires the sampler, detector and text extractor together.
type Phase struct {
	sampler   Sampler
	extractor TextExtractor
	objects   ObjectWriter
	detection boundary.Options
	interval  float64
	workDir   string
	logger    *slog.Logger
}

// Config holds the defaults a Phase applies when a run does not override them.
type Config struct {
	Detection        boundary.Options
	FrameIntervalSec float64
	WorkDir          string
}

// NewPhase builds a vision phase.
func NewPhase(cfg Config, sampler Sampler, extractor TextExtractor, objects ObjectWriter, logger *slog.Logger) *Phase {
	if cfg.FrameIntervalSec <= 0 {
		cfg.FrameIntervalSec = 1
	}
	return &Phase{
		sampler:   sampler,
		extractor: extractor,
		objects:   objects,
		detection: cfg.Detection,
		interval:  cfg.FrameIntervalSec,
		workDir:   cfg.WorkDir,
		logger:    logging.NewComponentLogger(logger, "vision"),
	}
}

// Run samples, detects and extracts. Progress is reported as sampling (10%),
// detection (30%) and then per extracted slide.
func (p *Phase) Run(ctx context.Context, in Input, progress tasks.ProgressFunc) (tasks.VisionResult, error) {
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()
	report := func(v float64) {
		if progress != nil {
			progress(v)
		}
	}

	interval := p.interval
	if in.Options.FrameIntervalSec > 0 {
		interval = in.Options.FrameIntervalSec
	}
	detection := p.detection
	if in.Options.SimilarityThreshold > 0 {
		detection.SimilarityThreshold = in.Options.SimilarityThreshold
	}
	detector, err := boundary.NewDetector(detection, p.logger)
	if err != nil {
		return tasks.VisionResult{}, fmt.Errorf("vision: %w", err)
	}

	logger.Info("phase started",
		logging.String(logging.FieldEventType, "phase_started"),
		logging.Float64("frame_interval_sec", interval),
		logging.Float64("similarity_threshold", detection.SimilarityThreshold),
	)

	frameDir := filepath.Join(p.workDir, in.TaskID, "frames")
	if err := os.RemoveAll(frameDir); err != nil {
		return tasks.VisionResult{}, fmt.Errorf("vision: reset frame dir: %w", err)
	}
	defer os.RemoveAll(frameDir)

	frames, err := p.sampler.Sample(ctx, in.VideoPath, frameDir, interval)
	if err != nil {
		return tasks.VisionResult{}, err
	}
	report(0.1)

	var duration *float64
	if in.DurationSec > 0 {
		d := in.DurationSec
		duration = &d
	}
	intervals, err := detector.Detect(ctx, frames, duration)
	if err != nil {
		return tasks.VisionResult{}, err
	}
	report(0.3)
	logger.Info("slides detected",
		logging.String(logging.FieldEventType, "slides_detected"),
		logging.Int("frames", len(frames)),
		logging.Int("slides", len(intervals)),
	)

	slides := make([]tasks.SlideRecord, 0, len(intervals))
	for i, iv := range intervals {
		if err := ctx.Err(); err != nil {
			return tasks.VisionResult{}, err
		}
		image, err := frameBytes(iv.Frame)
		if err != nil {
			return tasks.VisionResult{}, fmt.Errorf("vision: slide %d frame: %w", iv.SlideNumber, err)
		}
		key := blobstore.SlideImageKey(in.TaskID, iv.SlideNumber)
		if err := p.objects.PutBytes(ctx, key, image); err != nil {
			return tasks.VisionResult{}, fmt.Errorf("vision: store slide %d: %w", iv.SlideNumber, err)
		}
		extraction, err := p.extractor.ExtractText(ctx, image)
		if err != nil {
			return tasks.VisionResult{}, err
		}
		slides = append(slides, tasks.SlideRecord{
			SlideNumber:     iv.SlideNumber,
			Lineage:         iv.Lineage,
			StartSec:        iv.StartSec,
			EndSec:          iv.EndSec,
			FrameSec:        iv.Frame.Timestamp,
			ImageKey:        key,
			Content:         extraction.Markdown,
			LaTeX:           extraction.LaTeX,
			TransitionScore: iv.TransitionScore,
			Reveal:          iv.Reveal,
		})
		report(0.3 + 0.7*float64(i+1)/float64(len(intervals)))
	}

	result := tasks.VisionResult{
		FrameIntervalSec: interval,
		FrameCount:       len(frames),
		DurationSec:      in.DurationSec,
		Slides:           slides,
	}
	report(1)
	logger.Info("phase completed",
		logging.String(logging.FieldEventType, "phase_completed"),
		logging.Int("slides", len(slides)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func frameBytes(frame boundary.Frame) ([]byte, error) {
	if frame.Path != "" {
		return os.ReadFile(frame.Path)
	}
	img, err := frame.Load()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
