package boundary

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"lecturenote/internal/logging"
)

// Options tunes a detection pass.
type Options struct {
	// SimilarityThreshold is the SSIM below which a new slide starts (0..1).
	SimilarityThreshold float64
	// InfoChangeRatio is how far a peak's edge count must exceed the slide's
	// baseline to be recorded as a reveal (> 1).
	InfoChangeRatio float64
	// AnalysisWidth downscales wider frames before comparison; 0 disables.
	AnalysisWidth int
	// PeakMergeWindow merges peaks closer than this many seconds, keeping the first.
	PeakMergeWindow float64
}

// DefaultOptions returns the standard detection settings.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: 0.85,
		InfoChangeRatio:     1.2,
		AnalysisWidth:       640,
		PeakMergeWindow:     1.0,
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.SimilarityThreshold < 0 || o.SimilarityThreshold > 1 || math.IsNaN(o.SimilarityThreshold) {
		return fmt.Errorf("similarity threshold must be between 0 and 1, got %v", o.SimilarityThreshold)
	}
	if !(o.InfoChangeRatio > 1) {
		return fmt.Errorf("info change ratio must be greater than 1, got %v", o.InfoChangeRatio)
	}
	if o.AnalysisWidth < 0 {
		return errors.New("analysis width must not be negative")
	}
	if o.PeakMergeWindow < 0 {
		return errors.New("peak merge window must not be negative")
	}
	return nil
}

// Detector runs boundary detection passes. It holds no per-pass state and is
// safe for concurrent use.
type Detector struct {
	opts   Options
	logger *slog.Logger
}

// NewDetector validates opts and returns a detector.
func NewDetector(opts Options, logger *slog.Logger) (*Detector, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Detector{opts: opts, logger: logging.NewComponentLogger(logger, "boundary")}, nil
}

// Options returns the detector's settings.
func (d *Detector) Options() Options {
	return d.opts
}

type sample struct {
	frame Frame
	gray  *image.Gray
	edges int
}

type openInterval struct {
	lineage  int
	reveal   bool
	start    float64
	score    *float64
	ref      *image.Gray
	baseline int
	best     sample
}

func (o *openInterval) consider(s sample) {
	if s.edges > o.best.edges {
		o.best = s
	}
}

// Detect partitions frames into slide intervals. frames must be ordered by
// ordinal; a frame whose timestamp goes backwards is skipped like an
// undecodable one. When duration is non-nil and exceeds the last interval's
// end, the last interval is stretched to it. The only error returned is the
// context's.
func (d *Detector) Detect(ctx context.Context, frames []Frame, duration *float64) ([]SlideInterval, error) {
	logger := logging.WithContext(ctx, d.logger)
	var (
		intervals []SlideInterval
		current   *openInterval
		prev      sample
		tracker   PeakTracker
		lineage   int
		lastPeak  = math.Inf(-1)
		skipped   int
	)

	closeCurrent := func(end float64) {
		intervals = append(intervals, SlideInterval{
			SlideNumber:     len(intervals) + 1,
			Lineage:         current.lineage,
			StartSec:        current.start,
			EndSec:          end,
			Frame:           current.best.frame,
			TransitionScore: current.score,
			Reveal:          current.reveal,
		})
	}
	open := func(s sample, start float64, score *float64, reveal bool) {
		current = &openInterval{
			lineage:  lineage,
			reveal:   reveal,
			start:    start,
			score:    score,
			ref:      s.gray,
			baseline: s.edges,
			best:     s,
		}
		tracker.Reset(s.edges)
	}

	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := frame.Load()
		if err != nil {
			skipped++
			logging.WarnWithContext(logger, "frame skipped", "frame_decode_failed",
				logging.Int("ordinal", frame.Ordinal),
				logging.Float64("timestamp_sec", frame.Timestamp),
				logging.Error(err),
				logging.String(logging.FieldImpact, "slide boundaries near this timestamp rely on neighbouring frames"),
				logging.String(logging.FieldErrorHint, "inspect the sampled frame file"),
			)
			continue
		}
		if current != nil && frame.Timestamp < prev.frame.Timestamp {
			skipped++
			logging.WarnWithContext(logger, "frame skipped", "frame_out_of_order",
				logging.Int("ordinal", frame.Ordinal),
				logging.Float64("timestamp_sec", frame.Timestamp),
				logging.Float64("previous_sec", prev.frame.Timestamp),
			)
			continue
		}

		gray := toGray(img, d.opts.AnalysisWidth)
		s := sample{frame: frame, gray: gray, edges: EdgeCount(gray)}
		if s.frame.Path != "" {
			s.frame.Image = nil
		}

		if current == nil {
			lineage = 1
			open(s, 0, nil, false)
			prev = s
			continue
		}

		compare := gray
		if !sameSize(current.ref, gray) {
			compare = resizeGray(gray, current.ref.Bounds().Dx(), current.ref.Bounds().Dy())
		}
		score := SSIM(current.ref, compare)

		if score < d.opts.SimilarityThreshold {
			closeCurrent(prev.frame.Timestamp)
			lineage++
			open(s, frame.Timestamp, &score, false)
			prev = s
			continue
		}

		if tracker.Observe(s.edges) && d.acceptPeak(prev, current, lastPeak) {
			lastPeak = prev.frame.Timestamp
			closeCurrent(prev.frame.Timestamp)
			open(s, frame.Timestamp, nil, true)
			logger.Debug("reveal boundary recorded",
				logging.Float64("peak_sec", prev.frame.Timestamp),
				logging.Int("peak_edges", prev.edges),
				logging.Int("lineage", lineage),
			)
			prev = s
			continue
		}
		current.consider(s)
		prev = s
	}

	if current != nil {
		closeCurrent(prev.frame.Timestamp)
	}
	if len(intervals) > 0 && duration != nil {
		last := &intervals[len(intervals)-1]
		if *duration > last.EndSec {
			last.EndSec = *duration
		}
	}

	logger.Debug("boundary detection finished",
		logging.Int("frames", len(frames)),
		logging.Int("skipped", skipped),
		logging.Int("intervals", len(intervals)),
	)
	return intervals, nil
}

// acceptPeak applies the information-change ratio and the merge window to a
// peak at frame peak inside the open interval.
func (d *Detector) acceptPeak(peak sample, current *openInterval, lastPeak float64) bool {
	if float64(peak.edges) < d.opts.InfoChangeRatio*float64(current.baseline) {
		return false
	}
	if peak.frame.Timestamp-lastPeak < d.opts.PeakMergeWindow {
		return false
	}
	return peak.frame.Timestamp >= current.start
}
