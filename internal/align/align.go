package align

import (
	"fmt"
	"math"
	"strings"

	"lecturenote/internal/services"
	"lecturenote/internal/transcript"
)

// DefaultPaddingSec is the symmetric padding applied when none is configured.
const DefaultPaddingSec = 5.0

// ErrLengthMismatch reports that intervals and slide texts are not paired 1:1.
var ErrLengthMismatch = fmt.Errorf("%w: interval and slide text counts differ", services.ErrContract)

// Interval is the slice of a detected slide the aligner needs.
type Interval struct {
	SlideNumber int     `json:"slide_number"`
	StartSec    float64 `json:"start_sec"`
	EndSec      float64 `json:"end_sec"`
}

// Segment is one slide joined with the speech around it.
type Segment struct {
	SlideNumber         int     `json:"slide_number"`
	StartSec            float64 `json:"start_sec"`
	EndSec              float64 `json:"end_sec"`
	SlideContent        string  `json:"slide_content"`
	SpokenText          string  `json:"spoken_text"`
	EscalationRequested bool    `json:"escalation_requested"`
}

// Options tunes alignment.
type Options struct {
	PaddingSec float64
}

// DefaultOptions returns the standard alignment settings.
func DefaultOptions() Options {
	return Options{PaddingSec: DefaultPaddingSec}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.PaddingSec < 0 || math.IsNaN(o.PaddingSec) || math.IsInf(o.PaddingSec, 0) {
		return fmt.Errorf("%w: padding must be a non-negative number, got %v", services.ErrValidation, o.PaddingSec)
	}
	return nil
}

// Window returns the padded bounds of an interval.
func (o Options) Window(iv Interval) (float64, float64) {
	return max(iv.StartSec-o.PaddingSec, 0), iv.EndSec + o.PaddingSec
}

// Overlaps reports whether span strictly overlaps [start, end).
func Overlaps(span transcript.Span, start, end float64) bool {
	return span.Start < end && span.End > start
}

// Align pairs intervals[i] with slideTexts[i] and gathers the transcript
// spans that overlap each padded interval, preserving transcript order.
// The output is index-paired with intervals. A length mismatch returns
// ErrLengthMismatch rather than truncating.
func Align(intervals []Interval, slideTexts []string, spans []transcript.Span, help []float64, opts Options) ([]Segment, error) {
	if len(intervals) != len(slideTexts) {
		return nil, fmt.Errorf("%w (%d intervals, %d texts)", ErrLengthMismatch, len(intervals), len(slideTexts))
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	segments := make([]Segment, 0, len(intervals))
	for i, iv := range intervals {
		if iv.EndSec < iv.StartSec {
			return nil, fmt.Errorf("%w: slide %d ends before it starts", services.ErrContract, iv.SlideNumber)
		}
		start, end := opts.Window(iv)

		var parts []string
		for _, span := range spans {
			if !Overlaps(span, start, end) {
				continue
			}
			parts = append(parts, span.Text)
		}

		segments = append(segments, Segment{
			SlideNumber:         iv.SlideNumber,
			StartSec:            iv.StartSec,
			EndSec:              iv.EndSec,
			SlideContent:        slideTexts[i],
			SpokenText:          strings.Join(parts, " "),
			EscalationRequested: escalated(help, start, end),
		})
	}
	return segments, nil
}

func escalated(help []float64, start, end float64) bool {
	for _, ts := range help {
		if ts >= start && ts <= end {
			return true
		}
	}
	return false
}
