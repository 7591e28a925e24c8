package tasks

import (
	"strings"
	"time"

	"lecturenote/internal/align"
	"lecturenote/internal/transcript"
)

// ProgressFunc receives a phase's completion fraction in [0,1].
type ProgressFunc func(float64)

// Options overrides detection settings for one processing run. Zero values
// fall back to configuration.
type Options struct {
	FrameIntervalSec    float64 `json:"frame_interval_sec,omitempty"`
	SimilarityThreshold float64 `json:"ssim_threshold,omitempty"`
}

// Request is what a caller asked for when starting analysis.
type Request struct {
	Options        Options   `json:"options"`
	HelpTimestamps []float64 `json:"help_timestamps,omitempty"`
}

// SlideRecord is one detected slide with its extracted text.
type SlideRecord struct {
	SlideNumber     int      `json:"slide_number"`
	Lineage         int      `json:"lineage"`
	StartSec        float64  `json:"start_sec"`
	EndSec          float64  `json:"end_sec"`
	FrameSec        float64  `json:"frame_sec"`
	ImageKey        string   `json:"image_key"`
	Content         string   `json:"content"`
	LaTeX           []string `json:"latex,omitempty"`
	TransitionScore *float64 `json:"transition_score,omitempty"`
	Reveal          bool     `json:"reveal,omitempty"`
}

// VisionResult is the output of the vision phase.
type VisionResult struct {
	FrameIntervalSec float64       `json:"frame_interval_sec"`
	FrameCount       int           `json:"frame_count"`
	DurationSec      float64       `json:"duration_sec"`
	Slides           []SlideRecord `json:"slides"`
}

// Intervals returns the slides in aligner form.
func (v VisionResult) Intervals() []align.Interval {
	out := make([]align.Interval, len(v.Slides))
	for i, slide := range v.Slides {
		out[i] = align.Interval{SlideNumber: slide.SlideNumber, StartSec: slide.StartSec, EndSec: slide.EndSec}
	}
	return out
}

// Texts returns the extracted text of each slide, index-paired with Intervals.
func (v VisionResult) Texts() []string {
	out := make([]string, len(v.Slides))
	for i, slide := range v.Slides {
		out[i] = slide.Content
	}
	return out
}

// Analysis is the durable checkpoint written once both phases succeed.
type Analysis struct {
	Request     Request               `json:"request"`
	Vision      VisionResult          `json:"vision"`
	Audio       transcript.Transcript `json:"audio"`
	CompletedAt time.Time             `json:"completed_at"`
}

// SlideNote is the generated content for one slide.
type SlideNote struct {
	SlideNumber  int     `json:"slide_number"`
	StartSec     float64 `json:"start_sec"`
	EndSec       float64 `json:"end_sec"`
	ImageKey     string  `json:"image_key"`
	SlideContent string  `json:"slide_content"`
	SpokenText   string  `json:"spoken_text"`
	Summary      string  `json:"summary"`
	Explanation  string  `json:"explanation,omitempty"`
	Escalated    bool    `json:"escalated,omitempty"`
}

// NoteResult is the synthesized note and where its outputs were written.
type NoteResult struct {
	Title       string      `json:"title"`
	MarkdownKey string      `json:"markdown_key"`
	DocxKey     string      `json:"docx_key,omitempty"`
	DriveLink   string      `json:"drive_link,omitempty"`
	Model       string      `json:"model,omitempty"`
	Slides      []SlideNote `json:"slides"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// SourceKind identifies how the video entered the system.
type SourceKind string

const (
	SourceUpload SourceKind = "upload"
	SourceRemote SourceKind = "remote"
	SourceInbox  SourceKind = "inbox"
)

// Source describes the video behind a task.
type Source struct {
	Kind        SourceKind `json:"kind"`
	VideoKey    string     `json:"video_key"`
	Filename    string     `json:"filename,omitempty"`
	URL         string     `json:"url,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	SizeBytes   int64      `json:"size_bytes,omitempty"`
}

// DisplayName returns the best human label for the source.
func (s Source) DisplayName() string {
	if name := strings.TrimSpace(s.Filename); name != "" {
		return name
	}
	if s.URL != "" {
		return s.URL
	}
	return s.VideoKey
}
