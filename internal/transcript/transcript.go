// Package transcript holds the timestamped speech spans produced by the audio
// phase and consumed by the segment aligner.
package transcript

import (
	"sort"
	"strings"
)

// Span is one timestamped piece of recognised speech.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the full result of transcribing a lecture's audio track.
// An empty Spans slice is a valid transcript (silent video or no provider).
type Transcript struct {
	Text        string  `json:"text"`
	Language    string  `json:"language,omitempty"`
	DurationSec float64 `json:"duration_sec"`
	Spans       []Span  `json:"spans"`
}

// New builds a transcript from spans, deriving the aggregate text and the
// duration (end of the last span). Spans with blank text are dropped and the
// remainder is ordered by start time; equal starts keep their input order.
func New(spans []Span, language string) Transcript {
	kept := make([]Span, 0, len(spans))
	for _, span := range spans {
		text := strings.TrimSpace(span.Text)
		if text == "" {
			continue
		}
		if span.End < span.Start {
			span.End = span.Start
		}
		span.Text = text
		kept = append(kept, span)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })

	texts := make([]string, 0, len(kept))
	var duration float64
	for _, span := range kept {
		texts = append(texts, span.Text)
		if span.End > duration {
			duration = span.End
		}
	}
	return Transcript{
		Text:        strings.Join(texts, " "),
		Language:    strings.TrimSpace(language),
		DurationSec: duration,
		Spans:       kept,
	}
}

// Empty reports whether the transcript carries no speech.
func (t Transcript) Empty() bool {
	return len(t.Spans) == 0
}
