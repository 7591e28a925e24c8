package audio

import (
	"strconv"
	"strings"

	"lecturenote/internal/language"
	"lecturenote/internal/media/ffprobe"
)

// Selection describes the audio stream chosen for transcription.
type Selection struct {
	Stream ffprobe.Stream
	// Index is the absolute ffprobe stream index, or -1 when none exists.
	Index int
	// Reason names the rule that picked the stream.
	Reason string
}

// Selection reasons.
const (
	ReasonLanguage = "language"
	ReasonDefault  = "default"
	ReasonChannels = "channels"
	ReasonFirst    = "first"
	ReasonNone     = "none"
)

// Found reports whether a stream was selected.
func (s Selection) Found() bool {
	return s.Index >= 0
}

// Label returns a short human-readable summary of the chosen stream.
func (s Selection) Label() string {
	if !s.Found() {
		return ""
	}
	parts := make([]string, 0, 3)
	if lang := s.Stream.Language(); lang != "" {
		parts = append(parts, lang)
	}
	if s.Stream.CodecName != "" {
		parts = append(parts, s.Stream.CodecName)
	}
	if s.Stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(s.Stream.Channels)+"ch")
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}

// Select returns the stream to transcribe. preferredLanguage may be empty or
// any code accepted by the language package.
func Select(streams []ffprobe.Stream, preferredLanguage string) Selection {
	var audio []ffprobe.Stream
	for _, stream := range streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			audio = append(audio, stream)
		}
	}
	if len(audio) == 0 {
		return Selection{Index: -1, Reason: ReasonNone}
	}

	if strings.TrimSpace(preferredLanguage) != "" {
		var matched []ffprobe.Stream
		for _, stream := range audio {
			if language.Same(stream.Language(), preferredLanguage) {
				matched = append(matched, stream)
			}
		}
		if len(matched) > 0 {
			return pick(matched, ReasonLanguage)
		}
	}

	for _, stream := range audio {
		if stream.IsDefault() {
			return Selection{Stream: stream, Index: stream.Index, Reason: ReasonDefault}
		}
	}

	best := audio[0]
	for _, stream := range audio[1:] {
		if stream.Channels > best.Channels {
			best = stream
		}
	}
	if best.Index != audio[0].Index {
		return Selection{Stream: best, Index: best.Index, Reason: ReasonChannels}
	}
	return Selection{Stream: audio[0], Index: audio[0].Index, Reason: ReasonFirst}
}

// pick prefers a default-flagged stream among candidates, else the first.
func pick(candidates []ffprobe.Stream, reason string) Selection {
	for _, stream := range candidates {
		if stream.IsDefault() {
			return Selection{Stream: stream, Index: stream.Index, Reason: reason}
		}
	}
	return Selection{Stream: candidates[0], Index: candidates[0].Index, Reason: reason}
}
