package workflow

import (
	"context"
	"io"

	"lecturenote/internal/media/ffprobe"
	"lecturenote/internal/notes"
	"lecturenote/internal/speech"
	"lecturenote/internal/tasks"
	"lecturenote/internal/transcript"
	"lecturenote/internal/vision"
)

// VisionPhase samples, detects and extracts slide text.
type VisionPhase interface {
	Run(ctx context.Context, in vision.Input, progress tasks.ProgressFunc) (tasks.VisionResult, error)
}

// AudioPhase isolates and transcribes the lecture audio.
type AudioPhase interface {
	Run(ctx context.Context, in speech.Input, progress tasks.ProgressFunc) (transcript.Transcript, error)
}

// Synthesizer turns aligned segments into a stored note.
type Synthesizer interface {
	Synthesize(ctx context.Context, req notes.Request, progress tasks.ProgressFunc) (tasks.NoteResult, error)
}

// Fetcher downloads a remote video into a directory.
type Fetcher interface {
	Fetch(ctx context.Context, videoURL, destDir string) (string, error)
}

// Prober inspects a stored video.
type Prober func(ctx context.Context, path string) (ffprobe.Result, error)

// StageSet bundles the concrete collaborators the manager orchestrates.
// Fetcher may be nil when remote ingestion is unavailable.
type StageSet struct {
	Vision      VisionPhase
	Audio       AudioPhase
	Synthesizer Synthesizer
	Fetcher     Fetcher
}

// UploadRequest describes a video handed to the manager directly.
type UploadRequest struct {
	Filename    string
	Title       string
	ContentType string
	Kind        tasks.SourceKind
	Body        io.Reader
}

// RemoteRequest describes a video to download.
type RemoteRequest struct {
	URL         string
	Title       string
	AutoProcess bool
	Request     tasks.Request
}

// phaseError attributes a failure to the phase that raised it.
type phaseError struct {
	phase tasks.Phase
	err   error
}

func (e *phaseError) Error() string { return e.err.Error() }

func (e *phaseError) Unwrap() error { return e.err }
