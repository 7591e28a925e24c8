package api

import (
	"time"

	"lecturenote/internal/logging"
	"lecturenote/internal/tasks"
)

// UploadURLRequest asks for a signed upload slot.
type UploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
}

// UploadURLResponse carries the slot a client PUTs the video to before
// confirming the upload.
type UploadURLResponse struct {
	TaskID    string    `json:"task_id"`
	UploadURL string    `json:"upload_url"`
	Method    string    `json:"method"`
	VideoKey  string    `json:"video_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UploadResponse answers a direct multipart upload.
type UploadResponse struct {
	TaskID    string `json:"task_id"`
	VideoKey  string `json:"video_key"`
	Status    string `json:"status"`
	SizeBytes int64  `json:"size_bytes"`
}

// ConfirmUploadResponse answers a confirm-upload call.
type ConfirmUploadResponse struct {
	TaskID   string `json:"task_id"`
	VideoKey string `json:"video_key"`
	Status   string `json:"status"`
}

// ProcessingOptions overrides detection settings. Omitted fields use the
// configured defaults.
type ProcessingOptions struct {
	FrameIntervalSec *float64 `json:"frame_interval_sec,omitempty"`
	SSIMThreshold    *float64 `json:"ssim_threshold,omitempty"`
}

// ProcessRequest starts analysis of an uploaded task.
type ProcessRequest struct {
	SOSTimestamps []float64          `json:"sos_timestamps"`
	Options       *ProcessingOptions `json:"options,omitempty"`
}

// FetchRequest asks the server to download a lecture from a URL.
type FetchRequest struct {
	URL           string             `json:"url"`
	Title         string             `json:"title,omitempty"`
	AutoProcess   bool               `json:"auto_process"`
	SOSTimestamps []float64          `json:"sos_timestamps,omitempty"`
	Options       *ProcessingOptions `json:"options,omitempty"`
}

// ProcessResponse acknowledges a started run.
type ProcessResponse struct {
	TaskID           string `json:"task_id"`
	Status           string `json:"status"`
	EstimatedTimeSec int    `json:"estimated_time_sec"`
}

// Progress mirrors tasks.Progress.
type Progress struct {
	Vision    float64 `json:"vision"`
	Audio     float64 `json:"audio"`
	Synthesis float64 `json:"synthesis"`
}

// TaskStatusResponse is the public view of a task.
type TaskStatusResponse struct {
	TaskID       string   `json:"task_id"`
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	Progress     Progress `json:"progress"`
	ErrorMessage *string  `json:"error_message"`
	FailedPhase  string   `json:"failed_phase,omitempty"`
	Resumable    bool     `json:"resumable"`
	Source       string   `json:"source"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// TaskListResponse wraps a list of tasks, newest first.
type TaskListResponse struct {
	Tasks []TaskStatusResponse `json:"tasks"`
}

// SlideDetail is one slide of a finished note.
type SlideDetail struct {
	SlideNumber    int     `json:"slide_number"`
	TimestampStart float64 `json:"timestamp_start"`
	TimestampEnd   float64 `json:"timestamp_end"`
	ImageURL       string  `json:"image_url"`
	OCRContent     string  `json:"ocr_content"`
	AudioSummary   string  `json:"audio_summary"`
	SOSExplanation *string `json:"sos_explanation"`
}

// NoteResponse is a finished note with signed slide images.
type NoteResponse struct {
	TaskID        string        `json:"task_id"`
	Title         string        `json:"title"`
	Slides        []SlideDetail `json:"slides"`
	CreatedAt     time.Time     `json:"created_at"`
	GeneratedAt   time.Time     `json:"generated_at"`
	Model         string        `json:"model,omitempty"`
	DocxAvailable bool          `json:"docx_available"`
	DriveLink     string        `json:"drive_link,omitempty"`
}

// NoteDownloadResponse is a signed link to a rendered note.
type NoteDownloadResponse struct {
	DownloadURL string    `json:"download_url"`
	Filename    string    `json:"filename"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SlideImageResponse is a signed link to a slide's representative frame.
type SlideImageResponse struct {
	ImageURL  string    `json:"image_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
}

// StageHealth mirrors readiness reporting for pipeline collaborators.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse answers /health.
type HealthResponse struct {
	Status string        `json:"status"`
	Stages []StageHealth `json:"stages"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool                `json:"running"`
	Store       string              `json:"store_backend,omitempty"`
	TaskStats   map[string]int      `json:"task_stats"`
	LastError   string              `json:"last_error,omitempty"`
	LastTask    *TaskStatusResponse `json:"last_task,omitempty"`
	StageHealth []StageHealth       `json:"stage_health"`
}

// LogStreamResponse carries a batch of log events and the cursor to resume
// from.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// Request converts the wire options into a tasks.Request.
func (r ProcessRequest) Request() tasks.Request {
	return buildRequest(r.SOSTimestamps, r.Options)
}

// Request converts the fetch options into a tasks.Request used when
// AutoProcess is set.
func (r FetchRequest) Request() tasks.Request {
	return buildRequest(r.SOSTimestamps, r.Options)
}

func buildRequest(sos []float64, opts *ProcessingOptions) tasks.Request {
	req := tasks.Request{HelpTimestamps: append([]float64(nil), sos...)}
	if opts != nil {
		if opts.FrameIntervalSec != nil {
			req.Options.FrameIntervalSec = *opts.FrameIntervalSec
		}
		if opts.SSIMThreshold != nil {
			req.Options.SimilarityThreshold = *opts.SSIMThreshold
		}
	}
	return req
}
