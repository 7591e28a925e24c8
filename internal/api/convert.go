package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"lecturenote/internal/blobstore"
	"lecturenote/internal/services"
	"lecturenote/internal/stage"
	"lecturenote/internal/tasks"
	"lecturenote/internal/workflow"
)

// URLSigner issues expiring object URLs.
type URLSigner interface {
	Sign(method, key string, ttl time.Duration, filename string) (blobstore.SignedURL, error)
}

// FromTask converts a task into its public status view.
func FromTask(task *tasks.Task) TaskStatusResponse {
	if task == nil {
		return TaskStatusResponse{}
	}
	resp := TaskStatusResponse{
		TaskID: task.ID,
		Title:  task.Title,
		Status: string(task.Status()),
		Progress: Progress{
			Vision:    task.Progress.Vision,
			Audio:     task.Progress.Audio,
			Synthesis: task.Progress.Synthesis,
		},
		Source:    task.Source.DisplayName(),
		CreatedAt: task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: task.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if failed, ok := task.State.(tasks.Failed); ok {
		message := failed.Message
		resp.ErrorMessage = &message
		resp.FailedPhase = string(failed.Phase)
		resp.Resumable = failed.Checkpoint != nil
	}
	return resp
}

// FromTasks converts a task list.
func FromTasks(list []*tasks.Task) TaskListResponse {
	out := TaskListResponse{Tasks: make([]TaskStatusResponse, 0, len(list))}
	for _, task := range list {
		out.Tasks = append(out.Tasks, FromTask(task))
	}
	return out
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	stats := make(map[string]int, len(summary.TaskStats))
	for status, count := range summary.TaskStats {
		stats[string(status)] = count
	}
	out := WorkflowStatus{
		Running:     summary.Running,
		Store:       summary.Store,
		TaskStats:   stats,
		LastError:   summary.LastError,
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastTask != nil {
		last := FromTask(summary.LastTask)
		out.LastTask = &last
	}
	return out
}

// StageHealthSlice orders stage health by name.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromNote builds the note view of a completed task, signing every slide
// image for ttl.
func FromNote(task *tasks.Task, signer URLSigner, ttl time.Duration) (NoteResponse, error) {
	note, ok := task.Note()
	if !ok {
		return NoteResponse{}, fmt.Errorf("%w: task %s is %s; the note is not ready", services.ErrInvalidState, task.ID, task.Status())
	}
	resp := NoteResponse{
		TaskID:        task.ID,
		Title:         note.Title,
		Slides:        make([]SlideDetail, 0, len(note.Slides)),
		CreatedAt:     task.CreatedAt,
		GeneratedAt:   note.GeneratedAt,
		Model:         note.Model,
		DocxAvailable: note.DocxKey != "",
		DriveLink:     note.DriveLink,
	}
	if resp.Title == "" {
		resp.Title = task.Title
	}
	for _, slide := range note.Slides {
		detail := SlideDetail{
			SlideNumber:    slide.SlideNumber,
			TimestampStart: slide.StartSec,
			TimestampEnd:   slide.EndSec,
			OCRContent:     slide.SlideContent,
			AudioSummary:   slide.Summary,
		}
		if slide.Explanation != "" {
			explanation := slide.Explanation
			detail.SOSExplanation = &explanation
		}
		if slide.ImageKey != "" {
			signed, err := signer.Sign(http.MethodGet, slide.ImageKey, ttl, "")
			if err != nil {
				return NoteResponse{}, err
			}
			detail.ImageURL = signed.URL
		}
		resp.Slides = append(resp.Slides, detail)
	}
	return resp, nil
}

// NoteFilename is the download name of a task's note.
func NoteFilename(taskID, ext string) string {
	return "note_" + taskID + ext
}

// Validate rejects explicitly supplied options that cannot mean anything.
// Range checks happen in the workflow.
func (o *ProcessingOptions) Validate() error {
	if o == nil {
		return nil
	}
	if o.FrameIntervalSec != nil && *o.FrameIntervalSec <= 0 {
		return services.Wrap(services.ErrValidation, "process", "options", "frame_interval_sec must be positive", nil)
	}
	if o.SSIMThreshold != nil && *o.SSIMThreshold <= 0 {
		return services.Wrap(services.ErrValidation, "process", "options", "ssim_threshold must be positive", nil)
	}
	return nil
}

// StatusCode maps an error onto the HTTP status reported to clients.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrContract):
		return http.StatusBadRequest
	case errors.Is(err, blobstore.ErrSignatureInvalid), errors.Is(err, blobstore.ErrSignatureExpired):
		return http.StatusForbidden
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
