package tasks

import (
	"fmt"
	"time"

	"lecturenote/internal/services"
)

// Progress tracks each phase's completion fraction.
type Progress struct {
	Vision    float64 `json:"vision"`
	Audio     float64 `json:"audio"`
	Synthesis float64 `json:"synthesis"`
}

// Advance raises the fraction for phase to value. Values are clamped to
// [0,1] and never move backwards.
func (p *Progress) Advance(phase Phase, value float64) {
	value = min(max(value, 0), 1)
	var target *float64
	switch phase {
	case PhaseVision:
		target = &p.Vision
	case PhaseAudio:
		target = &p.Audio
	case PhaseSynthesis:
		target = &p.Synthesis
	default:
		return
	}
	if value > *target {
		*target = value
	}
}

// Task is one lecture moving through the pipeline.
type Task struct {
	ID        string
	Title     string
	Source    Source
	Progress  Progress
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns a task in its initial state.
func New(id, title string, source Source, initial State, now time.Time) *Task {
	now = now.UTC()
	return &Task{
		ID:        id,
		Title:     title,
		Source:    source,
		State:     initial,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Status reports the current lifecycle status.
func (t *Task) Status() Status {
	if t == nil || t.State == nil {
		return ""
	}
	return t.State.Status()
}

// ErrorMessage returns the failure message, or "" when the task has not failed.
func (t *Task) ErrorMessage() string {
	if failed, ok := t.State.(Failed); ok {
		return failed.Message
	}
	return ""
}

// Checkpoint returns the persisted analysis when one exists in the current state.
func (t *Task) Checkpoint() (*Analysis, bool) {
	switch state := t.State.(type) {
	case ReadyForSynthesis:
		return &state.Analysis, true
	case GeneratingSummary:
		return &state.Analysis, true
	case Completed:
		return &state.Analysis, true
	case Failed:
		if state.Checkpoint != nil {
			return state.Checkpoint, true
		}
	}
	return nil, false
}

// Note returns the generated note of a completed task.
func (t *Task) Note() (*NoteResult, bool) {
	if completed, ok := t.State.(Completed); ok {
		return &completed.Note, true
	}
	return nil, false
}

// Transition moves the task to next when the lifecycle allows it. A rejected
// transition returns an error wrapping services.ErrInvalidState and leaves the
// task untouched.
func (t *Task) Transition(next State, now time.Time) error {
	if next == nil {
		return fmt.Errorf("%w: task %s: nil state", services.ErrInvalidState, t.ID)
	}
	from, to := t.Status(), next.Status()
	if !t.canTransition(to) {
		return fmt.Errorf("%w: task %s cannot move from %s to %s", services.ErrInvalidState, t.ID, from, to)
	}
	if to == StatusGeneratingSummary {
		t.Progress.Synthesis = 0
	}
	t.State = next
	t.UpdatedAt = now.UTC()
	return nil
}

// Fail moves the task to failed, keeping any checkpoint it holds.
func (t *Task) Fail(phase Phase, message string, now time.Time) error {
	failed := Failed{Message: message, Phase: phase}
	if checkpoint, ok := t.Checkpoint(); ok {
		cp := *checkpoint
		failed.Checkpoint = &cp
	}
	return t.Transition(failed, now)
}

func (t *Task) canTransition(to Status) bool {
	from := t.Status()
	if to == StatusFailed {
		return from != StatusFailed && from != StatusCompleted && from != ""
	}
	if from == StatusFailed {
		_, resumable := t.Checkpoint()
		return resumable && (to == StatusReadyForSynthesis || to == StatusGeneratingSummary)
	}
	return CanTransition(from, to)
}

var transitions = map[Status][]Status{
	StatusPending:           {StatusUploaded},
	StatusUploaded:          {StatusProcessing},
	StatusProcessing:        {StatusReadyForSynthesis},
	StatusReadyForSynthesis: {StatusGeneratingSummary},
	StatusGeneratingSummary: {StatusCompleted, StatusReadyForSynthesis},
	StatusCompleted:         {StatusReadyForSynthesis},
}

// CanTransition reports whether the status graph has an edge from -> to,
// ignoring state-specific conditions such as a failed task's checkpoint.
func CanTransition(from, to Status) bool {
	if to == StatusFailed {
		return from != StatusFailed && from != StatusCompleted
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
