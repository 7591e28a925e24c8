package events

import (
	"time"

	"lecturenote/internal/tasks"
)

// Event is the public view of one task mutation.
type Event struct {
	TaskID   string         `json:"task_id"`
	Status   tasks.Status   `json:"status"`
	Progress tasks.Progress `json:"progress"`
	Error    string         `json:"error,omitempty"`
	At       time.Time      `json:"at"`
}

// FromTask snapshots a task.
func FromTask(task tasks.Task) Event {
	return Event{
		TaskID:   task.ID,
		Status:   task.Status(),
		Progress: task.Progress,
		Error:    task.ErrorMessage(),
		At:       task.UpdatedAt,
	}
}

// Terminal reports whether no further events are expected without a new
// request.
func (e Event) Terminal() bool {
	return e.Status == tasks.StatusCompleted || e.Status == tasks.StatusFailed
}
