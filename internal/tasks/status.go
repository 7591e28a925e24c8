package tasks

import "strings"

// Status is the lifecycle position of a task.
type Status string

const (
	StatusPending           Status = "pending"
	StatusUploaded          Status = "uploaded"
	StatusProcessing        Status = "processing"
	StatusReadyForSynthesis Status = "ready_for_synthesis"
	StatusGeneratingSummary Status = "generating_summary"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusUploaded,
	StatusProcessing,
	StatusReadyForSynthesis,
	StatusGeneratingSummary,
	StatusCompleted,
	StatusFailed,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Phase names the unit of work a failure is attributed to.
type Phase string

const (
	PhaseFetch     Phase = "fetch"
	PhaseVision    Phase = "vision"
	PhaseAudio     Phase = "audio"
	PhaseAnalysis  Phase = "analysis"
	PhaseSynthesis Phase = "generating_summary"
)
