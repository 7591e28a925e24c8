package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type envelope struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Source    Source          `json:"source"`
	Progress  Progress        `json:"progress"`
	Status    Status          `json:"status"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MarshalJSON writes the task with its state tagged by status.
func (t Task) MarshalJSON() ([]byte, error) {
	if t.State == nil {
		return nil, fmt.Errorf("task %s has no state", t.ID)
	}
	if err := checkState(t.State); err != nil {
		return nil, fmt.Errorf("task %s: %w", t.ID, err)
	}
	state, err := json.Marshal(t.State)
	if err != nil {
		return nil, fmt.Errorf("encode %s state: %w", t.State.Status(), err)
	}
	return json.Marshal(envelope{
		ID:        t.ID,
		Title:     t.Title,
		Source:    t.Source,
		Progress:  t.Progress,
		Status:    t.State.Status(),
		State:     state,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	})
}

// UnmarshalJSON decodes a tagged task record. Unknown statuses and states
// missing their required fields are rejected.
func (t *Task) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.ID == "" {
		return errors.New("task record missing id")
	}
	state, err := decodeState(env.Status, env.State)
	if err != nil {
		return fmt.Errorf("task %s: %w", env.ID, err)
	}
	*t = Task{
		ID:        env.ID,
		Title:     env.Title,
		Source:    env.Source,
		Progress:  env.Progress,
		State:     state,
		CreatedAt: env.CreatedAt,
		UpdatedAt: env.UpdatedAt,
	}
	return nil
}

func decodeState(status Status, raw json.RawMessage) (State, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	var state State
	switch status {
	case StatusPending:
		var s Pending
		if err := decodeInto(raw, &s); err != nil {
			return nil, err
		}
		state = s
	case StatusUploaded:
		var s Uploaded
		if err := decodeInto(raw, &s); err != nil {
			return nil, err
		}
		state = s
	case StatusProcessing:
		var s Processing
		if err := decodeInto(raw, &s); err != nil {
			return nil, err
		}
		state = s
	case StatusReadyForSynthesis:
		var s ReadyForSynthesis
		if err := decodeInto(raw, &s); err != nil {
			return nil, err
		}
		state = s
	case StatusGeneratingSummary:
		var s GeneratingSummary
		if err := decodeInto(raw, &s); err != nil {
			return nil, err
		}
		state = s
	case StatusCompleted:
		var s Completed
		if err := decodeInto(raw, &s); err != nil {
			return nil, err
		}
		state = s
	case StatusFailed:
		var s Failed
		if err := decodeInto(raw, &s); err != nil {
			return nil, err
		}
		state = s
	default:
		return nil, fmt.Errorf("unknown status %q", status)
	}
	if err := checkState(state); err != nil {
		return nil, err
	}
	return state, nil
}

// checkState enforces the fields each state requires. Encoding and decoding
// both apply it so the store never writes a record it cannot read back.
func checkState(state State) error {
	switch s := state.(type) {
	case ReadyForSynthesis:
		return requireAnalysis(s.Status(), &s.Analysis)
	case GeneratingSummary:
		return requireAnalysis(s.Status(), &s.Analysis)
	case Completed:
		if s.Note.MarkdownKey == "" {
			return errors.New("completed state missing note")
		}
		return requireAnalysis(s.Status(), &s.Analysis)
	case Failed:
		if s.Checkpoint != nil {
			return requireAnalysis(s.Status(), s.Checkpoint)
		}
	}
	return nil
}

func decodeInto(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	return nil
}

func requireAnalysis(status Status, analysis *Analysis) error {
	if analysis.CompletedAt.IsZero() {
		return fmt.Errorf("%s state missing analysis checkpoint", status)
	}
	return nil
}
