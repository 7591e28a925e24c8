package tasks_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"lecturenote/internal/services"
	"lecturenote/internal/tasks"
	"lecturenote/internal/transcript"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleAnalysis() tasks.Analysis {
	score := 0.42
	return tasks.Analysis{
		Request: tasks.Request{
			Options:        tasks.Options{FrameIntervalSec: 2, SimilarityThreshold: 0.9},
			HelpTimestamps: []float64{12.5},
		},
		Vision: tasks.VisionResult{
			FrameIntervalSec: 2,
			FrameCount:       10,
			DurationSec:      20,
			Slides: []tasks.SlideRecord{
				{SlideNumber: 1, Lineage: 1, StartSec: 0, EndSec: 8, ImageKey: "processing/x/slides/slide_001.jpg", Content: "# Intro"},
				{SlideNumber: 2, Lineage: 2, StartSec: 10, EndSec: 20, Content: "$$E=mc^2$$", LaTeX: []string{"E=mc^2"}, TransitionScore: &score},
			},
		},
		Audio:       transcript.New([]transcript.Span{{Start: 0, End: 4, Text: "hello"}}, "en"),
		CompletedAt: testNow,
	}
}

func TestTransitionFollowsLifecycle(t *testing.T) {
	task := tasks.New("t1", "Lecture", tasks.Source{Kind: tasks.SourceRemote}, tasks.Pending{FetchURL: "https://example.com/v"}, testNow)
	steps := []tasks.State{
		tasks.Uploaded{},
		tasks.Processing{},
		tasks.ReadyForSynthesis{Analysis: sampleAnalysis()},
		tasks.GeneratingSummary{Analysis: sampleAnalysis()},
		tasks.Completed{Analysis: sampleAnalysis(), Note: tasks.NoteResult{MarkdownKey: "outputs/t1/note.md"}},
		tasks.ReadyForSynthesis{Analysis: sampleAnalysis()},
	}
	for _, next := range steps {
		if err := task.Transition(next, testNow); err != nil {
			t.Fatalf("transition to %s: %v", next.Status(), err)
		}
	}
	if task.Status() != tasks.StatusReadyForSynthesis {
		t.Fatalf("unexpected status %s", task.Status())
	}
}

func TestTransitionRejectsSkippingAnalysis(t *testing.T) {
	task := tasks.New("t2", "", tasks.Source{}, tasks.Uploaded{}, testNow)
	err := task.Transition(tasks.GeneratingSummary{Analysis: sampleAnalysis()}, testNow.Add(time.Minute))
	if !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
	if task.Status() != tasks.StatusUploaded || !task.UpdatedAt.Equal(testNow) {
		t.Fatal("rejected transition must not mutate the task")
	}
}

func TestFailKeepsCheckpoint(t *testing.T) {
	task := tasks.New("t3", "", tasks.Source{}, tasks.GeneratingSummary{Analysis: sampleAnalysis()}, testNow)
	if err := task.Fail(tasks.PhaseSynthesis, "llm unavailable", testNow); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if task.ErrorMessage() != "llm unavailable" {
		t.Fatalf("unexpected message %q", task.ErrorMessage())
	}
	if _, ok := task.Checkpoint(); !ok {
		t.Fatal("expected checkpoint to survive synthesis failure")
	}
	if err := task.Transition(tasks.GeneratingSummary{Analysis: sampleAnalysis()}, testNow); err != nil {
		t.Fatalf("expected resumable failed task, got %v", err)
	}
}

func TestFailedWithoutCheckpointIsTerminal(t *testing.T) {
	task := tasks.New("t4", "", tasks.Source{}, tasks.Processing{}, testNow)
	if err := task.Fail(tasks.PhaseAudio, "boom", testNow); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if _, ok := task.Checkpoint(); ok {
		t.Fatal("analysis failure must not carry a checkpoint")
	}
	for _, next := range []tasks.State{tasks.ReadyForSynthesis{Analysis: sampleAnalysis()}, tasks.Uploaded{}, tasks.Failed{Message: "again"}} {
		if err := task.Transition(next, testNow); !errors.Is(err, services.ErrInvalidState) {
			t.Fatalf("expected %s to be rejected, got %v", next.Status(), err)
		}
	}
}

func TestCompletedCannotFail(t *testing.T) {
	if tasks.CanTransition(tasks.StatusCompleted, tasks.StatusFailed) {
		t.Fatal("completed is terminal for failure")
	}
	if !tasks.CanTransition(tasks.StatusPending, tasks.StatusFailed) {
		t.Fatal("pending may fail")
	}
}

func TestProgressAdvanceIsMonotonic(t *testing.T) {
	var p tasks.Progress
	p.Advance(tasks.PhaseVision, 0.5)
	p.Advance(tasks.PhaseVision, 0.3)
	p.Advance(tasks.PhaseAudio, 7)
	p.Advance(tasks.PhaseSynthesis, -1)
	if p.Vision != 0.5 || p.Audio != 1 || p.Synthesis != 0 {
		t.Fatalf("unexpected progress %+v", p)
	}
}

func TestTaskJSONRoundTrip(t *testing.T) {
	analysis := sampleAnalysis()
	task := tasks.New("t5", "Lecture 5", tasks.Source{Kind: tasks.SourceUpload, VideoKey: "videos/t5/original.mp4", Filename: "l5.mp4", SizeBytes: 42}, tasks.Failed{
		Message:    "synthesis failed",
		Phase:      tasks.PhaseSynthesis,
		Checkpoint: &analysis,
	}, testNow)
	task.Progress = tasks.Progress{Vision: 1, Audio: 1, Synthesis: 0.25}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded tasks.Task
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(*task, decoded) {
		t.Fatalf("round trip mismatch\nwant %+v\ngot  %+v", *task, decoded)
	}

	var probe map[string]any
	if err := json.Unmarshal(data, &probe); err != nil {
		t.Fatalf("unmarshal probe: %v", err)
	}
	if probe["status"] != "failed" {
		t.Fatalf("expected status tag, got %v", probe["status"])
	}
}

func TestTaskJSONRejectsInvalidRecords(t *testing.T) {
	cases := map[string]string{
		"unknown status":     `{"id":"a","status":"bogus","state":{}}`,
		"missing checkpoint": `{"id":"a","status":"ready_for_synthesis","state":{}}`,
		"missing id":         `{"status":"uploaded","state":{}}`,
		"completed no note":  `{"id":"a","status":"completed","state":{"analysis":{"completed_at":"2026-01-01T00:00:00Z"}}}`,
	}
	for name, raw := range cases {
		var task tasks.Task
		if err := json.Unmarshal([]byte(raw), &task); err == nil {
			t.Fatalf("%s: expected decode error", name)
		}
	}
}

func TestTaskJSONRefusesToEncodeInvalidStates(t *testing.T) {
	cases := map[string]tasks.State{
		"ready without checkpoint":      tasks.ReadyForSynthesis{},
		"generating without checkpoint": tasks.GeneratingSummary{},
		"completed without note":        tasks.Completed{Analysis: sampleAnalysis()},
		"failed with empty checkpoint":  tasks.Failed{Message: "x", Checkpoint: &tasks.Analysis{}},
	}
	for name, state := range cases {
		task := tasks.New("t6", "", tasks.Source{}, state, testNow)
		if _, err := json.Marshal(task); err == nil {
			t.Fatalf("%s: expected encode error", name)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := tasks.ParseStatus(" Ready_For_Synthesis "); !ok || status != tasks.StatusReadyForSynthesis {
		t.Fatalf("unexpected parse result %q %v", status, ok)
	}
	if _, ok := tasks.ParseStatus("review"); ok {
		t.Fatal("unknown status should not parse")
	}
}
