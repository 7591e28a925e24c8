package workflow_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"lecturenote/internal/blobstore"
	"lecturenote/internal/config"
	"lecturenote/internal/media/ffprobe"
	"lecturenote/internal/notes"
	"lecturenote/internal/speech"
	"lecturenote/internal/tasks"
	"lecturenote/internal/taskstore"
	"lecturenote/internal/testsupport"
	"lecturenote/internal/transcript"
	"lecturenote/internal/vision"
	"lecturenote/internal/workflow"
)

type fakeVision struct {
	calls atomic.Int32
	run   func(ctx context.Context, in vision.Input, progress tasks.ProgressFunc) (tasks.VisionResult, error)
}

func (f *fakeVision) Run(ctx context.Context, in vision.Input, progress tasks.ProgressFunc) (tasks.VisionResult, error) {
	f.calls.Add(1)
	if f.run != nil {
		return f.run(ctx, in, progress)
	}
	progress(1)
	return sampleVision(in.TaskID), nil
}

type fakeAudio struct {
	calls atomic.Int32
	run   func(ctx context.Context, in speech.Input, progress tasks.ProgressFunc) (transcript.Transcript, error)
}

func (f *fakeAudio) Run(ctx context.Context, in speech.Input, progress tasks.ProgressFunc) (transcript.Transcript, error) {
	f.calls.Add(1)
	if f.run != nil {
		return f.run(ctx, in, progress)
	}
	progress(1)
	return sampleTranscript(), nil
}

type fakeSynth struct {
	mu       sync.Mutex
	requests []notes.Request
	errs     []error
	gate     chan struct{}
}

func (f *fakeSynth) Synthesize(ctx context.Context, req notes.Request, progress tasks.ProgressFunc) (tasks.NoteResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return tasks.NoteResult{}, ctx.Err()
		}
	}
	if err != nil {
		return tasks.NoteResult{}, err
	}
	progress(0.5)
	slides := make([]tasks.SlideNote, len(req.Segments))
	for i, seg := range req.Segments {
		slides[i] = tasks.SlideNote{SlideNumber: seg.SlideNumber, ImageKey: req.ImageKeys[i], Summary: "summary " + seg.SlideContent}
	}
	return tasks.NoteResult{
		Title:       req.Title,
		MarkdownKey: blobstore.NoteMarkdownKey(req.TaskID),
		Slides:      slides,
	}, nil
}

func (f *fakeSynth) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeSynth) lastRequest() notes.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, destDir string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(destDir, "source.mp4")
	return path, os.WriteFile(path, []byte("remote video"), 0o644)
}

// recorder keeps every persisted status and vision progress per task.
type recorder struct {
	mu       sync.Mutex
	statuses map[string][]tasks.Status
	vision   map[string][]float64
}

func newRecorder() *recorder {
	return &recorder{statuses: map[string][]tasks.Status{}, vision: map[string][]float64{}}
}

func (r *recorder) observe(task tasks.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.statuses[task.ID]
	if len(list) == 0 || list[len(list)-1] != task.Status() {
		r.statuses[task.ID] = append(list, task.Status())
	}
	r.vision[task.ID] = append(r.vision[task.ID], task.Progress.Vision)
}

func (r *recorder) reset(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.statuses, id)
}

func (r *recorder) sequence(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	parts := make([]string, len(r.statuses[id]))
	for i, s := range r.statuses[id] {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

type harness struct {
	cfg     *config.Config
	store   *taskstore.Store
	objects *blobstore.Store
	mgr     *workflow.Manager
	vision  *fakeVision
	audio   *fakeAudio
	synth   *fakeSynth
	fetcher *fakeFetcher
	rec     *recorder
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}
	rec := newRecorder()
	store := testsupport.MustOpenStore(t, cfg, taskstore.Options{Observer: rec.observe})
	objects, err := blobstore.Open(cfg.ObjectDir())
	if err != nil {
		t.Fatalf("blobstore.Open: %v", err)
	}
	h := &harness{
		cfg:     cfg,
		store:   store,
		objects: objects,
		vision:  &fakeVision{},
		audio:   &fakeAudio{},
		synth:   &fakeSynth{},
		fetcher: &fakeFetcher{},
		rec:     rec,
	}
	h.mgr = workflow.NewManager(cfg, store, objects, nil, workflow.WithProber(stubProbe))
	h.mgr.ConfigureStages(workflow.StageSet{
		Vision:      h.vision,
		Audio:       h.audio,
		Synthesizer: h.synth,
		Fetcher:     h.fetcher,
	})
	t.Cleanup(h.mgr.Stop)
	return h
}

func (h *harness) upload(t *testing.T) *tasks.Task {
	t.Helper()
	task, err := h.mgr.CreateUpload(context.Background(), workflow.UploadRequest{
		Filename: "intro-to-limits.mp4",
		Body:     strings.NewReader("video bytes"),
	})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}
	return task
}

func (h *harness) completed(t *testing.T) *tasks.Task {
	t.Helper()
	task := h.upload(t)
	done, err := h.mgr.Process(context.Background(), task.ID, tasks.Request{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if done.Status() != tasks.StatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status())
	}
	return done
}

func stubProbe(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video"},
			{Index: 1, CodecType: "audio", Channels: 2},
		},
		Format: ffprobe.Format{Duration: "20.0"},
	}, nil
}

func sampleVision(taskID string) tasks.VisionResult {
	return tasks.VisionResult{
		FrameIntervalSec: 1,
		FrameCount:       21,
		DurationSec:      20,
		Slides: []tasks.SlideRecord{
			{SlideNumber: 1, Lineage: 1, StartSec: 0, EndSec: 10, ImageKey: blobstore.SlideImageKey(taskID, 1), Content: "Slide A"},
			{SlideNumber: 2, Lineage: 2, StartSec: 10, EndSec: 20, ImageKey: blobstore.SlideImageKey(taskID, 2), Content: "Slide B"},
		},
	}
}

func sampleTranscript() transcript.Transcript {
	return transcript.New([]transcript.Span{
		{Start: 2, End: 4, Text: "hello"},
		{Start: 16, End: 18, Text: "world"},
	}, "en")
}

func mustGet(t *testing.T, h *harness, id string) *tasks.Task {
	t.Helper()
	task, err := h.mgr.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return task
}

func describe(task *tasks.Task) string {
	return fmt.Sprintf("%s (%s)", task.Status(), task.ErrorMessage())
}
