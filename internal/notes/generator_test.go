package notes_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"lecturenote/internal/align"
	"lecturenote/internal/logging"
	"lecturenote/internal/notes"
	"lecturenote/internal/services"
	"lecturenote/internal/services/llm"
)

type scriptedCompleter struct {
	mu      sync.Mutex
	prompts []llm.Request
	fail    bool
}

func (s *scriptedCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("rate limited")
	}
	s.prompts = append(s.prompts, req)
	if req.System == notes.ExplanationSystemPrompt {
		return "💡 **Deep dive**\nstep by step", nil
	}
	return "```markdown\n### Summary\nkey idea\n```", nil
}

func (s *scriptedCompleter) Model() string { return "test-model" }

type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memStore) PutBytes(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs == nil {
		m.blobs = map[string][]byte{}
	}
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) PutFile(ctx context.Context, key, src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return m.PutBytes(ctx, key, data)
}

type fakeExporter struct{ name string }

func (f *fakeExporter) Export(ctx context.Context, name string, markdown []byte) (string, error) {
	f.name = name
	return "https://drive.example/file/1", nil
}

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func segments() []align.Segment {
	return []align.Segment{
		{SlideNumber: 1, StartSec: 0, EndSec: 30, SlideContent: "# Limits", SpokenText: "today limits"},
		{SlideNumber: 2, StartSec: 30, EndSec: 95, SlideContent: "$\\epsilon$", SpokenText: "", EscalationRequested: true},
	}
}

func TestSynthesizeBuildsNote(t *testing.T) {
	completer := &scriptedCompleter{}
	store := &memStore{}
	exporter := &fakeExporter{}
	gen := notes.NewGenerator(completer, store, notes.Options{
		WorkDir:  t.TempDir(),
		Exporter: exporter,
		Logger:   logging.NewNop(),
		Clock:    func() time.Time { return fixedNow },
	})

	var last float64
	result, err := gen.Synthesize(context.Background(), notes.Request{
		TaskID:    "t1",
		Title:     "Calculus 1",
		Segments:  segments(),
		ImageKeys: []string{"processing/t1/slides/slide_001.jpg", "processing/t1/slides/slide_002.jpg"},
	}, func(v float64) { last = v })
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if last != 1 {
		t.Fatalf("expected final progress 1, got %v", last)
	}
	if len(completer.prompts) != 3 {
		t.Fatalf("expected 2 summaries and 1 explanation, got %d calls", len(completer.prompts))
	}
	if !strings.Contains(completer.prompts[0].Prompt, "## Slide 1 content (OCR)") || !strings.Contains(completer.prompts[2].Prompt, "(none)") {
		t.Fatalf("unexpected prompts %+v", completer.prompts)
	}
	if result.MarkdownKey != "outputs/t1/note.md" || result.DriveLink == "" || result.Model != "test-model" {
		t.Fatalf("unexpected result %+v", result)
	}
	if exporter.name != "Calculus 1.md" {
		t.Fatalf("unexpected export name %q", exporter.name)
	}
	if result.Slides[0].Summary != "### Summary\nkey idea" || result.Slides[0].Explanation != "" {
		t.Fatalf("unexpected first slide %+v", result.Slides[0])
	}
	if !result.Slides[1].Escalated || !strings.HasPrefix(result.Slides[1].Explanation, "💡") {
		t.Fatalf("unexpected second slide %+v", result.Slides[1])
	}

	md := string(store.blobs["outputs/t1/note.md"])
	for _, want := range []string{"title: Calculus 1", "# Calculus 1\n", "_Generated: 2026-05-04 09:30_", "## Slide 1 (00:00)", "## Slide 2 (00:30)", "help_requested:"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if body := notes.StripFrontMatter(md); !strings.HasPrefix(body, "# Calculus 1") {
		t.Fatalf("unexpected body start %q", body[:20])
	}
}

func TestSynthesizeWritesDocx(t *testing.T) {
	store := &memStore{}
	gen := notes.NewGenerator(&scriptedCompleter{}, store, notes.Options{DocxEnabled: true, WorkDir: t.TempDir(), Clock: func() time.Time { return fixedNow }})
	result, err := gen.Synthesize(context.Background(), notes.Request{
		TaskID:    "t2",
		Segments:  segments()[:1],
		ImageKeys: []string{"k1"},
	}, nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if result.DocxKey != "outputs/t2/note.docx" || len(store.blobs[result.DocxKey]) == 0 {
		t.Fatalf("expected docx output, got %+v", result)
	}
	if result.Title != "Lecture notes" {
		t.Fatalf("expected default title, got %q", result.Title)
	}
}

func TestSynthesizeFailures(t *testing.T) {
	gen := notes.NewGenerator(&scriptedCompleter{}, &memStore{}, notes.Options{})
	if _, err := gen.Synthesize(context.Background(), notes.Request{TaskID: "t", Segments: segments(), ImageKeys: []string{"only-one"}}, nil); !errors.Is(err, services.ErrContract) {
		t.Fatalf("expected contract error, got %v", err)
	}

	failing := notes.NewGenerator(&scriptedCompleter{fail: true}, &memStore{}, notes.Options{})
	_, err := failing.Synthesize(context.Background(), notes.Request{TaskID: "t", Segments: segments(), ImageKeys: []string{"a", "b"}}, nil)
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestSynthesizeEmptyLecture(t *testing.T) {
	store := &memStore{}
	gen := notes.NewGenerator(&scriptedCompleter{}, store, notes.Options{Clock: func() time.Time { return fixedNow }})
	result, err := gen.Synthesize(context.Background(), notes.Request{TaskID: "t3", Title: "Empty"}, nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(result.Slides) != 0 || len(store.blobs["outputs/t3/note.md"]) == 0 {
		t.Fatalf("expected empty note stored, got %+v", result)
	}
}
