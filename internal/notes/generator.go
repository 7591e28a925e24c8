package notes

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lecturenote/internal/align"
	"lecturenote/internal/blobstore"
	"lecturenote/internal/logging"
	"lecturenote/internal/services"
	"lecturenote/internal/services/llm"
	"lecturenote/internal/stage"
	"lecturenote/internal/tasks"
	"lecturenote/internal/textutil"
)

// Request is everything synthesis needs for one note.
type Request struct {
	TaskID    string
	Title     string
	Segments  []align.Segment
	ImageKeys []string
}

// ObjectStore receives rendered outputs.
type ObjectStore interface {
	PutBytes(ctx context.Context, key string, data []byte) error
	PutFile(ctx context.Context, key, src string) error
}

// Exporter publishes a finished note somewhere outside the object store and
// returns a link to it.
type Exporter interface {
	Export(ctx context.Context, name string, markdown []byte) (string, error)
}

// Options configures a Generator.
type Options struct {
	DocxEnabled bool
	WorkDir     string
	Exporter    Exporter
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Generator synthesizes notes with a language model.
type Generator struct {
	completer llm.Completer
	objects   ObjectStore
	opts      Options
	logger    *slog.Logger
}

// NewGenerator builds a generator.
func NewGenerator(completer llm.Completer, objects ObjectStore, opts Options) *Generator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Generator{
		completer: completer,
		objects:   objects,
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "notes"),
	}
}

// Synthesize generates every slide's summary (and explanation when help was
// requested), renders the outputs and stores them.
func (g *Generator) Synthesize(ctx context.Context, req Request, progress tasks.ProgressFunc) (tasks.NoteResult, error) {
	logger := logging.WithContext(ctx, g.logger)
	report := func(v float64) {
		if progress != nil {
			progress(v)
		}
	}
	if len(req.ImageKeys) != len(req.Segments) {
		return tasks.NoteResult{}, fmt.Errorf("%w: %d segments but %d slide images", services.ErrContract, len(req.Segments), len(req.ImageKeys))
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Lecture notes"
	}

	logger.Info("phase started",
		logging.String(logging.FieldEventType, "phase_started"),
		logging.Int("segments", len(req.Segments)),
		logging.String("model", g.completer.Model()),
	)

	slides := make([]tasks.SlideNote, 0, len(req.Segments))
	for i, seg := range req.Segments {
		summary, err := g.complete(ctx, SummarySystemPrompt, SummaryPrompt(seg), "summary", seg.SlideNumber)
		if err != nil {
			return tasks.NoteResult{}, err
		}
		note := tasks.SlideNote{
			SlideNumber:  seg.SlideNumber,
			StartSec:     seg.StartSec,
			EndSec:       seg.EndSec,
			ImageKey:     req.ImageKeys[i],
			SlideContent: seg.SlideContent,
			SpokenText:   seg.SpokenText,
			Summary:      summary,
			Escalated:    seg.EscalationRequested,
		}
		if seg.EscalationRequested {
			explanation, err := g.complete(ctx, ExplanationSystemPrompt, ExplanationPrompt(seg), "explanation", seg.SlideNumber)
			if err != nil {
				return tasks.NoteResult{}, err
			}
			note.Explanation = explanation
		}
		slides = append(slides, note)
		report(0.9 * float64(i+1) / float64(len(req.Segments)))
	}

	result := tasks.NoteResult{
		Title:       title,
		MarkdownKey: blobstore.NoteMarkdownKey(req.TaskID),
		Model:       g.completer.Model(),
		Slides:      slides,
		GeneratedAt: g.opts.Clock().UTC(),
	}
	markdown, err := RenderMarkdown(req.TaskID, result)
	if err != nil {
		return tasks.NoteResult{}, err
	}
	if err := g.objects.PutBytes(ctx, result.MarkdownKey, []byte(markdown)); err != nil {
		return tasks.NoteResult{}, fmt.Errorf("store note: %w", err)
	}

	if g.opts.DocxEnabled {
		key, err := g.writeDocx(ctx, req.TaskID, title, markdown)
		if err != nil {
			logging.WarnWithContext(logger, "docx export failed", "docx_export_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "only the markdown note is available"),
			)
		} else {
			result.DocxKey = key
		}
	}

	if g.opts.Exporter != nil {
		name := textutil.SanitizeFileName(title) + ".md"
		link, err := g.opts.Exporter.Export(ctx, name, []byte(markdown))
		if err != nil {
			logging.WarnWithContext(logger, "note export failed", "note_export_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check drive credentials and token"),
				logging.String(logging.FieldImpact, "note is stored locally but not exported"),
			)
		} else {
			result.DriveLink = link
		}
	}

	report(1)
	logger.Info("phase completed",
		logging.String(logging.FieldEventType, "phase_completed"),
		logging.Int("slides", len(slides)),
		logging.String("markdown_key", result.MarkdownKey),
	)
	return result, nil
}

func (g *Generator) complete(ctx context.Context, system, prompt, kind string, slide int) (string, error) {
	content, err := g.completer.Complete(ctx, llm.Request{System: system, Prompt: prompt})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", services.Wrap(services.ErrExternalTool, "synthesis", kind, fmt.Sprintf("slide %d", slide), err)
	}
	return textutil.CleanHallucinations(llm.StripCodeFence(content)), nil
}

func (g *Generator) writeDocx(ctx context.Context, taskID, title, markdown string) (string, error) {
	dir := filepath.Join(g.opts.WorkDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "note.docx")
	defer os.Remove(path)
	if err := WriteDocx(title, markdown, path); err != nil {
		return "", err
	}
	key := blobstore.NoteDocxKey(taskID)
	if err := g.objects.PutFile(ctx, key, path); err != nil {
		return "", err
	}
	return key, nil
}

// HealthCheck reports the configured model.
func (g *Generator) HealthCheck(context.Context) stage.Health {
	if g == nil || g.completer == nil {
		return stage.Unhealthy("synthesizer", "no language model configured")
	}
	health := stage.Healthy("synthesizer")
	health.Detail = g.completer.Model()
	return health
}
