package workflow

import (
	"context"
	"fmt"
	"time"

	"lecturenote/internal/align"
	"lecturenote/internal/logging"
	"lecturenote/internal/notes"
	"lecturenote/internal/services"
	"lecturenote/internal/tasks"
)

// Synthesize generates the note from a ready_for_synthesis task, or resumes a
// failed task that still holds its checkpoint.
func (m *Manager) Synthesize(ctx context.Context, id string) (*tasks.Task, error) {
	_, analysis, err := m.enterSynthesis(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return m.runSynthesis(ctx, id, analysis)
}

// StartSynthesis is Synthesize with generation in the background.
func (m *Manager) StartSynthesis(ctx context.Context, id string) (*tasks.Task, error) {
	task, analysis, err := m.enterSynthesis(ctx, id, false)
	if err != nil {
		return nil, err
	}
	m.launch(func(bg context.Context) {
		_, _ = m.runSynthesis(bg, id, analysis)
	})
	return task, nil
}

// Regenerate discards the note of a completed task (or the failure of a
// checkpointed one) and synthesizes again from the stored analysis.
func (m *Manager) Regenerate(ctx context.Context, id string) (*tasks.Task, error) {
	_, analysis, err := m.enterSynthesis(ctx, id, true)
	if err != nil {
		return nil, err
	}
	return m.runSynthesis(ctx, id, analysis)
}

// StartRegenerate is Regenerate with generation in the background.
func (m *Manager) StartRegenerate(ctx context.Context, id string) (*tasks.Task, error) {
	task, analysis, err := m.enterSynthesis(ctx, id, true)
	if err != nil {
		return nil, err
	}
	m.launch(func(bg context.Context) {
		_, _ = m.runSynthesis(bg, id, analysis)
	})
	return task, nil
}

// enterSynthesis is the compare-and-swap into generating_summary. The task
// must be ready_for_synthesis or failed with a checkpoint. With regenerate it
// must instead be completed or failed with a checkpoint, and is first moved
// back to ready_for_synthesis.
func (m *Manager) enterSynthesis(ctx context.Context, id string, regenerate bool) (*tasks.Task, tasks.Analysis, error) {
	if m.stageSet().Synthesizer == nil {
		return nil, tasks.Analysis{}, services.Wrap(services.ErrConfiguration, "workflow", "stages", "workflow stages not configured", nil)
	}
	if regenerate {
		if _, err := m.store.Update(ctx, id, func(t *tasks.Task) error {
			checkpoint, ok := t.Checkpoint()
			status := t.Status()
			if !ok || (status != tasks.StatusCompleted && status != tasks.StatusFailed) {
				return fmt.Errorf("%w: task %s is %s and cannot be regenerated", services.ErrInvalidState, id, status)
			}
			return t.Transition(tasks.ReadyForSynthesis{Analysis: *checkpoint}, m.now())
		}); err != nil {
			return nil, tasks.Analysis{}, err
		}
	}

	var analysis tasks.Analysis
	task, err := m.store.Update(ctx, id, func(t *tasks.Task) error {
		checkpoint, ok := t.Checkpoint()
		status := t.Status()
		if !ok || (status != tasks.StatusReadyForSynthesis && status != tasks.StatusFailed) {
			return fmt.Errorf("%w: task %s is %s and cannot start synthesis", services.ErrInvalidState, id, status)
		}
		analysis = *checkpoint
		return t.Transition(tasks.GeneratingSummary{Analysis: analysis}, m.now())
	})
	if err != nil {
		return nil, tasks.Analysis{}, err
	}
	m.setLastTask(task)
	return task, analysis, nil
}

func (m *Manager) runSynthesis(ctx context.Context, id string, analysis tasks.Analysis) (*tasks.Task, error) {
	ctx = services.WithPhase(services.WithTaskID(ctx, id), string(tasks.PhaseSynthesis))
	logger := m.taskLogger(ctx, id, string(tasks.PhaseSynthesis))
	started := time.Now()
	logger.Info("phase started",
		logging.String(logging.FieldEventType, "phase_started"),
		logging.Int("slides", len(analysis.Vision.Slides)),
	)

	task, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	segments, err := align.Align(
		analysis.Vision.Intervals(),
		analysis.Vision.Texts(),
		analysis.Audio.Spans,
		analysis.Request.HelpTimestamps,
		align.Options{PaddingSec: m.cfg.Alignment.PaddingSec},
	)
	if err != nil {
		return m.fail(ctx, id, tasks.PhaseSynthesis, err), err
	}
	imageKeys := make([]string, len(analysis.Vision.Slides))
	for i, slide := range analysis.Vision.Slides {
		imageKeys[i] = slide.ImageKey
	}

	note, err := m.stageSet().Synthesizer.Synthesize(ctx, notes.Request{
		TaskID:    id,
		Title:     task.Title,
		Segments:  segments,
		ImageKeys: imageKeys,
	}, m.progressFunc(id, tasks.PhaseSynthesis, tasks.StatusGeneratingSummary))
	if err != nil {
		return m.fail(ctx, id, tasks.PhaseSynthesis, err), err
	}

	completed, err := m.store.Update(ctx, id, func(t *tasks.Task) error {
		if err := t.Transition(tasks.Completed{Analysis: analysis, Note: note}, m.now()); err != nil {
			return err
		}
		t.Progress.Advance(tasks.PhaseSynthesis, 1)
		return nil
	})
	if err != nil {
		m.setLastError(err)
		return nil, err
	}
	m.setLastTask(completed)
	logger.Info("phase completed",
		logging.String(logging.FieldEventType, "phase_completed"),
		logging.String("markdown_key", note.MarkdownKey),
		logging.Bool("docx", note.DocxKey != ""),
		logging.Bool("drive", note.DriveLink != ""),
		logging.Duration("elapsed", time.Since(started)),
	)
	return completed, nil
}
