package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"lecturenote/internal/config"
	"lecturenote/internal/logging"
	"lecturenote/internal/services"
	"lecturenote/internal/speech"
	"lecturenote/internal/tasks"
	"lecturenote/internal/transcript"
	"lecturenote/internal/vision"
)

// EstimatedProcessingSeconds is the processing time quoted to callers.
const EstimatedProcessingSeconds = 120

// Similarity overrides outside this range are rejected.
const (
	minSimilarityOverride = 0.5
	maxSimilarityOverride = 1.0
)

// errNoChange aborts a store update without writing.
var errNoChange = errors.New("no change")

func validateRequest(req tasks.Request) error {
	if v := req.Options.FrameIntervalSec; v != 0 {
		if err := config.ValidateFrameInterval(v); err != nil {
			return services.Wrap(services.ErrValidation, "process", "options", err.Error(), nil)
		}
	}
	if v := req.Options.SimilarityThreshold; v != 0 {
		if math.IsNaN(v) || v < minSimilarityOverride || v > maxSimilarityOverride {
			return services.Wrap(services.ErrValidation, "process", "options",
				fmt.Sprintf("ssim_threshold must be in [%.1f, %.1f], got %v", minSimilarityOverride, maxSimilarityOverride, v), nil)
		}
	}
	for _, ts := range req.HelpTimestamps {
		if math.IsNaN(ts) || math.IsInf(ts, 0) || ts < 0 {
			return services.Wrap(services.ErrValidation, "process", "options",
				fmt.Sprintf("help timestamp %v must be a non-negative number", ts), nil)
		}
	}
	return nil
}

// StartProcessing moves an uploaded task to processing and runs analysis and
// synthesis in the background. The returned task is the processing record.
func (m *Manager) StartProcessing(ctx context.Context, id string, req tasks.Request) (*tasks.Task, error) {
	task, err := m.beginProcessing(ctx, id, req)
	if err != nil {
		return nil, err
	}
	m.launch(func(bg context.Context) {
		_, _ = m.runPipeline(bg, task.ID, req)
	})
	return task, nil
}

// Process runs analysis and synthesis for an uploaded task and returns the
// final record. A phase failure is recorded on the task and also returned.
func (m *Manager) Process(ctx context.Context, id string, req tasks.Request) (*tasks.Task, error) {
	if _, err := m.beginProcessing(ctx, id, req); err != nil {
		return nil, err
	}
	return m.runPipeline(ctx, id, req)
}

func (m *Manager) beginProcessing(ctx context.Context, id string, req tasks.Request) (*tasks.Task, error) {
	if err := m.requireAnalysisStages(); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	task, err := m.store.Update(ctx, id, func(t *tasks.Task) error {
		if t.Status() != tasks.StatusUploaded {
			return fmt.Errorf("%w: task %s is %s, processing needs %s", services.ErrInvalidState, id, t.Status(), tasks.StatusUploaded)
		}
		t.Progress = tasks.Progress{}
		return t.Transition(tasks.Processing{Request: req}, m.now())
	})
	if err != nil {
		return nil, err
	}
	m.setLastTask(task)
	return task, nil
}

func (m *Manager) runPipeline(ctx context.Context, id string, req tasks.Request) (*tasks.Task, error) {
	ctx = services.WithTaskID(ctx, id)
	analysis, err := m.analyze(ctx, id, req)
	if err != nil {
		phase := tasks.PhaseAnalysis
		var pe *phaseError
		if errors.As(err, &pe) {
			phase = pe.phase
		}
		return m.fail(ctx, id, phase, err), err
	}

	if _, err := m.store.Update(ctx, id, func(t *tasks.Task) error {
		return t.Transition(tasks.ReadyForSynthesis{Analysis: analysis}, m.now())
	}); err != nil {
		m.setLastError(err)
		return nil, err
	}
	m.taskLogger(ctx, id, "").Info("analysis checkpoint saved",
		logging.String(logging.FieldEventType, "checkpoint_saved"),
		logging.Int("slides", len(analysis.Vision.Slides)),
		logging.Int("spans", len(analysis.Audio.Spans)),
	)

	task, err := m.Synthesize(ctx, id)
	if errors.Is(err, services.ErrInvalidState) {
		// Another request took the checkpoint first.
		current, getErr := m.store.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return current, nil
	}
	return task, err
}

// analyze runs the vision and audio phases concurrently. The first failure
// cancels the other phase and its result is discarded.
func (m *Manager) analyze(ctx context.Context, id string, req tasks.Request) (tasks.Analysis, error) {
	set := m.stageSet()
	task, err := m.store.Get(ctx, id)
	if err != nil {
		return tasks.Analysis{}, err
	}
	videoPath, err := m.objects.Path(task.Source.VideoKey)
	if err != nil {
		return tasks.Analysis{}, err
	}
	probeCtx := services.WithPhase(ctx, string(tasks.PhaseAnalysis))
	probe, err := m.probe(probeCtx, videoPath)
	if err != nil {
		return tasks.Analysis{}, services.Wrap(services.ErrExternalTool, string(tasks.PhaseAnalysis), "ffprobe", "inspect video", err)
	}
	logger := m.taskLogger(probeCtx, id, string(tasks.PhaseAnalysis))
	logger.Info("analysis started",
		logging.String(logging.FieldEventType, "analysis_started"),
		logging.Float64("duration_sec", probe.DurationSeconds()),
		logging.Int("audio_streams", len(probe.AudioStreams())),
	)
	started := time.Now()

	var visionResult tasks.VisionResult
	var audioResult transcript.Transcript
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		phaseCtx := services.WithPhase(groupCtx, string(tasks.PhaseVision))
		result, err := set.Vision.Run(phaseCtx, vision.Input{
			TaskID:      id,
			VideoPath:   videoPath,
			DurationSec: probe.DurationSeconds(),
			Options:     req.Options,
		}, m.progressFunc(id, tasks.PhaseVision, tasks.StatusProcessing))
		if err != nil {
			return &phaseError{phase: tasks.PhaseVision, err: err}
		}
		visionResult = result
		return nil
	})
	group.Go(func() error {
		phaseCtx := services.WithPhase(groupCtx, string(tasks.PhaseAudio))
		result, err := set.Audio.Run(phaseCtx, speech.Input{
			TaskID:    id,
			VideoPath: videoPath,
			Streams:   probe.AudioStreams(),
		}, m.progressFunc(id, tasks.PhaseAudio, tasks.StatusProcessing))
		if err != nil {
			return &phaseError{phase: tasks.PhaseAudio, err: err}
		}
		audioResult = result
		return nil
	})
	if err := group.Wait(); err != nil {
		return tasks.Analysis{}, err
	}

	logger.Info("analysis completed",
		logging.String(logging.FieldEventType, "analysis_completed"),
		logging.Int("slides", len(visionResult.Slides)),
		logging.String("language", audioResult.Language),
		logging.Duration("elapsed", time.Since(started)),
	)
	return tasks.Analysis{
		Request:     req,
		Vision:      visionResult,
		Audio:       audioResult,
		CompletedAt: m.now().UTC(),
	}, nil
}

// progressFunc persists phase progress while the task is still in status.
// Updates smaller than one percent are skipped except the final one.
func (m *Manager) progressFunc(id string, phase tasks.Phase, status tasks.Status) tasks.ProgressFunc {
	return func(value float64) {
		_, err := m.store.Update(m.base, id, func(t *tasks.Task) error {
			if t.Status() != status {
				return errNoChange
			}
			before := t.Progress
			t.Progress.Advance(phase, value)
			if progressDelta(before, t.Progress) < 0.01 && value < 1 {
				return errNoChange
			}
			if t.Progress == before {
				return errNoChange
			}
			t.UpdatedAt = m.now().UTC()
			return nil
		})
		if err != nil && !errors.Is(err, errNoChange) && !errors.Is(err, context.Canceled) {
			m.logger.Debug("progress update skipped", logging.String(logging.FieldTaskID, id), logging.Error(err))
		}
	}
}

func progressDelta(a, b tasks.Progress) float64 {
	return max(b.Vision-a.Vision, b.Audio-a.Audio, b.Synthesis-a.Synthesis)
}
