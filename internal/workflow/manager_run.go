package workflow

import (
	"context"
	"errors"

	"lecturenote/internal/logging"
	"lecturenote/internal/tasks"
)

// InterruptedMessage is recorded on tasks a previous process left processing.
const InterruptedMessage = "processing interrupted"

// Start recovers tasks a previous process left mid-flight and marks the
// manager running. Background work started before Start is unaffected.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.stopping {
		m.mu.Unlock()
		return errors.New("workflow stopped")
	}
	m.running = true
	m.mu.Unlock()

	if err := m.recover(ctx); err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}
	m.logger.Info("workflow started", logging.String(logging.FieldEventType, "workflow_started"))
	return nil
}

// Stop cancels background work and waits for it to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return
	}
	m.stopping = true
	m.running = false
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stopped"))
}

// Wait blocks until every background job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) isStopping() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopping
}

// recover fails interrupted analysis, returns interrupted synthesis to its
// checkpoint, and restarts outstanding remote fetches.
func (m *Manager) recover(ctx context.Context) error {
	stale, err := m.store.List(ctx, tasks.StatusProcessing, tasks.StatusGeneratingSummary, tasks.StatusPending)
	if err != nil {
		return err
	}
	for _, task := range stale {
		logger := m.taskLogger(ctx, task.ID, "")
		switch state := task.State.(type) {
		case tasks.Processing:
			if _, err := m.store.Update(ctx, task.ID, func(t *tasks.Task) error {
				return t.Fail(tasks.PhaseAnalysis, InterruptedMessage, m.now())
			}); err != nil {
				return err
			}
			logging.WarnWithContext(logger, "interrupted analysis marked failed", "task_recovered",
				logging.String("from_status", string(tasks.StatusProcessing)),
				logging.String(logging.FieldImpact, "the video must be processed again"),
				logging.String(logging.FieldErrorHint, "re-upload or fetch the lecture to retry"),
			)
		case tasks.GeneratingSummary:
			if _, err := m.store.Update(ctx, task.ID, func(t *tasks.Task) error {
				return t.Transition(tasks.ReadyForSynthesis{Analysis: state.Analysis}, m.now())
			}); err != nil {
				return err
			}
			logging.WarnWithContext(logger, "interrupted synthesis returned to checkpoint", "task_recovered",
				logging.String("from_status", string(tasks.StatusGeneratingSummary)),
				logging.String(logging.FieldImpact, "note generation must be requested again"),
				logging.String(logging.FieldErrorHint, "call synthesize or regenerate for the task"),
			)
		case tasks.Pending:
			if state.FetchURL == "" || m.stageSet().Fetcher == nil {
				continue
			}
			logger.Info("resuming remote fetch", logging.String(logging.FieldEventType, "fetch_resumed"))
			m.launchFetch(task.ID, state.FetchURL, false, tasks.Request{})
		}
	}
	return nil
}
