package workflow

import (
	"context"

	"lecturenote/internal/logging"
	"lecturenote/internal/stage"
	"lecturenote/internal/tasks"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Store       string
	LastError   string
	LastTask    *tasks.Task
	TaskStats   map[tasks.Status]int
	StageHealth map[string]stage.Health
}

// Get returns a task by id.
func (m *Manager) Get(ctx context.Context, id string) (*tasks.Task, error) {
	return m.store.Get(ctx, id)
}

// List returns tasks newest first, optionally filtered by status.
func (m *Manager) List(ctx context.Context, statuses ...tasks.Status) ([]*tasks.Task, error) {
	return m.store.List(ctx, statuses...)
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastTask := m.lastTask
	set := m.stages
	m.mu.RUnlock()

	stats, err := m.store.Summary(ctx)
	if err != nil {
		m.logger.Warn("failed to read task stats", logging.Error(err))
	}

	health := make(map[string]stage.Health)
	checks := map[string]any{
		"vision":      set.Vision,
		"audio":       set.Audio,
		"synthesizer": set.Synthesizer,
		"fetcher":     set.Fetcher,
	}
	for name, component := range checks {
		if checker, ok := component.(stage.Checker); ok && checker != nil {
			health[name] = checker.HealthCheck(ctx)
		}
	}

	summary := StatusSummary{Running: running, Store: m.store.Backend(), TaskStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastTask != nil {
		cp := *lastTask
		summary.LastTask = &cp
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastTask(task *tasks.Task) {
	m.mu.Lock()
	if task != nil {
		cp := *task
		m.lastTask = &cp
	} else {
		m.lastTask = nil
	}
	m.mu.Unlock()
}
