package workflow

import (
	"context"
	"errors"
	"strings"

	"lecturenote/internal/logging"
	"lecturenote/internal/services"
	"lecturenote/internal/tasks"
)

// fail records cause on the task. The message is the error text verbatim;
// any checkpoint the task holds is kept. Cancellation during Stop leaves the
// task for recovery at the next Start.
func (m *Manager) fail(ctx context.Context, id string, phase tasks.Phase, cause error) *tasks.Task {
	m.setLastError(cause)
	logger := m.taskLogger(ctx, id, string(phase))

	if errors.Is(cause, context.Canceled) && m.isStopping() {
		logger.Info("phase interrupted by shutdown",
			logging.String(logging.FieldEventType, "phase_interrupted"),
		)
		return nil
	}

	message := strings.TrimSpace(cause.Error())
	if message == "" {
		message = string(phase) + " failed without error detail"
	}
	logging.ErrorWithContext(logger, "phase failed", "phase_failed",
		logging.String("error_kind", services.Kind(cause)),
		logging.String("error_message", message),
		logging.Alert("task_failure"),
		logging.Error(cause),
	)

	task, err := m.store.Update(context.WithoutCancel(ctx), id, func(t *tasks.Task) error {
		return t.Fail(phase, message, m.now())
	})
	if err != nil {
		logger.Error("failed to persist task failure", logging.Error(err))
		return nil
	}
	m.setLastTask(task)
	return task
}
