package workflow

import (
	"context"
	"log/slog"

	"lecturenote/internal/logging"
	"lecturenote/internal/services"
)

// taskLogger tags lines with the task and phase, preferring values already on
// ctx.
func (m *Manager) taskLogger(ctx context.Context, id, phase string) *slog.Logger {
	if _, ok := services.TaskIDFromContext(ctx); !ok && id != "" {
		ctx = services.WithTaskID(ctx, id)
	}
	if _, ok := services.PhaseFromContext(ctx); !ok && phase != "" {
		ctx = services.WithPhase(ctx, phase)
	}
	return logging.WithContext(ctx, m.logger)
}
