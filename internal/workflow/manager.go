package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"lecturenote/internal/blobstore"
	"lecturenote/internal/config"
	"lecturenote/internal/logging"
	"lecturenote/internal/media/ffprobe"
	"lecturenote/internal/services"
	"lecturenote/internal/tasks"
	"lecturenote/internal/taskstore"
)

// Manager coordinates task state and the phases that advance it.
type Manager struct {
	cfg     *config.Config
	store   *taskstore.Store
	objects *blobstore.Store
	logger  *slog.Logger
	probe   Prober
	now     func() time.Time
	newID   func() string

	mu       sync.RWMutex
	stages   StageSet
	running  bool
	stopping bool
	lastErr  error
	lastTask *tasks.Task

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock replaces time.Now (used in tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithProber replaces the ffprobe inspection of stored videos.
func WithProber(probe Prober) ManagerOption {
	return func(m *Manager) {
		if probe != nil {
			m.probe = probe
		}
	}
}

// NewManager constructs a workflow manager. Stages must be configured with
// ConfigureStages before processing.
func NewManager(cfg *config.Config, store *taskstore.Store, objects *blobstore.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	base, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg,
		store:   store,
		objects: objects,
		logger:  logging.NewComponentLogger(logger, "workflow-manager"),
		now:     time.Now,
		newID:   uuid.NewString,
		base:    base,
		cancel:  cancel,
	}
	m.probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConfigureStages registers the phase implementations.
func (m *Manager) ConfigureStages(set StageSet) {
	m.mu.Lock()
	m.stages = set
	m.mu.Unlock()
}

func (m *Manager) stageSet() StageSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stages
}

func (m *Manager) requireAnalysisStages() error {
	set := m.stageSet()
	if set.Vision == nil || set.Audio == nil || set.Synthesizer == nil {
		return services.Wrap(services.ErrConfiguration, "workflow", "stages", "workflow stages not configured", nil)
	}
	return nil
}

// launch runs fn on the manager's background context. The goroutine is
// tracked so Stop can wait for it.
func (m *Manager) launch(fn func(ctx context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(m.base)
	}()
}
