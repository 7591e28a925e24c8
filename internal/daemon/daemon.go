package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"lecturenote/internal/blobstore"
	"lecturenote/internal/config"
	"lecturenote/internal/events"
	"lecturenote/internal/ingest"
	"lecturenote/internal/logging"
	"lecturenote/internal/taskstore"
	"lecturenote/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *taskstore.Store
	objects  *blobstore.Store
	workflow *workflow.Manager
	events   *events.Hub
	logHub   *logging.StreamHub

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Options carries the optional collaborators of a daemon.
type Options struct {
	Events *events.Hub
	LogHub *logging.StreamHub
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	StorePath    string
	LockFilePath string
	APIAddress   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *taskstore.Store, objects *blobstore.Store, logger *slog.Logger, wf *workflow.Manager, opts Options) (*Daemon, error) {
	if cfg == nil || store == nil || objects == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, object store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	hub := opts.Events
	if hub == nil {
		hub = events.NewHub()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		objects:  objects,
		workflow: wf,
		events:   hub,
		logHub:   opts.LogHub,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	srv, err := newAPIServer(cfg, apiDeps{
		Tasks:   wf,
		Objects: objects,
		Events:  hub,
		Logs:    opts.LogHub,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the lock, recovers interrupted work, and starts the inbox
// watcher and HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lecturenote process already holds the task store lock")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.cfg.Ingest.WatchEnabled {
		if err := d.startWatcher(); err != nil {
			d.workflow.Stop()
			d.abortStart()
			return err
		}
	}
	if err := d.api.start(d.ctx); err != nil {
		d.cancel()
		d.wg.Wait()
		d.workflow.Stop()
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("lecturenote daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

func (d *Daemon) startWatcher() error {
	watcher, err := ingest.NewWatcher(d.cfg.Paths.InboxDir, func(ctx context.Context, path string) error {
		_, err := d.workflow.IngestFile(ctx, path)
		return err
	}, ingest.Options{Logger: d.logger})
	if err != nil {
		return fmt.Errorf("inbox watcher: %w", err)
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := watcher.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(d.logger, "inbox watcher stopped", "ingest_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "new inbox files are no longer imported"),
				logging.String(logging.FieldErrorHint, "check paths.inbox_dir permissions and restart"),
			)
		}
	}()
	return nil
}

// Stop stops background processing and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("lecturenote daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Events returns the in-process event hub.
func (d *Daemon) Events() *events.Hub {
	return d.events
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		StorePath:    d.cfg.TaskStorePath(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
	}
}
