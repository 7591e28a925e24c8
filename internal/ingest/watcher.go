package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lecturenote/internal/logging"
)

// DoneDir is the inbox subdirectory accepted files are moved into.
const DoneDir = ".ingested"

const defaultSettle = 2 * time.Second

var videoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v", ".flv"}

// Handler imports one settled video file.
type Handler func(ctx context.Context, path string) error

// Options tunes a Watcher.
type Options struct {
	Settle time.Duration
	Logger *slog.Logger
}

// Watcher monitors one inbox directory.
type Watcher struct {
	dir     string
	handler Handler
	settle  time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup
}

// NewWatcher validates the inbox and returns an idle watcher.
func NewWatcher(dir string, handler Handler, opts Options) (*Watcher, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("inbox directory is required")
	}
	if handler == nil {
		return nil, errors.New("ingest handler is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, DoneDir), 0o755); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = defaultSettle
	}
	return &Watcher{
		dir:     dir,
		handler: handler,
		settle:  settle,
		logger:  logging.NewComponentLogger(opts.Logger, "ingest"),
		pending: make(map[string]*time.Timer),
	}, nil
}

// IsVideoFile reports whether path has a supported video extension.
func IsVideoFile(path string) bool {
	return slices.Contains(videoExtensions, strings.ToLower(filepath.Ext(path)))
}

// Run watches until ctx is cancelled, then waits for in-flight imports.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("inbox watcher started",
		logging.String(logging.FieldEventType, "inbox_watch_started"),
		logging.String("inbox_dir", w.dir),
	)

	w.scanExisting(ctx)

	defer func() {
		w.stopTimers()
		w.wg.Wait()
		w.logger.Info("inbox watcher stopped", logging.String(logging.FieldEventType, "inbox_watch_stopped"))
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("fs watcher events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !IsVideoFile(event.Name) {
				w.logger.Debug("ignoring non-video file", logging.String("path", event.Name))
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("fs watcher errors channel closed")
			}
			logging.WarnWithContext(w.logger, "inbox watcher error", "inbox_watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "a dropped file may be missed until restart"),
				logging.String(logging.FieldErrorHint, "check inbox directory permissions"),
			)
		}
	}
}

func (w *Watcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logging.WarnWithContext(w.logger, "inbox scan failed", "inbox_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "files already in the inbox are not imported"),
		)
		return
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && IsVideoFile(entry.Name()) {
			w.schedule(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}
}

// schedule (re)arms the settle timer for path; repeated writes push the
// import back.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.settled(ctx, path)
	})
}

func (w *Watcher) settled(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	size, err := fileSize(path)
	if err != nil {
		w.forget(path)
		return
	}
	time.Sleep(w.settle / 4)
	if again, err := fileSize(path); err != nil || again != size {
		w.mu.Lock()
		if timer, ok := w.pending[path]; ok {
			timer.Reset(w.settle)
		}
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	delete(w.pending, path)
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	w.logger.Info("new video detected",
		logging.String(logging.FieldEventType, "inbox_file_detected"),
		logging.String("path", path),
		logging.Int64("size_bytes", size),
	)
	if err := w.handler(ctx, path); err != nil {
		logging.WarnWithContext(w.logger, "inbox import failed", "inbox_import_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file stays in the inbox"),
			logging.String(logging.FieldErrorHint, "fix the cause and touch the file to retry"),
		)
		return
	}
	if err := os.Rename(path, filepath.Join(w.dir, DoneDir, filepath.Base(path))); err != nil {
		logging.WarnWithContext(w.logger, "could not move imported file", "inbox_move_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file will be imported again after restart"),
		)
	}
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", path)
	}
	return info.Size(), nil
}
