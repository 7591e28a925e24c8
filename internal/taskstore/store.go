package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"lecturenote/internal/config"
	"lecturenote/internal/logging"
	"lecturenote/internal/services"
	"lecturenote/internal/tasks"
)

// ErrNotFound reports an unknown task id.
var ErrNotFound = fmt.Errorf("task %w", services.ErrNotFound)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("task store closed")

// record is one durable row: the encoded task plus the columns a backend
// indexes.
type record struct {
	ID     string
	Status tasks.Status
	Data   []byte
}

// backend writes single records durably and reads them all back at open.
type backend interface {
	name() string
	load(ctx context.Context) ([]record, error)
	write(ctx context.Context, rec record) error
	close() error
}

// Observer receives a copy of every task after it has been persisted. It is
// called while the task's lock is held, so calls for one task arrive in write
// order.
type Observer func(tasks.Task)

// Options configures a Store.
type Options struct {
	Logger   *slog.Logger
	Observer Observer
}

// Store is the in-memory task map backed by a durable backend.
type Store struct {
	backend  backend
	logger   *slog.Logger
	observer Observer
	locks    keyedMutex

	mu      sync.RWMutex
	records map[string]record
	closed  bool
}

// Open selects the backend from configuration.
func Open(cfg *config.Config, opts Options) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Backend)) {
	case config.StoreBackendJSON:
		return OpenJSON(cfg.TaskRecordDir(), opts)
	case config.StoreBackendSQLite, "":
		return OpenSQLite(cfg.TaskStorePath(), opts)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "store", "open", fmt.Sprintf("unknown backend %q", cfg.Store.Backend), nil)
	}
}

func newStore(ctx context.Context, b backend, opts Options) (*Store, error) {
	logger := logging.NewComponentLogger(opts.Logger, "taskstore")
	s := &Store{
		backend:  b,
		logger:   logger,
		observer: opts.Observer,
		records:  make(map[string]record),
	}
	rows, err := b.load(ctx)
	if err != nil {
		_ = b.close()
		return nil, err
	}
	for _, row := range rows {
		var task tasks.Task
		if err := json.Unmarshal(row.Data, &task); err != nil {
			logging.WarnWithContext(logger, "skipping corrupt task record", "task_record_corrupt",
				logging.String(logging.FieldTaskID, row.ID),
				logging.String("backend", b.name()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "task is invisible until the record is repaired"),
				logging.String(logging.FieldErrorHint, "inspect or remove the stored record"),
			)
			continue
		}
		s.records[task.ID] = record{ID: task.ID, Status: task.Status(), Data: row.Data}
	}
	logger.Debug("task store opened",
		logging.String("backend", b.name()),
		logging.Int("tasks", len(s.records)),
		logging.Int("skipped", len(rows)-len(s.records)),
	)
	return s, nil
}

// Backend names the storage backend in use.
func (s *Store) Backend() string {
	return s.backend.name()
}

// Close releases the backend.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.backend.close()
}

// Get returns a copy of the task.
func (s *Store) Get(ctx context.Context, id string) (*tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return decode(rec)
}

// Exists reports whether a task id is known.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.records[id]
	return ok, nil
}

// Set writes the task durably, replacing any previous record.
func (s *Store) Set(ctx context.Context, task *tasks.Task) error {
	if task == nil || task.ID == "" {
		return errors.New("task must have an id")
	}
	unlock := s.locks.lock(task.ID)
	defer unlock()
	return s.persist(ctx, task)
}

// Update runs fn against a fresh copy of the task under the task's lock and
// persists the result. If fn returns an error nothing is written and the
// error is returned unchanged, which makes Update a compare-and-swap: fn can
// inspect the current state and refuse.
func (s *Store) Update(ctx context.Context, id string, fn func(*tasks.Task) error) (*tasks.Task, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(task); err != nil {
		return nil, err
	}
	if task.ID != id {
		return nil, fmt.Errorf("update of %s changed the task id", id)
	}
	if err := s.persist(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns copies of tasks, newest first, optionally filtered by status.
// Records that no longer decode are logged and left out.
func (s *Store) List(ctx context.Context, statuses ...tasks.Status) ([]*tasks.Task, error) {
	filter := make(map[tasks.Status]struct{}, len(statuses))
	for _, status := range statuses {
		filter[status] = struct{}{}
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	selected := make([]record, 0, len(s.records))
	for _, rec := range s.records {
		if len(filter) > 0 {
			if _, ok := filter[rec.Status]; !ok {
				continue
			}
		}
		selected = append(selected, rec)
	}
	s.mu.RUnlock()

	out := make([]*tasks.Task, 0, len(selected))
	for _, rec := range selected {
		task, err := decode(rec)
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping undecodable task record", "task_record_corrupt",
				logging.String(logging.FieldTaskID, rec.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "task is omitted from listings"),
				logging.String(logging.FieldErrorHint, "inspect or remove the stored record"),
			)
			continue
		}
		out = append(out, task)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Summary counts tasks per status.
func (s *Store) Summary(ctx context.Context) (map[tasks.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	counts := make(map[tasks.Status]int, len(tasks.AllStatuses()))
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	return counts, nil
}

// persist must be called with the task's lock held.
func (s *Store) persist(ctx context.Context, task *tasks.Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	rec := record{ID: task.ID, Status: task.Status(), Data: data}

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if err := s.backend.write(ctx, rec); err != nil {
		return fmt.Errorf("persist task %s: %w", task.ID, err)
	}

	s.mu.Lock()
	s.records[task.ID] = rec
	s.mu.Unlock()

	if s.observer != nil {
		if cp, err := decode(rec); err == nil {
			s.observer(*cp)
		}
	}
	return nil
}

func decode(rec record) (*tasks.Task, error) {
	var task tasks.Task
	if err := json.Unmarshal(rec.Data, &task); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", rec.ID, err)
	}
	return &task, nil
}
