package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"lecturenote/internal/config"
	"lecturenote/internal/tasks"
	"lecturenote/internal/taskstore"
)

// MustOpenStore opens a taskstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...taskstore.Options) *taskstore.Store {
	t.Helper()

	var o taskstore.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	store, err := taskstore.Open(cfg, o)
	if err != nil {
		t.Fatalf("taskstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask persists a task in the given state and returns it.
func NewTask(t testing.TB, store *taskstore.Store, state tasks.State) *tasks.Task {
	t.Helper()

	id := uuid.NewString()
	task := tasks.New(id, "Test lecture", tasks.Source{
		Kind:     tasks.SourceUpload,
		VideoKey: "videos/" + id + "/original.mp4",
		Filename: "lecture.mp4",
	}, state, time.Now())
	if err := store.Set(context.Background(), task); err != nil {
		t.Fatalf("store.Set: %v", err)
	}
	return task
}
