package taskstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lecturenote/internal/fileutil"
)

const recordExt = ".json"

type jsonBackend struct {
	dir string
}

// OpenJSON stores one JSON document per task under dir.
func OpenJSON(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}
	return newStore(context.Background(), &jsonBackend{dir: dir}, opts)
}

func (b *jsonBackend) name() string { return "json" }

func (b *jsonBackend) close() error { return nil }

func (b *jsonBackend) path(id string) string {
	return filepath.Join(b.dir, id+recordExt)
}

func (b *jsonBackend) load(ctx context.Context) ([]record, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("read record directory: %w", err)
	}
	out := make([]record, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read record %s: %w", name, err)
		}
		out = append(out, record{ID: strings.TrimSuffix(name, recordExt), Data: data})
	}
	return out, nil
}

func (b *jsonBackend) write(ctx context.Context, rec record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(rec.ID, `/\`) || rec.ID == "." || rec.ID == ".." {
		return fmt.Errorf("invalid task id %q", rec.ID)
	}
	return fileutil.WriteFileAtomic(b.path(rec.ID), rec.Data, 0o644)
}
