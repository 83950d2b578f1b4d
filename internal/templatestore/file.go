package templatestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/mapping"
)

// File keeps templates in memory and rewrites a JSON file after every
// change. Writes go to a temp file that is renamed over the target, so a
// crash leaves either the old or the new contents.
type File struct {
	mu   sync.Mutex
	path string
	mem  *Memory
}

// NewFile opens the JSON store at path, creating parent directories. A
// missing file is an empty store.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("file store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file store: create directory: %w", err)
	}

	f := &File{path: path, mem: NewMemory()}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("file store: read %s: %w", path, err)
	}

	var ts []mapping.Template
	if len(data) > 0 {
		if err := json.Unmarshal(data, &ts); err != nil {
			return nil, fmt.Errorf("file store: decode %s: %w", path, err)
		}
	}
	f.mem.seed(ts)
	return f, nil
}

func (f *File) Save(ctx context.Context, t mapping.Template) (mapping.Template, error) {
	var saved mapping.Template
	err := f.write(ctx, func() (err error) {
		saved, err = f.mem.Save(ctx, t)
		return err
	})
	return saved, err
}

func (f *File) Load(ctx context.Context) ([]mapping.Template, error) {
	return f.mem.Load(ctx)
}

func (f *File) Update(ctx context.Context, id string, p mapping.Patch) (mapping.Template, error) {
	var updated mapping.Template
	err := f.write(ctx, func() (err error) {
		updated, err = f.mem.Update(ctx, id, p)
		return err
	})
	return updated, err
}

func (f *File) Delete(ctx context.Context, id string) error {
	return f.write(ctx, func() error { return f.mem.Delete(ctx, id) })
}

func (f *File) IncrementUsage(ctx context.Context, id string, at time.Time) (mapping.Template, error) {
	var used mapping.Template
	err := f.write(ctx, func() (err error) {
		used, err = f.mem.IncrementUsage(ctx, id, at)
		return err
	})
	return used, err
}

// Close is a no-op; every change is already on disk.
func (f *File) Close() error { return nil }

// write runs change against the in-memory copy and persists the result.
// The in-memory copy is restored when persisting fails.
func (f *File) write(ctx context.Context, change func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	before, _ := f.mem.Load(ctx)
	if err := change(); err != nil {
		return err
	}
	after, _ := f.mem.Load(ctx)
	if err := f.persist(after); err != nil {
		f.mem.mu.Lock()
		f.mem.seed(before)
		f.mem.mu.Unlock()
		return err
	}
	return nil
}

func (f *File) persist(ts []mapping.Template) error {
	data, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		return fmt.Errorf("file store: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".templates-*.json")
	if err != nil {
		return fmt.Errorf("file store: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("file store: replace %s: %w", f.path, err)
	}
	return nil
}
