package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/domain"
	"github.com/shubhamgangwar-01/Puyi-Finetune/internal/ports"
)

// FileCheckpoint keeps committed records as a JSON array on disk.
type FileCheckpoint struct {
	path string

	mu      sync.Mutex
	records []domain.MemoryRecord
	loaded  bool
}

var _ ports.CheckpointStore = (*FileCheckpoint)(nil)

// NewFileCheckpoint points the store at path; the file may not exist yet.
func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{path: path}
}

// Path returns the checkpoint location.
func (f *FileCheckpoint) Path() string {
	return f.path
}

// Load returns every committed record; a missing file means no progress.
func (f *FileCheckpoint) Load(ctx context.Context) ([]domain.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadLocked(); err != nil {
		return nil, err
	}
	return append([]domain.MemoryRecord(nil), f.records...), nil
}

func (f *FileCheckpoint) loadLocked() error {
	if f.loaded {
		return nil
	}

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read checkpoint %s: %w", f.path, err)
	}

	var records []domain.MemoryRecord
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &records); err != nil {
			return fmt.Errorf("parse checkpoint %s: %w", f.path, err)
		}
	}

	f.records = records
	f.loaded = true
	return nil
}

// Append adds records and rewrites the file atomically. When Append
// returns nil the records survive a crash.
func (f *FileCheckpoint) Append(ctx context.Context, records []domain.MemoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadLocked(); err != nil {
		return err
	}

	next := make([]domain.MemoryRecord, 0, len(f.records)+len(records))
	next = append(next, f.records...)
	next = append(next, records...)

	if err := writeJSONAtomic(f.path, next); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}

	f.records = next
	return nil
}

// Writable creates and removes a scratch file next to the checkpoint.
func (f *FileCheckpoint) Writable(ctx context.Context) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint dir %s is not writable: %w", dir, err)
	}
	name := tmp.Name()
	closeErr := tmp.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return closeErr
}

// writeJSONAtomic writes v next to path, syncs it and renames it into place.
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
