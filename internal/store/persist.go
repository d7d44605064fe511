package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tamzrod/panel-keeper/internal/status"
)

// Persister durably records the single snapshot.
type Persister interface {
	// Load returns the last saved snapshot, or found=false when none exists.
	Load(ctx context.Context) (snap status.Snapshot, found bool, err error)
	Save(ctx context.Context, snap status.Snapshot) error
	Close() error
}

// ---- JSON FILE ----

// FilePersister writes the snapshot as pretty-printed JSON.
// Writes are atomic: temp file in the same directory, then rename.
type FilePersister struct {
	path string
}

// NewFilePersister creates the parent directory if needed.
func NewFilePersister(path string) (*FilePersister, error) {
	if path == "" {
		return nil, errors.New("store: file path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}
	return &FilePersister{path: path}, nil
}

func (p *FilePersister) Load(ctx context.Context) (status.Snapshot, bool, error) {
	raw, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return status.Snapshot{}, false, nil
	}
	if err != nil {
		return status.Snapshot{}, false, fmt.Errorf("store: read %s: %w", p.path, err)
	}

	var snap status.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return status.Snapshot{}, false, fmt.Errorf("store: decode %s: %w", p.path, err)
	}
	return snap, true, nil
}

func (p *FilePersister) Save(ctx context.Context, snap status.Snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), "."+filepath.Base(p.path)+".*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: replace %s: %w", p.path, err)
	}
	return nil
}

func (p *FilePersister) Close() error { return nil }

// ---- MEMORY ----

// MemoryPersister keeps the last saved snapshot in memory.
type MemoryPersister struct {
	snap  *status.Snapshot
	saves int
	err   error
}

// NewMemoryPersister returns an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister { return &MemoryPersister{} }

// FailWith makes later saves return err.
func (p *MemoryPersister) FailWith(err error) { p.err = err }

// Saves is the number of successful Save calls.
func (p *MemoryPersister) Saves() int { return p.saves }

func (p *MemoryPersister) Load(ctx context.Context) (status.Snapshot, bool, error) {
	if p.snap == nil {
		return status.Snapshot{}, false, nil
	}
	return p.snap.Clone(), true, nil
}

func (p *MemoryPersister) Save(ctx context.Context, snap status.Snapshot) error {
	if p.err != nil {
		return p.err
	}
	c := snap.Clone()
	p.snap = &c
	p.saves++
	return nil
}

func (p *MemoryPersister) Close() error { return nil }
