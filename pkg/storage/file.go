package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// fileSlot stores the snapshot as <dir>/<key>.json
type fileSlot struct {
	path string
	mu   sync.Mutex
}

// NewFileSlot creates the directory if needed and binds the slot to <dir>/<key>.json
func NewFileSlot(dir, key string) (Slot, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create slot directory", goerr.V("dir", dir))
	}
	return &fileSlot{path: filepath.Join(dir, key+".json")}, nil
}

func (s *fileSlot) Get(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read slot file", goerr.V("path", s.path))
	}
	return data, nil
}

// Set writes to a temporary file and renames it over the slot file
func (s *fileSlot) Set(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return goerr.Wrap(err, "failed to create temp file", goerr.V("path", s.path))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return goerr.Wrap(err, "failed to write temp file", goerr.V("path", tmp.Name()))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return goerr.Wrap(err, "failed to sync temp file", goerr.V("path", tmp.Name()))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close temp file", goerr.V("path", tmp.Name()))
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return goerr.Wrap(err, "failed to replace slot file", goerr.V("path", s.path))
	}
	return nil
}

func (s *fileSlot) Close() error {
	return nil
}

// MemorySlot keeps the payload in memory. Failure hooks let tests simulate an unavailable
// backend.
type MemorySlot struct {
	mu     sync.Mutex
	data   []byte
	writes int

	GetErr error
	SetErr error
}

// NewMemorySlot returns an empty in-memory slot
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Get implements Slot.Get
func (s *MemorySlot) Get(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}
	if s.data == nil {
		return nil, ErrSlotEmpty
	}
	return append([]byte(nil), s.data...), nil
}

// Set implements Slot.Set
func (s *MemorySlot) Set(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SetErr != nil {
		return s.SetErr
	}
	s.data = append([]byte{}, data...)
	s.writes++
	return nil
}

// Writes reports how many successful Set calls the slot has seen
func (s *MemorySlot) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Close implements Slot.Close
func (s *MemorySlot) Close() error {
	return nil
}
