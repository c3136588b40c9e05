package storage

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/m-mizutani/goerr/v2"
)

// ErrSlotEmpty is returned by Get when nothing has been written under the slot key yet
var ErrSlotEmpty = errors.New("slot is empty")

// Slot is a single named location holding one serialized snapshot
type Slot interface {
	// Get returns the stored payload or ErrSlotEmpty
	Get(ctx context.Context) ([]byte, error)

	// Set overwrites the stored payload
	Set(ctx context.Context, data []byte) error

	// Close releases the backend
	Close() error
}

// Backend names
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// DefaultKey is the slot key the tracker has always used
const DefaultKey = "testosterone-data"

// Config holds storage configuration
type Config struct {
	Backend          string
	Path             string
	Key              string
	CompressionLevel int
	PersistDebounce  time.Duration
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		Backend:          BackendBadger,
		Path:             "./data",
		Key:              DefaultKey,
		CompressionLevel: 0,
	}
}

// NewSlot opens the slot described by cfg
func NewSlot(cfg *Config) (Slot, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}

	var (
		slot Slot
		err  error
	)
	switch cfg.Backend {
	case BackendBadger, "":
		slot, err = NewBadgerSlot(filepath.Join(cfg.Path, "badger"), key)
	case BackendSQLite:
		slot, err = NewSQLiteSlot(filepath.Join(cfg.Path, "leveltracker.db"), key)
	case BackendFile:
		slot, err = NewFileSlot(cfg.Path, key)
	case BackendMemory:
		slot = NewMemorySlot()
	default:
		return nil, goerr.New("unknown storage backend", goerr.V("backend", cfg.Backend))
	}
	if err != nil {
		return nil, err
	}

	if cfg.PersistDebounce > 0 {
		slot = NewDebouncedSlot(slot, cfg.PersistDebounce)
	}
	return slot, nil
}

// badgerSlot implements Slot using BadgerDB
type badgerSlot struct {
	db  *badger.DB
	key []byte
}

// NewBadgerSlot opens (or creates) a BadgerDB directory at path and binds it to key.
// An empty path keeps the database in memory.
func NewBadgerSlot(path, key string) (Slot, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open BadgerDB", goerr.V("path", path))
	}

	return &badgerSlot{
		db:  db,
		key: []byte(key),
	}, nil
}

// Get implements Slot.Get
func (s *badgerSlot) Get(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read slot", goerr.V("key", string(s.key)))
	}
	return data, nil
}

// Set implements Slot.Set
func (s *badgerSlot) Set(ctx context.Context, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, data)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to write slot", goerr.V("key", string(s.key)))
	}
	return nil
}

// Close implements Slot.Close
func (s *badgerSlot) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
