package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

func testSlotRoundTrip(t *testing.T, slot Slot) {
	t.Helper()
	ctx := context.Background()

	_, err := slot.Get(ctx)
	gt.Error(t, err).Is(ErrSlotEmpty)

	gt.NoError(t, slot.Set(ctx, []byte(`[{"id":1}]`))).Required()
	got, err := slot.Get(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, string(got)).Equal(`[{"id":1}]`)

	// overwrite replaces the whole payload
	gt.NoError(t, slot.Set(ctx, []byte(`[]`))).Required()
	got, err = slot.Get(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, string(got)).Equal(`[]`)
}

func TestBadgerSlot(t *testing.T) {
	t.Run("on disk", func(t *testing.T) {
		slot, err := NewBadgerSlot(t.TempDir(), DefaultKey)
		gt.NoError(t, err).Required()
		defer slot.Close()
		testSlotRoundTrip(t, slot)
	})

	t.Run("in memory", func(t *testing.T) {
		slot, err := NewBadgerSlot("", DefaultKey)
		gt.NoError(t, err).Required()
		defer slot.Close()
		testSlotRoundTrip(t, slot)
	})

	t.Run("survives reopen", func(t *testing.T) {
		dir := t.TempDir()
		slot, err := NewBadgerSlot(dir, DefaultKey)
		gt.NoError(t, err).Required()
		gt.NoError(t, slot.Set(context.Background(), []byte(`[1]`))).Required()
		gt.NoError(t, slot.Close()).Required()

		slot, err = NewBadgerSlot(dir, DefaultKey)
		gt.NoError(t, err).Required()
		defer slot.Close()
		got, err := slot.Get(context.Background())
		gt.NoError(t, err).Required()
		gt.Value(t, string(got)).Equal(`[1]`)
	})
}

func TestSQLiteSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "levels.db")
	slot, err := NewSQLiteSlot(path, DefaultKey)
	gt.NoError(t, err).Required()
	defer slot.Close()
	testSlotRoundTrip(t, slot)

	t.Run("keys are independent", func(t *testing.T) {
		other, err := NewSQLiteSlot(path, "other-key")
		gt.NoError(t, err).Required()
		defer other.Close()

		_, err = other.Get(context.Background())
		gt.Error(t, err).Is(ErrSlotEmpty)
	})
}

func TestFileSlot(t *testing.T) {
	dir := t.TempDir()
	slot, err := NewFileSlot(dir, DefaultKey)
	gt.NoError(t, err).Required()
	defer slot.Close()
	testSlotRoundTrip(t, slot)
}

func TestMemorySlot(t *testing.T) {
	slot := NewMemorySlot()
	testSlotRoundTrip(t, slot)
	gt.Value(t, slot.Writes()).Equal(2)

	t.Run("injected failures", func(t *testing.T) {
		boom := errors.New("boom")
		slot := NewMemorySlot()
		slot.SetErr = boom
		gt.Error(t, slot.Set(context.Background(), []byte(`[]`))).Is(boom)
		gt.Value(t, slot.Writes()).Equal(0)

		slot.GetErr = boom
		_, err := slot.Get(context.Background())
		gt.Error(t, err).Is(boom)
	})
}

func TestNewSlot(t *testing.T) {
	testCases := map[string]string{
		"badger": BackendBadger,
		"sqlite": BackendSQLite,
		"file":   BackendFile,
		"memory": BackendMemory,
	}

	for name, backend := range testCases {
		t.Run(name, func(t *testing.T) {
			slot, err := NewSlot(&Config{Backend: backend, Path: t.TempDir()})
			gt.NoError(t, err).Required()
			defer slot.Close()
			testSlotRoundTrip(t, slot)
		})
	}

	t.Run("debounce wraps the backend", func(t *testing.T) {
		slot, err := NewSlot(&Config{Backend: BackendMemory, PersistDebounce: time.Hour})
		gt.NoError(t, err).Required()
		defer slot.Close()

		_, ok := slot.(*DebouncedSlot)
		gt.Bool(t, ok).True()
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewSlot(&Config{Backend: "localStorage", Path: t.TempDir()})
		gt.Error(t, err)
	})
}
