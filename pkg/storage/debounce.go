package storage

import (
	"context"
	"sync"
	"time"

	"github.com/vjranagit/leveltracker/pkg/utils/errutil"
)

// DebouncedSlot buffers writes to an underlying slot and flushes the most recent payload
// once no new write has arrived for the configured interval. Only the latest snapshot
// matters, so intermediate payloads are dropped.
type DebouncedSlot struct {
	slot       Slot
	interval   time.Duration
	pending    []byte
	dirty      bool
	mu         sync.Mutex
	flushTimer *time.Timer
	closed     bool
}

// NewDebouncedSlot wraps slot
func NewDebouncedSlot(slot Slot, interval time.Duration) *DebouncedSlot {
	return &DebouncedSlot{
		slot:     slot,
		interval: interval,
	}
}

// Get returns the pending payload when one is buffered, otherwise reads through
func (d *DebouncedSlot) Get(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	if d.dirty {
		data := append([]byte(nil), d.pending...)
		d.mu.Unlock()
		return data, nil
	}
	d.mu.Unlock()

	return d.slot.Get(ctx)
}

// Set buffers data and (re)arms the flush timer
func (d *DebouncedSlot) Set(ctx context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return d.slot.Set(ctx, data)
	}

	d.pending = append(d.pending[:0], data...)
	d.dirty = true

	if d.flushTimer == nil {
		d.flushTimer = time.AfterFunc(d.interval, d.autoFlush)
	} else {
		d.flushTimer.Reset(d.interval)
	}

	return nil
}

// Flush writes the buffered payload, if any
func (d *DebouncedSlot) Flush(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushLocked(ctx)
}

// flushLocked flushes the buffer (must hold lock)
func (d *DebouncedSlot) flushLocked(ctx context.Context) error {
	if !d.dirty {
		return nil
	}

	if err := d.slot.Set(ctx, d.pending); err != nil {
		return err
	}
	d.dirty = false

	return nil
}

// autoFlush runs on the timer goroutine
func (d *DebouncedSlot) autoFlush() {
	ctx := context.Background()
	if err := d.Flush(ctx); err != nil {
		errutil.Log(ctx, err, "debounced slot flush failed")
	}
}

// Close stops the timer, writes pending data and closes the underlying slot
func (d *DebouncedSlot) Close() error {
	d.mu.Lock()
	d.closed = true
	if d.flushTimer != nil {
		d.flushTimer.Stop()
	}
	err := d.flushLocked(context.Background())
	d.mu.Unlock()

	if cerr := d.slot.Close(); err == nil {
		err = cerr
	}
	return err
}
