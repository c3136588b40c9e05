// Package store owns the measurement collection and mirrors it to a persistence slot.
package store

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vjranagit/leveltracker/pkg/storage"
	"github.com/vjranagit/leveltracker/pkg/types"
	"github.com/vjranagit/leveltracker/pkg/utils/errutil"
	"github.com/vjranagit/leveltracker/pkg/utils/logging"
)

// ErrInvalidMeasurement is returned by Add when the candidate is rejected
var ErrInvalidMeasurement = errors.New("invalid measurement")

// DefaultTime is used when a candidate carries no clock time
const DefaultTime = "00:00"

var timestampLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// Option configures a Store
type Option func(*Store)

// WithLocation sets the time zone date and time are interpreted in (default time.Local)
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		s.loc = loc
	}
}

// WithClock replaces the clock used for id generation
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithCodec sets the snapshot codec (default: uncompressed JSON)
func WithCodec(codec *storage.Codec) Option {
	return func(s *Store) {
		s.codec = codec
	}
}

// Store is the session-wide measurement collection. It is safe for concurrent use.
type Store struct {
	slot  storage.Slot
	codec *storage.Codec
	loc   *time.Location
	now   func() time.Time

	mu     sync.RWMutex
	items  []types.Measurement
	dirty  bool
	lastID int64
}

// New creates an empty, not yet loaded store bound to slot
func New(slot storage.Slot, opts ...Option) (*Store, error) {
	s := &Store{
		slot:  slot,
		loc:   time.Local,
		now:   time.Now,
		items: []types.Measurement{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.codec == nil {
		codec, err := storage.NewCodec(0)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create codec")
		}
		s.codec = codec
	}

	return s, nil
}

// Open creates a store and loads the persisted snapshot
func Open(ctx context.Context, slot storage.Slot, opts ...Option) (*Store, error) {
	s, err := New(slot, opts...)
	if err != nil {
		return nil, err
	}
	s.Load(ctx)
	return s, nil
}

// Load replaces the in-memory collection with the persisted snapshot. A missing or
// unreadable snapshot yields an empty collection; the fault is logged, never returned.
func (s *Store) Load(ctx context.Context) []types.Measurement {
	items := s.read(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = items
	s.dirty = false
	for _, m := range items {
		if m.ID > s.lastID {
			s.lastID = m.ID
		}
	}

	return clone(s.items)
}

func (s *Store) read(ctx context.Context) []types.Measurement {
	logger := logging.From(ctx)

	data, err := s.slot.Get(ctx)
	if errors.Is(err, storage.ErrSlotEmpty) {
		logger.Debug("no persisted measurements")
		return []types.Measurement{}
	}
	if err != nil {
		errutil.Log(ctx, err, "failed to read persisted measurements, starting empty")
		return []types.Measurement{}
	}

	items, err := s.codec.Decode(data)
	if err != nil {
		errutil.Log(ctx, err, "persisted measurements are corrupt, starting empty")
		return []types.Measurement{}
	}

	sortByTimestamp(items)
	logger.Debug("loaded measurements", "count", len(items))
	return items
}

// Add validates the candidate and inserts it. A rejected candidate leaves the store
// untouched and returns an error wrapping ErrInvalidMeasurement.
func (s *Store) Add(ctx context.Context, c types.Candidate) (types.Measurement, error) {
	m, err := s.parse(c)
	if err != nil {
		return types.Measurement{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextID()
	s.items = append(s.items, m)
	sortByTimestamp(s.items)
	s.dirty = true

	logging.From(ctx).Info("measurement added", "measurement", m)
	s.autoPersistLocked(ctx)

	return m, nil
}

// Remove deletes the measurement with the given id. It reports whether a record was
// removed; an unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, m := range s.items {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	removed := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.dirty = true

	logging.From(ctx).Info("measurement removed", "measurement", removed)
	s.autoPersistLocked(ctx)

	return true
}

// Persist writes the collection to the slot when a mutation has not been saved yet.
// A store without unsaved changes never touches the slot, so a snapshot that failed to
// load is left as it is.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	if !s.dirty {
		return nil
	}

	data, err := s.codec.Encode(s.items)
	if err != nil {
		return goerr.Wrap(err, "failed to encode measurements")
	}
	if err := s.slot.Set(ctx, data); err != nil {
		return goerr.Wrap(err, "failed to persist measurements", goerr.V("count", len(s.items)))
	}
	s.dirty = false
	return nil
}

// autoPersistLocked persists after a mutation; faults keep the in-memory state authoritative
func (s *Store) autoPersistLocked(ctx context.Context) {
	if err := s.persistLocked(ctx); err != nil {
		errutil.Log(ctx, err, "failed to persist measurements, keeping in-memory state")
	}
}

// Measurements returns a copy of the collection in ascending timestamp order
func (s *Store) Measurements() []types.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.items)
}

// Len returns the number of measurements
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Location returns the time zone timestamps are computed in
func (s *Store) Location() *time.Location {
	return s.loc
}

// parse validates the candidate and fills the derived fields except the id
func (s *Store) parse(c types.Candidate) (types.Measurement, error) {
	date := strings.TrimSpace(c.Date)
	if date == "" {
		return types.Measurement{}, goerr.Wrap(ErrInvalidMeasurement, "date is required")
	}

	clock := strings.TrimSpace(c.Time)
	if clock == "" {
		clock = DefaultTime
	}

	at, err := parseTimestamp(date, clock, s.loc)
	if err != nil {
		return types.Measurement{}, goerr.Wrap(ErrInvalidMeasurement, "invalid date or time",
			goerr.V("date", date), goerr.V("time", clock))
	}

	raw := strings.TrimSpace(c.Level)
	if raw == "" {
		return types.Measurement{}, goerr.Wrap(ErrInvalidMeasurement, "level is required")
	}
	level, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(level) || math.IsInf(level, 0) {
		return types.Measurement{}, goerr.Wrap(ErrInvalidMeasurement, "level is not a number",
			goerr.V("level", raw))
	}

	return types.Measurement{
		Date:      date,
		Time:      clock,
		Level:     level,
		Notes:     c.Notes,
		Timestamp: at.UnixMilli(),
	}, nil
}

// nextID returns the creation time in milliseconds, bumped past the last issued id
func (s *Store) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func parseTimestamp(date, clock string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, date+"T"+clock, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func sortByTimestamp(items []types.Measurement) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp < items[j].Timestamp
	})
}

func clone(items []types.Measurement) []types.Measurement {
	return append([]types.Measurement{}, items...)
}
