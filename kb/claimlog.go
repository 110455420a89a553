// Package kb holds the match's single source of truth for station ownership:
// the ClaimLog.
package kb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/model"
)

var (
	// ErrUnknownStation indicates a station code outside the arena.
	ErrUnknownStation = errors.New("unknown station")
	// ErrNoRecorder indicates recording was enabled without a Recorder.
	ErrNoRecorder = errors.New("claim recording enabled without a recorder")
)

// DefaultLockThreshold is the number of recaptures after which a station is
// locked.
const DefaultLockThreshold = 4

// Recorder persists the full claim log. It is handed the complete history on
// every dirty cycle.
type Recorder interface {
	RecordClaims(ctx context.Context, entries []model.ClaimLogEntry) error
}

// RecorderFunc adapts a function to a Recorder.
type RecorderFunc func(ctx context.Context, entries []model.ClaimLogEntry) error

// RecordClaims calls f.
func (f RecorderFunc) RecordClaims(ctx context.Context, entries []model.ClaimLogEntry) error {
	return f(ctx, entries)
}

// EventType indicates what kind of change happened in the ClaimLog.
type EventType int

const (
	EventStationClaimed EventType = iota
	EventStationLocked
)

// Event is emitted to subscribers after an ownership change.
type Event struct {
	Type     EventType
	Entry    model.ClaimLogEntry
	Previous model.Claimant
}

// ClaimLog maps every station to its owner and keeps the append-only history
// of ownership changes. It is owned by a single controller goroutine and is
// not safe for concurrent use.
type ClaimLog struct {
	stations []model.StationCode
	owners   map[model.StationCode]model.Claimant
	streaks  map[model.StationCode]int
	entries  []model.ClaimLogEntry

	dirty         bool
	recording     bool
	lockThreshold int
	recorder      Recorder
	log           logging.Logger

	subs   map[int]func(Event)
	nextID int
}

// Option customises ClaimLog construction.
type Option func(*ClaimLog)

// WithRecorder sets the persistence sink and enables recording.
func WithRecorder(r Recorder) Option {
	return func(c *ClaimLog) {
		c.recorder = r
		c.recording = r != nil
	}
}

// WithRecording toggles whether RecordCaptures writes anything.
func WithRecording(enabled bool) Option {
	return func(c *ClaimLog) {
		c.recording = enabled
	}
}

// WithLockThreshold sets the recapture count at which a station locks.
// Zero or negative disables locking.
func WithLockThreshold(n int) Option {
	return func(c *ClaimLog) {
		c.lockThreshold = n
	}
}

// WithLogger attaches a logger for claim trace lines.
func WithLogger(l logging.Logger) Option {
	return func(c *ClaimLog) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClaimLog constructs a ClaimLog with every station unclaimed.
func NewClaimLog(stations []model.StationCode, opts ...Option) *ClaimLog {
	c := &ClaimLog{
		stations:      make([]model.StationCode, 0, len(stations)),
		owners:        make(map[model.StationCode]model.Claimant, len(stations)),
		streaks:       make(map[model.StationCode]int, len(stations)),
		lockThreshold: DefaultLockThreshold,
		log:           logging.Noop(),
		subs:          make(map[int]func(Event)),
	}
	for _, s := range stations {
		if _, dup := c.owners[s]; dup {
			continue
		}
		c.stations = append(c.stations, s)
		c.owners[s] = model.Unclaimed
	}
	sort.Slice(c.stations, func(i, j int) bool { return c.stations[i] < c.stations[j] })
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Stations returns the known stations in sorted order.
func (c *ClaimLog) Stations() []model.StationCode {
	return append([]model.StationCode(nil), c.stations...)
}

// Has reports whether station is part of the arena.
func (c *ClaimLog) Has(station model.StationCode) bool {
	_, ok := c.owners[station]
	return ok
}

// Claimant returns the current owner of station, or Unclaimed.
func (c *ClaimLog) Claimant(station model.StationCode) model.Claimant {
	if owner, ok := c.owners[station]; ok {
		return owner
	}
	return model.Unclaimed
}

// LogClaim records station as owned by claimant at match time t. A claim by
// the current owner is a no-op. It reports whether ownership changed.
func (c *ClaimLog) LogClaim(station model.StationCode, claimant model.Claimant, t time.Duration) bool {
	previous, ok := c.owners[station]
	if !ok {
		c.log.Warn(context.Background(), "claim for unknown station ignored",
			logging.Station(station), logging.Claimant(claimant))
		return false
	}
	if previous == claimant {
		return false
	}

	entry := model.ClaimLogEntry{Station: station, Claimant: claimant, Time: t}
	wasLocked := c.IsLocked(station)

	c.entries = append(c.entries, entry)
	c.owners[station] = claimant
	c.dirty = true
	if previous != model.Unclaimed && claimant != model.Unclaimed {
		c.streaks[station]++
	}

	c.log.Info(context.Background(), fmt.Sprintf("%s claimed %s", claimant, station),
		logging.Station(station),
		logging.Claimant(claimant),
		logging.String("previous", previous.String()),
		logging.Int("lock_count", c.streaks[station]),
		logging.MatchTime(t),
	)

	c.notify(Event{Type: EventStationClaimed, Entry: entry, Previous: previous})
	if !wasLocked && c.IsLocked(station) {
		c.log.Info(context.Background(), "station locked", logging.Station(station), logging.Claimant(claimant))
		c.notify(Event{Type: EventStationLocked, Entry: entry, Previous: previous})
	}
	return true
}

// LockCount returns the number of recaptures recorded for station.
func (c *ClaimLog) LockCount(station model.StationCode) int {
	return c.streaks[station]
}

// IsLocked reports whether station has reached the lock threshold.
func (c *ClaimLog) IsLocked(station model.StationCode) bool {
	if c.lockThreshold <= 0 {
		return false
	}
	return c.streaks[station] >= c.lockThreshold
}

// LockThreshold returns the configured lock threshold.
func (c *ClaimLog) LockThreshold() int { return c.lockThreshold }

// IsDirty reports whether ownership changed since the last RecordCaptures.
func (c *ClaimLog) IsDirty() bool { return c.dirty }

// RecordCaptures persists the full log when it changed since the last call.
// With recording disabled it only clears the dirty flag. The dirty flag
// survives a failed write; the error is returned unchanged.
func (c *ClaimLog) RecordCaptures(ctx context.Context) error {
	if !c.recording {
		c.dirty = false
		return nil
	}
	if !c.dirty {
		return nil
	}
	if c.recorder == nil {
		return ErrNoRecorder
	}
	if err := c.recorder.RecordClaims(ctx, c.Entries()); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Entries returns a copy of the claim history in chronological order.
func (c *ClaimLog) Entries() []model.ClaimLogEntry {
	return append([]model.ClaimLogEntry(nil), c.entries...)
}

// Len returns the number of log entries.
func (c *ClaimLog) Len() int { return len(c.entries) }

// Owners returns a snapshot of station ownership.
func (c *ClaimLog) Owners() map[model.StationCode]model.Claimant {
	res := make(map[model.StationCode]model.Claimant, len(c.owners))
	for k, v := range c.owners {
		res[k] = v
	}
	return res
}

// Digest fingerprints the current history.
func (c *ClaimLog) Digest() (string, error) {
	return Digest(c.entries)
}

// Replay applies a persisted history in order. Entries naming unknown
// stations abort the replay.
func (c *ClaimLog) Replay(entries []model.ClaimLogEntry) error {
	for i, e := range entries {
		if !c.Has(e.Station) {
			return fmt.Errorf("replay entry %d: %w: %q", i, ErrUnknownStation, e.Station)
		}
		c.LogClaim(e.Station, e.Claimant, e.Time)
	}
	return nil
}

// Subscribe registers a callback for claim events. It returns an unsubscribe
// function.
func (c *ClaimLog) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		delete(c.subs, id)
	}
}

func (c *ClaimLog) notify(ev Event) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		c.subs[id](ev)
	}
}
