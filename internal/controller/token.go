package controller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/territory-controller/core"
	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/model"
)

// Token is a scoring object on the field.
type Token struct {
	Index int
	Value int
}

// TokenSensor reports beacon readings for each token, keyed by token index.
// A token missing from the result is treated as unseen this tick.
type TokenSensor interface {
	Readings(ctx context.Context, now time.Duration) (map[int][]core.BeaconReading, error)
}

// TokenSensorFunc adapts a function to a TokenSensor.
type TokenSensorFunc func(ctx context.Context, now time.Duration) (map[int][]core.BeaconReading, error)

// Readings calls f.
func (f TokenSensorFunc) Readings(ctx context.Context, now time.Duration) (map[int][]core.BeaconReading, error) {
	return f(ctx, now)
}

// TokenRecorder persists the full token log.
type TokenRecorder interface {
	RecordTokens(ctx context.Context, entries []model.TokenLogEntry) error
}

// TokenSnapshot is the immutable view published by a TokenScorer.
type TokenSnapshot struct {
	MatchTime  time.Duration
	TokenZones map[int]int
	Positions  map[int]core.Vec2
	ZoneScores map[int]int
	Entries    []model.TokenLogEntry
}

// TokenScorer is the positional variant: each tick every token's position is
// triangulated from beacon readings and classified into a scoring zone. A
// zone change is appended to the token log.
type TokenScorer struct {
	zones     *core.ZoneIndex
	tokens    []Token
	sensor    TokenSensor
	reference float64
	recorder  TokenRecorder
	log       logging.Logger
	metrics   MetricsRecorder

	current   map[int]int
	positions map[int]core.Vec2
	entries   []model.TokenLogEntry
	dirty     bool

	snapshot atomic.Pointer[TokenSnapshot]
}

// TokenOption customises a TokenScorer.
type TokenOption func(*TokenScorer)

// WithTokenRecorder sets the token-log persistence sink.
func WithTokenRecorder(r TokenRecorder) TokenOption {
	return func(s *TokenScorer) { s.recorder = r }
}

// WithTokenLogger sets the scorer logger.
func WithTokenLogger(l logging.Logger) TokenOption {
	return func(s *TokenScorer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTokenMetrics attaches a metrics recorder.
func WithTokenMetrics(m MetricsRecorder) TokenOption {
	return func(s *TokenScorer) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewTokenScorer builds a scorer over the arena's scoring zones. reference is
// the signal strength a beacon receives at one metre.
func NewTokenScorer(arena *core.Arena, tokens []Token, sensor TokenSensor, reference float64, opts ...TokenOption) (*TokenScorer, error) {
	if arena == nil {
		return nil, ErrNilArena
	}
	if sensor == nil {
		return nil, errors.New("token sensor is nil")
	}
	zones, err := core.NewZoneIndex(arena.Zones)
	if err != nil {
		return nil, fmt.Errorf("build zone index: %w", err)
	}
	sorted := append([]Token(nil), tokens...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	s := &TokenScorer{
		zones:     zones,
		tokens:    sorted,
		sensor:    sensor,
		reference: reference,
		log:       logging.Noop(),
		metrics:   noopMetrics{},
		current:   make(map[int]int, len(sorted)),
		positions: make(map[int]core.Vec2, len(sorted)),
	}
	for _, t := range sorted {
		s.current[t.Index] = core.NoZone
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.publish(0)
	return s, nil
}

// Tick reads the sensor, reclassifies every token and persists the log when
// it changed. A failed sensor read is logged and leaves every token where it
// was.
func (s *TokenScorer) Tick(ctx context.Context, now time.Duration) error {
	start := time.Now()
	defer func() { s.metrics.ObserveTick(time.Since(start)) }()

	readings, err := s.sensor.Readings(ctx, now)
	if err != nil {
		// Zones and positions stay as last observed.
		s.log.Warn(ctx, "token sensor read failed", logging.Err(err), logging.MatchTime(now))
		s.publish(now)
		return nil
	}

	for _, t := range s.tokens {
		zone := core.NoZone
		if pos, ok := core.Triangulate(readings[t.Index], s.reference); ok {
			s.positions[t.Index] = pos
			zone = s.zones.ZoneOf(pos)
		} else {
			delete(s.positions, t.Index)
		}
		if zone == s.current[t.Index] {
			continue
		}
		s.current[t.Index] = zone
		s.entries = append(s.entries, model.TokenLogEntry{
			Zone:       zone,
			TokenIndex: t.Index,
			TokenValue: t.Value,
			Time:       now,
		})
		s.dirty = true
		s.log.Info(ctx, fmt.Sprintf("token %d moved to zone %d", t.Index, zone),
			logging.Int("token_index", t.Index),
			logging.Int("zone", zone),
			logging.MatchTime(now),
		)
	}

	if s.dirty {
		if s.recorder != nil {
			if err := s.recorder.RecordTokens(ctx, s.Entries()); err != nil {
				return fmt.Errorf("record tokens: %w", err)
			}
		}
		s.dirty = false
		s.metrics.SetClaimLogEntries(len(s.entries))
	}
	s.publish(now)
	return nil
}

// ZoneScores sums the values of the tokens currently inside each zone.
func (s *TokenScorer) ZoneScores() map[int]int {
	scores := make(map[int]int)
	for _, z := range s.zones.Zones() {
		scores[z.ID] = 0
	}
	for _, t := range s.tokens {
		if zone := s.current[t.Index]; zone != core.NoZone {
			scores[zone] += t.Value
		}
	}
	return scores
}

// Entries returns a copy of the token log.
func (s *TokenScorer) Entries() []model.TokenLogEntry {
	return append([]model.TokenLogEntry(nil), s.entries...)
}

// Snapshot returns the view published after the last tick.
func (s *TokenScorer) Snapshot() *TokenSnapshot {
	return s.snapshot.Load()
}

func (s *TokenScorer) publish(now time.Duration) {
	zones := make(map[int]int, len(s.current))
	for k, v := range s.current {
		zones[k] = v
	}
	positions := make(map[int]core.Vec2, len(s.positions))
	for k, v := range s.positions {
		positions[k] = v
	}
	s.snapshot.Store(&TokenSnapshot{
		MatchTime:  now,
		TokenZones: zones,
		Positions:  positions,
		ZoneScores: s.ZoneScores(),
		Entries:    s.Entries(),
	})
}
