package controller

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/territory-controller/core"
	"github.com/signalsfoundry/territory-controller/model"
)

type tokenRecorder struct {
	writes [][]model.TokenLogEntry
	err    error
}

func (r *tokenRecorder) RecordTokens(_ context.Context, entries []model.TokenLogEntry) error {
	if r.err != nil {
		return r.err
	}
	r.writes = append(r.writes, entries)
	return nil
}

// readingAt places a token at p as seen by a beacon at the origin with unit
// reference strength.
func readingAt(p core.Vec2) []core.BeaconReading {
	d := math.Hypot(p.X, p.Y)
	return []core.BeaconReading{{
		Beacon:         core.Vec2{},
		SignalStrength: 1 / (d * d),
		Bearing:        math.Atan2(p.Y, p.X),
	}}
}

func TestTokenScorerLogsZoneChanges(t *testing.T) {
	arena, err := core.DefaultArena()
	if err != nil {
		t.Fatalf("DefaultArena: %v", err)
	}

	positions := []map[int]core.Vec2{
		{0: {X: 2, Y: 2}, 1: {X: -2, Y: -2}},
		{0: {X: 2.5, Y: 2.2}, 1: {X: -2, Y: -2}},
		{1: {X: 0.1, Y: 0.2}},
	}
	step := 0
	sensor := TokenSensorFunc(func(context.Context, time.Duration) (map[int][]core.BeaconReading, error) {
		res := make(map[int][]core.BeaconReading)
		for idx, p := range positions[step] {
			res[idx] = readingAt(p)
		}
		step++
		return res, nil
	})

	rec := &tokenRecorder{}
	scorer, err := NewTokenScorer(arena, []Token{{Index: 1, Value: 3}, {Index: 0, Value: 5}}, sensor, 1, WithTokenRecorder(rec))
	if err != nil {
		t.Fatalf("NewTokenScorer: %v", err)
	}

	for i := range positions {
		if err := scorer.Tick(context.Background(), time.Duration(i)*time.Second); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
		if i == 0 {
			scores := scorer.ZoneScores()
			if scores[1] != 5 || scores[0] != 3 || scores[2] != 0 {
				t.Fatalf("scores after first tick = %v", scores)
			}
		}
	}

	want := []model.TokenLogEntry{
		{Zone: 1, TokenIndex: 0, TokenValue: 5, Time: 0},
		{Zone: 0, TokenIndex: 1, TokenValue: 3, Time: 0},
		{Zone: core.NoZone, TokenIndex: 0, TokenValue: 5, Time: 2 * time.Second},
		{Zone: 2, TokenIndex: 1, TokenValue: 3, Time: 2 * time.Second},
	}
	got := scorer.Entries()
	if len(got) != len(want) {
		t.Fatalf("entries = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if len(rec.writes) != 2 {
		t.Fatalf("recorder called %d times, want 2 (ticks with changes)", len(rec.writes))
	}

	snap := scorer.Snapshot()
	if snap.ZoneScores[2] != 3 || snap.TokenZones[0] != core.NoZone {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestTokenScorerPersistenceFailure(t *testing.T) {
	arena, err := core.DefaultArena()
	if err != nil {
		t.Fatalf("DefaultArena: %v", err)
	}
	sensor := TokenSensorFunc(func(context.Context, time.Duration) (map[int][]core.BeaconReading, error) {
		return map[int][]core.BeaconReading{0: readingAt(core.Vec2{X: 2, Y: 2})}, nil
	})
	boom := errors.New("disk full")
	scorer, err := NewTokenScorer(arena, []Token{{Index: 0, Value: 1}}, sensor, 1, WithTokenRecorder(&tokenRecorder{err: boom}))
	if err != nil {
		t.Fatalf("NewTokenScorer: %v", err)
	}
	if err := scorer.Tick(context.Background(), 0); !errors.Is(err, boom) {
		t.Fatalf("Tick error = %v, want %v", err, boom)
	}
}

func TestTokenScorerSensorFailureKeepsZones(t *testing.T) {
	arena, err := core.DefaultArena()
	if err != nil {
		t.Fatalf("DefaultArena: %v", err)
	}
	step := 0
	sensor := TokenSensorFunc(func(context.Context, time.Duration) (map[int][]core.BeaconReading, error) {
		step++
		if step == 2 {
			return nil, errors.New("beacon timeout")
		}
		return map[int][]core.BeaconReading{0: readingAt(core.Vec2{X: 2, Y: 2})}, nil
	})

	rec := &tokenRecorder{}
	scorer, err := NewTokenScorer(arena, []Token{{Index: 0, Value: 5}}, sensor, 1, WithTokenRecorder(rec))
	if err != nil {
		t.Fatalf("NewTokenScorer: %v", err)
	}

	for i := 1; i <= 3; i++ {
		now := time.Duration(i) * time.Second
		if err := scorer.Tick(context.Background(), now); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
		if got := scorer.ZoneScores()[1]; got != 5 {
			t.Fatalf("zone 1 score after tick %d = %d, want 5", i, got)
		}
		snap := scorer.Snapshot()
		if snap.MatchTime != now || snap.TokenZones[0] != 1 {
			t.Fatalf("snapshot after tick %d = %+v", i, snap)
		}
		if _, ok := snap.Positions[0]; !ok {
			t.Fatalf("position dropped after tick %d", i)
		}
	}

	want := model.TokenLogEntry{Zone: 1, TokenIndex: 0, TokenValue: 5, Time: time.Second}
	if got := scorer.Entries(); len(got) != 1 || got[0] != want {
		t.Fatalf("entries = %+v, want [%+v]", got, want)
	}
	if len(rec.writes) != 1 {
		t.Fatalf("recorder called %d times, want 1", len(rec.writes))
	}
}
