package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/territory-controller/model"
)

func TestDefaultArenaIsValid(t *testing.T) {
	arena, err := DefaultArena()
	if err != nil {
		t.Fatalf("DefaultArena: %v", err)
	}
	if len(arena.Stations) != 19 {
		t.Fatalf("stations = %d, want 19", len(arena.Stations))
	}
	if got := arena.ClaimantIDs(); len(got) != 2 || got[0] != model.Zone0 || got[1] != model.Zone1 {
		t.Fatalf("ClaimantIDs() = %v", got)
	}
	if arena.Rules.ClaimWindowMin != 1800*time.Millisecond || arena.Rules.ClaimWindowMax != 2100*time.Millisecond {
		t.Fatalf("claim window = [%s, %s]", arena.Rules.ClaimWindowMin, arena.Rules.ClaimWindowMax)
	}
	if got := arena.Rules.BroadcastEveryTicks(); got != 3 {
		t.Fatalf("BroadcastEveryTicks() = %d, want 3 (100ms / 32ms)", got)
	}
	g, err := arena.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if u := g.Unreachable(); len(u) != 0 {
		t.Fatalf("default arena has unreachable stations: %v", u)
	}
	if len(arena.Zones) != 3 {
		t.Fatalf("zones = %d, want 3", len(arena.Zones))
	}
}

func TestLoadArenaMinimal(t *testing.T) {
	src := `
name: tiny
claimants:
  - {id: 0, name: ZONE_0, colour: [255, 0, 0]}
stations: [PN, EY]
links:
  - [z0, PN]
  - [PN, EY]
rules:
  locked_out_after_claim: 0
`
	arena, err := LoadArena(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadArena: %v", err)
	}
	if arena.Rules.LockedOutAfterClaim != 0 {
		t.Fatalf("explicit zero lock threshold not kept: %d", arena.Rules.LockedOutAfterClaim)
	}
	if arena.Rules.Tick != DefaultRules().Tick {
		t.Fatalf("tick default not applied: %s", arena.Rules.Tick)
	}
	if arena.Claimants[0].Colour != (model.RGB{255, 0, 0}) {
		t.Fatalf("colour = %v", arena.Claimants[0].Colour)
	}
}

func TestLoadArenaValidation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unreachable station",
			src: `
claimants: [{id: 0, name: A}]
stations: [PN, EY]
links: [[z0, PN]]
`,
			want: "no path to any root",
		},
		{
			name: "bad station code",
			src: `
claimants: [{id: 0, name: A}]
stations: [pn]
links: []
`,
			want: "upper-case",
		},
		{
			name: "unknown root",
			src: `
claimants: [{id: 0, name: A}]
stations: [PN]
links: [[z0, PN], [z3, PN]]
`,
			want: "unknown claimant 3",
		},
		{
			name: "inverted window",
			src: `
claimants: [{id: 0, name: A}]
stations: [PN]
links: [[z0, PN]]
rules: {claim_window_min: 3s, claim_window_max: 2s}
`,
			want: "exceeds max",
		},
		{
			name: "unknown field",
			src: `
claimants: [{id: 0, name: A}]
stations: [PN]
links: [[z0, PN]]
teleporters: true
`,
			want: "decode failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadArena(strings.NewReader(tt.src))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
			if tt.want != "decode failed" && !errors.Is(err, ErrArenaInvalid) {
				t.Fatalf("error %v does not wrap ErrArenaInvalid", err)
			}
		})
	}
}

func TestBroadcastEveryTicks(t *testing.T) {
	tests := []struct {
		tick, interval time.Duration
		want           int
	}{
		{10 * time.Millisecond, 100 * time.Millisecond, 10},
		{100 * time.Millisecond, 100 * time.Millisecond, 1},
		{200 * time.Millisecond, 100 * time.Millisecond, 1},
		{64 * time.Millisecond, 100 * time.Millisecond, 2},
	}
	for _, tt := range tests {
		r := Rules{Tick: tt.tick, BroadcastInterval: tt.interval}
		if got := r.BroadcastEveryTicks(); got != tt.want {
			t.Fatalf("tick %s interval %s: got %d, want %d", tt.tick, tt.interval, got, tt.want)
		}
	}
}
