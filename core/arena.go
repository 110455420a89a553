// core/arena.go
package core

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/territory-controller/model"
)

// ErrArenaInvalid wraps every arena validation failure.
var ErrArenaInvalid = errors.New("invalid arena")

//go:embed arenas/sr2021.yaml
var defaultArenaYAML []byte

// Rules are the match constants of an arena.
type Rules struct {
	Tick                time.Duration
	ClaimWindowMin      time.Duration
	ClaimWindowMax      time.Duration
	LockedOutAfterClaim int
	BroadcastInterval   time.Duration
}

// DefaultRules returns the nominal two-phase claim rules: a 2s hold accepted
// between 1.8s and 2.1s, ten broadcasts per second.
func DefaultRules() Rules {
	return Rules{
		Tick:                32 * time.Millisecond,
		ClaimWindowMin:      1800 * time.Millisecond,
		ClaimWindowMax:      2100 * time.Millisecond,
		LockedOutAfterClaim: 4,
		BroadcastInterval:   100 * time.Millisecond,
	}
}

// ApplyDefaults fills zero durations from DefaultRules. A zero lock threshold
// is kept: it disables locking.
func (r Rules) ApplyDefaults() Rules {
	def := DefaultRules()
	if r.Tick <= 0 {
		r.Tick = def.Tick
	}
	if r.ClaimWindowMin <= 0 {
		r.ClaimWindowMin = def.ClaimWindowMin
	}
	if r.ClaimWindowMax <= 0 {
		r.ClaimWindowMax = def.ClaimWindowMax
	}
	if r.BroadcastInterval <= 0 {
		r.BroadcastInterval = def.BroadcastInterval
	}
	return r
}

// BroadcastEveryTicks converts the broadcast interval into a tick cadence,
// never less than every tick.
func (r Rules) BroadcastEveryTicks() int {
	if r.Tick <= 0 || r.BroadcastInterval <= r.Tick {
		return 1
	}
	n := int((r.BroadcastInterval + r.Tick/2) / r.Tick)
	if n < 1 {
		n = 1
	}
	return n
}

// ScoringZone is an axis-aligned rectangle used by the token scorer.
type ScoringZone struct {
	ID   int
	Name string
	Min  Vec2
	Max  Vec2
}

// Arena is the static definition of a match: sides, stations, links, rules
// and scoring zones.
type Arena struct {
	Name      string
	Claimants []model.ClaimantInfo
	Stations  []model.StationCode
	Links     []model.TerritoryLink
	Rules     Rules
	Zones     []ScoringZone
}

// internal YAML shapes – unexported so the file format can evolve separately.
type arenaYAML struct {
	Name      string            `yaml:"name"`
	Claimants []claimantYAML    `yaml:"claimants"`
	Stations  []string          `yaml:"stations"`
	Links     [][2]string       `yaml:"links"`
	Rules     rulesYAML         `yaml:"rules"`
	Zones     []scoringZoneYAML `yaml:"scoring_zones"`
}

type claimantYAML struct {
	ID     int8     `yaml:"id"`
	Name   string   `yaml:"name"`
	Colour [3]uint8 `yaml:"colour"`
}

type rulesYAML struct {
	Tick                time.Duration `yaml:"tick"`
	ClaimWindowMin      time.Duration `yaml:"claim_window_min"`
	ClaimWindowMax      time.Duration `yaml:"claim_window_max"`
	LockedOutAfterClaim *int          `yaml:"locked_out_after_claim"`
	BroadcastInterval   time.Duration `yaml:"broadcast_interval"`
}

type scoringZoneYAML struct {
	ID   int        `yaml:"id"`
	Name string     `yaml:"name"`
	Min  [2]float64 `yaml:"min"`
	Max  [2]float64 `yaml:"max"`
}

// DefaultArena returns the built-in two-sided arena.
func DefaultArena() (*Arena, error) {
	return LoadArena(bytes.NewReader(defaultArenaYAML))
}

// LoadArenaFile reads an arena definition from a YAML file.
func LoadArenaFile(path string) (*Arena, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadArenaFile: %w", err)
	}
	defer f.Close()
	return LoadArena(f)
}

// LoadArena decodes a YAML arena definition and validates it.
func LoadArena(r io.Reader) (*Arena, error) {
	var payload arenaYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadArena: decode failed: %w", err)
	}

	rules := Rules{
		Tick:              payload.Rules.Tick,
		ClaimWindowMin:    payload.Rules.ClaimWindowMin,
		ClaimWindowMax:    payload.Rules.ClaimWindowMax,
		BroadcastInterval: payload.Rules.BroadcastInterval,
	}
	if payload.Rules.LockedOutAfterClaim != nil {
		rules.LockedOutAfterClaim = *payload.Rules.LockedOutAfterClaim
	} else {
		rules.LockedOutAfterClaim = DefaultRules().LockedOutAfterClaim
	}

	arena := &Arena{
		Name:  payload.Name,
		Rules: rules.ApplyDefaults(),
	}

	var errs []error
	for _, c := range payload.Claimants {
		arena.Claimants = append(arena.Claimants, model.ClaimantInfo{
			ID:     model.Claimant(c.ID),
			Name:   c.Name,
			Colour: model.RGB(c.Colour),
		})
	}
	for _, s := range payload.Stations {
		code, err := model.ParseStationCode(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		arena.Stations = append(arena.Stations, code)
	}
	for _, l := range payload.Links {
		arena.Links = append(arena.Links, model.TerritoryLink{
			A: model.StationCode(l[0]),
			B: model.StationCode(l[1]),
		})
	}
	for _, z := range payload.Zones {
		arena.Zones = append(arena.Zones, ScoringZone{
			ID:   z.ID,
			Name: z.Name,
			Min:  Vec2{X: z.Min[0], Y: z.Min[1]},
			Max:  Vec2{X: z.Max[0], Y: z.Max[1]},
		})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrArenaInvalid, errors.Join(errs...))
	}
	if err := arena.Validate(); err != nil {
		return nil, err
	}
	return arena, nil
}

// ClaimantIDs returns the competing claimants in definition order.
func (a *Arena) ClaimantIDs() []model.Claimant {
	res := make([]model.Claimant, 0, len(a.Claimants))
	for _, c := range a.Claimants {
		res = append(res, c.ID)
	}
	return res
}

// Graph builds the territory graph of the arena.
func (a *Arena) Graph() (*TerritoryGraph, error) {
	return NewTerritoryGraph(a.Stations, a.Links)
}

// Validate checks the static definition offline: claimant ids, duplicate
// stations, link endpoints, root references, connectivity and rule windows.
func (a *Arena) Validate() error {
	var errs []error

	if len(a.Claimants) == 0 {
		errs = append(errs, errors.New("no claimants defined"))
	}
	claimants := make(map[model.Claimant]struct{}, len(a.Claimants))
	for _, c := range a.Claimants {
		if c.ID < 0 {
			errs = append(errs, fmt.Errorf("claimant %q has negative id %d", c.Name, c.ID))
		}
		if _, dup := claimants[c.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate claimant id %d", c.ID))
		}
		claimants[c.ID] = struct{}{}
	}

	if len(a.Stations) == 0 {
		errs = append(errs, errors.New("no stations defined"))
	}
	seen := make(map[model.StationCode]struct{}, len(a.Stations))
	for _, s := range a.Stations {
		if _, dup := seen[s]; dup {
			errs = append(errs, fmt.Errorf("duplicate station %q", s))
		}
		seen[s] = struct{}{}
	}

	for _, l := range a.Links {
		for _, end := range []model.StationCode{l.A, l.B} {
			if c, ok := end.RootClaimant(); ok {
				if _, known := claimants[c]; !known {
					errs = append(errs, fmt.Errorf("link %s references root of unknown claimant %d", l, c))
				}
			}
		}
	}

	g, err := a.Graph()
	if err != nil {
		errs = append(errs, err)
	} else if unreachable := g.Unreachable(); len(unreachable) > 0 {
		errs = append(errs, fmt.Errorf("stations with no path to any root: %v", unreachable))
	}

	r := a.Rules
	if r.ClaimWindowMin > r.ClaimWindowMax {
		errs = append(errs, fmt.Errorf("claim window min %s exceeds max %s", r.ClaimWindowMin, r.ClaimWindowMax))
	}
	for _, z := range a.Zones {
		if z.Min.X > z.Max.X || z.Min.Y > z.Max.Y {
			errs = append(errs, fmt.Errorf("scoring zone %d has min beyond max", z.ID))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrArenaInvalid, errors.Join(errs...))
	}
	return nil
}
