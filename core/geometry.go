package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
)

// Vec2 is a position on the arena floor in metres, origin at the centre.
type Vec2 struct {
	X, Y float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec2) DistanceTo(other Vec2) float64 {
	return math.Hypot(v.X-other.X, v.Y-other.Y)
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Polar returns the vector of length r at bearing radians, measured
// anticlockwise from +X.
func Polar(r, bearing float64) Vec2 {
	return Vec2{X: r * math.Cos(bearing), Y: r * math.Sin(bearing)}
}

// BeaconReading is one beacon's view of a token: received signal strength
// and the bearing from the beacon to the token.
type BeaconReading struct {
	Beacon         Vec2
	SignalStrength float64
	Bearing        float64
}

// RangeFromSignal inverts an inverse-square falloff. reference is the
// strength received at one metre. Non-positive strengths have no range.
func RangeFromSignal(strength, reference float64) (float64, bool) {
	if strength <= 0 || reference <= 0 {
		return 0, false
	}
	return math.Sqrt(reference / strength), true
}

// Triangulate combines per-beacon range/bearing fixes into one position by
// averaging them. It fails when no reading yields a range.
func Triangulate(readings []BeaconReading, reference float64) (Vec2, bool) {
	var sum Vec2
	n := 0
	for _, r := range readings {
		rng, ok := RangeFromSignal(r.SignalStrength, reference)
		if !ok {
			continue
		}
		sum = sum.Add(r.Beacon.Add(Polar(rng, r.Bearing)))
		n++
	}
	if n == 0 {
		return Vec2{}, false
	}
	return Vec2{X: sum.X / float64(n), Y: sum.Y / float64(n)}, true
}

// NoZone is returned by ZoneIndex.ZoneOf for points outside every zone.
const NoZone = -1

type zoneEntry struct {
	zone ScoringZone
	rect rtreego.Rect
}

func (z *zoneEntry) Bounds() rtreego.Rect { return z.rect }

func (z *zoneEntry) contains(p Vec2) bool {
	return p.X >= z.zone.Min.X && p.X <= z.zone.Max.X &&
		p.Y >= z.zone.Min.Y && p.Y <= z.zone.Max.Y
}

// ZoneIndex answers "which scoring zone is this point in" with an R-tree.
type ZoneIndex struct {
	tree  *rtreego.Rtree
	zones []ScoringZone
}

// NewZoneIndex indexes the given rectangles. Zones must have positive area.
func NewZoneIndex(zones []ScoringZone) (*ZoneIndex, error) {
	idx := &ZoneIndex{
		tree:  rtreego.NewTree(2, 2, 8),
		zones: append([]ScoringZone(nil), zones...),
	}
	for _, z := range zones {
		w, h := z.Max.X-z.Min.X, z.Max.Y-z.Min.Y
		rect, err := rtreego.NewRect(rtreego.Point{z.Min.X, z.Min.Y}, []float64{w, h})
		if err != nil {
			return nil, fmt.Errorf("scoring zone %d: %w", z.ID, err)
		}
		idx.tree.Insert(&zoneEntry{zone: z, rect: rect})
	}
	return idx, nil
}

// Zones returns the indexed zones.
func (idx *ZoneIndex) Zones() []ScoringZone {
	return append([]ScoringZone(nil), idx.zones...)
}

// ZoneOf returns the id of the zone containing p, preferring the lowest id
// when zones overlap, or NoZone.
func (idx *ZoneIndex) ZoneOf(p Vec2) int {
	const tol = 1e-9
	probe, err := rtreego.NewRect(rtreego.Point{p.X - tol, p.Y - tol}, []float64{2 * tol, 2 * tol})
	if err != nil {
		return NoZone
	}
	var hits []int
	for _, s := range idx.tree.SearchIntersect(probe) {
		entry := s.(*zoneEntry)
		if entry.contains(p) {
			hits = append(hits, entry.zone.ID)
		}
	}
	if len(hits) == 0 {
		return NoZone
	}
	sort.Ints(hits)
	return hits[0]
}
