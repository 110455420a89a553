// core/territory_graph.go
package core

import (
	"errors"
	"fmt"
	"sort"

	"github.com/signalsfoundry/territory-controller/model"
)

var (
	// ErrUnknownNode indicates a link endpoint that is neither a station nor a root.
	ErrUnknownNode = errors.New("unknown link endpoint")
	// ErrSelfLink indicates a link whose endpoints are the same node.
	ErrSelfLink = errors.New("link connects a node to itself")
)

// OwnerLookup reports the current owner of a station. kb.ClaimLog satisfies it.
type OwnerLookup interface {
	Claimant(station model.StationCode) model.Claimant
}

// StationSet is a set of real stations.
type StationSet map[model.StationCode]struct{}

// Has reports whether code is in the set.
func (s StationSet) Has(code model.StationCode) bool {
	_, ok := s[code]
	return ok
}

// Sorted returns the members in lexical order.
func (s StationSet) Sorted() []model.StationCode {
	res := make([]model.StationCode, 0, len(s))
	for code := range s {
		res = append(res, code)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Attached maps each claimant to the stations connected to its root through
// stations it owns.
type Attached map[model.Claimant]StationSet

// TerritoryGraph is the static adjacency of stations and claimant roots.
type TerritoryGraph struct {
	stations  []model.StationCode
	known     map[model.StationCode]struct{}
	links     []model.TerritoryLink
	adjacency map[model.StationCode][]model.StationCode
}

// NewTerritoryGraph builds the adjacency map once from the static link set.
// Link endpoints must be a listed station or a claimant root.
func NewTerritoryGraph(stations []model.StationCode, links []model.TerritoryLink) (*TerritoryGraph, error) {
	g := &TerritoryGraph{
		known:     make(map[model.StationCode]struct{}, len(stations)),
		adjacency: make(map[model.StationCode][]model.StationCode),
	}
	for _, s := range stations {
		if _, dup := g.known[s]; dup {
			continue
		}
		g.known[s] = struct{}{}
		g.stations = append(g.stations, s)
	}
	sort.Slice(g.stations, func(i, j int) bool { return g.stations[i] < g.stations[j] })

	seen := make(map[[2]model.StationCode]struct{}, len(links))
	for _, l := range links {
		for _, end := range []model.StationCode{l.A, l.B} {
			if !g.isNode(end) {
				return nil, fmt.Errorf("%w: %q in link %s", ErrUnknownNode, end, l)
			}
		}
		if l.A == l.B {
			return nil, fmt.Errorf("%w: %s", ErrSelfLink, l)
		}
		key := [2]model.StationCode{l.A, l.B}
		if key[1] < key[0] {
			key[0], key[1] = key[1], key[0]
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		g.links = append(g.links, l)
		g.adjacency[l.A] = append(g.adjacency[l.A], l.B)
		g.adjacency[l.B] = append(g.adjacency[l.B], l.A)
	}
	for node := range g.adjacency {
		n := g.adjacency[node]
		sort.Slice(n, func(i, j int) bool { return n[i] < n[j] })
	}
	return g, nil
}

func (g *TerritoryGraph) isNode(code model.StationCode) bool {
	if _, ok := g.known[code]; ok {
		return true
	}
	return code.IsRoot()
}

// Stations returns the real stations in sorted order.
func (g *TerritoryGraph) Stations() []model.StationCode {
	return append([]model.StationCode(nil), g.stations...)
}

// Links returns the de-duplicated link set in definition order.
func (g *TerritoryGraph) Links() []model.TerritoryLink {
	return append([]model.TerritoryLink(nil), g.links...)
}

// Neighbours returns the nodes one link-hop from node.
func (g *TerritoryGraph) Neighbours(node model.StationCode) []model.StationCode {
	return append([]model.StationCode(nil), g.adjacency[node]...)
}

// AttachedTerritories computes, from current ownership, the stations each
// claimant can reach from its root through stations it owns. Roots are
// start points only and never appear in the result.
func (g *TerritoryGraph) AttachedTerritories(owners OwnerLookup, claimants []model.Claimant) Attached {
	res := make(Attached, len(claimants))
	for _, c := range claimants {
		res[c] = g.attachedTo(owners, c)
	}
	return res
}

func (g *TerritoryGraph) attachedTo(owners OwnerLookup, claimant model.Claimant) StationSet {
	root := model.RootOf(claimant)
	attached := make(StationSet)
	visited := map[model.StationCode]struct{}{root: {}}
	queue := []model.StationCode{root}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range g.adjacency[node] {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			if next.IsRoot() {
				continue
			}
			if owners.Claimant(next) != claimant {
				continue
			}
			attached[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return attached
}

// CanCaptureStation reports whether station borders claimant's connected
// territory: one of its neighbours is the claimant's root or an attached
// station.
func (g *TerritoryGraph) CanCaptureStation(station model.StationCode, claimant model.Claimant, attached Attached) bool {
	root := model.RootOf(claimant)
	mine := attached[claimant]
	for _, n := range g.adjacency[station] {
		if n == root || mine.Has(n) {
			return true
		}
	}
	return false
}

// Unreachable lists stations with no path to any root when every station is
// passable. A valid arena returns nothing.
func (g *TerritoryGraph) Unreachable() []model.StationCode {
	visited := make(map[model.StationCode]struct{})
	var queue []model.StationCode
	for node := range g.adjacency {
		if node.IsRoot() {
			visited[node] = struct{}{}
			queue = append(queue, node)
		}
	}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range g.adjacency[node] {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	var res []model.StationCode
	for _, s := range g.stations {
		if _, ok := visited[s]; !ok {
			res = append(res, s)
		}
	}
	return res
}
