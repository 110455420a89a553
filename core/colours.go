package core

import (
	"github.com/signalsfoundry/territory-controller/model"
)

// NeutralColour is used for unclaimed stations and contested links.
var NeutralColour = model.RGB{64, 64, 64}

// StationColour is the desired colour of one station.
type StationColour struct {
	Station model.StationCode `json:"station"`
	Owner   model.Claimant    `json:"owner"`
	Locked  bool              `json:"locked"`
	Colour  string            `json:"colour"`
}

// LinkColour is the desired colour of one link.
type LinkColour struct {
	A      model.StationCode `json:"a"`
	B      model.StationCode `json:"b"`
	Owner  model.Claimant    `json:"owner"`
	Colour string            `json:"colour"`
}

// Frame is the visualization state derived from ownership. It carries no
// state of its own and is recomputed whenever ownership changes.
type Frame struct {
	MatchTime float64         `json:"match_time"`
	Stations  []StationColour `json:"stations"`
	Links     []LinkColour    `json:"links"`
}

// LockLookup reports whether a station is locked. kb.ClaimLog satisfies it.
type LockLookup interface {
	IsLocked(station model.StationCode) bool
}

// Palette maps claimants to colours.
type Palette map[model.Claimant]model.RGB

// Colour returns the claimant's colour, or NeutralColour.
func (p Palette) Colour(c model.Claimant) model.RGB {
	if rgb, ok := p[c]; ok && c != model.Unclaimed {
		return rgb
	}
	return NeutralColour
}

// PaletteFor builds a palette from arena claimant definitions.
func PaletteFor(claimants []model.ClaimantInfo) Palette {
	p := make(Palette, len(claimants))
	for _, c := range claimants {
		p[c.ID] = c.Colour
	}
	return p
}

// ColourFrame computes station and link colours. A link takes claimant X's
// colour iff both its endpoints are owned by X; a root counts as owned by its
// claimant.
func (g *TerritoryGraph) ColourFrame(owners OwnerLookup, locks LockLookup, palette Palette) Frame {
	frame := Frame{
		Stations: make([]StationColour, 0, len(g.stations)),
		Links:    make([]LinkColour, 0, len(g.links)),
	}
	for _, s := range g.stations {
		owner := owners.Claimant(s)
		locked := false
		if locks != nil {
			locked = locks.IsLocked(s)
		}
		frame.Stations = append(frame.Stations, StationColour{
			Station: s,
			Owner:   owner,
			Locked:  locked,
			Colour:  palette.Colour(owner).Hex(),
		})
	}
	for _, l := range g.links {
		a := nodeOwner(owners, l.A)
		b := nodeOwner(owners, l.B)
		owner := model.Unclaimed
		if a == b {
			owner = a
		}
		frame.Links = append(frame.Links, LinkColour{
			A:      l.A,
			B:      l.B,
			Owner:  owner,
			Colour: palette.Colour(owner).Hex(),
		})
	}
	return frame
}

func nodeOwner(owners OwnerLookup, node model.StationCode) model.Claimant {
	if c, ok := node.RootClaimant(); ok {
		return c
	}
	return owners.Claimant(node)
}
