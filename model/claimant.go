package model

import "fmt"

// Claimant identifies a competing side. It travels on the radio as an int8.
type Claimant int8

// Unclaimed marks a station with no owner.
const Unclaimed Claimant = -1

// Nominal claimants of a two-sided match.
const (
	Zone0 Claimant = 0
	Zone1 Claimant = 1
)

func (c Claimant) String() string {
	if c == Unclaimed {
		return "UNCLAIMED"
	}
	return fmt.Sprintf("ZONE_%d", int8(c))
}

// RGB is an 8-bit colour used by the visualization hook.
type RGB [3]uint8

// Hex formats the colour as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// ClaimantInfo describes one competing side of an arena.
type ClaimantInfo struct {
	ID     Claimant
	Name   string
	Colour RGB
}
