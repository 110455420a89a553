package model

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidStationCode is returned when a string cannot be used as a station code.
var ErrInvalidStationCode = errors.New("invalid station code")

// StationCode names a capturable point in the arena. Real stations are two
// upper-case ASCII letters; root nodes use the reserved "z<claimant>" form.
type StationCode string

// ParseStationCode validates s as a real (non-root) station code.
func ParseStationCode(s string) (StationCode, error) {
	if len(s) != 2 {
		return "", fmt.Errorf("%w: %q must be two characters", ErrInvalidStationCode, s)
	}
	for i := 0; i < 2; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", fmt.Errorf("%w: %q must be upper-case ASCII", ErrInvalidStationCode, s)
		}
	}
	return StationCode(s), nil
}

// RootOf returns the virtual root node of a claimant.
func RootOf(c Claimant) StationCode {
	return StationCode("z" + strconv.Itoa(int(c)))
}

// IsRoot reports whether code names a claimant root rather than a real station.
func (s StationCode) IsRoot() bool {
	_, ok := s.RootClaimant()
	return ok
}

// RootClaimant returns the claimant whose root this code names.
func (s StationCode) RootClaimant() (Claimant, bool) {
	if len(s) < 2 || s[0] != 'z' {
		return Unclaimed, false
	}
	n, err := strconv.ParseInt(string(s[1:]), 10, 8)
	if err != nil || n < 0 {
		return Unclaimed, false
	}
	return Claimant(n), true
}

func (s StationCode) String() string { return string(s) }

// TerritoryLink is an undirected edge between two stations, or between a
// station and a claimant root.
type TerritoryLink struct {
	A StationCode
	B StationCode
}

// Has reports whether code is one of the link's endpoints.
func (l TerritoryLink) Has(code StationCode) bool {
	return l.A == code || l.B == code
}

// Other returns the endpoint opposite code.
func (l TerritoryLink) Other(code StationCode) StationCode {
	if l.A == code {
		return l.B
	}
	return l.A
}

func (l TerritoryLink) String() string {
	return string(l.A) + "-" + string(l.B)
}
