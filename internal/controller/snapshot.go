package controller

import (
	"time"

	"github.com/signalsfoundry/territory-controller/core"
	"github.com/signalsfoundry/territory-controller/model"
)

// Snapshot is an immutable view of a match published after every tick.
// Readers on other goroutines MUST treat every field as read-only.
type Snapshot struct {
	Arena         string
	MatchTime     time.Duration
	Claimants     []model.ClaimantInfo
	Stations      []model.StationCode
	Owners        map[model.StationCode]model.Claimant
	LockCounts    map[model.StationCode]int
	LockThreshold int
	Attached      map[model.Claimant][]model.StationCode
	Entries       []model.ClaimLogEntry
	Frame         core.Frame
}

// SnapshotSource is implemented by controllers that publish snapshots.
type SnapshotSource interface {
	Snapshot() *Snapshot
}

// Claimant returns the owner of station, or Unclaimed.
func (s *Snapshot) Claimant(station model.StationCode) model.Claimant {
	if owner, ok := s.Owners[station]; ok {
		return owner
	}
	return model.Unclaimed
}

// HasStation reports whether station belongs to the arena.
func (s *Snapshot) HasStation(station model.StationCode) bool {
	_, ok := s.Owners[station]
	return ok
}

// IsLocked reports whether station reached the lock threshold.
func (s *Snapshot) IsLocked(station model.StationCode) bool {
	return s.LockThreshold > 0 && s.LockCounts[station] >= s.LockThreshold
}

// HasClaimant reports whether c competes in the match.
func (s *Snapshot) HasClaimant(c model.Claimant) bool {
	for _, info := range s.Claimants {
		if info.ID == c {
			return true
		}
	}
	return false
}

// Owned returns the stations held by c in sorted order.
func (s *Snapshot) Owned(c model.Claimant) []model.StationCode {
	var res []model.StationCode
	for _, station := range s.Stations {
		if s.Owners[station] == c {
			res = append(res, station)
		}
	}
	return res
}
