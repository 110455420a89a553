package model

import (
	"encoding/json"
	"math"
	"time"
)

// ClaimLogEntry records one ownership change. Time is match time, the
// duration since the match started.
type ClaimLogEntry struct {
	Station  StationCode
	Claimant Claimant
	Time     time.Duration
}

type claimLogEntryJSON struct {
	Station  StationCode `json:"station"`
	Claimant Claimant    `json:"claimant"`
	Time     float64     `json:"time"`
}

// MarshalJSON encodes Time as seconds.
func (e ClaimLogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(claimLogEntryJSON{
		Station:  e.Station,
		Claimant: e.Claimant,
		Time:     e.Time.Seconds(),
	})
}

// UnmarshalJSON decodes Time from seconds.
func (e *ClaimLogEntry) UnmarshalJSON(b []byte) error {
	var raw claimLogEntryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Station = raw.Station
	e.Claimant = raw.Claimant
	e.Time = SecondsToDuration(raw.Time)
	return nil
}

// TokenLogEntry records a token entering a scoring zone. Zone is -1 when the
// token left every zone.
type TokenLogEntry struct {
	Zone       int
	TokenIndex int
	TokenValue int
	Time       time.Duration
}

type tokenLogEntryJSON struct {
	Zone       int     `json:"zone"`
	TokenIndex int     `json:"token_index"`
	TokenValue int     `json:"token_value"`
	Time       float64 `json:"time"`
}

// MarshalJSON encodes Time as seconds.
func (e TokenLogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenLogEntryJSON{
		Zone:       e.Zone,
		TokenIndex: e.TokenIndex,
		TokenValue: e.TokenValue,
		Time:       e.Time.Seconds(),
	})
}

// UnmarshalJSON decodes Time from seconds.
func (e *TokenLogEntry) UnmarshalJSON(b []byte) error {
	var raw tokenLogEntryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = TokenLogEntry{
		Zone:       raw.Zone,
		TokenIndex: raw.TokenIndex,
		TokenValue: raw.TokenValue,
		Time:       SecondsToDuration(raw.Time),
	}
	return nil
}

// SecondsToDuration converts float seconds back to a Duration, rounding to the
// nearest nanosecond.
func SecondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
