package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseStationCode(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{in: "PN"},
		{in: "EY"},
		{in: "P", wantErr: true},
		{in: "PNX", wantErr: true},
		{in: "pn", wantErr: true},
		{in: "z0", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseStationCode(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidStationCode) {
				t.Fatalf("ParseStationCode(%q) error = %v, want ErrInvalidStationCode", tc.in, err)
			}
			continue
		}
		if err != nil || string(got) != tc.in {
			t.Fatalf("ParseStationCode(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestRoots(t *testing.T) {
	if RootOf(Zone1) != "z1" {
		t.Fatalf("RootOf(ZONE_1) = %q", RootOf(Zone1))
	}
	c, ok := StationCode("z1").RootClaimant()
	if !ok || c != Zone1 {
		t.Fatalf("RootClaimant(z1) = %v, %v", c, ok)
	}
	for _, code := range []StationCode{"PN", "z", "zz", "z-1"} {
		if code.IsRoot() {
			t.Fatalf("%q reported as a root", code)
		}
	}
}

func TestClaimantString(t *testing.T) {
	if Unclaimed.String() != "UNCLAIMED" || Zone0.String() != "ZONE_0" {
		t.Fatalf("unexpected names %q %q", Unclaimed, Zone0)
	}
	if (RGB{255, 0, 16}).Hex() != "#ff0010" {
		t.Fatalf("Hex() = %q", RGB{255, 0, 16}.Hex())
	}
}

func TestClaimLogEntryTimeInSeconds(t *testing.T) {
	b, err := json.Marshal(ClaimLogEntry{Station: "PN", Claimant: Zone0, Time: 2500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"station":"PN","claimant":0,"time":2.5}` {
		t.Fatalf("Marshal = %s", b)
	}

	var e ClaimLogEntry
	if err := json.Unmarshal([]byte(`{"station":"EY","claimant":-1,"time":0.1}`), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.Station != "EY" || e.Claimant != Unclaimed || e.Time != 100*time.Millisecond {
		t.Fatalf("Unmarshal = %+v", e)
	}
}

func TestLinkEndpoints(t *testing.T) {
	l := TerritoryLink{A: "z0", B: "PN"}
	if !l.Has("PN") || l.Has("EY") || l.Other("PN") != "z0" || l.String() != "z0-PN" {
		t.Fatalf("link helpers misbehave for %v", l)
	}
}
