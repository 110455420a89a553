package radio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/signalsfoundry/territory-controller/model"
)

func twoSides(c model.Claimant) bool { return c == model.Zone0 || c == model.Zone1 }

func TestParseClaim(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want ParseResult
	}{
		{"begin", []byte{0x01, 0x00}, ParsedClaim{Claimant: model.Zone1, Conclude: false}},
		{"conclude", []byte{0x00, 0x01}, ParsedClaim{Claimant: model.Zone0, Conclude: true}},
		{"empty", nil, nil},
		{"too long", []byte{0x00, 0x01, 0x00}, nil},
		{"unknown claimant", []byte{0x07, 0x00}, nil},
		{"negative claimant", []byte{0xff, 0x00}, nil},
		{"bad flag", []byte{0x00, 0x02}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseClaim(tt.data, twoSides)
			if tt.want == nil {
				m, ok := got.(Malformed)
				if !ok {
					t.Fatalf("ParseClaim(%v) = %#v, want Malformed", tt.data, got)
				}
				if m.Size != len(tt.data) || m.Reason == "" {
					t.Fatalf("Malformed = %+v", m)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("ParseClaim(%v) = %#v, want %#v", tt.data, got, tt.want)
			}
		})
	}
}

func TestEncodeClaimMatchesParse(t *testing.T) {
	pkt := EncodeClaim(model.Zone1, true)
	if !bytes.Equal(pkt, []byte{0x01, 0x01}) {
		t.Fatalf("EncodeClaim = %v", pkt)
	}
	if got := ParseClaim(pkt, nil); got != (ParsedClaim{Claimant: model.Zone1, Conclude: true}) {
		t.Fatalf("ParseClaim(EncodeClaim) = %#v", got)
	}
}

func TestBroadcastWireFormat(t *testing.T) {
	pkt, err := EncodeBroadcast("PN", model.Unclaimed)
	if err != nil {
		t.Fatalf("EncodeBroadcast: %v", err)
	}
	if !bytes.Equal(pkt, []byte{'P', 'N', 0xff}) {
		t.Fatalf("EncodeBroadcast = %v, want [P N 0xff]", pkt)
	}

	station, owner, err := DecodeBroadcast([]byte{'E', 'Y', 0x01})
	if err != nil {
		t.Fatalf("DecodeBroadcast: %v", err)
	}
	if station != "EY" || owner != model.Zone1 {
		t.Fatalf("DecodeBroadcast = %s %v", station, owner)
	}

	if _, _, err := DecodeBroadcast([]byte{'E', 'Y'}); !errors.Is(err, ErrBadBroadcast) {
		t.Fatalf("short broadcast error = %v", err)
	}
	if _, err := EncodeBroadcast("z0", model.Zone0); err != nil {
		t.Fatalf("two-byte root code should still encode: %v", err)
	}
	if _, err := EncodeBroadcast("ABC", model.Zone0); err == nil {
		t.Fatalf("three-byte station must not encode")
	}
}
