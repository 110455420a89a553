// Package radio carries claim packets from robots to stations and ownership
// broadcasts back. The wire format is shared with robot-side client code and
// must stay byte-compatible.
package radio

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/territory-controller/model"
)

const (
	// ClaimPacketSize is int8 claimant followed by uint8 conclude flag.
	ClaimPacketSize = 2
	// BroadcastPacketSize is a two-byte ASCII station code followed by int8 owner.
	BroadcastPacketSize = 3
)

// ErrBadBroadcast is returned by DecodeBroadcast for packets of the wrong shape.
var ErrBadBroadcast = errors.New("malformed broadcast packet")

// ParseResult is the outcome of parsing one claim packet: either a
// ParsedClaim or a Malformed.
type ParseResult interface {
	parseResult()
}

// ParsedClaim is a well-formed begin (Conclude false) or conclude claim.
type ParsedClaim struct {
	Claimant model.Claimant
	Conclude bool
}

// Malformed describes a packet that was discarded.
type Malformed struct {
	Reason string
	Size   int
}

func (ParsedClaim) parseResult() {}
func (Malformed) parseResult()   {}

func (m Malformed) String() string {
	return fmt.Sprintf("malformed packet (%d bytes): %s", m.Size, m.Reason)
}

// ParseClaim decodes a claim packet. known reports whether a claimant id is
// part of the match; a nil known accepts any non-negative id.
func ParseClaim(data []byte, known func(model.Claimant) bool) ParseResult {
	if len(data) != ClaimPacketSize {
		return Malformed{Reason: fmt.Sprintf("want %d bytes", ClaimPacketSize), Size: len(data)}
	}
	claimant := model.Claimant(int8(data[0]))
	if claimant < 0 {
		return Malformed{Reason: fmt.Sprintf("negative claimant %d", claimant), Size: len(data)}
	}
	if known != nil && !known(claimant) {
		return Malformed{Reason: fmt.Sprintf("unknown claimant %d", claimant), Size: len(data)}
	}
	switch data[1] {
	case 0:
		return ParsedClaim{Claimant: claimant, Conclude: false}
	case 1:
		return ParsedClaim{Claimant: claimant, Conclude: true}
	default:
		return Malformed{Reason: fmt.Sprintf("conclude flag %d is not 0 or 1", data[1]), Size: len(data)}
	}
}

// EncodeClaim builds the robot-side claim packet.
func EncodeClaim(claimant model.Claimant, conclude bool) []byte {
	flag := byte(0)
	if conclude {
		flag = 1
	}
	return []byte{byte(int8(claimant)), flag}
}

// EncodeBroadcast builds the ownership broadcast for one station.
func EncodeBroadcast(station model.StationCode, owner model.Claimant) ([]byte, error) {
	if len(station) != 2 {
		return nil, fmt.Errorf("encode broadcast: %w: %q", model.ErrInvalidStationCode, station)
	}
	return []byte{station[0], station[1], byte(int8(owner))}, nil
}

// DecodeBroadcast is the robot-side inverse of EncodeBroadcast.
func DecodeBroadcast(data []byte) (model.StationCode, model.Claimant, error) {
	if len(data) != BroadcastPacketSize {
		return "", model.Unclaimed, fmt.Errorf("%w: %d bytes", ErrBadBroadcast, len(data))
	}
	code, err := model.ParseStationCode(string(data[:2]))
	if err != nil {
		return "", model.Unclaimed, fmt.Errorf("%w: %w", ErrBadBroadcast, err)
	}
	return code, model.Claimant(int8(data[2])), nil
}
