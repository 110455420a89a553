package api

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/territory-controller/model"
)

var (
	// ErrUnknownStation is returned for a well-formed code outside the arena.
	ErrUnknownStation = errors.New("unknown station")
	// ErrUnknownClaimant is returned for a claimant id not in the match.
	ErrUnknownClaimant = errors.New("unknown claimant")
	// ErrNotReady is returned before the controller published its first snapshot.
	ErrNotReady = errors.New("match not started")
)

// ToStatusError maps match errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrUnknownStation),
		errors.Is(err, ErrUnknownClaimant):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, model.ErrInvalidStationCode):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ErrNotReady):
		return status.Error(codes.Unavailable, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
