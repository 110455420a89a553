package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/territory-controller/model"
)

// StationStatus is the decoded GetStation response.
type StationStatus struct {
	Station   model.StationCode
	Owner     model.Claimant
	Locked    bool
	LockCount int
	Attached  bool
}

// Ownership is the decoded GetOwnership response.
type Ownership struct {
	Arena     string
	MatchTime float64
	Owners    map[model.StationCode]model.Claimant
	Locked    []model.StationCode
}

// Client calls MatchService and decodes the well-known-type responses.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Ownership fetches every station's owner.
func (c *Client) Ownership(ctx context.Context, opts ...grpc.CallOption) (*Ownership, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetOwnershipMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	fields := out.GetFields()
	res := &Ownership{
		Arena:     fields["arena"].GetStringValue(),
		MatchTime: fields["match_time"].GetNumberValue(),
		Owners:    make(map[model.StationCode]model.Claimant),
	}
	for station, v := range fields["owners"].GetStructValue().GetFields() {
		res.Owners[model.StationCode(station)] = model.Claimant(int8(v.GetNumberValue()))
	}
	for _, v := range fields["locked"].GetListValue().GetValues() {
		res.Locked = append(res.Locked, model.StationCode(v.GetStringValue()))
	}
	return res, nil
}

// Station fetches one station's status.
func (c *Client) Station(ctx context.Context, station model.StationCode, opts ...grpc.CallOption) (*StationStatus, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStationMethod, wrapperspb.String(string(station)), out, opts...); err != nil {
		return nil, err
	}
	f := out.GetFields()
	return &StationStatus{
		Station:   model.StationCode(f["station"].GetStringValue()),
		Owner:     model.Claimant(int8(f["owner"].GetNumberValue())),
		Locked:    f["locked"].GetBoolValue(),
		LockCount: int(f["lock_count"].GetNumberValue()),
		Attached:  f["attached"].GetBoolValue(),
	}, nil
}

// ClaimLog fetches the full claim history.
func (c *Client) ClaimLog(ctx context.Context, opts ...grpc.CallOption) ([]model.ClaimLogEntry, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, GetClaimLogMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	entries := make([]model.ClaimLogEntry, 0, len(out.GetValues()))
	for i, v := range out.GetValues() {
		f := v.GetStructValue().GetFields()
		if f == nil {
			return nil, fmt.Errorf("claim log item %d is not an object", i)
		}
		entries = append(entries, model.ClaimLogEntry{
			Station:  model.StationCode(f["station"].GetStringValue()),
			Claimant: model.Claimant(int8(f["claimant"].GetNumberValue())),
			Time:     model.SecondsToDuration(f["time"].GetNumberValue()),
		})
	}
	return entries, nil
}

// Attached fetches the stations attached to claimant's root.
func (c *Client) Attached(ctx context.Context, claimant model.Claimant, opts ...grpc.CallOption) ([]model.StationCode, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, GetAttachedMethod, wrapperspb.Int32(int32(claimant)), out, opts...); err != nil {
		return nil, err
	}
	res := make([]model.StationCode, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		res = append(res, model.StationCode(v.GetStringValue()))
	}
	return res, nil
}
