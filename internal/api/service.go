// Package api serves read-only match queries over gRPC. Messages are protobuf
// well-known types so clients need no generated stubs.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "territory.v1.MatchService"

// Full method names.
const (
	GetOwnershipMethod = "/" + ServiceName + "/GetOwnership"
	GetStationMethod   = "/" + ServiceName + "/GetStation"
	GetClaimLogMethod  = "/" + ServiceName + "/GetClaimLog"
	GetAttachedMethod  = "/" + ServiceName + "/GetAttached"
)

// MatchServiceServer is the server API for territory.v1.MatchService.
type MatchServiceServer interface {
	// GetOwnership returns every station's owner and lock state.
	GetOwnership(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetStation returns one station's owner, lock count and attachment.
	GetStation(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetClaimLog returns the full claim history.
	GetClaimLog(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	// GetAttached returns the stations attached to a claimant's root.
	GetAttached(context.Context, *wrapperspb.Int32Value) (*structpb.ListValue, error)
}

// RegisterMatchServiceServer registers srv on s.
func RegisterMatchServiceServer(s grpc.ServiceRegistrar, srv MatchServiceServer) {
	s.RegisterService(&MatchServiceDesc, srv)
}

// MatchServiceDesc describes territory.v1.MatchService for grpc.Server.
var MatchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOwnership", Handler: getOwnershipHandler},
		{MethodName: "GetStation", Handler: getStationHandler},
		{MethodName: "GetClaimLog", Handler: getClaimLogHandler},
		{MethodName: "GetAttached", Handler: getAttachedHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "territory/v1/match_service.proto",
}

func getOwnershipHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchServiceServer).GetOwnership(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetOwnershipMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MatchServiceServer).GetOwnership(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getStationHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchServiceServer).GetStation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetStationMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MatchServiceServer).GetStation(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getClaimLogHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchServiceServer).GetClaimLog(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetClaimLogMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MatchServiceServer).GetClaimLog(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getAttachedHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchServiceServer).GetAttached(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetAttachedMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MatchServiceServer).GetAttached(ctx, req.(*wrapperspb.Int32Value))
	}
	return interceptor(ctx, in, info, handler)
}
