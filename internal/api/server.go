package api

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/territory-controller/internal/controller"
	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/internal/observability"
)

// Server bundles the gRPC server with its health service so callers can flip
// serving status on shutdown.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewServer builds a gRPC server exposing MatchService and the standard
// health service. collector may be nil.
func NewServer(source controller.SnapshotSource, log logging.Logger, collector *observability.APICollector) *Server {
	if log == nil {
		log = logging.Noop()
	}
	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	if collector != nil {
		interceptors = append(interceptors, collector.UnaryServerInterceptor())
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	)
	RegisterMatchServiceServer(srv, NewMatchService(source, log))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{Server: srv, Health: hs}
}

// Stop marks the service NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	s.Health.Shutdown()
	s.Server.GracefulStop()
}
