// Package grpc exposes the internal health surface. Typed internal RPCs ride
// the service mesh contract repo and are registered here when present.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/agentcourt/clearinghouse/internal/application"
)

type LedgerInternalServer struct {
	grpc_health_v1.UnimplementedHealthServer
	service *application.Service
}

func NewLedgerInternalServer(service *application.Service) *LedgerInternalServer {
	return &LedgerInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc *LedgerInternalServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func (s *LedgerInternalServer) status() grpc_health_v1.HealthCheckResponse_ServingStatus {
	if s.service == nil {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

func (s *LedgerInternalServer) Check(_ context.Context, _ *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{Status: s.status()}, nil
}

func (s *LedgerInternalServer) Watch(_ *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: s.status()})
}
