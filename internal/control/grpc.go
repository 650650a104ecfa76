package control

import (
	"fmt"
	"net"

	"github.com/vietddude/opswatch/internal/core/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// serviceName is the gRPC health service name for one endpoint.
func serviceName(endpoint domain.EndpointName) string {
	return "opswatch." + string(endpoint)
}

// grpcHealth exposes the System Health View over the standard gRPC health
// protocol. The empty service name carries the overall verdict.
type grpcHealth struct {
	port   int
	server *grpc.Server
	health *health.Server
}

func newGRPCHealth(port int) *grpcHealth {
	hs := health.NewServer()
	// Unknown until the first reachability poll lands.
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, ep := range []domain.EndpointName{domain.EndpointReachability, domain.EndpointAPIStatus, domain.EndpointChannel} {
		hs.SetServingStatus(serviceName(ep), healthpb.HealthCheckResponse_NOT_SERVING)
	}

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &grpcHealth{port: port, server: srv, health: hs}
}

// Start listens and serves until Stop.
func (g *grpcHealth) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	return g.Serve(lis)
}

// Serve serves on an existing listener.
func (g *grpcHealth) Serve(lis net.Listener) error {
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop marks every service NOT_SERVING and stops the server.
func (g *grpcHealth) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}

func (g *grpcHealth) SetOverall(healthy bool) {
	g.health.SetServingStatus("", servingStatus(healthy))
}

func (g *grpcHealth) SetEndpoint(endpoint domain.EndpointName, up bool) {
	g.health.SetServingStatus(serviceName(endpoint), servingStatus(up))
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
