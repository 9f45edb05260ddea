package health

import (
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer exposes the standard gRPC health service. Every chain is a
// service name; the empty name reports the whole process.
type GRPCServer struct {
	health *grpchealth.Server
	server *grpc.Server
	port   int
}

// NewGRPCServer creates a gRPC health server that follows monitor.
func NewGRPCServer(monitor *Monitor, port int) *GRPCServer {
	s := &GRPCServer{
		health: grpchealth.NewServer(),
		server: grpc.NewServer(),
		port:   port,
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	monitor.OnUpdate(s.Sync)
	return s
}

// Health returns the underlying health service.
func (s *GRPCServer) Health() healthpb.HealthServer {
	return s.health
}

// Sync publishes the serving status of every chain in report.
func (s *GRPCServer) Sync(report map[string]ChainHealth) {
	for chain, h := range report {
		s.health.SetServingStatus(chain, servingStatus(h.Status))
	}
	s.health.SetServingStatus("", servingStatus(Worst(report)))
}

// Start listens on the configured port and serves until Stop.
func (s *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks every service as not serving and stops the server.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func servingStatus(status SystemStatus) healthpb.HealthCheckResponse_ServingStatus {
	if status == StatusCritical {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
