package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Version is the release of the binary, overridden at build time
var Version = "1.0.0"

// ScraperService is the health service name reporting the scheduled runs
const ScraperService = "sameep.Scraper"

// GRPCServer serves the standard gRPC health protocol. The overall status
// is SERVING while the process runs; ScraperService follows the outcome of
// the last scheduled run.
type GRPCServer struct {
	Logger logrus.FieldLogger

	server *grpc.Server
	health *health.Server

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// NewGRPCServer creates the server with health and reflection registered
func NewGRPCServer(logger logrus.FieldLogger) *GRPCServer {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)

	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(ScraperService, healthpb.HealthCheckResponse_SERVING)

	return &GRPCServer{
		Logger: logger.WithField("component", "grpc"),
		server: s,
		health: h,
	}
}

// Serve accepts connections on lis until ctx is done
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	s.Logger.Infof("gRPC server listening on %s", lis.Addr())
	return s.server.Serve(lis)
}

// ListenAndServe listens on the TCP port and serves until ctx is done
func (s *GRPCServer) ListenAndServe(ctx context.Context, port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// ReportRun records the outcome of a scheduled run
func (s *GRPCServer) ReportRun(at time.Time, err error) {
	s.mu.Lock()
	s.lastRun, s.lastErr = at, err
	s.mu.Unlock()

	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ScraperService, status)
}

// LastRun returns the time and error of the last reported run
func (s *GRPCServer) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// GracefulStop marks everything as not serving and stops the server
func (s *GRPCServer) GracefulStop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
