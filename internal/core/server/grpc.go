// Package server provides gRPC server lifecycle management.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/net/netutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/kaannakiin/decisionkeeper/internal/core/api"
	"github.com/kaannakiin/decisionkeeper/internal/core/auth"
	"github.com/kaannakiin/decisionkeeper/internal/core/config"
)

// shutdownTimeout bounds GracefulStop before in-flight calls are cut.
const shutdownTimeout = 30 * time.Second

// Health service methods are reachable without an API key.
var healthMethods = []string{
	"/grpc.health.v1.Health/Check",
	"/grpc.health.v1.Health/List",
}

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	config *config.DecisionAPIConfig
	logger *slog.Logger
}

// NewGRPCServer creates the server with logging, timeout and (when
// authenticator is non-nil) auth interceptors, and registers the decision
// and health services.
func NewGRPCServer(cfg *config.DecisionAPIConfig, service api.DecisionAPIServer, authenticator *auth.Authenticator, logger *slog.Logger) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	interceptors := []grpc.UnaryServerInterceptor{
		LoggingInterceptor(logger),
		TimeoutInterceptor(cfg.RequestTimeout),
	}
	if authenticator != nil {
		interceptors = append(interceptors, authenticator.UnaryInterceptor(healthMethods...))
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptors...),
		// Struct encoding roughly doubles a tree's JSON size.
		grpc.MaxRecvMsgSize(2*cfg.MaxTreeBytes+64*1024),
	)
	api.RegisterDecisionAPIServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
		logger: logger,
	}, nil
}

// Start binds the configured address and serves until Shutdown.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	s.logger.Info("decision API listening", "addr", listener.Addr().String())
	return s.Serve(listener)
}

// Serve accepts connections on listener, capped at MaxConnections.
func (s *GRPCServer) Serve(listener net.Listener) error {
	if s.config.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.config.MaxConnections)
	}
	return s.server.Serve(listener)
}

// Shutdown marks the server NOT_SERVING and stops it gracefully, forcing
// a stop when ctx ends or after 30 seconds.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
