package health

import (
	"context"
	"fmt"
	"net"

	"conversation-analytics/backend/pkg/logger"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServeGRPC exposes the standard gRPC health service on addr until ctx is done.
// The serving status follows the checker.
func ServeGRPC(ctx context.Context, addr string, checker *Checker, log *logger.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	checker.BindGRPC(hs)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		server.GracefulStop()
	}()

	log.Info("gRPC health server listening", "addr", addr)
	if err := server.Serve(lis); err != nil {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}
