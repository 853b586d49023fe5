package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/jcmexdev/shoe-market/internal/ledger/grpcledger"
	"github.com/jcmexdev/shoe-market/internal/ledger/memledger"
	"github.com/jcmexdev/shoe-market/internal/pkg/interceptors"
	"github.com/jcmexdev/shoe-market/internal/pkg/telemetry"
)

func main() {
	level, err := telemetry.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		slog.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx,
		getEnv("OTEL_SERVICE_NAME", "ledger-service"),
		os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	)
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	addr := ":" + getEnv("PORT", "9091")
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("failed to listen", "addr", addr, "error", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(interceptors.TraceServerInterceptor()),
	)
	grpcledger.RegisterLedgerServer(grpcServer, grpcledger.NewServer(memledger.New()))

	go func() {
		<-ctx.Done()
		slog.Info("shutting down ledger service")
		grpcServer.GracefulStop()
	}()

	slog.Info("ledger service gRPC running", "addr", addr)

	if err := grpcServer.Serve(lis); err != nil {
		slog.Error("failed to serve", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
