package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jcmexdev/shoe-market/internal/api/httpx"
	"github.com/jcmexdev/shoe-market/internal/api/ports"
	"github.com/jcmexdev/shoe-market/internal/config"
	"github.com/jcmexdev/shoe-market/internal/ledger"
	"github.com/jcmexdev/shoe-market/internal/ledger/grpcledger"
	"github.com/jcmexdev/shoe-market/internal/ledger/memledger"
	"github.com/jcmexdev/shoe-market/internal/marketplace/catalog"
	"github.com/jcmexdev/shoe-market/internal/marketplace/orders"
	"github.com/jcmexdev/shoe-market/internal/orderlog"
	orderlogsqlite "github.com/jcmexdev/shoe-market/internal/orderlog/sqlite"
	"github.com/jcmexdev/shoe-market/internal/pkg/clock"
	"github.com/jcmexdev/shoe-market/internal/pkg/events"
	"github.com/jcmexdev/shoe-market/internal/pkg/interceptors"
	"github.com/jcmexdev/shoe-market/internal/pkg/telemetry"
	"github.com/jcmexdev/shoe-market/internal/storage"
	"github.com/jcmexdev/shoe-market/internal/storage/memory"
	pebblestore "github.com/jcmexdev/shoe-market/internal/storage/pebble"
	pgstore "github.com/jcmexdev/shoe-market/internal/storage/postgres"
	redisstore "github.com/jcmexdev/shoe-market/internal/storage/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level, err := telemetry.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("marketplace stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdown, err := telemetry.SetupTracer(ctx, cfg.OtelServiceName, cfg.OtelEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialise tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	source, devLedger, closeLedger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	var orderLog orderlog.Repository
	if cfg.OrderLogPath != "" {
		repo, err := orderlogsqlite.Open(cfg.OrderLogPath)
		if err != nil {
			return fmt.Errorf("failed to open order log: %w", err)
		}
		defer repo.Close()
		orderLog = repo
	}

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	cat := catalog.NewService(backend.Bucket("items"))
	orderSvc := orders.NewService(orders.Deps{
		Items:     cat,
		Pending:   backend.Bucket("pending_orders"),
		Completed: backend.Bucket("orders"),
		Verifier:  ledger.NewVerifier(source),
		Clock:     clock.NewSystem(),
		Window:    cfg.ReservationWindow,
		OrderLog:  orderLog,
		Events:    publisher,
	})
	if _, err := orderSvc.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore reservations: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(httpx.NewHandler(cat, orderSvc, devLedger)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("marketplace HTTP running",
			"addr", cfg.HTTPAddr,
			"store", cfg.StoreBackend,
			"reservation_window", cfg.ReservationWindow.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down marketplace")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		b := redisstore.New(cfg.RedisAddr, config.ServiceName)
		if err := b.Ping(ctx); err != nil {
			_ = b.Close()
			return nil, err
		}
		return b, nil
	case config.BackendPebble:
		b, err := pebblestore.Open(cfg.PebbleDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open pebble store: %w", err)
		}
		return b, nil
	case config.BackendPostgres:
		b, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return b, nil
	default:
		slog.Warn("using in-memory store; reservations and orders are lost on restart")
		return memory.New(), nil
	}
}

// openLedger dials the ledger service, or runs an in-process ledger when no
// address is configured. The in-process ledger is also returned as the
// transferer for the development transfer route.
func openLedger(cfg *config.Config) (ledger.BlockSource, ports.LedgerTransferer, func(), error) {
	if cfg.LedgerAddr == "" {
		slog.Warn("LEDGER_ADDR not set; running an in-process development ledger")
		l := memledger.New()
		return l, l, func() {}, nil
	}

	conn, err := grpc.NewClient(cfg.LedgerAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUnaryInterceptor(interceptors.PropagateClientInterceptor()),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not connect to ledger at %s: %w", cfg.LedgerAddr, err)
	}
	return grpcledger.NewClient(conn), nil, func() { _ = conn.Close() }, nil
}
