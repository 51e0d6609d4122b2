/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the seat reservation ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment, flags)
  2. Build the zap logger
  3. Open the store (sqlite, postgres or memory)
  4. Start the audit backend and its recorder
  5. Wire engine, directory and API handler
  6. Seed the admin account if configured
  7. Start the reconciliation scheduler
  8. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port                HTTP server port (PORT, default 8080)
  -store               sqlite | postgres | memory (STORE_DRIVER)
  -db                  SQLite path or Postgres URL (DATABASE_URL)
  -lock-timeout        Max wait for a row lock (LOCK_TIMEOUT)
  -refund-percent      Refund on cancellation (REFUND_PERCENT, default 80)
  -audit               channel | redis | kafka (AUDIT_BACKEND)
  -log-level           debug | info | warn | error (LOG_LEVEL)
  -reconcile-interval  0 disables (RECONCILE_INTERVAL, default 1h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections, wait for active requests (30s timeout)
  3. Close the audit backend, then wait for the recorder to drain
  4. Close the store

EXAMPLES:
  # Run with file database
  JWT_SECRET=dev ./server -db="./data/seats.db"

  # Run against Postgres with Redis Streams audit
  JWT_SECRET=dev ./server -store=postgres -db="postgres://localhost/seats" \
      -audit=redis   # plus REDIS_ADDR

SEE ALSO:
  - config/config.go: All settings
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/seat-ledger/api"
	"github.com/warp/seat-ledger/audit"
	"github.com/warp/seat-ledger/config"
	"github.com/warp/seat-ledger/logging"
	"github.com/warp/seat-ledger/reservation"
	memstore "github.com/warp/seat-ledger/reservation/store"
	"github.com/warp/seat-ledger/store/postgres"
	"github.com/warp/seat-ledger/store/sqlite"
)

// backingStore is everything the server needs from one database.
type backingStore interface {
	reservation.Store
	reservation.Catalog
	reservation.AuditStore
	reservation.ReconcileStore
}

type pinger interface {
	Ping(ctx context.Context) error
}

type closer interface {
	Close() error
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	if c, ok := store.(closer); ok {
		defer c.Close()
	}
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	// Audit trail: publisher on the request path, recorder in the background
	backend, err := audit.NewBackend(audit.BackendConfig{
		Kind:         cfg.AuditBackend,
		RedisAddr:    cfg.RedisAddr,
		KafkaBrokers: cfg.KafkaBrokers,
		ConsumerName: hostname(),
	}, audit.NewZapLogger(logger.Named("watermill")))
	if err != nil {
		return fmt.Errorf("audit backend: %w", err)
	}
	recorder := audit.NewRecorder(backend.Subscriber, store, logger)
	if err := recorder.Start(context.Background()); err != nil {
		backend.Close()
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("closing audit backend", zap.Error(err))
		}
		recorder.Wait()
	}()
	sink := audit.NewPublisher(backend.Publisher)

	// Core
	engine := reservation.NewEngine(store, reservation.Options{
		RefundPercent:             &cfg.RefundPercent,
		BlockCancelAfterDeparture: cfg.BlockCancelAfterDeparture,
		Audit:                     sink,
		Logger:                    logger,
	})
	directory := reservation.NewDirectory(store, store, sink, logger)

	if cfg.AdminEmail != "" {
		if err := seedAdmin(ctx, directory, cfg); err != nil {
			return err
		}
	}

	// Initialize handler
	auth := api.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	scheduler := api.NewReconciliationScheduler(store, logger)
	scheduler.CheckInterval = cfg.ReconcileInterval
	scheduler.Enabled = cfg.ReconcileInterval > 0

	handler := api.NewHandler(engine, directory, store, auth, logger)
	handler.Audit = store
	handler.Scheduler = scheduler
	if p, ok := store.(pinger); ok {
		handler.Ping = p.Ping
	}

	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (backingStore, error) {
	switch cfg.StoreDriver {
	case "postgres":
		return postgres.New(ctx, cfg.DatabaseURL, cfg.LockTimeout)
	case "memory":
		return memstore.NewMemory(), nil
	default:
		return sqlite.New(cfg.DatabaseURL, cfg.LockTimeout)
	}
}

// seedAdmin creates the configured admin once; later starts find it.
func seedAdmin(ctx context.Context, directory *reservation.Directory, cfg config.Config) error {
	_, err := directory.RegisterUser(ctx, reservation.NewUser{
		Name:     "Administrator",
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Role:     reservation.RoleAdmin,
	})
	if err != nil && !errors.Is(err, reservation.ErrAlreadyExists) {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "seat-ledger"
	}
	return name
}
