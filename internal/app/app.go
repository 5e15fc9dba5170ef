// Package app wires the application together: configuration, storage,
// orchestrator, catalog-sync worker, and the HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tillworks/lanepos/internal/api"
	"github.com/tillworks/lanepos/internal/catalogsync"
	"github.com/tillworks/lanepos/internal/checkout"
	"github.com/tillworks/lanepos/internal/storage/postgres"
	"github.com/tillworks/lanepos/pkg/health"
	"github.com/tillworks/lanepos/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the catalog-sync
// worker, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	db := postgres.NewDB(pool)
	stock := postgres.NewInventoryLedger(db)
	orders := postgres.NewOrderRepository(db)
	payments := postgres.NewPaymentRepository(db)
	refunds := postgres.NewRefundRepository(db)
	customers := postgres.NewCustomerRepository(db)
	drawers := postgres.NewDrawerRepository(db)
	syncJobs := postgres.NewSyncJobStore(db)

	newID := func() string { return uuid.New().String() }

	// Checkout orchestrator with the catalog-sync outbox.
	syncQueue := catalogsync.NewQueue(syncJobs, newID, time.Now)
	orchestrator := checkout.New(checkout.Deps{
		Tx:        db,
		Stock:     stock,
		Orders:    orders,
		Payments:  payments,
		Refunds:   refunds,
		Customers: customers,
		Drawers:   drawers,
		Sync:      syncQueue,
		Logger:    lg.Named("checkout"),
	}, newID, time.Now)

	// Catalog-sync worker: pushes committed outbox jobs to the platform.
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	workerDone := make(chan struct{})
	if cfg.Sync.URL != "" {
		worker := catalogsync.NewWorker(syncJobs,
			catalogsync.NewHTTPPusher(http.DefaultClient, cfg.Sync.URL),
			lg.Named("catalogsync"),
			catalogsync.WorkerConfig{
				PollInterval: cfg.Sync.PollInterval,
				BatchSize:    cfg.Sync.BatchSize,
				Concurrency:  cfg.Sync.Concurrency,
				MaxAttempts:  cfg.Sync.MaxAttempts,
			},
		)
		go func() {
			defer close(workerDone)
			if err := worker.Run(workerCtx); err != nil {
				lg.Error("catalog sync worker stopped", zap.Error(err))
			}
		}()
	} else {
		close(workerDone)
		lg.Info("Catalog sync push disabled: no sync URL configured")
	}

	// HTTP handlers.
	h := api.NewHandler(orchestrator, orders, payments, refunds, stock)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("lanepos-api"),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		stopWorker()
		<-workerDone
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
