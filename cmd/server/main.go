package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nanahara/auction-sheet-extractor/internal/config"
	"github.com/nanahara/auction-sheet-extractor/internal/handler"
	"github.com/nanahara/auction-sheet-extractor/internal/middleware"
	"github.com/nanahara/auction-sheet-extractor/internal/pipeline"
	"github.com/nanahara/auction-sheet-extractor/internal/store"
	"github.com/nanahara/auction-sheet-extractor/internal/tracing"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: 0.1,
		}); err != nil {
			logger.Error("failed to init sentry", slog.String("error", err.Error()))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()
	tracingShutdown, err := tracing.Init(ctx, "auction-sheet-extractor", cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		logger.Warn("failed to init tracing", slog.String("error", err.Error()))
	} else {
		defer tracingShutdown(ctx)
	}

	records, db := newRecordStore(ctx, cfg, logger)
	if db != nil {
		defer db.Close()
	}
	objects := newObjectStore(cfg, logger)

	orchestrator := pipeline.New(cfg, records, objects, logger, pipeline.WithSyncMode(cfg.SyncPipelineMode))
	orchestrator.Start()
	defer orchestrator.Stop()

	healthHandler := handler.NewHealthHandler(db)
	ingestHandler := handler.NewIngestHandler(orchestrator, objects, records, logger, cfg.UploadMaxSizeMB)
	debugHandler := handler.NewDebugHandler(orchestrator, orchestrator.Notifier(), logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(logger))

	r.Get("/healthz", healthHandler.Health)
	r.Get("/readyz", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle(cfg.MetricsPath, promhttp.Handler())

	r.Post("/ingest", ingestHandler.Ingest)

	if cfg.DebugEndpointsEnabled {
		r.Route("/debug", func(r chi.Router) {
			r.Get("/pipeline", debugHandler.PipelineStats)
			r.Get("/stream", debugHandler.Stream)
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server_starting",
			slog.Int("port", cfg.Port),
			slog.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server_error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", slog.String("error", err.Error()))
	}

	logger.Info("server_stopped")
}

// newRecordStore connects to Postgres when DATABASE_URL is configured,
// falling back to the in-memory RecordStore otherwise — the same
// client-absent degrade idiom the teacher uses for its optional service
// clients, generalized here to the persistence layer itself so the
// pipeline can run standalone in development.
func newRecordStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.RecordStore, *pgxpool.Pool) {
	if cfg.DatabaseURL == "" {
		logger.Warn("database_url_unset_using_memory_store")
		return store.NewMemoryRecordStore(), nil
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to parse database config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	dbConfig.MaxConns = int32(cfg.DBMaxConns)
	dbConfig.MinConns = int32(cfg.DBMinConns)
	dbConfig.MaxConnLifetime = cfg.DBMaxConnLife

	db, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := db.Ping(ctx); err != nil {
		logger.Error("failed to ping database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("database_connected")
	return store.NewPgxRecordStore(db), db
}

// newObjectStore returns the in-memory ObjectStore. No S3/object-storage
// SDK is present anywhere in the retrieved corpus (checked every go.mod
// under _examples/), so this port has no real bucket client to construct
// here; the interface boundary is ready for one if it's ever added.
func newObjectStore(cfg *config.Config, logger *slog.Logger) store.ObjectStore {
	if cfg.S3Endpoint != "" {
		logger.Warn("s3_endpoint_configured_but_no_client_wired", slog.String("endpoint", cfg.S3Endpoint))
	}
	return store.NewMemoryObjectStore()
}
