package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bimakw/vesting-indexer/internal/application/services"
	"github.com/bimakw/vesting-indexer/internal/config"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/cache"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/database"
	"github.com/bimakw/vesting-indexer/internal/infrastructure/feed"
	"github.com/bimakw/vesting-indexer/internal/presentation/handlers"
	"github.com/bimakw/vesting-indexer/internal/presentation/middleware"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Setup logger
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	logger.Info("Starting vesting-indexer",
		zap.String("feed_url", cfg.Feed.URL),
		zap.String("community", cfg.Chain.CommunityID),
		zap.Int("genesis_files", len(cfg.Feed.GenesisFiles)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return 1
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := db.Migrate(ctx); err != nil {
			logger.Error("Failed to run migrations", zap.Error(err))
			return 1
		}
	}

	// Connect to Redis (optional)
	var (
		snapshots    services.SnapshotCache
		cacheChecker handlers.HealthChecker
	)
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Failed to connect to Redis, running without snapshot cache", zap.Error(err))
		} else {
			defer redisCache.Close()
			snapshots = cache.NewVestingSnapshotCache(redisCache)
			cacheChecker = redisCache
		}
	}

	store := database.NewStore(db.DB())
	transactor := database.NewTransactor(db.DB())

	// Pipeline
	converter := services.NewVestingConverter(store.Vesting, store.Balances, snapshots, cfg.Chain, logger)
	tracker := services.NewProposalTracker(store.Proposals, cfg.Chain, logger)
	dispersal := services.NewDispersalService(converter, tracker, cfg.Chain, cfg.Pipeline, logger)
	importer := services.NewGenesisImporter(store, cfg.Pipeline, logger)

	var genesis services.GenesisSource
	if files := genesisFiles(cfg.Feed.GenesisFiles); len(files) > 0 {
		reader := feed.NewGenesisFileReader(files...)
		defer reader.Close()
		genesis = reader
	}

	subscriber := feed.NewWSBlockSubscriber(cfg.Feed.URL, feed.WSConfigFrom(cfg.Feed), logger)

	indexerService := services.NewIndexerService(
		store.ServiceMeta,
		transactor,
		importer,
		genesis,
		dispersal,
		subscriber,
		logger,
	)

	// Ops server comes up before genesis so probes answer during a long import
	healthHandler := handlers.NewHealthHandler(db, cacheChecker, indexerService)
	statusHandler := handlers.NewStatusHandler(store.ServiceMeta, indexerService, logger)
	server := newOpsServer(cfg.Ops, healthHandler, statusHandler, logger)

	go func() {
		logger.Info("Ops server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Ops server error", zap.Error(err))
		}
	}()
	defer shutdownServer(server, cfg.Ops, logger)

	if err := indexerService.Start(ctx); err != nil {
		logger.Error("Failed to start indexer", zap.Error(err))
		return 1
	}
	defer indexerService.Stop()

	// Wait for shutdown signal or a fatal pipeline error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal, stopping indexer...", zap.String("signal", sig.String()))
		return 0
	case err := <-indexerService.Errors():
		logger.Error("Indexer failed, exiting", zap.Error(err))
		return 1
	}
}

func newOpsServer(cfg config.OpsConfig, health *handlers.HealthHandler, status *handlers.StatusHandler, logger *zap.Logger) *http.Server {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)

	// Probes are not rate limited
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Get("/live", health.Live)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimiter(cfg.RateLimitRPS))
		r.Get("/status", status.Status)
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func shutdownServer(server *http.Server, cfg config.OpsConfig, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Ops server shutdown error", zap.Error(err))
	}
	logger.Info("Indexer stopped")
}

func genesisFiles(paths []string) []string {
	files := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			files = append(files, p)
		}
	}
	return files
}

func setupLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := "json"
	if format == "console" {
		encoding = "console"
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	return logger
}
