package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/aggregator"
	"github.com/dennisdiepolder/monti/wfm/internal/api"
	"github.com/dennisdiepolder/monti/wfm/internal/auth"
	"github.com/dennisdiepolder/monti/wfm/internal/cache"
	"github.com/dennisdiepolder/monti/wfm/internal/config"
	"github.com/dennisdiepolder/monti/wfm/internal/directory"
	"github.com/dennisdiepolder/monti/wfm/internal/monitor"
	"github.com/dennisdiepolder/monti/wfm/internal/poller"
	"github.com/dennisdiepolder/monti/wfm/internal/storage"
	"github.com/dennisdiepolder/monti/wfm/internal/websocket"
	"github.com/dennisdiepolder/monti/wfm/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const boardRefreshInterval = 15 * time.Second

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("directory_url", cfg.DirectoryURL).
		Msg("starting WFM backend server")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	allow, found, err := config.LoadAllowList(cfg.AllowListFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.AllowListFile).Msg("failed to load allow-list")
	}
	roles, agents := allow.Size()
	if !found {
		log.Warn().Str("file", cfg.AllowListFile).Msg("allow-list file not found, no agents will be tracked")
	}
	log.Info().Int("roles", roles).Int("agents", agents).Int("reasons", len(allow.Reasons)).Msg("allow-list loaded")
	if found && agents == 0 {
		log.Warn().Str("file", cfg.AllowListFile).Msg("allow-list has no agent ids, the status monitor tracks nothing")
	}

	store := openStore(ctx, cfg)
	defer store.Close()

	statuses := openStatusStore(ctx, cfg)

	archive, err := storage.NewArchive(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize status log archive")
	}

	dir := directory.NewClient(directory.Options{
		BaseURL:  cfg.DirectoryURL,
		Token:    cfg.DirectoryToken,
		PageSize: cfg.DirectoryPageSize,
		Timeout:  cfg.DirectoryTimeout,
	}, log.Logger)
	if cfg.DirectoryToken == "" {
		log.Warn().Msg("FRESHCHAT_API_TOKEN not set, directory requests will fail")
	}

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	listCache := cache.NewAgentListCache(cfg.PollCacheTTL)
	agentPoller := poller.New(dir, listCache, allow, cfg.PollInterval, log.Logger)

	aggregatorService := aggregator.NewAggregator(allow.Reasons, statuses, hub, boardRefreshInterval, log.Logger)
	agentPoller.Subscribe(aggregatorService.OnSnapshot)
	go aggregatorService.Start(ctx)
	go agentPoller.Start(ctx)

	statusMonitor := monitor.New(dir, store, statuses, archive, allow, log.Logger)
	if cfg.MonitorInterval > 0 {
		go statusMonitor.Run(ctx, cfg.MonitorInterval)
	}

	// Create WebSocket handler
	wsHandler := websocket.NewHandler(hub, aggregatorService, cfg, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Metrics)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(log.Logger))
		r.Get("/ws", wsHandler.ServeHTTP)

		api.Routes(r, api.Deps{
			Directory:    dir,
			Store:        store,
			Archive:      archive,
			Monitor:      statusMonitor,
			Poller:       agentPoller,
			Boards:       aggregatorService,
			Statuses:     statuses,
			ListCache:    listCache,
			AllowList:    allow,
			SimulatorURL: cfg.SimulatorURL,
			Logger:       log.Logger,
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop poller, aggregator and background sync
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Let in-flight archive writes finish
	statusMonitor.Wait()

	log.Info().Msg("server stopped")
}

// openStore connects to Postgres when DATABASE_URL is set, otherwise keeps
// everything in memory
func openStore(ctx context.Context, cfg *config.Config) storage.Store {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
		return storage.NewMemoryStore()
	}

	pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Postgres")
	}
	if err := pg.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate Postgres schema")
	}
	log.Info().Msg("Postgres store ready")
	return pg
}

// openStatusStore uses Redis when REDIS_URL is set so last-known statuses
// survive restarts
func openStatusStore(ctx context.Context, cfg *config.Config) cache.StatusStore {
	if cfg.RedisURL == "" {
		log.Info().Msg("REDIS_URL not set, last-known statuses are kept in memory")
		return cache.NewMemoryStatusStore()
	}

	rs, err := cache.NewRedisStatusStore(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	log.Info().Msg("Redis status store ready")
	return rs
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"wfm-backend"}`)
}
