package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/loginsentry/internal/auth"
	"github.com/BradenHooton/loginsentry/internal/background"
	"github.com/BradenHooton/loginsentry/internal/config"
	"github.com/BradenHooton/loginsentry/internal/database"
	"github.com/BradenHooton/loginsentry/internal/handlers"
	"github.com/BradenHooton/loginsentry/internal/lease"
	middlewareCustom "github.com/BradenHooton/loginsentry/internal/middleware"
	"github.com/BradenHooton/loginsentry/internal/repositories"
	"github.com/BradenHooton/loginsentry/internal/routes"
	"github.com/BradenHooton/loginsentry/internal/services"
	pkghttp "github.com/BradenHooton/loginsentry/pkg/http"
	pkglogger "github.com/BradenHooton/loginsentry/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = pkglogger.New(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("lock_backend", cfg.Lock.Backend))

	detectionConfig := toDetectionConfig(cfg.Detection)
	if err := detectionConfig.Validate(); err != nil {
		logger.Error("invalid detection configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxies", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	err = database.Migrate(migrateCtx, db.Pool, logger)
	migrateCancel()
	if err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	locker, closeLocker, err := newLocker(cfg, db)
	if err != nil {
		logger.Error("failed to initialize lease backend", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeLocker()

	// Initialize repositories
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	alertRepo := repositories.NewSecurityAlertRepository(db)
	historyRepo := repositories.NewResilientHistoryRepository(loginAttemptRepo, repositories.BreakerConfig{
		MaxFailures: uint32(cfg.Breaker.MaxFailures),
		OpenTimeout: cfg.Breaker.OpenTimeout,
	}, logger)

	// Initialize detection
	anomalyService := services.NewAnomalyService(historyRepo, alertRepo, detectionConfig, logger)
	bruteForceService := services.NewBruteForceService(loginAttemptRepo, alertRepo, detectionConfig, logger)
	dispatcher := services.NewAlertDispatcher(anomalyService, bruteForceService, services.DispatcherConfig{
		Workers:   cfg.Dispatch.Workers,
		QueueSize: cfg.Dispatch.QueueSize,
	}, logger)

	loginAuditService := services.NewLoginAuditService(loginAttemptRepo, dispatcher, logger)
	alertService := services.NewAlertService(alertRepo, logger)

	// Initialize background jobs
	alertSweeper := background.NewAlertSweeper(alertRepo, locker, background.Schedule{
		Interval:  cfg.Retention.AlertSweepInterval,
		Retention: cfg.Retention.AlertRetention,
		MinHold:   cfg.Lock.MinHold,
		MaxHold:   cfg.Lock.MaxHold,
	}, logger)
	cleanupManager := background.NewCleanupManager(loginAuditService, locker, background.Schedule{
		Interval:  cfg.Retention.LoginCleanupInterval,
		Retention: cfg.Retention.LoginAttemptRetention,
		MinHold:   cfg.Lock.MinHold,
		MaxHold:   cfg.Lock.MaxHold,
	}, logger)

	tokenManager := auth.NewTokenManager(cfg.Auth.ServiceTokenSecret, cfg.Auth.ServiceTokenIssuer)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	alertReadLimit := middlewareCustom.DefaultAlertReadRateLimit(ipConfig)
	if cfg.Server.AlertReadRatePerMinute > 0 {
		alertReadLimit.RequestsPerMinute = cfg.Server.AlertReadRatePerMinute
	}

	routes.RegisterRoutes(router, routes.Handlers{
		LoginEvents: handlers.NewLoginEventHandler(loginAuditService, ipConfig),
		Alerts:      handlers.NewAlertHandler(alertService, logger),
		Health:      handlers.NewHealthHandler(db),
	}, tokenManager, alertReadLimit, logger)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start workers and background jobs
	jobsCtx, jobsCancel := context.WithCancel(context.Background())
	defer jobsCancel()

	dispatcher.Start(jobsCtx)
	go alertSweeper.Start(jobsCtx)
	go cleanupManager.Start(jobsCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop accepting events before draining the detection queue
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Error("detection queue not drained", slog.Any("error", err))
	}
	alertSweeper.Stop()
	cleanupManager.Stop()
	jobsCancel()

	logger.Info("server stopped gracefully")
}

func toDetectionConfig(c config.DetectionConfig) services.DetectionConfig {
	return services.DetectionConfig{
		ImpossibleTravelWindow:      c.ImpossibleTravelWindow,
		ImpossibleTravelMaxKm:       c.ImpossibleTravelMaxKm,
		NewDeviceWindow:             c.NewDeviceWindow,
		NewLocationWindow:           c.NewLocationWindow,
		UnusualTimeWindow:           c.UnusualTimeWindow,
		UnusualTimeMinSamples:       c.UnusualTimeMinSamples,
		UnusualTimeStdDevMultiplier: c.UnusualTimeStdDevMultiplier,
		CircularHourStats:           c.CircularHourStats,
		BruteForceWindow:            c.BruteForceWindow,
		BruteForceThreshold:         c.BruteForceThreshold,
		QueryTimeout:                c.QueryTimeout,
	}
}

// newLocker picks the lease backend for scheduled jobs
func newLocker(cfg *config.Config, db *database.DB) (lease.Locker, func(), error) {
	switch cfg.Lock.Backend {
	case "redis":
		client, err := lease.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return lease.NewRedisLocker(client, cfg.Lock.Owner), func() { _ = client.Close() }, nil
	case "none":
		return lease.NoopLocker{}, func() {}, nil
	default:
		return lease.NewPostgresLocker(db.Pool, cfg.Lock.Owner), func() {}, nil
	}
}
