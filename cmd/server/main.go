package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	identityapp "github.com/subtrack/backend/internal/application/identity"
	subscriptionapp "github.com/subtrack/backend/internal/application/subscription"
	"github.com/subtrack/backend/internal/domain/shared/valueobject"
	"github.com/subtrack/backend/internal/domain/subscription"
	"github.com/subtrack/backend/internal/infrastructure/auth"
	"github.com/subtrack/backend/internal/infrastructure/cache"
	"github.com/subtrack/backend/internal/infrastructure/config"
	"github.com/subtrack/backend/internal/infrastructure/event"
	"github.com/subtrack/backend/internal/infrastructure/exchange"
	"github.com/subtrack/backend/internal/infrastructure/logger"
	"github.com/subtrack/backend/internal/infrastructure/persistence"
	"github.com/subtrack/backend/internal/infrastructure/telemetry"
	"github.com/subtrack/backend/internal/interfaces/http/handler"
	"github.com/subtrack/backend/internal/interfaces/http/router"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting subtrack",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Tracing
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	// Metrics. With export disabled the meter is the global no-op one.
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := mp.Meter(telemetry.MeterName)

	// Database with zap-backed gorm logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	if err := telemetry.NewDBTracingPlugin(dbTracing, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Redis is optional. rdb stays an untyped nil interface when disabled so
	// that downstream nil checks work.
	var rdb redis.UniversalClient
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		rdb = redisClient
	}

	var blacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	if rdb != nil {
		blacklist = auth.NewRedisTokenBlacklist(rdb)
	}

	// Exchange rates and billing
	rates, err := exchange.NewRateProvider(cfg, rdb, log, exchange.WithMeter(meter))
	if err != nil {
		log.Fatal("Failed to initialize exchange rate provider", zap.Error(err))
	}
	baseCurrency, err := valueobject.ParseCurrency(cfg.Billing.BaseCurrency)
	if err != nil {
		log.Fatal("Invalid billing base currency", zap.Error(err))
	}
	billing := subscription.NewBillingService(baseCurrency, rates)

	// Event bus
	eventBus, err := event.NewInMemoryEventBus(log, event.WithMeter(meter))
	if err != nil {
		log.Fatal("Failed to create event bus", zap.Error(err))
	}
	eventBus.Subscribe(event.NewAuditHandler(log))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Repositories and application services
	userRepo := persistence.NewGormUserRepository(db.DB)
	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)

	jwtService := auth.NewJWTService(cfg.JWT)
	authService := identityapp.NewAuthService(
		userRepo,
		auth.NewBcryptHasher(0),
		jwtService,
		blacklist,
		eventBus,
		log,
	)
	subscriptionService := subscriptionapp.NewService(subscriptionRepo, billing, eventBus, log,
		subscriptionapp.WithMeter(meter))

	engine, stopEngine, err := router.NewEngine(router.Dependencies{
		Config:              cfg,
		Logger:              log,
		JWTService:          jwtService,
		TokenBlacklist:      blacklist,
		AuthHandler:         handler.NewAuthHandler(authService),
		SubscriptionHandler: handler.NewSubscriptionHandler(subscriptionService),
		HealthHandler:       handler.NewHealthHandler(db, rdb, version),
		Meter:               meter,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	stopEngine()
	_ = eventBus.Stop(shutdownCtx)

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
