package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcomm "github.com/finpilot/backend/internal/application/communication"
	"github.com/finpilot/backend/internal/domain/communication"
	"github.com/finpilot/backend/internal/infrastructure/config"
	"github.com/finpilot/backend/internal/infrastructure/event"
	"github.com/finpilot/backend/internal/infrastructure/frequency"
	"github.com/finpilot/backend/internal/infrastructure/logger"
	"github.com/finpilot/backend/internal/infrastructure/persistence"
	"github.com/finpilot/backend/internal/infrastructure/scheduler"
	"github.com/finpilot/backend/internal/infrastructure/taskqueue"
	"github.com/finpilot/backend/internal/infrastructure/telemetry"
	"github.com/finpilot/backend/internal/interfaces/http/handler"
	"github.com/finpilot/backend/internal/interfaces/http/middleware"
	"github.com/finpilot/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

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
		_ = logger.Sync(log)
	}()

	log.Info("Starting FinPilot Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Redis backs the execution substrate and the frequency reserver
	var redisClient *redis.Client
	if cfg.TaskQueue.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()
		log.Info("Redis connected successfully", zap.String("addr", cfg.Redis.Addr()))
	}

	// Initialize repositories
	eventRepo := persistence.NewCommunicationEventRepository(db.DB)
	preferenceRepo := persistence.NewPreferenceRepository(db.DB)

	// Execution substrate and frequency reserver share the backend choice:
	// redis in deployed environments, in-process for local development
	var substrate communication.ExecutionSubstrate
	var reserver communication.FrequencyReserver
	var queueProvider telemetry.QueueDepthProvider
	if cfg.TaskQueue.Backend == "redis" {
		redisSubstrate := taskqueue.NewRedisSubstrate(redisClient, cfg.TaskQueue.QueuePrefix, cfg.TaskQueue.ResultTTL)
		substrate = redisSubstrate
		queueProvider = redisSubstrate
		reserver = frequency.NewRedisFrequencyReserver(redisClient, "finpilot:freq")
	} else {
		memSubstrate := taskqueue.NewInMemorySubstrate()
		substrate = memSubstrate
		queueProvider = memSubstrate
		reserver = frequency.NewInMemoryFrequencyReserver()
	}
	log.Info("Execution substrate initialized", zap.String("backend", cfg.TaskQueue.Backend))

	// Initialize event bus
	eventBus := event.NewInMemoryEventBus(log, event.BusConfig{
		BufferSize:     cfg.Event.BufferSize,
		HandlerTimeout: cfg.Event.HandlerTimeout,
	})

	// Audit trail for every communication lifecycle event
	auditLogger := appcomm.NewAuditLogger(log)
	eventBus.Subscribe(auditLogger, auditLogger.EventTypes()...)
	log.Info("Event handlers registered",
		zap.Strings("audit_events", auditLogger.EventTypes()),
	)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize telemetry providers
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	commMetrics, err := telemetry.NewCommunicationMetrics(telemetry.CommunicationMetricsConfig{
		Meter:         meterProvider.Meter("finpilot/communication"),
		Logger:        log,
		QueueProvider: queueProvider,
	})
	if err != nil {
		log.Fatal("Failed to initialize communication metrics", zap.Error(err))
	}
	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	commMetrics.StartPeriodicCollection(metricsCtx, time.Minute)
	defer commMetrics.Stop()

	// Assemble the communication pipeline
	depTimeout := cfg.Communication.DependencyTimeout
	validator := appcomm.NewRequestValidator(preferenceRepo, eventRepo, reserver, log, depTimeout)
	optimizer := appcomm.NewChannelOptimizer(preferenceRepo, eventRepo, log, depTimeout).
		WithEngagementWindow(cfg.Communication.EngagementWindow)
	dispatcher := appcomm.NewDispatcher(substrate, validator, log, depTimeout)
	recorder := appcomm.NewAnalyticsRecorder(eventRepo, eventBus, log, depTimeout)

	orchestrator := appcomm.NewOrchestrator(
		validator,
		optimizer,
		dispatcher,
		recorder,
		preferenceRepo,
		substrate,
		eventBus,
		log,
		appcomm.OrchestratorConfig{
			BatchWorkers:      cfg.Communication.BatchWorkers,
			DependencyTimeout: depTimeout,
		},
	).WithMetrics(commMetrics)

	// History retention cleanup (if enabled)
	if cfg.Retention.Enabled {
		retentionJob := scheduler.NewRetentionJob(eventRepo, scheduler.RetentionConfig{
			CheckInterval: cfg.Retention.CheckInterval,
			MaxAge:        cfg.Retention.MaxAge,
		}, log)
		if err := retentionJob.Start(context.Background()); err != nil {
			log.Fatal("Failed to start retention job", zap.Error(err))
		}
		defer func() {
			if err := retentionJob.Stop(context.Background()); err != nil {
				log.Error("Error stopping retention job", zap.Error(err))
			}
		}()
		log.Info("Retention job started",
			zap.Duration("check_interval", cfg.Retention.CheckInterval),
			zap.Duration("max_age", cfg.Retention.MaxAge),
		)
	}

	// Initialize HTTP handlers
	communicationHandler := handler.NewCommunicationHandler(orchestrator)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. Tracing - OpenTelemetry spans
	// 7. HTTPMetrics - Request metrics
	// 8. BodyLimit - Limit request body size
	// 9. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
	}
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.App.Name,
		Enabled:       cfg.Telemetry.Enabled,
	}))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(communicationHandler).
		Register(systemHandler)
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
