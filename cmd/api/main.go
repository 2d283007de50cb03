package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/tourism-transport/internal/api/handlers"
	"github.com/gocomet/tourism-transport/internal/api/routes"
	"github.com/gocomet/tourism-transport/internal/config"
	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	"github.com/gocomet/tourism-transport/internal/events"
	"github.com/gocomet/tourism-transport/internal/repository/memory"
	"github.com/gocomet/tourism-transport/internal/repository/postgres"
	"github.com/gocomet/tourism-transport/internal/service/dispatch"
	"github.com/gocomet/tourism-transport/internal/service/gateway"
	"github.com/gocomet/tourism-transport/internal/service/pricing"
	"github.com/gocomet/tourism-transport/internal/service/registry"
	"github.com/gocomet/tourism-transport/pkg/cache"
	"github.com/gocomet/tourism-transport/pkg/database"
	"github.com/gocomet/tourism-transport/pkg/logger"
	"github.com/gocomet/tourism-transport/pkg/monitoring"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Tourism Transport dispatch service",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
		logger.String("store", cfg.Database.Driver),
	)

	ctx := context.Background()

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
		LogLevel:   cfg.NewRelic.LogLevel,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
		nrApp = monitoring.Disabled()
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized successfully",
			logger.String("app_name", cfg.NewRelic.AppName))
	} else {
		appLogger.Info("New Relic APM disabled")
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Prometheus collectors
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	checks := map[string]handlers.HealthCheck{}

	// Initialize storage
	var (
		drivers  driver.Repository
		requests transport.Repository
		regOpts  []registry.Option
		gwOpts   = []gateway.Option{gateway.WithMetrics(metrics), gateway.WithNewRelic(nrApp)}
	)

	switch cfg.Database.Driver {
	case "memory":
		drivers = memory.NewDriverStore()
		requests = memory.NewTransportStore()
		appLogger.Warn("Using in-memory store; data is lost on restart")
	default:
		db, err := database.NewPostgresDB(ctx, database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.Name,
			SSLMode:     cfg.Database.SSLMode,
			MaxConns:    cfg.Database.MaxConnections,
			MaxIdle:     cfg.Database.MaxIdleConns,
			MaxLifetime: cfg.Database.MaxLifetime,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
		}
		defer db.Close()
		appLogger.Info("Connected to PostgreSQL successfully")

		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db, postgres.MigrateOptions{SingleActiveRequest: cfg.Dispatch.SingleActiveRequest}); err != nil {
				appLogger.Fatal("Failed to migrate database", logger.Err(err))
			}
			appLogger.Info("Database schema migrated")
		}

		drivers = postgres.NewDriverRepository(db)
		requests = postgres.NewTransportRequestRepository(db)
		regOpts = append(regOpts, registry.WithRoleElevator(postgres.NewRoleElevator(db)))
		if cfg.Dispatch.BookingSync {
			gwOpts = append(gwOpts, gateway.WithBookingLinker(postgres.NewBookingLinker(db)))
		}
		checks["postgres"] = db.PingContext
	}

	// Initialize Redis geo index
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(ctx, cache.Config{
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxRetries:  cfg.Redis.MaxRetries,
			PoolSize:    cfg.Redis.PoolSize,
			MinIdleConn: cfg.Redis.MinIdleConn,
			DialTimeout: cfg.Redis.DialTimeout,
			ReadTimeout: cfg.Redis.ReadTimeout,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
		}
		defer cache.Close(redisClient)
		appLogger.Info("Connected to Redis successfully")

		regOpts = append(regOpts, registry.WithLocator(registry.NewRedisLocator(redisClient, cfg.Redis.LocationKey)))
		checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }
	}

	// Initialize event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
		appLogger.Info("Publishing lifecycle events to Kafka",
			logger.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()
	gwOpts = append(gwOpts, gateway.WithPublisher(publisher))

	// Wire services
	pricingSvc := pricing.NewService(cfg.Pricing())
	driverRegistry := registry.NewService(drivers, appLogger, registry.Config{
		CandidateRadiusKm: cfg.Dispatch.CandidateRadiusKm,
		MaxRadiusKm:       cfg.Dispatch.MaxRadiusKm,
		MaxCandidates:     cfg.Dispatch.MaxCandidates,
	}, regOpts...)
	engine := dispatch.NewEngine(requests, driverRegistry, pricingSvc, appLogger, dispatch.Config{
		SingleActiveRequest: cfg.Dispatch.SingleActiveRequest,
		PendingRadiusKm:     cfg.Dispatch.PendingRadiusKm,
	}, dispatch.WithMetrics(metrics))
	gw := gateway.New(engine, driverRegistry, pricingSvc, appLogger, gwOpts...)

	// Initialize handlers with dependencies
	h := handlers.NewHandlers(gw, metrics, appLogger, checks)

	// Initialize Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Setup all routes
	var nrApplication *newrelic.Application
	if nrApp.IsEnabled() {
		nrApplication = nrApp.Application
	}
	routes.SetupRoutes(router, h, nrApplication, prometheus.DefaultGatherer)

	appLogger.Info("Routes configured successfully")

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	appLogger.Info("Server stopped gracefully")
}
