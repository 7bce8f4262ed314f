package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/visit-metrics/internal/api/handler"
	"github.com/cuongbtq/visit-metrics/internal/api/router"
	"github.com/cuongbtq/visit-metrics/internal/config"
	"github.com/cuongbtq/visit-metrics/internal/directory"
	"github.com/cuongbtq/visit-metrics/internal/resolver"
	"github.com/cuongbtq/visit-metrics/internal/storage"
	"github.com/cuongbtq/visit-metrics/internal/worker"
	"github.com/cuongbtq/visit-metrics/shared/logger"
	"github.com/cuongbtq/visit-metrics/shared/postgresql"
	"github.com/cuongbtq/visit-metrics/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags; an empty path runs on built-in defaults
	configPath := flag.String("config", os.Getenv("API_SERVICE_CONFIG_PATH"), "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storeDirectory, err := initDirectory(ctx, cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to load store directory: %w", err)
	}

	appLogger.Info("Store directory loaded",
		slog.String("source", cfg.Directory.Source),
		slog.Int("stores", storeDirectory.Len()),
	)

	var publisher worker.EventPublisher
	if cfg.Events.Enabled {
		rabbitClient, err := initRabbitMQ(&cfg.Events.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		publisher = rabbitClient

		appLogger.Info("RabbitMQ connection established")
	}

	jobStorage := storage.NewStorage(appLogger.Logger)
	go jobStorage.RunJanitor(ctx, cfg.Jobs.JanitorInterval, cfg.Jobs.Retention)

	jobWorker := worker.NewWorker(&worker.Config{
		Logger:    appLogger.Logger,
		Storage:   jobStorage,
		Directory: storeDirectory,
		Resolver:  initResolver(&cfg.Resolver, appLogger.Logger),
		Publisher: publisher,
	})

	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:  appLogger.Logger,
		Storage: jobStorage,
		Worker:  jobWorker,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	appLogger.Info("Server running",
		slog.String("address", addr),
		slog.Bool("simulate_latency", cfg.Resolver.SimulateLatency),
		slog.Duration("job_retention", cfg.Jobs.Retention),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	// Submitted jobs run to completion unless the stop timeout expires first
	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Jobs.StopTimeout)
	defer stopCancel()

	if err := jobWorker.Stop(stopCtx); err != nil {
		appLogger.Warn("Exiting with jobs still in flight", slog.Int("in_flight", jobWorker.InFlight()))
	}

	cancel()

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initDirectory loads the store master from the configured source
func initDirectory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*directory.Directory, error) {
	switch cfg.Directory.Source {
	case config.DirectorySourceFile:
		return directory.LoadFile(cfg.Directory.Path)

	case config.DirectorySourcePostgres:
		dbClient, err := initPostgreSQL(&cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		defer dbClient.Close()

		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		return directory.LoadPostgres(loadCtx, dbClient)

	default:
		return directory.Builtin(), nil
	}
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ event publisher
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}

// initResolver builds the image metric resolver
func initResolver(cfg *config.ResolverConfig, logger *slog.Logger) *resolver.Resolver {
	return resolver.NewResolver(&resolver.Config{
		Logger:          logger,
		FetchTimeout:    cfg.FetchTimeout,
		MaxImageBytes:   cfg.MaxImageBytes,
		SimulateLatency: cfg.SimulateLatency,
		LatencyMin:      cfg.LatencyMin,
		LatencyMax:      cfg.LatencyMax,
	})
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
