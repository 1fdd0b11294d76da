package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vutran-dev/transcribe-be/internal/artifact"
	"github.com/vutran-dev/transcribe-be/internal/config"
	"github.com/vutran-dev/transcribe-be/internal/engine"
	"github.com/vutran-dev/transcribe-be/internal/ledger"
	"github.com/vutran-dev/transcribe-be/internal/media"
	"github.com/vutran-dev/transcribe-be/internal/runner"
	"github.com/vutran-dev/transcribe-be/internal/worker"
	"github.com/vutran-dev/transcribe-be/shared/logger"
	"github.com/vutran-dev/transcribe-be/shared/postgresql"
	"github.com/vutran-dev/transcribe-be/shared/rabbitmq"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	artifactStore, err := artifact.NewStore(cfg.Artifacts.WorkDir, cfg.Artifacts.Retention, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	transcriber, err := initTranscriber(&cfg.Engine, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize transcription engine: %w", err)
	}

	jobLedger := ledger.New(ledger.NewPostgresStore(dbClient.GetDB()), appLogger.Logger)

	ffmpeg := media.NewFFmpeg()
	jobRunner := runner.New(jobLedger, artifactStore, ffmpeg, ffmpeg, transcriber, runner.Config{
		RetryAttempts: cfg.Engine.RetryAttempts,
		RetryInterval: cfg.Engine.RetryInterval,
	}, appLogger.Logger)

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:       appLogger.Logger,
		Ledger:       jobLedger,
		Artifacts:    artifactStore,
		Runner:       jobRunner,
		RabbitClient: rabbitClient,
		QueueName:    cfg.RabbitMQ.Queue.Name,
		Concurrency:  cfg.Worker.Concurrency,
		Prefetch:     cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:   cfg.Worker.JobTimeout,
	})

	var sweeper *artifact.Sweeper
	if cfg.Artifacts.PurgeSchedule != "" {
		sweeper, err = artifact.NewSweeper(artifactStore, cfg.Artifacts.PurgeSchedule, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize retention sweeper: %w", err)
		}
		sweeper.Start()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	// Cancel context to stop the worker, then wait for in-flight jobs.
	cancel()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if sweeper != nil {
		sweeper.Stop()
	}
	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
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
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
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
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initTranscriber selects the engine adapter from configuration
func initTranscriber(cfg *config.EngineConfig, logger *slog.Logger) (engine.Transcriber, error) {
	switch cfg.Provider {
	case "stub":
		logger.Warn("Using stub transcription engine, output will be placeholder text")
		return &engine.StubTranscriber{}, nil
	default:
		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.APIKeyEnv)
		}
		return engine.NewOpenAITranscriber(apiKey, logger)
	}
}
