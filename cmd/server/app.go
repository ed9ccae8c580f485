package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/careerdock/docflow-api/internal/config"
	"github.com/careerdock/docflow-api/internal/idempotency"
	"github.com/careerdock/docflow-api/internal/platform/gemini"
	"github.com/careerdock/docflow-api/internal/platform/objectstore"
	"github.com/careerdock/docflow-api/internal/platform/postgres"
	"github.com/careerdock/docflow-api/internal/platform/rediscache"
	"github.com/careerdock/docflow-api/internal/service"
	"github.com/careerdock/docflow-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores
	documentStore *postgres.PostgresDocumentStore
	taskStore     task.TaskStore
	objectStore   *objectstore.MinioStore

	// Request deduplication
	idempotencyCoordinator *idempotency.Coordinator

	// Service interfaces
	documentService service.DocumentService

	// Task handling
	taskRunner *task.TaskRunner
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	app.documentStore = postgres.NewPostgresDocumentStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db)

	var err error
	app.objectStore, err = objectstore.NewMinioStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}
	logger.Info("Object storage initialized", "bucket", cfg.Storage.Bucket)

	// Initialize the Redis-backed idempotency layer
	redisClient, err := rediscache.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	idempotencyStore := rediscache.NewIdempotencyStore(redisClient, logger)
	app.idempotencyCoordinator = idempotency.NewCoordinator(
		idempotencyStore,
		cfg.Idempotency.LockTTL,
		cfg.Idempotency.CacheTTL,
		logger,
	)
	logger.Info("Idempotency coordinator initialized",
		"lock_ttl", cfg.Idempotency.LockTTL,
		"cache_ttl", cfg.Idempotency.CacheTTL)

	// Initialize the Gemini-backed document intelligence collaborators
	geminiClient, err := gemini.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	classifier, err := gemini.NewClassifier(geminiClient, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize classifier: %w", err)
	}
	parser, err := gemini.NewParser(geminiClient, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize parser: %w", err)
	}
	graphExtractor, err := gemini.NewGraphExtractor(geminiClient, cfg.LLM, app.objectStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize graph extractor: %w", err)
	}
	logger.Info("Document intelligence collaborators initialized", "model", cfg.LLM.ModelName)

	// Create the task runner (not yet started; Start runs crash recovery,
	// which needs the reconstructor installed first)
	app.taskRunner = task.NewTaskRunner(app.taskStore, task.TaskRunnerConfig{
		QueueSize:   cfg.Task.QueueSize,
		WorkerCount: cfg.Task.WorkerCount,
		RetryPolicy: task.RetryPolicy{
			MaxAttempts: cfg.Task.MaxAttempts,
			Delay:       cfg.Task.RetryDelay,
		},
	}, logger)

	// Create required adapters and the task factory
	documentRepoAdapter := service.NewDocumentRepositoryAdapter(app.documentStore, db)
	pipelineAdapter := service.NewDocumentPipelineAdapter(documentRepoAdapter)

	taskFactory := task.NewDocumentProcessingTaskFactory(
		pipelineAdapter,
		app.objectStore,
		classifier,
		parser,
		graphExtractor,
		logger,
	)
	app.taskRunner.SetReconstructor(taskFactory.Reconstruct)

	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	// Initialize document service
	app.documentService, err = service.NewDocumentService(
		documentRepoAdapter,
		app.taskRunner,
		taskFactory,
		app.objectStore,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create document service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
