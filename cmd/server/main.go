// Package main implements the entry point for the document intake API
// server, which accepts user document uploads and processes them through
// an asynchronous classification and parsing pipeline.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/careerdock/docflow-api/internal/config"
	"github.com/careerdock/docflow-api/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

// run initializes configuration, logging, the database, and all application
// dependencies, then starts the HTTP server. Split from main so the exit
// path has a single log.Fatalf.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, err := logger.Setup(cfg.Server); err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := setupDatabase(cfg, slog.Default())
	if err != nil {
		return err
	}

	if err := runMigrations(db, slog.Default()); err != nil {
		return err
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, slog.Default(), db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
