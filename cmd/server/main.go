// Package main is the entry point for the blog server.
//
// The main package is kept minimal. Its job is to:
// 1. Read configuration (flags, env vars, .env file)
// 2. Create the logger and make sure the data directory exists
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/markdown-blog/internal/config"
	"github.com/sakif/markdown-blog/internal/logger"
	"github.com/sakif/markdown-blog/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Precedence: flags > environment > .env file > defaults.
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	// === 2. SET UP LOGGING ===
	// Text in development, JSON in production.
	log := logger.New(os.Stdout, cfg.LogLevel, "", cfg.Env)

	if cfg.SecretGenerated {
		log.Warn("JWT_SECRET not set, using a random secret; sessions end when the server restarts")
	}

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll is `mkdir -p`: it creates all parent directories if needed.
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			log.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, log)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
