package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/alkime/onboard/internal/config"
	"github.com/alkime/onboard/internal/flow"
	"github.com/alkime/onboard/internal/logger"
	"github.com/alkime/onboard/internal/server"
	"github.com/alkime/onboard/internal/session"
	"github.com/alkime/onboard/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging
	log := logger.SetupLogger(cfg)

	// Log startup information
	log.Info("Starting onboarding server",
		"env", cfg.Env,
		"port", cfg.Port,
		"db", cfg.DBPath,
	)

	def, err := flow.Load(cfg.FlowFile)
	if err != nil {
		log.Error("Failed to load flow definition", "file", cfg.FlowFile, "error", err)
		return
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Error("Failed to open database", "error", err)
		return
	}
	defer db.Close()

	registry := session.NewRegistry(session.Options{
		Gateway:    db,
		ThinkDelay: cfg.ThinkDelay,
		Logger:     log,
	})
	defer registry.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, log, registry, def)
	if err := server.Run(ctx, srv); err != nil {
		log.Error("Server stopped with error", "error", err)
	}
}
