package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaki95/feedback-importer/config"
	"github.com/jaki95/feedback-importer/internal/job"
	"github.com/jaki95/feedback-importer/internal/server"
	"github.com/jaki95/feedback-importer/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "Configuration file")
	port := flag.String("port", "", "Server port (overrides the configuration)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Setup logging
	opts := &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to create storage", "type", cfg.Storage.Type, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	manager := job.NewManager(store, nil, job.Options{
		MappingDelay: cfg.Server.MappingDelay,
		ImportDelay:  cfg.Server.ImportDelay,
		PreviewRows:  cfg.Server.PreviewRows,
		Workers:      cfg.Server.ImportWorkers,
	})
	defer manager.Close()

	srv := server.New(cfg, manager)
	srv.StartCleanupWorker(ctx)

	slog.Info("Starting batch import API server", "port", cfg.Server.Port, "storage", cfg.Storage.Type)
	if err := srv.Start(ctx, cfg.Server.Port); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
