package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/partselect/backend/config"
	"github.com/partselect/backend/internal/bootstrap"
	httpDelivery "github.com/partselect/backend/internal/delivery/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := bootstrap.NewLogger(cfg.Log, os.Stdout)
	logger.Info("Starting PartSelect Backend",
		"version", httpDelivery.Version,
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"cache", cfg.Cache.Type)

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	app.Start(ctx)

	handler := httpDelivery.NewHandler(app.Service, logger)
	router := httpDelivery.SetupRouter(cfg, handler, app.Metrics.Handler(), logger)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	if err := httpDelivery.Serve(ctx, addr, router, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
