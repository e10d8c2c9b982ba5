// Package bootstrap wires configuration into a ready selection service.
// Both the HTTP server and the CLI start from here.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/partselect/backend/config"
	"github.com/partselect/backend/internal/domain"
	"github.com/partselect/backend/internal/infrastructure/cache"
	"github.com/partselect/backend/internal/infrastructure/catalog"
	"github.com/partselect/backend/internal/infrastructure/knowledge"
	"github.com/partselect/backend/internal/infrastructure/metrics"
	"github.com/partselect/backend/internal/infrastructure/supplier"
	"github.com/partselect/backend/internal/usecase"
)

// App holds the wired components
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Service   *usecase.SelectionService
	Metrics   *metrics.Recorder
	Catalog   *catalog.Catalog
	Knowledge *knowledge.Store // nil when no knowledge path is configured
	Registry  *usecase.SourceRegistry

	cache *cache.MemoryCache
}

// NewLogger builds the slog logger described by cfg
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New creates every source, the cache and the selection service
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	builtin, err := catalog.New(logger)
	if err != nil {
		return nil, fmt.Errorf("load builtin catalog: %w", err)
	}

	registry, err := usecase.NewSourceRegistry(builtin)
	if err != nil {
		return nil, err
	}
	lookups := usecase.AlternativeChain{builtin}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Catalog:  builtin,
		Registry: registry,
		Metrics:  metrics.NewRecorder(),
	}

	if cfg.Knowledge.Path != "" {
		store, err := knowledge.Open(cfg.Knowledge.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open knowledge store: %w", err)
		}
		if err := registry.Register(store); err != nil {
			return nil, err
		}
		app.Knowledge = store
		lookups = append(lookups, store)
	}

	for _, vc := range cfg.Vendors {
		client, err := supplier.NewClient(supplier.Config{
			Name:              vc.Name,
			BaseURL:           vc.BaseURL,
			APIKey:            vc.APIKey,
			RequestsPerSecond: vc.RequestsPerSecond,
			Burst:             vc.Burst,
			Timeout:           vc.Timeout,
			MaxRetries:        vc.MaxRetries,
			Logger:            logger,
		})
		if err != nil {
			return nil, err
		}
		client.SetDebug(vc.Debug)
		if err := registry.Register(client); err != nil {
			return nil, err
		}
		if vc.APIKey == "" {
			logger.Warn("Vendor API key not configured", "vendor", client.Name())
		}
	}
	registry.SetDefaults(cfg.Selection.Sources)

	app.cache = cache.NewMemoryCacheWithInterval(cfg.Cache.CleanupInterval)

	app.Service = usecase.NewSelectionService(registry, app.cache, lookups, usecase.SelectionServiceConfig{
		DefaultTopK:    cfg.Selection.DefaultTopK,
		MaxTopK:        cfg.Selection.MaxTopK,
		SourceTimeout:  cfg.Selection.SourceTimeout,
		MaxConcurrency: cfg.Selection.MaxConcurrency,
		PriceCacheTTL:  cfg.Cache.TTL,
		Observer:       app.Metrics,
		Logger:         logger,
	})

	logger.Info("Selection service ready",
		"sources", registry.Names(),
		"defaults", registry.Defaults(),
		"cache_ttl", cfg.Cache.TTL)
	return app, nil
}

// Start launches background work: the knowledge watcher when enabled.
// It returns immediately; the work stops when ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.Knowledge == nil || !a.Config.Knowledge.Watch {
		return
	}
	go func() {
		if err := a.Knowledge.Watch(ctx, knowledge.DefaultDebounce); err != nil {
			a.Logger.Error("Knowledge watcher stopped", "error", err)
		}
	}()
}

// Close releases background resources
func (a *App) Close() {
	if a.cache != nil {
		a.cache.Stop()
	}
}

// Compile-time interface checks
var (
	_ domain.CatalogSource      = (*catalog.Catalog)(nil)
	_ domain.CatalogSource      = (*knowledge.Store)(nil)
	_ domain.CatalogSource      = (*supplier.Client)(nil)
	_ domain.AlternativeLookup  = (*knowledge.Store)(nil)
	_ domain.CacheRepository    = (*cache.MemoryCache)(nil)
	_ usecase.SourceObserver    = (*metrics.Recorder)(nil)
	_ usecase.SelectionObserver = (*metrics.Recorder)(nil)
)
