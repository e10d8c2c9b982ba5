package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/partselect/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// defaultPriceCacheTTL bounds how stale a cached price summary may get
const defaultPriceCacheTTL = 15 * time.Minute

// PriceReconcilerConfig holds configuration for the price reconciler
type PriceReconcilerConfig struct {
	SourceTimeout  time.Duration
	MaxConcurrency int
	CacheTTL       time.Duration
	Observer       SourceObserver
	Logger         *slog.Logger
}

// PriceReconciler queries every configured source for price and stock and
// reduces the answers to one PriceSummary
type PriceReconciler struct {
	registry       *SourceRegistry
	cache          domain.CacheRepository
	sourceTimeout  time.Duration
	maxConcurrency int
	cacheTTL       time.Duration
	observer       SourceObserver
	logger         *slog.Logger
}

// NewPriceReconciler creates a reconciler. cache may be nil to disable caching.
func NewPriceReconciler(
	registry *SourceRegistry,
	cache domain.CacheRepository,
	config PriceReconcilerConfig,
) *PriceReconciler {
	timeout := config.SourceTimeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}

	concurrency := config.MaxConcurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}

	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultPriceCacheTTL
	}

	var observer SourceObserver = nopObserver{}
	if config.Observer != nil {
		observer = config.Observer
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PriceReconciler{
		registry:       registry,
		cache:          cache,
		sourceTimeout:  timeout,
		maxConcurrency: concurrency,
		cacheTTL:       cacheTTL,
		observer:       observer,
		logger:         logger,
	}
}

type quoteBatch struct {
	source string
	quotes []domain.PriceQuote
	err    error
}

// Reconcile returns the price summary for a part across all sources.
// Sources that fail contribute no quotes and are listed in Failures.
func (r *PriceReconciler) Reconcile(ctx context.Context, partNumber string) (*domain.PriceSummary, error) {
	partNumber = strings.TrimSpace(partNumber)
	if partNumber == "" {
		return nil, fmt.Errorf("%w: part number is required", domain.ErrInvalidRequest)
	}

	cacheKey := priceCacheKey(partNumber)
	if cached, err := r.getFromCache(ctx, cacheKey); err == nil {
		return cached, nil
	}

	names := r.registry.Names()
	batches := make([]quoteBatch, len(names))

	g := new(errgroup.Group)
	g.SetLimit(r.maxConcurrency)
	for i, name := range names {
		src, _ := r.registry.Lookup(name)
		batches[i].source = name

		g.Go(func() error {
			start := time.Now()
			quotes, err := guardedCall(ctx, r.sourceTimeout, name,
				func(ctx context.Context) ([]domain.PriceQuote, error) {
					return src.PriceAndStock(ctx, partNumber)
				})
			r.observer.ObserveSourceCall(name, operationPrice, time.Since(start), err)
			batches[i].quotes = quotes
			batches[i].err = err
			return nil
		})
	}
	_ = g.Wait()

	summary := &domain.PriceSummary{
		PartNumber: partNumber,
		Quotes:     []domain.PriceQuote{},
	}
	for _, b := range batches {
		if b.err != nil {
			r.logger.Warn("Price lookup failed", "source", b.source, "part", partNumber, "error", b.err)
			summary.Failures = append(summary.Failures, b.source)
			continue
		}
		summary.Quotes = append(summary.Quotes, tagOffers(b.quotes, b.source)...)
	}
	SummarizeQuotes(summary)

	// Only cache when every source answered, so a transient outage is retried
	if len(summary.Failures) == 0 {
		if err := r.setInCache(ctx, cacheKey, summary); err != nil {
			r.logger.Warn("Failed to cache price summary", "part", partNumber, "error", err)
		}
	}

	return summary, nil
}

// SummarizeQuotes fills in the best quote and total stock of a summary.
// The best quote is the lowest known price; ties keep source order. Quotes
// without a price never win, so an all-unknown set leaves BestPrice nil.
func SummarizeQuotes(summary *domain.PriceSummary) {
	summary.Best = nil
	summary.BestPrice = nil
	summary.BestVendor = ""
	summary.TotalStock = 0

	for i := range summary.Quotes {
		q := summary.Quotes[i]
		if q.Stock != nil {
			summary.TotalStock += *q.Stock
		}
		if q.Price == nil {
			continue
		}
		if summary.Best == nil || *q.Price < *summary.Best.Price {
			best := q
			summary.Best = &best
		}
	}

	if summary.Best != nil {
		price := *summary.Best.Price
		summary.BestPrice = &price
		summary.BestVendor = summary.Best.Vendor
	}
}

func priceCacheKey(partNumber string) string {
	return "price:" + domain.CanonicalID(partNumber)
}

func (r *PriceReconciler) getFromCache(ctx context.Context, key string) (*domain.PriceSummary, error) {
	if r.cache == nil {
		return nil, domain.ErrCacheMiss
	}
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var summary domain.PriceSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheMiss, err)
	}
	return &summary, nil
}

func (r *PriceReconciler) setInCache(ctx context.Context, key string, summary *domain.PriceSummary) error {
	if r.cache == nil {
		return nil
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return r.cache.Set(ctx, key, data, r.cacheTTL)
}
