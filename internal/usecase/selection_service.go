package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/partselect/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Selection defaults
const (
	defaultTopK = 5
	maxTopK     = 20

	// candidatePoolFactor widens the aggregation limit so ranking has room
	// to promote candidates that were not first-seen
	candidatePoolFactor = 3

	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// SelectionObserver receives one notification per completed selection
type SelectionObserver interface {
	ObserveSelection(candidates int, err error)
}

func (nopObserver) ObserveSelection(int, error) {}

// SelectionServiceConfig holds configuration for the selection service
type SelectionServiceConfig struct {
	DefaultTopK    int
	MaxTopK        int
	SourceTimeout  time.Duration
	MaxConcurrency int
	PriceCacheTTL  time.Duration
	// Observer may also implement SelectionObserver
	Observer SourceObserver
	Logger   *slog.Logger
}

// SelectionService runs the resolution pipeline: parse, aggregate, score,
// reconcile prices and assemble the result
type SelectionService struct {
	parser       *ConstraintParser
	aggregator   *Aggregator
	scorer       *Scorer
	reconciler   *PriceReconciler
	assembler    *ResultAssembler
	alternatives domain.AlternativeLookup
	defaultTopK  int
	maxTopK      int
	maxParallel  int
	selections   SelectionObserver
	logger       *slog.Logger
}

// NewSelectionService creates the selection pipeline. cache and alternatives
// may be nil.
func NewSelectionService(
	registry *SourceRegistry,
	cache domain.CacheRepository,
	alternatives domain.AlternativeLookup,
	config SelectionServiceConfig,
) *SelectionService {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	upper := config.MaxTopK
	if upper <= 0 || upper > maxTopK {
		upper = maxTopK
	}

	topK := config.DefaultTopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > upper {
		topK = upper
	}

	concurrency := config.MaxConcurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}

	var selections SelectionObserver = nopObserver{}
	if so, ok := config.Observer.(SelectionObserver); ok {
		selections = so
	}

	return &SelectionService{
		parser: NewConstraintParser(logger),
		aggregator: NewAggregator(registry, AggregatorConfig{
			SourceTimeout:  config.SourceTimeout,
			MaxConcurrency: concurrency,
			Observer:       config.Observer,
			Logger:         logger,
		}),
		scorer: NewScorer(),
		reconciler: NewPriceReconciler(registry, cache, PriceReconcilerConfig{
			SourceTimeout:  config.SourceTimeout,
			MaxConcurrency: concurrency,
			CacheTTL:       config.PriceCacheTTL,
			Observer:       config.Observer,
			Logger:         logger,
		}),
		assembler:    NewResultAssembler(),
		alternatives: alternatives,
		defaultTopK:  topK,
		maxTopK:      upper,
		maxParallel:  concurrency,
		selections:   selections,
		logger:       logger,
	}
}

// NormalizeTopK resolves a requested topK against the service bounds.
// Zero or negative selects the default.
func (s *SelectionService) NormalizeTopK(topK int) int {
	if topK <= 0 {
		return s.defaultTopK
	}
	if topK > s.maxTopK {
		return s.maxTopK
	}
	return topK
}

// Select answers a selection query. It never returns an error: any fault is
// reported as an empty result whose report carries a diagnostic.
func (s *SelectionService) Select(ctx context.Context, req domain.SelectRequest) (result *domain.SelectionResult) {
	start := time.Now()
	var failure error

	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("%w: %v", domain.ErrPipelineFailure, r)
			s.logger.Error("Selection pipeline panicked", "query", req.Query, "error", failure)
			result = s.assembler.Failure(req.Query, failure.Error())
		}
		s.selections.ObserveSelection(len(result.RecommendedParts), failure)
	}()

	topK := s.NormalizeTopK(req.TopK)
	set := s.parser.Parse(req.Query, req.Constraints)

	s.logger.Info("Processing selection",
		"query", req.Query,
		"top_k", topK,
		"voltage", set.TargetVoltage,
		"current", set.TargetCurrent,
		"package", set.TargetPackage,
		"category", set.CategoryHint,
	)

	agg := s.aggregator.Aggregate(ctx, AggregateRequest{
		Term:        SearchTerm(set),
		Category:    set.CategoryHint,
		Constraints: set.ExplicitConstraints(),
		Limit:       topK * candidatePoolFactor,
		Sources:     req.Sources,
	})

	if err := ctx.Err(); err != nil {
		failure = fmt.Errorf("%w: %w", domain.ErrPipelineFailure, err)
		s.logger.Warn("Selection cancelled", "query", req.Query, "error", err)
		return s.assembler.Failure(req.Query, err.Error())
	}

	ranked := s.scorer.Rank(agg.Candidates, set)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	s.enrich(ctx, ranked)

	if len(ranked) == 0 {
		s.logger.Info("No candidates matched", "query", req.Query, "error", domain.ErrNoCandidates)
	}

	result = s.assembler.Assemble(AssembleInput{
		Query:         req.Query,
		Ranked:        ranked,
		FailedSources: agg.FailedSources(),
		Quantities:    req.Quantities,
		References:    req.References,
	})

	s.logger.Info("Selection completed",
		"query", req.Query,
		"candidates", len(result.RecommendedParts),
		"failed_sources", len(agg.FailedSources()),
		"duration", time.Since(start),
	)
	return result
}

// enrich fills in reconciled price/stock and alternatives for the top-K in
// place. Order is never changed.
func (s *SelectionService) enrich(ctx context.Context, ranked []domain.ScoredCandidate) {
	g := new(errgroup.Group)
	g.SetLimit(s.maxParallel)

	for i := range ranked {
		g.Go(func() error {
			c := &ranked[i].Candidate
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Candidate enrichment panicked", "part", c.PartNumber, "panic", r)
				}
			}()
			applySummary(c, s.priceSummary(ctx, c))
			c.Alternatives = s.lookupAlternatives(ctx, c.PartNumber)
			return nil
		})
	}
	_ = g.Wait()
}

// priceSummary reconciles one candidate, falling back to the offers
// gathered during aggregation when no source answered
func (s *SelectionService) priceSummary(ctx context.Context, c *domain.Candidate) *domain.PriceSummary {
	summary, err := s.reconciler.Reconcile(ctx, c.PartNumber)
	if err == nil && (len(summary.Quotes) > 0 || len(summary.Failures) == 0) {
		return summary
	}
	if err != nil {
		s.logger.Warn("Price reconciliation failed", "part", c.PartNumber, "error", err)
	}

	fallback := &domain.PriceSummary{
		PartNumber: c.PartNumber,
		Quotes:     append([]domain.PriceQuote{}, c.Offers...),
	}
	if summary != nil {
		fallback.Failures = summary.Failures
	}
	SummarizeQuotes(fallback)
	return fallback
}

// applySummary copies reconciled figures onto the candidate. Fields stay
// unknown when no quote reported them.
func applySummary(c *domain.Candidate, summary *domain.PriceSummary) {
	if summary == nil {
		return
	}
	if summary.BestPrice != nil {
		price := *summary.BestPrice
		c.Price = &price
	}

	stockKnown := false
	for _, q := range summary.Quotes {
		if q.Stock != nil {
			stockKnown = true
			break
		}
	}
	if stockKnown {
		stock := summary.TotalStock
		c.Stock = &stock
	}

	if len(summary.Quotes) > 0 {
		c.Offers = summary.Quotes
	}
}

func (s *SelectionService) lookupAlternatives(ctx context.Context, partNumber string) []string {
	if s.alternatives == nil {
		return nil
	}
	alts, err := s.alternatives.Alternatives(ctx, partNumber)
	if err != nil {
		s.logger.Warn("Alternative lookup failed", "part", partNumber, "error", err)
		return nil
	}
	return alts
}

// ComparePrices returns the reconciled price summary for one part
func (s *SelectionService) ComparePrices(ctx context.Context, partNumber string) (*domain.PriceSummary, error) {
	summary, err := s.reconciler.Reconcile(ctx, partNumber)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Price comparison completed",
		"part", partNumber,
		"quotes", len(summary.Quotes),
		"failed_sources", len(summary.Failures),
	)
	return summary, nil
}

// Alternatives returns substitutes for a part. An unconfigured lookup
// yields an empty list.
func (s *SelectionService) Alternatives(ctx context.Context, partNumber string) ([]string, error) {
	partNumber = strings.TrimSpace(partNumber)
	if partNumber == "" {
		return nil, fmt.Errorf("%w: part number is required", domain.ErrInvalidRequest)
	}
	if s.alternatives == nil {
		return []string{}, nil
	}
	alts, err := s.alternatives.Alternatives(ctx, partNumber)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: alternatives: %w", domain.ErrSourceUnavailable, err)
	}
	if alts == nil {
		alts = []string{}
	}
	return alts, nil
}

// Search runs a raw keyword search: aggregation only, no scoring, prices or
// alternatives. A term or a category is required.
func (s *SelectionService) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	term := strings.TrimSpace(q.Term)
	category := strings.ToLower(strings.TrimSpace(q.Category))
	if term == "" && category == "" {
		return nil, fmt.Errorf("%w: search term or category is required", domain.ErrInvalidRequest)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	agg := s.aggregator.Aggregate(ctx, AggregateRequest{
		Term:     term,
		Category: category,
		Limit:    limit,
		Sources:  q.Sources,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Info("Search completed",
		"term", term,
		"category", category,
		"results", len(agg.Candidates),
		"failed_sources", len(agg.FailedSources()),
	)
	return &domain.SearchResult{
		Query:         term,
		Results:       agg.Candidates,
		FailedSources: agg.FailedSources(),
	}, nil
}
