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

// Aggregator defaults
const (
	defaultSourceTimeout  = 10 * time.Second
	defaultMaxConcurrency = 8
)

// AggregatorConfig holds configuration for the source aggregator
type AggregatorConfig struct {
	SourceTimeout  time.Duration
	MaxConcurrency int
	Observer       SourceObserver
	Logger         *slog.Logger
}

// AggregateRequest describes one aggregation pass
type AggregateRequest struct {
	Term        string
	Category    string
	Constraints map[string]string
	Limit       int
	// Sources is the priority order. Nil means the registry defaults.
	Sources []string
}

// SourceOutcome records what one source contributed to a pass
type SourceOutcome struct {
	Source  string `json:"source"`
	Records int    `json:"records"`
	Err     error  `json:"-"`
}

// Failed reports whether the source was isolated as a failure
func (o SourceOutcome) Failed() bool {
	return o.Err != nil
}

// AggregateResult is the merged output of one pass
type AggregateResult struct {
	Candidates []domain.Candidate
	Outcomes   []SourceOutcome
}

// FailedSources returns the names of sources that failed, in priority order
func (r AggregateResult) FailedSources() []string {
	var failed []string
	for _, o := range r.Outcomes {
		if o.Failed() {
			failed = append(failed, o.Source)
		}
	}
	return failed
}

// Aggregator fans a search out to every requested source and merges the
// results into canonical candidates
type Aggregator struct {
	registry       *SourceRegistry
	sourceTimeout  time.Duration
	maxConcurrency int
	observer       SourceObserver
	logger         *slog.Logger
}

// NewAggregator creates an aggregator over the given registry
func NewAggregator(registry *SourceRegistry, config AggregatorConfig) *Aggregator {
	timeout := config.SourceTimeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}

	concurrency := config.MaxConcurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}

	var observer SourceObserver = nopObserver{}
	if config.Observer != nil {
		observer = config.Observer
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		registry:       registry,
		sourceTimeout:  timeout,
		maxConcurrency: concurrency,
		observer:       observer,
		logger:         logger,
	}
}

// sourceBatch holds the records one source returned, tagged with its name
type sourceBatch struct {
	source  string
	records []domain.RawRecord
	err     error
}

// Aggregate queries every source and merges the results. It never fails:
// a source that errors, panics or times out contributes zero records.
func (a *Aggregator) Aggregate(ctx context.Context, req AggregateRequest) AggregateResult {
	names := req.Sources
	if names == nil {
		names = a.registry.Defaults()
	}

	searchReq := domain.SearchRequest{
		Term:        req.Term,
		Category:    req.Category,
		Constraints: req.Constraints,
		Limit:       req.Limit,
	}

	// Each goroutine owns exactly one slot; failures are values, so the
	// group never cancels its siblings.
	batches := make([]sourceBatch, len(names))
	g := new(errgroup.Group)
	g.SetLimit(a.maxConcurrency)

	for i, name := range names {
		batches[i].source = normalizeSourceName(name)
		src, ok := a.registry.Lookup(name)
		if !ok {
			batches[i].err = fmt.Errorf("%w: %w: %q", domain.ErrSourceUnavailable, domain.ErrUnknownSource, name)
			continue
		}

		g.Go(func() error {
			start := time.Now()
			records, err := guardedCall(ctx, a.sourceTimeout, src.Name(),
				func(ctx context.Context) ([]domain.RawRecord, error) {
					return src.Search(ctx, searchReq)
				})
			a.observer.ObserveSourceCall(batches[i].source, operationSearch, time.Since(start), err)
			batches[i].records = records
			batches[i].err = err
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make([]SourceOutcome, len(batches))
	for i, b := range batches {
		outcomes[i] = SourceOutcome{Source: b.source, Records: len(b.records), Err: b.err}
		if b.err != nil {
			level := slog.LevelWarn
			if errors.Is(b.err, domain.ErrUnknownSource) {
				level = slog.LevelError
			}
			a.logger.Log(ctx, level, "Source search failed", "source", b.source, "term", req.Term, "error", b.err)
			continue
		}
		a.logger.Debug("Source search returned", "source", b.source, "term", req.Term, "records", len(b.records))
	}

	return AggregateResult{
		Candidates: mergeBatches(batches, req.Limit),
		Outcomes:   outcomes,
	}
}

// mergeBatches de-duplicates records by canonical part number. Batches are
// processed in priority order: the first record for a key supplies every
// descriptive field, later ones only add offers and provenance.
func mergeBatches(batches []sourceBatch, limit int) []domain.Candidate {
	index := make(map[string]int)
	merged := make([]domain.Candidate, 0)

	for _, batch := range batches {
		if batch.err != nil {
			continue
		}
		for _, rec := range batch.records {
			id := domain.CanonicalID(rec.PartNumber)
			if id == "" {
				continue
			}

			offers := tagOffers(rec.Offers, batch.source)

			if pos, seen := index[id]; seen {
				existing := &merged[pos]
				existing.Offers = append(existing.Offers, offers...)
				if !containsString(existing.Sources, batch.source) {
					existing.Sources = append(existing.Sources, batch.source)
				}
				continue
			}

			index[id] = len(merged)
			merged = append(merged, domain.Candidate{
				ID:           id,
				PartNumber:   strings.TrimSpace(rec.PartNumber),
				Description:  rec.Description,
				Manufacturer: rec.Manufacturer,
				Category:     rec.Category,
				Specs:        rec.Specs,
				DatasheetURL: rec.DatasheetURL,
				Sources:      []string{batch.source},
				Price:        rec.Price,
				Stock:        rec.Stock,
				Offers:       offers,
			})
		}
	}

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// tagOffers copies offers and stamps their source when the adapter left it blank
func tagOffers(offers []domain.PriceQuote, source string) []domain.PriceQuote {
	tagged := make([]domain.PriceQuote, len(offers))
	for i, o := range offers {
		if o.Source == "" {
			o.Source = source
		}
		tagged[i] = o
	}
	return tagged
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
