package domain

import (
	"context"
	"time"
)

// SearchRequest is what the aggregator hands to every source
type SearchRequest struct {
	Term        string
	Category    string
	Constraints map[string]string
	Limit       int
}

// CatalogSource is the uniform capability every data backend exposes
type CatalogSource interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) ([]RawRecord, error)
	PriceAndStock(ctx context.Context, partNumber string) ([]PriceQuote, error)
}

// AlternativeLookup returns substitute part numbers. Used to annotate, never to rank.
type AlternativeLookup interface {
	Alternatives(ctx context.Context, partNumber string) ([]string, error)
}

// CacheRepository defines the interface for caching operations.
// Values are opaque encoded bytes so memory and remote backends behave alike.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
