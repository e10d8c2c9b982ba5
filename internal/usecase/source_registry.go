package usecase

import (
	"fmt"
	"strings"

	"github.com/partselect/backend/internal/domain"
)

// BuiltinSourceName is the identifier of the embedded catalog
const BuiltinSourceName = "builtin"

// SourceRegistry resolves source identifiers to adapters. It is populated
// at startup and read-only afterwards.
type SourceRegistry struct {
	sources  map[string]domain.CatalogSource
	order    []string
	defaults []string
}

// NewSourceRegistry creates a registry holding the given sources in order
func NewSourceRegistry(sources ...domain.CatalogSource) (*SourceRegistry, error) {
	r := &SourceRegistry{sources: make(map[string]domain.CatalogSource)}
	for _, src := range sources {
		if err := r.Register(src); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a source. Names are case-insensitive and must be unique.
func (r *SourceRegistry) Register(src domain.CatalogSource) error {
	if src == nil {
		return fmt.Errorf("register source: %w: nil source", domain.ErrInvalidRequest)
	}
	name := normalizeSourceName(src.Name())
	if name == "" {
		return fmt.Errorf("register source: %w: empty name", domain.ErrInvalidRequest)
	}
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("register source %q: already registered", name)
	}
	r.sources[name] = src
	r.order = append(r.order, name)
	return nil
}

// SetDefaults sets the ordered source list used when a request names none
func (r *SourceRegistry) SetDefaults(names []string) {
	r.defaults = make([]string, 0, len(names))
	for _, n := range names {
		if n = normalizeSourceName(n); n != "" {
			r.defaults = append(r.defaults, n)
		}
	}
}

// Defaults returns the default priority list: the configured defaults, else
// the built-in catalog when registered, else every source in registration order
func (r *SourceRegistry) Defaults() []string {
	if len(r.defaults) > 0 {
		return append([]string(nil), r.defaults...)
	}
	if _, ok := r.sources[BuiltinSourceName]; ok {
		return []string{BuiltinSourceName}
	}
	return r.Names()
}

// Lookup returns the source registered under name
func (r *SourceRegistry) Lookup(name string) (domain.CatalogSource, bool) {
	src, ok := r.sources[normalizeSourceName(name)]
	return src, ok
}

// Names returns every registered source in registration order
func (r *SourceRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered sources
func (r *SourceRegistry) Len() int {
	return len(r.order)
}

func normalizeSourceName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
