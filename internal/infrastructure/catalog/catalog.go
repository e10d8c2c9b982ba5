package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/partselect/backend/internal/domain"
	"gopkg.in/yaml.v3"
)

// SourceName identifies the embedded catalog in the source registry
const SourceName = "builtin"

// Search tuning
const (
	defaultLimit        = 10
	minWordLength       = 2
	baseRelevance       = 0.5
	partNumberRelevance = 0.3
	manufacturerBonus   = 0.1
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// synonyms rewrite query phrases onto the vocabulary used in descriptions.
// Applied in order; longer phrases first.
var synonyms = []struct{ from, to string }{
	{"双运放", "dual opamp"},
	{"dual op-amp", "dual opamp"},
	{"op-amp", "opamp"},
	{"运放", "opamp"},
	{"单片机", "mcu"},
	{"微控制器", "mcu"},
	{"升压", "boost"},
	{"降压", "buck"},
}

// Catalog is an in-memory component dataset that satisfies domain.CatalogSource
// and domain.AlternativeLookup. It is read-only after construction.
type Catalog struct {
	parts  []part
	index  map[string]int
	logger *slog.Logger
}

// New loads the embedded dataset
func New(logger *slog.Logger) (*Catalog, error) {
	return Load(bytes.NewReader(embeddedCatalog), logger)
}

// Load reads a catalog in the embedded YAML layout
func Load(r io.Reader, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{index: make(map[string]int, len(doc.Parts)), logger: logger}
	for _, p := range doc.Parts {
		id := domain.CanonicalID(p.PartNumber)
		if id == "" {
			return nil, fmt.Errorf("decode catalog: part without part_number")
		}
		if _, dup := c.index[id]; dup {
			return nil, fmt.Errorf("decode catalog: duplicate part %q", p.PartNumber)
		}
		c.index[id] = len(c.parts)
		c.parts = append(c.parts, p)
	}

	logger.Info("Catalog loaded", "source", SourceName, "parts", len(c.parts))
	return c, nil
}

// Name implements domain.CatalogSource
func (c *Catalog) Name() string {
	return SourceName
}

// Len returns the number of parts in the catalog
func (c *Catalog) Len() int {
	return len(c.parts)
}

type match struct {
	part      *part
	relevance float64
}

// Search returns parts whose part number, description or manufacturer
// contain any query word, filtered by category and spec constraints and
// ordered by relevance
func (c *Catalog) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := strings.ToLower(strings.TrimSpace(req.Term))
	words := queryWords(query)
	category := strings.ToLower(strings.TrimSpace(req.Category))

	var matches []match
	for i := range c.parts {
		p := &c.parts[i]

		if category != "" && strings.ToLower(p.Category) != category {
			continue
		}
		if len(words) > 0 && !p.matchesAny(words) {
			continue
		}
		if !p.satisfies(req.Constraints) {
			continue
		}

		matches = append(matches, match{part: p, relevance: p.relevance(query)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].relevance > matches[j].relevance
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	records := make([]domain.RawRecord, 0, len(matches))
	for _, m := range matches {
		records = append(records, toRawRecord(m.part))
	}

	c.logger.Debug("Catalog search", "term", req.Term, "category", req.Category, "results", len(records))
	return records, nil
}

// PriceAndStock returns the catalog's vendor offers for a part. Unknown
// parts yield no quotes.
func (c *Catalog) PriceAndStock(ctx context.Context, partNumber string) ([]domain.PriceQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := c.lookup(partNumber)
	if !ok {
		return []domain.PriceQuote{}, nil
	}
	return toQuotes(p.Offers), nil
}

// Alternatives returns the substitute part numbers listed for a part
func (c *Catalog) Alternatives(ctx context.Context, partNumber string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := c.lookup(partNumber)
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, p.Alternatives...), nil
}

// Get returns one part as a raw record
func (c *Catalog) Get(partNumber string) (domain.RawRecord, bool) {
	p, ok := c.lookup(partNumber)
	if !ok {
		return domain.RawRecord{}, false
	}
	return toRawRecord(p), true
}

func (c *Catalog) lookup(partNumber string) (*part, bool) {
	i, ok := c.index[domain.CanonicalID(partNumber)]
	if !ok {
		return nil, false
	}
	return &c.parts[i], true
}

// queryWords normalizes synonyms and splits the query into unique words.
// Short words are kept so a query made only of them matches nothing.
func queryWords(query string) []string {
	normalized := query
	for _, s := range synonyms {
		normalized = strings.ReplaceAll(normalized, s.from, s.to)
	}

	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.Fields(normalized) {
		if seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

func (p *part) searchText() (text, normalized string) {
	text = strings.ToLower(p.PartNumber + " " + p.Description + " " + p.Manufacturer)
	normalized = strings.NewReplacer("-", " ", "/", " ").Replace(text)
	return text, normalized
}

func (p *part) matchesAny(words []string) bool {
	text, normalized := p.searchText()
	for _, w := range words {
		if len([]rune(w)) < minWordLength {
			continue
		}
		if strings.Contains(text, w) || strings.Contains(normalized, w) {
			return true
		}
		if w == "opamp" && (strings.Contains(text, "op-amp") || strings.Contains(normalized, "op amp")) {
			return true
		}
	}
	return false
}

// satisfies applies spec constraints as case-insensitive substring filters
func (p *part) satisfies(constraints map[string]string) bool {
	for _, key := range []string{domain.SpecVoltage, domain.SpecPackage, domain.SpecCurrent} {
		want := strings.TrimSpace(constraints[key])
		if want == "" {
			continue
		}
		if !strings.Contains(strings.ToUpper(p.Specs[key]), strings.ToUpper(want)) {
			return false
		}
	}
	return true
}

func (p *part) relevance(query string) float64 {
	score := baseRelevance
	if query == "" {
		return score
	}
	if strings.Contains(strings.ToLower(p.PartNumber), query) {
		score += partNumberRelevance
	}
	if strings.Contains(strings.ToLower(p.Manufacturer), query) {
		score += manufacturerBonus
	}
	return score
}
