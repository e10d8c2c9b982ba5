package catalog

import (
	"github.com/partselect/backend/internal/domain"
)

// document is the top-level layout of catalog.yaml
type document struct {
	Parts []part `yaml:"parts"`
}

// part is one catalog entry as stored on disk
type part struct {
	PartNumber   string            `yaml:"part_number"`
	Description  string            `yaml:"description"`
	Manufacturer string            `yaml:"manufacturer"`
	Category     string            `yaml:"category"`
	Datasheet    string            `yaml:"datasheet,omitempty"`
	Specs        map[string]string `yaml:"specs"`
	Offers       []offer           `yaml:"offers"`
	Alternatives []string          `yaml:"alternatives"`
}

// offer is a vendor price point. Missing fields decode as nil, meaning unknown.
type offer struct {
	Vendor string   `yaml:"vendor"`
	Price  *float64 `yaml:"price"`
	Stock  *int     `yaml:"stock"`
}

// toRawRecord converts a catalog entry to the domain record adapters return.
// Price and stock are left to the reconciler; offers carry the raw figures.
func toRawRecord(p *part) domain.RawRecord {
	return domain.RawRecord{
		PartNumber:   p.PartNumber,
		Description:  p.Description,
		Manufacturer: p.Manufacturer,
		Category:     p.Category,
		Specs:        domain.NewSpecs(p.Specs),
		DatasheetURL: p.Datasheet,
		Offers:       toQuotes(p.Offers),
	}
}

// toQuotes copies offers so callers cannot mutate the catalog
func toQuotes(offers []offer) []domain.PriceQuote {
	quotes := make([]domain.PriceQuote, 0, len(offers))
	for _, o := range offers {
		q := domain.PriceQuote{Vendor: o.Vendor, Source: SourceName}
		if o.Price != nil {
			price := *o.Price
			q.Price = &price
		}
		if o.Stock != nil {
			stock := *o.Stock
			q.Stock = &stock
		}
		quotes = append(quotes, q)
	}
	return quotes
}
