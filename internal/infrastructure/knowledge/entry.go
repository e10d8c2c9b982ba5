package knowledge

import (
	"strings"

	"github.com/partselect/backend/internal/domain"
)

// Entry is one indexed part
type Entry struct {
	PartNumber string    `json:"part_number" yaml:"part_number"`
	Data       Datasheet `json:"data" yaml:"data"`
	AddedAt    string    `json:"added_at" yaml:"added_at"`
}

// Datasheet holds the attributes extracted from a part's datasheet
type Datasheet struct {
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Manufacturer string            `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Category     string            `json:"category,omitempty" yaml:"category,omitempty"`
	Voltage      string            `json:"voltage,omitempty" yaml:"voltage,omitempty"`
	Current      string            `json:"current,omitempty" yaml:"current,omitempty"`
	Package      string            `json:"package,omitempty" yaml:"package,omitempty"`
	Specs        map[string]string `json:"specs,omitempty" yaml:"specs,omitempty"`
	DatasheetURL string            `json:"datasheet_url,omitempty" yaml:"datasheet_url,omitempty"`
	Price        *float64          `json:"price,omitempty" yaml:"price,omitempty"`
	Stock        *int              `json:"stock,omitempty" yaml:"stock,omitempty"`
	Offers       []Offer           `json:"offers,omitempty" yaml:"offers,omitempty"`
	Alternatives []string          `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
}

// Offer is a vendor price recorded alongside a datasheet
type Offer struct {
	Vendor string   `json:"vendor" yaml:"vendor"`
	Price  *float64 `json:"price,omitempty" yaml:"price,omitempty"`
	Stock  *int     `json:"stock,omitempty" yaml:"stock,omitempty"`
}

func (e Entry) toRawRecord() domain.RawRecord {
	attrs := make(map[string]string, len(e.Data.Specs)+3)
	for k, v := range e.Data.Specs {
		attrs[k] = v
	}
	// Top-level fields win over the free-form map
	for key, value := range map[string]string{
		domain.SpecVoltage: e.Data.Voltage,
		domain.SpecCurrent: e.Data.Current,
		domain.SpecPackage: e.Data.Package,
	} {
		if value != "" {
			attrs[key] = value
		}
	}

	return domain.RawRecord{
		PartNumber:   e.PartNumber,
		Description:  e.Data.Description,
		Manufacturer: e.Data.Manufacturer,
		Category:     strings.ToLower(e.Data.Category),
		Specs:        domain.NewSpecs(attrs),
		DatasheetURL: e.Data.DatasheetURL,
		Price:        copyPtr(e.Data.Price),
		Stock:        copyPtr(e.Data.Stock),
		Offers:       e.quotes(),
	}
}

func (e Entry) quotes() []domain.PriceQuote {
	quotes := make([]domain.PriceQuote, 0, len(e.Data.Offers))
	for _, o := range e.Data.Offers {
		quotes = append(quotes, domain.PriceQuote{
			Vendor: o.Vendor,
			Price:  copyPtr(o.Price),
			Stock:  copyPtr(o.Stock),
			Source: SourceName,
		})
	}
	return quotes
}

func copyPtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
