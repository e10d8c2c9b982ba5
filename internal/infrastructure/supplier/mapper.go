package supplier

import (
	"strings"

	"github.com/partselect/backend/internal/domain"
)

// mapParts converts API parts to domain records, dropping entries without a
// part number
func mapParts(parts []partDTO, source string) []domain.RawRecord {
	records := make([]domain.RawRecord, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.PartNumber) == "" {
			continue
		}
		records = append(records, domain.RawRecord{
			PartNumber:   p.PartNumber,
			Description:  p.Description,
			Manufacturer: p.Manufacturer,
			Category:     strings.ToLower(p.Category),
			Specs:        domain.NewSpecs(p.Specs),
			DatasheetURL: p.DatasheetURL,
			Price:        p.Price,
			Stock:        p.Stock,
			Offers:       mapOffers(p.Offers, source),
		})
	}
	return records
}

// mapOffers converts API offers to quotes. An offer without a vendor name is
// attributed to the platform itself.
func mapOffers(offers []offerDTO, source string) []domain.PriceQuote {
	quotes := make([]domain.PriceQuote, 0, len(offers))
	for _, o := range offers {
		vendor := strings.TrimSpace(o.Vendor)
		if vendor == "" {
			vendor = source
		}
		quotes = append(quotes, domain.PriceQuote{
			Vendor: vendor,
			Price:  o.Price,
			Stock:  o.Stock,
			Source: source,
		})
	}
	return quotes
}
