package supplier

// searchResponse is the body of GET /v1/parts/search
type searchResponse struct {
	Parts      []partDTO `json:"parts"`
	TotalCount int       `json:"totalCount"`
}

// offersResponse is the body of GET /v1/parts/{partNumber}/offers
type offersResponse struct {
	PartNumber string     `json:"partNumber"`
	Offers     []offerDTO `json:"offers"`
}

// partDTO carries the platform's own headline price and stock next to the
// per-distributor offers
type partDTO struct {
	PartNumber   string            `json:"partNumber"`
	Description  string            `json:"description"`
	Manufacturer string            `json:"manufacturer"`
	Category     string            `json:"category"`
	Specs        map[string]string `json:"specs"`
	DatasheetURL string            `json:"datasheetUrl"`
	Price        *float64          `json:"price"`
	Stock        *int              `json:"stock"`
	Offers       []offerDTO        `json:"offers"`
}

// offerDTO uses pointers so an omitted price or stock stays unknown
type offerDTO struct {
	Vendor string   `json:"vendor"`
	Price  *float64 `json:"price"`
	Stock  *int     `json:"stock"`
}
