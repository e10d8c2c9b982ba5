package domain

// ScoredCandidate is a candidate with its compatibility score and the
// constraints that contributed to it, in fixed rule order
type ScoredCandidate struct {
	Candidate
	Score              float64  `json:"compatibilityScore"`
	MatchedConstraints []string `json:"matchedConstraints"`
}

// PriceSummary is the reconciled price/stock view of one part across sources
type PriceSummary struct {
	PartNumber string       `json:"partNumber"`
	Quotes     []PriceQuote `json:"prices"`
	Best       *PriceQuote  `json:"bestQuote"`
	BestVendor string       `json:"bestVendor,omitempty"`
	BestPrice  *float64     `json:"bestPrice"` // nil when no source reported a price
	TotalStock int          `json:"totalStock"`
	Failures   []string     `json:"failedSources,omitempty"`
}

// ProcurementItem is one line of the generated purchase list
type ProcurementItem struct {
	Reference    string   `json:"reference"`
	PartNumber   string   `json:"partNumber"`
	Manufacturer string   `json:"manufacturer"`
	Description  string   `json:"description"`
	Quantity     int      `json:"quantity"`
	UnitPrice    *float64 `json:"priceEstimate"`
	TotalPrice   *float64 `json:"totalPrice"`
}

// SelectionResult is the complete answer to one selection query
type SelectionResult struct {
	RequestID             string            `json:"requestId"`
	Query                 string            `json:"query"`
	RecommendedParts      []ScoredCandidate `json:"recommendedParts"`
	AnalysisReport        string            `json:"analysisReport"`
	CompatibilityWarnings []string          `json:"compatibilityWarnings"`
	ProcurementItems      []ProcurementItem `json:"bomItems"`
	TotalEstimatedCost    float64           `json:"totalEstimatedCost"`
	GeneratedAt           string            `json:"generatedAt"`
}

// SelectRequest is a selection query as callers submit it
type SelectRequest struct {
	Query       string            `json:"query"`
	Constraints map[string]string `json:"constraints,omitempty"`
	TopK        int               `json:"top_k,omitempty"`
	Sources     []string          `json:"sources,omitempty"`
	// Quantities and References are keyed by part number (case-insensitive)
	Quantities map[string]int    `json:"quantities,omitempty"`
	References map[string]string `json:"references,omitempty"`
}

// SearchQuery is an unscored keyword search across sources
type SearchQuery struct {
	Term     string   `json:"q"`
	Category string   `json:"category,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Sources  []string `json:"sources,omitempty"`
}

// SearchResult lists merged candidates in source priority order
type SearchResult struct {
	Query         string      `json:"query"`
	Results       []Candidate `json:"results"`
	FailedSources []string    `json:"failedSources,omitempty"`
}
