package domain

import "strings"

// Well-known spec attribute keys. Anything else lands in Specs.Extra.
const (
	SpecVoltage     = "voltage"
	SpecCurrent     = "current"
	SpecPower       = "power"
	SpecPackage     = "package"
	SpecTemperature = "temperature"
	SpecSpeed       = "speed"
	SpecInterface   = "interface"
)

// Specs holds the electrical and mechanical attributes of a component
type Specs struct {
	Voltage     string            `json:"voltage,omitempty"`
	Current     string            `json:"current,omitempty"`
	Power       string            `json:"power,omitempty"`
	Package     string            `json:"package,omitempty"`
	Temperature string            `json:"temperature,omitempty"`
	Speed       string            `json:"speed,omitempty"`
	Interface   string            `json:"interface,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// NewSpecs builds a Specs value from a flat attribute map as sources deliver it.
// Keys are matched case-insensitively; unknown keys are kept in Extra.
func NewSpecs(attrs map[string]string) Specs {
	var specs Specs
	for key, value := range attrs {
		switch strings.ToLower(strings.TrimSpace(key)) {
		case SpecVoltage:
			specs.Voltage = value
		case SpecCurrent:
			specs.Current = value
		case SpecPower:
			specs.Power = value
		case SpecPackage:
			specs.Package = value
		case SpecTemperature:
			specs.Temperature = value
		case SpecSpeed:
			specs.Speed = value
		case SpecInterface:
			specs.Interface = value
		default:
			if specs.Extra == nil {
				specs.Extra = make(map[string]string)
			}
			specs.Extra[key] = value
		}
	}
	return specs
}

// Get returns the attribute stored under key, looking at Extra for unknown keys
func (s Specs) Get(key string) string {
	switch strings.ToLower(key) {
	case SpecVoltage:
		return s.Voltage
	case SpecCurrent:
		return s.Current
	case SpecPower:
		return s.Power
	case SpecPackage:
		return s.Package
	case SpecTemperature:
		return s.Temperature
	case SpecSpeed:
		return s.Speed
	case SpecInterface:
		return s.Interface
	}
	return s.Extra[key]
}

// PriceQuote is one vendor's price and stock for a part.
// A nil Price or Stock means the vendor did not report it.
type PriceQuote struct {
	Vendor string   `json:"vendor"`
	Price  *float64 `json:"price"`
	Stock  *int     `json:"stock"`
	Source string   `json:"source,omitempty"`
}

// RawRecord is a component as a single source reports it
type RawRecord struct {
	PartNumber   string       `json:"partNumber"`
	Description  string       `json:"description"`
	Manufacturer string       `json:"manufacturer"`
	Category     string       `json:"category"`
	Specs        Specs        `json:"specs"`
	DatasheetURL string       `json:"datasheetUrl,omitempty"`
	Price        *float64     `json:"price,omitempty"`
	Stock        *int         `json:"stock,omitempty"`
	Offers       []PriceQuote `json:"offers,omitempty"`
}

// Candidate is a merged, de-duplicated component produced by one aggregation pass
type Candidate struct {
	ID           string       `json:"id"` // upper-cased part number
	PartNumber   string       `json:"partNumber"`
	Description  string       `json:"description"`
	Manufacturer string       `json:"manufacturer"`
	Category     string       `json:"category"`
	Specs        Specs        `json:"specs"`
	DatasheetURL string       `json:"datasheetUrl,omitempty"`
	Sources      []string     `json:"sources"`
	Price        *float64     `json:"price"`
	Stock        *int         `json:"stock"`
	Offers       []PriceQuote `json:"offers"`
	Alternatives []string     `json:"alternatives,omitempty"`
}

// CanonicalID normalizes a part number into the identifier used for de-duplication
func CanonicalID(partNumber string) string {
	return strings.ToUpper(strings.TrimSpace(partNumber))
}
