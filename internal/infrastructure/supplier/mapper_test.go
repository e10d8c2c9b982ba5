package supplier

import (
	"testing"
)

func TestMapParts(t *testing.T) {
	price := 0.42
	stock := 120

	tests := []struct {
		name      string
		parts     []partDTO
		wantCount int
		wantFirst string
	}{
		{
			name: "complete part",
			parts: []partDTO{{
				PartNumber:   "LD1117V33",
				Description:  "800mA LDO regulator",
				Manufacturer: "STMicroelectronics",
				Category:     "LDO",
				Specs:        map[string]string{"Voltage": "3.3V", "package": "SOT-223", "dropout": "1.1V"},
				Offers:       []offerDTO{{Vendor: "Mouser", Price: &price, Stock: &stock}},
			}},
			wantCount: 1,
			wantFirst: "LD1117V33",
		},
		{
			name: "blank part numbers are dropped",
			parts: []partDTO{
				{PartNumber: "  ", Description: "ghost"},
				{PartNumber: "LM358", Category: "opamp"},
			},
			wantCount: 1,
			wantFirst: "LM358",
		},
		{
			name:      "empty response",
			parts:     nil,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapParts(tt.parts, "digikey")

			if len(got) != tt.wantCount {
				t.Fatalf("mapParts() returned %d records, want %d", len(got), tt.wantCount)
			}
			if tt.wantCount > 0 && got[0].PartNumber != tt.wantFirst {
				t.Errorf("PartNumber = %q, want %q", got[0].PartNumber, tt.wantFirst)
			}
		})
	}

	t.Run("specs and category are normalized", func(t *testing.T) {
		got := mapParts(tests[0].parts, "digikey")[0]

		if got.Category != "ldo" {
			t.Errorf("Category = %q, want %q", got.Category, "ldo")
		}
		if got.Specs.Voltage != "3.3V" {
			t.Errorf("Specs.Voltage = %q, want %q", got.Specs.Voltage, "3.3V")
		}
		if got.Specs.Package != "SOT-223" {
			t.Errorf("Specs.Package = %q, want %q", got.Specs.Package, "SOT-223")
		}
		if got.Specs.Extra["dropout"] != "1.1V" {
			t.Errorf("Specs.Extra[dropout] = %q, want %q", got.Specs.Extra["dropout"], "1.1V")
		}
		if len(got.Offers) != 1 || got.Offers[0].Source != "digikey" {
			t.Errorf("Offers = %+v, want one offer sourced from digikey", got.Offers)
		}
	})
}

func TestMapParts_HeadlinePriceAndStock(t *testing.T) {
	price := 0.30
	stock := 25000

	got := mapParts([]partDTO{
		{PartNumber: "XR3300", Price: &price, Stock: &stock},
		{PartNumber: "XR3301"},
	}, "acme")

	if got[0].Price == nil || *got[0].Price != 0.30 {
		t.Errorf("Price = %v, want 0.30", got[0].Price)
	}
	if got[0].Stock == nil || *got[0].Stock != 25000 {
		t.Errorf("Stock = %v, want 25000", got[0].Stock)
	}
	if got[1].Price != nil || got[1].Stock != nil {
		t.Errorf("omitted price/stock = %v/%v, want both unknown", got[1].Price, got[1].Stock)
	}
}

func TestMapOffers(t *testing.T) {
	price := 1.25

	got := mapOffers([]offerDTO{
		{Vendor: "Arrow", Price: &price},
		{Vendor: " "},
	}, "lcsc")

	if len(got) != 2 {
		t.Fatalf("mapOffers() returned %d quotes, want 2", len(got))
	}
	if got[0].Vendor != "Arrow" || got[0].Price == nil || *got[0].Price != 1.25 {
		t.Errorf("first quote = %+v, want Arrow at 1.25", got[0])
	}
	if got[0].Stock != nil {
		t.Errorf("Stock = %v, want nil for an omitted stock", *got[0].Stock)
	}
	if got[1].Vendor != "lcsc" {
		t.Errorf("Vendor = %q, want source name for a blank vendor", got[1].Vendor)
	}
	for _, q := range got {
		if q.Source != "lcsc" {
			t.Errorf("Source = %q, want %q", q.Source, "lcsc")
		}
	}
}
