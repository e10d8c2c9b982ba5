package usecase

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/partselect/backend/internal/domain"
)

// reportTopN is how many candidates the report details
const reportTopN = 3

// AssembleInput is everything the assembler formats. It is already ranked.
type AssembleInput struct {
	Query         string
	Ranked        []domain.ScoredCandidate
	FailedSources []string
	Quantities    map[string]int
	References    map[string]string
}

// ResultAssembler builds the final SelectionResult. It never re-sorts and
// never calls a source.
type ResultAssembler struct {
	now   func() time.Time
	newID func() string
}

// NewResultAssembler creates an assembler using the wall clock and random UUIDs
func NewResultAssembler() *ResultAssembler {
	return &ResultAssembler{now: time.Now, newID: uuid.NewString}
}

// Assemble formats ranked candidates into a SelectionResult
func (a *ResultAssembler) Assemble(in AssembleInput) *domain.SelectionResult {
	ranked := in.Ranked
	if ranked == nil {
		ranked = []domain.ScoredCandidate{}
	}

	items := BuildProcurementList(ranked, in.Quantities, in.References)

	return &domain.SelectionResult{
		RequestID:             a.newID(),
		Query:                 in.Query,
		RecommendedParts:      ranked,
		AnalysisReport:        BuildReport(in.Query, ranked, in.FailedSources),
		CompatibilityWarnings: CheckCompatibility(ranked),
		ProcurementItems:      items,
		TotalEstimatedCost:    totalCost(items),
		GeneratedAt:           a.now().UTC().Format(time.RFC3339),
	}
}

// Failure builds the empty result returned when the pipeline cannot complete
func (a *ResultAssembler) Failure(query, diagnostic string) *domain.SelectionResult {
	return &domain.SelectionResult{
		RequestID:             a.newID(),
		Query:                 query,
		RecommendedParts:      []domain.ScoredCandidate{},
		AnalysisReport:        "Selection failed: " + diagnostic,
		CompatibilityWarnings: []string{},
		ProcurementItems:      []domain.ProcurementItem{},
		GeneratedAt:           a.now().UTC().Format(time.RFC3339),
	}
}

// BuildReport renders a markdown analysis of the ranked candidates
func BuildReport(query string, ranked []domain.ScoredCandidate, failedSources []string) string {
	var b strings.Builder

	b.WriteString("## Selection Report\n\n")
	fmt.Fprintf(&b, "**Query**: %s\n\n", query)
	fmt.Fprintf(&b, "**Recommended parts**: %d\n", len(ranked))

	if len(ranked) == 0 {
		b.WriteString("\n### No matching components found\n\n")
		b.WriteString("Try a broader description, fewer constraints, or additional sources.\n")
	}

	for i, c := range ranked {
		if i == reportTopN {
			break
		}
		fmt.Fprintf(&b, "\n### %d. %s\n", i+1, c.PartNumber)
		fmt.Fprintf(&b, "- **Manufacturer**: %s\n", c.Manufacturer)
		fmt.Fprintf(&b, "- **Description**: %s\n", c.Description)
		if c.Price != nil {
			fmt.Fprintf(&b, "- **Price**: $%.2f\n", *c.Price)
		} else {
			b.WriteString("- **Price**: pending\n")
		}
		if c.Stock != nil {
			fmt.Fprintf(&b, "- **Stock**: %d\n", *c.Stock)
		} else {
			b.WriteString("- **Stock**: pending\n")
		}
		fmt.Fprintf(&b, "- **Compatibility**: %.0f%%\n", c.Score*100)
		if len(c.MatchedConstraints) > 0 {
			fmt.Fprintf(&b, "- **Matched**: %s\n", strings.Join(c.MatchedConstraints, ", "))
		}
		if len(c.Alternatives) > 0 {
			fmt.Fprintf(&b, "- **Alternatives**: %s\n", strings.Join(c.Alternatives, ", "))
		}
	}

	if len(failedSources) > 0 {
		fmt.Fprintf(&b, "\n**Unavailable sources**: %s\n", strings.Join(failedSources, ", "))
	}

	return strings.TrimRight(b.String(), "\n")
}

// CheckCompatibility derives warnings from spec strings, independent of score
func CheckCompatibility(ranked []domain.ScoredCandidate) []string {
	warnings := []string{}
	for _, c := range ranked {
		if v := c.Specs.Voltage; strings.ContainsAny(v, "~-") {
			warnings = append(warnings,
				fmt.Sprintf("%s: voltage spec %s is a range; verify exact operating point", c.PartNumber, v))
		}
		if p := c.Specs.Package; strings.Contains(strings.ToLower(p), "module") {
			warnings = append(warnings,
				fmt.Sprintf("%s: package %s is a module; check mounting method", c.PartNumber, p))
		}
	}
	return warnings
}

// BuildProcurementList emits one line per ranked candidate. Quantity defaults
// to 1 and the reference to a sequential U<n> designator.
func BuildProcurementList(
	ranked []domain.ScoredCandidate,
	quantities map[string]int,
	references map[string]string,
) []domain.ProcurementItem {
	qty := normalizeKeys(quantities)
	refs := normalizeKeys(references)

	items := make([]domain.ProcurementItem, 0, len(ranked))
	for i, c := range ranked {
		item := domain.ProcurementItem{
			Reference:    fmt.Sprintf("U%d", i+1),
			PartNumber:   c.PartNumber,
			Manufacturer: c.Manufacturer,
			Description:  c.Description,
			Quantity:     1,
		}
		if q, ok := qty[c.ID]; ok && q > 0 {
			item.Quantity = q
		}
		if ref := strings.TrimSpace(refs[c.ID]); ref != "" {
			item.Reference = ref
		}
		if c.Price != nil {
			unit := *c.Price
			total := roundCents(unit * float64(item.Quantity))
			item.UnitPrice = &unit
			item.TotalPrice = &total
		}
		items = append(items, item)
	}
	return items
}

// WriteProcurementCSV writes the procurement list as CSV with a header row
func WriteProcurementCSV(w io.Writer, items []domain.ProcurementItem) error {
	cw := csv.NewWriter(w)
	header := []string{"Reference", "Part Number", "Quantity", "Manufacturer", "Description", "Unit Price", "Total Price"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, item := range items {
		record := []string{
			item.Reference,
			item.PartNumber,
			strconv.Itoa(item.Quantity),
			item.Manufacturer,
			item.Description,
			formatOptionalPrice(item.UnitPrice),
			formatOptionalPrice(item.TotalPrice),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatOptionalPrice(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 4, 64)
}

func totalCost(items []domain.ProcurementItem) float64 {
	var total float64
	for _, item := range items {
		if item.TotalPrice != nil {
			total += *item.TotalPrice
		}
	}
	return roundCents(total)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func normalizeKeys[V any](m map[string]V) map[string]V {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[domain.CanonicalID(k)] = v
	}
	return out
}
