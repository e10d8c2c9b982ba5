package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/partselect/backend/internal/domain"
)

// Score weights
const (
	baseScore          = 0.5
	voltageMatchWeight = 0.3
	packageMatchWeight = 0.2
	currentMatchWeight = 0.1
	highStockBonus     = 0.1  // known stock above highStockThreshold
	mediumStockBonus   = 0.05 // known stock above mediumStockThreshold
	maxScore           = 1.0
)

// Stock thresholds for the availability bonus
const (
	highStockThreshold   = 10000
	mediumStockThreshold = 1000
)

// scoreRule is one additive term of the compatibility score. explain returns
// the matched-constraint text and whether the rule fired; an empty text
// means the rule adds weight without an explanation entry.
type scoreRule struct {
	name    string
	weight  float64
	explain func(c *domain.Candidate, cs domain.ConstraintSet) (string, bool)
}

// scoreRules is evaluated in order; explanations follow the same order
var scoreRules = []scoreRule{
	{
		name:   "voltage",
		weight: voltageMatchWeight,
		explain: specMatch("voltage",
			func(s domain.Specs) string { return s.Voltage },
			func(cs domain.ConstraintSet) string { return cs.TargetVoltage }),
	},
	{
		name:   "package",
		weight: packageMatchWeight,
		explain: specMatch("package",
			func(s domain.Specs) string { return s.Package },
			func(cs domain.ConstraintSet) string { return cs.TargetPackage }),
	},
	{
		name:   "current",
		weight: currentMatchWeight,
		explain: specMatch("current",
			func(s domain.Specs) string { return s.Current },
			func(cs domain.ConstraintSet) string { return cs.TargetCurrent }),
	},
	{name: "stock_high", weight: highStockBonus, explain: stockAbove(highStockThreshold, math.MaxInt)},
	{name: "stock_medium", weight: mediumStockBonus, explain: stockAbove(mediumStockThreshold, highStockThreshold)},
}

// specMatch fires when the candidate spec contains the target, ignoring case
func specMatch(
	label string,
	spec func(domain.Specs) string,
	target func(domain.ConstraintSet) string,
) func(*domain.Candidate, domain.ConstraintSet) (string, bool) {
	return func(c *domain.Candidate, cs domain.ConstraintSet) (string, bool) {
		want := strings.TrimSpace(target(cs))
		have := spec(c.Specs)
		if want == "" || have == "" {
			return "", false
		}
		if !strings.Contains(strings.ToUpper(have), strings.ToUpper(want)) {
			return "", false
		}
		return fmt.Sprintf("%s: %s", label, have), true
	}
}

// stockAbove fires for known stock in (lower, upper]. Unknown stock never fires.
func stockAbove(lower, upper int) func(*domain.Candidate, domain.ConstraintSet) (string, bool) {
	return func(c *domain.Candidate, _ domain.ConstraintSet) (string, bool) {
		if c.Stock == nil {
			return "", false
		}
		stock := *c.Stock
		return "", stock > lower && stock <= upper
	}
}

// Scorer computes deterministic compatibility scores. It performs no I/O.
type Scorer struct {
	rules []scoreRule
}

// NewScorer creates a scorer with the built-in rule set
func NewScorer() *Scorer {
	return &Scorer{rules: scoreRules}
}

// Score returns the candidate's score in [0, 1] and the matched constraints
func (s *Scorer) Score(c *domain.Candidate, cs domain.ConstraintSet) (float64, []string) {
	score := baseScore
	matched := []string{}

	for _, rule := range s.rules {
		text, fired := rule.explain(c, cs)
		if !fired {
			continue
		}
		score += rule.weight
		if text != "" {
			matched = append(matched, text)
		}
	}

	// The single place a score is capped
	score = math.Min(score, maxScore)
	return math.Round(score*1e4) / 1e4, matched
}

// Rank scores every candidate and sorts by descending score. Equal scores
// keep their aggregation order.
func (s *Scorer) Rank(candidates []domain.Candidate, cs domain.ConstraintSet) []domain.ScoredCandidate {
	ranked := make([]domain.ScoredCandidate, len(candidates))
	for i := range candidates {
		score, matched := s.Score(&candidates[i], cs)
		ranked[i] = domain.ScoredCandidate{
			Candidate:          candidates[i],
			Score:              score,
			MatchedConstraints: matched,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
