package usecase

import (
	"testing"

	"github.com/partselect/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(pn string, specs map[string]string, stock *int) domain.Candidate {
	return domain.Candidate{
		ID:         domain.CanonicalID(pn),
		PartNumber: pn,
		Specs:      domain.NewSpecs(specs),
		Stock:      stock,
	}
}

func TestScorer_Score(t *testing.T) {
	scorer := NewScorer()
	full := domain.ConstraintSet{TargetVoltage: "3.3V", TargetPackage: "SOT-223", TargetCurrent: "1A"}

	tests := []struct {
		name        string
		candidate   domain.Candidate
		constraints domain.ConstraintSet
		wantScore   float64
		wantMatched []string
	}{
		{
			name:        "no constraints",
			candidate:   candidate("X", map[string]string{"voltage": "3.3V"}, nil),
			constraints: domain.ConstraintSet{},
			wantScore:   0.5,
			wantMatched: []string{},
		},
		{
			name:        "voltage only",
			candidate:   candidate("LD1117V33", map[string]string{"voltage": "3.3V", "package": "SOT-223"}, nil),
			constraints: domain.ConstraintSet{TargetVoltage: "3.3V", TargetPackage: "SOP-8"},
			wantScore:   0.8,
			wantMatched: []string{"voltage: 3.3V"},
		},
		{
			name:        "voltage match ignores case",
			candidate:   candidate("X", map[string]string{"voltage": "3.3v"}, nil),
			constraints: domain.ConstraintSet{TargetVoltage: "3.3V"},
			wantScore:   0.8,
			wantMatched: []string{"voltage: 3.3v"},
		},
		{
			name:        "range is not numeric math",
			candidate:   candidate("X", map[string]string{"voltage": "2.7V~5.5V"}, nil),
			constraints: domain.ConstraintSet{TargetVoltage: "3.3V"},
			wantScore:   0.5,
			wantMatched: []string{},
		},
		{
			name: "explanations follow rule order",
			candidate: candidate("X", map[string]string{
				"current": "1A", "package": "SOT-223", "voltage": "3.3V",
			}, nil),
			constraints: full,
			wantScore:   1.0,
			wantMatched: []string{"voltage: 3.3V", "package: SOT-223", "current: 1A"},
		},
		{
			name: "clamped at one",
			candidate: candidate("X", map[string]string{
				"voltage": "3.3V", "package": "SOT-223", "current": "1A",
			}, intPtr(50000)),
			constraints: full,
			wantScore:   1.0,
			wantMatched: []string{"voltage: 3.3V", "package: SOT-223", "current: 1A"},
		},
		{
			name:        "high stock bonus",
			candidate:   candidate("X", nil, intPtr(10001)),
			constraints: domain.ConstraintSet{},
			wantScore:   0.6,
			wantMatched: []string{},
		},
		{
			name:        "stock at high threshold gets medium bonus",
			candidate:   candidate("X", nil, intPtr(10000)),
			constraints: domain.ConstraintSet{},
			wantScore:   0.55,
			wantMatched: []string{},
		},
		{
			name:        "stock at medium threshold gets nothing",
			candidate:   candidate("X", nil, intPtr(1000)),
			constraints: domain.ConstraintSet{},
			wantScore:   0.5,
			wantMatched: []string{},
		},
		{
			name:        "zero stock",
			candidate:   candidate("X", nil, intPtr(0)),
			constraints: domain.ConstraintSet{},
			wantScore:   0.5,
			wantMatched: []string{},
		},
		{
			name:        "unknown stock",
			candidate:   candidate("X", nil, nil),
			constraints: domain.ConstraintSet{},
			wantScore:   0.5,
			wantMatched: []string{},
		},
		{
			name:        "package with stock",
			candidate:   candidate("X", map[string]string{"package": "SOT-23-5"}, intPtr(2000)),
			constraints: domain.ConstraintSet{TargetPackage: "SOT-23"},
			wantScore:   0.75,
			wantMatched: []string{"package: SOT-23-5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, matched := scorer.Score(&tt.candidate, tt.constraints)

			assert.InDelta(t, tt.wantScore, score, 1e-9)
			assert.Equal(t, tt.wantMatched, matched)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestScorer_Pure(t *testing.T) {
	scorer := NewScorer()
	c := candidate("X", map[string]string{"voltage": "5V", "package": "DIP-8"}, intPtr(3000))
	cs := domain.ConstraintSet{TargetVoltage: "5V", TargetPackage: "DIP"}

	score, matched := scorer.Score(&c, cs)
	for i := 0; i < 10; i++ {
		s, m := scorer.Score(&c, cs)
		assert.Equal(t, score, s)
		assert.Equal(t, matched, m)
	}
}

func TestScorer_RankScenarioA(t *testing.T) {
	parser := NewConstraintParser(nil)
	cs := parser.Parse("3.3V LDO SOP-8", nil)

	candidates := []domain.Candidate{
		candidate("LM7812", map[string]string{"voltage": "12V", "package": "TO-220"}, nil),
		candidate("LD1117V33", map[string]string{"voltage": "3.3V", "package": "SOT-223"}, nil),
		candidate("ME6211C33", map[string]string{"voltage": "3.3V", "package": "SOT-23-5"}, nil),
	}

	ranked := NewScorer().Rank(candidates, cs)

	require.Len(t, ranked, 3)
	assert.Equal(t, "LD1117V33", ranked[0].PartNumber)
	assert.InDelta(t, 0.8, ranked[0].Score, 1e-9)
	assert.Equal(t, "ME6211C33", ranked[1].PartNumber)
	assert.InDelta(t, 0.8, ranked[1].Score, 1e-9)
	assert.Equal(t, "LM7812", ranked[2].PartNumber)
	assert.InDelta(t, 0.5, ranked[2].Score, 1e-9)
}

func TestScorer_RankStableTies(t *testing.T) {
	var candidates []domain.Candidate
	for _, pn := range []string{"T1", "T2", "T3", "T4", "T5"} {
		candidates = append(candidates, candidate(pn, nil, nil))
	}
	// One higher-scoring candidate in the middle
	candidates[2].Specs.Voltage = "5V"

	ranked := NewScorer().Rank(candidates, domain.ConstraintSet{TargetVoltage: "5V"})

	var order []string
	for _, r := range ranked {
		order = append(order, r.PartNumber)
	}
	assert.Equal(t, []string{"T3", "T1", "T2", "T4", "T5"}, order)
}

func TestScorer_RankEmpty(t *testing.T) {
	ranked := NewScorer().Rank(nil, domain.ConstraintSet{})

	assert.NotNil(t, ranked)
	assert.Empty(t, ranked)
}
