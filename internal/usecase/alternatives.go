package usecase

import (
	"context"

	"github.com/partselect/backend/internal/domain"
)

// AlternativeChain asks each lookup in order and returns the first non-empty
// answer. A failing lookup is skipped; the error surfaces only when every
// lookup fails.
type AlternativeChain []domain.AlternativeLookup

// Alternatives implements domain.AlternativeLookup
func (c AlternativeChain) Alternatives(ctx context.Context, partNumber string) ([]string, error) {
	var lastErr error
	failed := 0
	for _, lookup := range c {
		if lookup == nil {
			continue
		}
		alts, err := lookup.Alternatives(ctx, partNumber)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			failed++
			continue
		}
		if len(alts) > 0 {
			return alts, nil
		}
	}
	if failed > 0 && failed == c.count() {
		return nil, lastErr
	}
	return []string{}, nil
}

func (c AlternativeChain) count() int {
	n := 0
	for _, lookup := range c {
		if lookup != nil {
			n++
		}
	}
	return n
}
