package resolver

import (
	"context"
	"strings"

	"github.com/ternarybob/divtrack/internal/models"
)

// FallbackStrategy guesses the symbol from the name itself. It always succeeds
// for a non-empty name, so it belongs last.
type FallbackStrategy struct {
	regions RegionLookup
}

func NewFallbackStrategy(regions RegionLookup) *FallbackStrategy {
	return &FallbackStrategy{regions: regions}
}

func (s *FallbackStrategy) Name() string {
	return string(models.SourceFallbackHeuristic)
}

// Attempt uppercases the name with spaces removed and looks up its region.
func (s *FallbackStrategy) Attempt(ctx context.Context, name string) (*models.ResolvedSymbol, bool) {
	symbol := strings.ToUpper(strings.ReplaceAll(name, " ", ""))
	if symbol == "" {
		return nil, false
	}
	return &models.ResolvedSymbol{
		Symbol: symbol,
		Region: s.regions.Region(ctx, symbol),
		Source: models.SourceFallbackHeuristic,
	}, true
}
