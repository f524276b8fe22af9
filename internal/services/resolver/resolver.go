// Package resolver maps normalized instrument names to ticker symbols by trying
// an ordered list of strategies until one succeeds.
package resolver

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/models"
	"github.com/ternarybob/divtrack/internal/services/cache"
)

// Strategy is one step of the resolution waterfall.
type Strategy interface {
	// Name identifies the strategy in logs
	Name() string

	// Attempt returns a symbol for name, or false to fall through to the next strategy
	Attempt(ctx context.Context, name string) (*models.ResolvedSymbol, bool)
}

// RegionLookup classifies a bare symbol by its market-data listing
type RegionLookup interface {
	Region(ctx context.Context, symbol string) models.Region
}

// Resolver implements interfaces.SymbolResolver.
type Resolver struct {
	strategies []Strategy
	symbols    *cache.Store[*models.ResolvedSymbol]
	logger     arbor.ILogger
}

// New creates a Resolver. Strategies are tried in the order given.
func New(strategies []Strategy, symbols *cache.Store[*models.ResolvedSymbol], logger arbor.ILogger) *Resolver {
	r := &Resolver{
		strategies: strategies,
		symbols:    symbols,
		logger:     logger,
	}
	for _, s := range strategies {
		logger.Debug().Str("strategy", s.Name()).Msg("Registered resolution strategy")
	}
	return r
}

// Purge forgets every memoized resolution.
func (r *Resolver) Purge() {
	r.symbols.Purge()
}

// Resolve returns the first strategy result for name. Results are memoized until
// the next Purge, so a name is resolved at most once per run.
func (r *Resolver) Resolve(ctx context.Context, name string) *models.ResolvedSymbol {
	return r.symbols.GetOrLoad(ctx, name, func(ctx context.Context) *models.ResolvedSymbol {
		for _, s := range r.strategies {
			resolved, ok := s.Attempt(ctx, name)
			if !ok || resolved == nil {
				r.logger.Debug().
					Str("instrument", name).
					Str("strategy", s.Name()).
					Msg("Strategy found no symbol, trying next")
				continue
			}

			r.logger.Info().
				Str("instrument", name).
				Str("symbol", resolved.Symbol).
				Str("region", string(resolved.Region)).
				Str("strategy", s.Name()).
				Msg("Resolved instrument")
			return resolved
		}

		r.logger.Warn().Str("instrument", name).Msg("No strategy resolved instrument")
		return &models.ResolvedSymbol{Region: models.RegionUnknown, Source: models.SourceFallbackHeuristic}
	})
}
