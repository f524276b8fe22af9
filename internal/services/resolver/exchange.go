package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/interfaces"
	"github.com/ternarybob/divtrack/internal/models"
	"github.com/ternarybob/divtrack/internal/services/exchange"
)

// wordReplacements shortens names the way the exchange abbreviates them. Applied in order.
var wordReplacements = []struct{ from, to string }{
	{"Property", "Prop"},
	{"Funding", "Fund"},
	{"Limited", "Ltd"},
}

// ExchangePricer reads a price from an exchange detail page
type ExchangePricer interface {
	ExchangePrice(ctx context.Context, link string) models.PriceQuote
}

// ExchangeStrategy searches the exchange with progressively looser queries and
// accepts the first listing that has a symbol and a live price.
type ExchangeStrategy struct {
	exchange interfaces.ExchangeService
	prices   ExchangePricer
	logger   arbor.ILogger
}

// NewExchangeStrategy creates the exchange search step.
func NewExchangeStrategy(exchangeService interfaces.ExchangeService, prices ExchangePricer, logger arbor.ILogger) *ExchangeStrategy {
	return &ExchangeStrategy{
		exchange: exchangeService,
		prices:   prices,
		logger:   logger,
	}
}

func (s *ExchangeStrategy) Name() string {
	return string(models.SourceExchangeSearch)
}

// QueryVariants returns the raw name, the abbreviated name and the first two words,
// skipping empty and repeated variants.
func QueryVariants(name string) []string {
	abbreviated := name
	for _, r := range wordReplacements {
		abbreviated = strings.ReplaceAll(abbreviated, r.from, r.to)
	}
	abbreviated = strings.TrimSpace(strings.ReplaceAll(abbreviated, "eft", ""))

	words := strings.Fields(name)
	if len(words) > 2 {
		words = words[:2]
	}

	var variants []string
	seen := make(map[string]bool)
	for _, v := range []string{name, abbreviated, strings.Join(words, " ")} {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		variants = append(variants, v)
	}
	return variants
}

// Attempt tries each query variant in order.
func (s *ExchangeStrategy) Attempt(ctx context.Context, name string) (*models.ResolvedSymbol, bool) {
	for _, query := range QueryVariants(name) {
		listing, err := s.exchange.Search(ctx, query)
		if err != nil {
			if errors.Is(err, exchange.ErrNoResults) {
				s.logger.Debug().Str("query", query).Msg("No exchange results")
			} else {
				s.logger.Warn().Err(err).Str("query", query).Msg("Exchange search failed")
			}
			continue
		}

		if listing.Symbol == "" || listing.Symbol == models.SymbolUnresolved {
			continue
		}

		quote := s.prices.ExchangePrice(ctx, listing.Link)
		if !quote.Available() {
			s.logger.Debug().
				Str("query", query).
				Str("symbol", listing.Symbol).
				Msg("Exchange listing has no price, trying next query")
			continue
		}

		return &models.ResolvedSymbol{
			Symbol:      listing.Symbol,
			Region:      models.RegionSA,
			Source:      models.SourceExchangeSearch,
			DisplayName: listing.Name,
			Link:        listing.Link,
		}, true
	}
	return nil, false
}
