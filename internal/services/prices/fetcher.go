// Package prices looks up prices and regions for resolved symbols. Every lookup
// degrades to a sentinel instead of failing, and results are memoized per run.
package prices

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/eodhd"
	"github.com/ternarybob/divtrack/internal/interfaces"
	"github.com/ternarybob/divtrack/internal/models"
	"github.com/ternarybob/divtrack/internal/retry"
	"github.com/ternarybob/divtrack/internal/services/cache"
	"github.com/ternarybob/divtrack/internal/services/exchange"
)

// eodWindow is how far back the end-of-day query reaches to find the latest close.
const eodWindow = 10 * 24 * time.Hour

var (
	usaExchanges = map[string]bool{"NYQ": true, "NAS": true, "AMX": true, "NYSE": true, "NASDAQ": true, "AMEX": true, "US": true}
	eurExchanges = map[string]bool{"FRA": true, "PAR": true, "AMS": true, "MCE": true, "XETRA": true, "F": true, "PA": true, "AS": true, "MC": true}
)

// MarketData is the subset of the EODHD client used here.
type MarketData interface {
	GetEOD(ctx context.Context, symbol string, opts ...eodhd.QueryOption) (eodhd.EODResponse, error)
	GetFundamentals(ctx context.Context, symbol string) (*eodhd.FundamentalsResponse, error)
}

// ExchangePricer reads prices from exchange detail pages.
type ExchangePricer interface {
	Price(ctx context.Context, link string) models.PriceQuote
	InstrumentURL(symbol string) string
}

// Fetcher implements interfaces.PriceService.
type Fetcher struct {
	exchange ExchangePricer
	search   interfaces.WebSearchService
	pages    interfaces.DocumentFetcher
	market   MarketData // nil disables market-data lookups

	quoteDomain   string
	quoteSelector string

	searchPolicy retry.Policy
	marketPolicy retry.Policy

	prices  *cache.Store[models.PriceQuote]
	regions *cache.Store[models.Region]

	now    func() time.Time
	logger arbor.ILogger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithSleep replaces the backoff sleep of both retry policies.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(f *Fetcher) {
		f.searchPolicy.Sleep = sleep
		f.marketPolicy.Sleep = sleep
	}
}

// WithClock sets the time source used for the end-of-day window.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// NewFetcher creates a price fetcher with its own caches.
func NewFetcher(
	exchangeClient ExchangePricer,
	search interfaces.WebSearchService,
	pages interfaces.DocumentFetcher,
	market MarketData,
	config *common.Config,
	logger arbor.ILogger,
	opts ...Option,
) *Fetcher {
	f := &Fetcher{
		exchange:      exchangeClient,
		search:        search,
		pages:         pages,
		market:        market,
		quoteDomain:   config.Search.QuoteDomain,
		quoteSelector: config.Search.QuoteSelector,
		searchPolicy: retry.Policy{
			Name:        "search-quote",
			MaxAttempts: config.Retry.SearchQuote.MaxAttempts,
			BaseDelay:   config.Retry.SearchQuote.BaseDelay,
			Logger:      logger,
		},
		marketPolicy: retry.Policy{
			Name:        "market-data",
			MaxAttempts: config.Retry.MarketData.MaxAttempts,
			BaseDelay:   config.Retry.MarketData.BaseDelay,
			Retryable:   eodhd.IsRateLimited,
			Logger:      logger,
		},
		prices:  cache.New[models.PriceQuote]("prices", config.Cache.Capacity, logger),
		regions: cache.New[models.Region]("regions", config.Cache.Capacity, logger),
		now:     time.Now,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Purge drops the cached prices and regions so the next run looks them up again.
func (f *Fetcher) Purge() {
	f.prices.Purge()
	f.regions.Purge()
}

// Quote prices a resolved symbol using the source that matches how it was resolved.
func (f *Fetcher) Quote(ctx context.Context, resolved *models.ResolvedSymbol) models.PriceQuote {
	if !resolved.Resolved() {
		return models.UnavailableQuote(models.PriceSourceMarketData)
	}

	switch resolved.Source {
	case models.SourceManualMapping:
		quote := f.ExchangePrice(ctx, f.exchange.InstrumentURL(resolved.Symbol))
		quote.Source = models.PriceSourceManual
		return quote
	case models.SourceExchangeSearch:
		link := resolved.Link
		if link == "" || link == models.SymbolUnresolved {
			link = f.exchange.InstrumentURL(resolved.Symbol)
		}
		return f.ExchangePrice(ctx, link)
	case models.SourceWebSearch:
		return f.SearchQuote(ctx, resolved.Symbol)
	default:
		return f.MarketPrice(ctx, resolved.Symbol)
	}
}

// ExchangePrice reads the price from an exchange detail page.
func (f *Fetcher) ExchangePrice(ctx context.Context, link string) models.PriceQuote {
	return f.prices.GetOrLoad(ctx, "exchange:"+link, func(ctx context.Context) models.PriceQuote {
		return f.exchange.Price(ctx, link)
	})
}

// SearchQuote finds the symbol's quote page through web search and scrapes the price.
func (f *Fetcher) SearchQuote(ctx context.Context, symbol string) models.PriceQuote {
	return f.prices.GetOrLoad(ctx, "quote:"+symbol, func(ctx context.Context) models.PriceQuote {
		quote := models.UnavailableQuote(models.PriceSourceSearchQuote)
		query := fmt.Sprintf("%s stock price site:%s", symbol, f.quoteDomain)

		err := f.searchPolicy.Do(ctx, func(ctx context.Context) error {
			urls, err := f.search.Search(ctx, query, 1)
			if err != nil {
				return err
			}
			for _, url := range urls {
				if !strings.Contains(url, f.quoteDomain) {
					continue
				}
				doc, err := f.pages.GetDocument(ctx, url)
				if err != nil {
					return err
				}
				if value, ok := exchange.ParsePrice(doc.Find(f.quoteSelector).First().Text()); ok {
					quote.Value = value
				} else {
					f.logger.Warn().Str("symbol", symbol).Str("url", url).Msg("Quote price not found on page")
				}
			}
			return nil
		})
		if err != nil {
			f.logger.Warn().Err(err).Str("symbol", symbol).Msg("Search quote lookup failed")
		}
		return quote
	})
}

// MarketPrice returns the latest close from the market-data API.
// Only rate-limit errors are retried.
func (f *Fetcher) MarketPrice(ctx context.Context, symbol string) models.PriceQuote {
	return f.prices.GetOrLoad(ctx, "eod:"+symbol, func(ctx context.Context) models.PriceQuote {
		quote := models.UnavailableQuote(models.PriceSourceMarketData)
		if f.market == nil {
			f.logger.Debug().Str("symbol", symbol).Msg("Market data disabled, skipping price lookup")
			return quote
		}

		apiSymbol := common.ParseTicker(symbol).EODHDSymbol()
		now := f.now()

		err := f.marketPolicy.Do(ctx, func(ctx context.Context) error {
			bars, err := f.market.GetEOD(ctx, apiSymbol, eodhd.WithDateRange(now.Add(-eodWindow), now))
			if err != nil {
				return err
			}
			latest, ok := bars.Latest()
			if !ok || latest.Close <= 0 {
				return eodhd.ErrNoData
			}
			quote.Value = strconv.FormatFloat(latest.Close, 'f', 2, 64)
			return nil
		})
		if err != nil {
			f.logger.Warn().Err(err).Str("symbol", apiSymbol).Msg("Market price lookup failed")
		}
		return quote
	})
}

// Region classifies a symbol from its market-data listing.
func (f *Fetcher) Region(ctx context.Context, symbol string) models.Region {
	return f.regions.GetOrLoad(ctx, symbol, func(ctx context.Context) models.Region {
		if f.market == nil {
			return models.RegionUnknown
		}

		apiSymbol := common.ParseTicker(symbol).EODHDSymbol()
		region := models.RegionUnknown

		err := f.marketPolicy.Do(ctx, func(ctx context.Context) error {
			fundamentals, err := f.market.GetFundamentals(ctx, apiSymbol)
			if err != nil {
				return err
			}
			if fundamentals.General != nil {
				region = ClassifyRegion(fundamentals.General.CurrencyCode, fundamentals.General.Exchange)
			}
			return nil
		})
		if err != nil {
			f.logger.Warn().Err(err).Str("symbol", apiSymbol).Msg("Region lookup failed")
		}
		return region
	})
}

// ClassifyRegion maps a listing's currency and exchange code to a region.
func ClassifyRegion(currency, exchangeCode string) models.Region {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	exchangeCode = strings.ToUpper(strings.TrimSpace(exchangeCode))

	switch {
	case currency == "USD" || usaExchanges[exchangeCode]:
		return models.RegionUSA
	case currency == "EUR" || eurExchanges[exchangeCode]:
		return models.RegionEUR
	default:
		return models.RegionUnknown
	}
}
