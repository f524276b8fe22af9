package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/interfaces"
	"github.com/ternarybob/divtrack/internal/models"
	"github.com/ternarybob/divtrack/internal/retry"
	"github.com/ternarybob/divtrack/internal/services/exchange"
)

var titleSymbolPattern = regexp.MustCompile(`\b([A-Z0-9]+(\.JO|\.L|\.DE|\.PA|\.AS)?)\b`)

// WebSearchStrategy searches the web for "<name> stock symbol" and reads the
// symbol from exchange pages or financial-site page titles.
type WebSearchStrategy struct {
	search           interfaces.WebSearchService
	pages            interfaces.DocumentFetcher
	regions          RegionLookup
	exchangeDomain   string
	financialDomains []string
	numResults       int
	policy           retry.Policy
	logger           arbor.ILogger
}

// WebSearchOption configures a WebSearchStrategy.
type WebSearchOption func(*WebSearchStrategy)

// WithSearchSleep replaces the backoff sleep.
func WithSearchSleep(sleep retry.SleepFunc) WebSearchOption {
	return func(s *WebSearchStrategy) {
		s.policy.Sleep = sleep
	}
}

// NewWebSearchStrategy creates the web search step.
func NewWebSearchStrategy(
	search interfaces.WebSearchService,
	pages interfaces.DocumentFetcher,
	regions RegionLookup,
	config *common.Config,
	logger arbor.ILogger,
	opts ...WebSearchOption,
) *WebSearchStrategy {
	s := &WebSearchStrategy{
		search:           search,
		pages:            pages,
		regions:          regions,
		exchangeDomain:   config.Exchange.Domain,
		financialDomains: config.Search.FinancialDomains,
		numResults:       config.Search.NumResults,
		policy: retry.Policy{
			Name:        "web-search",
			MaxAttempts: config.Retry.WebSearch.MaxAttempts,
			BaseDelay:   config.Retry.WebSearch.BaseDelay,
			Logger:      logger,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WebSearchStrategy) Name() string {
	return string(models.SourceWebSearch)
}

// Attempt retries the search itself on provider errors. Failures on individual
// result pages are logged and skipped.
func (s *WebSearchStrategy) Attempt(ctx context.Context, name string) (*models.ResolvedSymbol, bool) {
	var result *models.ResolvedSymbol

	err := s.policy.Do(ctx, func(ctx context.Context) error {
		urls, err := s.search.Search(ctx, name+" stock symbol", s.numResults)
		if err != nil {
			return err
		}
		for _, url := range urls {
			if resolved, ok := s.inspect(ctx, name, url); ok {
				result = resolved
				return nil
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("instrument", name).Msg("Web search failed")
	}

	return result, result != nil
}

func (s *WebSearchStrategy) inspect(ctx context.Context, name, url string) (*models.ResolvedSymbol, bool) {
	onExchange := s.exchangeDomain != "" && strings.Contains(url, s.exchangeDomain)
	if !onExchange && !s.isFinancialSite(url) {
		return nil, false
	}

	doc, err := s.pages.GetDocument(ctx, url)
	if err != nil {
		s.logger.Warn().Err(err).Str("instrument", name).Str("url", url).Msg("Failed to fetch search result")
		return nil, false
	}

	if onExchange {
		code, ok := exchange.ParseAlphaCode(doc)
		if !ok {
			return nil, false
		}
		return &models.ResolvedSymbol{Symbol: code, Region: models.RegionSA, Source: models.SourceWebSearch, Link: url}, true
	}

	symbol, ok := SymbolFromTitle(doc.Find("title").First().Text())
	if !ok {
		return nil, false
	}

	region, known := common.ParseTicker(symbol).Region()
	if !known {
		region = s.regions.Region(ctx, symbol)
	}
	return &models.ResolvedSymbol{Symbol: symbol, Region: region, Source: models.SourceWebSearch, Link: url}, true
}

func (s *WebSearchStrategy) isFinancialSite(url string) bool {
	for _, domain := range s.financialDomains {
		if domain != "" && strings.Contains(url, domain) {
			return true
		}
	}
	return false
}

// SymbolFromTitle returns the first all-caps token in a page title, with an
// optional market suffix.
func SymbolFromTitle(title string) (string, bool) {
	m := titleSymbolPattern.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	return m[1], true
}
