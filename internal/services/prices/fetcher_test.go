package prices

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/eodhd"
	"github.com/ternarybob/divtrack/internal/models"
)

func createTestLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// mockMarketData scripts GetEOD and GetFundamentals responses in call order
type mockMarketData struct {
	eodErrs      []error
	close        float64
	fundamentals *eodhd.FundamentalsResponse
	fundErrs     []error

	eodCalls  int
	fundCalls int
	symbols   []string
}

func (m *mockMarketData) GetEOD(ctx context.Context, symbol string, opts ...eodhd.QueryOption) (eodhd.EODResponse, error) {
	m.eodCalls++
	m.symbols = append(m.symbols, symbol)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.eodCalls <= len(m.eodErrs) {
		return nil, m.eodErrs[m.eodCalls-1]
	}
	return eodhd.EODResponse{
		{Date: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), Close: m.close - 1},
		{Date: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), Close: m.close},
	}, nil
}

func (m *mockMarketData) GetFundamentals(ctx context.Context, symbol string) (*eodhd.FundamentalsResponse, error) {
	m.fundCalls++
	m.symbols = append(m.symbols, symbol)
	if m.fundCalls <= len(m.fundErrs) {
		return nil, m.fundErrs[m.fundCalls-1]
	}
	return m.fundamentals, nil
}

type mockExchange struct {
	quotes map[string]models.PriceQuote
	calls  []string
}

func (m *mockExchange) Price(ctx context.Context, link string) models.PriceQuote {
	m.calls = append(m.calls, link)
	if q, ok := m.quotes[link]; ok {
		return q
	}
	return models.UnavailableQuote(models.PriceSourceExchange)
}

func (m *mockExchange) InstrumentURL(symbol string) string {
	return "https://exchange.test/instruments/" + strings.ReplaceAll(symbol, ".", "")
}

type mockSearch struct {
	urls    []string
	errs    []error
	calls   int
	queries []string
}

func (m *mockSearch) Search(ctx context.Context, query string, limit int) ([]string, error) {
	m.calls++
	m.queries = append(m.queries, query)
	if m.calls <= len(m.errs) {
		return nil, m.errs[m.calls-1]
	}
	return m.urls, nil
}

type mockPages struct {
	pages map[string]string
}

func (m *mockPages) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	html, ok := m.pages[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

type fixture struct {
	fetcher  *Fetcher
	market   *mockMarketData
	exchange *mockExchange
	search   *mockSearch
	pages    *mockPages
	sleeper  *recordingSleeper
}

func newFixture() *fixture {
	fx := &fixture{
		market:   &mockMarketData{close: 123.45},
		exchange: &mockExchange{quotes: map[string]models.PriceQuote{}},
		search:   &mockSearch{},
		pages:    &mockPages{pages: map[string]string{}},
		sleeper:  &recordingSleeper{},
	}
	fx.fetcher = NewFetcher(fx.exchange, fx.search, fx.pages, fx.market, common.NewDefaultConfig(), createTestLogger(),
		WithSleep(fx.sleeper.Sleep),
		WithClock(func() time.Time { return time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC) }))
	return fx
}

func TestMarketPrice_RetriesRateLimitsWithBackoff(t *testing.T) {
	fx := newFixture()
	rateLimited := &eodhd.RateLimitError{RetryAfter: time.Second}
	fx.market.eodErrs = []error{rateLimited, rateLimited, rateLimited}

	quote := fx.fetcher.MarketPrice(context.Background(), "AAPL")

	assert.Equal(t, models.PriceQuote{Value: "123.45", Source: models.PriceSourceMarketData}, quote)
	assert.Equal(t, 4, fx.market.eodCalls)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, fx.sleeper.delays)
	assert.Equal(t, "AAPL.US", fx.market.symbols[0])
}

func TestMarketPrice_OtherErrorsFailImmediately(t *testing.T) {
	fx := newFixture()
	fx.market.eodErrs = []error{&eodhd.APIError{StatusCode: 404, Message: "Ticker Not Found", Endpoint: "/eod/X.US"}}

	quote := fx.fetcher.MarketPrice(context.Background(), "X")

	assert.Equal(t, models.UnavailableQuote(models.PriceSourceMarketData), quote)
	assert.Equal(t, 1, fx.market.eodCalls)
	assert.Empty(t, fx.sleeper.delays)
}

func TestMarketPrice_ExhaustsAfterSevenAttempts(t *testing.T) {
	fx := newFixture()
	rateLimited := &eodhd.RateLimitError{RetryAfter: time.Second}
	for i := 0; i < 7; i++ {
		fx.market.eodErrs = append(fx.market.eodErrs, rateLimited)
	}

	quote := fx.fetcher.MarketPrice(context.Background(), "AAPL")

	assert.False(t, quote.Available())
	assert.Equal(t, 7, fx.market.eodCalls)
	assert.Len(t, fx.sleeper.delays, 6)
}

func TestMarketPrice_MemoizedIncludingSentinel(t *testing.T) {
	fx := newFixture()
	fx.market.eodErrs = []error{errors.New("boom")}
	ctx := context.Background()

	first := fx.fetcher.MarketPrice(ctx, "BAD")
	second := fx.fetcher.MarketPrice(ctx, "BAD")

	assert.Equal(t, first, second)
	assert.Equal(t, models.PriceUnavailable, second.Value)
	assert.Equal(t, 1, fx.market.eodCalls)
}

func TestMarketPrice_CancelledLookupIsNotCached(t *testing.T) {
	fx := newFixture()
	fx.market.close = 42

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := fx.fetcher.MarketPrice(ctx, "AAPL")
	second := fx.fetcher.MarketPrice(context.Background(), "AAPL")

	assert.Equal(t, models.PriceUnavailable, first.Value)
	assert.Equal(t, "42.00", second.Value)
	assert.Equal(t, 2, fx.market.eodCalls)
}

func TestFetcher_PurgeForcesNewLookups(t *testing.T) {
	fx := newFixture()
	fx.market.fundamentals = &eodhd.FundamentalsResponse{General: &eodhd.GeneralInfo{CurrencyCode: "USD"}}
	ctx := context.Background()

	fx.fetcher.MarketPrice(ctx, "AAPL")
	fx.fetcher.Region(ctx, "AAPL")
	fx.fetcher.Purge()
	fx.fetcher.MarketPrice(ctx, "AAPL")
	fx.fetcher.Region(ctx, "AAPL")

	assert.Equal(t, 2, fx.market.eodCalls)
	assert.Equal(t, 2, fx.market.fundCalls)
}

func TestMarketPrice_ConvertsSymbols(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	fx.fetcher.MarketPrice(ctx, "PSG.JO")
	fx.fetcher.MarketPrice(ctx, "VOD.L")
	fx.fetcher.MarketPrice(ctx, "SAP.DE")

	assert.Equal(t, []string{"PSG.JSE", "VOD.LSE", "SAP.XETRA"}, fx.market.symbols)
}

func TestRegion(t *testing.T) {
	tests := []struct {
		name     string
		general  *eodhd.GeneralInfo
		expected models.Region
	}{
		{"usd", &eodhd.GeneralInfo{CurrencyCode: "USD", Exchange: "NASDAQ"}, models.RegionUSA},
		{"us exchange", &eodhd.GeneralInfo{CurrencyCode: "CAD", Exchange: "NYQ"}, models.RegionUSA},
		{"eur", &eodhd.GeneralInfo{CurrencyCode: "EUR", Exchange: "XETRA"}, models.RegionEUR},
		{"eu exchange", &eodhd.GeneralInfo{CurrencyCode: "GBX", Exchange: "PAR"}, models.RegionEUR},
		{"zar", &eodhd.GeneralInfo{CurrencyCode: "ZAR", Exchange: "JSE"}, models.RegionUnknown},
		{"no general", nil, models.RegionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			fx.market.fundamentals = &eodhd.FundamentalsResponse{General: tt.general}
			assert.Equal(t, tt.expected, fx.fetcher.Region(context.Background(), "ABC"))
		})
	}
}

func TestRegion_MemoizedAndRetried(t *testing.T) {
	fx := newFixture()
	fx.market.fundErrs = []error{&eodhd.APIError{StatusCode: 429}}
	fx.market.fundamentals = &eodhd.FundamentalsResponse{General: &eodhd.GeneralInfo{CurrencyCode: "USD"}}
	ctx := context.Background()

	assert.Equal(t, models.RegionUSA, fx.fetcher.Region(ctx, "MSFT"))
	assert.Equal(t, models.RegionUSA, fx.fetcher.Region(ctx, "MSFT"))
	assert.Equal(t, 2, fx.market.fundCalls)
	assert.Equal(t, []time.Duration{5 * time.Second}, fx.sleeper.delays)
}

func TestMarketDataDisabled(t *testing.T) {
	fetcher := NewFetcher(&mockExchange{}, &mockSearch{}, &mockPages{}, nil, common.NewDefaultConfig(), createTestLogger())
	ctx := context.Background()

	assert.Equal(t, models.UnavailableQuote(models.PriceSourceMarketData), fetcher.MarketPrice(ctx, "AAPL"))
	assert.Equal(t, models.RegionUnknown, fetcher.Region(ctx, "AAPL"))
}

func TestSearchQuote(t *testing.T) {
	fx := newFixture()
	fx.search.urls = []string{"https://finance.google.com/quote/AAPL:NASDAQ"}
	fx.pages.pages["https://finance.google.com/quote/AAPL:NASDAQ"] = `<div class="YMlKec fxKbKc">$1,234.50</div>`
	ctx := context.Background()

	quote := fx.fetcher.SearchQuote(ctx, "AAPL")
	assert.Equal(t, models.PriceQuote{Value: "1234.50", Source: models.PriceSourceSearchQuote}, quote)
	assert.Equal(t, []string{"AAPL stock price site:finance.google.com"}, fx.search.queries)

	fx.fetcher.SearchQuote(ctx, "AAPL")
	assert.Equal(t, 1, fx.search.calls)
}

func TestSearchQuote_IgnoresOtherDomains(t *testing.T) {
	fx := newFixture()
	fx.search.urls = []string{"https://example.com/aapl"}

	quote := fx.fetcher.SearchQuote(context.Background(), "AAPL")
	assert.Equal(t, models.UnavailableQuote(models.PriceSourceSearchQuote), quote)
	assert.Empty(t, fx.sleeper.delays)
}

func TestSearchQuote_RetriesSearchErrors(t *testing.T) {
	fx := newFixture()
	searchErr := errors.New("search blocked")
	fx.search.errs = []error{searchErr, searchErr, searchErr}

	quote := fx.fetcher.SearchQuote(context.Background(), "AAPL")
	assert.Equal(t, models.UnavailableQuote(models.PriceSourceSearchQuote), quote)
	assert.Equal(t, 3, fx.search.calls)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, fx.sleeper.delays)
}

func TestQuote_DispatchesBySource(t *testing.T) {
	fx := newFixture()
	fx.exchange.quotes["https://exchange.test/instruments/PSGJO"] = models.PriceQuote{Value: "150.00", Source: models.PriceSourceExchange}
	fx.exchange.quotes["https://exchange.test/instruments/SOL"] = models.PriceQuote{Value: "300.00", Source: models.PriceSourceExchange}
	ctx := context.Background()

	manual := fx.fetcher.Quote(ctx, &models.ResolvedSymbol{Symbol: "PSG.JO", Region: models.RegionSA, Source: models.SourceManualMapping})
	assert.Equal(t, models.PriceQuote{Value: "150.00", Source: models.PriceSourceManual}, manual)

	exchangeHit := fx.fetcher.Quote(ctx, &models.ResolvedSymbol{
		Symbol: "SOL", Region: models.RegionSA, Source: models.SourceExchangeSearch,
		Link: "https://exchange.test/instruments/SOL",
	})
	assert.Equal(t, models.PriceQuote{Value: "300.00", Source: models.PriceSourceExchange}, exchangeHit)

	fallback := fx.fetcher.Quote(ctx, &models.ResolvedSymbol{Symbol: "UNKNOWNCORP", Region: models.RegionUnknown, Source: models.SourceFallbackHeuristic})
	assert.Equal(t, models.PriceSourceMarketData, fallback.Source)

	unresolved := fx.fetcher.Quote(ctx, &models.ResolvedSymbol{Symbol: models.SymbolUnresolved})
	assert.False(t, unresolved.Available())

	// Exchange pages are fetched once per link
	fx.fetcher.Quote(ctx, &models.ResolvedSymbol{Symbol: "PSG.JO", Source: models.SourceManualMapping})
	assert.Len(t, fx.exchange.calls, 2)
}

func TestClassifyRegion(t *testing.T) {
	assert.Equal(t, models.RegionUSA, ClassifyRegion("usd", ""))
	assert.Equal(t, models.RegionUSA, ClassifyRegion("", "amx"))
	assert.Equal(t, models.RegionEUR, ClassifyRegion("eur", ""))
	assert.Equal(t, models.RegionEUR, ClassifyRegion("", "MCE"))
	assert.Equal(t, models.RegionUnknown, ClassifyRegion("ZAR", "JSE"))
	require.Equal(t, models.RegionUnknown, ClassifyRegion("", ""))
}
