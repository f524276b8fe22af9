package assembler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/models"
	"github.com/ternarybob/divtrack/internal/services/cache"
	"github.com/ternarybob/divtrack/internal/services/extractor"
	"github.com/ternarybob/divtrack/internal/services/normalizer"
	"github.com/ternarybob/divtrack/internal/services/resolver"
)

func createTestLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// mockResolver answers from a fixed table and counts calls per name
type mockResolver struct {
	symbols map[string]*models.ResolvedSymbol
	calls   map[string]int
}

func (m *mockResolver) Resolve(ctx context.Context, name string) *models.ResolvedSymbol {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
	if r, ok := m.symbols[name]; ok {
		return r
	}
	return &models.ResolvedSymbol{
		Symbol: name,
		Region: models.RegionUnknown,
		Source: models.SourceFallbackHeuristic,
	}
}

// mockPrices returns a fixed price per symbol, sentinel otherwise
type mockPrices struct {
	prices map[string]string
	quotes int
}

func (m *mockPrices) Quote(ctx context.Context, resolved *models.ResolvedSymbol) models.PriceQuote {
	m.quotes++
	source := models.PriceSourceMarketData
	switch resolved.Source {
	case models.SourceManualMapping:
		source = models.PriceSourceManual
	case models.SourceExchangeSearch:
		source = models.PriceSourceExchange
	case models.SourceWebSearch:
		source = models.PriceSourceSearchQuote
	}
	if v, ok := m.prices[resolved.Symbol]; ok {
		return models.PriceQuote{Value: v, Source: source}
	}
	return models.UnavailableQuote(source)
}

func (m *mockPrices) ExchangePrice(ctx context.Context, link string) models.PriceQuote {
	return models.UnavailableQuote(models.PriceSourceExchange)
}

func (m *mockPrices) Region(ctx context.Context, symbol string) models.Region {
	return models.RegionUnknown
}

// remoteCounter fails every remote step and counts how often it was asked
type remoteCounter struct {
	calls int
}

func (r *remoteCounter) Name() string { return "remote" }

func (r *remoteCounter) Attempt(ctx context.Context, name string) (*models.ResolvedSymbol, bool) {
	r.calls++
	return nil, false
}

func newAssembler(res *mockResolver, prices *mockPrices) *Assembler {
	logger := createTestLogger()
	return New(extractor.New(logger), normalizer.NewDefault(), res, prices, logger)
}

func TestRun_EmptyCorpus(t *testing.T) {
	a := newAssembler(&mockResolver{}, &mockPrices{})

	_, _, err := a.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)

	_, _, err = a.Run(context.Background(), models.Corpus{})
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestRun_ManualMappingScenario(t *testing.T) {
	logger := createTestLogger()
	remote := &remoteCounter{}
	res := resolver.New([]resolver.Strategy{
		resolver.NewManualStrategy(map[string]resolver.Override{
			"XYZ Holdings": {Symbol: "XYZ.JO", Region: models.RegionSA},
		}),
		remote,
	}, cache.New[*models.ResolvedSymbol]("symbols", 10, logger), logger)
	prices := &mockPrices{prices: map[string]string{"XYZ.JO": "25.10"}}

	a := New(extractor.New(logger), normalizer.NewDefault(), res, prices, logger)
	records, report, err := a.Run(context.Background(), models.Corpus{
		"dividends-update-october": "XYZ Holdings Limited will be paying 150 cents per share.",
	})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, models.DividendRecord{
		Region:     models.RegionSA,
		Instrument: "XYZ Holdings",
		Symbol:     "XYZ.JO",
		Dividend:   "150 cents",
		Price:      "25.10",
		Article:    "dividends-update-october",
		Source:     "Manual Mapping",
	}, records[0])
	assert.Zero(t, remote.calls)

	assert.Equal(t, 1, report.Articles)
	assert.Equal(t, 1, report.Mentions)
	assert.Equal(t, 1, report.Records)
	assert.NotEmpty(t, report.RunID)
	assert.Empty(t, report.Unknown)
}

func TestRun_SortsByRegionThenInstrument(t *testing.T) {
	res := &mockResolver{symbols: map[string]*models.ResolvedSymbol{
		"Vodacom": {Symbol: "VOD", Region: models.RegionSA, Source: models.SourceExchangeSearch, DisplayName: "Vodacom"},
		"Apple":   {Symbol: "AAPL", Region: models.RegionUSA, Source: models.SourceWebSearch},
		"Sasol":   {Symbol: "SOL", Region: models.RegionSA, Source: models.SourceExchangeSearch, DisplayName: "Sasol"},
	}}
	a := newAssembler(res, &mockPrices{})

	records, _, err := a.Run(context.Background(), models.Corpus{
		"october": "Vodacom will be paying 310 cents per share.\n" +
			"Apple will be paying 24 cents per share.\n" +
			"Sasol will be paying 550 cents per share.",
	})
	require.NoError(t, err)

	var order []string
	for _, r := range records {
		order = append(order, r.Instrument+"("+string(r.Region)+")")
	}
	assert.Equal(t, []string{"Sasol(SA)", "Vodacom(SA)", "Apple(USA)"}, order)
}

func TestRun_UsesExchangeDisplayNameAndPriceSource(t *testing.T) {
	res := &mockResolver{symbols: map[string]*models.ResolvedSymbol{
		"Sasol": {Symbol: "SOL", Region: models.RegionSA, Source: models.SourceExchangeSearch, DisplayName: "Sasol Ltd", Link: "https://x/instruments/SOL"},
		"Apple": {Symbol: "AAPL", Region: models.RegionUSA, Source: models.SourceWebSearch},
	}}
	prices := &mockPrices{prices: map[string]string{"SOL": "150.00", "AAPL": "230.10"}}
	a := newAssembler(res, prices)

	records, _, err := a.Run(context.Background(), models.Corpus{
		"october": "Sasol Limited will be paying 550 cents per share.\nApple will be paying 24 cents per share.",
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Sasol Ltd", records[0].Instrument)
	assert.Equal(t, "JSE", records[0].Source)
	assert.Equal(t, "150.00", records[0].Price)

	assert.Equal(t, "Apple", records[1].Instrument)
	assert.Equal(t, "Google Finance", records[1].Source)
}

func TestRun_UnknownCorpFallsBackAndIsReported(t *testing.T) {
	logger := createTestLogger()
	remote := &remoteCounter{}
	regions := &mockPrices{}
	res := resolver.New([]resolver.Strategy{
		resolver.NewManualStrategy(nil),
		remote, // exchange search
		remote, // web search
		resolver.NewFallbackStrategy(regions),
	}, cache.New[*models.ResolvedSymbol]("symbols", 10, logger), logger)

	a := New(extractor.New(logger), normalizer.NewDefault(), res, &mockPrices{}, logger)
	records, report, err := a.Run(context.Background(), models.Corpus{
		"october": "Unknown Corp Ltd will be paying 5 cents per share.",
	})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, models.RegionUnknown, records[0].Region)
	assert.Equal(t, "UNKNOWNCORP", records[0].Symbol)
	assert.Equal(t, models.PriceUnavailable, records[0].Price)
	assert.Equal(t, "EODHD", records[0].Source)
	assert.Equal(t, 2, remote.calls)
	assert.Equal(t, []string{"Unknown Corp (UNKNOWNCORP)"}, report.Unknown)
}

func TestRun_DeduplicatesWithinArticle(t *testing.T) {
	res := &mockResolver{symbols: map[string]*models.ResolvedSymbol{
		"Sasol":   {Symbol: "SOL", Region: models.RegionSA, Source: models.SourceManualMapping},
		"Vodacom": {Symbol: "VOD", Region: models.RegionSA, Source: models.SourceManualMapping},
	}}
	a := newAssembler(res, &mockPrices{})

	records, report, err := a.Run(context.Background(), models.Corpus{
		"october": "Sasol Limited will be paying 500 cents per share.\n" +
			"Vodacom will be paying 310 cents per share.\n" +
			"Sasol will be paying 550 cents per share.",
		"september": "Sasol will be paying 400 cents per share.",
	})
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, 4, report.Mentions)
	assert.Equal(t, "Sasol", records[0].Instrument)
	assert.Equal(t, "550 cents", records[0].Dividend)
	assert.Equal(t, "october", records[0].Article)
	assert.Equal(t, "400 cents", records[1].Dividend)
	assert.Equal(t, "september", records[1].Article)
	assert.Equal(t, "Vodacom", records[2].Instrument)

	// The resolver is asked once per (article, instrument)
	assert.Equal(t, 2, res.calls["Sasol"])
}

func TestRun_CountsRejectedNames(t *testing.T) {
	a := newAssembler(&mockResolver{}, &mockPrices{})

	records, report, err := a.Run(context.Background(), models.Corpus{
		"october": "The bear market will be paying 1 cent per share.",
	})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, report.Rejected)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newAssembler(&mockResolver{}, &mockPrices{}).Run(ctx, models.Corpus{"a": "b"})
	require.ErrorIs(t, err, context.Canceled)
}
