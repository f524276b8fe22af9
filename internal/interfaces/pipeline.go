package interfaces

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/divtrack/internal/models"
)

// DocumentFetcher downloads and parses an HTML page
type DocumentFetcher interface {
	GetDocument(ctx context.Context, url string) (*goquery.Document, error)
}

// ExchangeService searches the primary exchange website
type ExchangeService interface {
	// Search returns the first instrument result for query
	Search(ctx context.Context, query string) (*models.ExchangeListing, error)

	// InstrumentURL returns the detail page URL for a suffix-form symbol
	InstrumentURL(symbol string) string
}

// WebSearchService queries a generic search engine
type WebSearchService interface {
	// Search returns up to limit result URLs in rank order
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// PriceService produces prices and regions. Implementations never fail: they degrade
// to the sentinel price or RegionUnknown.
type PriceService interface {
	Quote(ctx context.Context, resolved *models.ResolvedSymbol) models.PriceQuote
	ExchangePrice(ctx context.Context, link string) models.PriceQuote
	Region(ctx context.Context, symbol string) models.Region
}

// SymbolResolver maps a normalized instrument name to a symbol
type SymbolResolver interface {
	Resolve(ctx context.Context, name string) *models.ResolvedSymbol
}

// ArticleSource collects the current month's articles
type ArticleSource interface {
	Collect(ctx context.Context) ([]models.Article, error)
}

// DividendsService runs the pipeline and serves the latest dataset
type DividendsService interface {
	Refresh(ctx context.Context) (*models.Dataset, error)
	Latest(ctx context.Context) (*models.Dataset, error)
	IsStale(ctx context.Context) bool
	EnsureFresh(ctx context.Context) (*models.Dataset, error)
	History(ctx context.Context) ([]models.RunReport, error)
}
