// Package exchange searches the primary exchange website for instruments and
// reads prices from their detail pages.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/interfaces"
	"github.com/ternarybob/divtrack/internal/models"
)

const (
	resultSelector    = "div.search-result.search-result--instrument"
	alphaCodeSelector = "div.field--name-field-alpha-code span"
	priceSelector     = "div.instrument-delta__price"
)

// ErrNoResults is returned when a search page lists no instruments.
var ErrNoResults = errors.New("no instrument results")

// Client talks to the exchange website.
type Client struct {
	fetcher interfaces.DocumentFetcher
	baseURL string
	logger  arbor.ILogger
}

// NewClient creates an exchange client.
func NewClient(fetcher interfaces.DocumentFetcher, config common.ExchangeConfig, logger arbor.ILogger) *Client {
	return &Client{
		fetcher: fetcher,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  logger,
	}
}

// SearchURL returns the search page URL for query.
func (c *Client) SearchURL(query string) string {
	return c.baseURL + "/search?keys=" + url.QueryEscape(query)
}

// InstrumentURL returns the detail page for a suffix-form symbol ("PSG.JO" -> /instruments/PSGJO).
func (c *Client) InstrumentURL(symbol string) string {
	return c.baseURL + "/instruments/" + common.ParseTicker(symbol).ExchangeCode()
}

// Search returns the first instrument listed for query.
func (c *Client) Search(ctx context.Context, query string) (*models.ExchangeListing, error) {
	doc, err := c.fetcher.GetDocument(ctx, c.SearchURL(query))
	if err != nil {
		return nil, fmt.Errorf("exchange search failed: %w", err)
	}

	results := doc.Find(resultSelector)
	if results.Length() == 0 {
		return nil, ErrNoResults
	}

	listing := c.parseResult(results.First())
	c.logger.Debug().
		Str("query", query).
		Str("name", listing.Name).
		Str("symbol", listing.Symbol).
		Msg("Exchange search result")
	return listing, nil
}

func (c *Client) parseResult(result *goquery.Selection) *models.ExchangeListing {
	listing := &models.ExchangeListing{
		Name:   models.SymbolUnresolved,
		Symbol: models.SymbolUnresolved,
		Link:   models.SymbolUnresolved,
	}

	if link := result.Find("a").First(); link.Length() > 0 {
		listing.Name = strings.TrimSpace(link.Text())
		if href, ok := link.Attr("href"); ok {
			listing.Link = c.resolve(href)
		}
	}

	if code, ok := ParseAlphaCode(result); ok {
		listing.Symbol = code
	}
	return listing
}

// resolve makes an href absolute against the base URL.
func (c *Client) resolve(href string) string {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return c.baseURL + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return c.baseURL + href
	}
	return base.ResolveReference(ref).String()
}

// Price reads the price from an instrument detail page. Every failure yields
// the sentinel quote.
func (c *Client) Price(ctx context.Context, link string) models.PriceQuote {
	if link == "" || link == models.SymbolUnresolved {
		return models.UnavailableQuote(models.PriceSourceExchange)
	}

	doc, err := c.fetcher.GetDocument(ctx, link)
	if err != nil {
		c.logger.Warn().Err(err).Str("link", link).Msg("Failed to fetch exchange price")
		return models.UnavailableQuote(models.PriceSourceExchange)
	}

	value, ok := ParsePrice(doc.Find(priceSelector).First().Text(), "Price")
	if !ok {
		c.logger.Warn().Str("link", link).Msg("Exchange price not found on page")
		return models.UnavailableQuote(models.PriceSourceExchange)
	}
	return models.PriceQuote{Value: value, Source: models.PriceSourceExchange}
}

// ParseAlphaCode reads the alpha code field from a search result or detail page.
func ParseAlphaCode(s interface{ Find(string) *goquery.Selection }) (string, bool) {
	code := strings.TrimSpace(s.Find(alphaCodeSelector).First().Text())
	return code, code != ""
}

// ParsePrice strips labels, currency symbols and separators from a displayed
// price and formats it with two decimals.
func ParsePrice(text string, labels ...string) (string, bool) {
	for _, label := range labels {
		text = strings.ReplaceAll(text, label, "")
	}
	text = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', 'R', ',', ' ', '\u00a0':
			return -1
		}
		return r
	}, strings.TrimSpace(text))

	value, err := strconv.ParseFloat(text, 64)
	if err != nil || value <= 0 {
		return "", false
	}
	return strconv.FormatFloat(value, 'f', 2, 64), true
}
