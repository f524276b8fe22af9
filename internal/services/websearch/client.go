// Package websearch queries an HTML search engine results page and returns
// the ranked result URLs.
package websearch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/interfaces"
)

// Client scrapes the configured results page.
type Client struct {
	fetcher        interfaces.DocumentFetcher
	baseURL        string
	resultSelector string
	logger         arbor.ILogger
}

// NewClient creates a search client.
func NewClient(fetcher interfaces.DocumentFetcher, config common.SearchConfig, logger arbor.ILogger) *Client {
	return &Client{
		fetcher:        fetcher,
		baseURL:        config.BaseURL,
		resultSelector: config.ResultSelector,
		logger:         logger,
	}
}

// QueryURL returns the results page URL for query.
func (c *Client) QueryURL(query string) string {
	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + "q=" + url.QueryEscape(query)
}

// Search returns up to limit absolute result URLs. An empty page is not an error.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	doc, err := c.fetcher.GetDocument(ctx, c.QueryURL(query))
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}

	var urls []string
	seen := make(map[string]bool)
	for _, node := range doc.Find(c.resultSelector).Nodes {
		if limit > 0 && len(urls) >= limit {
			break
		}
		for _, attr := range node.Attr {
			if attr.Key != "href" {
				continue
			}
			if target, ok := DecodeResultURL(attr.Val); ok && !seen[target] {
				seen[target] = true
				urls = append(urls, target)
			}
		}
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(urls)).
		Msg("Web search completed")
	return urls, nil
}

// DecodeResultURL unwraps redirect links ("/l/?uddg=<target>") and rejects
// anything that is not an absolute http(s) URL.
func DecodeResultURL(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if target := u.Query().Get("uddg"); target != "" {
		if u, err = url.Parse(target); err != nil {
			return "", false
		}
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}
