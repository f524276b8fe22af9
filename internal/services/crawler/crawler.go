// Package crawler collects the current month's dividend articles from the blog.
package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/common"
	"github.com/ternarybob/divtrack/internal/interfaces"
	"github.com/ternarybob/divtrack/internal/models"
)

// dateLayouts are tried in order for each listing date
var dateLayouts = []string{"January 2, 2006", "2 January 2006", "2006-01-02"}

// Crawler renders the listing with a browser, then fetches each article over HTTP.
type Crawler struct {
	config  common.BlogConfig
	browser Browser
	pages   interfaces.DocumentFetcher
	now     func() time.Time
	logger  arbor.ILogger
}

// Option configures a Crawler
type Option func(*Crawler)

// WithClock replaces time.Now for the current-month check
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) {
		c.now = now
	}
}

func New(config common.BlogConfig, browser Browser, pages interfaces.DocumentFetcher, logger arbor.ILogger, opts ...Option) *Crawler {
	c := &Crawler{
		config:  config,
		browser: browser,
		pages:   pages,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect returns every current-month article with its paragraph text. A
// listing failure aborts; a failed article keeps empty text.
func (c *Crawler) Collect(ctx context.Context) ([]models.Article, error) {
	listing, err := c.renderListing(ctx)
	if err != nil {
		return nil, err
	}

	articles := ParseListing(listing, c.config.LinkSelector, c.config.BaseURL, c.config.TitleMaxLength, c.logger)
	c.logger.Info().Int("articles", len(articles)).Msg("Found articles on listing")

	for i := range articles {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("crawl cancelled: %w", err)
		}

		doc, err := c.pages.GetDocument(ctx, articles[i].Link)
		if err != nil {
			c.logger.Error().
				Err(err).
				Str("article", articles[i].Title).
				Msg("Failed to fetch article")
			continue
		}
		articles[i].Text = ArticleText(doc)
	}

	return articles, nil
}

// renderListing opens the topic page and keeps loading more posts while every
// dated post on it belongs to the current month.
func (c *Crawler) renderListing(ctx context.Context) (string, error) {
	page, err := c.browser.Open(ctx, c.config.TopicURL)
	if err != nil {
		return "", fmt.Errorf("failed to render blog listing: %w", err)
	}
	defer page.Close()

	now := c.now()
	var html string
	for loaded := 1; ; loaded++ {
		html, err = page.HTML(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to read blog listing: %w", err)
		}

		if !AllInMonth(html, c.config.DateSelector, now, c.logger) {
			c.logger.Info().Int("pages", loaded).Msg("No more articles from current month")
			break
		}
		if loaded >= c.config.MaxPages {
			c.logger.Warn().Int("max_pages", c.config.MaxPages).Msg("Stopped loading at page limit")
			break
		}

		clicked, err := page.LoadMore(ctx, c.config.LoadMoreButton, c.config.LoadMoreWait)
		if err != nil {
			c.logger.Warn().Err(err).Int("pages", loaded).Msg("Load more failed, using what is loaded")
			break
		}
		if !clicked {
			c.logger.Info().Int("pages", loaded).Msg("No more articles to load")
			break
		}
	}

	return html, nil
}

// ParseDate tries each listing date layout in turn
func ParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AllInMonth reports whether the listing has at least one parsable date and
// every parsable date falls in the month of now. Unparsable dates are skipped.
func AllInMonth(html, dateSelector string, now time.Time, logger arbor.ILogger) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	found := false
	inMonth := true
	doc.Find(dateSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		date, ok := ParseDate(text)
		if !ok {
			logger.Warn().Str("date", strings.TrimSpace(text)).Msg("Could not parse date")
			return true
		}
		found = true
		if date.Year() != now.Year() || date.Month() != now.Month() {
			inMonth = false
			return false
		}
		return true
	})
	return found && inMonth
}

// ParseListing returns the article links under baseURL, titled by their path
// relative to baseURL and truncated to maxTitle runes. Repeated titles are dropped.
func ParseListing(html, linkSelector, baseURL string, maxTitle int, logger arbor.ILogger) []models.Article {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var articles []models.Article
	seen := make(map[string]bool)
	doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		link, _ := s.Attr("href")
		if !strings.HasPrefix(link, baseURL) {
			logger.Debug().Str("link", link).Msg("Skipping link outside blog")
			return
		}

		title := Title(link, baseURL, maxTitle)
		if seen[title] {
			return
		}
		seen[title] = true
		articles = append(articles, models.Article{Title: title, Link: link})
	})
	return articles
}

// Title strips baseURL from link and truncates the rest
func Title(link, baseURL string, maxTitle int) string {
	title := strings.TrimPrefix(link, baseURL)
	if runes := []rune(title); maxTitle > 0 && len(runes) > maxTitle {
		title = string(runes[:maxTitle])
	}
	return title
}

// ArticleText joins the trimmed text of every paragraph, one per line
func ArticleText(doc *goquery.Document) string {
	var b strings.Builder
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		b.WriteString(strings.TrimSpace(s.Text()))
		b.WriteString("\n")
	})
	return b.String()
}
