package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// Browser opens rendered pages
type Browser interface {
	Open(ctx context.Context, url string) (Page, error)
}

// Page is one rendered tab
type Page interface {
	// HTML returns the current document markup
	HTML(ctx context.Context) (string, error)

	// LoadMore clicks the button matched by selector and waits. It returns
	// false when no such button is on the page.
	LoadMore(ctx context.Context, selector string, wait time.Duration) (bool, error)

	Close()
}

// ChromeBrowserConfig holds the Chrome launch settings
type ChromeBrowserConfig struct {
	Headless        bool
	UserAgent       string
	NavigateTimeout time.Duration
	ClickTimeout    time.Duration
}

// ChromeBrowser launches a fresh Chrome instance per page
type ChromeBrowser struct {
	config ChromeBrowserConfig
	logger arbor.ILogger
}

func NewChromeBrowser(config ChromeBrowserConfig, logger arbor.ILogger) *ChromeBrowser {
	if config.NavigateTimeout <= 0 {
		config.NavigateTimeout = 60 * time.Second
	}
	if config.ClickTimeout <= 0 {
		config.ClickTimeout = 60 * time.Second
	}
	return &ChromeBrowser{config: config, logger: logger}
}

func (b *ChromeBrowser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.config.UserAgent))
	}
	return opts
}

// Open starts Chrome and navigates to url. The returned page owns the browser
// process; Close shuts it down.
func (b *ChromeBrowser) Open(ctx context.Context, url string) (Page, error) {
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			b.logger.Debug().Msgf("chromedp: "+s, i...)
		}),
	)

	page := &chromePage{
		ctx:          browserCtx,
		clickTimeout: b.config.ClickTimeout,
		cancel: func() {
			browserCancel()
			allocatorCancel()
		},
	}

	// Start the browser on the long-lived context; a timeout on the first Run would kill it
	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	navCtx, cancel := context.WithTimeout(browserCtx, b.config.NavigateTimeout)
	defer cancel()

	start := time.Now()
	err := chromedp.Run(navCtx,
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	b.logger.Debug().
		Str("url", url).
		Dur("elapsed", time.Since(start)).
		Msg("Page rendered")

	return page, nil
}

type chromePage struct {
	ctx          context.Context
	clickTimeout time.Duration
	cancel       context.CancelFunc
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(p.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	return html, ctx.Err()
}

func (p *chromePage) LoadMore(ctx context.Context, selector string, wait time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var nodes []*cdp.Node
	if err := chromedp.Run(p.ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return false, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	if len(nodes) == 0 {
		return false, nil
	}

	clickCtx, cancel := context.WithTimeout(p.ctx, p.clickTimeout)
	defer cancel()

	err := chromedp.Run(clickCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.Sleep(wait),
	)
	if err != nil {
		return false, fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return true, nil
}

func (p *chromePage) Close() {
	p.cancel()
}
