package crawler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"zephuris/divarworker/helpers"
	"zephuris/divarworker/logger"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// Browser is the subset of a browser session the crawler drives
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, script string, res interface{}) error
	PressPageDown(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// BrowserOptions configures the headless Chrome session
type BrowserOptions struct {
	Headless       bool
	ExecPath       string
	ProxyURL       string
	AcceptLanguage string
	Timeout        time.Duration
}

// ChromeBrowser is a single headless Chrome tab driven through chromedp
type ChromeBrowser struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// NewChromeBrowser starts Chrome and opens one tab for the whole run
func NewChromeBrowser(parent context.Context, opts BrowserOptions) (*ChromeBrowser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) "+
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if opts.AcceptLanguage != "" {
		lang, _, _ := strings.Cut(opts.AcceptLanguage, ",")
		allocOpts = append(allocOpts, chromedp.Flag("lang", lang))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, scrapeerrors.NewBrowser("failed to start chrome", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger.ForBrowser().Info().Bool("headless", opts.Headless).Msg("Chrome session started")

	return &ChromeBrowser{
		ctx: ctx,
		cancel: func() {
			cancel()
			allocCancel()
		},
		timeout: timeout,
	}, nil
}

// run executes actions on the tab, bounded by the session timeout and
// cancelled together with ctx
func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the body
func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	err := b.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return scrapeerrors.NewBrowser("failed to navigate to "+url, err)
	}
	return nil
}

// Evaluate runs script in the page; res may be nil
func (b *ChromeBrowser) Evaluate(ctx context.Context, script string, res interface{}) error {
	if err := b.run(ctx, chromedp.Evaluate(script, res)); err != nil {
		return scrapeerrors.NewBrowser("script evaluation failed", err)
	}
	return nil
}

// PressPageDown sends a PageDown key press to the page
func (b *ChromeBrowser) PressPageDown(ctx context.Context) error {
	if err := b.run(ctx, chromedp.KeyEvent(kb.PageDown)); err != nil {
		return scrapeerrors.NewBrowser("failed to press PageDown", err)
	}
	return nil
}

// HTML returns the rendered markup of the current page
func (b *ChromeBrowser) HTML(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", scrapeerrors.NewBrowser("failed to read page markup", err)
	}
	return html, nil
}

// Close shuts the tab and the browser process down
func (b *ChromeBrowser) Close() error {
	b.cancel()
	return nil
}

// BrowserFetcher fetches pages by navigating a browser session and reading
// the rendered markup after a settle delay
type BrowserFetcher struct {
	browser Browser
	settle  time.Duration
}

// NewBrowserFetcher wraps browser as a Fetcher
func NewBrowserFetcher(browser Browser, settle time.Duration) *BrowserFetcher {
	return &BrowserFetcher{browser: browser, settle: settle}
}

// Name returns the fetch strategy name
func (f *BrowserFetcher) Name() string {
	return "browser"
}

// Fetch navigates to url and returns the rendered page. A browser has no
// status code to report, so a successful load is reported as 200.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*Page, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := f.browser.Navigate(fetchCtx, url); err != nil {
		return nil, err
	}
	if err := helpers.Sleep(fetchCtx, f.settle); err != nil {
		return nil, scrapeerrors.NewBrowser("settle wait interrupted", err)
	}

	html, err := f.browser.HTML(fetchCtx)
	if err != nil {
		return nil, err
	}

	return &Page{URL: url, StatusCode: http.StatusOK, Body: html}, nil
}

// Close closes the browser session
func (f *BrowserFetcher) Close() error {
	return f.browser.Close()
}
