package crawler

import (
	"context"
	"strings"
	"time"

	"zephuris/divarworker/config"
	"zephuris/divarworker/helpers"
	"zephuris/divarworker/logger"
)

// Scripts evaluated in the search page. The chosen scroll container is kept
// on window so the later scripts can reuse it.
const (
	pickScrollerScript = `(function() {
	var els = Array.from(document.querySelectorAll('body, html, div, section, main, ul, [role="main"]'));
	var best = null, bestDiff = 0;
	els.forEach(function(e) {
		var diff = e.scrollHeight - e.clientHeight;
		if (diff > bestDiff) { best = e; bestDiff = diff; }
	});
	var el = best || document.documentElement;
	window.__divarScroller = el;
	return {
		tag: el.tagName.toLowerCase(),
		overflow: window.getComputedStyle(el).overflowY,
		scrollHeight: el.scrollHeight,
		clientHeight: el.clientHeight
	};
})()`

	scrollStepScript = `(function() {
	var el = window.__divarScroller || document.documentElement;
	el.scrollTop += Math.max(300, el.clientHeight / 2);
	var last = el.querySelector('a:last-of-type');
	if (last) { last.scrollIntoView(); }
	return true;
})()`

	countAnchorsScript = `Array.from(document.querySelectorAll('a')).filter(function(a) { return !!a.getAttribute('href'); }).length`

	windowBottomScript = `(function() {
	window.scrollTo(0, document.body.scrollHeight);
	return true;
})()`
)

// ScrollerInfo describes the element chosen as scroll container
type ScrollerInfo struct {
	Tag          string `json:"tag"`
	Overflow     string `json:"overflow"`
	ScrollHeight int    `json:"scrollHeight"`
	ClientHeight int    `json:"clientHeight"`
}

// ScrollTiming holds the waits and limits of the infinite-scroll simulation
type ScrollTiming struct {
	InitialWait   time.Duration
	StepsPerRound int
	StepPause     time.Duration
	RoundPause    time.Duration
	StableRounds  int
	MaxRounds     int
	FallbackWait  time.Duration
	PageDowns     int
	PageDownPause time.Duration
	FinalWait     time.Duration
	AdSettle      time.Duration
}

// DefaultScrollTiming returns the timing used against the live site
func DefaultScrollTiming() ScrollTiming {
	return ScrollTiming{
		InitialWait:   2 * time.Second,
		StepsPerRound: 3,
		StepPause:     200 * time.Millisecond,
		RoundPause:    3 * time.Second,
		StableRounds:  3,
		MaxRounds:     100,
		FallbackWait:  3 * time.Second,
		PageDowns:     10,
		PageDownPause: 500 * time.Millisecond,
		FinalWait:     time.Second,
		AdSettle:      1200 * time.Millisecond,
	}
}

// BrowserCrawler discovers ads by scrolling a search page in a browser and
// then visits them in the same session
type BrowserCrawler struct {
	browser    Browser
	fetcher    Fetcher
	site       *config.Site
	handler    AdHandler
	maxAds     int
	navTimeout time.Duration
	timing     ScrollTiming
	log        *logger.Logger
}

// NewBrowserCrawler creates a browser crawler visiting at most maxAds ads
func NewBrowserCrawler(browser Browser, site *config.Site, handler AdHandler, maxAds int, navTimeout time.Duration, timing ScrollTiming) *BrowserCrawler {
	return &BrowserCrawler{
		browser:    browser,
		fetcher:    NewBrowserFetcher(browser, timing.AdSettle),
		site:       site,
		handler:    handler,
		maxAds:     maxAds,
		navTimeout: navTimeout,
		timing:     timing,
		log:        logger.ForCrawler("browser"),
	}
}

// Run scrolls searchURL until the number of links stops growing, harvests
// the ad links and visits up to maxAds of them
func (c *BrowserCrawler) Run(ctx context.Context, searchURL string, links *LinkSet) error {
	navCtx, cancel := context.WithTimeout(ctx, c.navTimeout)
	err := c.browser.Navigate(navCtx, searchURL)
	cancel()
	if err != nil {
		c.handler.SeedFetched(searchURL, err)
		return err
	}
	c.handler.SeedFetched(searchURL, nil)

	if err := helpers.Sleep(ctx, c.timing.InitialWait); err != nil {
		return err
	}

	if err := c.scroll(ctx); err != nil {
		return err
	}

	if err := helpers.Sleep(ctx, c.timing.FinalWait); err != nil {
		return err
	}

	html, err := c.browser.HTML(ctx)
	if err != nil {
		return err
	}
	found, err := HarvestLinks(strings.NewReader(html), c.site)
	if err != nil {
		return err
	}
	links.Add(found...)
	c.log.Info().Int("links", len(found)).Msg("Found candidate ads")

	return c.visitAds(ctx, links.Links())
}

// scroll runs rounds of container scrolling until the anchor count has
// been unchanged for StableRounds rounds or MaxRounds is reached. When the
// count settled, a window scroll and PageDown presses are tried as well.
func (c *BrowserCrawler) scroll(ctx context.Context) error {
	var info ScrollerInfo
	if err := c.browser.Evaluate(ctx, pickScrollerScript, &info); err != nil {
		c.log.Warn().Err(err).Msg("Failed to pick scroll container")
	} else {
		c.log.Debug().
			Str("tag", info.Tag).
			Str("overflow", info.Overflow).
			Int("scroll_height", info.ScrollHeight).
			Int("client_height", info.ClientHeight).
			Msg("Chosen scroll container")
	}

	prevCount, unchanged, rounds := -1, 0, 0
	for unchanged < c.timing.StableRounds && rounds < c.timing.MaxRounds {
		for i := 0; i < c.timing.StepsPerRound; i++ {
			var ok bool
			if err := c.browser.Evaluate(ctx, scrollStepScript, &ok); err != nil {
				c.log.Debug().Err(err).Msg("Scroll step failed")
			}
			if err := helpers.Sleep(ctx, c.timing.StepPause); err != nil {
				return err
			}
		}

		if err := helpers.Sleep(ctx, c.timing.RoundPause); err != nil {
			return err
		}

		var count int
		if err := c.browser.Evaluate(ctx, countAnchorsScript, &count); err != nil {
			c.log.Debug().Err(err).Msg("Failed to count links")
		}
		c.log.Debug().Int("round", rounds).Int("link_count", count).Msg("Scrolled")

		if count == prevCount {
			unchanged++
		} else {
			prevCount = count
			unchanged = 0
		}
		rounds++
	}

	if unchanged < c.timing.StableRounds {
		return nil
	}

	c.log.Info().Int("rounds", rounds).Msg("No further change from container scroll, trying window scroll and PageDown")
	var ok bool
	if err := c.browser.Evaluate(ctx, windowBottomScript, &ok); err != nil {
		c.log.Debug().Err(err).Msg("Window scroll failed")
	}
	if err := helpers.Sleep(ctx, c.timing.FallbackWait); err != nil {
		return err
	}
	for i := 0; i < c.timing.PageDowns; i++ {
		if err := c.browser.PressPageDown(ctx); err != nil {
			c.log.Debug().Err(err).Msg("PageDown failed")
		}
		if err := helpers.Sleep(ctx, c.timing.PageDownPause); err != nil {
			return err
		}
	}
	return nil
}

func (c *BrowserCrawler) visitAds(ctx context.Context, links []string) error {
	visited := 0
	for _, link := range links {
		if visited >= c.maxAds {
			break
		}

		p, err := c.fetcher.Fetch(ctx, link, c.navTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn().Err(err).Str("link", link).Msg("Browser ad error")
			c.handler.AdFetched(link, err)
			continue
		}

		c.handler.AdFetched(link, nil)
		c.handler.HandleAd(ctx, link, p.Body)
		visited++
	}
	return nil
}
