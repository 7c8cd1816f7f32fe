package crawler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"zephuris/divarworker/config"
	"zephuris/divarworker/helpers"
	"zephuris/divarworker/logger"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// StaticOptions controls the plain HTTP crawl
type StaticOptions struct {
	City          string
	Pages         int
	MinDelay      time.Duration
	MaxDelay      time.Duration
	SeedTimeout   time.Duration
	AdTimeout     time.Duration
	MinBodyLength int
}

// StaticOptionsFromConfig copies the crawl settings out of cfg
func StaticOptionsFromConfig(cfg *config.Config) StaticOptions {
	return StaticOptions{
		City:          cfg.City,
		Pages:         cfg.Pages,
		MinDelay:      cfg.MinDelay,
		MaxDelay:      cfg.MaxDelay,
		SeedTimeout:   cfg.SeedTimeout,
		AdTimeout:     cfg.AdTimeout,
		MinBodyLength: cfg.MinBodyLength,
	}
}

// StaticCrawler walks seed search pages and the ads they link to
type StaticCrawler struct {
	fetcher Fetcher
	site    *config.Site
	handler AdHandler
	opts    StaticOptions
	log     *logger.Logger
}

// NewStaticCrawler creates a static crawler
func NewStaticCrawler(fetcher Fetcher, site *config.Site, handler AdHandler, opts StaticOptions) *StaticCrawler {
	return &StaticCrawler{
		fetcher: fetcher,
		site:    site,
		handler: handler,
		opts:    opts,
		log:     logger.ForCrawler(fetcher.Name()),
	}
}

// Run performs opts.Pages passes. Each pass fetches every seed, adds the
// harvested ad links to links, then visits every link collected so far.
// Per-URL failures are logged and skipped; only cancellation stops the run.
func (c *StaticCrawler) Run(ctx context.Context, seeds []string, links *LinkSet) error {
	for page := 1; page <= c.opts.Pages; page++ {
		accepted, err := c.fetchSeeds(ctx, seeds)
		if err != nil {
			return err
		}
		if len(accepted) == 0 {
			c.log.Warn().Int("page", page).Str("city", c.opts.City).Msg("Could not fetch any search page")
			continue
		}

		for _, p := range accepted {
			found, err := HarvestLinks(strings.NewReader(p.Body), c.site)
			if err != nil {
				c.log.Warn().Err(err).Str("url", p.URL).Msg("Failed to harvest links")
				continue
			}
			links.Add(found...)
		}
		c.log.Info().Int("page", page).Int("links", links.Len()).Msg("Found candidate ads")

		if err := c.visitAds(ctx, links.Links()); err != nil {
			return err
		}
	}

	return nil
}

func (c *StaticCrawler) fetchSeeds(ctx context.Context, seeds []string) ([]*Page, error) {
	var accepted []*Page
	for i, seed := range seeds {
		if err := helpers.Sleep(ctx, helpers.RandomDelay(c.opts.MinDelay, c.opts.MaxDelay)); err != nil {
			return nil, err
		}

		p, err := c.fetcher.Fetch(ctx, seed, c.opts.SeedTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Str("url", seed).Bool("retryable", scrapeerrors.IsRetryable(err)).Msg("Failed to fetch search page")
			c.handler.SeedFetched(seed, err)
			continue
		}
		c.log.Debug().Int("index", i).Str("url", seed).Int("status", p.StatusCode).Msg("Search page requested")

		if p.StatusCode != http.StatusOK || len(p.Body) <= c.opts.MinBodyLength {
			err := fmt.Errorf("rejected search page: status %d, %d bytes", p.StatusCode, len(p.Body))
			c.log.Warn().Str("url", seed).Int("status", p.StatusCode).Int("bytes", len(p.Body)).Msg("Search page rejected")
			c.handler.SeedFetched(seed, err)
			continue
		}

		c.handler.SeedFetched(seed, nil)
		accepted = append(accepted, p)
	}
	return accepted, nil
}

func (c *StaticCrawler) visitAds(ctx context.Context, links []string) error {
	for _, link := range links {
		if err := helpers.Sleep(ctx, helpers.RandomDelay(c.opts.MinDelay, c.opts.MaxDelay)); err != nil {
			return err
		}

		p, err := c.fetcher.Fetch(ctx, link, c.opts.AdTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn().Err(err).Str("link", link).Bool("retryable", scrapeerrors.IsRetryable(err)).Msg("Error fetching ad")
			c.handler.AdFetched(link, err)
			continue
		}

		if p.StatusCode != http.StatusOK {
			c.log.Debug().Str("link", link).Int("status", p.StatusCode).Msg("Skipping ad page")
			c.handler.AdFetched(link, fmt.Errorf("unexpected status code: %d", p.StatusCode))
			continue
		}

		c.handler.AdFetched(link, nil)
		c.handler.HandleAd(ctx, link, p.Body)
	}
	return nil
}
