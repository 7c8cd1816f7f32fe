package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"zephuris/divarworker/config"
	"zephuris/divarworker/helpers"
	"zephuris/divarworker/internal/ad"
	"zephuris/divarworker/internal/crawler"
	"zephuris/divarworker/internal/extractor"
	"zephuris/divarworker/internal/geo"
	"zephuris/divarworker/logger"
	"zephuris/divarworker/services/cache"
	"zephuris/divarworker/services/proxy"
	"zephuris/divarworker/services/publisher"
	"zephuris/divarworker/services/store"
	"zephuris/divarworker/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load configuration, let flags override it, then validate
	cfg := config.LoadConfig()
	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		logger.Fatal("Invalid arguments: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := run(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start crawl")
	}

	fmt.Println(stats.Summary())
	fmt.Println("Added Successfully!")
}

// parseFlags applies command line flags on top of cfg
func parseFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("divarworker", flag.ContinueOnError)

	fs.StringVar(&cfg.City, "city", cfg.City, "city slug used in the search URL")
	fs.IntVar(&cfg.Pages, "pages", cfg.Pages, "number of passes over the seed URLs")
	fs.BoolVar(&cfg.UseBrowser, "use-browser", cfg.UseBrowser, "discover ads with a headless browser")
	fs.BoolVar(&cfg.UseBrowser, "use-selenium", cfg.UseBrowser, "alias for -use-browser")
	fs.StringVar(&cfg.SeedsPath, "seeds", cfg.SeedsPath, "file with one search URL per line")
	fs.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "collection new ads are appended to")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "output format: jsonl or sqlite")
	fs.StringVar(&cfg.ExistingPath, "existing", cfg.ExistingPath, "previously saved collection (defaults to -out)")
	fs.IntVar(&cfg.MaxAds, "max-ads", cfg.MaxAds, "maximum ads visited in browser mode")
	fs.StringVar(&cfg.DistrictsSource, "districts", cfg.DistrictsSource, "GeoJSON district boundaries (URL or file)")

	return fs.Parse(args)
}

// Services holds the optional backing services
type Services struct {
	Cache     cache.CacheService
	Blocker   *cache.HostBlocker
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			logger.Error("Failed to close publisher: %v", err)
		}
	}
}

// initializeServices connects to memcached and Redis when configured.
// An unreachable memcached falls back to the in-memory cache and an
// unreachable Redis disables publishing.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, using in-memory cache")
			services.Cache = cache.NewMemoryService()
		} else {
			services.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	} else {
		services.Cache = cache.NewMemoryService()
	}
	services.Blocker = cache.NewHostBlocker(services.Cache, cfg.RateLimitBlock)

	if cfg.RedisAddr != "" {
		rp := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisMaxLen)
		if err := rp.Ping(ctx); err != nil {
			logger.ForPublisher().Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, publishing disabled")
			rp.Close()
		} else {
			services.Publisher = rp
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return services
}

// run wires the components and performs one crawl. Only setup failures are
// returned; the crawl itself is best effort.
func run(ctx context.Context, cfg *config.Config) (worker.Stats, error) {
	log := logger.Default
	runID := uuid.NewString()

	site, err := config.LoadSite(cfg.SiteConfigPath)
	if err != nil {
		return worker.Stats{}, err
	}

	useSQLite := cfg.OutputFormat == config.FormatSQLite || store.IsSQLitePath(cfg.OutputPath)
	existing, err := store.LoadExisting(ctx, cfg.ExistingFile(), useSQLite && cfg.ExistingFile() == cfg.OutputPath)
	if err != nil {
		return worker.Stats{}, err
	}
	index := ad.NewIndex(existing)
	log.Info().Int("count", index.Existing()).Str("path", cfg.ExistingFile()).Msg("Existing ads read")

	client, err := helpers.NewHTTPClient(cfg.ProxyURL, 0)
	if err != nil {
		return worker.Stats{}, err
	}
	if cfg.ProxyURL != "" {
		if res, err := proxy.Probe(ctx, cfg.ProxyURL, 5*time.Second); err != nil {
			logger.ForProxy().Warn().Err(err).Msg("Proxy check failed, fetches may fail")
		} else {
			logger.Info("Using proxy %s (latency %s)", res.Host, res.Latency)
		}
	}

	var locator extractor.Locator
	if cfg.DistrictsSource != "" {
		districts, err := geo.LoadDistricts(ctx, client, cfg.DistrictsSource, cfg.DistrictProperty)
		if err != nil {
			return worker.Stats{}, err
		}
		locator = districts
	}

	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	st, err := store.Open(cfg.OutputPath, useSQLite, runID)
	if err != nil {
		return worker.Stats{}, err
	}
	defer st.Close()

	w := worker.NewWorker(
		extractor.New(locator),
		index,
		st,
		services.Publisher,
		helpers.NewFailureLog(cfg.FailureLogPath),
		runID,
	)
	links := crawler.NewLinkSet()

	runLog := log.WithFields(logger.Fields{
		"environment": cfg.Environment,
		"run_id":      runID,
		"city":        cfg.City,
		"browser":     cfg.UseBrowser,
	})
	runLog.Info().Msg("Starting crawl")
	logger.Debug("Writing ads to %s (sqlite: %t)", cfg.OutputPath, useSQLite)

	start := time.Now()
	if cfg.UseBrowser {
		err = runBrowser(ctx, cfg, site, w, links)
	} else {
		err = runStatic(ctx, cfg, site, client, services.Blocker, w, links)
	}

	var setupErr *setupError
	switch {
	case errors.As(err, &setupErr):
		return worker.Stats{}, setupErr.err
	case errors.Is(err, context.Canceled):
		runLog.Warn().Msg("Crawl interrupted")
	case err != nil:
		logger.LogError("main", err, "Crawl stopped")
	}

	finishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.Finish(finishCtx)

	runLog.Info().
		Dur("elapsed", time.Since(start)).
		Int("links", links.Len()).
		Int("stored", len(w.Results())).
		Int("remembered", index.Added()).
		Msg("Crawl finished")
	return w.Stats(), nil
}

// setupError marks failures that happen before any page is fetched
type setupError struct {
	err error
}

func (e *setupError) Error() string { return e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

func runStatic(ctx context.Context, cfg *config.Config, site *config.Site, client *http.Client, blocker *cache.HostBlocker, w *worker.Worker, links *crawler.LinkSet) error {
	seeds, err := crawler.ReadSeeds(cfg.SeedsPath)
	if err != nil {
		return &setupError{err: err}
	}
	logger.LogInfo("seeds", "Seed links read, count: %d", len(seeds))
	if len(seeds) == 0 {
		logger.Warn("Seed file %s has no URLs", cfg.SeedsPath)
	}

	fetcher := crawler.NewHTTPFetcher(client, site.AcceptLanguage, blocker)
	defer fetcher.Close()

	sc := crawler.NewStaticCrawler(fetcher, site, w, crawler.StaticOptionsFromConfig(cfg))
	return sc.Run(ctx, seeds, links)
}

func runBrowser(ctx context.Context, cfg *config.Config, site *config.Site, w *worker.Worker, links *crawler.LinkSet) error {
	browser, err := crawler.NewChromeBrowser(ctx, crawler.BrowserOptions{
		Headless:       cfg.Headless,
		ExecPath:       cfg.ChromePath,
		ProxyURL:       cfg.ProxyURL,
		AcceptLanguage: site.AcceptLanguage,
		Timeout:        cfg.BrowserNavTimeout,
	})
	if err != nil {
		return &setupError{err: err}
	}
	defer browser.Close()

	searchURL := site.SearchURLFor(cfg.City)
	logger.Info("Using browser to scrape %s", searchURL)

	bc := crawler.NewBrowserCrawler(browser, site, w, cfg.MaxAds, cfg.BrowserNavTimeout, crawler.DefaultScrollTiming())
	return bc.Run(ctx, searchURL, links)
}
