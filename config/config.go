package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// Output formats
const (
	FormatJSONL  = "jsonl"
	FormatSQLite = "sqlite"
)

// Config represents the application configuration
type Config struct {
	// Crawl configuration
	City          string
	Pages         int
	UseBrowser    bool
	MaxAds        int
	MinDelay      time.Duration
	MaxDelay      time.Duration
	SeedTimeout   time.Duration
	AdTimeout     time.Duration
	MinBodyLength int
	ProxyURL      string

	// Paths
	SeedsPath      string
	OutputPath     string
	OutputFormat   string
	ExistingPath   string
	FailureLogPath string
	SiteConfigPath string

	// District dataset
	DistrictsSource  string
	DistrictProperty string

	// Browser configuration
	ChromePath        string
	Headless          bool
	BrowserNavTimeout time.Duration

	// Redis configuration; an empty address disables publishing
	RedisAddr   string
	RedisDB     int
	RedisStream string
	RedisMaxLen int64

	// Memcache configuration; an empty address selects the in-memory cache
	MemcacheAddr   string
	RateLimitBlock time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		City:              getEnv("DIVAR_CITY", "tehran"),
		Pages:             getEnvInt("DIVAR_PAGES", 1),
		UseBrowser:        getEnvBool("DIVAR_USE_BROWSER", false),
		MaxAds:            getEnvInt("MAX_ADS", 50),
		MinDelay:          getEnvDuration("MIN_DELAY", 10*time.Second),
		MaxDelay:          getEnvDuration("MAX_DELAY", 30*time.Second),
		SeedTimeout:       getEnvDuration("SEED_TIMEOUT", 30*time.Second),
		AdTimeout:         getEnvDuration("AD_TIMEOUT", 15*time.Second),
		MinBodyLength:     getEnvInt("MIN_BODY_LENGTH", 1000),
		ProxyURL:          getEnv("PROXY_URL", ""),
		SeedsPath:         getEnv("SEEDS_PATH", "divar_links.txt"),
		OutputPath:        getEnv("OUTPUT_PATH", "divar_ads.jsonl"),
		OutputFormat:      strings.ToLower(getEnv("OUTPUT_FORMAT", FormatJSONL)),
		ExistingPath:      getEnv("EXISTING_PATH", ""),
		FailureLogPath:    getEnv("FAILURE_LOG", "divar_failures.log"),
		SiteConfigPath:    getEnv("SITE_CONFIG", ""),
		DistrictsSource:   getEnv("DISTRICTS_SOURCE", ""),
		DistrictProperty:  getEnv("DISTRICT_PROPERTY", "name"),
		ChromePath:        getEnv("CHROME_PATH", ""),
		Headless:          getEnvBool("BROWSER_HEADLESS", true),
		BrowserNavTimeout: getEnvDuration("BROWSER_NAV_TIMEOUT", 30*time.Second),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RedisStream:       getEnv("REDIS_STREAM", "divar:ads"),
		RedisMaxLen:       int64(getEnvInt("REDIS_STREAM_MAXLEN", 10000)),
		MemcacheAddr:      getEnv("MEMCACHE_ADDR", ""),
		RateLimitBlock:    getEnvDuration("RATE_LIMIT_BLOCK", 5*time.Minute),
		Environment:       getEnv("DIVAR_ENVIRONMENT", "development"),
	}
}

// ExistingFile returns the collection used to seed the dedup index.
// It defaults to the output file.
func (c *Config) ExistingFile() string {
	if c.ExistingPath != "" {
		return c.ExistingPath
	}
	return c.OutputPath
}

// Validate checks ranges and enum values
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.City) == "":
		return scrapeerrors.NewConfiguration("city must not be empty", nil)
	case c.Pages < 1:
		return scrapeerrors.NewConfiguration(fmt.Sprintf("pages must be at least 1, got %d", c.Pages), nil)
	case c.MaxAds < 1:
		return scrapeerrors.NewConfiguration(fmt.Sprintf("max ads must be at least 1, got %d", c.MaxAds), nil)
	case c.MinDelay < 0 || c.MaxDelay < c.MinDelay:
		return scrapeerrors.NewConfiguration(fmt.Sprintf("invalid delay range [%v, %v]", c.MinDelay, c.MaxDelay), nil)
	case c.SeedTimeout <= 0 || c.AdTimeout <= 0 || c.BrowserNavTimeout <= 0:
		return scrapeerrors.NewConfiguration("timeouts must be positive", nil)
	case c.MinBodyLength < 0:
		return scrapeerrors.NewConfiguration("min body length must not be negative", nil)
	case c.OutputPath == "":
		return scrapeerrors.NewConfiguration("output path must not be empty", nil)
	case c.RedisAddr != "" && c.RedisStream == "":
		return scrapeerrors.NewConfiguration("redis stream must be set when redis is enabled", nil)
	}

	switch c.OutputFormat {
	case FormatJSONL, FormatSQLite:
	default:
		return scrapeerrors.NewConfiguration(fmt.Sprintf("unknown output format %q", c.OutputFormat), nil)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDuration accepts Go duration strings ("1m30s") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
