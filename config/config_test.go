package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scrapeerrors "zephuris/divarworker/pkg/errors"
)

func TestLoadConfigDefaults(t *testing.T) {
	config := LoadConfig()
	assert.Equal(t, "tehran", config.City)
	assert.Equal(t, 1, config.Pages)
	assert.False(t, config.UseBrowser)
	assert.Equal(t, 50, config.MaxAds)
	assert.Equal(t, 10*time.Second, config.MinDelay)
	assert.Equal(t, 30*time.Second, config.MaxDelay)
	assert.Equal(t, 30*time.Second, config.SeedTimeout)
	assert.Equal(t, 15*time.Second, config.AdTimeout)
	assert.Equal(t, 1000, config.MinBodyLength)
	assert.Equal(t, FormatJSONL, config.OutputFormat)
	assert.Equal(t, "", config.RedisAddr)
	assert.Equal(t, "", config.MemcacheAddr)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DIVAR_CITY", "mashhad")
	t.Setenv("DIVAR_PAGES", "3")
	t.Setenv("DIVAR_USE_BROWSER", "true")
	t.Setenv("MIN_DELAY", "2s")
	t.Setenv("MAX_DELAY", "5")
	t.Setenv("OUTPUT_FORMAT", "SQLite")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("MEMCACHE_ADDR", "memcache.example.com:11211")
	t.Setenv("RATE_LIMIT_BLOCK", "90s")

	config := LoadConfig()
	assert.Equal(t, "mashhad", config.City)
	assert.Equal(t, 3, config.Pages)
	assert.True(t, config.UseBrowser)
	assert.Equal(t, 2*time.Second, config.MinDelay)
	assert.Equal(t, 5*time.Second, config.MaxDelay)
	assert.Equal(t, FormatSQLite, config.OutputFormat)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 2, config.RedisDB)
	assert.Equal(t, "memcache.example.com:11211", config.MemcacheAddr)
	assert.Equal(t, 90*time.Second, config.RateLimitBlock)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("DIVAR_PAGES", "many")
	t.Setenv("MIN_DELAY", "soon")

	config := LoadConfig()
	assert.Equal(t, 1, config.Pages)
	assert.Equal(t, 10*time.Second, config.MinDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty city", func(c *Config) { c.City = " " }},
		{"zero pages", func(c *Config) { c.Pages = 0 }},
		{"zero max ads", func(c *Config) { c.MaxAds = 0 }},
		{"inverted delays", func(c *Config) { c.MinDelay, c.MaxDelay = 5*time.Second, time.Second }},
		{"zero timeout", func(c *Config) { c.AdTimeout = 0 }},
		{"unknown format", func(c *Config) { c.OutputFormat = "csv" }},
		{"empty output", func(c *Config) { c.OutputPath = "" }},
		{"redis without stream", func(c *Config) { c.RedisAddr, c.RedisStream = "localhost:6379", "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := LoadConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.True(t, scrapeerrors.IsType(err, scrapeerrors.ErrorTypeConfiguration))
		})
	}
}

func TestExistingFile(t *testing.T) {
	config := LoadConfig()
	config.OutputPath = "out.jsonl"
	assert.Equal(t, "out.jsonl", config.ExistingFile())

	config.ExistingPath = "old.json"
	assert.Equal(t, "old.json", config.ExistingFile())
}

func TestLoadSiteDefault(t *testing.T) {
	site, err := LoadSite("")
	require.NoError(t, err)
	assert.Equal(t, "https://divar.ir", site.BaseURL)
	assert.Equal(t, []string{"/v/"}, site.LinkPrefixes)
	assert.Equal(t, "https://divar.ir/s/tehran/buy-residential", site.SearchURLFor("tehran"))
}

func TestLoadSiteFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	content := `name: mirror
base_url: https://mirror.example.com
search_url: https://mirror.example.com/s/{city}
link_prefixes:
  - /listing/
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	site, err := LoadSite(path)
	require.NoError(t, err)
	assert.Equal(t, "mirror", site.Name)
	assert.Equal(t, "https://mirror.example.com", site.BaseURL)
	assert.Equal(t, []string{"/listing/"}, site.LinkPrefixes)
	assert.Equal(t, DefaultSite().LinkMarkers, site.LinkMarkers)
	assert.Equal(t, DefaultSite().AcceptLanguage, site.AcceptLanguage)
	assert.Equal(t, "https://mirror.example.com/s/shiraz", site.SearchURLFor("shiraz"))
}

func TestLoadSiteErrors(t *testing.T) {
	_, err := LoadSite(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [unclosed"), 0644))
	_, err = LoadSite(path)
	assert.Error(t, err)

	path = filepath.Join(t.TempDir(), "empty-base.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: \"\"\n"), 0644))
	_, err = LoadSite(path)
	assert.True(t, scrapeerrors.IsType(err, scrapeerrors.ErrorTypeValidation))

	path = filepath.Join(t.TempDir(), "no-rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("link_prefixes: []\nlink_markers: []\n"), 0644))
	_, err = LoadSite(path)
	assert.True(t, scrapeerrors.IsType(err, scrapeerrors.ErrorTypeValidation))
}
