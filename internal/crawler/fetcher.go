package crawler

import (
	"context"
	"time"

	"zephuris/divarworker/services/worker"
)

// Page is a fetched document
type Page struct {
	URL        string
	StatusCode int
	Body       string
}

// Fetcher retrieves pages, either over plain HTTP or through a browser
type Fetcher interface {
	// Fetch retrieves url, giving up after timeout
	Fetch(ctx context.Context, url string, timeout time.Duration) (*Page, error)

	// Name identifies the fetch strategy in logs
	Name() string

	// Close releases the underlying client or browser
	Close() error
}

// AdHandler receives fetched ad pages and fetch outcomes
type AdHandler interface {
	HandleAd(ctx context.Context, link, html string) worker.Outcome
	SeedFetched(url string, err error)
	AdFetched(url string, err error)
}
