package crawler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"zephuris/divarworker/helpers"
	"zephuris/divarworker/logger"
	"zephuris/divarworker/services/cache"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// HTTPFetcher fetches pages with plain GET requests and browser-like headers
type HTTPFetcher struct {
	client         *http.Client
	acceptLanguage string
	blocker        *cache.HostBlocker
}

// NewHTTPFetcher creates a fetcher. blocker may be nil to disable
// rate-limit blocking.
func NewHTTPFetcher(client *http.Client, acceptLanguage string, blocker *cache.HostBlocker) *HTTPFetcher {
	return &HTTPFetcher{
		client:         client,
		acceptLanguage: acceptLanguage,
		blocker:        blocker,
	}
}

// Name returns the fetch strategy name
func (f *HTTPFetcher) Name() string {
	return "http"
}

// Fetch GETs rawURL. While the host is blocked after a rate-limit response
// the request is not sent at all.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*Page, error) {
	host := hostOf(rawURL)
	if remaining := f.blocker.Remaining(host); remaining > 0 {
		return nil, scrapeerrors.NewBlocked("http", remaining)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := helpers.FetchWithRandomHeaders(fetchCtx, f.client, rawURL, f.acceptLanguage)
	if err != nil {
		if scrapeerrors.IsType(err, scrapeerrors.ErrorTypeRateLimit) {
			if blockErr := f.blocker.Block(host); blockErr != nil {
				logger.ForCache().Warn().Err(blockErr).Str("host", host).Msg("Rate limit block not stored")
			}
		}
		return nil, err
	}

	return &Page{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Body:       string(resp.Body),
	}, nil
}

// Close releases idle connections
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
