package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zephuris/divarworker/services/cache"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

func TestHTTPFetcherFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Language"), "fa-IR")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>آگهی</body></html>"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.Client(), "fa-IR,fa;q=0.9", nil)
	assert.Equal(t, "http", f.Name())

	p, err := f.Fetch(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, p.StatusCode)
	assert.Contains(t, p.Body, "آگهی")
	assert.NoError(t, f.Close())
}

func TestHTTPFetcherTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.Client(), "", nil)
	_, err := f.Fetch(context.Background(), server.URL, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, scrapeerrors.IsType(err, scrapeerrors.ErrorTypeNetwork))
}

func TestHTTPFetcherBlocksAfterRateLimit(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	blocker := cache.NewHostBlocker(cache.NewMemoryService(), time.Minute)
	f := NewHTTPFetcher(server.Client(), "", blocker)

	_, err := f.Fetch(context.Background(), server.URL+"/v/a", time.Second)
	require.Error(t, err)
	assert.True(t, scrapeerrors.IsType(err, scrapeerrors.ErrorTypeRateLimit))

	_, err = f.Fetch(context.Background(), server.URL+"/v/b", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked for")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
