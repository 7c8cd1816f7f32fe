package crawler

import (
	"context"
	"sync"

	"zephuris/divarworker/services/worker"
)

// MockHandler implements AdHandler for testing
type MockHandler struct {
	mu        sync.Mutex
	ads       []string
	seedsOK   []string
	seedsFail []string
	adsOK     []string
	adsFail   []string
}

var _ AdHandler = (*MockHandler)(nil)

func (m *MockHandler) HandleAd(ctx context.Context, link, html string) worker.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ads = append(m.ads, link)
	return worker.OutcomeNew
}

func (m *MockHandler) SeedFetched(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.seedsFail = append(m.seedsFail, url)
		return
	}
	m.seedsOK = append(m.seedsOK, url)
}

func (m *MockHandler) AdFetched(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.adsFail = append(m.adsFail, url)
		return
	}
	m.adsOK = append(m.adsOK, url)
}
