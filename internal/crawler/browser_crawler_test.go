package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zephuris/divarworker/config"
)

const browserSearchURL = "https://divar.ir/s/tehran/buy-residential"

// MockBrowser implements Browser for testing. Anchor counts are served
// from counts in order; the last value repeats once exhausted.
type MockBrowser struct {
	counts        []int
	countCalls    int
	steps         int
	windowScrolls int
	pageDowns     int
	picked        bool
	navigated     []string
	failing       map[string]bool
	current       string
	closed        bool
}

var _ Browser = (*MockBrowser)(nil)

func (m *MockBrowser) Navigate(ctx context.Context, url string) error {
	m.navigated = append(m.navigated, url)
	if m.failing[url] {
		return errors.New("navigation failed")
	}
	m.current = url
	return nil
}

func (m *MockBrowser) Evaluate(ctx context.Context, script string, res interface{}) error {
	switch script {
	case pickScrollerScript:
		m.picked = true
		*res.(*ScrollerInfo) = ScrollerInfo{Tag: "div", Overflow: "auto", ScrollHeight: 5000, ClientHeight: 800}
	case scrollStepScript:
		m.steps++
		*res.(*bool) = true
	case countAnchorsScript:
		i := m.countCalls
		if i >= len(m.counts) {
			i = len(m.counts) - 1
		}
		*res.(*int) = m.counts[i]
		m.countCalls++
	case windowBottomScript:
		m.windowScrolls++
		*res.(*bool) = true
	default:
		return errors.New("unexpected script")
	}
	return nil
}

func (m *MockBrowser) PressPageDown(ctx context.Context) error {
	m.pageDowns++
	return nil
}

func (m *MockBrowser) HTML(ctx context.Context) (string, error) {
	if m.current == browserSearchURL {
		return `<html><body><a href="/v/one">1</a><a href="/v/two">2</a><a href="/v/three">3</a><a href="/about">x</a></body></html>`, nil
	}
	return `<html><body><p>قیمت کل 1،500،000</p></body></html>`, nil
}

func (m *MockBrowser) Close() error {
	m.closed = true
	return nil
}

func testTiming() ScrollTiming {
	return ScrollTiming{
		StepsPerRound: 3,
		StableRounds:  3,
		MaxRounds:     100,
		PageDowns:     10,
	}
}

func TestBrowserCrawlerStopsWhenStable(t *testing.T) {
	b := &MockBrowser{counts: []int{10, 20, 20, 20, 20}}
	handler := &MockHandler{}

	c := NewBrowserCrawler(b, config.DefaultSite(), handler, 50, time.Second, testTiming())
	links := NewLinkSet()
	require.NoError(t, c.Run(context.Background(), browserSearchURL, links))

	assert.True(t, b.picked)
	assert.Equal(t, 5, b.countCalls)
	assert.Equal(t, 15, b.steps)
	assert.Equal(t, 1, b.windowScrolls)
	assert.Equal(t, 10, b.pageDowns)

	assert.Equal(t, []string{
		"https://divar.ir/v/one",
		"https://divar.ir/v/two",
		"https://divar.ir/v/three",
	}, links.Links())
	assert.Equal(t, links.Links(), handler.ads)
	assert.Equal(t, []string{browserSearchURL}, handler.seedsOK)
}

func TestBrowserCrawlerStopsAtMaxRounds(t *testing.T) {
	counts := make([]int, 10)
	for i := range counts {
		counts[i] = i * 10
	}
	b := &MockBrowser{counts: counts}

	timing := testTiming()
	timing.MaxRounds = 4

	c := NewBrowserCrawler(b, config.DefaultSite(), &MockHandler{}, 50, time.Second, timing)
	require.NoError(t, c.Run(context.Background(), browserSearchURL, NewLinkSet()))

	assert.Equal(t, 4, b.countCalls)
	assert.Equal(t, 12, b.steps)
	assert.Equal(t, 0, b.windowScrolls)
	assert.Equal(t, 0, b.pageDowns)
}

func TestBrowserCrawlerHonorsMaxAds(t *testing.T) {
	b := &MockBrowser{
		counts:  []int{5},
		failing: map[string]bool{"https://divar.ir/v/one": true},
	}
	handler := &MockHandler{}

	c := NewBrowserCrawler(b, config.DefaultSite(), handler, 2, time.Second, testTiming())
	require.NoError(t, c.Run(context.Background(), browserSearchURL, NewLinkSet()))

	assert.Equal(t, []string{"https://divar.ir/v/two", "https://divar.ir/v/three"}, handler.ads)
	assert.Equal(t, []string{"https://divar.ir/v/one"}, handler.adsFail)
}

func TestBrowserCrawlerSearchNavigationFailure(t *testing.T) {
	b := &MockBrowser{
		counts:  []int{1},
		failing: map[string]bool{browserSearchURL: true},
	}
	handler := &MockHandler{}

	c := NewBrowserCrawler(b, config.DefaultSite(), handler, 2, time.Second, testTiming())
	err := c.Run(context.Background(), browserSearchURL, NewLinkSet())
	assert.Error(t, err)
	assert.Equal(t, []string{browserSearchURL}, handler.seedsFail)
	assert.Empty(t, handler.ads)
}

func TestBrowserFetcher(t *testing.T) {
	b := &MockBrowser{}
	f := NewBrowserFetcher(b, 0)
	assert.Equal(t, "browser", f.Name())

	p, err := f.Fetch(context.Background(), "https://divar.ir/v/x", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 200, p.StatusCode)
	assert.Contains(t, p.Body, "قیمت کل")

	assert.NoError(t, f.Close())
	assert.True(t, b.closed)
}
