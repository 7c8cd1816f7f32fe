package crawler

import (
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"zephuris/divarworker/config"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// HarvestLinks returns the absolute URL of every anchor on a search page
// that looks like an ad link for site. Links are returned in document order
// and are not deduplicated.
func HarvestLinks(r io.Reader, site *config.Site) ([]string, error) {
	base, err := url.Parse(site.BaseURL)
	if err != nil {
		return nil, scrapeerrors.NewConfiguration("invalid site base_url", err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, scrapeerrors.NewParsing("harvester", "failed to parse search page", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !isAdLink(href, site) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})

	return links, nil
}

func isAdLink(href string, site *config.Site) bool {
	for _, prefix := range site.LinkPrefixes {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	for _, marker := range site.LinkMarkers {
		if strings.Contains(href, marker) {
			return true
		}
	}
	return false
}

// LinkSet is the ordered list of ad links discovered during a run.
// Duplicates are kept, so a link harvested twice is visited twice.
type LinkSet struct {
	mu    sync.Mutex
	links []string
}

// NewLinkSet creates an empty link set
func NewLinkSet() *LinkSet {
	return &LinkSet{}
}

// Add appends links in order
func (s *LinkSet) Add(links ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, links...)
}

// Links returns a snapshot of the discovered links
func (s *LinkSet) Links() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.links...)
}

// Len returns the number of discovered links
func (s *LinkSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}
