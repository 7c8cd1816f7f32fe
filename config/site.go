package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// Site describes where ads live on the target site and how to recognize them
type Site struct {
	Name           string   `yaml:"name"`
	BaseURL        string   `yaml:"base_url"`
	SearchURL      string   `yaml:"search_url"`
	AcceptLanguage string   `yaml:"accept_language"`
	LinkPrefixes   []string `yaml:"link_prefixes"`
	LinkMarkers    []string `yaml:"link_markers"`
}

// DefaultSite is the built-in description of divar.ir
func DefaultSite() *Site {
	return &Site{
		Name:           "divar",
		BaseURL:        "https://divar.ir",
		SearchURL:      "https://divar.ir/s/{city}/buy-residential",
		AcceptLanguage: "fa-IR,fa;q=0.9,en-US;q=0.8,en;q=0.7",
		LinkPrefixes:   []string{"/v/"},
		LinkMarkers:    []string{"/?i=", "/ad/", "/post/"},
	}
}

// LoadSite reads a site description from a YAML file. Missing keys keep
// their built-in defaults; an empty path returns the defaults.
func LoadSite(path string) (*Site, error) {
	site := DefaultSite()
	if path == "" {
		return site, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scrapeerrors.NewConfiguration("failed to read site config "+path, err)
	}

	if err := yaml.Unmarshal(data, site); err != nil {
		return nil, scrapeerrors.NewConfiguration("failed to parse site config "+path, err)
	}

	if site.BaseURL == "" {
		return nil, scrapeerrors.NewValidation("site", "site config "+path+" has no base_url")
	}
	if len(site.LinkPrefixes) == 0 && len(site.LinkMarkers) == 0 {
		return nil, scrapeerrors.NewValidation("site", "site config "+path+" has no link rules")
	}

	return site, nil
}

// SearchURLFor renders the search URL for a city
func (s *Site) SearchURLFor(city string) string {
	return strings.ReplaceAll(s.SearchURL, "{city}", city)
}
