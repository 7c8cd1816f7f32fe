// Package extractor turns a rendered ad page into an ad record.
package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"zephuris/divarworker/internal/ad"
	"zephuris/divarworker/internal/normalize"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// Locator labels a coordinate with a district
type Locator interface {
	Locate(lat, lng float64) (string, bool)
}

// space also covers the no-break space and ZWNJ found in rendered Persian
// text, which RE2's \s does not match.
const space = `[\s\x{00a0}\x{200c}]`

// Patterns run against the flattened, digit-normalized page text.
// Each one is independent; the first match wins.
var (
	areaRe     = regexp.MustCompile(`([0-9]{1,3})` + space + `*(?:متر|متری)`)
	yearRe     = regexp.MustCompile(`([0-9]{4})`)
	roomsRe    = regexp.MustCompile(`متراژ` + space + `*ساخت` + space + `*اتاق` + space + `*[0-9]+` + space + `+[0-9]{4}` + space + `+([0-9]+)`)
	priceRe    = regexp.MustCompile(`قیمت` + space + `+کل` + space + `*[^0-9]*([0-9،,٬]+)`)
	pricePerRe = regexp.MustCompile(`قیمت` + space + `+هر` + space + `+متر` + space + `*[^0-9]*([0-9،,٬]+)`)
	floorRe    = regexp.MustCompile(`طبقه` + space + `*([0-9]+)`)
	parkingRe  = regexp.MustCompile(`(پارکینگ|پاركينگ)`)
	storageRe  = regexp.MustCompile(`(انباری|انبار|انبـاری)`)
	elevatorRe = regexp.MustCompile(`(آسانسور|اسانسور)`)
)

// Coordinate patterns run against the raw markup. The key must not be the
// tail of a longer identifier such as "flat" or "along".
var (
	latRe = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])["']?lat(?:itude)?["']?\s*[:=]\s*["']?(-?[0-9]{1,3}\.[0-9]+)`)
	lngRe = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])["']?(?:lng|lon|long|longitude)["']?\s*[:=]\s*["']?(-?[0-9]{1,3}\.[0-9]+)`)
)

var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Extractor extracts ad records. With a locator configured it also reads
// coordinates from the markup and labels the record with a district.
type Extractor struct {
	locator Locator
}

// New creates an extractor; locator may be nil
func New(locator Locator) *Extractor {
	return &Extractor{locator: locator}
}

// Extract runs the field battery without the geolocation path
func Extract(markup, link string) (ad.Record, error) {
	return New(nil).Extract(markup, link)
}

// Extract parses markup and fills every field whose pattern matches.
// Fields whose pattern does not match stay nil.
func (e *Extractor) Extract(markup, link string) (ad.Record, error) {
	text, err := VisibleText(markup)
	if err != nil {
		return ad.Record{}, err
	}
	text = normalize.ToASCIIDigits(text)

	rec := ad.Record{
		Area:        firstGroup(areaRe, text),
		Year:        firstGroup(yearRe, text),
		Rooms:       firstGroup(roomsRe, text),
		PriceTotal:  stripped(firstGroup(priceRe, text)),
		PricePerM:   stripped(firstGroup(pricePerRe, text)),
		Floor:       firstGroup(floorRe, text),
		HasParking:  parkingRe.MatchString(text),
		HasStorage:  storageRe.MatchString(text),
		HasElevator: elevatorRe.MatchString(text),
		Link:        link,
	}

	if e.locator != nil {
		e.locate(&rec, normalize.ToASCIIDigits(markup))
	}

	return rec, nil
}

func (e *Extractor) locate(rec *ad.Record, raw string) {
	lat := firstFloat(latRe, raw)
	lng := firstFloat(lngRe, raw)
	if lat == nil || lng == nil {
		return
	}
	rec.Lat, rec.Lng = lat, lng

	if district, ok := e.locator.Locate(*lat, *lng); ok {
		rec.District = ad.StringPtr(district)
	}
}

// VisibleText flattens markup to its visible text. Text nodes are trimmed and
// joined with single spaces; script, style, noscript and template content is
// dropped.
func VisibleText(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", scrapeerrors.NewParsing("extractor", "failed to parse ad markup", err)
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipTags[n.Data] {
				return
			}
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}

	return strings.Join(parts, " "), nil
}

func firstGroup(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}
	v := strings.TrimSpace(m[1])
	return &v
}

func firstFloat(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &f
}

func stripped(v *string) *string {
	if v == nil {
		return nil
	}
	s := normalize.StripSeparators(*v)
	return &s
}
