package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Persian and Arabic-Indic digit blocks
const (
	persianZero     = '۰'
	persianNine     = '۹'
	arabicIndicZero = '٠'
	arabicIndicNine = '٩'
)

var (
	digitMapper = runes.Map(func(r rune) rune {
		switch {
		case r >= persianZero && r <= persianNine:
			return '0' + (r - persianZero)
		case r >= arabicIndicZero && r <= arabicIndicNine:
			return '0' + (r - arabicIndicZero)
		}
		return r
	})

	numberRe = regexp.MustCompile(`[0-9][0-9,\x{060C}\x{066C}]*`)

	separatorReplacer = strings.NewReplacer(",", "", "،", "", "٬", "")
)

// ToASCIIDigits maps every localized decimal digit in s to its ASCII
// counterpart. Other runes are returned unchanged.
func ToASCIIDigits(s string) string {
	out, _, err := transform.String(digitMapper, s)
	if err != nil {
		return s
	}
	return out
}

// StripSeparators removes thousands separators (ASCII comma, Arabic comma
// and Arabic thousands separator) from s.
func StripSeparators(s string) string {
	return separatorReplacer.Replace(s)
}

// ParseNumber extracts the first integer-looking token from s. Localized
// digits and thousands separators are accepted. It returns nil when s has no
// digits or the token does not fit in an int64.
func ParseNumber(s string) *int64 {
	if s == "" {
		return nil
	}

	token := numberRe.FindString(ToASCIIDigits(s))
	if token == "" {
		return nil
	}

	n, err := strconv.ParseInt(StripSeparators(token), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
