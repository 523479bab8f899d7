// Package slug turns arbitrary titles and URL segments into ASCII slugs.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var multiHyphen = regexp.MustCompile(`-{2,}`)

// From lowercases s, strips accents and replaces every run of
// non-alphanumeric characters with a single hyphen.
func From(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn))
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}

	result = strings.ToLower(strings.TrimSpace(result))
	result = strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '-'
	}, result)

	result = multiHyphen.ReplaceAllString(result, "-")

	return strings.Trim(result, "-")
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
