// Package chapters derives chapter numbers and identifiers from the text and
// URLs found in chapter lists.
package chapters

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/brogergvhs/mangamirror/internal/slug"
)

// numberPatterns are tried in order against lowercased text; explicit
// keywords win over bare numbers.
var numberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`chapter[:\s-]*(\d+\.?\d*)`),
	regexp.MustCompile(`ch\.?\s*(\d+\.?\d*)`),
	regexp.MustCompile(`ep\.?\s*(\d+\.?\d*)`),
	regexp.MustCompile(`episode[:\s-]*(\d+\.?\d*)`),
	regexp.MustCompile(`#\s*(\d+\.?\d*)`),
	regexp.MustCompile(`^(\d+\.?\d*)$`),
	regexp.MustCompile(`(\d+\.?\d*)\s*-`),
}

// ExtractNumber returns the chapter number found in text, or 0 when no
// pattern matches.
func ExtractNumber(text string) float64 {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return 0
	}

	for _, re := range numberPatterns {
		m := re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(m[1], "."), 64)
		if err != nil {
			continue
		}
		return n
	}

	return 0
}

// FormatNumber renders a chapter number the way it appears in storage paths:
// 12 -> "12", 12.5 -> "12.5".
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// SourceID slugifies the last non-empty path segment of a chapter URL.
func SourceID(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}

	return slug.From(p)
}
