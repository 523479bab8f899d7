package generic

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/brogergvhs/mangamirror/internal/providers"
)

const maxGenreLen = 50

var reLeadingNumber = regexp.MustCompile(`(\d+\.?\d*)`)

// normalizeRating maps 0-5, 0-10 and 0-100 style scales into 0-10. A real
// rating between 10 and 100 that is not a percentage will be misread.
func normalizeRating(text string) *float64 {
	m := reLeadingNumber.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	v, err := strconv.ParseFloat(strings.TrimSuffix(m[1], "."), 64)
	if err != nil {
		return nil
	}

	switch {
	case v > 100:
		v /= 100
	case v > 10:
		v /= 10
	}

	return &v
}

func normalizeStatus(text string) string {
	t := strings.ToLower(text)

	for _, w := range []string{"complete", "tamat", "selesai", "finished"} {
		if strings.Contains(t, w) {
			return providers.StatusCompleted
		}
	}
	for _, w := range []string{"hiatus", "berhenti"} {
		if strings.Contains(t, w) {
			return providers.StatusHiatus
		}
	}

	return providers.StatusOngoing
}

var typeVocabulary = []struct {
	word string
	typ  string
}{
	{"manhwa", providers.TypeManhwa},
	{"manhua", providers.TypeManhua},
	{"novel", providers.TypeNovel},
	{"webtoon", providers.TypeManhwa},
}

// normalizeType checks the type field first and the whole page second.
func normalizeType(typeText, pageText string) string {
	for _, text := range []string{typeText, pageText} {
		t := strings.ToLower(text)
		for _, v := range typeVocabulary {
			if strings.Contains(t, v.word) {
				return v.typ
			}
		}
	}

	return providers.TypeManga
}

func acceptGenre(g string) bool {
	if g == "" || utf8.RuneCountInString(g) > maxGenreLen {
		return false
	}

	return !strings.Contains(g, "Genre") && !strings.Contains(g, ":")
}

// shortText returns t when it is a plausible name (1-99 characters).
func shortText(t string) string {
	t = collapse(t)
	if n := utf8.RuneCountInString(t); n == 0 || n >= 100 {
		return ""
	}

	return t
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolve makes raw absolute against base. Protocol-relative and
// root-relative references take the base's scheme and host.
func resolve(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.IsAbs() || base == nil {
		return u.String()
	}

	return base.ResolveReference(u).String()
}

// skipHref filters links that never lead to a page.
func skipHref(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	return h == "" || strings.HasPrefix(h, "#") || strings.HasPrefix(h, "javascript:") || strings.HasPrefix(h, "mailto:")
}
