package chapters

import (
	"sort"
	"strconv"
	"strings"

	"github.com/brogergvhs/mangamirror/internal/providers"
)

// SortByNumber orders chapters ascending by number. Ties keep document order.
func SortByNumber(all []providers.ScrapedChapter) {
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ChapterNumber < all[j].ChapterNumber
	})
}

// Filter keeps the chapters selected by expr, which is either empty (all),
// a single number ("12.5"), an inclusive range ("5-12") or a comma list
// ("1,3,5"). Numbers refer to chapter numbers, not list positions.
func Filter(all []providers.ScrapedChapter, expr string) []providers.ScrapedChapter {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return all
	}

	if strings.Contains(expr, ",") {
		return FilterList(all, expr)
	}
	if strings.Contains(expr, "-") {
		return FilterRange(all, expr)
	}

	n, err := parseNumber(expr)
	if err != nil {
		return nil
	}

	return filterBy(all, func(c providers.ScrapedChapter) bool { return c.ChapterNumber == n })
}

func FilterRange(all []providers.ScrapedChapter, rng string) []providers.ScrapedChapter {
	parts := strings.Split(rng, "-")
	if len(parts) != 2 {
		return nil
	}

	start, err1 := parseNumber(parts[0])
	end, err2 := parseNumber(parts[1])
	if err1 != nil || err2 != nil || start > end {
		return nil
	}

	return filterBy(all, func(c providers.ScrapedChapter) bool {
		return c.ChapterNumber >= start && c.ChapterNumber <= end
	})
}

func FilterList(all []providers.ScrapedChapter, list string) []providers.ScrapedChapter {
	want := map[float64]bool{}
	for p := range strings.SplitSeq(list, ",") {
		if n, err := parseNumber(p); err == nil {
			want[n] = true
		}
	}

	return filterBy(all, func(c providers.ScrapedChapter) bool { return want[c.ChapterNumber] })
}

func filterBy(all []providers.ScrapedChapter, keep func(providers.ScrapedChapter) bool) []providers.ScrapedChapter {
	out := []providers.ScrapedChapter{}
	for _, c := range all {
		if keep(c) {
			out = append(out, c)
		}
	}

	return out
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
