package generic

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

var (
	reTSReader = regexp.MustCompile(`ts_reader\.run\((\{.*?\})\);`)
	reNuxt     = regexp.MustCompile(`window\.__NUXT__\s*=\s*(\{.*?\});`)
)

// embeddedImageURLs extracts page URLs from reader scripts. For ts_reader
// only the first mirror is used, otherwise every image-like URL found in the
// JSON is returned in a stable order.
func embeddedImageURLs(body string) []string {
	if m := reTSReader.FindStringSubmatch(body); m != nil {
		var r struct {
			Sources []struct {
				Images []string `json:"images"`
			} `json:"sources"`
		}
		if json.Unmarshal([]byte(m[1]), &r) == nil && len(r.Sources) > 0 {
			return r.Sources[0].Images
		}
	}

	if m := reNuxt.FindStringSubmatch(body); m != nil {
		var raw any
		if json.Unmarshal([]byte(m[1]), &raw) == nil {
			var out []string
			walkJSON(raw, &out)
			return out
		}
	}

	return nil
}

func walkJSON(v any, out *[]string) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		ls := strings.ToLower(s)
		if (strings.HasPrefix(ls, "http://") || strings.HasPrefix(ls, "https://")) &&
			reExt.MatchString(ls) && !looksDecorative(ls) {
			*out = append(*out, s)
		}
	case []any:
		for _, x := range t {
			walkJSON(x, out)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkJSON(t[k], out)
		}
	}
}

func looksDecorative(u string) bool {
	for _, w := range []string{"logo", "cover", "profile", "avatar", "banner"} {
		if strings.Contains(u, w) {
			return true
		}
	}

	return false
}
