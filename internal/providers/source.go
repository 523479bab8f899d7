package providers

import (
	"net/url"
	"strings"
)

const (
	SourceManhwalist = "MANHWALIST"
	SourceShinigami  = "SHINIGAMI"
	SourceKomikcast  = "KOMIKCAST"
	SourceKomiku     = "KOMIKU"
	SourceKomikindo  = "KOMIKINDO"
	SourceUniversal  = "UNIVERSAL"
)

// Adapter is a fixed reader-page layout for a known source. Attrs are read
// in order and the first non-empty value wins; an image whose URL contains
// Skip is dropped.
type Adapter struct {
	Code     string
	Selector string
	Attrs    []string
	Skip     string
}

var adapters = map[string]Adapter{
	SourceManhwalist: {Code: SourceManhwalist, Selector: "#readerarea img", Attrs: []string{"src"}, Skip: "loading"},
	SourceShinigami:  {Code: SourceShinigami, Selector: ".chapter-images img", Attrs: []string{"src", "data-src"}, Skip: "loading"},
	SourceKomikcast:  {Code: SourceKomikcast, Selector: "#chapter_body img", Attrs: []string{"src"}, Skip: "loader"},
}

// AdapterFor returns the reader adapter for a source code, if one exists.
func AdapterFor(code string) (Adapter, bool) {
	a, ok := adapters[strings.ToUpper(strings.TrimSpace(code))]
	return a, ok
}

var hostCodes = []struct {
	needle string
	code   string
}{
	{"manhwalist", SourceManhwalist},
	{"shinigami", SourceShinigami},
	{"komikcast", SourceKomikcast},
	{"komiku", SourceKomiku},
	{"komikindo", SourceKomikindo},
}

// DetectSourceCode maps a URL's hostname to a known source code.
func DetectSourceCode(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SourceUniversal
	}

	host := strings.ToLower(u.Hostname())
	for _, hc := range hostCodes {
		if strings.Contains(host, hc.needle) {
			return hc.code
		}
	}

	return SourceUniversal
}

// SourceName is the display name stored alongside a new source row.
func SourceName(code, rawURL string) string {
	if code != SourceUniversal {
		return strings.ToUpper(code[:1]) + strings.ToLower(code[1:])
	}
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}

	return "Universal"
}
