package ingest

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

var ErrURLNotAllowed = errors.New("url not allowed")

// DefaultAllowedDomains are the sources scraping is permitted against when
// the configuration does not name its own list.
var DefaultAllowedDomains = []string{
	"manhwalist.com",
	"shinigami.sh",
	"komikcast.lol",
	"komiku.org",
	"komikindo.ch",
	"mangadex.org",
}

// URLPolicy guards the scraper against being pointed at internal services.
// An empty AllowedDomains permits any public host. A domain also admits its
// subdomains.
type URLPolicy struct {
	AllowedDomains []string
	AllowHTTP      bool
	AllowPrivate   bool
}

func (p URLPolicy) Validate(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: invalid URL format", ErrURLNotAllowed)
	}

	switch {
	case u.Scheme == "https":
	case u.Scheme == "http" && p.AllowHTTP:
	default:
		return fmt.Errorf("%w: only HTTPS URLs are allowed", ErrURLNotAllowed)
	}

	host := strings.ToLower(u.Hostname())
	if !p.AllowPrivate && isPrivateHost(host) {
		return fmt.Errorf("%w: private/local addresses are not allowed", ErrURLNotAllowed)
	}

	if len(p.AllowedDomains) == 0 {
		return nil
	}
	for _, d := range p.AllowedDomains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "www."))
		if d != "" && (host == d || strings.HasSuffix(host, "."+d)) {
			return nil
		}
	}
	return fmt.Errorf("%w: domain %s is not in the allowed list", ErrURLNotAllowed, host)
}

func isPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}

	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast()
}
