package util

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type HTTPClientOptions struct {
	Timeout          time.Duration
	UserAgent        string
	Cookie           string
	CookieFile       string
	CloudflareBypass bool
	Transport        http.RoundTripper
	Logger           *slog.Logger
}

func NewHTTPClient(opts HTTPClientOptions) (*http.Client, error) {
	jar, _ := cookiejar.New(nil)

	var baseTransport http.RoundTripper
	if opts.Transport != nil {
		baseTransport = opts.Transport
	} else {
		baseTransport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			MaxIdleConns:          100,
			MaxConnsPerHost:       100,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: time.Second,
			ForceAttemptHTTP2:     true,
		}
	}

	if opts.CloudflareBypass {
		baseTransport = cloudflarebp.AddCloudFlareByPass(baseTransport)
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: roundTripper{
			base:         baseTransport,
			ua:           opts.UserAgent,
			cookieHeader: joinCookies(opts.Cookie, opts.CookieFile),
			log:          opts.Logger,
		},
		Jar: jar,
	}

	if opts.Logger != nil {
		opts.Logger.Debug("http client initialized",
			"timeout", opts.Timeout,
			"ua", opts.UserAgent,
			"cookie_file", opts.CookieFile,
			"cloudflare_bypass", opts.CloudflareBypass)
	}

	return client, nil
}

// roundTripper fills in the configured identity for requests that did not
// set their own. The fetch layer rotates headers per attempt, so anything it
// sets wins.
type roundTripper struct {
	base         http.RoundTripper
	ua           string
	cookieHeader string
	log          *slog.Logger
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.ua != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", rt.ua)
	}

	if rt.cookieHeader != "" {
		if c := req.Header.Get("Cookie"); c == "" {
			req.Header.Set("Cookie", rt.cookieHeader)
		} else if !strings.Contains(c, rt.cookieHeader) {
			req.Header.Set("Cookie", c+"; "+rt.cookieHeader)
		}
	}

	if rt.log != nil {
		rt.log.Debug("http request", "method", req.Method, "url", req.URL.String())
	}

	return rt.base.RoundTrip(req)
}

func joinCookies(inline, file string) string {
	s := strings.TrimSpace(inline)
	if file != "" {
		if b, err := os.ReadFile(file); err == nil {
			// first non-empty line
			sc := bufio.NewScanner(strings.NewReader(string(b)))
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line != "" {
					if s == "" {
						s = line
					} else {
						s = s + "; " + line
					}
					break
				}
			}
		}
	}

	return s
}

func PickUserAgent(override string) string {
	if override != "" {
		return override
	}

	return DefaultUserAgent
}
