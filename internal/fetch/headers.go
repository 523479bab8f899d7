package fetch

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

type fingerprint struct {
	UserAgent      string
	AcceptLanguage string
	// Chromium-only client hints; empty for Firefox and Safari.
	SecCHUA         string
	SecCHUAPlatform string
}

var fingerprints = []fingerprint{
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage:  "id-ID,id;q=0.9,en-US;q=0.8,en;q=0.7,ja;q=0.6",
		SecCHUA:         `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		SecCHUAPlatform: `"Windows"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		AcceptLanguage:  "en-US,en;q=0.9,id;q=0.8",
		SecCHUA:         `"Not A(Brand";v="99", "Google Chrome";v="121", "Chromium";v="121"`,
		SecCHUAPlatform: `"Windows"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage:  "en-US,en;q=0.9",
		SecCHUA:         `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		SecCHUAPlatform: `"macOS"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		AcceptLanguage:  "id-ID,id;q=0.9,en-US;q=0.8,en;q=0.7",
		SecCHUA:         `"Not A(Brand";v="99", "Google Chrome";v="121", "Chromium";v="121"`,
		SecCHUAPlatform: `"macOS"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage:  "en-US,en;q=0.8",
		SecCHUA:         `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		SecCHUAPlatform: `"Linux"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
		AcceptLanguage:  "en-US,en;q=0.9,ja;q=0.6",
		SecCHUA:         `"Not_A Brand";v="8", "Chromium";v="120", "Microsoft Edge";v="120"`,
		SecCHUAPlatform: `"Windows"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36 OPR/107.0.0.0",
		AcceptLanguage:  "en-US,en;q=0.9",
		SecCHUA:         `"Not A(Brand";v="99", "Opera";v="107", "Chromium";v="121"`,
		SecCHUAPlatform: `"Windows"`,
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		AcceptLanguage: "id,en-US;q=0.7,en;q=0.3",
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
		AcceptLanguage: "en-US,en;q=0.5",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:122.0) Gecko/20100101 Firefox/122.0",
		AcceptLanguage: "en-US,en;q=0.5",
	},
	{
		UserAgent:      "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		AcceptLanguage: "en-US,en;q=0.5",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
		AcceptLanguage: "en-US,en;q=0.9",
	},
}

var searchReferers = []string{
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
	"https://www.reddit.com/",
}

const sessionAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomFingerprint() fingerprint {
	return fingerprints[rand.IntN(len(fingerprints))]
}

func randomReferer() string {
	return searchReferers[rand.IntN(len(searchReferers))]
}

// sessionCookie mimics a first visit: a short random session id plus a
// Google Analytics client id stamped with the current time.
func sessionCookie(now time.Time) string {
	id := make([]byte, 8)
	for i := range id {
		id[i] = sessionAlphabet[rand.IntN(len(sessionAlphabet))]
	}

	return fmt.Sprintf("session_id=%s; _ga=GA1.2.%d.%s",
		id, rand.IntN(1_000_000_000), strconv.FormatInt(now.UnixMilli(), 10))
}

// documentHeaders builds a complete navigation header set for one attempt.
func documentHeaders(host, referer string, now time.Time) http.Header {
	fp := randomFingerprint()
	if referer == "" {
		referer = randomReferer()
	}

	h := http.Header{}
	h.Set("User-Agent", fp.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", fp.AcceptLanguage)
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "cross-site")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Cache-Control", "max-age=0")
	h.Set("DNT", "1")
	h.Set("Referer", referer)
	h.Set("Origin", "https://"+host)
	h.Set("Cookie", sessionCookie(now))

	if fp.SecCHUA != "" {
		h.Set("Sec-CH-UA", fp.SecCHUA)
		h.Set("Sec-CH-UA-Mobile", "?0")
		h.Set("Sec-CH-UA-Platform", fp.SecCHUAPlatform)
	}

	return h
}

func imageHeaders(referer string) http.Header {
	fp := randomFingerprint()

	h := http.Header{}
	h.Set("User-Agent", fp.UserAgent)
	h.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	h.Set("Accept-Language", fp.AcceptLanguage)
	h.Set("Sec-Fetch-Dest", "image")
	h.Set("Sec-Fetch-Mode", "no-cors")
	h.Set("Sec-Fetch-Site", "cross-site")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	if referer != "" {
		h.Set("Referer", referer)
	}

	return h
}
