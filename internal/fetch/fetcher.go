// Package fetch retrieves source pages politely: per-host spacing, rotated
// browser headers, retry with exponential backoff and classification of
// block/challenge responses.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brogergvhs/mangamirror/internal/clock"
)

const (
	DefaultMinDelay     = 2 * time.Second
	DefaultMaxRetries   = 3
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 10 << 20

	minBodyBytes = 100
)

var challengeMarkers = []string{"cf-challenge", "Just a moment"}

type Config struct {
	MinDelay     time.Duration
	MaxRetries   int
	Timeout      time.Duration
	MaxBodyBytes int64

	// Pacer is shared between fetchers that talk to the same hosts. When nil
	// a private pacer with MinDelay spacing is created.
	Pacer  *HostPacer
	Clock  clock.Clock
	Logger *slog.Logger
}

type Options struct {
	Referer    string
	MaxRetries int
	Timeout    time.Duration
}

type Fetcher struct {
	client *http.Client
	pacer  *HostPacer
	clock  clock.Clock
	cfg    Config
	log    *slog.Logger
}

func New(client *http.Client, cfg Config) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultMinDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Pacer == nil {
		cfg.Pacer = NewHostPacer(cfg.Clock, cfg.MinDelay, 0)
	}

	return &Fetcher{
		client: client,
		pacer:  cfg.Pacer,
		clock:  cfg.Clock,
		cfg:    cfg,
		log:    cfg.Logger,
	}
}

// Fetch returns the decoded body of target. Every failure kind is retried
// up to MaxRetries times; the last error is returned with Attempts set.
func (f *Fetcher) Fetch(ctx context.Context, target string, opts Options) (string, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "", &Error{Kind: KindTransport, URL: target, Attempts: 1, Err: fmt.Errorf("invalid url")}
	}

	retries := opts.MaxRetries
	if retries <= 0 {
		retries = f.cfg.MaxRetries
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}

	var lastErr *Error
	for attempt := 1; attempt <= retries; attempt++ {
		if err := f.pacer.Wait(ctx, u.Host); err != nil {
			return "", err
		}

		body, ferr := f.attempt(ctx, u, opts.Referer, timeout)
		if ferr == nil {
			if attempt > 1 {
				f.log.Debug("fetch recovered", "url", target, "attempt", attempt)
			}
			return body, nil
		}

		ferr.Attempts = attempt
		lastErr = ferr
		f.log.Warn("fetch attempt failed",
			"url", target,
			"attempt", attempt,
			"max", retries,
			"kind", string(ferr.Kind),
			"status", ferr.StatusCode)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < retries {
			backoff := f.cfg.MinDelay << (attempt - 1)
			if err := f.clock.Sleep(ctx, backoff); err != nil {
				return "", err
			}
		}
	}

	return "", lastErr
}

func (f *Fetcher) attempt(ctx context.Context, u *url.URL, referer string, timeout time.Duration) (string, *Error) {
	target := u.String()

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, target, nil)
	if err != nil {
		return "", &Error{Kind: KindTransport, URL: target, Err: err}
	}
	req.Header = documentHeaders(u.Host, referer, f.clock.Now())

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransport, URL: target, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &Error{Kind: KindBlocked, URL: target, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &Error{Kind: KindHTTP, URL: target, StatusCode: resp.StatusCode}
	}

	raw, err := decodeBody(resp, f.cfg.MaxBodyBytes)
	if err != nil {
		return "", &Error{Kind: KindTransport, URL: target, StatusCode: resp.StatusCode, Err: err}
	}
	body := string(raw)

	if len(body) < minBodyBytes {
		return "", &Error{Kind: KindEmpty, URL: target, StatusCode: resp.StatusCode}
	}
	for _, marker := range challengeMarkers {
		if strings.Contains(body, marker) {
			return "", &Error{Kind: KindChallenge, URL: target, StatusCode: resp.StatusCode}
		}
	}

	return body, nil
}

// Stream is an open image response. The caller must close Body.
type Stream struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Open issues a single unpaced GET for an image and returns the streaming
// body. Non-2xx statuses and HTML responses are classified like Fetch.
func (f *Fetcher) Open(ctx context.Context, target, referer string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: target, Attempts: 1, Err: err}
	}
	req.Header = imageHeaders(referer)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: target, Attempts: 1, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		kind := KindHTTP
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
			kind = KindBlocked
		}
		return nil, &Error{Kind: kind, URL: target, StatusCode: resp.StatusCode, Attempts: 1}
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if mt == "text/html" {
			resp.Body.Close()
			return nil, &Error{Kind: KindChallenge, URL: target, StatusCode: resp.StatusCode, Attempts: 1,
				Err: fmt.Errorf("unexpected MIME %q", ct)}
		}
	}

	return &Stream{Body: resp.Body, ContentType: ct, Size: resp.ContentLength}, nil
}
