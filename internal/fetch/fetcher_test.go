package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangamirror/internal/clock"
)

var page = "<html><head><title>Series</title></head><body>" + strings.Repeat("<p>chapter list</p>", 10) + "</body></html>"

func newTestFetcher(srv *httptest.Server, clk *clock.Fake) *Fetcher {
	return New(srv.Client(), Config{Clock: clk})
}

func TestFetchRetriesUntilSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, page)
	}))
	defer srv.Close()

	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	body, err := newTestFetcher(srv, clk).Fetch(context.Background(), srv.URL+"/series/x", Options{})
	require.NoError(t, err)

	assert.Equal(t, page, body)
	assert.EqualValues(t, 3, hits.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clk.Sleeps())
}

func TestFetchClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		blocked bool
	}{
		{"forbidden", http.StatusForbidden, page, KindBlocked, true},
		{"unavailable", http.StatusServiceUnavailable, page, KindBlocked, true},
		{"not found", http.StatusNotFound, page, KindHTTP, false},
		{"tiny body", http.StatusOK, "<html></html>", KindEmpty, false},
		{"cloudflare", http.StatusOK, page + "<title>Just a moment...</title>", KindChallenge, true},
		{"challenge form", http.StatusOK, page + `<form id="cf-challenge-form"></form>`, KindChallenge, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			clk := clock.NewFake(time.Unix(0, 0))
			_, err := newTestFetcher(srv, clk).Fetch(context.Background(), srv.URL, Options{})
			require.Error(t, err)

			var fe *Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, 3, fe.Attempts)
			assert.Equal(t, tt.blocked, IsBlocked(err))
			assert.EqualValues(t, 3, hits.Load())
		})
	}
}

func TestFetchHonoursMaxRetriesOption(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	clk := clock.NewFake(time.Unix(0, 0))
	_, err := newTestFetcher(srv, clk).Fetch(context.Background(), srv.URL, Options{MaxRetries: 1})
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
	assert.Empty(t, clk.Sleeps())
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = io.WriteString(w, page)
	}))
	defer srv.Close()

	clk := clock.NewFake(time.UnixMilli(1700000000123))
	_, err := newTestFetcher(srv, clk).Fetch(context.Background(), srv.URL+"/a", Options{Referer: "https://example.com/list"})
	require.NoError(t, err)

	u, _ := url.Parse(srv.URL)
	assert.Equal(t, "https://example.com/list", got.Get("Referer"))
	assert.Equal(t, "https://"+u.Host, got.Get("Origin"))
	assert.Equal(t, "gzip, deflate, br", got.Get("Accept-Encoding"))
	assert.Equal(t, "document", got.Get("Sec-Fetch-Dest"))
	assert.Equal(t, "1", got.Get("Upgrade-Insecure-Requests"))
	assert.Equal(t, "1", got.Get("DNT"))
	assert.Contains(t, got.Get("User-Agent"), "Mozilla/5.0")
	assert.Regexp(t, `^session_id=[0-9a-z]{8}; _ga=GA1\.2\.\d+\.1700000000123$`, got.Get("Cookie"))
}

func TestFetchRandomRefererWhenNoneGiven(t *testing.T) {
	var ref string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref = r.Header.Get("Referer")
		_, _ = io.WriteString(w, page)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv, clock.NewFake(time.Unix(0, 0))).Fetch(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	assert.Contains(t, searchReferers, ref)
}

func TestFetchDecodesCompressedBodies(t *testing.T) {
	encoders := map[string]func(io.Writer) io.WriteCloser{
		"gzip": func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) },
		"br":   func(w io.Writer) io.WriteCloser { return brotli.NewWriter(w) },
	}

	for name, enc := range encoders {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			zw := enc(&buf)
			_, _ = io.WriteString(zw, page)
			require.NoError(t, zw.Close())

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", name)
				_, _ = w.Write(buf.Bytes())
			}))
			defer srv.Close()

			body, err := newTestFetcher(srv, clock.NewFake(time.Unix(0, 0))).Fetch(context.Background(), srv.URL, Options{})
			require.NoError(t, err)
			assert.Equal(t, page, body)
		})
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	big := page + strings.Repeat("<p>filler</p>", 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, big)
	}))
	defer srv.Close()

	fit := New(srv.Client(), Config{Clock: clock.NewFake(time.Unix(0, 0)), MaxBodyBytes: int64(len(big))})
	body, err := fit.Fetch(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	assert.Equal(t, big, body, "a body of exactly the limit is accepted")

	small := New(srv.Client(), Config{Clock: clock.NewFake(time.Unix(0, 0)), MaxBodyBytes: int64(len(big)) - 1})
	_, err = small.Fetch(context.Background(), srv.URL, Options{MaxRetries: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestFetchStopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(srv, clock.NewFake(time.Unix(0, 0))).Fetch(ctx, srv.URL, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			assert.Equal(t, "https://cdn.example.com", r.Header.Get("Referer"))
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
		case "/hotlink.jpg":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, page)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	f := newTestFetcher(srv, clock.NewFake(time.Unix(0, 0)))

	st, err := f.Open(context.Background(), srv.URL+"/ok.jpg", "https://cdn.example.com")
	require.NoError(t, err)
	data, err := io.ReadAll(st.Body)
	require.NoError(t, err)
	require.NoError(t, st.Body.Close())
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
	assert.Equal(t, "image/jpeg", st.ContentType)

	_, err = f.Open(context.Background(), srv.URL+"/hotlink.jpg", "")
	assert.Equal(t, KindChallenge, KindOf(err))

	_, err = f.Open(context.Background(), srv.URL+"/missing.jpg", "")
	assert.Equal(t, KindBlocked, KindOf(err))
}

func TestHostPacerQueuesCallers(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	p := NewHostPacer(clk, 2*time.Second, 0)

	d1, _ := p.reserve("a.example")
	d2, _ := p.reserve("a.example")
	d3, _ := p.reserve("a.example")
	other, _ := p.reserve("b.example")

	assert.Equal(t, time.Duration(0), d1)
	assert.Equal(t, 2*time.Second, d2)
	assert.Equal(t, 4*time.Second, d3)
	assert.Equal(t, time.Duration(0), other)

	last, ok := p.Last("a.example")
	require.True(t, ok)
	assert.Equal(t, time.Unix(1004, 0), last)
}

func TestHostPacerWaitSleepsRemainder(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	p := NewHostPacer(clk, 2*time.Second, 0)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx, "a.example"))
	clk.Advance(500 * time.Millisecond)
	require.NoError(t, p.Wait(ctx, "a.example"))
	clk.Advance(5 * time.Second)
	require.NoError(t, p.Wait(ctx, "a.example"))

	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, clk.Sleeps())
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindBlocked, URL: "https://x.test", StatusCode: 403, Attempts: 3}
	assert.Equal(t, "fetch https://x.test: blocked (HTTP 403) after 3 attempts", err.Error())
	assert.Equal(t, Kind(""), KindOf(io.EOF))
}
