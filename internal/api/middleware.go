package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/brogergvhs/mangamirror/internal/clock"
)

type ctxKey int

const actorKey ctxKey = iota

// actorFrom returns who made the request: a token fingerprint for admin
// calls, the client address otherwise.
func actorFrom(r *http.Request) string {
	if a, ok := r.Context().Value(actorKey).(string); ok && a != "" {
		return a
	}
	return r.RemoteAddr
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			log.Log(r.Context(), level, "http request",
				"request_id", chimw.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", r.RemoteAddr)
		})
	}
}

// requireAdmin accepts "Authorization: Bearer <token>" matching one of
// tokens. With no tokens configured every request is refused unless the
// server was built with AllowOpenAdmin.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.adminTokens) == 0 {
			if s.openAdmin {
				next.ServeHTTP(w, r)
				return
			}
			s.writeError(w, r, Unauthorized("admin endpoints are disabled: no admin tokens configured"))
			return
		}

		h := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			s.writeError(w, r, Unauthorized("missing or invalid authorization header"))
			return
		}

		for _, want := range s.adminTokens {
			if subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1 {
				ctx := context.WithValue(r.Context(), actorKey, "admin:"+fingerprint(token))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		s.writeError(w, r, Unauthorized("invalid admin token"))
	})
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}

type RateLimit struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// actorLimiter hands every actor its own token bucket of perMinute requests.
type actorLimiter struct {
	mu        sync.Mutex
	clock     clock.Clock
	perMinute int
	limiters  map[string]*actorBucket
}

type actorBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newActorLimiter(c clock.Clock, perMinute int) *actorLimiter {
	return &actorLimiter{clock: c, perMinute: perMinute, limiters: map[string]*actorBucket{}}
}

// Allow takes one token from actor's bucket and reports the state after.
func (l *actorLimiter) Allow(actor string) (bool, RateLimit) {
	now := l.clock.Now()
	every := time.Minute / time.Duration(l.perMinute)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.limiters[actor]
	if !ok {
		b = &actorBucket{lim: rate.NewLimiter(rate.Every(every), l.perMinute)}
		l.limiters[actor] = b
	}
	b.lastSeen = now

	allowed := b.lim.AllowN(now, 1)
	tokens := b.lim.TokensAt(now)
	missing := float64(l.perMinute) - tokens
	info := RateLimit{
		Remaining: int(math.Max(0, math.Floor(tokens))),
		ResetAt:   now.Add(time.Duration(missing * float64(every))),
	}

	l.gc(now)
	return allowed, info
}

// gc forgets actors idle long enough for their bucket to be full again.
func (l *actorLimiter) gc(now time.Time) {
	if len(l.limiters) < 1024 {
		return
	}
	for k, b := range l.limiters {
		if now.Sub(b.lastSeen) > 2*time.Minute {
			delete(l.limiters, k)
		}
	}
}
