package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/brogergvhs/mangamirror/internal/clock"
)

// HostPacer spaces requests to the same host at least minDelay apart.
// A caller reserves its slot under the lock before sleeping, so callers
// racing for one host queue up behind each other instead of firing together.
type HostPacer struct {
	mu       sync.Mutex
	clock    clock.Clock
	minDelay time.Duration
	perMin   int
	last     map[string]time.Time
	limiters map[string]*rate.Limiter
}

// NewHostPacer returns a pacer. perMinute > 0 additionally caps each host
// with a token bucket on top of the fixed spacing.
func NewHostPacer(c clock.Clock, minDelay time.Duration, perMinute int) *HostPacer {
	if c == nil {
		c = clock.Real{}
	}
	return &HostPacer{
		clock:    c,
		minDelay: minDelay,
		perMin:   perMinute,
		last:     make(map[string]time.Time),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until host may be contacted again.
func (p *HostPacer) Wait(ctx context.Context, host string) error {
	delay, limiter := p.reserve(host)

	if delay > 0 {
		if err := p.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	if limiter != nil {
		return limiter.Wait(ctx)
	}

	return nil
}

func (p *HostPacer) reserve(host string) (time.Duration, *rate.Limiter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	slot := now
	if last, ok := p.last[host]; ok {
		if next := last.Add(p.minDelay); next.After(now) {
			slot = next
		}
	}
	p.last[host] = slot

	var limiter *rate.Limiter
	if p.perMin > 0 {
		limiter = p.limiters[host]
		if limiter == nil {
			limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.perMin)), 1)
			p.limiters[host] = limiter
		}
	}

	return slot.Sub(now), limiter
}

// Last returns the reserved time of the most recent request to host.
func (p *HostPacer) Last(host string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.last[host]
	return t, ok
}
