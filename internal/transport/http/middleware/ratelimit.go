package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/metrics"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user (or client IP before login).
type RateLimiter struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		m:     make(map[string]*limiterEntry),
		rps:   rate.Limit(rps),
		burst: burst,
		ttl:   10 * time.Minute,
		now:   time.Now,
	}
}

func (p *RateLimiter) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = p.now()
		return e.l
	}
	l := rate.NewLimiter(p.rps, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: p.now()}
	return l
}

func (p *RateLimiter) Allow(key string) bool {
	return p.get(key).Allow()
}

// Sweep drops limiters not used within the TTL.
func (p *RateLimiter) Sweep() {
	cutoff := p.now().Add(-p.ttl)
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}

// Run sweeps periodically until stop is closed.
func (p *RateLimiter) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.Sweep()
		case <-stop:
			return
		}
	}
}

// Middleware rejects requests over the limit with 429. It must run after
// Auth to key by user.
func (p *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.rps <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := clientKey(r)
		if !p.Allow(key) {
			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(1))
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if id := GetUserID(r.Context()); id != uuid.Nil {
		return "user:" + id.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
