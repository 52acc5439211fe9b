package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/georoute/internal/utils"
)

// RateLimitConfig configures a token bucket per client IP.
type RateLimitConfig struct {
	Burst             int                   // bucket size, also the X-RateLimit-Limit value
	RefillPerIPPerMin int                   // tokens added per minute
	MaxEntries        int                   // tracked clients before idle ones are evicted early
	SweepInterval     time.Duration         // default 1m
	IdleTTL           time.Duration         // default 15m
	TrustProxy        bool                  // key on X-Forwarded-For / X-Real-IP
	OnLimited         func(r *http.Request) // called for every rejected request
}

type tokenBucket struct {
	tokens   float64
	refilled time.Time
	seen     time.Time
}

type clientLimiter struct {
	cfg       RateLimitConfig
	perSecond float64
	now       func() time.Time

	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	lastSweep time.Time
}

func newClientLimiter(cfg RateLimitConfig, now func() time.Time) *clientLimiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	cfg.Burst = max(cfg.Burst, 1)
	cfg.RefillPerIPPerMin = max(cfg.RefillPerIPPerMin, 1)

	return &clientLimiter{
		cfg:       cfg,
		perSecond: float64(cfg.RefillPerIPPerMin) / 60,
		now:       now,
		buckets:   make(map[string]*tokenBucket),
		lastSweep: now(),
	}
}

// take spends one token for key. It returns the tokens left, or when the
// bucket is empty, the whole seconds until the next token.
func (l *clientLimiter) take(key string) (ok bool, left int, retryAfter int) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	full := l.cfg.MaxEntries > 0 && len(l.buckets) >= l.cfg.MaxEntries
	if full || now.Sub(l.lastSweep) >= l.cfg.SweepInterval {
		l.evictIdle(now)
	}

	b, found := l.buckets[key]
	if !found {
		b = &tokenBucket{tokens: float64(l.cfg.Burst), refilled: now}
		l.buckets[key] = b
	}
	b.seen = now

	if dt := now.Sub(b.refilled).Seconds(); dt > 0 {
		b.tokens = math.Min(float64(l.cfg.Burst), b.tokens+dt*l.perSecond)
		b.refilled = now
	}

	if b.tokens < 1 {
		wait := int(math.Ceil((1 - b.tokens) / l.perSecond))
		return false, 0, max(wait, 1)
	}
	b.tokens--
	return true, int(b.tokens), 0
}

func (l *clientLimiter) evictIdle(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.seen) > l.cfg.IdleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *clientLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit answers 429 with Retry-After once a client IP has spent its
// bucket. Every response carries X-RateLimit-Limit and X-RateLimit-Remaining.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return rateLimit(newClientLimiter(cfg, time.Now))
}

func rateLimit(l *clientLimiter) func(http.Handler) http.Handler {
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, left, retryAfter := l.take(utils.ClientIP(r, l.cfg.TrustProxy))

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(left))
			if !ok {
				if l.cfg.OnLimited != nil {
					l.cfg.OnLimited(r)
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
