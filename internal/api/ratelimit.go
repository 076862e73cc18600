package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiterConfig holds rate limiter configuration. A zero
// RequestsPerMinute disables limiting.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// defaultBurst applies when a limit is set without a burst size.
const defaultBurst = 10

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time
}

func newTokenBucket(capacity, rate float64, now time.Time) *tokenBucket {
	return &tokenBucket{tokens: capacity, capacity: capacity, rate: rate, last: now}
}

// refill must be called with mu held.
func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.last).Seconds()
	if elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.rate)
		tb.last = now
	}
}

// take consumes a token if one is available and reports the tokens left
// and when the bucket is full again.
func (tb *tokenBucket) take(now time.Time) (ok bool, remaining int, full time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	if tb.tokens >= 1 {
		tb.tokens--
		ok = true
	}
	full = now
	if missing := tb.capacity - tb.tokens; missing > 0 && tb.rate > 0 {
		full = now.Add(time.Duration(missing / tb.rate * float64(time.Second)))
	}
	return ok, int(tb.tokens), full
}

func (tb *tokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.last
}

// RateLimiter manages per-client rate limiting.
type RateLimiter struct {
	config RateLimiterConfig
	now    func() time.Time
	ttl    time.Duration

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

// NewRateLimiter returns a limiter whose idle buckets are swept until ctx
// is done.
func NewRateLimiter(ctx context.Context, config RateLimiterConfig) *RateLimiter {
	if config.BurstSize <= 0 {
		config.BurstSize = defaultBurst
	}
	rl := &RateLimiter{
		config:  config,
		now:     time.Now,
		ttl:     5 * time.Minute,
		buckets: make(map[string]*tokenBucket),
	}
	go rl.sweepLoop(ctx)
	return rl
}

func (rl *RateLimiter) bucket(client string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[client]
	if !ok {
		b = newTokenBucket(float64(rl.config.BurstSize), float64(rl.config.RequestsPerMinute)/60, rl.now())
		rl.buckets[client] = b
	}
	return b
}

func (rl *RateLimiter) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep drops buckets idle for longer than the TTL.
func (rl *RateLimiter) sweep() {
	cutoff := rl.now().Add(-rl.ttl)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, b := range rl.buckets {
		if b.idleSince().Before(cutoff) {
			delete(rl.buckets, client)
		}
	}
}

// Allow consumes one request for client.
func (rl *RateLimiter) Allow(client string) bool {
	ok, _, _ := rl.bucket(client).take(rl.now())
	return ok
}

// Middleware applies the limit per client IP and reports it in
// X-RateLimit-* headers.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := rl.now()
		ok, remaining, full := rl.bucket(clientIP(r)).take(now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(full.Unix(), 10))

		if !ok {
			retry := int(full.Sub(now).Seconds()) + 1
			h.Set("Retry-After", strconv.Itoa(retry))
			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"Rate limit exceeded. Try again in "+strconv.Itoa(retry)+" seconds.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's peer address without the port. Proxy
// headers are resolved earlier by chi's RealIP middleware.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if net.ParseIP(host) == nil {
		return "unknown"
	}
	return host
}
