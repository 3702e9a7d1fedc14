package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// cleanupInterval is how often idle client buckets are dropped; a bucket
// survives two intervals of inactivity before removal.
const cleanupInterval = 5 * time.Minute

// RateLimiter throttles inbound requests with one token bucket per
// client address. It sits in front of the auth routes too, so the key is
// the remote address rather than a user ID — the OAuth endpoints are
// exactly the ones an anonymous client can hammer.
type RateLimiter struct {
	logger *slog.Logger
	rate   rate.Limit
	burst  int

	mu      sync.Mutex
	clients map[string]*clientBucket

	stopCh chan struct{}
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per client
// with a burst of the same size, and starts the background cleanup of
// idle buckets. Call Stop on shutdown.
func NewRateLimiter(logger *slog.Logger, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	rl := &RateLimiter{
		logger:  logger,
		rate:    rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
		clients: make(map[string]*clientBucket),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Middleware returns the http middleware. A rejected request gets 429
// with a Retry-After estimating when the next token arrives.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			if !rl.bucketFor(key).Allow() {
				rl.logger.Warn("request rate limit exceeded",
					slog.String("client", key),
					slog.String("path", r.URL.Path),
				)
				retryAfter := int(math.Ceil(1.0 / float64(rl.rate)))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate_limited","message":"Too many requests; retry later"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey extracts the client address. The RealIP middleware runs
// earlier in the chain, so RemoteAddr already reflects the proxy headers
// when present; it may or may not carry a port.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// bucketFor returns the client's bucket, creating it on first sight.
func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops buckets idle longer than two cleanup intervals. Losing a
// bucket just resets that client to a full burst.
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := 2 * cleanupInterval

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.clients {
		if now.Sub(b.lastSeen) > ttl {
			delete(rl.clients, key)
		}
	}
}
