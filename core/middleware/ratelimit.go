package middleware

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/thinhttp/thin-server/core/http"
	"github.com/thinhttp/thin-server/core/observability"
)

// defaultClientTTL is how long an idle per-client limiter entry lives
// before cleanup reclaims it.
const defaultClientTTL = 10 * time.Minute

// clientEntry holds a limiter and its last access time for TTL-based
// cleanup.
type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies token-bucket rate limiting, either globally or
// per client address.
type RateLimiter struct {
	limiter   *rate.Limiter
	perClient bool
	clients   map[string]*clientEntry
	mu        sync.Mutex
	rps       int
	burst     int
	clientTTL time.Duration
	logger    observability.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterLogger sets the logger.
func WithRateLimiterLogger(logger observability.Logger) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.logger = logger
	}
}

// WithClientTTL sets the idle TTL for per-client entries.
func WithClientTTL(ttl time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.clientTTL = ttl
	}
}

// NewRateLimiter creates a rate limiter allowing rps requests per
// second with the given burst.
func NewRateLimiter(rps, burst int, perClient bool, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		perClient: perClient,
		clients:   make(map[string]*clientEntry),
		rps:       rps,
		burst:     burst,
		clientTTL: defaultClientTTL,
		logger:    observability.NopLogger(),
		stopCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(rl)
	}

	// The cleanup ticker cannot run on a non-positive interval.
	if rl.clientTTL <= 0 {
		rl.clientTTL = defaultClientTTL
	}

	if perClient {
		go rl.cleanupLoop()
	}

	return rl
}

// Allow reports whether a request from clientAddr may proceed.
func (rl *RateLimiter) Allow(clientAddr string) bool {
	if !rl.perClient {
		return rl.limiter.Allow()
	}

	host := clientAddr
	if h, _, err := net.SplitHostPort(clientAddr); err == nil {
		host = h
	}

	now := time.Now()
	rl.mu.Lock()
	entry, ok := rl.clients[host]
	if !ok {
		entry = &clientEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst),
		}
		rl.clients[host] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// Stop terminates the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.clientTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.clientTTL)
			rl.mu.Lock()
			for host, entry := range rl.clients {
				if entry.lastAccess.Before(cutoff) {
					delete(rl.clients, host)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// RateLimit returns a middleware enforcing rl; rejected requests get a
// 429 and the chain is aborted.
func RateLimit(rl *RateLimiter) http.HandlerFunc {
	return func(ctx *http.Context) {
		if rl.Allow(ctx.RemoteAddr()) {
			return
		}

		rl.logger.Warn("rate limit exceeded",
			observability.String("remote", ctx.RemoteAddr()),
			observability.String("path", ctx.Path()),
		)
		ctx.Abort()
		ctx.Error(429, "too many requests")
	}
}
