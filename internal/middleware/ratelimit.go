// internal/middleware/ratelimit.go
//
// Per-client token-bucket rate limiting.
//
// Context
// -------
// Draft creation is anonymous, so the only throttle is the client
// address.  Each IP gets its own golang.org/x/time/rate limiter; idle
// entries are swept so the map does not grow without bound.
//
// Notes
// -----
// • The key function is injected so the router can use the address
//   resolved by requestinfo (which knows about trusted proxies).
// • Oxford commas, two spaces after periods.

package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands out one limiter per key.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	ttl   time.Duration
	key   func(*http.Request) string
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	lastScan time.Time
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewRateLimiter allows rps sustained requests per key with the given
// burst.  key nil means the remote address host.
func NewRateLimiter(rps float64, burst int, key func(*http.Request) string) *RateLimiter {
	if key == nil {
		key = remoteHost
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      10 * time.Minute,
		key:      key,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Allow reports whether the request identified by k may proceed.
func (l *RateLimiter) Allow(k string) bool {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastScan) > l.ttl {
		for id, v := range l.visitors {
			if now.Sub(v.seen) > l.ttl {
				delete(l.visitors, id)
			}
		}
		l.lastScan = now
	}
	v, ok := l.visitors[k]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[k] = v
	}
	v.seen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Handler answers 429 once a client exceeds its budget.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.key(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
