package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dukerupert/pointkeeper/internal/metrics"
)

type limitKey struct {
	route  string
	client string
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter counts requests per route and client in fixed windows.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[limitKey]*window
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[limitKey]*window),
		now:     time.Now,
	}
}

// Allow counts one request from client on route. When the budget of limit
// requests per window is spent it returns false and the time left until the
// window resets.
func (rl *RateLimiter) Allow(route, client string, limit int, per time.Duration) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	key := limitKey{route: route, client: client}
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		rl.windows[key] = &window{count: 1, resetAt: now.Add(per)}
		return true, 0
	}
	w.count++
	if w.count > limit {
		return false, w.resetAt.Sub(now)
	}
	return true, 0
}

// Cleanup drops finished windows and reports how many it removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
			removed++
		}
	}
	return removed
}

// Limit returns middleware allowing limit requests per client per window on
// route. Clients are identified by ClientIP, so only a trusted proxy can
// change who a request counts against.
func (rl *RateLimiter) Limit(route string, limit int, per time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := rl.Allow(route, ClientIP(r), limit, per)
			if !ok {
				metrics.RateLimited.WithLabelValues(route).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retry)))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	return max(s, 1)
}
