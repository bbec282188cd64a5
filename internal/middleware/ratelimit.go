package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type caller struct {
	windowStart time.Time
	count       int
}

// rateLimiter counts requests per caller over a fixed one-minute window.
// Operator consoles poll the risk endpoints continuously, so the limit is
// per caller rather than global.
type rateLimiter struct {
	callers map[string]*caller
	mu      sync.Mutex
	limit   int
	window  time.Duration
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	rl := &rateLimiter{
		callers: make(map[string]*caller),
		limit:   requestsPerMinute,
		window:  time.Minute,
	}

	go rl.cleanup()

	return rl
}

func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for key, c := range rl.callers {
			if time.Since(c.windowStart) > rl.window {
				delete(rl.callers, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, exists := rl.callers[key]
	if !exists || time.Since(c.windowStart) > rl.window {
		rl.callers[key] = &caller{windowStart: time.Now(), count: 1}
		return true, 0
	}

	if c.count >= rl.limit {
		return false, rl.window - time.Since(c.windowStart)
	}

	c.count++
	return true, 0
}

// callerKey identifies the caller behind a proxy chain by the first
// X-Forwarded-For hop, falling back to the socket address.
func callerKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i > 0 {
			return strings.TrimSpace(forwarded[:i])
		}
		return strings.TrimSpace(forwarded)
	}
	return r.RemoteAddr
}

func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	rl := newRateLimiter(requestsPerMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, retryIn := rl.allow(callerKey(r)); !ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(retryIn.Seconds())+1))
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error": "Rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
