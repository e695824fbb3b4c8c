package httpserver

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiterEntry is the limiter for one client IP.
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimitStore keeps one limiter per client IP.
type rateLimitStore struct {
	limiters map[string]*rateLimiterEntry
	mu       sync.Mutex
	cleanup  *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

func newRateLimitStore() *rateLimitStore {
	store := &rateLimitStore{
		limiters: make(map[string]*rateLimiterEntry),
		cleanup:  time.NewTicker(5 * time.Minute),
		done:     make(chan struct{}),
	}

	go store.cleanupOldEntries()

	return store
}

// Stop ends the cleanup goroutine.
func (r *rateLimitStore) Stop() {
	r.stopOnce.Do(func() {
		r.cleanup.Stop()
		close(r.done)
	})
}

// cleanupOldEntries drops limiters idle for more than 10 minutes.
func (r *rateLimitStore) cleanupOldEntries() {
	for {
		select {
		case <-r.done:
			return
		case <-r.cleanup.C:
			r.mu.Lock()
			now := time.Now()
			for ip, entry := range r.limiters {
				if now.Sub(entry.lastSeen) > 10*time.Minute {
					delete(r.limiters, ip)
				}
			}
			r.mu.Unlock()
		}
	}
}

// getLimiter returns the limiter for ip, creating one that allows
// requestsPerMinute with an equal burst.
func (r *rateLimitStore) getLimiter(ip string, requestsPerMinute int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.limiters[ip]
	if !exists {
		interval := time.Minute / time.Duration(requestsPerMinute)
		entry = &rateLimiterEntry{
			limiter: rate.NewLimiter(rate.Every(interval), requestsPerMinute),
		}
		r.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

// clientIP returns the request's remote host. middleware.RealIP has
// already folded X-Forwarded-For and X-Real-IP into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func rateLimitMiddleware(store *rateLimitStore, requestsPerMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := store.getLimiter(clientIP(r), requestsPerMinute)

			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, errorBody{
					Error: "Rate limit exceeded. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
