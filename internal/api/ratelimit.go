package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/project-o/assist/internal/log"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleEvict  = 10 * time.Minute
)

// rateLimiter hands out one token bucket per client IP. Buckets idle
// longer than limiterIdleEvict are dropped during the periodic sweep so
// the map cannot grow without bound.
type rateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	nextSweep time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// newRateLimiter creates a limiter refilling perMinute tokens per
// minute, with burst as the bucket capacity and initial allowance.
func newRateLimiter(perMinute float64, burst int) *rateLimiter {
	return &rateLimiter{
		buckets:   make(map[string]*bucket),
		limit:     rate.Limit(perMinute / 60.0),
		burst:     burst,
		nextSweep: time.Now().Add(limiterSweepEvery),
	}
}

// allow reports whether a request from ip may proceed, consuming one
// token when it does.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.After(rl.nextSweep) {
		rl.sweepLocked(now)
	}

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.seen = now
	return b.lim.Allow()
}

func (rl *rateLimiter) sweepLocked(now time.Time) {
	for ip, b := range rl.buckets {
		if now.Sub(b.seen) > limiterIdleEvict {
			delete(rl.buckets, ip)
		}
	}
	rl.nextSweep = now.Add(limiterSweepEvery)
}

// rateLimitMiddleware rejects requests from IPs that have drained their
// token bucket with 429 and a Retry-After hint.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if rl.allow(ip) {
				next.ServeHTTP(w, r)
				return
			}
			logger.Warn("rate limit exceeded",
				"ip", ip,
				"path", r.URL.Path,
				"method", r.Method,
			)
			w.Header().Set("Retry-After", "1")
			WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
		})
	}
}

// clientIP picks the rate-limit key for a request. Proxy headers
// (X-Real-IP, then the first X-Forwarded-For entry) are honored only
// when trustProxy is set, and their values must parse as IPs so
// arbitrary header strings cannot become limiter keys. Otherwise the
// key is RemoteAddr with the port stripped.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := headerIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if ip := headerIP(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// headerIP validates a proxy-supplied address, returning "" when it is
// not a well-formed IP.
func headerIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	return ip.String()
}
