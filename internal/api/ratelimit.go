package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/docketbot/docket/internal/log"
)

// Buckets untouched for this long are dropped during the next sweep.
const bucketIdleTTL = 10 * time.Minute

// Sweeps run at most this often, piggybacked on allow().
const bucketSweepEvery = 5 * time.Minute

// rateLimiter hands out a token bucket per client IP. There is no
// background goroutine: stale buckets are swept opportunistically from
// inside allow, which keeps the limiter safe to drop without a Close.
type rateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*ipBucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

type ipBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter builds a limiter refilling r tokens per second per IP,
// with burst as both the ceiling and the initial allowance.
func newRateLimiter(r float64, burst int) *rateLimiter {
	return &rateLimiter{
		buckets:   make(map[string]*ipBucket),
		limit:     rate.Limit(r),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// allow takes one token from ip's bucket, creating the bucket on first
// sight. Returns false once the bucket is empty.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.maybeSweep(now)

	b, ok := rl.buckets[ip]
	if !ok {
		b = &ipBucket{tokens: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	return b.tokens.Allow()
}

// maybeSweep drops idle buckets. Caller holds rl.mu.
func (rl *rateLimiter) maybeSweep(now time.Time) {
	if now.Sub(rl.lastSweep) <= bucketSweepEvery {
		return
	}
	for ip, b := range rl.buckets {
		if now.Sub(b.lastSeen) > bucketIdleTTL {
			delete(rl.buckets, ip)
		}
	}
	rl.lastSweep = now
}

// rateLimitMiddleware rejects requests from IPs that have drained their
// bucket with 429 and a Retry-After hint.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !rl.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the address a request should be rate-limited under.
//
// With trustProxy set, proxy headers win: X-Real-IP first, then the
// leftmost entry of X-Forwarded-For. Either value must parse as an IP,
// otherwise it is ignored rather than becoming a limiter key. Without
// trustProxy only RemoteAddr is consulted, which is the right default
// when docket listens on a loopback or directly exposed port.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := headerIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		if ip := headerIP(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// headerIP parses a proxy-supplied address header, taking the first
// element of a comma-separated list. Returns "" when the value is not a
// valid IP.
func headerIP(v string) string {
	if v == "" {
		return ""
	}
	if first, _, ok := strings.Cut(v, ","); ok {
		v = first
	}
	ip := net.ParseIP(strings.TrimSpace(v))
	if ip == nil {
		return ""
	}
	return ip.String()
}
