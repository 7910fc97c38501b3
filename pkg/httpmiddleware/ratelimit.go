package httpmiddleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig configures the fixed window rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the length of each window.
	Window time.Duration
	// Prefix namespaces the counters in Redis.
	Prefix string
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
}

type rateLimiter struct {
	client redis.Cmdable
	cfg    RateLimitConfig
	now    func() time.Time
}

// RateLimit returns a middleware that counts requests per key in Redis so
// that every API replica shares the same budget. Requests over the limit get
// 429 Too Many Requests. Every response includes X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset headers.
//
// When Redis is unavailable requests are let through.
func RateLimit(client redis.Cmdable, cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ratelimit:"
	}
	rl := &rateLimiter{client: client, cfg: cfg, now: time.Now}
	return rl.middleware
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := rl.now()
		windowStart := now.Truncate(rl.cfg.Window)
		resetAt := windowStart.Add(rl.cfg.Window)
		key := rl.cfg.Prefix + rl.cfg.KeyFunc(r) + ":" + strconv.FormatInt(windowStart.Unix(), 10)

		var incr *redis.IntCmd
		_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, rl.cfg.Window)
			return nil
		})
		if err != nil {
			zctx.From(ctx).Warn("Rate limit check failed", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		count := int(incr.Val())
		remaining := max(rl.cfg.Max-count, 0)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > rl.cfg.Max {
			retryAfter := max(resetAt.Sub(now), 0)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the client IP from the request, checking
// X-Forwarded-For first, then X-Real-IP, then falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For may contain a comma-separated list; use the first.
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
