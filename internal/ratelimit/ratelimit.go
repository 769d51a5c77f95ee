// Package ratelimit implements a fixed-window request limiter on the shared
// Redis instance.
//
// Fixed windows trade precision for O(1) state per client: a burst straddling
// a window boundary can briefly pass up to twice the limit. That is accepted
// here; the limiter protects against sustained abuse, not single spikes.
package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/redis/go-redis/v9"

	"github.com/shortlyhq/shortly/pkg/response"
)

const keyPrefix = "rate:"

// Limiter counts requests per client key within non-overlapping windows.
type Limiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	logger *slog.Logger
}

func New(rdb *redis.Client, limit int64, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow atomically increments the client's window counter and reports
// whether the request is within the limit. The first increment of a window
// arms its expiry. If Redis is unreachable the limiter fails open: blocking
// all traffic because the limiter's store is down would be worse than
// briefly not limiting.
func (l *Limiter) Allow(ctx context.Context, clientKey string) bool {
	key := keyPrefix + clientKey

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("rate limiter store unreachable, failing open", slog.Any("err", err))
		return true
	}

	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.Warn("failed to arm rate limit window expiry",
				slog.String("key", clientKey), slog.Any("err", err))
		}
	}

	return count <= l.limit
}

// Middleware denies requests over the limit with a 429, keyed by the
// request's remote address. Mount after chi's RealIP so the key reflects the
// originating client rather than a proxy.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(r.Context(), clientKey(r)) {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.RateLimitExceededResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey extracts the client IP from the request. RealIP rewrites
// RemoteAddr to a bare IP; a direct connection still carries a port.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
