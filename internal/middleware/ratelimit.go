// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/pocketree/internal/core"
)

const localBucketCap = 10_000

// Policy is a named limit together with the function that picks the bucket
// a request draws from.
type Policy struct {
	Name  string
	Limit redis_rate.Limit
	Key   func(*http.Request) string
}

func PerWindow(requests, burst int, window time.Duration) redis_rate.Limit {
	return redis_rate.Limit{Rate: requests, Burst: burst, Period: window}
}

// Limiter enforces a Policy through Redis so every instance shares one
// budget. While Redis is unreachable each instance falls back to its own
// token buckets.
type Limiter struct {
	shared   *redis_rate.Limiter
	local    *localBuckets
	policy   Policy
	logger   *slog.Logger
	degraded atomic.Bool
}

func NewLimiter(rdb *redis.Client, policy Policy, logger *slog.Logger) *Limiter {
	if policy.Key == nil {
		policy.Key = ByClientIP
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Limiter{
		local:  newLocalBuckets(policy.Limit),
		policy: policy,
		logger: logger,
	}
	if rdb != nil {
		l.shared = redis_rate.NewLimiter(rdb)
	}
	return l
}

func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := l.allow(r.Context(), "ratelimit:"+l.policy.Name+":"+l.policy.Key(r))

		h := w.Header()
		h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d",
			l.policy.Limit.Rate, int(l.policy.Limit.Period.Seconds())))
		h.Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
			core.JSONError(w, core.RateLimitedError())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) allow(ctx context.Context, key string) *redis_rate.Result {
	if l.shared != nil {
		res, err := l.shared.Allow(ctx, key, l.policy.Limit)
		if err == nil {
			if l.degraded.CompareAndSwap(true, false) {
				l.logger.Info("rate limiter back on redis", "policy", l.policy.Name)
			}
			return res
		}
		if l.degraded.CompareAndSwap(false, true) {
			l.logger.Warn("rate limiter on local buckets",
				"policy", l.policy.Name,
				"error", err,
			)
		}
	}
	return l.local.allow(key, l.policy.Limit)
}

func retryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}

// ByClientIP keys on the nearest proxy's view of the client address.
func ByClientIP(r *http.Request) string {
	return "ip:" + clientIP(r)
}

// ByUserRoute keys on the caller and the matched route pattern, so every
// task id shares the completion budget. Anonymous callers fall back to
// their address.
func ByUserRoute(r *http.Request) string {
	route := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			route = pattern
		}
	}

	if id := GetUserID(r.Context()); id != "" {
		return "user:" + id + ":" + route
	}
	return ByClientIP(r) + ":" + route
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// localBuckets holds one token bucket per key. A bucket idle long enough to
// refill completely is indistinguishable from a new one, so it expires then.
type localBuckets struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
}

func newLocalBuckets(limit redis_rate.Limit) *localBuckets {
	refill := refillInterval(limit) * time.Duration(max(limit.Burst, 1))
	return &localBuckets{
		buckets: expirable.NewLRU[string, *rate.Limiter](localBucketCap, nil, max(refill, time.Minute)),
	}
}

func refillInterval(limit redis_rate.Limit) time.Duration {
	return limit.Period / time.Duration(max(limit.Rate, 1))
}

func (b *localBuckets) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	every := refillInterval(limit)

	b.mu.Lock()
	bucket, ok := b.buckets.Get(key)
	if !ok {
		bucket = rate.NewLimiter(rate.Every(every), limit.Burst)
		b.buckets.Add(key, bucket)
	}
	b.mu.Unlock()

	res := &redis_rate.Result{Limit: limit, RetryAfter: -1, ResetAfter: every}
	if !bucket.Allow() {
		res.RetryAfter = every
		return res
	}

	res.Allowed = 1
	res.Remaining = max(int(bucket.Tokens()), 0)
	return res
}
