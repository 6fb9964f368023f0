package membership

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	limiterClients = 10000
	limiterIdle    = 10 * time.Minute
)

// Limiter throttles credential attempts separately for every client, so one
// noisy caller cannot exhaust the budget of the others.
type Limiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients *expirable.LRU[string, *rate.Limiter]
}

// NewLimiter allows perMinute credential attempts per client with the given
// burst. A non-positive perMinute disables limiting.
func NewLimiter(perMinute, burst int) *Limiter {
	if perMinute <= 0 {
		return newLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = perMinute
	}
	return newLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

func newLimiter(limit rate.Limit, burst int) *Limiter {
	return &Limiter{
		limit:   limit,
		burst:   burst,
		clients: expirable.NewLRU[string, *rate.Limiter](limiterClients, nil, limiterIdle),
	}
}

func (l *Limiter) Limit() rate.Limit { return l.limit }

func (l *Limiter) Burst() int { return l.burst }

// Allow reports whether client may make another attempt now.
func (l *Limiter) Allow(client string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	bucket, ok := l.clients.Get(client)
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.clients.Add(client, bucket)
	}
	l.mu.Unlock()

	return bucket.Allow()
}

type clientKey struct{}

// WithClient tags ctx with the caller's identity for rate limiting,
// typically its remote address.
func WithClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

// clientFrom returns the tagged client, or "" for untagged in-process callers.
func clientFrom(ctx context.Context) string {
	client, _ := ctx.Value(clientKey{}).(string)
	return client
}
