package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-router"
	"golang.org/x/time/rate"
)

// Config defines the config for the per client limiter
type Config struct {
	// Filter defines a function to skip the middleware.
	// Optional. Default: nil
	Filter func(router.Context) bool

	// Limit is the sustained number of requests per second for one key.
	// Optional. Default: 1 request every 6 seconds
	Limit rate.Limit

	// Burst is the bucket size.
	// Optional. Default: 10
	Burst int

	// TTL is how long an idle bucket is kept.
	// Optional. Default: 10 minutes
	TTL time.Duration

	// Methods lists the methods that consume tokens.
	// Optional. Default: POST
	Methods []string

	// KeyFunc identifies the client.
	// Optional. Default: ctx.IP()
	KeyFunc func(router.Context) string

	// LimitReached answers a throttled request.
	// Optional. Default: 429 with a plain text body
	LimitReached router.HandlerFunc

	// Now is the clock, tests replace it
	Now func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter holds one token bucket per key
type Limiter struct {
	cfg       Config
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Limit == 0 {
		cfg.Limit = rate.Every(6 * time.Second)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = []string{http.MethodPost}
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(ctx router.Context) string {
			return ctx.IP()
		}
	}
	if cfg.LimitReached == nil {
		cfg.LimitReached = func(ctx router.Context) error {
			return ctx.Status(http.StatusTooManyRequests).SendString("Too many requests. Try again later.")
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return cfg
}

// NewLimiter builds a limiter, use Middleware to mount it
func NewLimiter(config ...Config) *Limiter {
	cfg := configDefault(config...)
	return &Limiter{
		cfg:       cfg,
		buckets:   make(map[string]*bucket),
		lastSweep: cfg.Now(),
	}
}

// New creates the middleware with its own limiter
func New(config ...Config) router.MiddlewareFunc {
	return NewLimiter(config...).Middleware()
}

// Allow takes one token for key
func (l *Limiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := l.cfg.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.cfg.TTL {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.cfg.TTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.cfg.Limit, l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.seen = now

	return b.lim.AllowN(now, 1)
}

// Size reports how many buckets are tracked
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware limits the configured methods and lets the rest through
func (l *Limiter) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if l.cfg.Filter != nil && l.cfg.Filter(ctx) {
				return next(ctx)
			}

			if !l.limited(ctx.Method()) {
				return next(ctx)
			}

			if !l.Allow(l.cfg.KeyFunc(ctx)) {
				return l.cfg.LimitReached(ctx)
			}

			return next(ctx)
		}
	}
}

func (l *Limiter) limited(method string) bool {
	for _, m := range l.cfg.Methods {
		if m == method {
			return true
		}
	}
	return false
}
