package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"conversation-analytics/backend/pkg/errors"
	loggerpkg "conversation-analytics/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimitStore decides whether a request identified by key may proceed
type RateLimitStore interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimiterOptions configures the rate limiter
type RateLimiterOptions struct {
	// Limit defines requests per second
	Limit rate.Limit
	// Burst defines maximum burst size allowed
	Burst int
	// ExpiryDuration defines how long to keep client state in memory
	ExpiryDuration time.Duration
	// KeyFunc extracts the limiting key from a request (e.g. IP, subject)
	KeyFunc func(*gin.Context) string
}

// DefaultRateLimiterOptions returns sensible defaults
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:          20,
		Burst:          40,
		ExpiryDuration: time.Hour,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

// client represents a rate limiter client
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryStore keeps a token bucket per key in process memory
type MemoryStore struct {
	mu      sync.Mutex
	options RateLimiterOptions
	clients map[string]*client
}

// NewMemoryStore creates an in-process store
func NewMemoryStore(options RateLimiterOptions) *MemoryStore {
	return &MemoryStore{
		options: options,
		clients: make(map[string]*client),
	}
}

// Allow implements RateLimitStore
func (s *MemoryStore) Allow(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.clients[key]
	if !exists {
		v = &client{limiter: rate.NewLimiter(s.options.Limit, s.options.Burst)}
		s.clients[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow(), nil
}

// Cleanup removes idle entries until ctx is done
func (s *MemoryStore) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			for k, v := range s.clients {
				if time.Since(v.lastSeen) > s.options.ExpiryDuration {
					delete(s.clients, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// RedisStore applies a fixed one-second window shared by every replica
type RedisStore struct {
	client *redis.Client
	limit  int64
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a shared store allowing limit+burst requests per second per key
func NewRedisStore(client *redis.Client, options RateLimiterOptions) *RedisStore {
	return &RedisStore{
		client: client,
		limit:  int64(options.Limit) + int64(options.Burst),
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

// Allow implements RateLimitStore
func (s *RedisStore) Allow(ctx context.Context, key string) (bool, error) {
	window := s.now().Unix()
	redisKey := fmt.Sprintf("%s%s:%d", s.prefix, key, window)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return incr.Val() <= s.limit, nil
}

// RateLimiter implements rate limiting middleware for Gin
type RateLimiter struct {
	store   RateLimitStore
	options RateLimiterOptions
	logger  *loggerpkg.Logger
}

// NewRateLimiter creates a new rate limiter over the given store
func NewRateLimiter(logger *loggerpkg.Logger, store RateLimitStore, options ...RateLimiterOptions) *RateLimiter {
	opts := DefaultRateLimiterOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = DefaultRateLimiterOptions().KeyFunc
	}
	if store == nil {
		store = NewMemoryStore(opts)
	}
	if logger == nil {
		logger = loggerpkg.GetGlobal()
	}

	return &RateLimiter{
		store:   store,
		options: opts,
		logger:  logger,
	}
}

// Middleware returns a Gin middleware for rate limiting
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := r.options.KeyFunc(c)

		allowed, err := r.store.Allow(c.Request.Context(), key)
		if err != nil {
			// fail open: the limiter protects the service, it must not take it down
			r.logger.Warn("Rate limit store unavailable", "error", err.Error())
		}

		if !allowed {
			r.logger.Warn("Rate limit exceeded",
				"client", key,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			c.Header("Retry-After", "1")
			c.Header("X-RateLimit-Limit", strconv.Itoa(int(r.options.Limit)))
			c.Error(errors.NewTooManyRequestsError(errors.CodeRateLimited, "Too many requests. Please try again later."))
			c.Abort()
			return
		}

		c.Next()
	}
}
