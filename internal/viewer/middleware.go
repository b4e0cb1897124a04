package viewer

import (
	"sync"
	"time"

	"github.com/eleven-am/vision-client/internal/shared"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
	}
}

type rateLimiterStore struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	config   RateLimiterConfig
	lastSeen time.Time
}

func newRateLimiterStore(cfg RateLimiterConfig) *rateLimiterStore {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}
	return &rateLimiterStore{
		limiters: make(map[string]*rate.Limiter),
		config:   cfg,
		lastSeen: time.Now(),
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.RLock()
	limiter, exists := s.limiters[key]
	stale := time.Since(s.lastSeen) > s.config.CleanupInterval
	s.mu.RUnlock()

	if exists && !stale {
		return limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Idle limiters are forgotten wholesale once per cleanup interval.
	if time.Since(s.lastSeen) > s.config.CleanupInterval {
		clear(s.limiters)
		s.lastSeen = time.Now()
	}

	if limiter, exists = s.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.Burst)
	s.limiters[key] = limiter
	return limiter
}

// RateLimiter throttles gestures per client address so a stuck key or a
// runaway script cannot flood the socket with emits.
func RateLimiter(cfg RateLimiterConfig) echo.MiddlewareFunc {
	store := newRateLimiterStore(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			limiter := store.getLimiter(c.RealIP())
			if !limiter.Allow() {
				return shared.TooManyRequests("rate_limit_exceeded", "too many requests")
			}
			return next(c)
		}
	}
}
