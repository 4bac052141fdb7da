// Package cache provides Redis-backed snapshot caching so the gateway can
// serve stale-but-available data when the trading API or feed is down.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"papertrade-gateway/config"
	"papertrade-gateway/internal/logging"
)

// ErrMiss is returned on a cache miss.
var ErrMiss = redis.Nil

// Service wraps a Redis client with graceful degradation. When Redis is
// unavailable, operations fail fast and callers fall through to the upstream.
type Service struct {
	client       *redis.Client
	logger       *logging.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewService connects to Redis. A failed initial connection returns the
// service in degraded mode rather than an error.
func NewService(cfg config.RedisConfig) (*Service, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	s := &Service{
		client:        client,
		logger:        logging.Default().WithComponent("cache"),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.logger.Warn("initial redis connection failed, starting degraded", "error", err)
		return s, nil
	}

	s.healthy = true
	s.lastCheck = time.Now()
	s.logger.Info("redis connected", "address", cfg.Address)
	return s, nil
}

// IsHealthy reports whether Redis is currently usable.
func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

func (s *Service) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount++
	if s.failureCount >= s.maxFailures {
		if s.healthy {
			s.logger.Warn("circuit breaker open, redis marked unhealthy", "failures", s.failureCount)
		}
		s.healthy = false
	}
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.healthy {
		s.logger.Info("circuit breaker closed, redis recovered")
	}
	s.healthy = true
	s.failureCount = 0
	s.lastCheck = time.Now()
}

// checkHealth probes Redis in the background once the check interval has
// elapsed while unhealthy.
func (s *Service) checkHealth() {
	s.mu.RLock()
	shouldCheck := !s.healthy && time.Since(s.lastCheck) >= s.checkInterval
	s.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := s.client.Ping(pingCtx).Err(); err == nil {
			s.recordSuccess()
		}
	}()
}

// Get retrieves a raw value. Returns ErrMiss on a cache miss.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	s.checkHealth()

	if !s.IsHealthy() {
		return "", fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	result, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", err
		}
		s.recordFailure()
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	s.recordSuccess()
	return result, nil
}

// Set stores a value with a TTL. Non-string values are JSON encoded.
func (s *Service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.checkHealth()

	if !s.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	var data string
	switch v := value.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		data = string(jsonData)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	s.recordSuccess()
	return nil
}

// Delete removes a key.
func (s *Service) Delete(ctx context.Context, key string) error {
	s.checkHealth()

	if !s.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis delete failed: %w", err)
	}

	s.recordSuccess()
	return nil
}

// Close releases the Redis connection pool.
func (s *Service) Close() error {
	return s.client.Close()
}
