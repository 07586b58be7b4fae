package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sentinelkit/logscrub/internal/logger"
)

// ResultCache handles Redis-based caching of scrubbed text results. Entries
// are keyed by the rule set fingerprint plus a hash of the input, so a rule
// pack change invalidates old results by construction.
type ResultCache struct {
	client *redis.Client
	config *Config
	logger *logger.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a new Redis-based result cache
func New(config *Config, log *logger.Logger) (*ResultCache, error) {
	// Parse Redis URL
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	if config.MaxConnections > 0 {
		opts.PoolSize = config.MaxConnections
	}
	if config.MinIdleConns > 0 {
		opts.MinIdleConns = config.MinIdleConns
	}

	client := redis.NewClient(opts)

	cache := &ResultCache{
		client: client,
		config: config,
		logger: log.WithComponent("cache"),
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache.logger.Info("result cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

// ping tests the Redis connection
func (rc *ResultCache) ping(ctx context.Context) error {
	_, err := rc.client.Ping(ctx).Result()
	return err
}

// Get looks up a previously scrubbed result. A miss, a lookup failure, or a
// corrupted entry all return nil; the caller scrubs as usual.
func (rc *ResultCache) Get(ctx context.Context, fingerprint, text string) *CachedResult {
	key := rc.resultKey(fingerprint, text)

	data, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		rc.misses.Add(1)
		rc.logger.Debug("cache miss", zap.String("key", key))
		return nil
	} else if err != nil {
		rc.logger.Error("cache lookup failed", zap.Error(err))
		return nil
	}

	var result CachedResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		rc.logger.Error("failed to unmarshal cached result", zap.Error(err))
		// Delete corrupted cache entry
		rc.client.Del(ctx, key)
		rc.misses.Add(1)
		return nil
	}

	rc.hits.Add(1)
	rc.logger.Debug("cache hit", zap.String("key", key))
	return &result
}

// Store caches a scrubbed result under the rule set fingerprint
func (rc *ResultCache) Store(ctx context.Context, fingerprint, text string, result *CachedResult) error {
	key := rc.resultKey(fingerprint, text)

	result.Fingerprint = fingerprint
	result.CachedAt = time.Now()
	result.TTL = int64(rc.config.DefaultTTL.Seconds())

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result for caching: %w", err)
	}

	if err := rc.client.Set(ctx, key, data, rc.config.DefaultTTL).Err(); err != nil {
		rc.logger.Error("failed to cache result", zap.Error(err))
		return fmt.Errorf("failed to cache result: %w", err)
	}

	rc.logger.Debug("result cached", zap.String("key", key))
	return nil
}

// StoreBatch caches multiple results efficiently using a Redis pipeline
func (rc *ResultCache) StoreBatch(ctx context.Context, fingerprint string, texts []string, results []*CachedResult) error {
	if len(texts) != len(results) {
		return fmt.Errorf("texts and results length mismatch")
	}

	if len(results) == 0 {
		return nil
	}

	pipe := rc.client.Pipeline()

	for i, result := range results {
		result.Fingerprint = fingerprint
		result.CachedAt = time.Now()
		result.TTL = int64(rc.config.DefaultTTL.Seconds())

		data, err := json.Marshal(result)
		if err != nil {
			rc.logger.Error("failed to marshal result for batch caching", zap.Error(err))
			continue
		}

		pipe.Set(ctx, rc.resultKey(fingerprint, texts[i]), data, rc.config.DefaultTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		rc.logger.Error("batch cache operation failed", zap.Error(err))
		return fmt.Errorf("batch cache operation failed: %w", err)
	}

	rc.logger.Debug("batch cache operation completed", zap.Int("cached_results", len(results)))
	return nil
}

// GetStats returns cache performance statistics
func (rc *ResultCache) GetStats(ctx context.Context) (*Stats, error) {
	// Get Redis info
	info, err := rc.client.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &Stats{
		Hits:   rc.hits.Load(),
		Misses: rc.misses.Load(),
	}

	// Calculate hit rate
	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	// Parse memory usage from Redis info
	lines := strings.Split(info, "\r\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "used_memory:") {
			if memStr := strings.TrimPrefix(line, "used_memory:"); memStr != "" {
				if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
					stats.MemoryUsage = mem
				}
			}
		}
	}

	// Get total keys count
	keys, err := rc.client.DBSize(ctx).Result()
	if err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes all cached results
func (rc *ResultCache) Clear(ctx context.Context) error {
	pattern := rc.config.KeyPrefix + ":scrub:*"

	// Use SCAN to find all keys with our prefix
	iter := rc.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	// Delete keys in batches
	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		if err := rc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			rc.logger.Error("failed to delete cache keys", zap.Error(err))
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	rc.logger.Info("cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (rc *ResultCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

// resultKey builds the cache key for one input under one rule set
func (rc *ResultCache) resultKey(fingerprint, text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:scrub:%s:%s", rc.config.KeyPrefix, fingerprint, hex.EncodeToString(hash[:])[:16])
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
