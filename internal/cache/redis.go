// Package cache provides a Redis-backed cache for completed analysis
// reports.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"catalysis-cloud/internal/activity/application"
)

// DefaultReportTTL bounds how long a cached report stays valid. Analyses
// are deterministic for a given recording and settings, so the TTL only
// limits memory use.
const DefaultReportTTL = time.Hour

// RedisCache implements application.ReportCache on a Redis client.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis connect: %w", err)
	}
	return &RedisCache{client: client, ttl: DefaultReportTTL}, nil
}

// WithTTL overrides the report TTL.
func (r *RedisCache) WithTTL(ttl time.Duration) *RedisCache {
	if ttl > 0 {
		r.ttl = ttl
	}
	return r
}

// GetReport loads a cached report into report; the bool is false on miss.
func (r *RedisCache) GetReport(ctx context.Context, key string, report *application.AnalysisReport) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, report); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

// SetReport stores a completed report under key.
func (r *RedisCache) SetReport(ctx context.Context, key string, report *application.AnalysisReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Close releases the client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
