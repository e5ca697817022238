package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/models"
)

// RedisCache is a Redis-backed WorkflowCache for multi-instance deployments
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache connects to Redis and returns a cache. The connection is
// verified with a ping so a misconfigured deployment fails at startup, not
// on the first workflow write.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis cache connected", zap.String("addr", cfg.Addr))

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func cacheKey(workflowID string) string {
	return "workflow:" + workflowID
}

// Get returns the cached workflow, or nil without error on a miss
func (c *RedisCache) Get(ctx context.Context, workflowID string) (*models.Workflow, error) {
	val, err := c.client.Get(ctx, cacheKey(workflowID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow from redis: %w", err)
	}

	var wf models.Workflow
	if err := json.Unmarshal(val, &wf); err != nil {
		// A corrupt entry must not poison the read path; treat as a miss
		c.logger.Warn("Evicting undecodable cache entry",
			zap.String("workflow_id", workflowID), zap.Error(err))
		c.client.Del(ctx, cacheKey(workflowID))
		return nil, nil
	}
	return &wf, nil
}

// Set stores the workflow under its ID with the cache's TTL
func (c *RedisCache) Set(ctx context.Context, wf *models.Workflow) error {
	val, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow for cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(wf.WorkflowID), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write workflow to redis: %w", err)
	}
	return nil
}

// Delete evicts the workflow from the cache
func (c *RedisCache) Delete(ctx context.Context, workflowID string) error {
	if err := c.client.Del(ctx, cacheKey(workflowID)).Err(); err != nil {
		return fmt.Errorf("failed to delete workflow from redis: %w", err)
	}
	return nil
}

// Close releases the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
