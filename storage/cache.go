package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

type taskBackend interface {
	QueryTasks(ctx context.Context, q TaskQuery) ([]domain.Task, error)
}

// Cache wraps task queries with a Redis-backed snapshot cache. Subscription
// fan-out refetches the same result set once per connected view; the cache
// collapses that storm into one table scan per change.
type Cache struct {
	base  taskBackend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base taskBackend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

// QueryTasks serves the query from cache when possible.
func (c *Cache) QueryTasks(ctx context.Context, q TaskQuery) ([]domain.Task, error) {
	if tasks, ok := c.load(ctx, q); ok {
		return tasks, nil
	}
	tasks, err := c.base.QueryTasks(ctx, q)
	if err != nil {
		return nil, err
	}
	c.store(ctx, q, tasks)
	return tasks, nil
}

// Evict drops every cached result set for a project. Called after any write
// to the project's tasks.
func (c *Cache) Evict(ctx context.Context, projectID string) {
	if c.redis == nil {
		return
	}
	idx := cacheIndexKey(projectID)
	keys, err := c.redis.SMembers(ctx, idx).Result()
	if err != nil {
		return
	}
	keys = append(keys, idx)
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func (c *Cache) load(ctx context.Context, q TaskQuery) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, cacheKey(q)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, cacheKey(q)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, cacheKey(q)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, q TaskQuery, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	key := cacheKey(q)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return
	}
	if q.ProjectID != "" {
		_ = c.redis.SAdd(ctx, cacheIndexKey(q.ProjectID), key).Err()
		_ = c.redis.Expire(ctx, cacheIndexKey(q.ProjectID), c.ttl).Err()
	}
}

func cacheKey(q TaskQuery) string {
	return "snapshot:" + q.Key()
}

func cacheIndexKey(projectID string) string {
	return "snapshot-index:" + projectID
}
