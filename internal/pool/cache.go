package pool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/richxcame/pool-matching/pkg/logger"
	"github.com/richxcame/pool-matching/pkg/redis"
	"go.uber.org/zap"
)

const (
	poolKeyPrefix    = "pool:snapshot:"
	requestKeyPrefix = "pool:request:"
)

// RedisCache is a cache-aside view of pool snapshots. Redis errors never
// surface to callers: a failed read is a miss, a failed write or
// invalidation is logged and dropped, and the database stays
// authoritative either way.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a snapshot cache with the given TTL
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// GetPool returns a cached snapshot, or a miss on any error
func (c *RedisCache) GetPool(ctx context.Context, id uuid.UUID) (*PoolWithMembers, bool) {
	raw, err := c.client.GetString(ctx, poolKeyPrefix+id.String())
	if err != nil {
		if err != goredis.Nil {
			logger.WithContext(ctx).Warn("pool cache read failed",
				zap.String("pool_id", id.String()), zap.Error(err))
		}
		return nil, false
	}

	var snapshot PoolWithMembers
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		logger.WithContext(ctx).Warn("pool cache entry corrupt",
			zap.String("pool_id", id.String()), zap.Error(err))
		return nil, false
	}
	return &snapshot, true
}

// SetPool stores a snapshot with the configured TTL
func (c *RedisCache) SetPool(ctx context.Context, snapshot *PoolWithMembers) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	key := poolKeyPrefix + snapshot.Pool.ID.String()
	if err := c.client.SetWithExpiration(ctx, key, raw, c.ttl); err != nil {
		logger.WithContext(ctx).Warn("pool cache write failed",
			zap.String("pool_id", snapshot.Pool.ID.String()), zap.Error(err))
	}
}

// InvalidatePool drops the cached snapshot after a mutation
func (c *RedisCache) InvalidatePool(ctx context.Context, id uuid.UUID) {
	if err := c.client.Delete(ctx, poolKeyPrefix+id.String()); err != nil {
		logger.WithContext(ctx).Warn("pool cache invalidation failed",
			zap.String("pool_id", id.String()), zap.Error(err))
	}
}

// InvalidateRequest drops any cached view of a request after a mutation
func (c *RedisCache) InvalidateRequest(ctx context.Context, id uuid.UUID) {
	if err := c.client.Delete(ctx, requestKeyPrefix+id.String()); err != nil {
		logger.WithContext(ctx).Warn("request cache invalidation failed",
			zap.String("request_id", id.String()), zap.Error(err))
	}
}

// NoopCache satisfies SnapshotCache when no Redis backend is configured
type NoopCache struct{}

func (NoopCache) GetPool(context.Context, uuid.UUID) (*PoolWithMembers, bool) { return nil, false }
func (NoopCache) SetPool(context.Context, *PoolWithMembers)                   {}
func (NoopCache) InvalidatePool(context.Context, uuid.UUID)                   {}
func (NoopCache) InvalidateRequest(context.Context, uuid.UUID)                {}
