package pool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/richxcame/pool-matching/pkg/redis"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *PoolWithMembers {
	id := uuid.New()
	return &PoolWithMembers{
		Pool: RidePool{
			ID:            id,
			Code:          NewPoolCode(id),
			Status:        PoolStatusForming,
			Passengers:    2,
			Luggage:       1,
			MaxPassengers: 4,
			MaxLuggage:    8,
			CreatedAt:     time.Now().UTC().Truncate(time.Second),
			UpdatedAt:     time.Now().UTC().Truncate(time.Second),
		},
	}
}

func TestRedisCache_HitRoundTrip(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(redis.Wrap(client), 2*time.Minute)

	snapshot := testSnapshot()
	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)
	key := poolKeyPrefix + snapshot.Pool.ID.String()

	mock.ExpectSet(key, raw, 2*time.Minute).SetVal("OK")
	cache.SetPool(context.Background(), snapshot)

	mock.ExpectGet(key).SetVal(string(raw))
	got, ok := cache.GetPool(context.Background(), snapshot.Pool.ID)
	require.True(t, ok)
	require.Equal(t, snapshot.Pool.ID, got.Pool.ID)
	require.Equal(t, snapshot.Pool.Passengers, got.Pool.Passengers)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_MissOnAbsentKey(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(redis.Wrap(client), time.Minute)

	id := uuid.New()
	mock.ExpectGet(poolKeyPrefix + id.String()).RedisNil()

	_, ok := cache.GetPool(context.Background(), id)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_BackendErrorIsMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(redis.Wrap(client), time.Minute)

	id := uuid.New()
	mock.ExpectGet(poolKeyPrefix + id.String()).SetErr(errors.New("connection refused"))

	_, ok := cache.GetPool(context.Background(), id)
	require.False(t, ok)
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(redis.Wrap(client), time.Minute)

	id := uuid.New()
	mock.ExpectGet(poolKeyPrefix + id.String()).SetVal("{not json")

	_, ok := cache.GetPool(context.Background(), id)
	require.False(t, ok)
}

func TestRedisCache_Invalidate(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(redis.Wrap(client), time.Minute)

	poolID := uuid.New()
	requestID := uuid.New()
	mock.ExpectDel(poolKeyPrefix + poolID.String()).SetVal(1)
	mock.ExpectDel(requestKeyPrefix + requestID.String()).SetVal(1)

	cache.InvalidatePool(context.Background(), poolID)
	cache.InvalidateRequest(context.Background(), requestID)
	require.NoError(t, mock.ExpectationsWereMet())
}
