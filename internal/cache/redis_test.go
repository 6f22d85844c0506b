package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestRedis creates a test Redis client using miniredis
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zap.NewNop())
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

type summary struct {
	Total  int64            `json:"total"`
	ByType map[string]int64 `json:"byType"`
}

func TestClient_SetGetJSON(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	in := summary{Total: 3, ByType: map[string]int64{"PAYMENT_DELAY": 2, "STAGE_INACTIVITY": 1}}
	require.NoError(t, client.SetJSON(ctx, "alerts:summary", in, time.Minute))

	var out summary
	require.NoError(t, client.GetJSON(ctx, "alerts:summary", &out))
	assert.Equal(t, in, out)
}

func TestClient_GetJSON_Miss(t *testing.T) {
	client, _ := setupTestRedis(t)

	var out summary
	err := client.GetJSON(context.Background(), "missing", &out)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestClient_Expiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.SetJSON(ctx, "k", summary{Total: 1}, 10*time.Second))
	mr.FastForward(11 * time.Second)

	exists, err := client.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClient_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.SetJSON(ctx, "a", 1, time.Hour))
	require.NoError(t, client.SetJSON(ctx, "b", 2, time.Hour))
	require.NoError(t, client.Delete(ctx, "a"))

	exists, err := client.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)

	var v int
	require.NoError(t, client.GetJSON(ctx, "b", &v))
	assert.Equal(t, 2, v)
}

func TestClient_Ping(t *testing.T) {
	client, mr := setupTestRedis(t)
	require.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}
