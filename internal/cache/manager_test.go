package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{
		Addr:      mr.Addr(),
		KeyPrefix: "test:",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestManager_Key(t *testing.T) {
	_, manager := setupTestRedis(t)

	assert.Equal(t, "test:skill:abc", manager.Key("skill", "abc"))
	assert.Equal(t, "test:", manager.Key())
}

func TestManager_SetAndGet(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", time.Minute))

	value, err := manager.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	_, err = manager.Get(ctx, "missing")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_SetNX(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	ok, err := manager.SetNX(ctx, "guard", "1", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = manager.SetNX(ctx, "guard", "2", 0)
	require.NoError(t, err)
	assert.False(t, ok, "已存在的键不应被覆盖")

	value, _ := manager.Get(ctx, "guard")
	assert.Equal(t, "1", value)
}

func TestManager_JSON(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, manager.SetJSON(ctx, "j", payload{Name: "x", Count: 3}, 0))

	var got payload
	require.NoError(t, manager.GetJSON(ctx, "j", &got))
	assert.Equal(t, payload{Name: "x", Count: 3}, got)

	assert.Error(t, manager.SetJSON(ctx, "bad", make(chan int), 0))

	require.NoError(t, manager.Set(ctx, "not-json", "{", 0))
	assert.Error(t, manager.GetJSON(ctx, "not-json", &got))
}

func TestManager_DeleteAndExists(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", "1", 0))
	require.NoError(t, manager.Set(ctx, "b", "1", 0))

	n, err := manager.Exists(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, manager.Delete(ctx, "a"))
	require.NoError(t, manager.Delete(ctx))

	n, err = manager.Exists(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestManager_Sets(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.SAdd(ctx, "idx", "s1", "s2"))
	require.NoError(t, manager.SAdd(ctx, "idx", "s2"))

	members, err := manager.SMembers(ctx, "idx")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, members)
}

func TestManager_TTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "ttl", "v", 100*time.Millisecond))
	mr.FastForward(200 * time.Millisecond)

	_, err := manager.Get(ctx, "ttl")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_ClosedRejectsOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close(), "重复关闭安全")

	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, manager.Set(ctx, "k", "v", 0), ErrClosed)
	_, err := manager.SMembers(ctx, "idx")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewManager_ConnectionFailure(t *testing.T) {
	manager, err := NewManager(Config{
		Addr:        "127.0.0.1:1", // 不存在的地址
		DialTimeout: 200 * time.Millisecond,
	}, nil)

	assert.Nil(t, manager)
	assert.Error(t, err)
}

func TestNewManager_TLSAgainstPlaintextServer(t *testing.T) {
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{
		Addr:        mr.Addr(),
		TLS:         true,
		DialTimeout: 500 * time.Millisecond,
	}, nil)

	assert.Nil(t, manager)
	require.Error(t, err, "明文服务端不能完成 TLS 握手")
}

func TestManager_ConcurrentOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := manager.Key("concurrent", string(rune('0'+id)))
			assert.NoError(t, manager.Set(ctx, key, "value", time.Minute))
			value, err := manager.Get(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, "value", value)
		}(i)
	}
	wg.Wait()
}
