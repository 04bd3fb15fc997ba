//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRedisClient struct {
	IncrFunc             func(ctx context.Context, key string) (int64, error)
	ExpireFunc           func(ctx context.Context, key string, expiration time.Duration) error
	SetNXFunc            func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	CompareAndDeleteFunc func(ctx context.Context, key, value string) (bool, error)
}

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return m.SetNXFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	return m.CompareAndDeleteFunc(ctx, key, value)
}
func (m *mockRedisClient) Close() error { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	counts := map[string]int64{}
	var expired []string
	cli := &mockRedisClient{
		IncrFunc: func(ctx context.Context, key string) (int64, error) {
			counts[key]++
			return counts[key], nil
		},
		ExpireFunc: func(ctx context.Context, key string, d time.Duration) error {
			expired = append(expired, key)
			return nil
		},
	}
	rl := NewRateLimiter(cli)
	key := UserRouteKey("u1", "verify")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(context.Background(), key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(context.Background(), key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"rate_limit:u1:verify"}, expired)
}

func TestRateLimiter_PropagatesErrors(t *testing.T) {
	cli := &mockRedisClient{IncrFunc: func(ctx context.Context, key string) (int64, error) {
		return 0, errors.New("down")
	}}
	_, err := NewRateLimiter(cli).Allow(context.Background(), "k", 1, time.Second)
	assert.Error(t, err)
}

func TestRedisLocker(t *testing.T) {
	held := map[string]string{}
	cli := &mockRedisClient{
		SetNXFunc: func(ctx context.Context, key string, value interface{}, d time.Duration) (bool, error) {
			if _, ok := held[key]; ok {
				return false, nil
			}
			held[key] = value.(string)
			return true, nil
		},
		CompareAndDeleteFunc: func(ctx context.Context, key, value string) (bool, error) {
			if held[key] == value {
				delete(held, key)
				return true, nil
			}
			return false, nil
		},
	}
	l := NewLocker(cli)
	l.backoff = time.Millisecond
	key := "lock:refund:pay_1"

	token, ok, err := l.Lock(context.Background(), key, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Lock(context.Background(), key, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(context.Background(), key, "someone-else"))
	assert.Contains(t, held, key)
	require.NoError(t, l.Unlock(context.Background(), key, token))
	assert.NotContains(t, held, key)
}
