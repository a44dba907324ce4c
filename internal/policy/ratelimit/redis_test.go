package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	counts    map[string]int64
	expires   map[string]time.Duration
	incrErr   error
	expireErr error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.incrErr != nil {
		return redis.NewIntResult(0, f.incrErr)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, key string, d time.Duration) *redis.BoolCmd {
	if f.expireErr != nil {
		return redis.NewBoolResult(false, f.expireErr)
	}
	f.expires[key] = d
	return redis.NewBoolResult(true, nil)
}

func TestRedisFixedWindow(t *testing.T) {
	t.Parallel()

	fc := newFakeCounter()
	now := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	l := newRedis(fc, "auditor:ratelimit:", Config{Requests: 2, Window: time.Hour})
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	require.False(t, ok)

	key := "auditor:ratelimit:1.2.3.4:1704110400"
	require.Equal(t, int64(3), fc.counts[key])
	require.Equal(t, time.Hour, fc.expires[key])

	now = now.Add(time.Hour)
	ok, err = l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	require.True(t, ok, "a new window starts a new counter")
}

func TestRedisErrorsFailOpen(t *testing.T) {
	t.Parallel()

	fc := newFakeCounter()
	fc.incrErr = errors.New("connection refused")
	l := newRedis(fc, "", Config{Requests: 1, Window: time.Minute})
	ok, err := l.Allow(context.Background(), "c")
	require.Error(t, err)
	require.True(t, ok)

	fc.incrErr = nil
	fc.expireErr = errors.New("timeout")
	ok, err = l.Allow(context.Background(), "c")
	require.ErrorContains(t, err, "expire")
	require.True(t, ok)
}

func TestNewRedisRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := NewRedis(nil, "", Config{})
	require.Error(t, err)
}
