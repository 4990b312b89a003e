package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/arena-backend/pkg/config"
)

// fakeRedis interprets the three scripts this package sends and keeps every
// value in maps.
type fakeRedis struct {
	data    map[string]string
	counts  map[string]int64
	ttl     map[string]time.Duration
	streams map[string][]*redis.XAddArgs
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data:    map[string]string{},
		counts:  map[string]int64{},
		ttl:     map[string]time.Duration{},
		streams: map[string][]*redis.XAddArgs{},
	}
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd { return redis.NewStatusResult("PONG", nil) }

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	f.ttl[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.Set(ctx, key, value, ttl)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case fixedWindowScript:
		f.counts[key]++
		if f.counts[key] == 1 {
			f.ttl[key] = time.Duration(args[0].(int64)) * time.Millisecond
		}
		return redis.NewCmdResult(f.counts[key], nil)
	case releaseIfOwnerScript, extendIfOwnerScript:
		if f.data[key] != fmt.Sprint(args[0]) {
			return redis.NewCmdResult(int64(0), nil)
		}
		if script == releaseIfOwnerScript {
			delete(f.data, key)
		} else {
			f.ttl[key] = time.Duration(args[1].(int64)) * time.Millisecond
		}
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script %q", script))
}

func (f *fakeRedis) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.streams[a.Stream] = append(f.streams[a.Stream], a)
	return redis.NewStringResult(fmt.Sprintf("%d-0", len(f.streams[a.Stream])), nil)
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	client := &Client{store: fake}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "payments:user-1", 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "hit %d", i+1)
		assert.EqualValues(t, i+1, count)
	}
	assert.Equal(t, time.Minute, fake.ttl["arena:rate_limit:payments:user-1"])

	_, _, err := client.FixedWindowAllow(ctx, "payments:user-1", 2, 0)
	assert.Error(t, err)
}

func TestSetNXKeepsFirstValue(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeRedis()}
	key := client.IdempotencyKey("user-1|POST|/api/v1/shop-orders", "abc")

	ok, err := client.SetNX(ctx, key, "first", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = client.SetNX(ctx, key, "second", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.NoError(t, client.Set(ctx, key, "replaced", time.Hour))
	got, _ = client.Get(ctx, key)
	assert.Equal(t, "replaced", got)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestOwnerCheckedLockScripts(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	client := &Client{store: fake}
	key := client.LockKey("cron-worker:test")

	ok, _ := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.True(t, ok)

	ok, err := client.ExtendIfOwner(ctx, key, "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "foreign owner must not extend")

	ok, err = client.ExtendIfOwner(ctx, key, "owner-a", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Minute, fake.ttl[key])

	ok, _ = client.ReleaseIfOwner(ctx, key, "owner-b")
	assert.False(t, ok, "foreign owner must not release")
	ok, err = client.ReleaseIfOwner(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestXAddTrimsApproximately(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	client := &Client{store: fake}
	stream := client.StreamKey("reservations")

	id, err := client.XAdd(ctx, stream, 1000, map[string]any{"event_type": "reservation_confirmed"})
	require.NoError(t, err)
	assert.Equal(t, "1-0", id)
	_, err = client.XAdd(ctx, stream, 0, map[string]any{"event_type": "reservation_failed"})
	require.NoError(t, err)

	entries := fake.streams["arena:stream:reservations"]
	require.Len(t, entries, 2)
	assert.EqualValues(t, 1000, entries[0].MaxLen)
	assert.True(t, entries[0].Approx)
	assert.Zero(t, entries[1].MaxLen)
	assert.False(t, entries[1].Approx)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	assert.Error(t, client.Ping(context.Background()))
	_, err := client.Get(context.Background(), "k")
	assert.ErrorIs(t, err, errNotConnected)
	assert.NoError(t, client.Close())

	var nilClient *Client
	assert.ErrorIs(t, nilClient.Ping(context.Background()), errNotConnected)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "arena:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "arena:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "arena:lock:cron-worker:prod", client.LockKey("cron-worker:prod"))
	assert.Equal(t, "arena:stream:reservations", client.StreamKey(" reservations "))
	assert.Equal(t, "arena:idempotency:scope", client.IdempotencyKey("scope", ""))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@cache:6380/2", PoolSize: 7, DB: 5, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB, "url db wins")
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 3})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)

	_, err = optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)
}
