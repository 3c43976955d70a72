package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, "test:session:"), server
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, server := setupStore(t)
	ctx := context.Background()

	sess := New()
	sess.Set("selectedSchoolId", "0b8f0f6e-5c8c-4d53-9b0c-8a3c4f1f2a10")
	require.NoError(t, sess.Persist(ctx, store, time.Hour))
	assert.False(t, sess.Dirty())

	values, err := store.Load(ctx, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, "0b8f0f6e-5c8c-4d53-9b0c-8a3c4f1f2a10", values["selectedSchoolId"])

	ttl := server.TTL("test:session:" + sess.ID())
	assert.Equal(t, time.Hour, ttl)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, server := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "abc", map[string]string{"k": "v"}, time.Minute))
	server.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSaveReplacesRemovedAttributes(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "abc", map[string]string{"a": "1", "b": "2"}, time.Minute))

	values, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	sess := Restore("abc", values)
	sess.Delete("b")
	require.NoError(t, sess.Persist(ctx, store, time.Minute))

	values, err = store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1"}, values)
}

func TestDestroyDeletesSession(t *testing.T) {
	store, server := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "abc", map[string]string{"a": "1"}, time.Minute))
	sess := Restore("abc", map[string]string{"a": "1"})
	sess.Destroy()
	require.NoError(t, sess.Persist(ctx, store, time.Minute))

	assert.False(t, server.Exists("test:session:abc"))
}

func TestSetSameValueIsNotDirty(t *testing.T) {
	sess := Restore("abc", map[string]string{"a": "1"})
	sess.Set("a", "1")
	assert.False(t, sess.Dirty())
	sess.Set("a", "2")
	assert.True(t, sess.Dirty())
}
