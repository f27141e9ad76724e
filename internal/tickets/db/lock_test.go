package db_test

import (
	"context"
	"entrypass/internal/tickets/db"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportLockExcludesSecondOwner(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	locks := map[string]db.Locker{
		"redis": &db.RedisLock{Client: client, Key: "test:import_lock", TTL: time.Minute},
		"file":  &db.FileLock{Path: filepath.Join(t.TempDir(), "tickets.json.lock")},
	}

	for name, lock := range locks {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, lock.Lock(ctx, "host-a:1"))

			err := lock.Lock(ctx, "host-b:2")
			assert.ErrorIs(t, err, db.ErrLocked)
			assert.ErrorContains(t, err, "host-a:1")

			// Not the holder: nothing happens.
			require.NoError(t, lock.Unlock(ctx, "host-b:2"))
			assert.ErrorIs(t, lock.Lock(ctx, "host-b:2"), db.ErrLocked)

			require.NoError(t, lock.Unlock(ctx, "host-a:1"))
			require.NoError(t, lock.Lock(ctx, "host-b:2"))
			require.NoError(t, lock.Unlock(ctx, "host-b:2"))

			// Unlocking twice is harmless.
			require.NoError(t, lock.Unlock(ctx, "host-b:2"))
		})
	}
}

func TestRedisLockExpires(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	lock := &db.RedisLock{Client: client, Key: "test:import_lock", TTL: time.Minute}
	require.NoError(t, lock.Lock(ctx, "crashed"))

	mr.FastForward(2 * time.Minute)
	assert.NoError(t, lock.Lock(ctx, "next"))
}

func TestNewImportLock(t *testing.T) {
	jsonStore, err := db.NewJSONStore(filepath.Join(t.TempDir(), "tickets.json"))
	require.NoError(t, err)
	lock, ok := db.NewImportLock(jsonStore, time.Minute).(*db.FileLock)
	require.True(t, ok)
	assert.Equal(t, jsonStore.Path()+".lock", lock.Path)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	redisLock, ok := db.NewImportLock(db.NewRedisStore(client, "ep"), time.Minute).(*db.RedisLock)
	require.True(t, ok)
	assert.Equal(t, "ep:import_lock", redisLock.Key)

	sqlStore, err := db.OpenSQLite(filepath.Join(t.TempDir(), "tickets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })
	assert.Nil(t, db.NewImportLock(sqlStore, time.Minute))
}
