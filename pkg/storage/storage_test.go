package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/neurocare-backend/pkg/redis"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "cart")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "cart", []byte(`[{"quantity":1}]`)))
	got, err := store.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `[{"quantity":1}]`, string(got))

	require.NoError(t, store.Put(ctx, "cart", []byte(`[]`)))
	got, err = store.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, store.Delete(ctx, "cart"))
	_, err = store.Get(ctx, "cart")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "missing"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	value := []byte("abc")
	require.NoError(t, store.Put(context.Background(), "k", value))
	value[0] = 'z'

	got, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	store, err := NewRedisStore(redis.NewWithClient(raw, "neurocare"))
	require.NoError(t, err)
	exerciseStore(t, store)

	require.NoError(t, store.Put(context.Background(), "s1:orders", []byte("[]")))
	assert.True(t, mr.Exists("neurocare:s1:orders"))
	require.NoError(t, store.Ping(context.Background()))
}

func TestNewRedisStoreRequiresClient(t *testing.T) {
	_, err := NewRedisStore(nil)
	require.Error(t, err)
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&kvEntry{}))
	return conn
}

func TestSQLStore(t *testing.T) {
	store, err := NewSQLStore(openSQLite(t))
	require.NoError(t, err)
	exerciseStore(t, store)
	require.NoError(t, store.Ping(context.Background()))
}

func TestNamespacedPrefixesKeys(t *testing.T) {
	inner := NewMemoryStore()
	ns := Namespaced(inner, "neurocare", " ", "tab-1")
	ctx := context.Background()

	require.NoError(t, ns.Put(ctx, "cart", []byte("[]")))
	assert.Equal(t, []string{"neurocare:tab-1:cart"}, inner.Keys())

	got, err := ns.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	require.NoError(t, ns.Delete(ctx, "cart"))
	assert.Empty(t, inner.Keys())
}

func TestNamespacedWithoutPrefixReturnsInner(t *testing.T) {
	inner := NewMemoryStore()
	assert.Same(t, Store(inner), Namespaced(inner))
}

func TestNamespacedIsolatesSessions(t *testing.T) {
	inner := NewMemoryStore()
	a := Namespaced(inner, "a")
	b := Namespaced(inner, "b")
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, "cart", []byte("1")))
	_, err := b.Get(ctx, "cart")
	assert.True(t, errors.Is(err, ErrNotFound))
}
