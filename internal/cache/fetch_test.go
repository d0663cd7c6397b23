package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devedd/neurochat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestFetchCacheFirst_PrimaryThenCache(t *testing.T) {
	store, mr := testutil.OpenCache(t)
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	calls := 0
	load := func(ctx context.Context) (*item, error) {
		calls++
		return &item{ID: "1", Name: "first"}, nil
	}

	v, src, err := FetchCacheFirst(ctx, store, log, "item:1", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, SourcePrimary, src)
	assert.Equal(t, "first", v.Name)

	v, src, err = FetchCacheFirst(ctx, store, log, "item:1", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, src)
	assert.Equal(t, "first", v.Name)
	assert.Equal(t, 1, calls)

	assert.True(t, mr.Exists(store.HashKey("item:1")))
	assert.Equal(t, time.Minute, mr.TTL(store.HashKey("item:1")))
}

func TestFetchCacheFirst_AbsentNotCached(t *testing.T) {
	store, _ := testutil.OpenCache(t)
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	calls := 0
	load := func(ctx context.Context) (*item, error) {
		calls++
		return nil, nil
	}
	for i := 0; i < 2; i++ {
		v, src, err := FetchCacheFirst(ctx, store, log, "item:missing", time.Minute, load)
		require.NoError(t, err)
		assert.Nil(t, v)
		assert.Equal(t, SourcePrimary, src)
	}
	assert.Equal(t, 2, calls)

	ok, err := store.Exists(ctx, "item:missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchCacheFirst_LoaderError(t *testing.T) {
	store, _ := testutil.OpenCache(t)
	boom := errors.New("db down")

	_, _, err := FetchCacheFirst(context.Background(), store, zaptest.NewLogger(t), "item:2", time.Minute,
		func(ctx context.Context) (*item, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestFetchCacheFirst_CorruptEntryIsMiss(t *testing.T) {
	store, mr := testutil.OpenCache(t)
	require.NoError(t, mr.Set(store.HashKey("item:3"), "{not json"))

	v, src, err := FetchCacheFirst(context.Background(), store, zaptest.NewLogger(t), "item:3", time.Minute,
		func(ctx context.Context) (*item, error) { return &item{ID: "3"}, nil })
	require.NoError(t, err)
	assert.Equal(t, SourcePrimary, src)
	assert.Equal(t, "3", v.ID)
}

func TestIndexInvalidation(t *testing.T) {
	store, _ := testutil.OpenCache(t)
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	load := func(ctx context.Context) (*item, error) { return &item{ID: "l"}, nil }
	for _, k := range []string{"users:list:1:20:a:asc", "users:list:2:20:a:asc"} {
		_, _, err := FetchCacheFirst(ctx, store, log, k, time.Minute, load, UsersListIndex)
		require.NoError(t, err)
	}
	require.NoError(t, WriteThrough(ctx, store, "user:1", item{ID: "1"}, time.Minute))

	require.NoError(t, Invalidate(ctx, store, []string{"user:1"}, UsersListIndex))

	for _, k := range []string{"users:list:1:20:a:asc", "users:list:2:20:a:asc", "user:1"} {
		ok, err := store.Exists(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k)
	}

	_, src, err := FetchCacheFirst(ctx, store, log, "users:list:1:20:a:asc", time.Minute, load, UsersListIndex)
	require.NoError(t, err)
	assert.Equal(t, SourcePrimary, src)
}

type brokenIndex struct {
	Store
}

func (brokenIndex) AddToIndex(context.Context, string, string, time.Duration) error {
	return errors.New("index unavailable")
}

func TestFetchCacheFirst_IndexFailureSkipsCaching(t *testing.T) {
	store, _ := testutil.OpenCache(t)
	ctx := context.Background()
	key := "users:list:1:20:a:asc"

	v, src, err := FetchCacheFirst(ctx, brokenIndex{store}, zaptest.NewLogger(t), key, time.Minute,
		func(ctx context.Context) (*item, error) { return &item{ID: "l"}, nil }, UsersListIndex)
	require.NoError(t, err)
	assert.Equal(t, SourcePrimary, src)
	assert.Equal(t, "l", v.ID)

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
