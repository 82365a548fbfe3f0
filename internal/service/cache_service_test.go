package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
)

type memoryCache struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

func TestCacheAsideLoadsOnceThenHits(t *testing.T) {
	store := newMemoryCache()
	cache := NewCacheService(store, NewMetricsService(), time.Minute, zap.NewNop(), true)
	loads := 0
	load := func(ctx context.Context) ([]string, error) {
		loads++
		return []string{"Acme", "Globex"}, nil
	}

	first, err := cacheAside(context.Background(), cache, "k", 0, load)
	require.NoError(t, err)
	second, err := cacheAside(context.Background(), cache, "k", 0, load)
	require.NoError(t, err)

	assert.Equal(t, 1, loads)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Minute, store.ttls["k"])
}

func TestCacheAsideFallsBackWhenCacheBroken(t *testing.T) {
	store := newMemoryCache()
	store.getErr = errors.New("redis down")
	cache := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)

	value, err := cacheAside(context.Background(), cache, "k", time.Second, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, value)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	store := newMemoryCache()
	cache := NewCacheService(store, nil, 0, nil, false)

	require.NoError(t, cache.Set(context.Background(), "k", 1, 0))
	hit, err := cache.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, store.data)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	assert.NoError(t, nilCache.Invalidate(context.Background(), "k"))
}

func TestCacheServiceInvalidate(t *testing.T) {
	store := newMemoryCache()
	cache := NewCacheService(store, nil, 0, nil, true)
	require.NoError(t, cache.Set(context.Background(), approvedCompaniesCacheKey, []string{"x"}, 0))

	require.NoError(t, cache.Invalidate(context.Background(), approvedCompaniesCacheKey))
	assert.Equal(t, []string{"internship:companies:approved"}, store.deleted)
	assert.Empty(t, store.data)
}
