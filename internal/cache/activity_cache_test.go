package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/popup-engine/internal/domain"
	"github.com/ignite/popup-engine/internal/repository/memory"
	"github.com/ignite/popup-engine/internal/service/metrics"
)

// countingStore wraps the in-memory activity store and counts how many
// lookups reach it.
type countingStore struct {
	inner metrics.ActivityStore
	calls int
}

func (s *countingStore) Get(ctx context.Context, id string) (*domain.Activity, error) {
	s.calls++
	return s.inner.Get(ctx, id)
}

func setupCache(t *testing.T, activities ...domain.Activity) (*ActivityCache, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := &countingStore{inner: memory.NewActivityStore(activities...)}
	return New(client, store, time.Minute), store, mr
}

func springSale() domain.Activity {
	return domain.Activity{
		ID:        "act-1",
		ProjectID: "proj-1",
		Name:      "Spring Sale",
		Status:    domain.ActivityActive,
		Conditions: []domain.TargetingCondition{
			{Type: domain.ConditionStartsWith, Value: "/blog"},
		},
		LogicOperator: domain.LogicAnd,
	}
}

func TestGet_MissThenHit(t *testing.T) {
	cache, store, _ := setupCache(t, springSale())
	ctx := context.Background()

	a, err := cache.Get(ctx, "act-1")
	require.NoError(t, err)
	assert.Equal(t, "Spring Sale", a.Name)
	assert.Equal(t, 1, store.calls)

	// Second lookup is served from Redis.
	a, err = cache.Get(ctx, "act-1")
	require.NoError(t, err)
	assert.Equal(t, "Spring Sale", a.Name)
	require.Len(t, a.Conditions, 1)
	assert.Equal(t, domain.ConditionStartsWith, a.Conditions[0].Type)
	assert.Equal(t, 1, store.calls)
}

func TestGet_NegativeCaching(t *testing.T) {
	cache, store, _ := setupCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "ghost")
	assert.ErrorIs(t, err, metrics.ErrActivityNotFound)
	assert.Equal(t, 1, store.calls)

	// The miss is cached; repeated retries never reach the store.
	for i := 0; i < 5; i++ {
		_, err = cache.Get(ctx, "ghost")
		assert.ErrorIs(t, err, metrics.ErrActivityNotFound)
	}
	assert.Equal(t, 1, store.calls)
}

func TestGet_NegativeEntryExpires(t *testing.T) {
	cache, store, mr := setupCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "ghost")
	assert.ErrorIs(t, err, metrics.ErrActivityNotFound)

	// Negative entries live half as long as positive ones.
	mr.FastForward(31 * time.Second)

	_, err = cache.Get(ctx, "ghost")
	assert.ErrorIs(t, err, metrics.ErrActivityNotFound)
	assert.Equal(t, 2, store.calls)
}

func TestGet_CorruptEntryFallsThrough(t *testing.T) {
	cache, store, mr := setupCache(t, springSale())
	ctx := context.Background()

	require.NoError(t, mr.Set("activity:act-1", "{not json"))

	a, err := cache.Get(ctx, "act-1")
	require.NoError(t, err)
	assert.Equal(t, "Spring Sale", a.Name)
	assert.Equal(t, 1, store.calls)

	// The corrupt entry was rewritten.
	val, err := mr.Get("activity:act-1")
	require.NoError(t, err)
	assert.Contains(t, val, "Spring Sale")
}

func TestGet_RedisDownDegradesToStore(t *testing.T) {
	cache, store, mr := setupCache(t, springSale())
	ctx := context.Background()

	mr.Close()

	a, err := cache.Get(ctx, "act-1")
	require.NoError(t, err, "cache outage must not fail the lookup")
	assert.Equal(t, "Spring Sale", a.Name)
	assert.Equal(t, 1, store.calls)
}

func TestInvalidate(t *testing.T) {
	cache, store, mr := setupCache(t, springSale())
	ctx := context.Background()

	_, err := cache.Get(ctx, "act-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("activity:act-1"))

	cache.Invalidate(ctx, "act-1")
	assert.False(t, mr.Exists("activity:act-1"))

	_, err = cache.Get(ctx, "act-1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}
