package youtube

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"creatorfeed/internal/domain"
	"creatorfeed/pkg/logger"
	"creatorfeed/pkg/redis"
)

type countingProvider struct {
	calls [][]string
	stats map[string]domain.VideoStats
	err   error
}

func (p *countingProvider) Statistics(_ context.Context, ids []string) (map[string]domain.VideoStats, error) {
	p.calls = append(p.calls, ids)
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]domain.VideoStats)
	for _, id := range ids {
		if s, ok := p.stats[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func setupCache(t *testing.T, next StatisticsProvider) (*miniredis.Miniredis, *CachedStatistics) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewCachedStatistics(next, client, time.Minute, logger.NewNop())
}

func TestCachedStatistics_ReadThrough(t *testing.T) {
	inner := &countingProvider{stats: map[string]domain.VideoStats{
		"a": {Views: 10, Likes: 1},
		"b": {Views: 20, Likes: 2},
	}}
	mr, cache := setupCache(t, inner)
	ctx := context.Background()

	first, err := cache.Statistics(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), first["b"].Views)
	require.Len(t, inner.calls, 1)

	assert.True(t, mr.Exists("creatorfeed:staging:ingest:stats:a"))
	assert.False(t, mr.Exists("creatorfeed:staging:ingest:stats:c"), "absent ids are not cached")

	second, err := cache.Statistics(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"c"}, inner.calls[1], "only misses reach the API")
}

func TestCachedStatistics_InnerErrorPropagates(t *testing.T) {
	inner := &countingProvider{err: fmt.Errorf("quota")}
	_, cache := setupCache(t, inner)

	_, err := cache.Statistics(context.Background(), []string{"a"})
	assert.Error(t, err)
}

func TestCachedStatistics_RedisDown(t *testing.T) {
	inner := &countingProvider{stats: map[string]domain.VideoStats{"a": {Views: 3}}}
	mr, cache := setupCache(t, inner)
	mr.Close()

	stats, err := cache.Statistics(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["a"].Views)
}
