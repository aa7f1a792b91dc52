package youtube

import (
	"context"
	"encoding/json"
	"time"

	"creatorfeed/internal/domain"
	"creatorfeed/pkg/logger"
	"creatorfeed/pkg/redis"
)

// CachedStatistics serves recently fetched statistics from Redis so that a
// targeted rerun shortly after a full run does not spend API quota twice.
// Cache failures are logged and bypassed.
type CachedStatistics struct {
	next   StatisticsProvider
	redis  *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedStatistics wraps next with a Redis read-through cache
func NewCachedStatistics(next StatisticsProvider, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedStatistics {
	if ttl <= 0 {
		ttl = redis.TTLVideoStats
	}
	return &CachedStatistics{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: log.Named("stats_cache"),
	}
}

// Statistics returns cached entries and fetches the rest from next
func (c *CachedStatistics) Statistics(ctx context.Context, videoIDs []string) (map[string]domain.VideoStats, error) {
	ids := Dedupe(videoIDs)
	if len(ids) == 0 {
		return map[string]domain.VideoStats{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.redis.KeyBuilder.KeyVideoStats(id)
	}

	stats := make(map[string]domain.VideoStats, len(ids))
	missing := ids

	vals, err := c.redis.MGet(ctx, keys...)
	if err != nil {
		c.logger.WithError(err).Warn("Statistics cache read failed, fetching all ids")
	} else {
		missing = make([]string, 0, len(ids))
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			var s domain.VideoStats
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			stats[ids[i]] = s
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"hits":   len(ids) - len(missing),
		"misses": len(missing),
	}).Debug("Statistics cache lookup")

	if len(missing) == 0 {
		return stats, nil
	}

	fetched, err := c.next.Statistics(ctx, missing)
	if err != nil {
		return nil, err
	}

	toCache := make(map[string]interface{}, len(fetched))
	for id, s := range fetched {
		stats[id] = s
		if data, err := json.Marshal(s); err == nil {
			toCache[c.redis.KeyBuilder.KeyVideoStats(id)] = data
		}
	}
	if err := c.redis.SetMultiple(ctx, toCache, c.ttl); err != nil {
		c.logger.WithError(err).Warn("Statistics cache write failed")
	}

	return stats, nil
}
