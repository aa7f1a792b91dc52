package youtube

import (
	"context"
	"fmt"

	"creatorfeed/internal/domain"
	"creatorfeed/pkg/errors"
)

// StatisticsProvider resolves view and like counts for video ids
type StatisticsProvider interface {
	Statistics(ctx context.Context, videoIDs []string) (map[string]domain.VideoStats, error)
}

// Statistics fetches statistics for videoIDs. Ids are de-duplicated and sent
// in chunks of at most 50, one videos.list call per chunk. Ids the API does
// not return are absent from the map. Any failed chunk fails the whole call.
func (s *Service) Statistics(ctx context.Context, videoIDs []string) (map[string]domain.VideoStats, error) {
	ids := Dedupe(videoIDs)
	stats := make(map[string]domain.VideoStats, len(ids))

	chunks := Chunk(ids, MaxIDsPerRequest)
	for i, chunk := range chunks {
		if err := s.wait(ctx); err != nil {
			return nil, errors.NewEnrichmentError("statistics request cancelled", err)
		}

		resp, err := s.api.Videos.List([]string{"statistics"}).Id(chunk...).Context(ctx).Do()
		s.observer.ObserveAPIRequest("videos.list", len(chunk), err)
		if err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"chunk":  i + 1,
				"chunks": len(chunks),
				"ids":    len(chunk),
			}).Error("Failed to fetch video statistics")
			return nil, withAPIStatus(errors.NewEnrichmentError(
				fmt.Sprintf("statistics request %d/%d failed", i+1, len(chunks)), err), err)
		}

		for _, item := range resp.Items {
			if item.Statistics == nil {
				stats[item.Id] = domain.VideoStats{}
				continue
			}
			stats[item.Id] = domain.VideoStats{
				Views: int64(item.Statistics.ViewCount),
				Likes: int64(item.Statistics.LikeCount),
			}
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"requested": len(ids),
		"returned":  len(stats),
		"requests":  len(chunks),
	}).Debug("Retrieved video statistics")

	return stats, nil
}

// Chunk splits ids into consecutive slices of at most size elements
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxIDsPerRequest
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Dedupe drops empty and repeated ids, keeping first-seen order
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
