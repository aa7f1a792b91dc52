package ingest

import "creatorfeed/internal/domain"

// Merge combines a feed entry with its statistics into a store record.
// Videos absent from stats get zero counts. The average is 5 when the
// video has any likes and 0 otherwise, since the API exposes no dislikes.
func Merge(entry domain.FeedEntry, channelID, channelName string, stats map[string]domain.VideoStats) domain.VideoRecord {
	s := stats[entry.VideoID]

	var average float64
	if s.Likes > 0 {
		average = domain.RatingMax
	}

	return domain.VideoRecord{
		VideoID:       entry.VideoID,
		ChannelID:     channelID,
		ChannelName:   channelName,
		Title:         entry.Title,
		URL:           entry.Link,
		ThumbnailURL:  entry.ThumbnailURL,
		PublishedAt:   entry.PublishedAt,
		UpdatedAt:     entry.UpdatedAt,
		Views:         s.Views,
		RatingCount:   s.Likes,
		RatingAverage: average,
		RatingMin:     domain.RatingMin,
		RatingMax:     domain.RatingMax,
	}
}

// MergeAll merges every entry in feed order
func MergeAll(entries []domain.FeedEntry, channelID, channelName string, stats map[string]domain.VideoStats) []domain.VideoRecord {
	records := make([]domain.VideoRecord, len(entries))
	for i, e := range entries {
		records[i] = Merge(e, channelID, channelName, stats)
	}
	return records
}
