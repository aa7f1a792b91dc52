package domain

import "time"

// Rating bounds are fixed for every record
const (
	RatingMin = 1
	RatingMax = 5
)

// FeedEntry is one video entry taken from a channel's Atom feed
type FeedEntry struct {
	EntryID      string    `json:"entry_id"`
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	ThumbnailURL string    `json:"thumbnail_url"`
	PublishedAt  time.Time `json:"published_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VideoStats holds the engagement counters returned by the Data API
type VideoStats struct {
	Views int64 `json:"views"`
	Likes int64 `json:"likes"`
}

// VideoRecord is the normalized row written to the store, keyed by VideoID
type VideoRecord struct {
	VideoID       string    `json:"video_id"`
	ChannelID     string    `json:"channel_id"`
	ChannelName   string    `json:"channel_name"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	PublishedAt   time.Time `json:"published_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Views         int64     `json:"views"`
	RatingCount   int64     `json:"rating_count"`
	RatingAverage float64   `json:"rating_average"`
	RatingMin     int       `json:"rating_min"`
	RatingMax     int       `json:"rating_max"`
}

// VideoQuery filters the aggregated feed
type VideoQuery struct {
	ChannelID string
	Since     time.Time
	Limit     int
}

// Feed query bounds
const (
	DefaultVideoLimit = 50
	MaxVideoLimit     = 200
)

// Normalize clamps the limit into range
func (q *VideoQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultVideoLimit
	}
	if q.Limit > MaxVideoLimit {
		q.Limit = MaxVideoLimit
	}
}
