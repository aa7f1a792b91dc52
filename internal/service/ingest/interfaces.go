package ingest

import (
	"context"

	"creatorfeed/internal/domain"
	"creatorfeed/internal/service/feed"
)

// CreatorLister enumerates tracked creators
type CreatorLister interface {
	// ListChannelIDs returns every tracked channel in registration order
	ListChannelIDs(ctx context.Context) ([]string, error)
	// CreatorExists reports whether channelID is tracked
	CreatorExists(ctx context.Context, channelID string) (bool, error)
}

// FeedFetcher retrieves one channel feed
type FeedFetcher interface {
	Fetch(ctx context.Context, channelID string) (*feed.Document, error)
}

// VideoSink persists merged records with insert-or-update semantics
type VideoSink interface {
	UpsertVideos(ctx context.Context, records []domain.VideoRecord) error
}

// VideoIndexer mirrors upserted records into a search index
type VideoIndexer interface {
	IndexVideos(ctx context.Context, records []domain.VideoRecord) error
}

// EventPublisher announces finished runs
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, summary *domain.IngestionSummary) error
}

// Recorder receives per-creator and per-run measurements
type Recorder interface {
	ObserveCreator(result domain.CreatorResult)
	ObserveRun(summary *domain.IngestionSummary)
}

// RunState guards full runs against overlap and remembers the last summary
type RunState interface {
	// Acquire takes the lock for scope. ok is false when another run holds it.
	Acquire(ctx context.Context, scope string) (release func(), ok bool, err error)
	SaveLast(ctx context.Context, summary *domain.IngestionSummary) error
	Last(ctx context.Context) (*domain.IngestionSummary, error)
}
