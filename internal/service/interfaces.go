package service

import (
	"context"

	"creatorfeed/internal/domain"
)

// IngestRunner runs the ingestion pipeline
type IngestRunner interface {
	// Run ingests all creators, or only channelID when it is non-empty
	Run(ctx context.Context, channelID string) (*domain.IngestionSummary, error)

	// Last returns the most recent run summary, or nil
	Last(ctx context.Context) (*domain.IngestionSummary, error)
}

// SubscriberRefresher updates creator subscriber counts
type SubscriberRefresher interface {
	// RefreshAll refreshes every tracked creator
	RefreshAll(ctx context.Context) (*domain.SubscriberRefreshResult, error)

	// RefreshOne refreshes a single creator
	RefreshOne(ctx context.Context, channelID string) (*domain.SubscriberRefreshResult, error)
}

// ChannelStatistics resolves subscriber counts for channels
type ChannelStatistics interface {
	ChannelSubscribers(ctx context.Context, channelIDs []string) (map[string]int64, error)
}
