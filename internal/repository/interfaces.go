package repository

import (
	"context"
	stderrors "errors"

	"creatorfeed/internal/domain"
)

// ErrCreatorExists is returned when registering an already tracked channel
var ErrCreatorExists = stderrors.New("creator already exists")

// CreatorRepository defines the interface for tracked creator operations
type CreatorRepository interface {
	// ListChannelIDs returns every tracked channel id, oldest registration first
	ListChannelIDs(ctx context.Context) ([]string, error)

	// CreatorExists reports whether channelID is tracked
	CreatorExists(ctx context.Context, channelID string) (bool, error)

	// List returns all creators, oldest registration first
	List(ctx context.Context) ([]*domain.Creator, error)

	// Get returns a creator, or nil when it is not tracked
	Get(ctx context.Context, channelID string) (*domain.Creator, error)

	// Create registers a creator. Returns ErrCreatorExists on duplicates.
	Create(ctx context.Context, creator *domain.Creator) error

	// Delete removes a creator and, by cascade, its videos
	Delete(ctx context.Context, channelID string) (bool, error)

	// UpdateSubscribers stores refreshed subscriber counts
	UpdateSubscribers(ctx context.Context, updates []domain.SubscriberUpdate) error
}

// VideoRepository defines the interface for video record operations
type VideoRepository interface {
	// UpsertVideos inserts or updates records keyed by video id in one round trip
	UpsertVideos(ctx context.Context, records []domain.VideoRecord) error

	// ListVideos returns the aggregated feed, newest first
	ListVideos(ctx context.Context, query domain.VideoQuery) ([]domain.VideoRecord, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Creators CreatorRepository
	Videos   VideoRepository
}
