package service

import (
	"context"
	"fmt"

	"creatorfeed/internal/domain"
	"creatorfeed/internal/repository"
	"creatorfeed/internal/service/youtube"
	"creatorfeed/pkg/errors"
	"creatorfeed/pkg/logger"
)

// subscriberService refreshes creators.subscribers_count from the Data API
type subscriberService struct {
	creators repository.CreatorRepository
	channels ChannelStatistics
	logger   *logger.Logger
}

// NewSubscriberService creates a new subscriber service
func NewSubscriberService(creators repository.CreatorRepository, channels ChannelStatistics, log *logger.Logger) SubscriberRefresher {
	return &subscriberService{
		creators: creators,
		channels: channels,
		logger:   log.Named("subscribers"),
	}
}

// RefreshAll refreshes every tracked creator. A failing API chunk marks its
// creators as failed; the others are still updated.
func (s *subscriberService) RefreshAll(ctx context.Context) (*domain.SubscriberRefreshResult, error) {
	ids, err := s.creators.ListChannelIDs(ctx)
	if err != nil {
		return nil, errors.NewListingError("failed to list creators", err)
	}
	return s.refresh(ctx, ids)
}

func (s *subscriberService) RefreshOne(ctx context.Context, channelID string) (*domain.SubscriberRefreshResult, error) {
	exists, err := s.creators.CreatorExists(ctx, channelID)
	if err != nil {
		return nil, errors.NewListingError("failed to look up creator", err)
	}
	if !exists {
		return nil, errors.NewNotFoundError(fmt.Sprintf("creator %s is not tracked", channelID))
	}
	return s.refresh(ctx, []string{channelID})
}

func (s *subscriberService) refresh(ctx context.Context, ids []string) (*domain.SubscriberRefreshResult, error) {
	result := &domain.SubscriberRefreshResult{
		Updated: []domain.SubscriberUpdate{},
		Errors:  []domain.CreatorError{},
	}

	for _, chunk := range youtube.Chunk(ids, youtube.MaxIDsPerRequest) {
		counts, err := s.channels.ChannelSubscribers(ctx, chunk)
		if err != nil {
			s.logger.WithError(err).WithField("creators", len(chunk)).Error("Subscriber lookup failed")
			for _, id := range chunk {
				result.Errors = append(result.Errors, domain.CreatorError{ChannelID: id, Stage: "subscribers", Error: err.Error()})
			}
			continue
		}

		for _, id := range chunk {
			count, ok := counts[id]
			if !ok {
				result.Errors = append(result.Errors, domain.CreatorError{
					ChannelID: id,
					Stage:     "subscribers",
					Error:     "channel statistics unavailable",
				})
				continue
			}
			result.Updated = append(result.Updated, domain.SubscriberUpdate{ChannelID: id, SubscribersCount: count})
		}
	}

	if err := s.creators.UpdateSubscribers(ctx, result.Updated); err != nil {
		return nil, errors.NewSinkError("failed to store subscriber counts", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"updated": len(result.Updated),
		"errors":  len(result.Errors),
	}).Info("Subscriber counts refreshed")

	return result, nil
}
