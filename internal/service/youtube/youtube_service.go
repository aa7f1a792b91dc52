package youtube

import (
	"context"
	stderrors "errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"creatorfeed/pkg/errors"
	"creatorfeed/pkg/logger"
)

// MaxIDsPerRequest is the Data API limit on ids per list call
const MaxIDsPerRequest = 50

// Options configures the Data API client
type Options struct {
	APIKey     string
	OAuthToken string // used instead of APIKey when set
	Endpoint   string
	// HTTPClient bypasses API key and token transport setup. Tests only.
	HTTPClient        *http.Client
	RequestsPerSecond float64
}

// Observer receives one call per Data API request
type Observer interface {
	ObserveAPIRequest(call string, ids int, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveAPIRequest(string, int, error) {}

// Service wraps the YouTube Data API for the calls the pipeline makes
type Service struct {
	api      *youtube.Service
	limiter  *rate.Limiter
	observer Observer
	logger   *logger.Logger
}

// NewService creates a Data API client. A nil observer discards request events.
func NewService(ctx context.Context, opts Options, observer Observer, log *logger.Logger) (*Service, error) {
	clientOpts := []option.ClientOption{option.WithUserAgent("creatorfeed-ingest")}

	switch {
	case opts.HTTPClient != nil:
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	case opts.OAuthToken != "":
		token := &oauth2.Token{
			AccessToken: opts.OAuthToken,
			TokenType:   "Bearer",
		}
		clientOpts = append(clientOpts, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	case opts.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	default:
		return nil, errors.NewValidationError("YouTube API key or OAuth token is required", nil)
	}

	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	api, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, errors.NewInternalError("Failed to initialize YouTube service", err)
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	if observer == nil {
		observer = nopObserver{}
	}

	return &Service{
		api:      api,
		limiter:  limiter,
		observer: observer,
		logger:   log.Named("youtube"),
	}, nil
}

// wait blocks until the limiter admits one more request
func (s *Service) wait(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}
	return s.limiter.Wait(ctx)
}

// ChannelSubscribers returns subscriber counts for the given channels,
// one channels.list call per chunk of 50. Channels that hide their count or
// are unknown to the API are absent from the result.
func (s *Service) ChannelSubscribers(ctx context.Context, channelIDs []string) (map[string]int64, error) {
	ids := Dedupe(channelIDs)
	counts := make(map[string]int64, len(ids))

	for _, chunk := range Chunk(ids, MaxIDsPerRequest) {
		if err := s.wait(ctx); err != nil {
			return nil, errors.NewExternalError("channel statistics request cancelled", err)
		}

		resp, err := s.api.Channels.List([]string{"statistics"}).Id(chunk...).Context(ctx).Do()
		s.observer.ObserveAPIRequest("channels.list", len(chunk), err)
		if err != nil {
			s.logger.WithError(err).WithField("ids", len(chunk)).Error("Failed to fetch channel statistics")
			return nil, withAPIStatus(errors.NewExternalError("Failed to get YouTube channel statistics", err), err)
		}

		for _, item := range resp.Items {
			if item.Statistics == nil || item.Statistics.HiddenSubscriberCount {
				continue
			}
			counts[item.Id] = int64(item.Statistics.SubscriberCount)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"requested": len(ids),
		"returned":  len(counts),
	}).Debug("Retrieved channel statistics")

	return counts, nil
}

// withAPIStatus records the googleapi status code on appErr when present
func withAPIStatus(appErr *errors.AppError, err error) *errors.AppError {
	var gerr *googleapi.Error
	if stderrors.As(err, &gerr) {
		appErr.WithDetail("upstream_status", gerr.Code)
	}
	return appErr
}
