package ingest

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"creatorfeed/internal/domain"
	"creatorfeed/internal/service/feed"
	"creatorfeed/internal/service/youtube"
	"creatorfeed/pkg/errors"
	"creatorfeed/pkg/logger"
)

// ScopeFullRun is the lock scope held by full runs
const ScopeFullRun = "full"

// Options tunes a run
type Options struct {
	BatchSize      int
	CreatorTimeout time.Duration
	// FetchRetries is the number of extra attempts after a retryable fetch failure
	FetchRetries         int
	RetryInitialInterval time.Duration
}

// DefaultOptions matches the production defaults
func DefaultOptions() Options {
	return Options{
		BatchSize:            5,
		CreatorTimeout:       60 * time.Second,
		FetchRetries:         2,
		RetryInitialInterval: 500 * time.Millisecond,
	}
}

// Dependencies are the collaborators of an Orchestrator. Indexer, Publisher,
// Recorder and State are optional.
type Dependencies struct {
	Creators   CreatorLister
	Fetcher    FeedFetcher
	Statistics youtube.StatisticsProvider
	Sink       VideoSink
	Indexer    VideoIndexer
	Publisher  EventPublisher
	Recorder   Recorder
	State      RunState
}

// Orchestrator drives ingestion runs: creators are processed in fixed-size
// batches, concurrently within a batch and sequentially across batches.
// A failing creator is recorded and never stops the run.
//
// slots caps creators in flight across all runs of this process, so
// concurrent targeted runs never exceed the batch size either.
type Orchestrator struct {
	deps   Dependencies
	opts   Options
	slots  chan struct{}
	logger *logger.Logger

	mu       sync.Mutex
	targeted map[string]struct{}
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(deps Dependencies, opts Options, log *logger.Logger) *Orchestrator {
	defaults := DefaultOptions()
	if opts.BatchSize < 1 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.CreatorTimeout <= 0 {
		opts.CreatorTimeout = defaults.CreatorTimeout
	}
	if opts.FetchRetries < 0 {
		opts.FetchRetries = 0
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = defaults.RetryInitialInterval
	}
	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		slots:    make(chan struct{}, opts.BatchSize),
		logger:   log.Named("ingest"),
		targeted: make(map[string]struct{}),
	}
}

// Run ingests every tracked creator, or only channelID when it is non-empty.
//
// The returned summary is nil only when the run never started: a full run
// already in progress, a targeted run for a channel that is already being
// ingested by another targeted run (conflict), or an unknown targeted
// creator (not found).
// A creator listing failure returns both a TotalFailure summary and the
// listing error.
func (o *Orchestrator) Run(ctx context.Context, channelID string) (*domain.IngestionSummary, error) {
	summary := domain.NewIngestionSummary(channelID, time.Now())
	log := o.logger.WithFields(map[string]interface{}{
		"run_id":     summary.RunID.String(),
		"channel_id": channelID,
	})

	if channelID == "" && o.deps.State != nil {
		release, ok, err := o.deps.State.Acquire(ctx, ScopeFullRun)
		switch {
		case err != nil:
			log.WithError(err).Warn("Run lock unavailable, continuing without it")
		case !ok:
			return nil, errors.NewConflictError("an ingestion run is already in progress")
		default:
			defer release()
		}
	}

	if channelID != "" {
		if !o.claim(channelID) {
			return nil, errors.NewConflictError(fmt.Sprintf("an ingestion run for %s is already in progress", channelID))
		}
		defer o.unclaim(channelID)
	}

	log.Info("Ingestion run started")

	channelIDs, err := o.listCreators(ctx, channelID)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil, err
		}
		log.WithError(err).Error("Failed to list creators")
		summary.Fail(err.Error(), time.Now())
		o.finish(ctx, summary)
		return summary, err
	}

	batches := 0
	for start := 0; start < len(channelIDs); start += o.opts.BatchSize {
		end := min(start+o.opts.BatchSize, len(channelIDs))
		for _, result := range o.runBatch(ctx, channelIDs[start:end]) {
			summary.Add(result)
			if o.deps.Recorder != nil {
				o.deps.Recorder.ObserveCreator(result)
			}
		}
		batches++
		log.WithFields(map[string]interface{}{
			"batch":     batches,
			"processed": summary.CreatorsAttempted,
			"total":     len(channelIDs),
		}).Debug("Batch complete")
	}

	summary.Complete(time.Now())
	o.finish(ctx, summary)

	log.WithFields(map[string]interface{}{
		"status":                 summary.Status,
		"creators":               summary.CreatorsAttempted,
		"total_videos_processed": summary.TotalVideosProcessed,
		"errors":                 len(summary.Errors),
		"elapsed":                summary.Elapsed.String(),
	}).Info("Ingestion run finished")

	return summary, nil
}

// Last returns the most recent stored summary, or nil when none is known
func (o *Orchestrator) Last(ctx context.Context) (*domain.IngestionSummary, error) {
	if o.deps.State == nil {
		return nil, nil
	}
	return o.deps.State.Last(ctx)
}

func (o *Orchestrator) claim(channelID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.targeted[channelID]; busy {
		return false
	}
	o.targeted[channelID] = struct{}{}
	return true
}

func (o *Orchestrator) unclaim(channelID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.targeted, channelID)
}

func (o *Orchestrator) listCreators(ctx context.Context, channelID string) ([]string, error) {
	if channelID != "" {
		exists, err := o.deps.Creators.CreatorExists(ctx, channelID)
		if err != nil {
			return nil, asType(err, errors.ErrorTypeListing, "failed to look up creator")
		}
		if !exists {
			return nil, errors.NewNotFoundError(fmt.Sprintf("creator %s is not tracked", channelID))
		}
		return []string{channelID}, nil
	}

	ids, err := o.deps.Creators.ListChannelIDs(ctx)
	if err != nil {
		return nil, asType(err, errors.ErrorTypeListing, "failed to list creators")
	}
	return ids, nil
}

// runBatch processes one batch concurrently. Each goroutine owns one slot of
// results, so the slice needs no locking.
func (o *Orchestrator) runBatch(ctx context.Context, channelIDs []string) []domain.CreatorResult {
	results := make([]domain.CreatorResult, len(channelIDs))

	var g errgroup.Group
	for i, id := range channelIDs {
		g.Go(func() error {
			results[i] = o.processCreator(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) processCreator(ctx context.Context, channelID string) domain.CreatorResult {
	start := time.Now()
	result := domain.CreatorResult{ChannelID: channelID}

	if err := ctx.Err(); err != nil {
		result.Err = creatorError(channelID, fmt.Errorf("run cancelled before creator started: %w", err))
		return result
	}

	select {
	case o.slots <- struct{}{}:
		defer func() { <-o.slots }()
	case <-ctx.Done():
		result.Err = creatorError(channelID, fmt.Errorf("run cancelled before creator started: %w", ctx.Err()))
		return result
	}

	cctx, cancel := context.WithTimeout(ctx, o.opts.CreatorTimeout)
	defer cancel()

	name, n, err := o.ingestCreator(cctx, channelID)
	result.ChannelName = name
	result.Elapsed = time.Since(start)

	log := o.logger.WithField("channel_id", channelID)
	if err != nil {
		result.Err = creatorError(channelID, err)
		log.WithError(err).WithField("stage", result.Err.Stage).Error("Creator ingestion failed")
		return result
	}

	result.VideosProcessed = n
	log.WithFields(map[string]interface{}{
		"videos":  n,
		"elapsed": result.Elapsed.String(),
	}).Debug("Creator ingested")
	return result
}

// ingestCreator runs Fetch, Parse, Enrich, Merge and Sink for one creator
func (o *Orchestrator) ingestCreator(ctx context.Context, channelID string) (string, int, error) {
	doc, err := o.fetch(ctx, channelID)
	if err != nil {
		return "", 0, err
	}

	parsed, err := feed.Parse(doc)
	if err != nil {
		return "", 0, err
	}
	if len(parsed.Entries) == 0 {
		return parsed.ChannelName, 0, nil
	}

	ids := make([]string, len(parsed.Entries))
	for i, e := range parsed.Entries {
		ids[i] = e.VideoID
	}

	stats, err := o.deps.Statistics.Statistics(ctx, ids)
	if err != nil {
		return parsed.ChannelName, 0, asType(err, errors.ErrorTypeEnrichment, "failed to fetch statistics")
	}

	records := MergeAll(parsed.Entries, channelID, parsed.ChannelName, stats)

	if err := o.deps.Sink.UpsertVideos(ctx, records); err != nil {
		return parsed.ChannelName, 0, asType(err, errors.ErrorTypeSink, "failed to upsert videos")
	}

	if o.deps.Indexer != nil {
		if err := o.deps.Indexer.IndexVideos(ctx, records); err != nil {
			o.logger.WithError(err).WithField("channel_id", channelID).Warn("Search index update failed")
		}
	}

	return parsed.ChannelName, len(records), nil
}

// fetch retries transient feed failures with exponential backoff
func (o *Orchestrator) fetch(ctx context.Context, channelID string) (*feed.Document, error) {
	attempt := 0
	op := func() (*feed.Document, error) {
		attempt++
		doc, err := o.deps.Fetcher.Fetch(ctx, channelID)
		if err == nil {
			return doc, nil
		}
		if !feed.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		o.logger.WithError(err).WithFields(map[string]interface{}{
			"channel_id": channelID,
			"attempt":    attempt,
		}).Warn("Feed fetch failed, retrying")
		return nil, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.opts.RetryInitialInterval
	bo.MaxInterval = 10 * time.Second

	doc, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(o.opts.FetchRetries+1)),
	)
	if err != nil {
		return nil, asType(err, errors.ErrorTypeFetch, "feed request failed")
	}
	return doc, nil
}

// finish records the completed summary. Each step is best effort and runs on
// a context that survives cancellation of the run.
func (o *Orchestrator) finish(ctx context.Context, summary *domain.IngestionSummary) {
	if o.deps.Recorder != nil {
		o.deps.Recorder.ObserveRun(summary)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if o.deps.State != nil {
		if err := o.deps.State.SaveLast(ctx, summary); err != nil {
			o.logger.WithError(err).Warn("Failed to store run summary")
		}
	}
	if o.deps.Publisher != nil {
		if err := o.deps.Publisher.PublishRunCompleted(ctx, summary); err != nil {
			o.logger.WithError(err).Warn("Failed to publish run summary")
		}
	}
}

// asType keeps AppErrors as they are and wraps anything else as type t
func asType(err error, t errors.ErrorType, message string) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	switch t {
	case errors.ErrorTypeFetch:
		return errors.NewFetchError(message, 0, err)
	case errors.ErrorTypeEnrichment:
		return errors.NewEnrichmentError(message, err)
	case errors.ErrorTypeSink:
		return errors.NewSinkError(message, err)
	case errors.ErrorTypeListing:
		return errors.NewListingError(message, err)
	}
	return errors.NewInternalError(message, err)
}

func creatorError(channelID string, err error) *domain.CreatorError {
	stage := "internal"
	if appErr, ok := errors.As(err); ok {
		stage = string(appErr.Type)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		stage = "timeout"
	} else if stderrors.Is(err, context.Canceled) {
		stage = "cancelled"
	}
	return &domain.CreatorError{
		ChannelID: channelID,
		Stage:     stage,
		Error:     err.Error(),
	}
}
