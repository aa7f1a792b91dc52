package service

import (
	"context"
	"sync"
	"time"

	"creatorfeed/pkg/errors"
	"creatorfeed/pkg/logger"
)

// Scheduler triggers full ingestion runs and subscriber refreshes on fixed
// intervals. A zero interval disables that job.
type Scheduler struct {
	ingest          IngestRunner
	subscribers     SubscriberRefresher
	ingestInterval  time.Duration
	refreshInterval time.Duration
	runOnStart      bool
	logger          *logger.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewScheduler creates a scheduler
func NewScheduler(ingest IngestRunner, subscribers SubscriberRefresher, ingestInterval, refreshInterval time.Duration, runOnStart bool, log *logger.Logger) *Scheduler {
	return &Scheduler{
		ingest:          ingest,
		subscribers:     subscribers,
		ingestInterval:  ingestInterval,
		refreshInterval: refreshInterval,
		runOnStart:      runOnStart,
		logger:          log.Named("scheduler"),
	}
}

// Start begins the periodic routines
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if s.ingestInterval > 0 || s.runOnStart {
		s.wg.Add(1)
		go s.loop(ctx, "ingest", s.ingestInterval, s.runOnStart, s.runIngest)
	}
	if s.refreshInterval > 0 && s.subscribers != nil {
		s.wg.Add(1)
		go s.loop(ctx, "subscribers", s.refreshInterval, false, s.runRefresh)
	}

	s.isRunning = true
	s.logger.WithFields(map[string]interface{}{
		"ingest_interval":  s.ingestInterval.String(),
		"refresh_interval": s.refreshInterval.String(),
		"run_on_start":     s.runOnStart,
	}).Info("Scheduler started")
	return nil
}

// Stop cancels in-flight jobs and waits for the routines to exit or ctx to end
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.logger.Info("Stopping scheduler...")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	s.isRunning = false
	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop runs job once per interval. Jobs never overlap because the loop is
// serial; a tick that fires while a job runs is dropped by the ticker.
func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, immediate bool, job func(ctx context.Context)) {
	defer s.wg.Done()

	if immediate {
		job(ctx)
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.WithField("job", name).Debug("Scheduled job triggered")
			job(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runIngest(ctx context.Context) {
	summary, err := s.ingest.Run(ctx, "")
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeConflict) {
			s.logger.Info("Skipping scheduled ingestion, a run is already in progress")
			return
		}
		s.logger.WithError(err).Error("Scheduled ingestion failed")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"run_id":                 summary.RunID.String(),
		"status":                 summary.Status,
		"total_videos_processed": summary.TotalVideosProcessed,
	}).Info("Scheduled ingestion finished")
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	result, err := s.subscribers.RefreshAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Scheduled subscriber refresh failed")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"updated": len(result.Updated),
		"errors":  len(result.Errors),
	}).Info("Scheduled subscriber refresh finished")
}
