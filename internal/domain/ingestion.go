package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the terminal state of an ingestion run
type RunStatus string

const (
	RunAllSucceeded   RunStatus = "AllSucceeded"
	RunPartialFailure RunStatus = "PartialFailure"
	RunTotalFailure   RunStatus = "TotalFailure"
)

// CreatorError records why one creator failed during a run
type CreatorError struct {
	ChannelID string `json:"channelId"`
	Stage     string `json:"stage,omitempty"`
	Error     string `json:"error"`
}

// CreatorResult is the outcome for a single creator
type CreatorResult struct {
	ChannelID       string        `json:"channelId"`
	ChannelName     string        `json:"channelName,omitempty"`
	VideosProcessed int           `json:"videosProcessed"`
	Elapsed         time.Duration `json:"elapsed"`
	Err             *CreatorError `json:"error,omitempty"`
}

// IngestionSummary aggregates a full or targeted run
type IngestionSummary struct {
	RunID                uuid.UUID       `json:"runId"`
	TargetChannelID      string          `json:"targetChannelId,omitempty"`
	Status               RunStatus       `json:"status"`
	CreatorsAttempted    int             `json:"creatorsAttempted"`
	TotalVideosProcessed int             `json:"totalVideosProcessed"`
	Results              []CreatorResult `json:"results"`
	Errors               []CreatorError  `json:"errors"`
	Failure              string          `json:"failure,omitempty"`
	StartedAt            time.Time       `json:"startedAt"`
	FinishedAt           time.Time       `json:"finishedAt"`
	Elapsed              time.Duration   `json:"elapsed"`
}

// NewIngestionSummary starts a summary for a run
func NewIngestionSummary(targetChannelID string, startedAt time.Time) *IngestionSummary {
	return &IngestionSummary{
		RunID:           uuid.New(),
		TargetChannelID: targetChannelID,
		Results:         []CreatorResult{},
		Errors:          []CreatorError{},
		StartedAt:       startedAt,
	}
}

// Add accumulates one creator result
func (s *IngestionSummary) Add(r CreatorResult) {
	s.CreatorsAttempted++
	s.Results = append(s.Results, r)
	if r.Err != nil {
		s.Errors = append(s.Errors, *r.Err)
		return
	}
	s.TotalVideosProcessed += r.VideosProcessed
}

// Fail marks the run as a total failure
func (s *IngestionSummary) Fail(reason string, finishedAt time.Time) {
	s.Failure = reason
	s.Status = RunTotalFailure
	s.finish(finishedAt)
}

// Complete derives the terminal status from the accumulated errors
func (s *IngestionSummary) Complete(finishedAt time.Time) {
	if len(s.Errors) > 0 {
		s.Status = RunPartialFailure
	} else {
		s.Status = RunAllSucceeded
	}
	s.finish(finishedAt)
}

func (s *IngestionSummary) finish(finishedAt time.Time) {
	s.FinishedAt = finishedAt
	s.Elapsed = finishedAt.Sub(s.StartedAt)
}
