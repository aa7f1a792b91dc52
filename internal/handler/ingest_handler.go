package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"creatorfeed/internal/domain"
	"creatorfeed/internal/service"
	"creatorfeed/pkg/logger"
)

// manualRunTimeout bounds a triggered run once it is detached from the
// request; it stays under the server write timeout
const manualRunTimeout = 10 * time.Minute

// IngestHandler exposes the run trigger
type IngestHandler struct {
	runner service.IngestRunner
	logger *logger.Logger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(runner service.IngestRunner, log *logger.Logger) *IngestHandler {
	return &IngestHandler{runner: runner, logger: log.Named("ingest_handler")}
}

// RunResponse is the run trigger body
type RunResponse struct {
	Message              string                `json:"message"`
	Timestamp            string                `json:"timestamp"`
	ProcessingTime       string                `json:"processingTime"`
	TotalVideosProcessed int                   `json:"totalVideosProcessed"`
	CreatorsProcessed    int                   `json:"creatorsProcessed"`
	RunID                string                `json:"runId"`
	Status               domain.RunStatus      `json:"status"`
	Errors               []domain.CreatorError `json:"errors,omitempty"`
}

// RunAll handles POST /api/v1/ingest
func (h *IngestHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "")
}

// RunOne handles POST /api/v1/ingest/{channelId}
func (h *IngestHandler) RunOne(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelId")
	if channelID == "" {
		respondError(w, http.StatusBadRequest, "channelId is required")
		return
	}
	h.run(w, r, channelID)
}

func (h *IngestHandler) run(w http.ResponseWriter, r *http.Request, channelID string) {
	// A run goes to completion even if the caller disconnects
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), manualRunTimeout)
	defer cancel()

	summary, err := h.runner.Run(ctx, channelID)
	if summary == nil {
		respondAppError(w, r, err, h.logger)
		return
	}

	if summary.Status == domain.RunTotalFailure {
		reason := summary.Failure
		if reason == "" && err != nil {
			reason = err.Error()
		}
		h.logger.WithField("run_id", summary.RunID.String()).WithError(err).Error("Ingestion run failed")
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error":     reason,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"runId":     summary.RunID.String(),
		})
		return
	}

	status := http.StatusOK
	if summary.Status == domain.RunPartialFailure {
		status = http.StatusMultiStatus
	}

	respondJSON(w, status, toRunResponse(summary))
}

// Last handles GET /api/v1/ingest/last
func (h *IngestHandler) Last(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.Last(r.Context())
	if err != nil {
		respondAppError(w, r, err, h.logger)
		return
	}
	if summary == nil {
		respondError(w, http.StatusNotFound, "No ingestion run recorded yet")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func toRunResponse(s *domain.IngestionSummary) *RunResponse {
	resp := &RunResponse{
		Message:              "Videos fetched and stored successfully",
		Timestamp:            s.FinishedAt.UTC().Format(time.RFC3339Nano),
		ProcessingTime:       fmt.Sprintf("%.2f seconds", s.Elapsed.Seconds()),
		TotalVideosProcessed: s.TotalVideosProcessed,
		CreatorsProcessed:    s.CreatorsAttempted,
		RunID:                s.RunID.String(),
		Status:               s.Status,
	}
	if len(s.Errors) > 0 {
		resp.Message = "Videos fetched with errors"
		resp.Errors = s.Errors
	}
	return resp
}
