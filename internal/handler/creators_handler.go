package handler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"creatorfeed/internal/domain"
	"creatorfeed/internal/repository"
	"creatorfeed/internal/service"
	"creatorfeed/pkg/logger"
)

// CreatorsHandler manages the tracked creator registry
type CreatorsHandler struct {
	creators    repository.CreatorRepository
	subscribers service.SubscriberRefresher
	ingest      service.IngestRunner
	tasks       *service.Runner
	logger      *logger.Logger
}

// NewCreatorsHandler creates a new creators handler
func NewCreatorsHandler(creators repository.CreatorRepository, subscribers service.SubscriberRefresher, ingest service.IngestRunner, tasks *service.Runner, log *logger.Logger) *CreatorsHandler {
	return &CreatorsHandler{
		creators:    creators,
		subscribers: subscribers,
		ingest:      ingest,
		tasks:       tasks,
		logger:      log.Named("creators_handler"),
	}
}

// List handles GET /api/v1/creators
func (h *CreatorsHandler) List(w http.ResponseWriter, r *http.Request) {
	creators, err := h.creators.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list creators")
		respondError(w, http.StatusInternalServerError, "Failed to list creators")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"creators": creators,
		"count":    len(creators),
	})
}

// Create handles POST /api/v1/creators. The creator is stored right away;
// its subscriber count and first videos arrive from a background task.
func (h *CreatorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCreatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	creator := req.ToCreator(time.Now().UTC())
	if err := h.creators.Create(r.Context(), creator); err != nil {
		if stderrors.Is(err, repository.ErrCreatorExists) {
			respondError(w, http.StatusConflict, "Creator is already tracked")
			return
		}
		h.logger.WithError(err).WithField("channel_id", creator.ChannelID).Error("Failed to create creator")
		respondError(w, http.StatusInternalServerError, "Failed to create creator")
		return
	}

	h.logger.WithField("channel_id", creator.ChannelID).Info("Creator registered")
	h.backfill(creator.ChannelID)

	respondJSON(w, http.StatusCreated, creator)
}

// backfill refreshes the subscriber count and runs a targeted ingestion
func (h *CreatorsHandler) backfill(channelID string) *service.Task[*domain.IngestionSummary] {
	return service.Start(h.tasks, "backfill:"+channelID, func(ctx context.Context) (*domain.IngestionSummary, error) {
		if _, err := h.subscribers.RefreshOne(ctx, channelID); err != nil {
			h.logger.WithError(err).WithField("channel_id", channelID).Warn("Initial subscriber refresh failed")
		}
		return h.ingest.Run(ctx, channelID)
	})
}

// Delete handles DELETE /api/v1/creators/{channelId}
func (h *CreatorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelId")

	deleted, err := h.creators.Delete(r.Context(), channelID)
	if err != nil {
		h.logger.WithError(err).WithField("channel_id", channelID).Error("Failed to delete creator")
		respondError(w, http.StatusInternalServerError, "Failed to delete creator")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "Creator not found")
		return
	}

	h.logger.WithField("channel_id", channelID).Info("Creator deleted")
	w.WriteHeader(http.StatusNoContent)
}

// RefreshSubscribers handles POST /api/v1/creators/subscribers/refresh
func (h *CreatorsHandler) RefreshSubscribers(w http.ResponseWriter, r *http.Request) {
	result, err := h.subscribers.RefreshAll(r.Context())
	h.respondRefresh(w, r, result, err)
}

// RefreshCreatorSubscribers handles POST /api/v1/creators/{channelId}/subscribers/refresh
func (h *CreatorsHandler) RefreshCreatorSubscribers(w http.ResponseWriter, r *http.Request) {
	result, err := h.subscribers.RefreshOne(r.Context(), chi.URLParam(r, "channelId"))
	h.respondRefresh(w, r, result, err)
}

func (h *CreatorsHandler) respondRefresh(w http.ResponseWriter, r *http.Request, result *domain.SubscriberRefreshResult, err error) {
	if err != nil {
		respondAppError(w, r, err, h.logger)
		return
	}
	status := http.StatusOK
	if len(result.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	respondJSON(w, status, result)
}
