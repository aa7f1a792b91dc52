package handler

import (
	"net/http"
	"strconv"
	"time"

	"creatorfeed/internal/domain"
	"creatorfeed/internal/repository"
	"creatorfeed/pkg/logger"
)

// VideosHandler serves the aggregated feed
type VideosHandler struct {
	videos repository.VideoRepository
	logger *logger.Logger
}

// NewVideosHandler creates a new videos handler
func NewVideosHandler(videos repository.VideoRepository, log *logger.Logger) *VideosHandler {
	return &VideosHandler{videos: videos, logger: log.Named("videos_handler")}
}

// List handles GET /api/v1/videos?channel_id=&since=&limit=
func (h *VideosHandler) List(w http.ResponseWriter, r *http.Request) {
	q := domain.VideoQuery{ChannelID: r.URL.Query().Get("channel_id")}

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		q.Since = since
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}
	q.Normalize()

	videos, err := h.videos.ListVideos(r.Context(), q)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list videos")
		respondError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"videos": videos,
		"count":  len(videos),
	})
}
