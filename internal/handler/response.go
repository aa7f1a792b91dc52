package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"creatorfeed/internal/middleware"
	"creatorfeed/pkg/errors"
	"creatorfeed/pkg/logger"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes the flat {error, timestamp} body the dashboard expects
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error":     message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// respondAppError maps an AppError to its status code. Anything else is a 500
// and its message stays in the logs.
func respondAppError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	log = log.WithField("request_id", middleware.GetRequestID(r.Context()))

	appErr, ok := errors.As(err)
	if !ok {
		log.WithError(err).Error("Unhandled error")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	} else {
		log.WithError(err).Debug("Request rejected")
	}
	respondError(w, appErr.StatusCode, appErr.Message)
}
