package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"privacyblur/internal/dto"
	"privacyblur/internal/logger"
	"privacyblur/internal/model"
	"privacyblur/internal/service"
)

// StreamController is the part of the stream manager the API drives.
type StreamController interface {
	Streams() []service.StreamStatus
	Snapshots() []model.SessionStats
	Deactivate(ctx context.Context, camera string) error
	Activate(camera string)
}

// StatsHandler serves GET /api/stats with the live session of every active stream.
func StatsHandler(streams StreamController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snaps := streams.Snapshots()
		out := make([]dto.SessionInfo, 0, len(snaps))
		for _, s := range snaps {
			out = append(out, dto.SessionInfo{SessionStats: s, Active: true})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ListStreamsHandler serves GET /api/streams.
func ListStreamsHandler(streams StreamController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, streams.Streams())
	}
}

// DeactivateStreamHandler handles POST /api/streams/deactivate?camera=NAME.
func DeactivateStreamHandler(streams StreamController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera := strings.TrimSpace(r.URL.Query().Get("camera"))
		if camera == "" {
			writeError(w, http.StatusBadRequest, "missing camera parameter")
			return
		}
		if err := streams.Deactivate(r.Context(), camera); err != nil {
			if errors.Is(err, service.ErrUnknownStream) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			logger.Error("Failed to deactivate %s: %v", camera, err)
			writeError(w, http.StatusInternalServerError, "failed to deactivate stream")
			return
		}
		logger.Info("Stream %s deactivated from %s", camera, r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ActivateStreamHandler handles POST /api/streams/activate?camera=NAME.
func ActivateStreamHandler(streams StreamController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera := strings.TrimSpace(r.URL.Query().Get("camera"))
		if camera == "" {
			writeError(w, http.StatusBadRequest, "missing camera parameter")
			return
		}
		streams.Activate(camera)
		logger.Info("Stream %s activated from %s", camera, r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	}
}
