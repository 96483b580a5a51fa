package handler

import (
	"errors"
	"net/http"
	"strconv"

	"privacyblur/internal/dto"
	"privacyblur/internal/logger"
	"privacyblur/internal/repository"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 500
)

// ListSessionsHandler serves GET /api/sessions?stream=&limit= from the session store.
func ListSessionsHandler(sessions repository.SessionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultSessionLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(n, maxSessionLimit)
		}

		list, err := sessions.List(r.Context(), r.URL.Query().Get("stream"), limit)
		if err != nil {
			logger.Error("Failed to list sessions: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list sessions")
			return
		}

		out := make([]dto.SessionInfo, 0, len(list))
		for _, s := range list {
			out = append(out, dto.SessionInfo{SessionStats: s, Active: s.EndedAt.IsZero()})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GetSessionHandler serves GET /api/sessions/{id}.
func GetSessionHandler(sessions repository.SessionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s, err := sessions.GetByID(r.Context(), id)
		if errors.Is(err, repository.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if err != nil {
			logger.Error("Failed to load session %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to load session")
			return
		}
		writeJSON(w, http.StatusOK, dto.SessionInfo{SessionStats: s, Active: s.EndedAt.IsZero()})
	}
}
