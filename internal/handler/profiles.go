package handler

import (
	"errors"
	"net/http"

	"privacyblur/internal/config"
	"privacyblur/internal/logger"
	"privacyblur/internal/model"
	"privacyblur/internal/repository"
)

type profileList struct {
	Active   string   `json:"active"`
	Profiles []string `json:"profiles"`
}

type ruleView struct {
	Enabled       bool    `json:"enabled"`
	Technique     string  `json:"technique"`
	Intensity     float64 `json:"intensity"`
	MaxIntensity  float64 `json:"max_intensity"`
	MinConfidence float64 `json:"min_confidence"`
}

type profileView struct {
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	KeywordList   string              `json:"keyword_list"`
	Keywords      []string            `json:"keywords"`
	TextTechnique string              `json:"text_technique"`
	Categories    map[string]ruleView `json:"categories"`
}

// ListProfilesHandler serves GET /api/profiles.
func ListProfilesHandler(store repository.ProfileStore, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := store.ProfileNames()
		if err != nil {
			logger.Error("Failed to list profiles: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list profiles")
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, profileList{Active: cfg.ActiveProfile, Profiles: names})
	}
}

// GetProfileHandler serves GET /api/profiles/{name} with its keyword list.
func GetProfileHandler(store repository.ProfileStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		p, err := store.Profile(name)
		if errors.Is(err, model.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		if err != nil {
			logger.Error("Failed to load profile %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "failed to load profile")
			return
		}

		view := profileView{
			Name:          p.Name,
			Description:   p.Description,
			KeywordList:   p.KeywordList,
			Keywords:      []string{},
			TextTechnique: p.TextTechnique.String(),
			Categories:    make(map[string]ruleView, len(p.Categories)),
		}
		if p.KeywordList != "" {
			if keywords, err := store.KeywordList(p.KeywordList); err == nil && keywords != nil {
				view.Keywords = keywords
			}
		}
		for _, c := range model.Categories {
			rule := p.Rule(c)
			view.Categories[c.String()] = ruleView{
				Enabled:       rule.Enabled,
				Technique:     rule.Technique.String(),
				Intensity:     rule.Intensity,
				MaxIntensity:  rule.EscalatedIntensity(),
				MinConfidence: rule.MinConfidence,
			}
		}
		writeJSON(w, http.StatusOK, view)
	}
}
